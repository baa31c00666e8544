package storage

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/logscope/internal/broadcast"
	"github.com/Iron-Ham/logscope/internal/errors"
	"github.com/Iron-Ham/logscope/internal/event"
	"github.com/Iron-Ham/logscope/internal/logentry"
)

// fileExt is the extension of every store file.
const fileExt = ".jsonl"

// File is a persistent store writing newline-delimited JSON records to a
// rotating set of files named <prefix>_<index>.jsonl. Appends go to the file
// with the highest index. When an append would push the active file past the
// size limit a new file is started, and only the newest maxFiles files are
// kept.
type File[E any, F Matcher[E]] struct {
	cfg   config
	dir   string
	codec logentry.Codec[E]
	hub   *broadcast.Hub[E]

	mu          sync.Mutex
	initialized bool
	index       int

	pubMu sync.Mutex

	closed    atomic.Bool
	corrupted atomic.Uint64
}

// NewFileLogStorage creates a log store rooted at dir. Files are named
// logs_<n>.jsonl unless WithFilePrefix is given.
func NewFileLogStorage(dir string, opts ...Option) *File[logentry.LogEntry, logentry.LogFilter] {
	return newFile[logentry.LogEntry, logentry.LogFilter](LogStoreName, dir, logentry.LogCodec{}, opts)
}

// NewFileNetworkLogStorage creates a network store rooted at dir. Files are
// named network_<n>.jsonl unless WithFilePrefix is given.
func NewFileNetworkLogStorage(dir string, opts ...Option) *File[logentry.NetworkLogEntry, logentry.NetworkLogFilter] {
	return newFile[logentry.NetworkLogEntry, logentry.NetworkLogFilter](NetworkStoreName, dir, logentry.NetworkCodec{}, opts)
}

func newFile[E any, F Matcher[E]](name, dir string, codec logentry.Codec[E], opts []Option) *File[E, F] {
	f := &File[E, F]{
		cfg:   newConfig(name, 0, opts),
		dir:   dir,
		codec: codec,
	}
	f.cfg.logger = f.cfg.logger.WithStore(errors.BackendFile, name).With("dir", dir)
	f.hub = newHub[E](&f.cfg)
	return f
}

// Dir returns the directory holding the store files.
func (f *File[E, F]) Dir() string {
	return f.dir
}

// Path returns the path of the file with the given index.
func (f *File[E, F]) Path(index int) string {
	return filepath.Join(f.dir, f.cfg.prefix+"_"+strconv.Itoa(index)+fileExt)
}

// Initialize creates the directory if needed and resumes at the highest
// existing file index. Every other operation calls it on first use.
func (f *File[E, F]) Initialize(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed.Load() {
		return errors.ErrStoreClosed
	}
	return f.initLocked()
}

// Reload rescans the directory so that files rotated in by another process
// become visible to Query and Count.
func (f *File[E, F]) Reload(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed.Load() {
		return errors.ErrStoreClosed
	}
	f.initialized = false
	return f.initLocked()
}

func (f *File[E, F]) initLocked() error {
	if f.initialized {
		return nil
	}

	if info, err := f.cfg.fs.Stat(f.dir); err != nil || !info.IsDir() {
		if err := f.cfg.fs.MkdirAll(f.dir, 0o755); err != nil {
			return errors.NewStorageError("init", errors.BackendFile, err).WithPath(f.dir)
		}
	}

	infos, err := afero.ReadDir(f.cfg.fs, f.dir)
	if err != nil {
		return errors.NewStorageError("init", errors.BackendFile, err).WithPath(f.dir)
	}

	highest := 0
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		if n, ok := f.parseIndex(info.Name()); ok && n > highest {
			highest = n
		}
	}

	f.index = highest
	f.initialized = true
	f.cfg.logger.Debug("file store initialized", "index", highest)
	return nil
}

// parseIndex extracts N from <prefix>_<N>.jsonl.
func (f *File[E, F]) parseIndex(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, f.cfg.prefix+"_")
	if !ok {
		return 0, false
	}
	digits, ok := strings.CutSuffix(rest, fileExt)
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Add appends entry to the active file, rotating first when needed. The
// entry reaches observers only after it has been written.
func (f *File[E, F]) Add(ctx context.Context, entry E) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	line, err := f.codec.Encode(entry)
	if err != nil {
		return errors.NewStorageError("encode", errors.BackendFile, err)
	}

	f.mu.Lock()
	if err := f.appendLocked(line); err != nil {
		f.mu.Unlock()
		return err
	}

	f.pubMu.Lock()
	f.mu.Unlock()
	f.hub.Publish(entry)
	f.pubMu.Unlock()
	f.cfg.flushDrops()
	return nil
}

func (f *File[E, F]) appendLocked(line []byte) error {
	if f.closed.Load() {
		return errors.ErrStoreClosed
	}
	if err := f.initLocked(); err != nil {
		return err
	}

	path := f.Path(f.index)
	size, err := f.fileSize(path)
	if err != nil {
		return errors.NewStorageError("stat", errors.BackendFile, err).WithPath(path)
	}

	if size > 0 && size+int64(len(line)) > f.cfg.maxFileSize {
		if err := f.rotateLocked(); err != nil {
			return err
		}
		path = f.Path(f.index)
		size = 0
	}

	record := make([]byte, 0, len(line)+2)
	if size > 0 {
		last, err := f.lastByte(path, size)
		if err != nil {
			return errors.NewStorageError("read", errors.BackendFile, err).WithPath(path)
		}
		// A previous write was torn; keep the partial line separate.
		if last != '\n' {
			record = append(record, '\n')
		}
	}
	record = append(record, line...)
	record = append(record, '\n')

	file, err := f.cfg.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.NewStorageError("open", errors.BackendFile, err).WithPath(path)
	}
	if _, err := file.Write(record); err != nil {
		_ = file.Close()
		return errors.NewStorageError("append", errors.BackendFile, err).WithPath(path)
	}
	if err := file.Close(); err != nil {
		return errors.NewStorageError("close", errors.BackendFile, err).WithPath(path)
	}
	return nil
}

// rotateLocked advances the active index and deletes the file that falls
// outside the retention window. When the delete fails the index is left
// unchanged, so the store never holds more than maxFiles files.
func (f *File[E, F]) rotateLocked() error {
	next := f.index + 1

	deleted := ""
	if old := next - f.cfg.maxFiles; old >= 0 {
		oldPath := f.Path(old)
		switch err := f.cfg.fs.Remove(oldPath); {
		case err == nil:
			deleted = oldPath
		case !os.IsNotExist(err):
			return errors.NewStorageError("rotate", errors.BackendFile, err).WithPath(oldPath)
		}
	}

	f.index = next
	newPath := f.Path(f.index)
	f.cfg.logger.Info("rotated store file", "index", f.index, "deleted", deleted)
	f.cfg.bus.Publish(event.NewFileRotatedEvent(f.cfg.name, newPath, deleted, f.index))
	return nil
}

func (f *File[E, F]) fileSize(path string) (int64, error) {
	info, err := f.cfg.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

func (f *File[E, F]) lastByte(path string, size int64) (byte, error) {
	file, err := f.cfg.fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = file.Close() }()

	buf := make([]byte, 1)
	if _, err := file.ReadAt(buf, size-1); err != nil && err != io.EOF {
		return 0, err
	}
	return buf[0], nil
}

// AddAll adds entries in order, stopping at the first error.
func (f *File[E, F]) AddAll(ctx context.Context, entries []E) error {
	return addAll(ctx, entries, f.Add)
}

// Query reads the retained files newest first and returns up to limit
// matching entries. Unreadable records are skipped and reported.
func (f *File[E, F]) Query(ctx context.Context, filter F, limit int) ([]E, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	f.mu.Lock()
	entries, corrupt, err := f.readAllLocked()
	f.mu.Unlock()

	for _, rec := range corrupt {
		f.cfg.reportCorrupt(errors.BackendFile, rec)
	}
	if err != nil {
		return nil, err
	}

	out := make([]E, 0)
	for _, e := range entries {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// readAllLocked decodes every retained record, newest first.
func (f *File[E, F]) readAllLocked() ([]E, []CorruptRecord, error) {
	if f.closed.Load() {
		return nil, nil, errors.ErrStoreClosed
	}
	if err := f.initLocked(); err != nil {
		return nil, nil, err
	}

	var (
		all     []E
		corrupt []CorruptRecord
	)
	for i := f.index; i >= f.oldestIndex(); i-- {
		path := f.Path(i)
		var fileEntries []E
		err := f.scanLines(path, func(n int, line []byte) {
			e, err := f.codec.Decode(line)
			if err != nil {
				f.corrupted.Add(1)
				corrupt = append(corrupt, CorruptRecord{
					Source: path,
					Line:   n,
					Data:   bytes.Clone(line),
					Err:    err,
				})
				return
			}
			fileEntries = append(fileEntries, e)
		})
		if err != nil {
			return nil, corrupt, errors.NewStorageError("read", errors.BackendFile, err).WithPath(path)
		}
		for j := len(fileEntries) - 1; j >= 0; j-- {
			all = append(all, fileEntries[j])
		}
	}
	return all, corrupt, nil
}

func (f *File[E, F]) oldestIndex() int {
	return max(0, f.index-f.cfg.maxFiles+1)
}

// scanLines calls fn for each non-blank line of path with its 1-based line
// number. A missing file has no lines.
func (f *File[E, F]) scanLines(path string, fn func(n int, line []byte)) error {
	file, err := f.cfg.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() { _ = file.Close() }()

	// Records can exceed bufio.Scanner's token limit, so read whole lines.
	r := bufio.NewReader(file)
	n := 0
	for {
		line, readErr := r.ReadBytes('\n')
		if len(line) > 0 {
			n++
			if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
				fn(n, trimmed)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// Observe streams matching entries added after the call.
func (f *File[E, F]) Observe(ctx context.Context, filter F) <-chan E {
	return f.hub.Subscribe(ctx, func(e E) bool { return filter.Matches(e) })
}

// Count returns the number of non-blank lines across the retained files.
// It is recomputed on every call.
func (f *File[E, F]) Count(ctx context.Context) (int, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countLocked()
}

func (f *File[E, F]) countLocked() (int, error) {
	if f.closed.Load() {
		return 0, errors.ErrStoreClosed
	}
	if err := f.initLocked(); err != nil {
		return 0, err
	}

	total := 0
	for i := f.index; i >= f.oldestIndex(); i-- {
		path := f.Path(i)
		if err := f.scanLines(path, func(int, []byte) { total++ }); err != nil {
			return 0, errors.NewStorageError("read", errors.BackendFile, err).WithPath(path)
		}
	}
	return total, nil
}

// Clear deletes every store file and restarts at index 0.
func (f *File[E, F]) Clear(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	f.mu.Lock()
	removed, err := f.countLocked()
	if err != nil {
		f.mu.Unlock()
		return err
	}
	for i := 0; i <= f.index; i++ {
		path := f.Path(i)
		if err := f.cfg.fs.Remove(path); err != nil && !os.IsNotExist(err) {
			f.mu.Unlock()
			return errors.NewStorageError("clear", errors.BackendFile, err).WithPath(path)
		}
	}
	f.index = 0
	f.mu.Unlock()

	f.cfg.logger.Info("store cleared", "removed", removed)
	f.cfg.bus.Publish(event.NewStorageClearedEvent(errors.BackendFile, f.cfg.name, removed))
	return nil
}

// Close closes every observer channel. Files need no flushing: each Add
// opens, appends and closes.
func (f *File[E, F]) Close() error {
	f.mu.Lock()
	wasClosed := f.closed.Swap(true)
	f.mu.Unlock()
	if !wasClosed {
		f.hub.Close()
	}
	return nil
}

// ActiveIndex returns the index of the file receiving appends.
func (f *File[E, F]) ActiveIndex(ctx context.Context) (int, error) {
	if err := f.Initialize(ctx); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.index, nil
}

// CorruptedRecords returns how many records have been skipped as unreadable.
// Records are counted each time a read encounters them.
func (f *File[E, F]) CorruptedRecords() uint64 {
	return f.corrupted.Load()
}

// Stats returns a snapshot of the store's bookkeeping.
func (f *File[E, F]) Stats(ctx context.Context) (Stats, error) {
	count, err := f.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	f.mu.Lock()
	index := f.index
	f.mu.Unlock()

	return Stats{
		Backend:     errors.BackendFile,
		Name:        f.cfg.name,
		Count:       count,
		Subscribers: f.hub.SubscriberCount(),
		Dropped:     f.hub.Dropped(),
		Corrupted:   f.corrupted.Load(),
		ActiveIndex: index,
	}, nil
}

// String describes the store for diagnostics.
func (f *File[E, F]) String() string {
	return fmt.Sprintf("file store %s (%s)", f.cfg.name, f.dir)
}
