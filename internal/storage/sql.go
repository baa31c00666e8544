package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Iron-Ham/logscope/internal/broadcast"
	"github.com/Iron-Ham/logscope/internal/errors"
	"github.com/Iron-Ham/logscope/internal/event"
	"github.com/Iron-Ham/logscope/internal/logentry"
)

// dialect captures the differences between the supported SQL databases.
type dialect struct {
	backend  string
	driver   string
	seqType  string
	ordinalP bool // $1-style placeholders instead of ?
}

var (
	sqliteDialect   = dialect{backend: errors.BackendSQLite, driver: "sqlite", seqType: "INTEGER PRIMARY KEY AUTOINCREMENT"}
	postgresDialect = dialect{backend: errors.BackendPostgres, driver: "postgres", seqType: "BIGSERIAL PRIMARY KEY", ordinalP: true}
)

// dialectFor picks Postgres for postgres:// URLs and SQLite for anything
// else, which is treated as a file path.
func dialectFor(dsn string) dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgresDialect
	}
	return sqliteDialect
}

// bind rewrites ? placeholders for dialects that need ordinal ones.
func (d dialect) bind(query string) string {
	if !d.ordinalP {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQL is a bounded store backed by a database table. Records use the same
// line codec as the file store. Once the table holds capacity rows each Add
// deletes the oldest.
type SQL[E any, F Matcher[E]] struct {
	cfg     config
	dialect dialect
	db      *sql.DB
	table   string
	codec   logentry.Codec[E]
	hub     *broadcast.Hub[E]

	mu    sync.Mutex
	pubMu sync.Mutex

	closed    atomic.Bool
	corrupted atomic.Uint64
}

// OpenSQLiteLogStorage opens (creating if needed) a SQLite database file and
// returns a log store holding DefaultLogCapacity entries unless WithCapacity
// is given.
func OpenSQLiteLogStorage(ctx context.Context, path string, opts ...Option) (*SQL[logentry.LogEntry, logentry.LogFilter], error) {
	return openSQL[logentry.LogEntry, logentry.LogFilter](ctx, sqliteDialect, path, LogStoreName, DefaultLogCapacity, logentry.LogCodec{}, opts)
}

// OpenSQLiteNetworkLogStorage is the network counterpart of OpenSQLiteLogStorage.
func OpenSQLiteNetworkLogStorage(ctx context.Context, path string, opts ...Option) (*SQL[logentry.NetworkLogEntry, logentry.NetworkLogFilter], error) {
	return openSQL[logentry.NetworkLogEntry, logentry.NetworkLogFilter](ctx, sqliteDialect, path, NetworkStoreName, DefaultNetworkCapacity, logentry.NetworkCodec{}, opts)
}

// OpenSQLLogStorage opens a log store on dsn: a postgres:// URL or a SQLite
// file path.
func OpenSQLLogStorage(ctx context.Context, dsn string, opts ...Option) (*SQL[logentry.LogEntry, logentry.LogFilter], error) {
	return openSQL[logentry.LogEntry, logentry.LogFilter](ctx, dialectFor(dsn), dsn, LogStoreName, DefaultLogCapacity, logentry.LogCodec{}, opts)
}

// OpenSQLNetworkLogStorage is the network counterpart of OpenSQLLogStorage.
func OpenSQLNetworkLogStorage(ctx context.Context, dsn string, opts ...Option) (*SQL[logentry.NetworkLogEntry, logentry.NetworkLogFilter], error) {
	return openSQL[logentry.NetworkLogEntry, logentry.NetworkLogFilter](ctx, dialectFor(dsn), dsn, NetworkStoreName, DefaultNetworkCapacity, logentry.NetworkCodec{}, opts)
}

// sqliteDSN adds the connection settings that let the log and network
// stores share one database file: a writer waits up to five seconds for the
// lock instead of failing with SQLITE_BUSY, WAL keeps readers off the
// writer's lock, and transactions take the write lock when they begin.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

func openSQL[E any, F Matcher[E]](ctx context.Context, d dialect, dsn, name string, capacity int, codec logentry.Codec[E], opts []Option) (*SQL[E, F], error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	if d.driver == sqliteDialect.driver {
		dsn = sqliteDSN(dsn)
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, errors.NewStorageError("open", d.backend, err)
	}
	if d.driver == sqliteDialect.driver {
		// One connection serializes writers and keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.NewStorageError("ping", d.backend, err).WithRetryable(true)
	}

	s := &SQL[E, F]{
		cfg:     newConfig(name, capacity, opts),
		dialect: d,
		db:      db,
		table:   "logscope_" + name,
		codec:   codec,
	}
	s.cfg.logger = s.cfg.logger.WithStore(d.backend, name)
	s.hub = newHub[E](&s.cfg)

	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL[E, F]) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq %s,
			id TEXT NOT NULL,
			payload TEXT NOT NULL
		)`, s.table, s.dialect.seqType)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return errors.NewStorageError("init", s.dialect.backend, err).WithPath(s.table)
	}
	return nil
}

// Add inserts entry and trims the table to capacity.
func (s *SQL[E, F]) Add(ctx context.Context, entry E) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	payload, err := s.codec.Encode(entry)
	if err != nil {
		return errors.NewStorageError("encode", s.dialect.backend, err)
	}

	s.mu.Lock()
	if err := s.insertLocked(ctx, s.codec.EntryID(entry), payload); err != nil {
		s.mu.Unlock()
		return err
	}

	s.pubMu.Lock()
	s.mu.Unlock()
	s.hub.Publish(entry)
	s.pubMu.Unlock()
	s.cfg.flushDrops()
	return nil
}

func (s *SQL[E, F]) insertLocked(ctx context.Context, id string, payload []byte) error {
	if s.closed.Load() {
		return errors.ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.writeError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := s.dialect.bind(fmt.Sprintf(`INSERT INTO %s (id, payload) VALUES (?, ?)`, s.table))
	if _, err := tx.ExecContext(ctx, insert, id, string(payload)); err != nil {
		return s.writeError("insert", err)
	}

	evict := s.dialect.bind(fmt.Sprintf(
		`DELETE FROM %[1]s WHERE seq <= (SELECT seq FROM %[1]s ORDER BY seq DESC LIMIT 1 OFFSET ?)`,
		s.table))
	if _, err := tx.ExecContext(ctx, evict, s.cfg.capacity); err != nil {
		return s.writeError("evict", err)
	}

	if err := tx.Commit(); err != nil {
		return s.writeError("commit", err)
	}
	return nil
}

// writeError wraps a failed write. A write refused because another
// connection holds the database lock may succeed later.
func (s *SQL[E, F]) writeError(op string, err error) *errors.StorageError {
	return errors.NewStorageError(op, s.dialect.backend, err).WithPath(s.table).WithRetryable(isBusy(err))
}

// isBusy reports whether err is SQLITE_BUSY or SQLITE_LOCKED, including
// their extended codes.
func isBusy(err error) bool {
	var coded interface{ Code() int }
	if !errors.As(err, &coded) {
		return false
	}
	switch coded.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// AddAll adds entries in order, stopping at the first error.
func (s *SQL[E, F]) AddAll(ctx context.Context, entries []E) error {
	return addAll(ctx, entries, s.Add)
}

// Query returns up to limit matching entries, newest first. Rows that fail
// to decode are skipped and reported.
func (s *SQL[E, F]) Query(ctx context.Context, filter F, limit int) ([]E, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	out, corrupt, err := s.queryLocked(ctx, filter, limit)
	s.mu.Unlock()

	for _, rec := range corrupt {
		s.cfg.reportCorrupt(s.dialect.backend, rec)
	}
	return out, err
}

func (s *SQL[E, F]) queryLocked(ctx context.Context, filter F, limit int) ([]E, []CorruptRecord, error) {
	if s.closed.Load() {
		return nil, nil, errors.ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT seq, payload FROM %s ORDER BY seq DESC`, s.table))
	if err != nil {
		return nil, nil, errors.NewStorageError("query", s.dialect.backend, err).WithPath(s.table)
	}
	defer func() { _ = rows.Close() }()

	out := make([]E, 0)
	var corrupt []CorruptRecord
	for rows.Next() {
		var (
			seq     int64
			payload string
		)
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, corrupt, errors.NewStorageError("scan", s.dialect.backend, err).WithPath(s.table)
		}

		e, err := s.codec.Decode([]byte(payload))
		if err != nil {
			s.corrupted.Add(1)
			corrupt = append(corrupt, CorruptRecord{Source: s.table, Line: int(seq), Data: []byte(payload), Err: err})
			continue
		}
		if !filter.Matches(e) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, corrupt, errors.NewStorageError("query", s.dialect.backend, err).WithPath(s.table)
	}
	return out, corrupt, nil
}

// Observe streams matching entries added after the call.
func (s *SQL[E, F]) Observe(ctx context.Context, filter F) <-chan E {
	return s.hub.Subscribe(ctx, func(e E) bool { return filter.Matches(e) })
}

// Count returns the number of rows.
func (s *SQL[E, F]) Count(ctx context.Context) (int, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	if s.closed.Load() {
		return 0, errors.ErrStoreClosed
	}

	var n int
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table))
	if err := row.Scan(&n); err != nil {
		return 0, errors.NewStorageError("count", s.dialect.backend, err).WithPath(s.table)
	}
	return n, nil
}

// Clear deletes every row.
func (s *SQL[E, F]) Clear(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return errors.ErrStoreClosed
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table))
	s.mu.Unlock()
	if err != nil {
		return errors.NewStorageError("clear", s.dialect.backend, err).WithPath(s.table)
	}

	removed, _ := res.RowsAffected()
	s.cfg.logger.Info("store cleared", "removed", removed)
	s.cfg.bus.Publish(event.NewStorageClearedEvent(s.dialect.backend, s.cfg.name, int(removed)))
	return nil
}

// Close closes observer channels and the database handle.
func (s *SQL[E, F]) Close() error {
	s.mu.Lock()
	wasClosed := s.closed.Swap(true)
	s.mu.Unlock()
	if wasClosed {
		return nil
	}

	s.hub.Close()
	if err := s.db.Close(); err != nil {
		return errors.NewStorageError("close", s.dialect.backend, err)
	}
	return nil
}

// CorruptedRecords returns how many rows have been skipped as unreadable.
func (s *SQL[E, F]) CorruptedRecords() uint64 {
	return s.corrupted.Load()
}

// Stats returns a snapshot of the store's bookkeeping.
func (s *SQL[E, F]) Stats(ctx context.Context) (Stats, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Backend:     s.dialect.backend,
		Name:        s.cfg.name,
		Capacity:    s.cfg.capacity,
		Count:       count,
		Subscribers: s.hub.SubscriberCount(),
		Dropped:     s.hub.Dropped(),
		Corrupted:   s.corrupted.Load(),
	}, nil
}
