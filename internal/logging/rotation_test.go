package logging

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("ReadFile(%s) failed: %v", path, err)
	}
	return string(data)
}

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates parent directories", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		rw, err := NewRotatingWriter(fs, "/var/log/logscope/diag.log", DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		defer rw.Close()

		if !exists(fs, "/var/log/logscope/diag.log") {
			t.Error("log file was not created")
		}
		if rw.Path() != "/var/log/logscope/diag.log" {
			t.Errorf("Path() = %q", rw.Path())
		}
	})

	t.Run("appends to an existing file", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		_ = afero.WriteFile(fs, "/diag.log", []byte("old\n"), 0o644)

		rw, err := NewRotatingWriter(fs, "/diag.log", DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		if rw.Size() != 4 {
			t.Errorf("Size() = %d, want 4", rw.Size())
		}
		_, _ = rw.Write([]byte("new\n"))
		_ = rw.Close()

		if got := readFile(t, fs, "/diag.log"); got != "old\nnew\n" {
			t.Errorf("content = %q", got)
		}
	})

	t.Run("read-only filesystem", func(t *testing.T) {
		fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
		if _, err := NewRotatingWriter(fs, "/diag.log", DefaultRotationConfig()); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestRotatingWriter_Rotation(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw, err := NewRotatingWriter(fs, "/diag.log", RotationConfig{MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer rw.Close()
	rw.setMaxBytes(10)

	for i := 1; i <= 4; i++ {
		if _, err := fmt.Fprintf(rw, "line-%d\n", i); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	// Each 7-byte line overflows a 10-byte file holding another line.
	if got := readFile(t, fs, "/diag.log"); got != "line-4\n" {
		t.Errorf("current = %q, want line-4", got)
	}
	if got := readFile(t, fs, "/diag.log.1"); got != "line-3\n" {
		t.Errorf("backup 1 = %q, want line-3", got)
	}
	if got := readFile(t, fs, "/diag.log.2"); got != "line-2\n" {
		t.Errorf("backup 2 = %q, want line-2", got)
	}
	if exists(fs, "/diag.log.3") {
		t.Error("backups beyond MaxBackups should be removed")
	}
}

func TestRotatingWriter_NoBackups(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw, _ := NewRotatingWriter(fs, "/diag.log", RotationConfig{})
	defer rw.Close()
	rw.setMaxBytes(8)

	_, _ = rw.Write([]byte("aaaaaa\n"))
	_, _ = rw.Write([]byte("bbbbbb\n"))

	if got := readFile(t, fs, "/diag.log"); got != "bbbbbb\n" {
		t.Errorf("current = %q", got)
	}
	if exists(fs, "/diag.log.1") {
		t.Error("no backup should be kept")
	}
}

func TestRotatingWriter_OversizedWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw, _ := NewRotatingWriter(fs, "/diag.log", RotationConfig{MaxBackups: 1})
	defer rw.Close()
	rw.setMaxBytes(4)

	// An empty file is never rotated, so a record larger than the limit
	// still gets written.
	_, _ = rw.Write([]byte("0123456789\n"))
	if exists(fs, "/diag.log.1") {
		t.Error("rotation of an empty file")
	}
	if rw.Size() != 11 {
		t.Errorf("Size() = %d, want 11", rw.Size())
	}
}

func TestRotatingWriter_Compression(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw, _ := NewRotatingWriter(fs, "/diag.log", RotationConfig{MaxBackups: 2, Compress: true})
	defer rw.Close()
	rw.setMaxBytes(10)

	_, _ = rw.Write([]byte("first-line\n"))
	_, _ = rw.Write([]byte("second\n"))
	_, _ = rw.Write([]byte("third\n"))

	if exists(fs, "/diag.log.1") {
		t.Error("uncompressed backup should be replaced")
	}

	tests := map[string]string{
		"/diag.log.1.zst": "second\n",
		"/diag.log.2.zst": "first-line\n",
	}
	for path, want := range tests {
		f, err := fs.Open(path)
		if err != nil {
			t.Fatalf("Open(%s) failed: %v", path, err)
		}
		dec, err := zstd.NewReader(f)
		if err != nil {
			t.Fatalf("zstd.NewReader failed: %v", err)
		}
		data, err := io.ReadAll(dec)
		dec.Close()
		_ = f.Close()
		if err != nil {
			t.Fatalf("decompress %s failed: %v", path, err)
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", path, data, want)
		}
	}
}

func TestRotatingWriter_Concurrency(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw, _ := NewRotatingWriter(fs, "/diag.log", RotationConfig{MaxBackups: 100})
	defer rw.Close()
	rw.setMaxBytes(200)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, _ = fmt.Fprintf(rw, "g%d-%02d\n", g, i)
			}
		}()
	}
	wg.Wait()
	_ = rw.Close()

	var all bytes.Buffer
	matches, _ := afero.Glob(fs, "/diag.log*")
	for _, m := range matches {
		all.WriteString(readFile(t, fs, m))
	}
	if lines := strings.Count(all.String(), "\n"); lines != 200 {
		t.Errorf("got %d lines across files, want 200", lines)
	}
}

func TestRotatingWriter_Close(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw, _ := NewRotatingWriter(fs, "/diag.log", DefaultRotationConfig())

	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if err := rw.Sync(); err != nil {
		t.Errorf("Sync after Close failed: %v", err)
	}
	if _, err := rw.Write([]byte("x")); err == nil {
		t.Error("Write after Close should fail")
	}
}

func TestNewRotatingLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "diag.log")
	logger, err := NewRotatingLogger(path, LevelInfo, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingLogger failed: %v", err)
	}

	logger.WithComponent("storage").Info("rotated", "index", 3)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data := readFile(t, afero.NewOsFs(), path)
	if !strings.Contains(data, `"msg":"rotated"`) || !strings.Contains(data, `"component":"storage"`) {
		t.Errorf("unexpected log content: %s", data)
	}
}

func TestDefaultRotationConfig(t *testing.T) {
	cfg := DefaultRotationConfig()
	if cfg.MaxSizeMB != 10 || cfg.MaxBackups != 3 || cfg.Compress {
		t.Errorf("DefaultRotationConfig() = %+v", cfg)
	}
}
