package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/logscope/internal/broadcast"
	"github.com/Iron-Ham/logscope/internal/config"
	"github.com/Iron-Ham/logscope/internal/errors"
	"github.com/Iron-Ham/logscope/internal/event"
	"github.com/Iron-Ham/logscope/internal/logging"
	"github.com/Iron-Ham/logscope/internal/storage"
)

// app is the composition root shared by the subcommands: one log store, one
// network store, the diagnostics logger and the event bus they report on.
type app struct {
	cfg     *config.Config
	log     *logging.Logger
	bus     *event.Bus
	logs    storage.LogStorage
	network storage.NetworkLogStorage
}

// statser is implemented by every backend.
type statser interface {
	Stats(ctx context.Context) (storage.Stats, error)
}

// openApp loads the configuration and opens both stores on the configured
// backend.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	diag, err := newDiagnostics(cfg.Logging)
	if err != nil {
		return nil, err
	}

	bus := event.NewBus(event.WithLogger(diag))
	bus.Subscribe(event.TypeRecordCorrupted, func(e event.Event) {
		if rc, ok := e.(event.RecordCorruptedEvent); ok {
			fmt.Fprintf(os.Stderr, "Warning: skipped unreadable record at %s:%d: %v\n", rc.Source, rc.Line, rc.Err)
		}
	})

	a := &app{cfg: cfg, log: diag, bus: bus}
	if err := a.openStores(ctx); err != nil {
		_ = diag.Close()
		return nil, err
	}

	diag.Debug("stores opened", "backend", cfg.Storage.Backend)
	return a, nil
}

func newDiagnostics(cfg config.LoggingConfig) (*logging.Logger, error) {
	level := logging.ParseLevel(cfg.Level)
	if cfg.File == "" {
		return logging.NewLogger("", level)
	}

	logger, err := logging.NewRotatingLogger(cfg.File, level, logging.RotationConfig{
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open diagnostics log: %w", err)
	}
	return logger, nil
}

// storeOptions maps the storage section onto store options. Capacity is
// added per store by the caller.
func (a *app) storeOptions() ([]storage.Option, error) {
	s := a.cfg.Storage
	policy, err := broadcast.ParsePolicy(s.OverflowPolicy)
	if err != nil {
		return nil, err
	}

	return []storage.Option{
		storage.WithSubscriberBuffer(s.SubscriberBuffer),
		storage.WithOverflowPolicy(policy),
		storage.WithLogger(a.log),
		storage.WithEventBus(a.bus),
		storage.WithMaxFileSize(s.MaxFileSize),
		storage.WithMaxFiles(s.MaxFiles),
	}, nil
}

func (a *app) openStores(ctx context.Context) error {
	opts, err := a.storeOptions()
	if err != nil {
		return err
	}
	s := a.cfg.Storage
	logOpts := append(append([]storage.Option{}, opts...), storage.WithCapacity(s.Capacity))
	netOpts := append(append([]storage.Option{}, opts...), storage.WithCapacity(s.NetworkCapacity))

	switch s.Backend {
	case errors.BackendMemory:
		a.logs = storage.NewInMemoryLogStorage(logOpts...)
		a.network = storage.NewInMemoryNetworkLogStorage(netOpts...)

	case errors.BackendFile:
		logs := storage.NewFileLogStorage(s.LogDir(), logOpts...)
		network := storage.NewFileNetworkLogStorage(s.NetworkDir(), netOpts...)
		if err := logs.Initialize(ctx); err != nil {
			return err
		}
		if err := network.Initialize(ctx); err != nil {
			_ = logs.Close()
			return err
		}
		a.logs, a.network = logs, network

	case errors.BackendSQLite:
		path := s.SQLitePath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errors.NewStorageError("open", errors.BackendSQLite, err).WithPath(path)
		}
		logs, err := storage.OpenSQLiteLogStorage(ctx, path, logOpts...)
		if err != nil {
			return err
		}
		network, err := storage.OpenSQLiteNetworkLogStorage(ctx, path, netOpts...)
		if err != nil {
			_ = logs.Close()
			return err
		}
		a.logs, a.network = logs, network

	case errors.BackendPostgres:
		logs, err := storage.OpenSQLLogStorage(ctx, s.DSN, logOpts...)
		if err != nil {
			return err
		}
		network, err := storage.OpenSQLNetworkLogStorage(ctx, s.DSN, netOpts...)
		if err != nil {
			_ = logs.Close()
			return err
		}
		a.logs, a.network = logs, network

	default:
		return fmt.Errorf("%w: %q", errors.ErrUnknownBackend, s.Backend)
	}
	return nil
}

// Close closes both stores and the diagnostics logger.
func (a *app) Close() error {
	return errors.Join(a.logs.Close(), a.network.Close(), a.log.Close())
}

// changes returns the signal follow refreshes on: a directory watch for the
// file backend, a poll for database backends.
func (a *app) changes(ctx context.Context, network bool) (<-chan struct{}, error) {
	s := a.cfg.Storage
	switch s.Backend {
	case errors.BackendFile:
		dir := s.LogDir()
		if network {
			dir = s.NetworkDir()
		}
		return watchDir(ctx, dir, a.log.WithComponent("follow"))
	case errors.BackendMemory:
		return nil, errors.NewValidationError("cannot follow the memory backend from another process").
			WithField("storage.backend").WithValue(s.Backend)
	default:
		return pollChanges(ctx, followPollInterval), nil
	}
}
