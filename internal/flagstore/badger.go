package flagstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for the on-disk flag store.
type Config struct {
	// Path is the directory for the store's files. Required unless
	// InMemory is set.
	Path string

	// InMemory disables disk persistence. Useful for testing.
	InMemory bool

	// SyncWrites makes writes durable before Set returns.
	SyncWrites bool

	// Logger receives the store's internal logging. Nil disables it.
	Logger *slog.Logger
}

// Badger is a Store backed by an embedded BadgerDB instance.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens the flag store, creating the directory if needed.
func OpenBadger(cfg Config) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent flag store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create flag store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open flag store: %w", err)
	}
	return &Badger{db: db}, nil
}

// Get implements Store.
func (b *Badger) Get(key string, def bool) bool {
	value := def
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			value = len(v) == 1 && v[0] == '1'
			return nil
		})
	})
	if err != nil {
		return def
	}
	return value
}

// Set implements Store.
func (b *Badger) Set(key string, value bool) error {
	v := []byte{'0'}
	if value {
		v = []byte{'1'}
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), v)
	})
}

// Close closes the underlying database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger adapts slog to the store's internal logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
