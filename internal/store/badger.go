package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/joescharf/bugs/internal/models"
)

// bugKeyPrefix namespaces bug documents. Keys are bugKeyPrefix + ULID, so
// key order is creation order.
const bugKeyPrefix = "bug/"

// BadgerConfig holds configuration for a BadgerStore.
type BadgerConfig struct {
	// Dir is the directory for BadgerDB files. Ignored when InMemory is true.
	Dir string

	// InMemory keeps all data in RAM. Used by tests.
	InMemory bool

	// Logger receives BadgerDB's internal log output. Nil disables it.
	Logger *slog.Logger
}

// BadgerStore implements Store as JSON documents in an embedded BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
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

// NewBadgerStore opens a BadgerDB-backed store.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("badger dir is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Migrate is a no-op: documents carry their own shape.
func (s *BadgerStore) Migrate(ctx context.Context) error {
	return nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func bugKey(id string) []byte {
	return []byte(bugKeyPrefix + id)
}

func getDoc(txn *badger.Txn, id string) (*models.Bug, error) {
	item, err := txn.Get(bugKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}
	b := &models.Bug{}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, b)
	})
	if err != nil {
		return nil, fmt.Errorf("decode bug %s: %w", id, err)
	}
	return b, nil
}

func putDoc(txn *badger.Txn, b *models.Bug) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode bug %s: %w", b.ID, err)
	}
	return txn.Set(bugKey(b.ID), data)
}

func (s *BadgerStore) CreateBug(ctx context.Context, bug *models.Bug) error {
	bug.ID = newID()
	now := time.Now().UTC()
	bug.CreatedAt = now
	bug.UpdatedAt = now
	if bug.Status == "" {
		bug.Status = models.BugStatusOpen
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return putDoc(txn, bug)
	}); err != nil {
		return fmt.Errorf("create bug: %w", err)
	}
	return nil
}

// ListBugs iterates keys in reverse, which yields newest ULIDs first.
func (s *BadgerStore) ListBugs(ctx context.Context) ([]*models.Bug, error) {
	bugs := []*models.Bug{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(bugKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must seek past the last possible key in the prefix.
		seek := append([]byte(bugKeyPrefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			b := &models.Bug{}
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, b)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			bugs = append(bugs, b)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list bugs: %w", err)
	}
	return bugs, nil
}

func (s *BadgerStore) GetBug(ctx context.Context, id string) (*models.Bug, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	var b *models.Bug
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		b, err = getDoc(txn, id)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get bug: %w", err)
	}
	return b, nil
}

func (s *BadgerStore) ReplaceBug(ctx context.Context, bug *models.Bug) error {
	if err := checkID(bug.ID); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		stored, err := getDoc(txn, bug.ID)
		if err != nil {
			return err
		}
		bug.CreatedAt = stored.CreatedAt
		bug.UpdatedAt = time.Now().UTC()
		return putDoc(txn, bug)
	})
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("replace bug: %w", err)
	}
	return nil
}

func (s *BadgerStore) DeleteBug(ctx context.Context, id string) (*models.Bug, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	var b *models.Bug
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		b, err = getDoc(txn, id)
		if err != nil {
			return err
		}
		return txn.Delete(bugKey(id))
	})
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("delete bug: %w", err)
	}
	return b, nil
}
