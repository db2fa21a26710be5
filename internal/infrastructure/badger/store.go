package badgerinfra

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-notify-nosql/internal/infrastructure/kv"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Key prefixes, one per value kind.
const (
	stringPrefix = "str:"
	setPrefix    = "set:"
	listPrefix   = "list:"
)

const maxConflictRetries = 5

// Store implements kv.Store on an embedded BadgerDB. Lists are kept as one
// JSON array per key and rewritten inside a transaction on every mutation.
type Store struct {
	db *badger.DB
}

// badgerLogger adapts zap to badger's logger interface.
type badgerLogger struct{ *zap.SugaredLogger }

func (l badgerLogger) Warningf(format string, args ...interface{}) { l.Warnf(format, args...) }

// Open opens (or creates) a database at path. An empty path opens an
// in-memory database.
func Open(path string, logger *zap.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	if logger != nil {
		opts = opts.WithLogger(badgerLogger{logger.Named("badger").Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}

func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

func setMemberKey(key, member string) []byte {
	return []byte(setPrefix + key + "\x00" + member)
}

func setScanPrefix(key string) []byte {
	return []byte(setPrefix + key + "\x00")
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(stringPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	return value, found, err
}

func (s *Store) Set(_ context.Context, key, value string) error {
	return s.update(func(txn *badger.Txn) error {
		return txn.Set([]byte(stringPrefix+key), []byte(value))
	})
}

func (s *Store) Del(_ context.Context, keys ...string) error {
	return s.update(func(txn *badger.Txn) error {
		for _, key := range keys {
			for _, k := range [][]byte{[]byte(stringPrefix + key), []byte(listPrefix + key)} {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
			members, err := scanKeys(txn, setScanPrefix(key))
			if err != nil {
				return err
			}
			for _, k := range members {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *Store) SAdd(_ context.Context, key, member string) error {
	return s.update(func(txn *badger.Txn) error {
		return txn.Set(setMemberKey(key, member), nil)
	})
}

func (s *Store) SRem(_ context.Context, key, member string) error {
	return s.update(func(txn *badger.Txn) error {
		return txn.Delete(setMemberKey(key, member))
	})
}

func (s *Store) SMembers(_ context.Context, key string) ([]string, error) {
	prefix := setScanPrefix(key)
	var members []string
	err := s.db.View(func(txn *badger.Txn) error {
		keys, err := scanKeys(txn, prefix)
		if err != nil {
			return err
		}
		members = make([]string, 0, len(keys))
		for _, k := range keys {
			members = append(members, string(k[len(prefix):]))
		}
		return nil
	})
	return members, err
}

func (s *Store) LPush(_ context.Context, key, value string) error {
	return s.update(func(txn *badger.Txn) error {
		list, err := readList(txn, key)
		if err != nil {
			return err
		}
		return writeList(txn, key, append([]string{value}, list...))
	})
}

func (s *Store) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		list, err := readList(txn, key)
		if err != nil {
			return err
		}
		out = kv.Window(list, start, stop)
		return nil
	})
	return out, err
}

func (s *Store) LTrim(_ context.Context, key string, start, stop int64) error {
	return s.update(func(txn *badger.Txn) error {
		list, err := readList(txn, key)
		if err != nil {
			return err
		}
		return writeList(txn, key, kv.Window(list, start, stop))
	})
}

// LDrain reads and deletes the list in one transaction.
func (s *Store) LDrain(_ context.Context, key string) ([]string, error) {
	var out []string
	err := s.update(func(txn *badger.Txn) error {
		list, err := readList(txn, key)
		if err != nil {
			return err
		}
		out = list
		return txn.Delete([]byte(listPrefix + key))
	})
	return out, err
}

func scanKeys(txn *badger.Txn, prefix []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}

func readList(txn *badger.Txn, key string) ([]string, error) {
	item, err := txn.Get([]byte(listPrefix + key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var list []string
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &list)
	})
	if err != nil {
		return nil, fmt.Errorf("decode list %s: %w", key, err)
	}
	return list, nil
}

func writeList(txn *badger.Txn, key string, list []string) error {
	if len(list) == 0 {
		return txn.Delete([]byte(listPrefix + key))
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode list %s: %w", key, err)
	}
	return txn.Set([]byte(listPrefix+key), data)
}
