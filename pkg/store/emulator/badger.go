package emulator

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// badgerKV persists emulator state in a BadgerDB directory.
type badgerKV struct {
	db *badger.DB
}

// BadgerConfig configures the persistent engine.
type BadgerConfig struct {
	// Dir is the database directory. It is created if missing.
	Dir string

	// InMemory keeps the database in memory (Dir is ignored).
	InMemory bool

	// SyncWrites fsyncs every batch.
	SyncWrites bool
}

// OpenBadgerKV opens (or creates) a badger-backed engine.
func OpenBadgerKV(cfg BadgerConfig) (KV, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, fmt.Errorf("badger: directory is required")
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %q: %w", cfg.Dir, err)
	}
	return &badgerKV{db: db}, nil
}

func (b *badgerKV) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger: get %q: %w", key, err)
	}
	return value, true, nil
}

func (b *badgerKV) Scan(prefix string) ([]Entry, error) {
	var out []Entry
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, Entry{Key: string(item.KeyCopy(nil)), Value: v})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: scan %q: %w", prefix, err)
	}
	return out, nil
}

func (b *badgerKV) Apply(puts map[string][]byte, deletes []string) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for _, k := range deletes {
		if _, overwritten := puts[k]; overwritten {
			continue
		}
		if err := wb.Delete([]byte(k)); err != nil {
			return fmt.Errorf("badger: delete %q: %w", k, err)
		}
	}
	for k, v := range puts {
		if err := wb.Set([]byte(k), v); err != nil {
			return fmt.Errorf("badger: set %q: %w", k, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badger: flush batch: %w", err)
	}
	return nil
}

func (b *badgerKV) Close() error {
	return b.db.Close()
}
