package store

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/btree"
)

const InMemory = ":memory:"

var ErrKeyAlreadyExists = errors.New("key already exists")
var ErrKeyNotFound = errors.New("key not found")
var ErrDatabaseClosed = errors.New("database already closed")

const castPanic = "how could a primary key item not be of type *entry"

// Config tunes persistence behaviour. The zero value means synchronous
// flushes and compaction on close only.
type Config struct {
	FlushStrategy        FlushStrategy
	AsyncFlushInterval   time.Duration
	DisableCompaction    bool
	CompactionInterval   time.Duration
	CompactionMinDeletes uint64
}

const defaultCompactionMinDeletes uint64 = 1000

var defaultCompactionInterval = 10 * time.Minute
var defaultAsyncFlushInterval = 1 * time.Second

func (cfg *Config) setDefaults() {
	if cfg.FlushStrategy == "" {
		cfg.FlushStrategy = FlushSync
	}

	if cfg.FlushStrategy == FlushAsync && cfg.AsyncFlushInterval == 0 {
		cfg.AsyncFlushInterval = defaultAsyncFlushInterval
	}

	if cfg.CompactionInterval == 0 {
		cfg.CompactionInterval = defaultCompactionInterval
	}

	if cfg.CompactionMinDeletes == 0 {
		cfg.CompactionMinDeletes = defaultCompactionMinDeletes
	}
}

type DB struct {
	mu           sync.RWMutex
	cfg          Config
	pks          *btree.BTree
	log          *commandLog
	stopCh       chan struct{}
	totalDeletes uint64
	closed       bool
}

// Open loads (or creates) the database at path. Pass store.InMemory to
// run without persistence.
func Open(path string, cfg Config) (*DB, error) {
	cfg.setDefaults()

	db := &DB{
		cfg:    cfg,
		pks:    btree.NewNonConcurrent(byKeys),
		stopCh: make(chan struct{}, 1),
	}

	if path != InMemory {
		l, err := openCommandLog(path, cfg.FlushStrategy)
		if err != nil {
			return nil, err
		}
		db.log = l

		if err := l.replay(db.applyCommand); err != nil {
			_ = l.close()
			return nil, err
		}

		if cfg.FlushStrategy == FlushAsync {
			go db.asyncFlush(cfg.AsyncFlushInterval)
		}

		if !cfg.DisableCompaction {
			go db.scheduleCompaction(cfg.CompactionInterval)
		}
	}

	return db, nil
}

func (db *DB) applyCommand(cmd logCommand) error {
	key := ParseKey(cmd.Key)

	switch cmd.Op {
	case opSet:
		db.pks.Set(newEntry(key, cmd.Doc))
	case opDel:
		db.pks.Delete(&entry{key: key})
	}

	return nil
}

func (db *DB) asyncFlush(d time.Duration) {
	t := time.NewTicker(d)

	for {
		select {
		case <-db.stopCh:
			t.Stop()
			return
		case <-t.C:
			db.mu.Lock()
			if db.closed {
				db.mu.Unlock()
				return
			}
			if err := db.log.sync(); err != nil {
				panic(err)
			}
			db.mu.Unlock()
		}
	}
}

func (db *DB) scheduleCompaction(d time.Duration) {
	t := time.NewTicker(d)

	for {
		select {
		case <-db.stopCh:
			t.Stop()
			return
		case <-t.C:
			db.mu.Lock()
			if db.closed {
				db.mu.Unlock()
				return
			}
			if db.totalDeletes < db.cfg.CompactionMinDeletes {
				db.mu.Unlock()
				continue
			}

			if err := db.compactUnderLock(); err != nil {
				panic(err)
			}
			db.totalDeletes = 0
			db.mu.Unlock()
		}
	}
}

// compactUnderLock rewrites the log so it contains exactly the live set.
func (db *DB) compactUnderLock() error {
	if db.log == nil {
		return nil
	}

	buf := &bytes.Buffer{}
	var serializeErr error

	db.pks.Ascend(nil, func(i interface{}) bool {
		ent, ok := i.(*entry)
		if !ok {
			panic(castPanic)
		}

		b, err := json.Marshal(setCommand(ent))
		if err != nil {
			serializeErr = errors.Wrapf(err, "could not serialize key %s for compaction", ent.key.String())
			return false
		}

		buf.Write(b)
		buf.WriteByte('\n')
		return true
	})

	if serializeErr != nil {
		return serializeErr
	}

	return db.log.writeAndSwap(buf)
}

func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrDatabaseClosed
	}

	close(db.stopCh)

	if db.log != nil {
		if !db.cfg.DisableCompaction {
			if err := db.compactUnderLock(); err != nil {
				return err
			}
		}

		if err := db.log.close(); err != nil {
			return err
		}
	}

	db.pks = nil
	db.log = nil
	db.closed = true
	return nil
}

func (db *DB) Count() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return 0
	}

	return db.pks.Len()
}

type UserCallback func(tx *Tx) error

// View runs cb inside a read-only transaction.
func (db *DB) View(ctx context.Context, cb UserCallback) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return ErrDatabaseClosed
	}

	tx := Tx{db: db, ctx: ctx, readOnly: true}

	if err := cb(&tx); err != nil {
		return errors.Wrap(err, "db read failed")
	}

	return nil
}

// Update runs cb inside a writable transaction. Writes are staged and
// applied only when cb returns nil; on error nothing reaches the index
// or the log.
func (db *DB) Update(ctx context.Context, cb UserCallback) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrDatabaseClosed
	}

	tx := Tx{db: db, ctx: ctx}

	if err := cb(&tx); err != nil {
		tx.rollback()
		return errors.Wrap(err, "db write failed. rolled back")
	}

	return tx.commit()
}
