package store

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

var ErrTxReadOnly = errors.New("transaction is read only")

type stagedOp struct {
	op  string
	key Key
	ent *entry
}

// Tx stages writes until commit. Reads observe staged writes of the
// same transaction; prefix scans observe committed state only.
type Tx struct {
	db       *DB
	ctx      context.Context
	readOnly bool
	staged   []stagedOp
}

func (x *Tx) lookup(key Key) (*entry, bool) {
	for i := len(x.staged) - 1; i >= 0; i-- {
		if !x.staged[i].key.Equal(&key) {
			continue
		}

		if x.staged[i].op == opDel {
			return nil, false
		}

		return x.staged[i].ent, true
	}

	found := x.db.pks.Get(&entry{key: key})
	if found == nil {
		return nil, false
	}

	ent, ok := found.(*entry)
	if !ok {
		panic(castPanic)
	}

	return ent, true
}

// Insert adds a new record and fails when its key is already taken.
func (x *Tx) Insert(r Record) error {
	if x.readOnly {
		return ErrTxReadOnly
	}

	key := r.Key()
	if _, ok := x.lookup(key); ok {
		return errors.Wrapf(ErrKeyAlreadyExists, "key %s", key.String())
	}

	ent, err := encodeEntry(r)
	if err != nil {
		return err
	}

	x.staged = append(x.staged, stagedOp{op: opSet, key: key, ent: ent})
	return nil
}

// Upsert adds a record, replacing any existing one under the same key.
func (x *Tx) Upsert(r Record) error {
	if x.readOnly {
		return ErrTxReadOnly
	}

	ent, err := encodeEntry(r)
	if err != nil {
		return err
	}

	x.staged = append(x.staged, stagedOp{op: opSet, key: r.Key(), ent: ent})
	return nil
}

func (x *Tx) Delete(key Key) error {
	if x.readOnly {
		return ErrTxReadOnly
	}

	if _, ok := x.lookup(key); !ok {
		return errors.Wrapf(ErrKeyNotFound, "key %s", key.String())
	}

	x.staged = append(x.staged, stagedOp{op: opDel, key: key})
	return nil
}

func (x *Tx) Has(key Key) bool {
	_, ok := x.lookup(key)
	return ok
}

// Get unmarshals the record under key into dest.
func (x *Tx) Get(key Key, dest interface{}) error {
	ent, ok := x.lookup(key)
	if !ok {
		return errors.Wrapf(ErrKeyNotFound, "key %s", key.String())
	}

	if err := json.Unmarshal(ent.value, dest); err != nil {
		return errors.Wrapf(err, "could not unmarshal record under key %s", key.String())
	}

	return nil
}

// ScanPrefix walks committed entries whose keys start with prefix in
// ascending key order. The iterator receives a copy of the stored bytes
// and returns false to stop early.
func (x *Tx) ScanPrefix(prefix Key, fn func(key Key, data []byte) bool) error {
	x.db.pks.Ascend(&entry{key: prefix}, func(i interface{}) bool {
		if x.ctx != nil && x.ctx.Err() != nil {
			return false
		}

		ent, ok := i.(*entry)
		if !ok {
			panic(castPanic)
		}

		if !ent.key.HasPrefix(prefix) {
			return false
		}

		cp := ent.clone()
		return fn(cp.key, cp.value)
	})

	if x.ctx != nil && x.ctx.Err() != nil {
		return x.ctx.Err()
	}

	return nil
}

func (x *Tx) Count() int {
	return x.db.pks.Len()
}

func (x *Tx) commit() error {
	if len(x.staged) == 0 {
		return nil
	}

	commands := make([]logCommand, 0, len(x.staged))

	for i := range x.staged {
		op := x.staged[i]

		switch op.op {
		case opSet:
			x.db.pks.Set(op.ent)
			commands = append(commands, setCommand(op.ent))
		case opDel:
			if existing := x.db.pks.Delete(&entry{key: op.key}); existing != nil {
				x.db.totalDeletes++
			}
			commands = append(commands, delCommand(op.key))
		}
	}

	x.staged = nil

	if x.db.log != nil {
		return x.db.log.append(commands)
	}

	return nil
}

func (x *Tx) rollback() {
	x.staged = nil
}
