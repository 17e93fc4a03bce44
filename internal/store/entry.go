package store

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type entry struct {
	key   Key
	value []byte
}

func newEntry(key Key, value []byte) *entry {
	return &entry{key: key, value: value}
}

func encodeEntry(r Record) (*entry, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrapf(err, "could not marshal record %+v", r)
	}

	return newEntry(r.Key(), b), nil
}

// clone returns a deep copy so callers never alias the indexed value.
func (ent *entry) clone() *entry {
	cp := entry{key: ent.key}
	cp.value = append([]byte(nil), ent.value...)
	return &cp
}
