package store

import (
	"strconv"
	"strings"
)

// Key is a composite primary key. Segments are separated by a colon,
// e.g. position:u-42:btc-lot-1 or price:bitcoin:1700000000.
type Key struct {
	key      string
	segments []string
}

func NewKey(segments ...string) Key {
	k := strings.Join(segments, ":")
	return Key{
		key:      k,
		segments: segments,
	}
}

func ParseKey(k string) Key {
	return Key{
		key:      k,
		segments: strings.Split(k, ":"),
	}
}

func (k *Key) Match(patterns []string) bool {
	if len(patterns) == 0 || (len(patterns) == 1 && patterns[0] == "*") {
		return true
	}

	for i := 0; i < len(patterns); i++ {
		if i > len(k.segments)-1 {
			return patterns[i] == "*"
		}

		if patterns[i] != k.segments[i] && patterns[i] != "*" {
			return false
		}
	}

	return true
}

func (k *Key) Equal(other *Key) bool {
	return k.key == other.key
}

func (k *Key) String() string {
	return k.key
}

func (k *Key) HasPrefix(prefix Key) bool {
	if len(prefix.segments) > len(k.segments) {
		return false
	}

	for i := range prefix.segments {
		if k.segments[i] != prefix.segments[i] {
			return false
		}
	}

	return true
}

func (k *Key) Less(other Key) bool {
	l := smallestSegmentLen(k.segments, other.segments)

	prevEq := false
	for i := 0; i < l; i++ {
		// try to compare as ints
		bothInts, a, b := convertToINTs(k.segments[i], other.segments[i])
		if bothInts {
			if a != b {
				return a < b
			}

			prevEq = true
			continue
		}

		// try to compare as strings
		if k.segments[i] != other.segments[i] {
			return k.segments[i] < other.segments[i]
		}

		prevEq = k.segments[i] == other.segments[i]
	}

	return prevEq && len(other.segments) > len(k.segments)
}

func byKeys(a, b interface{}) bool {
	i1, i2 := a.(*entry), b.(*entry)
	return i1.key.Less(i2.key)
}

func smallestSegmentLen(a, b []string) int {
	if len(a) > len(b) {
		return len(b)
	}

	return len(a)
}

func convertToINTs(a, b string) (bool, int, int) {
	if a == "" || b == "" || a[0] == '0' || b[0] == '0' {
		return false, 0, 0
	}

	an, err := strconv.Atoi(a)
	if err != nil {
		return false, 0, 0
	}

	bn, err := strconv.Atoi(b)
	if err != nil {
		return false, 0, 0
	}

	return true, an, bn
}
