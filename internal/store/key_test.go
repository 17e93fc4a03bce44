package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey_Less(t *testing.T) {
	tt := []struct {
		key1 string
		key2 string
		less bool
	}{
		{"user:11", "user:100", true},
		{"user:1", "user:999", true},
		{"user:100", "user:11", false},
		{"watch:a", "watch:b", true},
		{"alert:a:2", "alert:b:1", true},
		{"user", "user:1", true},
		{"position", "user", true},
		{"position:9", "user:1", true},
		{"user:1", "user:1:pets", true},
		{"price:bitcoin:1700000000000000001", "price:bitcoin:1700000000000000002", true},
		{"price:bitcoin:1700000000000000002", "price:bitcoin:1700000000000000001", false},
		{"price:bitcoin:999", "price:ethereum:1", true},
		{"watch:u1:bitcoin", "watch:u1:bitcoin", false},
	}

	for _, tc := range tt {
		t.Run(tc.key1+"_"+tc.key2, func(t *testing.T) {
			a := ParseKey(tc.key1)
			b := ParseKey(tc.key2)

			assert.Equal(t, tc.less, a.Less(b))
		})
	}
}

func TestKey_HasPrefix(t *testing.T) {
	tt := []struct {
		key    string
		prefix Key
		want   bool
	}{
		{"position:u1:abc", NewKey("position", "u1"), true},
		{"position:u1", NewKey("position", "u1"), true},
		{"position:u12:abc", NewKey("position", "u1"), false},
		{"watch:u1:bitcoin", NewKey("position", "u1"), false},
		{"alert:u1:a1", NewKey("alert"), true},
	}

	for _, tc := range tt {
		t.Run(tc.key, func(t *testing.T) {
			k := ParseKey(tc.key)
			assert.Equal(t, tc.want, k.HasPrefix(tc.prefix))
		})
	}
}

func TestKey_Match(t *testing.T) {
	tt := []struct {
		key      string
		patterns []string
		want     bool
	}{
		{"watch:u1:bitcoin", nil, true},
		{"watch:u1:bitcoin", []string{"*"}, true},
		{"watch:u1:bitcoin", []string{"watch", "*", "bitcoin"}, true},
		{"watch:u1:bitcoin", []string{"watch", "u2", "*"}, false},
		{"watch:u1", []string{"watch", "u1", "*"}, true},
	}

	for _, tc := range tt {
		t.Run(tc.key, func(t *testing.T) {
			k := ParseKey(tc.key)
			assert.Equal(t, tc.want, k.Match(tc.patterns))
		})
	}
}
