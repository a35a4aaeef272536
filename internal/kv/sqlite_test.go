package kv

import (
	"testing"

	"github.com/dokzlo13/huedash/internal/db"
)

type sample struct {
	Name  string  `json:"name"`
	Level float64 `json:"level"`
}

func newTestBucket(t *testing.T, name string) (*SQLiteBucket, *db.DB) {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewSQLiteBucket(database.DB, name), database
}

func TestSQLiteBucket_PutGet(t *testing.T) {
	b, _ := newTestBucket(t, "presets")

	if err := b.Put("a", sample{Name: "first", Level: 0.5}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := b.Put("a", sample{Name: "second", Level: 1}); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}

	var got sample
	ok, err := b.Get("a", &got)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if got.Name != "second" || got.Level != 1 {
		t.Errorf("got = %+v", got)
	}

	ok, err = b.Get("missing", &got)
	if err != nil || ok {
		t.Errorf("Get(missing) = %v, %v", ok, err)
	}
}

func TestSQLiteBucket_BucketsAreIsolated(t *testing.T) {
	a, database := newTestBucket(t, "a")
	other := NewSQLiteBucket(database.DB, "b")

	a.Put("k", 1)
	other.Put("k", 2)

	var got int
	a.Get("k", &got)
	if got != 1 {
		t.Errorf("bucket a value = %d", got)
	}

	keys, err := other.Keys()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 1 || keys[0] != "k" {
		t.Errorf("keys = %v", keys)
	}
}

func TestSQLiteBucket_DeleteAndKeys(t *testing.T) {
	b, _ := newTestBucket(t, "presets")
	for _, k := range []string{"c", "a", "b"} {
		b.Put(k, k)
	}

	existed, err := b.Delete("b")
	if err != nil || !existed {
		t.Fatalf("Delete() = %v, %v", existed, err)
	}
	existed, _ = b.Delete("b")
	if existed {
		t.Error("second Delete() reported existing key")
	}

	keys, _ := b.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "c" {
		t.Errorf("keys = %v, want [a c]", keys)
	}
}
