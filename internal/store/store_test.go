package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendFactory func(t *testing.T) KV

func backends() map[string]backendFactory {
	return map[string]backendFactory{
		"memory": func(t *testing.T) KV {
			return NewMemory()
		},
		"sqlite": func(t *testing.T) KV {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
			require.NoError(t, err)
			return s
		},
		"badger": func(t *testing.T) KV {
			b, err := OpenBadger(BadgerConfig{InMemory: true})
			require.NoError(t, err)
			return b
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, kv KV)) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			kv := open(t)
			t.Cleanup(func() { kv.Close() })
			fn(t, kv)
		})
	}
}

func TestKV_GetMissing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kv KV) {
		_, err := kv.Get(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestKV_InsertUpdateDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kv KV) {
		ctx := context.Background()

		require.NoError(t, kv.AtomicCommit(ctx, []Write{{Key: "a", Value: []byte("1")}}))
		rec, err := kv.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), rec.Value)
		assert.Equal(t, uint64(1), rec.Version)

		require.NoError(t, kv.AtomicCommit(ctx, []Write{{Key: "a", Value: []byte("2"), Version: 1}}))
		rec, err = kv.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("2"), rec.Value)
		assert.Equal(t, uint64(2), rec.Version)

		require.NoError(t, kv.AtomicCommit(ctx, []Write{{Key: "a", Version: 2, Delete: true}}))
		_, err = kv.Get(ctx, "a")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestKV_InsertIfAbsent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		require.NoError(t, kv.AtomicCommit(ctx, []Write{{Key: "k", Value: []byte("first")}}))

		err := kv.AtomicCommit(ctx, []Write{{Key: "k", Value: []byte("second")}})
		assert.ErrorIs(t, err, ErrConflict)

		rec, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), rec.Value)
	})
}

func TestKV_CommitIsAllOrNothing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		require.NoError(t, kv.AtomicCommit(ctx, []Write{{Key: "quiz", Value: []byte("open")}}))

		err := kv.AtomicCommit(ctx, []Write{
			{Key: "student", Value: []byte("updated")},
			{Key: "quiz", Value: []byte("completed"), Version: 7},
		})
		require.ErrorIs(t, err, ErrConflict)

		_, err = kv.Get(ctx, "student")
		assert.ErrorIs(t, err, ErrNotFound, "first write of a failed commit must not be visible")
		rec, err := kv.Get(ctx, "quiz")
		require.NoError(t, err)
		assert.Equal(t, []byte("open"), rec.Value)
	})
}

func TestKV_ScanPrefix(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		require.NoError(t, kv.AtomicCommit(ctx, []Write{
			{Key: "item/b/2", Value: []byte("x")},
			{Key: "item/a/1", Value: []byte("y")},
			{Key: "item_/z", Value: []byte("z")},
			{Key: "other", Value: []byte("w")},
		}))

		recs, err := kv.Scan(ctx, "item/")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "item/a/1", recs[0].Key)
		assert.Equal(t, "item/b/2", recs[1].Key)
	})
}

func TestKV_ConcurrentUpdatesSingleWinner(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		require.NoError(t, kv.AtomicCommit(ctx, []Write{{Key: "c", Value: []byte("0")}}))

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = kv.AtomicCommit(ctx, []Write{{Key: "c", Value: []byte(fmt.Sprint(i)), Version: 1}})
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.True(t, errors.Is(err, ErrConflict), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, wins)

		rec, err := kv.Get(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, uint64(2), rec.Version)
	})
}

func TestKV_RejectsMalformedCommits(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kv KV) {
		ctx := context.Background()
		assert.Error(t, kv.AtomicCommit(ctx, []Write{{Key: ""}}))
		assert.Error(t, kv.AtomicCommit(ctx, []Write{{Key: "a"}, {Key: "a"}}))
		assert.Error(t, kv.AtomicCommit(ctx, []Write{{Key: "a", Delete: true}}))
	})
}

func TestJSONHelpers(t *testing.T) {
	kv := NewMemory()
	ctx := context.Background()

	type doc struct{ Name string }
	w, err := PutJSON("doc/1", doc{Name: "x"}, 0)
	require.NoError(t, err)
	require.NoError(t, kv.AtomicCommit(ctx, []Write{w}))

	var got doc
	v, err := GetJSON(ctx, kv, "doc/1", &got)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
	assert.Equal(t, "x", got.Name)
}

func TestMemory_FailNextCommit(t *testing.T) {
	kv := NewMemory()
	ctx := context.Background()
	boom := errors.New("disk on fire")

	kv.FailNextCommit(boom)
	err := kv.AtomicCommit(ctx, []Write{{Key: "a", Value: []byte("1")}})
	assert.ErrorIs(t, err, boom)
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, kv.AtomicCommit(ctx, []Write{{Key: "a", Value: []byte("1")}}))
}

func TestSQLite_PragmasApplied(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "p.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL = 1
	}
	for _, tt := range tests {
		var got string
		require.NoError(t, s.db.QueryRow("PRAGMA "+tt.pragma).Scan(&got))
		assert.Equal(t, tt.want, got, "PRAGMA %s", tt.pragma)
	}
}

func TestOpen_Memory(t *testing.T) {
	kv, err := Open(Config{Backend: BackendMemory}, nil)
	require.NoError(t, err)
	defer kv.Close()
	_, ok := kv.(*Memory)
	assert.True(t, ok)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(Config{Backend: "etcd", Path: "/tmp/x"}, nil)
	assert.Error(t, err)
}

func TestDefaultDBPath_Env(t *testing.T) {
	want := filepath.Join(t.TempDir(), "custom", "x.db")
	t.Setenv("ADAPTEST_DB", want)
	got, err := DefaultDBPath(BackendSQLite)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
