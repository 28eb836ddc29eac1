package securestore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *MapKV) {
	t.Helper()

	kv := NewMapKV()
	store, err := NewStore(kv, testDigestConfig(), Options{})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store, kv
}

type testRecord struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags"`
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	in := testRecord{Name: "alice", Count: 3, Tags: []string{"a", "b"}}
	if err := store.Put(ctx, "record", in); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var out testRecord
	found, err := store.Get(ctx, "record", &out)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("value not found after Put")
	}
	if out.Name != in.Name || out.Count != in.Count || len(out.Tags) != 2 {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestStoreOverwrites(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "k", "first"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "k", "second"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var out string
	found, err := store.Get(ctx, "k", &out)
	if err != nil || !found {
		t.Fatalf("Get failed: found=%v err=%v", found, err)
	}
	if out != "second" {
		t.Fatalf("expected latest write, got %q", out)
	}
}

func TestStoreGetAbsentKey(t *testing.T) {
	store, _ := newTestStore(t)

	var out string
	found, err := store.Get(context.Background(), "nothing", &out)
	if err != nil {
		t.Fatalf("Get errored on absent key: %v", err)
	}
	if found {
		t.Fatal("absent key reported as found")
	}
}

func TestStoreTamperedTagReadsAbsent(t *testing.T) {
	store, kv := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "token", "secret-value"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	raw, found, err := kv.Get(ctx, "token")
	if err != nil || !found {
		t.Fatalf("raw read failed: found=%v err=%v", found, err)
	}

	parts := strings.Split(raw, ":")
	if len(parts) != 4 {
		t.Fatalf("unexpected envelope layout: %q", raw)
	}
	// Flip one character inside the integrity tag.
	tag := []byte(parts[1])
	last := len(tag) - 1
	if tag[last] == 'A' {
		tag[last] = 'B'
	} else {
		tag[last] = 'A'
	}
	parts[1] = string(tag)
	if err := kv.Set(ctx, "token", strings.Join(parts, ":")); err != nil {
		t.Fatalf("raw write failed: %v", err)
	}

	var out string
	found, err = store.Get(ctx, "token", &out)
	if err != nil {
		t.Fatalf("Get errored: %v", err)
	}
	if found {
		t.Fatalf("tampered envelope returned a value: %q", out)
	}
	if store.Corruptions() != 1 {
		t.Fatalf("corruption counter = %d, want 1", store.Corruptions())
	}

	// Self-heal: the corrupt entry must be gone.
	if _, stillThere, _ := kv.Get(ctx, "token"); stillThere {
		t.Fatal("corrupt envelope was not deleted")
	}
}

func TestStoreRejectsForeignEnvelopes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"wrong field count", "v1:onlytwo"},
		{"unknown version", "v9:$argon2id$v=19$m=8192,t=1,p=1$c2FsdA==$c3Vt:cGF5bG9hZA==:123"},
		{"garbage", "not an envelope at all"},
		{"bad timestamp", "v1:$argon2id$v=19$m=8192,t=1,p=1$c2FsdA==$c3Vt:cGF5bG9hZA==:soon"},
		{"bad payload encoding", "v1:$argon2id$v=19$m=8192,t=1,p=1$c2FsdA==$c3Vt:!!!:123"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, kv := newTestStore(t)
			ctx := context.Background()

			if err := kv.Set(ctx, "k", tc.raw); err != nil {
				t.Fatalf("raw write failed: %v", err)
			}

			var out string
			found, err := store.Get(ctx, "k", &out)
			if err != nil {
				t.Fatalf("Get errored: %v", err)
			}
			if found {
				t.Fatalf("foreign envelope returned a value: %q", out)
			}
		})
	}
}

func TestStoreCorruptionHook(t *testing.T) {
	kv := NewMapKV()
	var corrupted []string
	store, err := NewStore(kv, testDigestConfig(), Options{
		OnCorruption: func(key string) { corrupted = append(corrupted, key) },
	})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	ctx := context.Background()
	if err := kv.Set(ctx, "broken", "v1:junk"); err != nil {
		t.Fatalf("raw write failed: %v", err)
	}

	var out string
	if found, _ := store.Get(ctx, "broken", &out); found {
		t.Fatal("broken envelope returned a value")
	}
	if len(corrupted) != 1 || corrupted[0] != "broken" {
		t.Fatalf("corruption hook calls = %v, want [broken]", corrupted)
	}
}

func TestStoreRemoveIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "k", "v"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := store.Remove(ctx, "k"); err != nil {
		t.Fatalf("second Remove errored: %v", err)
	}

	var out string
	if found, _ := store.Get(ctx, "k", &out); found {
		t.Fatal("value survived Remove")
	}
}

func TestStoreRemoveMany(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		if err := store.Put(ctx, k, k); err != nil {
			t.Fatalf("Put %q failed: %v", k, err)
		}
	}
	if err := store.RemoveMany(ctx, "a", "b", "missing"); err != nil {
		t.Fatalf("RemoveMany failed: %v", err)
	}

	var out string
	if found, _ := store.Get(ctx, "a", &out); found {
		t.Fatal("a survived RemoveMany")
	}
	if found, _ := store.Get(ctx, "c", &out); !found {
		t.Fatal("c was removed but not named")
	}
}

type failingKV struct {
	err error
}

func (f failingKV) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingKV) Set(context.Context, string, string) error         { return f.err }
func (f failingKV) Del(context.Context, ...string) error              { return f.err }

func TestStoreBackendFailuresAreTyped(t *testing.T) {
	backendErr := errors.New("backend down")
	store, err := NewStore(failingKV{err: backendErr}, testDigestConfig(), Options{})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	ctx := context.Background()

	putErr := store.Put(ctx, "k", "v")
	var storageErr *StorageError
	if !errors.As(putErr, &storageErr) {
		t.Fatalf("Put error not a *StorageError: %v", putErr)
	}
	if !errors.Is(putErr, backendErr) {
		t.Fatalf("Put error lost its cause: %v", putErr)
	}

	var out string
	_, getErr := store.Get(ctx, "k", &out)
	if !errors.As(getErr, &storageErr) {
		t.Fatalf("Get error not a *StorageError: %v", getErr)
	}
}

func newRedisStore(t *testing.T) (*Store, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	kv, err := NewRedisKV(rdb, "sk")
	if err != nil {
		t.Fatalf("NewRedisKV failed: %v", err)
	}
	store, err := NewStore(kv, testDigestConfig(), Options{})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	return store, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestStoreRedisBackend(t *testing.T) {
	store, done := newRedisStore(t)
	defer done()

	ctx := context.Background()
	if err := store.Put(ctx, "accessToken", "header.claims.sig"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var out string
	found, err := store.Get(ctx, "accessToken", &out)
	if err != nil || !found {
		t.Fatalf("Get failed: found=%v err=%v", found, err)
	}
	if out != "header.claims.sig" {
		t.Fatalf("unexpected value: %q", out)
	}

	if err := store.RemoveMany(ctx, "accessToken", "refreshToken"); err != nil {
		t.Fatalf("RemoveMany failed: %v", err)
	}
	if found, _ = store.Get(ctx, "accessToken", &out); found {
		t.Fatal("value survived RemoveMany")
	}
}
