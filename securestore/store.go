package securestore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// StorageError wraps a backend failure with the operation and key it hit.
// Callers decide whether a failed persist matters; the store never retries.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("securestore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Options carries optional store collaborators.
type Options struct {
	// Logger receives corruption and backend-failure records. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// OnCorruption is invoked with the key whenever an envelope fails its
	// integrity or format checks on read. May be nil.
	OnCorruption func(key string)

	// Now overrides the write timestamp source. Defaults to time.Now.
	Now func() time.Time
}

// Store wraps a KV backend with integrity-checked envelopes. A value only
// comes back from Get if its tag verifies; everything else reads as absent.
type Store struct {
	kv           KV
	digest       *Digest
	logger       *slog.Logger
	onCorruption func(key string)
	now          func() time.Time
	corruptions  atomic.Uint64
}

// NewStore builds a Store over kv using the given digest configuration.
func NewStore(kv KV, digestCfg DigestConfig, opts Options) (*Store, error) {
	if kv == nil {
		return nil, fmt.Errorf("securestore: nil KV backend")
	}

	digest, err := NewDigest(digestCfg)
	if err != nil {
		return nil, fmt.Errorf("securestore: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		kv:           kv,
		digest:       digest,
		logger:       logger,
		onCorruption: opts.OnCorruption,
		now:          now,
	}, nil
}

// Put serializes value, tags it, and writes the envelope at key, replacing
// any previous envelope. A non-nil return is always a *StorageError; the
// caller must treat it as "value may not survive reload", not as fatal.
func (s *Store) Put(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return &StorageError{Op: "put", Key: key, Err: err}
	}

	tag, err := s.digest.Tag(payload)
	if err != nil {
		return &StorageError{Op: "put", Key: key, Err: err}
	}

	env := envelope{
		Version:   envelopeVersion,
		Tag:       tag,
		Payload:   base64.StdEncoding.EncodeToString(payload),
		WrittenAt: s.now().UnixMilli(),
	}

	if err := s.kv.Set(ctx, key, encodeEnvelope(env)); err != nil {
		s.logger.Warn("securestore put failed", "key", key, "error", err)
		return &StorageError{Op: "put", Key: key, Err: err}
	}

	return nil
}

// Get reads the envelope at key, verifies it, and unmarshals the payload
// into dest. It returns false when the key is absent or the envelope fails
// any check — malformed layout, unknown version, integrity mismatch, payload
// that no longer unmarshals. Failed envelopes are deleted so the next read
// is a clean miss. Only backend I/O failures return an error.
func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, &StorageError{Op: "get", Key: key, Err: err}
	}
	if !found {
		return false, nil
	}

	env, err := parseEnvelope(raw)
	if err != nil {
		s.discardCorrupt(ctx, key, err)
		return false, nil
	}

	payload, err := base64.StdEncoding.DecodeString(env.Payload)
	if err != nil {
		s.discardCorrupt(ctx, key, err)
		return false, nil
	}

	ok, err := s.digest.Verify(payload, env.Tag)
	if err != nil {
		s.discardCorrupt(ctx, key, err)
		return false, nil
	}
	if !ok {
		s.discardCorrupt(ctx, key, fmt.Errorf("integrity tag mismatch"))
		return false, nil
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		s.discardCorrupt(ctx, key, err)
		return false, nil
	}

	return true, nil
}

// Remove deletes the envelope at key. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	return s.RemoveMany(ctx, key)
}

// RemoveMany deletes every given key unconditionally.
func (s *Store) RemoveMany(ctx context.Context, keys ...string) error {
	if err := s.kv.Del(ctx, keys...); err != nil {
		s.logger.Warn("securestore delete failed", "keys", keys, "error", err)
		return &StorageError{Op: "remove", Key: fmt.Sprint(keys), Err: err}
	}
	return nil
}

// Corruptions reports how many reads have been discarded by failed envelope
// checks since the store was created.
func (s *Store) Corruptions() uint64 {
	return s.corruptions.Load()
}

func (s *Store) discardCorrupt(ctx context.Context, key string, cause error) {
	s.corruptions.Add(1)
	s.logger.Warn("securestore envelope rejected", "key", key, "cause", cause)

	if s.onCorruption != nil {
		s.onCorruption(key)
	}

	// Self-heal: the entry can never verify again, so drop it.
	if err := s.kv.Del(ctx, key); err != nil {
		s.logger.Warn("securestore corrupt entry cleanup failed", "key", key, "error", err)
	}
}
