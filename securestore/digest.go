package securestore

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 8
	minTagLength   uint32 = 16
	algorithmID           = "argon2id"
)

// DigestConfig tunes the argon2id parameters used for integrity tags.
//
// The cost parameters are intentionally non-trivial so that brute-forcing a
// matching payload for a stolen tag stays expensive, but they run on every
// Put and should stay well below interactive password-hashing budgets.
type DigestConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	TagLength   uint32
}

// Digest computes and verifies salted one-way integrity tags in PHC string
// format. It is safe for concurrent use.
type Digest struct {
	config DigestConfig
}

type parsedTag struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	sum         []byte
	tagLength   uint32
}

// NewDigest validates cfg against the minimum cost bounds and returns a
// ready Digest.
func NewDigest(cfg DigestConfig) (*Digest, error) {
	if cfg.Memory < minMemoryKB {
		return nil, errors.New("digest memory below minimum")
	}
	if cfg.Time < minTimeCost {
		return nil, errors.New("digest time cost below minimum")
	}
	if cfg.Parallelism < minParallelism {
		return nil, errors.New("digest parallelism below minimum")
	}
	if cfg.SaltLength < minSaltLength {
		return nil, errors.New("digest salt length below minimum")
	}
	if cfg.TagLength < minTagLength {
		return nil, errors.New("digest tag length below minimum")
	}

	return &Digest{config: cfg}, nil
}

// Tag computes a fresh salted tag over payload. Each call draws a new random
// salt, so two tags over the same payload differ.
func (d *Digest) Tag(payload []byte) (string, error) {
	salt := make([]byte, d.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	sum := argon2.IDKey(
		payload,
		salt,
		d.config.Time,
		d.config.Memory,
		d.config.Parallelism,
		d.config.TagLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		d.config.Memory,
		d.config.Time,
		d.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(sum),
	), nil
}

// Verify recomputes the tag over payload using the parameters embedded in
// encodedTag and compares in constant time. A malformed tag verifies false
// with an error; a well-formed mismatch verifies false without one.
//
// The tag string comes from untrusted storage, so its cost parameters are
// only honored within [minimum, configured] bounds. Every tag this Digest
// writes uses exactly the configured costs; anything outside the bounds is
// tampering and must not get to pick how much work verification does.
func (d *Digest) Verify(payload []byte, encodedTag string) (bool, error) {
	parsed, err := parseTag(encodedTag, d.config)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		payload,
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		parsed.tagLength,
	)

	return subtle.ConstantTimeCompare(computed, parsed.sum) == 1, nil
}

func parseTag(encodedTag string, bounds DigestConfig) (*parsedTag, error) {
	parts := strings.Split(encodedTag, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid tag format")
	}

	if parts[1] != algorithmID {
		return nil, errors.New("unsupported tag algorithm")
	}

	if !strings.HasPrefix(parts[2], "v=") {
		return nil, errors.New("missing argon2 version")
	}
	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil {
		return nil, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	params, err := parseTagParams(parts[3], bounds)
	if err != nil {
		return nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, errors.New("invalid tag salt encoding")
	}
	if len(salt) < int(minSaltLength) || len(salt) > int(bounds.SaltLength) {
		return nil, errors.New("tag salt length out of bounds")
	}
	sum, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, errors.New("invalid tag sum encoding")
	}
	if len(sum) < int(minTagLength) || len(sum) > int(bounds.TagLength) {
		return nil, errors.New("tag sum length out of bounds")
	}

	params.salt = salt
	params.sum = sum
	params.tagLength = uint32(len(sum))

	return params, nil
}

func parseTagParams(segment string, bounds DigestConfig) (*parsedTag, error) {
	parsed := &parsedTag{}

	for _, kv := range strings.Split(segment, ",") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, errors.New("invalid tag parameters")
		}

		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, errors.New("invalid tag parameters")
		}

		switch key {
		case "m":
			if n < uint64(minMemoryKB) || n > uint64(bounds.Memory) {
				return nil, errors.New("tag memory parameter out of bounds")
			}
			parsed.memory = uint32(n)
		case "t":
			if n < uint64(minTimeCost) || n > uint64(bounds.Time) {
				return nil, errors.New("tag time parameter out of bounds")
			}
			parsed.time = uint32(n)
		case "p":
			if n < uint64(minParallelism) || n > uint64(bounds.Parallelism) {
				return nil, errors.New("tag parallelism parameter out of bounds")
			}
			parsed.parallelism = uint8(n)
		default:
			return nil, errors.New("unknown tag parameter")
		}
	}

	if parsed.memory == 0 || parsed.time == 0 || parsed.parallelism == 0 {
		return nil, errors.New("incomplete tag parameters")
	}

	return parsed, nil
}
