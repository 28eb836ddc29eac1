package securestore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// envelopeVersion is the current envelope format tag. Bump it when the
// delimited layout changes; readers treat unknown versions as absent, so a
// bump silently discards entries written by older builds.
const envelopeVersion = "v1"

const envelopeFieldCount = 4

// envelope is the unit persisted in the key-value backend:
//
//	version:integrityTag:payload:writtenAt
//
// payload is base64 of the serialized value, writtenAt is Unix milliseconds
// at write time. The integrity tag is a PHC string and the payload is
// standard base64, so neither can contain the colon delimiter.
type envelope struct {
	Version   string
	Tag       string
	Payload   string
	WrittenAt int64
}

var errEnvelopeMalformed = errors.New("malformed envelope")

func encodeEnvelope(env envelope) string {
	return fmt.Sprintf("%s:%s:%s:%d", env.Version, env.Tag, env.Payload, env.WrittenAt)
}

func parseEnvelope(raw string) (envelope, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != envelopeFieldCount {
		return envelope{}, errEnvelopeMalformed
	}

	if parts[0] != envelopeVersion {
		return envelope{}, fmt.Errorf("unknown envelope version %q", parts[0])
	}

	writtenAt, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return envelope{}, errEnvelopeMalformed
	}

	return envelope{
		Version:   parts[0],
		Tag:       parts[1],
		Payload:   parts[2],
		WrittenAt: writtenAt,
	}, nil
}
