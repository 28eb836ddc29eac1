// Package securestore persists structured values inside tamper-evident
// envelopes on top of a pluggable key-value backend.
//
// Each write wraps the serialized value in a versioned envelope carrying a
// salted argon2id integrity tag. Reads recompute the tag over the decoded
// payload and compare it with a constant-time check; any mismatch — manual
// edits, corruption, a foreign envelope version — is reported as "absent"
// and the offending entry is deleted, never returned partially trusted.
//
// The integrity tag is a tamper and corruption detector, not a
// confidentiality mechanism: there is no key to recover and the payload is
// plain base64. Anyone with access to the backing store can read it. Do not
// upgrade the envelope to reversible encryption and treat it as a security
// boundary; the threat model deliberately accepts device-local readability.
package securestore
