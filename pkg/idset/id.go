// Package idset implements the 128-bit identifiers shared by every other
// package in the pipeline: asset ids, artifact ids, schema fingerprints, and
// the UUIDs plug-ins use to name importers, job types and asset types.
//
// All of these are structurally the same thing (16 raw bytes), so they share
// one underlying type, ID, with typed aliases layered on top for clarity at
// call sites.
package idset

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
)

// ID is a 128-bit identifier: an asset id, artifact id, schema fingerprint,
// importer id, job type id, or asset type id.
type ID [16]byte

// Nil is the zero-value ID, used to mean "no prototype", "no parent", etc.
var Nil ID

// IsNil reports whether id is the all-zero identifier.
func (id ID) IsNil() bool {
	return id == Nil
}

// String renders the id as hyphenated hex, matching UUID's canonical text
// form since every ID in this package is interchangeable with a UUID.
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText implements encoding.TextMarshaler so IDs serialize cleanly as
// map keys and struct fields in the id-based data source's text format.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return fmt.Errorf("idset: invalid id %q: %w", text, err)
	}
	*id = ID(parsed)
	return nil
}

// New allocates a fresh random ID, used when the editor or an importer
// mints a new asset id.
func New() ID {
	return ID(uuid.New())
}

// FromHex parses a plain (non-hyphenated) hex string into an ID, used when
// reading artifact filenames of the form "<artifact-uuid>.bf".
func FromHex(s string) (ID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Nil, fmt.Errorf("idset: invalid hex id %q: %w", s, err)
	}
	if len(b) != 16 {
		return Nil, errors.New("idset: hex id must decode to 16 bytes")
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

// Hex renders the id as plain lowercase hex with no hyphens, the form used
// for on-disk artifact and import-data filenames.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

// Hash128 derives a 128-bit id deterministically from an arbitrary sequence
// of byte blobs, concatenated in order. This is the hash128(...) primitive
// used throughout for keyed artifact ids (hash128(asset_id, key)), job ids
// (hash128(job_type, input)), and schema fingerprints.
//
// FNV-1a/128 is the stdlib's only built-in 128-bit hash and its output size
// (16 bytes) maps exactly onto ID without truncation or padding, so no
// third-party hashing library is pulled in for this (see DESIGN.md).
func Hash128(parts ...[]byte) ID {
	h := fnv.New128a()
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

// Hash64 derives a 64-bit content hash, used for the .if file's
// import-data contents hash and similar staleness-check fields that call
// for a plain u64 rather than a full 128-bit id.
func Hash64(parts ...[]byte) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	return h.Sum64()
}

// Typed aliases so function signatures read by role rather than by the
// single underlying representation, while still sharing ID's comparability,
// zero value, and hashing helpers.
type (
	AssetId           = ID
	ArtifactId        = ID
	SchemaFingerprint = ID
	ImporterId        = ID
	JobTypeId         = ID
	AssetTypeId       = ID
)

// DefaultArtifactId returns the default artifact id for an asset: simply
// the asset's own id, so an asset's primary artifact needs no separate id
// allocation or lookup table.
func DefaultArtifactId(asset AssetId) ArtifactId {
	return asset
}

// KeyedArtifactId derives a keyed artifact id as hash128(asset_id || key):
// deterministic and content-addressable from the producing asset and its
// key.
func KeyedArtifactId(asset AssetId, key string) ArtifactId {
	return Hash128(asset[:], []byte(key))
}

// JobId derives a job id from a job type and its gob-serialized input as
// hash128(job_type || input). Identical (type, input) therefore identifies
// the same job.
func JobId(jobType JobTypeId, encodedInput []byte) ID {
	return Hash128(jobType[:], encodedInput)
}
