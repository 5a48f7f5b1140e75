// Package ir provides the canonical value model for world-state records.
//
// Every record and every transaction response is serialized with
// MarshalCanonical (RFC 8785), so endorsing nodes that execute the same
// transaction agree byte for byte. ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere; numbers are int64
//   - null is rejected on both encode and strict decode
//   - Strings are NFC normalized at the serialization boundary
package ir
