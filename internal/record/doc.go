// Package record provides the data contracts shared by every other package:
// dimension schemas, source records, historical versions, attribute values,
// and the content fingerprint computed over business attributes.
//
// This package imports nothing internal. store, engine, report and harness
// all import record; record never imports them.
//
// Key design constraints:
//   - NO float types in attribute values - numerics are exact decimals
//   - Fingerprints cover business attributes only, in schema column order
//   - Timestamps are fixed-width UTC strings so lexical order equals time order
package record
