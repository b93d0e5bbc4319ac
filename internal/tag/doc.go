// Package tag defines the domain types shared across shelftrack: item tag
// keys, item and reader records, the item status enum, and normalized
// detection events.
//
// Keys are the identity of everything in the system. A key is decoded from a
// raw sensor frame by the bridge (see ExtractKey) and normalized to NFC
// uppercase before it enters the engine. Two byte sequences that render the
// same glyphs must produce the same key, so normalization happens exactly
// once, at the boundary.
package tag
