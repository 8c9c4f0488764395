// Package journal defines the operation journal written by the engine.
//
// Every operation the engine executes is appended as an Entry: its logical
// sequence number, request id, canonical arguments and outcome. Entry ids
// are content addressed (SHA-256 over a domain prefix and the canonical
// JSON of the entry's identity fields), so the same operation replayed at
// the same position produces the same id.
//
// Canonical JSON follows RFC 8785 for the subset the journal uses:
// object keys sorted by UTF-16 code units, NFC-normalized strings, no HTML
// escaping, integers only. Floats are rejected.
package journal
