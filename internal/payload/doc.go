// Package payload builds the canonical byte strings whose digests get
// anchored. A payload is a tag followed by its fields joined with ':'.
// Producers and verifiers must use exactly these rules: field order,
// fixed 8-decimal rendering of reals and the separator are all part of
// the digest.
//
// The three payload kinds share one implementation, Payload[B]; each kind
// only contributes its tag and its ordered field list.
package payload
