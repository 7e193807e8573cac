// Package digest is the single SHA-256 entry point used by payload builders,
// the registry and the bridge. Every anchored value is a Digest.
package digest
