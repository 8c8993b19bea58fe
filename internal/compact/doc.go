// Package compact builds the identifiers and hashes a claim submitter needs
// for resource locks: packed lock tags, token and claimant ids, compact
// allocator ids, EIP-712 claim hashes, claim payloads and registration slots.
//
// Everything here is a pure function of its inputs except SignCompact, which
// defers to an injected Signer.
package compact
