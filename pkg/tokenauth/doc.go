/*
Package tokenauth implements the block access token authority shared by a
distributed file system's naming service ("master") and its storage nodes
("slaves"). Clients obtain short-lived, HMAC-authenticated tokens from a
master and present them to slaves, which verify the tokens locally without
contacting the master on every request.

# Architecture

	┌───────────────────────── TOKEN AUTHORITY ─────────────────────────┐
	│                                                                     │
	│  ┌────────────────────────┐        ┌────────────────────────┐    │
	│  │     Master Manager      │        │     Slave Manager       │    │
	│  │  - generates BlockKeys  │ export │  - imports key sets     │    │
	│  │  - mints Tokens         │ ─────▶ │  - verifies Tokens       │    │
	│  │  - rotates on schedule  │        │  - no minting           │    │
	│  └───────────┬─────────────┘        └───────────┬─────────────┘    │
	│              │                                    │                 │
	│              ▼                                    ▼                 │
	│  ┌─────────────────────────────────────────────────────────┐       │
	│  │                     KeyRegistry                         │       │
	│  │  all_keys: map[key_id]BlockKey                          │       │
	│  │  current, next: key_id handles                          │       │
	│  │  serial_no: 32-bit allocator, high bit = authority index│       │
	│  └─────────────────────────────────────────────────────────┘       │
	└─────────────────────────────────────────────────────────────────────┘

# Key rotation

A master keeps a current key and a pre-generated next key. On each
rotation (caller-scheduled, typically every key_update_interval):

  1. evict keys past their expiry
  2. retire current, giving it a final expiry of now + keyUpdateInterval + tokenLifetime
  3. promote next to current, expiry now + 2*keyUpdateInterval + tokenLifetime
  4. generate a fresh next key, expiry now + 3*keyUpdateInterval + tokenLifetime

The 2x/3x margins guarantee a token minted moments before a rotation
remains verifiable for its full lifetime, even if a slave is slow to
observe the next exported snapshot.

# Multi-authority serial numbers

Two masters forming an HA pair are constructed with nnIndex 0 and 1.
Every allocated key_id has its sign bit set from nnIndex, so the two
masters' key_id streams can never collide; a slave can hold both
authorities' keys in one registry unambiguously.

# Token layout

A TokenIdentifier is a deterministic, versioned binary encoding (see
codec.go): zig-zag varints for the integer fields, length-prefixed
UTF-8 for strings, so masters and slaves compiled independently still
agree on the wire format.
*/
package tokenauth
