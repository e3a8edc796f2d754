/*
Package storage provides BoltDB-backed persistence for a master's key
registry checkpoint.

A master keeps its live registry in memory (see package tokenauth); this
package exists so a restart can recover the current key and every other
live key instead of minting only a fresh pair that slaves have never seen.
The restored master's next key is a freshly generated one, not the
checkpointed one. CheckpointStore wraps
a single BoltDB file with two buckets: one holding the last exported
registry envelope, the other holding the master's configured
multi-authority index, so a misconfigured restart with a different index
can be detected rather than silently minting colliding key IDs.

# Architecture

	┌──────────────── CHECKPOINT STORAGE ────────────────┐
	│                                                      │
	│  ┌────────────────────────────────────────┐        │
	│  │           CheckpointStore                │        │
	│  │  - File: <dataDir>/blockauth.db          │        │
	│  │  - Format: B+tree with MVCC              │        │
	│  └──────────────────┬───────────────────────┘        │
	│                     │                                 │
	│  ┌──────────────────▼───────────────────────┐        │
	│  │              Buckets                       │        │
	│  │  checkpoint: envelope -> encoded snapshot  │        │
	│  │  meta:       nn_index -> authority index   │        │
	│  └────────────────────────────────────────────┘        │
	└──────────────────────────────────────────────────────┘

Checkpoints are written using the same deterministic binary envelope
codec the wire format uses (tokenauth.EncodeEnvelope), not JSON: the
checkpoint and the snapshot a slave receives over the network are the
same bytes, so there is exactly one encoding to get right.
*/
package storage
