/*
Package log provides structured logging for the block token authority
using zerolog.

The log package wraps zerolog to give the master and slave daemons
JSON-structured logging with component-specific child loggers, a
configurable level, and a few helper functions for the logging
patterns the daemons actually need: rotation events, rejected
verifications, and snapshot import/export.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	roleLog := log.WithRole("master")
	roleLog.Info().Msg("rotated keys")

	keyLog := log.WithKeyID(keyID)
	keyLog.Warn().Msg("verification rejected")

# Design

Global Logger pattern: one package-level zerolog.Logger, initialized
once via Init, accessible from every package without being threaded
through constructors. Context loggers (WithRole, WithKeyID,
WithBlockPool) derive a child logger carrying one extra field, the way
structured logging libraries are meant to be used — avoid repeating
the same Str/Int calls at every call site.

Never log a key's secret bytes or a token's password bytes; only
key_id and block/pool identifiers are safe to log.
*/
package log
