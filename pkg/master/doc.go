/*
Package master wires together the token registry, checkpoint storage,
and rotation scheduling a block token master daemon needs: it owns a
tokenauth.Manager in the master role, persists its registry through
package storage, and drives rotation on a ticker the way the rest of
this codebase runs its background loops.

It is the master-side counterpart to package slave.
*/
package master
