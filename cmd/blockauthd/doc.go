/*
blockauthd is the single binary that runs both roles of the block
access token service: serve-master mints and rotates keys and
publishes snapshots; serve-slave pulls snapshots and verifies tokens
locally. mint and inspect-key are offline operator tools that open a
master's checkpoint directory directly, without starting a daemon.
*/
package main
