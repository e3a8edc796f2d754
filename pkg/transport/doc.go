/*
Package transport defines the publish/import boundary between a block
token master and its slaves, and wires the daemons' gRPC
liveness/readiness probes.

The actual RPC that carries a key snapshot from master to slave is
deliberately not specified here beyond two interfaces: whatever
carries the bytes (gRPC, HTTP, a message bus) only needs to move an
encoded envelope from one side to the other. HTTPPublisher and
FetchSnapshot are the reference transport, grounded in the plain
net/http handlers this codebase otherwise uses for health and metrics
endpoints. HealthServer is unrelated to key distribution: it registers
the standard gRPC health checking protocol so an orchestrator can
probe a daemon without a bespoke RPC; serve-master starts one,
serve-slave does not.
*/
package transport
