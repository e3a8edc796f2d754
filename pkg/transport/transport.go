package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/nimbusfs/blockauth/pkg/tokenauth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// SnapshotPublisher is implemented by a master: it produces the
// current exported key registry to hand to slaves.
type SnapshotPublisher interface {
	Export() (*tokenauth.ExportedBlockKeys, error)
}

// SnapshotReceiver is implemented by a slave: it accepts a freshly
// fetched envelope and applies it to its local registry.
type SnapshotReceiver interface {
	Import(env *tokenauth.ExportedBlockKeys) error
}

// HealthServer wraps a gRPC server exposing the standard gRPC health
// checking protocol, the way a long-running daemon advertises
// liveness/readiness to an orchestrator without a bespoke RPC.
type HealthServer struct {
	grpcServer  *grpc.Server
	healthImpl  *health.Server
	serviceName string
}

// NewHealthServer creates a gRPC server with the health service
// registered and marked SERVING for serviceName.
func NewHealthServer(serviceName string) *HealthServer {
	grpcServer := grpc.NewServer()
	healthImpl := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthImpl)
	healthImpl.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	return &HealthServer{
		grpcServer:  grpcServer,
		healthImpl:  healthImpl,
		serviceName: serviceName,
	}
}

// Start listens on addr and serves health checks until Stop is called.
func (s *HealthServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.grpcServer.Serve(lis)
}

// SetNotServing flips the health status, e.g. while a master is still
// loading its checkpoint and should not receive traffic yet.
func (s *HealthServer) SetNotServing() {
	s.healthImpl.SetServingStatus(s.serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
}

// SetServing flips the health status back to serving.
func (s *HealthServer) SetServing() {
	s.healthImpl.SetServingStatus(s.serviceName, healthpb.HealthCheckResponse_SERVING)
}

// Stop gracefully stops the health server.
func (s *HealthServer) Stop() {
	s.grpcServer.GracefulStop()
}

// HTTPPublisher serves the master's current envelope over plain HTTP,
// for slaves to pull on their own schedule.
type HTTPPublisher struct {
	source SnapshotPublisher
}

// NewHTTPPublisher wraps a SnapshotPublisher (normally a master-role
// *tokenauth.Manager) for serving.
func NewHTTPPublisher(source SnapshotPublisher) *HTTPPublisher {
	return &HTTPPublisher{source: source}
}

// Handler returns the http.HandlerFunc a daemon mounts at the
// snapshot publication path (e.g. "/v1/snapshot").
func (p *HTTPPublisher) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		env, err := p.source.Export()
		if err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}

		data := tokenauth.EncodeEnvelope(env)

		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

// FetchSnapshot pulls and decodes the envelope at url, and is the
// slave-side counterpart to HTTPPublisher.
func FetchSnapshot(ctx context.Context, client *http.Client, url string) (*tokenauth.ExportedBlockKeys, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build snapshot request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch snapshot: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot body: %w", err)
	}

	return tokenauth.DecodeEnvelope(data)
}

// ApplySnapshot fetches and applies a snapshot in one call, the
// typical shape of a slave's periodic refresh.
func ApplySnapshot(ctx context.Context, client *http.Client, url string, receiver SnapshotReceiver) error {
	env, err := FetchSnapshot(ctx, client, url)
	if err != nil {
		return err
	}
	return receiver.Import(env)
}
