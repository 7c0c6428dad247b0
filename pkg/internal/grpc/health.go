package grpc

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	health "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Probe checks one dependency of the daemon. A nil error is healthy.
type Probe func(ctx context.Context) error

// Check reports SERVING when every probe passes. The empty service name
// covers all probes, a named one checks only its own.
func (v *Server) Check(ctx context.Context, in *health.HealthCheckRequest) (*health.HealthCheckResponse, error) {
	probes := v.probes
	if name := in.GetService(); len(name) > 0 {
		probe, ok := v.probes[name]
		if !ok {
			return nil, status.Errorf(codes.NotFound, "unknown service %s", name)
		}
		probes = map[string]Probe{name: probe}
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	for name, probe := range probes {
		if err := probe(ctx); err != nil {
			log.Warn().Err(err).Str("probe", name).Msg("Health check failed...")
			return &health.HealthCheckResponse{
				Status: health.HealthCheckResponse_NOT_SERVING,
			}, nil
		}
	}

	return &health.HealthCheckResponse{
		Status: health.HealthCheckResponse_SERVING,
	}, nil
}

func (v *Server) Watch(in *health.HealthCheckRequest, stream health.Health_WatchServer) error {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	var last health.HealthCheckResponse_ServingStatus = -1
	for {
		resp, err := v.Check(stream.Context(), in)
		if err != nil {
			return err
		}
		if resp.GetStatus() != last {
			last = resp.GetStatus()
			if err := stream.Send(resp); err != nil {
				return err
			}
		}

		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case <-ticker.C:
		}
	}
}
