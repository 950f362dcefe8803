package grpc_control

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"market-pulse/src/config"
	"market-pulse/src/logger"
	"market-pulse/src/models"
)

// healthService is the name the feed's serving status is published under.
const healthService = "market_pulse.Feed"

// -----------------------------------------------------------------------------

// feedStatusFunc reports the feed connector's current status.
type feedStatusFunc func() models.MFeedStatus

// -----------------------------------------------------------------------------

// GRPCService runs the gRPC control plane: the standard health service, with
// the feed's serving status refreshed from the connector so external probes
// can tell a live feed from a disconnected one.
type GRPCService struct {
	Name string

	server     *grpc.Server
	listener   net.Listener
	health     *health.Server
	config     *config.Config
	logger     *logger.Logger
	feedStatus feedStatusFunc

	refresh *time.Ticker
	done    chan struct{}
}

// -----------------------------------------------------------------------------

// NewGRPCService creates the control service and binds its listener.
func NewGRPCService(cfg *config.Config, log *logger.Logger, feedStatus feedStatusFunc) (*GRPCService, error) {
	address := fmt.Sprintf("%s:%d", cfg.GRPC_Host, cfg.GRPC_Port)

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	return &GRPCService{
		Name:       "GRPCService",
		server:     grpc.NewServer(),
		listener:   listener,
		health:     health.NewServer(),
		config:     cfg,
		logger:     log,
		feedStatus: feedStatus,
		done:       make(chan struct{}),
	}, nil
}

// -----------------------------------------------------------------------------

// Start registers the health service and begins serving in the background.
func (g *GRPCService) Start() error {
	grpc_health_v1.RegisterHealthServer(g.server, g.health)
	g.health.SetServingStatus(healthService, g.servingStatus())

	go func() {
		if err := g.server.Serve(g.listener); err != nil && err != grpc.ErrServerStopped {
			g.logger.Error("%s : server failed: %v", g.Name, err)
		}
	}()

	g.refresh = time.NewTicker(5 * time.Second)
	go func() {
		for {
			select {
			case <-g.done:
				return
			case <-g.refresh.C:
				g.health.SetServingStatus(healthService, g.servingStatus())
			}
		}
	}()

	g.logger.Info("%s : listening on %s", g.Name, g.listener.Addr().String())
	return nil
}

// -----------------------------------------------------------------------------

// Stop gracefully stops the server, forcing the stop if the context expires
// first.
func (g *GRPCService) Stop(ctx context.Context) error {
	g.logger.Info("%s : shutting down", g.Name)

	close(g.done)
	if g.refresh != nil {
		g.refresh.Stop()
	}
	g.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		g.logger.Warning("%s : graceful shutdown timed out, forcing stop", g.Name)
		g.server.Stop()
	case <-stopped:
	}

	g.logger.Info("%s : stopped", g.Name)
	return nil
}

// -----------------------------------------------------------------------------

// servingStatus maps the feed's state to a health verdict. A simulated feed
// is always serving; a live feed is serving only while connected.
func (g *GRPCService) servingStatus() grpc_health_v1.HealthCheckResponse_ServingStatus {
	status := g.feedStatus()
	if !status.Running {
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	if status.Mode == "simulated" || status.State == "connected" {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_NOT_SERVING
}
