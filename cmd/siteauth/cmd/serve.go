package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	authgrpc "github.com/repairloader/siteauth/grpc"
)

// gRPC methods reachable without a session
var publicGRPCMethods = []string{
	"/grpc.health.v1.Health/Check",
	"/grpc.health.v1.Health/Watch",
	"/grpc.health.v1.Health/List",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the RepairLoader server",
	Long:  `Starts the HTTP server with the site pages and /auth routes, and the gRPC server when GRPC_ADDR is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		errCh := make(chan error, 2)

		httpServer := &http.Server{
			Addr:              cfg.ServerAddr,
			Handler:           a.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("http server listening", "addr", cfg.ServerAddr, "base_url", cfg.BaseURL)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()

		var grpcServer *grpc.Server
		if cfg.GRPCAddr != "" {
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.GRPCAddr, err)
			}
			grpcServer = newGRPCServer(a)
			go func() {
				slog.Info("grpc server listening", "addr", cfg.GRPCAddr)
				if err := grpcServer.Serve(lis); err != nil {
					errCh <- fmt.Errorf("grpc server: %w", err)
				}
			}()
		}

		select {
		case <-ctx.Done():
			slog.Info("shutting down")
		case err := <-errCh:
			return err
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		return httpServer.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "HTTP bind address (env: SERVER_ADDR)")
	serveCmd.Flags().String("grpc-addr", "", "gRPC bind address (env: GRPC_ADDR)")
	serveCmd.Flags().String("base-url", "", "Public site URL (env: BASE_URL)")
}

// newGRPCServer serves the health service behind the session interceptors
func newGRPCServer(a *app) *grpc.Server {
	interceptorConfig := authgrpc.NewInterceptorConfig(a.auth, publicGRPCMethods...)
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(authgrpc.UnaryAuthInterceptor(interceptorConfig)),
		grpc.ChainStreamInterceptor(authgrpc.StreamAuthInterceptor(interceptorConfig)),
	)
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server
}
