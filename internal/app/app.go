// Package app is the composition root: it parses configuration, builds the
// logging router, and wires the hub, listeners, and diagnostics surface.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	server "lavarush/server"
	servernet "lavarush/server/internal/net"
	"lavarush/server/internal/telemetry"
	"lavarush/server/logging"
	loggingsinks "lavarush/server/logging/sinks"
)

// Config is read from the environment.
type Config struct {
	TCPAddr  string `env:"LAVARUSH_TCP_ADDR" envDefault:":7777"`
	HTTPAddr string `env:"LAVARUSH_HTTP_ADDR" envDefault:":8080"`

	// HostLocal runs a simulation host inside this process, for a server
	// that both coordinates and hosts the first session.
	HostLocal bool   `env:"LAVARUSH_HOST_LOCAL" envDefault:"false"`
	UDPAddr   string `env:"LAVARUSH_UDP_ADDR" envDefault:":7778"`

	TickRate       int `env:"LAVARUSH_TICK_RATE" envDefault:"60"`
	BroadcastEvery int `env:"LAVARUSH_BROADCAST_EVERY" envDefault:"5"`
}

// ParseConfig loads Config from environment variables.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Run wires everything and blocks until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := ParseConfig()
	if err != nil {
		return err
	}
	return RunWithConfig(ctx, cfg)
}

func RunWithConfig(ctx context.Context, cfg Config) error {
	logger := telemetry.WrapLogger(log.Default())

	router := logging.NewRouter(logging.DefaultConfig(), logging.SystemClock{}, loggingsinks.NewConsole(os.Stdout))
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	hub := server.NewHub(server.NewRegistry(), logger, router)

	ln, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		return fmt.Errorf("listen tcp %q: %w", cfg.TCPAddr, err)
	}
	logger.Printf("lobby listening on %s", ln.Addr())

	counters := telemetry.NewCounters()
	feed := servernet.NewSnapshotFeed()

	errCh := make(chan error, 3)

	go func() {
		errCh <- hub.Run(ctx, ln)
	}()

	if cfg.HostLocal {
		host := server.NewHost(server.HostConfig{
			ListenAddr:     cfg.UDPAddr,
			TickRate:       cfg.TickRate,
			BroadcastEvery: cfg.BroadcastEvery,
			Logger:         logger,
			Metrics:        counters,
			Publisher:      router,
			OnSnapshot:     feed.Publish,
		})
		go func() {
			errCh <- host.Run(ctx)
		}()
	}

	handler := servernet.NewHTTPHandler(servernet.HTTPHandlerConfig{
		Hub:      hub,
		Counters: counters,
		Feed:     feed,
		Logger:   logger,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("diagnostics server: %w", err)
		} else {
			errCh <- nil
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
