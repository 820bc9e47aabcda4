package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/claimgate/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	be, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer be.close()

	answerer, err := newAnswerer()
	if err != nil {
		return err
	}

	srv := server.New(be, newPipeline(), server.Options{
		Version:       VersionString(),
		Backend:       cfg.Graph.Backend,
		MinConfidence: cfg.Retrieval.MinConfidence,
		MinTrusted:    cfg.Retrieval.MinTrusted,
		TopK:          cfg.Retrieval.TopK,
		BatchWorkers:  cfg.Retrieval.BatchWorkers,
		JWTSecret:     cfg.Auth.JWTSecret,
		RatePerSecond: cfg.RateLimit.PerSecond,
		RateBurst:     cfg.RateLimit.Burst,
		Logger:        logger,
		LLM:           answerer,
		Caveats:       cfg.Caveats,
	})
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "claimgate serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  %s: %s\n", cfg.Graph.Backend, be.where)
		if answerer != nil {
			fmt.Fprintf(os.Stderr, "  llm: %s\n", cfg.LLM.Provider)
		}
		if cfg.Auth.JWTSecret == "" {
			fmt.Fprintf(os.Stderr, "  auth: disabled (viewer_id taken from request body)\n")
		}
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
