package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/lazypower/claimgate/internal/gatekeeper"
	"github.com/lazypower/claimgate/internal/graphdb"
	"github.com/lazypower/claimgate/internal/llm"
	"github.com/lazypower/claimgate/internal/registry"
	"github.com/lazypower/claimgate/internal/seed"
	"github.com/lazypower/claimgate/internal/server"
	"github.com/lazypower/claimgate/internal/similarity"
	"github.com/lazypower/claimgate/internal/store"
)

// backend bundles the configured store with its seed writer.
type backend struct {
	server.Backend
	writer seed.Writer
	where  string
	close  func() error
}

// openBackend opens the store named by graph.backend. Trusted-org answers
// are cached for cache.trusted_ttl.
func openBackend(ctx context.Context) (*backend, error) {
	switch cfg.Graph.Backend {
	case "neo4j":
		gs, err := graphdb.Open(ctx, graphdb.Config{
			URI:      cfg.Graph.URI,
			Username: cfg.Graph.Username,
			Password: cfg.Graph.Password,
			Database: cfg.Graph.Database,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := gs.EnsureSchema(ctx); err != nil {
			gs.Close(ctx)
			return nil, err
		}
		gs.SetTrusted(registry.NewCached(gs.IsTrustedOrg, cfg.Cache.TrustedTTL, logger))
		return &backend{
			Backend: gs,
			writer:  gs,
			where:   cfg.Graph.URI,
			close:   func() error { return gs.Close(context.Background()) },
		}, nil

	default:
		dbPath := cfg.Database.Path
		if dbPath == "" {
			var err error
			dbPath, err = store.DefaultDBPath()
			if err != nil {
				return nil, fmt.Errorf("resolve db path: %w", err)
			}
		}
		db, err := store.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		trusted := registry.NewCached(db.IsTrustedOrg, cfg.Cache.TrustedTTL, logger)
		return &backend{
			Backend: store.NewSource(db, trusted),
			writer:  seed.StoreWriter{DB: db},
			where:   dbPath,
			close:   db.Close,
		}, nil
	}
}

func newPipeline() *gatekeeper.Pipeline {
	p := gatekeeper.New(cfg.PipelineOptions(logger))
	if cfg.Retrieval.LexicalScoring {
		p.SetScorer(similarity.NewTFIDF(0))
	}
	return p
}

// newAnswerer builds the LLM client for answer generation, or nil when
// disabled. ANTHROPIC_API_KEY selects the anthropic provider when none is
// configured.
func newAnswerer() (llm.Client, error) {
	lc := cfg.LLM
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && lc.AnthropicKey == "" {
		lc.AnthropicKey = key
		if lc.Provider == "" || lc.Provider == "none" {
			lc.Provider = "anthropic"
		}
	}
	client, err := llm.NewClient(lc)
	if errors.Is(err, llm.ErrDisabled) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	return client, nil
}
