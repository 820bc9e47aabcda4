package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/lazypower/claimgate/internal/gatekeeper"
	"github.com/lazypower/claimgate/internal/llm"
	"github.com/lazypower/claimgate/internal/scoring"
)

// Config holds all claimgate configuration.
type Config struct {
	Server     ServerConfig    `yaml:"server" mapstructure:"server"`
	Database   DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Graph      GraphConfig     `yaml:"graph" mapstructure:"graph"`
	Retrieval  RetrievalConfig `yaml:"retrieval" mapstructure:"retrieval"`
	Freshness  scoring.Decay   `yaml:"freshness" mapstructure:"freshness"`
	Confidence scoring.Ladder  `yaml:"confidence" mapstructure:"confidence"`
	Cache      CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Auth       AuthConfig      `yaml:"auth" mapstructure:"auth"`
	RateLimit  RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	LLM        llm.Config      `yaml:"llm" mapstructure:"llm"`
	Caveats    llm.Caveats     `yaml:"caveats" mapstructure:"caveats"`
	Log        LogConfig       `yaml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Bind string `yaml:"bind" mapstructure:"bind"`
	Port int    `yaml:"port" mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"` // empty: ~/.claimgate/claimgate.db
}

// GraphConfig selects the snapshot source.
type GraphConfig struct {
	Backend  string `yaml:"backend" mapstructure:"backend"` // "sqlite" or "neo4j"
	URI      string `yaml:"uri" mapstructure:"uri"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
}

type RetrievalConfig struct {
	MinConfidence  float64         `yaml:"min_confidence" mapstructure:"min_confidence"`
	MinTrusted     float64         `yaml:"min_trusted" mapstructure:"min_trusted"`
	Weights        scoring.Weights `yaml:"weights" mapstructure:"weights"`
	TopK           int             `yaml:"top_k" mapstructure:"top_k"`
	BatchWorkers   int             `yaml:"batch_workers" mapstructure:"batch_workers"`
	LexicalScoring bool            `yaml:"lexical_scoring" mapstructure:"lexical_scoring"`
}

type CacheConfig struct {
	TrustedTTL time.Duration `yaml:"trusted_ttl" mapstructure:"trusted_ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"` // empty disables bearer auth
}

type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second" mapstructure:"per_second"` // 0 disables
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"` // empty: stderr only
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37780,
		},
		Graph: GraphConfig{
			Backend:  "sqlite",
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Retrieval: RetrievalConfig{
			MinConfidence:  0.3,
			MinTrusted:     0.8,
			Weights:        scoring.DefaultWeights(),
			TopK:           10,
			BatchWorkers:   8,
			LexicalScoring: true,
		},
		Freshness:  scoring.DefaultDecay(),
		Confidence: scoring.DefaultLadder(),
		Cache: CacheConfig{
			TrustedTTL: 5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			PerSecond: 10,
			Burst:     20,
		},
		LLM: llm.Config{
			Provider:  "none",
			OllamaURL: "http://localhost:11434",
			MaxTokens: 1024,
			Timeout:   60 * time.Second,
		},
		Caveats: llm.DefaultCaveats,
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// PipelineOptions returns the gatekeeper settings carried by c.
func (c *Config) PipelineOptions(logger *slog.Logger) gatekeeper.Options {
	return gatekeeper.Options{
		Ladder:  c.Confidence,
		Decay:   c.Freshness,
		Weights: c.Retrieval.Weights,
		Logger:  logger,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Graph.Backend {
	case "sqlite":
	case "neo4j":
		if c.Graph.URI == "" {
			return errors.New("graph.uri is required for the neo4j backend")
		}
	default:
		return fmt.Errorf("graph.backend %q: want sqlite or neo4j", c.Graph.Backend)
	}
	if c.Retrieval.MinConfidence < 0 || c.Retrieval.MinConfidence > 1 {
		return fmt.Errorf("retrieval.min_confidence %v outside [0,1]", c.Retrieval.MinConfidence)
	}
	if err := c.Retrieval.Weights.Validate(); err != nil {
		return fmt.Errorf("retrieval.weights: %w", err)
	}
	if c.Retrieval.TopK < 0 {
		return errors.New("retrieval.top_k must not be negative")
	}
	if c.Freshness.Floor < 0 || c.Freshness.Floor > 1 {
		return fmt.Errorf("freshness.floor %v outside [0,1]", c.Freshness.Floor)
	}
	if c.Freshness.BaseDays <= 0 {
		return errors.New("freshness.base_days must be positive")
	}
	if c.Freshness.GraceDays < 0 {
		return errors.New("freshness.grace_days must not be negative")
	}
	l := c.Confidence
	if !(0 <= l.SelfDeclared && l.SelfDeclared <= l.HasEvidence && l.HasEvidence <= l.Attested && l.Attested <= l.TrustedOrg && l.TrustedOrg <= 1) {
		return fmt.Errorf("confidence ladder must be ascending within [0,1]: %+v", l)
	}
	switch c.LLM.Provider {
	case "", "none", "anthropic", "ollama":
	default:
		return fmt.Errorf("llm.provider %q: want none, anthropic or ollama", c.LLM.Provider)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// SetDefaults registers Default() values with v so env vars and config
// files overlay them key by key.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.bind", d.Server.Bind)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("graph.backend", d.Graph.Backend)
	v.SetDefault("graph.uri", d.Graph.URI)
	v.SetDefault("graph.username", d.Graph.Username)
	v.SetDefault("graph.password", d.Graph.Password)
	v.SetDefault("graph.database", d.Graph.Database)
	v.SetDefault("retrieval.min_confidence", d.Retrieval.MinConfidence)
	v.SetDefault("retrieval.min_trusted", d.Retrieval.MinTrusted)
	v.SetDefault("retrieval.weights.similarity", d.Retrieval.Weights.Similarity)
	v.SetDefault("retrieval.weights.confidence", d.Retrieval.Weights.Confidence)
	v.SetDefault("retrieval.weights.freshness", d.Retrieval.Weights.Freshness)
	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)
	v.SetDefault("retrieval.batch_workers", d.Retrieval.BatchWorkers)
	v.SetDefault("retrieval.lexical_scoring", d.Retrieval.LexicalScoring)
	v.SetDefault("freshness.grace_days", d.Freshness.GraceDays)
	v.SetDefault("freshness.base_days", d.Freshness.BaseDays)
	v.SetDefault("freshness.floor", d.Freshness.Floor)
	v.SetDefault("confidence.self_declared", d.Confidence.SelfDeclared)
	v.SetDefault("confidence.has_evidence", d.Confidence.HasEvidence)
	v.SetDefault("confidence.attested", d.Confidence.Attested)
	v.SetDefault("confidence.trusted_org", d.Confidence.TrustedOrg)
	v.SetDefault("cache.trusted_ttl", d.Cache.TrustedTTL)
	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("rate_limit.per_second", d.RateLimit.PerSecond)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.anthropic_key", d.LLM.AnthropicKey)
	v.SetDefault("llm.ollama_url", d.LLM.OllamaURL)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("caveats.verified", d.Caveats.Verified)
	v.SetDefault("caveats.self_declared", d.Caveats.SelfDeclared)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// Load decodes v into a Config and validates it. Call SetDefaults first.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// NewViper returns a viper instance with defaults and CLAIMGATE_ env
// binding. Nested keys map to env vars with '.' replaced by '_', e.g.
// CLAIMGATE_RETRIEVAL_MIN_CONFIDENCE.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("CLAIMGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// DefaultConfigPath returns ~/.claimgate/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".claimgate", "config.yaml"), nil
}

// LoadFile reads a YAML config file over the defaults.
func LoadFile(path string) (Config, error) {
	v := NewViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Load(v)
}

// SaveFile writes cfg as YAML, creating the parent directory.
func SaveFile(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
