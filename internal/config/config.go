// Package config loads tdrive settings.
//
// Settings come from three layers, later layers winning: the defaults in
// the embedded CUE schema, an optional CUE file, and command-line
// overrides. The merged result is validated against the schema again, so a
// bad flag value is reported the same way as a bad file value.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/tdrive/internal/state"
	"github.com/roach88/tdrive/internal/state/stateleveldb"
	"github.com/roach88/tdrive/internal/state/statesqlite"
)

//go:embed schema.cue
var schemaSource []byte

// Backend names.
const (
	BackendLevelDB = "leveldb"
	BackendSQLite  = "sqlite"
)

// Config is the validated configuration.
type Config struct {
	Backend  string `json:"backend"`
	Path     string `json:"path"`
	Journal  string `json:"journal"`
	LogLevel string `json:"log_level"`
	Format   string `json:"format"`
}

// Overrides are command-line values. Empty fields leave the file or
// default value in place.
type Overrides struct {
	Backend  string
	Path     string
	Journal  string
	LogLevel string
	Format   string
}

// Load reads file (if non-empty), applies overrides and validates the
// result.
func Load(file string, o Overrides) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		user := ctx.CompileBytes(data, cue.Filename(file))
		if err := user.Err(); err != nil {
			return nil, fmt.Errorf("parse config %s: %s", file, details(err))
		}
		v = def.Unify(user)
	}
	if err := v.Validate(cue.Final(), cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config %s: %s", file, details(err))
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.apply(o)

	merged := def.Unify(ctx.Encode(cfg))
	if err := merged.Validate(cue.Final(), cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid option: %s", details(err))
	}
	return &cfg, nil
}

// Default returns the schema defaults.
func Default() *Config {
	cfg, err := Load("", Overrides{})
	if err != nil {
		panic(fmt.Sprintf("config schema defaults are invalid: %v", err))
	}
	return cfg
}

func (c *Config) apply(o Overrides) {
	if o.Backend != "" {
		c.Backend = o.Backend
	}
	if o.Path != "" {
		c.Path = o.Path
	}
	if o.Journal != "" {
		c.Journal = o.Journal
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.Format != "" {
		c.Format = o.Format
	}
}

// Level maps LogLevel to a slog level.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenStore opens the configured world-state backend. An empty Path opens
// an in-memory store.
func (c *Config) OpenStore(logger *slog.Logger) (state.Store, error) {
	switch c.Backend {
	case BackendLevelDB:
		return stateleveldb.Open(c.Path, stateleveldb.WithLogger(logger))
	case BackendSQLite:
		return statesqlite.Open(c.Path, logger)
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

func details(err error) string {
	return cueerrors.Details(err, nil)
}
