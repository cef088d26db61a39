package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/receiptify/internal/kv"
	"github.com/zombor/receiptify/internal/metrics"
	"github.com/zombor/receiptify/internal/receipt"
	"github.com/zombor/receiptify/internal/scanning"
)

// cli holds the root flags shared by every subcommand
type cli struct {
	out   io.Writer
	flags *ff.FlagSet

	backend       *string
	dbPath        *string
	redisAddr     *string
	redisPassword *string
	redisDB       *int
	redisPrefix   *string
	scannerType   *string
	geminiKey     *string
	geminiModel   *string
	ollamaURL     *string
	ollamaModel   *string
	logLevel      *string
	logFormat     *string
}

func newCLI(out io.Writer) *cli {
	fs := ff.NewFlagSet("receiptify")
	c := &cli{
		out:           out,
		flags:         fs,
		backend:       fs.StringLong("backend", "bolt", "Storage backend: 'bolt' or 'redis'"),
		dbPath:        fs.StringLong("db", "receiptify.db", "Bolt database file path"),
		redisAddr:     fs.StringLong("redis-addr", "localhost:6379", "Redis address"),
		redisPassword: fs.StringLong("redis-password", "", "Redis password"),
		redisDB:       fs.IntLong("redis-db", 0, "Redis database number"),
		redisPrefix:   fs.StringLong("redis-prefix", "receiptify:", "Prefix for Redis keys"),
		scannerType:   fs.StringLong("scanner", "gemini", "Scanner type: 'gemini', 'ollama' or 'none'"),
		geminiKey:     fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel:   fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name"),
		ollamaURL:     fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel:   fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)"),
		logLevel:      fs.StringLong("log-level", "info", "Log level: debug, info, warn or error"),
		logFormat:     fs.StringLong("log-format", "text", "Log format: 'text' or 'json'"),
	}
	fs.StringLong("config", "", "Config file (optional)")
	return c
}

// command builds the command tree
func (c *cli) command() *ff.Command {
	return &ff.Command{
		Name:      "receiptify",
		Usage:     "receiptify [FLAGS] <SUBCOMMAND> ...",
		ShortHelp: "capture, organize and export receipts",
		Flags:     c.flags,
		Subcommands: []*ff.Command{
			c.serveCommand(),
			c.scanCommand(),
			c.addCommand(),
			c.editCommand(),
			c.listCommand(),
			c.showCommand(),
			c.deleteCommand(),
			c.toggleCommand("reimburse", "toggle the reimbursed flag of a receipt", (*receipt.Service).ToggleReimbursed),
			c.toggleCommand("favorite", "toggle the favorite flag of a receipt", (*receipt.Service).ToggleFavorite),
			c.statsCommand(),
			c.exportCommand(),
			c.importCommand(),
			c.settingsCommand(),
			c.versionCommand(),
		},
	}
}

// app is the wired set of collaborators a command runs against
type app struct {
	service *receipt.Service
	metrics *metrics.Metrics
	store   kv.Store
	scanner scanning.Scanner
}

// Close releases the scanner and the store
func (a *app) Close() {
	if a.scanner != nil {
		if err := a.scanner.Close(); err != nil {
			slog.Warn("Failed to close scanner", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close store", "error", err)
	}
}

// open connects the store and, when withScanner is set, the extraction backend
func (c *cli) open(ctx context.Context, withScanner bool) (*app, error) {
	store, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}

	a := &app{store: store, metrics: metrics.New()}
	if withScanner {
		a.scanner, err = c.openScanner(ctx)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	a.service = receipt.NewService(receipt.NewStore(store), receipt.NewSettingsStore(store), a.scanner, a.metrics)
	return a, nil
}

func (c *cli) openStore(ctx context.Context) (kv.Store, error) {
	switch *c.backend {
	case "bolt":
		slog.Debug("Opening bolt database", "path", *c.dbPath)
		return kv.NewBolt(*c.dbPath)
	case "redis":
		cfg := kv.RedisConfig{
			Addr:     *c.redisAddr,
			Password: *c.redisPassword,
			DB:       *c.redisDB,
			Prefix:   *c.redisPrefix,
		}
		// Redis often starts alongside us; give it a few seconds
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
		var store *kv.Redis
		err := backoff.RetryNotify(func() error {
			var err error
			store, err = kv.NewRedis(cfg)
			return err
		}, policy, func(err error, wait time.Duration) {
			slog.Warn("Redis not reachable, retrying", "addr", cfg.Addr, "wait", wait, "error", err)
		})
		if err != nil {
			return nil, fmt.Errorf("opening redis store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("invalid backend %q, want bolt or redis", *c.backend)
	}
}

func (c *cli) openScanner(ctx context.Context) (scanning.Scanner, error) {
	switch *c.scannerType {
	case "gemini":
		apiKey := *c.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Warn("No Gemini API key set (--gemini-key or GEMINI_API_KEY), documents become drafts for manual entry")
			return nil, nil
		}
		slog.Info("Initializing Gemini scanner", "model", *c.geminiModel)
		return scanning.NewGemini(ctx, apiKey, *c.geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama scanner", "url", *c.ollamaURL, "model", *c.ollamaModel)
		return scanning.NewOllama(*c.ollamaURL, *c.ollamaModel)
	case "none":
		slog.Info("No scanner configured, documents become drafts for manual entry")
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid scanner type %q, want gemini, ollama or none", *c.scannerType)
	}
}
