package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joescharf/codelens/internal/auth"
	"github.com/joescharf/codelens/internal/config"
	"github.com/joescharf/codelens/internal/eventlog"
	"github.com/joescharf/codelens/internal/health"
	"github.com/joescharf/codelens/internal/llm"
	"github.com/joescharf/codelens/internal/logger"
	"github.com/joescharf/codelens/internal/prompt"
	"github.com/joescharf/codelens/internal/rag"
	"github.com/joescharf/codelens/internal/review"
	"github.com/joescharf/codelens/internal/store"
)

// app holds the components a command needs. Each open* method wires one
// layer; commands open only what they use so that, for example, listing
// documents works without an API key.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	prompts *prompt.Service

	events   *eventlog.Log
	client   *llm.Client
	reviewer *review.Orchestrator
	docs     *store.SQLiteStore
	rag      *rag.Service
	users    store.UserStore
	auth     *auth.Service

	closers []io.Closer
}

// newApp loads the configuration, the process logger and the prompt templates.
// logOut receives process logs; commands printing results use stderr.
func newApp(logOut io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log, err := logger.New(logOut, level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	prompts, err := prompt.Load(cfg.Prompts.Dir)
	if err != nil {
		return nil, fmt.Errorf("load prompt templates: %w", err)
	}
	return &app{cfg: cfg, logger: log, prompts: prompts}, nil
}

// openEvents opens the category logs under log.dir.
func (a *app) openEvents() error {
	events, err := eventlog.Open(a.cfg.Log.Dir, a.cfg.Log.MaxRecent)
	if err != nil {
		return fmt.Errorf("open event logs: %w", err)
	}
	a.events = events
	a.closers = append(a.closers, events)
	return nil
}

// openLLM builds the provider client and the review orchestrator.
func (a *app) openLLM(ctx context.Context) error {
	c := a.cfg.LLM
	p, err := llm.NewProvider(ctx, c.Provider, c.APIKey, c.BaseURL, c.MaxRetries)
	if err != nil {
		return err
	}
	if closer, ok := p.(io.Closer); ok {
		a.closers = append(a.closers, closer)
	}
	a.client = llm.NewClient(p, a.cfg.LLMOptions())
	a.reviewer = review.New(a.client, a.prompts, a.cfg.ReviewConfig(), a.logger)
	a.logger.Debug("llm client ready", "provider", a.client.Provider(), "model", a.client.Model())
	return nil
}

// openDocs opens the document store and the question answering service.
// Without a prior openLLM the service can ingest and list but not answer.
func (a *app) openDocs(ctx context.Context) error {
	if err := ensureStateDir(); err != nil {
		return err
	}
	docs, err := store.NewSQLiteStore(a.cfg.Documents.DBPath)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	a.closers = append(a.closers, docs)
	if err := docs.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate document store: %w", err)
	}
	a.docs = docs

	var completer rag.TextCompleter
	if a.client != nil {
		completer = a.client
	}
	svc, err := rag.New(docs, completer, a.prompts, a.cfg.RAGConfig(), a.events, a.logger)
	if err != nil {
		return err
	}
	a.rag = svc
	return nil
}

// openUsers opens the auth store named by database.url and the token service.
func (a *app) openUsers(ctx context.Context) error {
	if !store.IsPostgresURL(a.cfg.Database.URL) {
		if err := ensureStateDir(); err != nil {
			return err
		}
	}
	users, err := store.OpenUserStore(ctx, a.cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open user store: %w", err)
	}
	a.closers = append(a.closers, users)
	a.users = users

	svc, err := auth.New(users, a.cfg.AuthConfig())
	if err != nil {
		return err
	}
	a.auth = svc
	return nil
}

// healthChecker registers a probe for every opened dependency. The user store
// is critical because every authenticated route needs it.
func (a *app) healthChecker() *health.Checker {
	checker := health.NewChecker(0)
	checker.Add("prompts", true, func(context.Context) error {
		_, err := a.prompts.Get(prompt.SyntaxAnalysis)
		return err
	})
	if a.users != nil {
		checker.Add("database", true, a.users.Ping)
	}
	if a.docs != nil {
		checker.Add("documents", false, a.docs.Ping)
	}
	if a.cfg.Log.Dir != "" {
		checker.Add("log_dir", false, func(context.Context) error {
			_, err := os.Stat(a.cfg.Log.Dir)
			return err
		})
	}
	return checker
}

// Close releases everything opened, newest first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
