package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/ledgerview/internal/api"
	"github.com/jask/ledgerview/internal/cache"
	"github.com/jask/ledgerview/internal/config"
	"github.com/jask/ledgerview/internal/database"
	"github.com/jask/ledgerview/internal/database/repository"
	"github.com/jask/ledgerview/internal/mock"
	"github.com/jask/ledgerview/internal/notify"
	"github.com/jask/ledgerview/internal/prefs"
	"github.com/jask/ledgerview/internal/secrets"
	"github.com/jask/ledgerview/internal/service"
	"github.com/jask/ledgerview/internal/session"
	"github.com/jask/ledgerview/internal/tui"
)

func main() {
	useMock := flag.Bool("mock", false, "serve the API from the in-process mock backend")
	variant := flag.String("variant", "", "backend contract: a or b (overrides config)")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *useMock {
		cfg.API.UseMock = true
	}
	if *variant != "" {
		cfg.API.Variant = strings.ToLower(*variant)
	}

	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("log: %v", err)
	}
	defer closeLog()

	store, closeStore, err := openStore(cfg.Session)
	if err != nil {
		log.Fatalf("session store: %v", err)
	}
	defer closeStore()

	state, err := session.Open(ctx, store, logger)
	if err != nil {
		log.Fatalf("session: %v", err)
	}

	baseURL := cfg.API.BaseURL
	var rt http.RoundTripper
	if cfg.API.UseMock {
		srv := mock.NewServer(mock.NewSeeded(nil), mock.NewTokens(cfg.Mock.JWTSecret, cfg.Mock.TokenTTL), mock.Options{
			Variant:    cfg.API.Variant,
			LatencyMin: cfg.Mock.LatencyMin,
			LatencyMax: cfg.Mock.LatencyMax,
			Logger:     logger.With("component", "mock"),
		})
		rt = mock.RoundTripper{Handler: srv.Handler()}
		baseURL = "http://mock.local" + mock.DefaultPrefix
		logger.Info("using in-process mock backend", "variant", srv.Variant())
	}

	transport := api.NewTransport(baseURL, cfg.API.Timeout, rt, state, logger.With("component", "transport"))
	backend, err := api.New(cfg.API.Variant, transport)
	if err != nil {
		log.Fatalf("backend: %v", err)
	}

	// caches and services
	accounts := cache.NewAccounts(backend, state)
	balances := cache.NewBalance(backend)
	transactions := cache.NewTransactions(backend, cfg.UI.PageSize)
	applyPrefs(transactions, cfg.UI.PrefsPath, logger)

	ledgerSvc := &service.LedgerService{
		Backend:      backend,
		Accounts:     accounts,
		Balances:     balances,
		Transactions: transactions,
		Logger:       logger.With("component", "ledger"),
	}
	queue := notify.New(cfg.Notify.DefaultTTL, cfg.Notify.MaxQueue)

	app := tui.New(ctx, tui.Deps{
		Session:      session.NewManager(state, backend, logger.With("component", "session")),
		Accounts:     accounts,
		Balances:     balances,
		Transactions: transactions,
		Ledger:       ledgerSvc,
		Notify:       queue,
		Logger:       logger,
		PrefsPath:    cfg.UI.PrefsPath,
		DateFormat:   cfg.UI.DateFormat,
		Mock:         cfg.API.UseMock,
	})
	transport.Router = app

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

// newLogger writes text logs to a file; stdout belongs to the terminal UI.
func newLogger(cfg config.LogConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { _ = f.Close() }, nil
}

func openStore(cfg config.SessionConfig) (session.Store, func(), error) {
	switch cfg.Backend {
	case config.SessionSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("mkdir session dir: %w", err)
		}
		if err := database.RunMigrations(cfg.Path); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		db, err := database.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		return repository.NewSessionRepo(db), func() { closeDB(db) }, nil
	case config.SessionMemory:
		return session.NewMemStore(nil), func() {}, nil
	case config.SessionFile, "":
		fs, err := secrets.NewFileStore(cfg.Path, cfg.Passphrase)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Printf("warn: close db: %v", err)
	}
}

// applyPrefs restores the saved page size and filters.
func applyPrefs(tx *cache.Transactions, path string, logger *slog.Logger) {
	p, err := prefs.Load(path)
	if err != nil {
		logger.Warn("load prefs", "err", err)
		return
	}
	if p.PageSize > 0 {
		if err := tx.SetPageSize(p.PageSize); err != nil {
			logger.Warn("saved page size ignored", "size", p.PageSize, "err", err)
		}
	}
	tx.SetFilters(p.Filters.Ledger())
}
