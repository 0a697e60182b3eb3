// ABOUTME: Wires config, storage, resolver and session manager for CLI commands
// ABOUTME: Every command opens the app, runs, and closes the database

package main

import (
	"fmt"
	"log/slog"

	"github.com/2389/shipdesk-session/internal/account"
	"github.com/2389/shipdesk-session/internal/auth"
	"github.com/2389/shipdesk-session/internal/config"
	"github.com/2389/shipdesk-session/internal/session"
	"github.com/2389/shipdesk-session/internal/store"
)

// secureTierName is the session_kv namespace holding the authoritative session.
const secureTierName = "secure"

type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *store.SQLiteStore
	mgr    *session.Manager
}

func openApp() (*app, error) {
	configPath := config.DefaultPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Debug("loaded config", "path", configPath)

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	mgr, err := newManager(cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, db: db, mgr: mgr}, nil
}

func newManager(cfg *config.Config, db *store.SQLiteStore, logger *slog.Logger) (*session.Manager, error) {
	legacy, err := session.NewFileTier(cfg.Session.LegacyPath)
	if err != nil {
		return nil, fmt.Errorf("opening legacy tier: %w", err)
	}

	codec, err := auth.NewCodec(cfg.Session.TokenSigning, []byte(cfg.Session.SigningSecret))
	if err != nil {
		return nil, err
	}

	policy, err := auth.ParseSecretPolicy(cfg.Session.DelegatedSecretPolicy)
	if err != nil {
		return nil, err
	}

	// A nil interface, not a typed nil, when no account service is configured.
	var accounts account.Client
	if cfg.Account.BaseURL != "" {
		accounts = account.NewHTTPClient(cfg.Account.BaseURL, cfg.Account.Timeout, logger)
	}

	return session.NewManager(session.Config{
		Resolver: auth.NewResolver(db, accounts, policy, logger),
		Codec:    codec,
		Store:    session.NewStore(db.Tier(secureTierName), legacy, logger),
		Accounts: accounts,
		Audit:    db,
		Issuer:   cfg.Session.Issuer,
		Audience: cfg.Session.Audience,
		Logger:   logger,
	})
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing store", "error", err)
	}
}
