package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/jredmond/openhouse/internal/auth"
	"github.com/jredmond/openhouse/internal/config"
	"github.com/jredmond/openhouse/internal/db"
	"github.com/jredmond/openhouse/internal/enrollment"
	"github.com/jredmond/openhouse/internal/generate"
	"github.com/jredmond/openhouse/internal/logging"
	"github.com/jredmond/openhouse/internal/notify"
	"github.com/jredmond/openhouse/internal/sequence"
	"github.com/jredmond/openhouse/internal/session"
	"github.com/jredmond/openhouse/internal/visitor"
)

// app bundles the database and the wired services for one command run.
type app struct {
	db  *sql.DB
	cfg config.Config

	sessions    *session.Service
	visitors    *visitor.Service
	sequences   *sequence.Service
	enrollments *enrollment.Service
	tokens      *auth.TokenStore
	apiKeys     *auth.APIKeyStore
}

// openApp loads config, opens the database, and wires every service.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logging.Setup(cfg.DevMode)

	path := flagDB
	if path == "" {
		path = cfg.DBPath
	}
	if path == "" {
		path, err = db.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}

	var sink notify.Sink = notify.LogSink{}
	if cfg.WebhookURL != "" {
		sink = notify.NewWebhookSink(cfg.WebhookURL)
	}

	var gen generate.Generator = &generate.Stub{}
	if cfg.GeneratorURL != "" {
		client, err := generate.NewClient(cfg.GeneratorURL, cfg.GeneratorKey)
		if err != nil {
			closeDB(database)
			return nil, err
		}
		gen = client
	}

	var mailer notify.Mailer
	if cfg.SMTPConfigured() {
		m, err := notify.NewSMTPMailer(notify.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		})
		if err != nil {
			closeDB(database)
			return nil, err
		}
		mailer = m
	}

	tokens := auth.NewTokenStore(database)
	apiKeys := auth.NewAPIKeyStore(database)

	sessRepo := session.NewRepository(database)
	visRepo := visitor.NewRepository(database)
	seqRepo := sequence.NewRepository(database)
	enrRepo := enrollment.NewRepository(database)

	sessSvc := session.NewService(sessRepo, tokens, sink, cfg.BaseURL)
	seqSvc := sequence.NewService(seqRepo)
	enrSvc := enrollment.NewService(enrRepo, seqRepo, visRepo, sessRepo, gen, mailer, notify.LogSMS{})
	visSvc := visitor.NewService(visRepo, sessRepo, enrSvc, sink)

	return &app{
		db:          database,
		cfg:         cfg,
		sessions:    sessSvc,
		visitors:    visSvc,
		sequences:   seqSvc,
		enrollments: enrSvc,
		tokens:      tokens,
		apiKeys:     apiKeys,
	}, nil
}

func (a *app) close() {
	closeDB(a.db)
}

// closeDB closes the database, logging any error to stderr.
func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", err)
	}
}
