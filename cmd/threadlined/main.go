// Command threadlined is the sync engine daemon: it owns the store, the
// worker loop, and the command surface the UI transport invokes. The UI
// transport itself is out of scope (spec.md §1) — this binary only needs to
// get the core running and reachable.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hkdb/threadline/internal/command"
	"github.com/hkdb/threadline/internal/credentials"
	"github.com/hkdb/threadline/internal/logging"
	"github.com/hkdb/threadline/internal/mailer"
	"github.com/hkdb/threadline/internal/skillmatch"
	"github.com/hkdb/threadline/internal/store"
	"github.com/hkdb/threadline/internal/worker"
	"github.com/rs/zerolog"
)

var (
	debugMode  = flag.Bool("debug", false, "Enable debug logging")
	dataDir    = flag.String("data-dir", "", "Directory for the sqlite store and credential fallback (default: OS config dir)")
	llmURL     = flag.String("llm-endpoint", "", "OpenAI-compatible chat completions endpoint for skill_classify (env THREADLINE_LLM_ENDPOINT)")
	llmKey     = flag.String("llm-api-key", "", "API key for the skill_classify endpoint (env THREADLINE_LLM_API_KEY)")
	smtpHost   = flag.String("smtp-host", "", "Default outbound SMTP relay host (env THREADLINE_SMTP_HOST)")
	smtpPort   = flag.Int("smtp-port", 587, "Default outbound SMTP relay port")
	smtpTLS    = flag.Bool("smtp-tls", true, "Use TLS for the outbound SMTP relay")
	smtpUser   = flag.String("smtp-user", "", "SMTP auth username (env THREADLINE_SMTP_USER)")
	smtpPass   = flag.String("smtp-pass", "", "SMTP auth password (env THREADLINE_SMTP_PASS)")
)

// debugEnabled mirrors the teacher's --debug-flag-or-env convention.
func debugEnabled() bool {
	return *debugMode || os.Getenv("THREADLINE_DEBUG") == "1"
}

func envOr(flagVal, envKey string) string {
	if flagVal != "" {
		return flagVal
	}
	return os.Getenv(envKey)
}

func defaultDataDir() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(cfgDir, "threadline"), nil
}

func main() {
	flag.Parse()

	level := zerolog.InfoLevel
	if debugEnabled() {
		level = zerolog.DebugLevel
	}
	logging.Init(logging.Options{Pretty: true, Level: level})
	log := logging.WithComponent("main")

	dir := *dataDir
	if dir == "" {
		resolved, err := defaultDataDir()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to resolve data directory")
		}
		dir = resolved
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.Fatal().Err(err).Str("dir", dir).Msg("failed to create data directory")
	}

	dbPath := filepath.Join(dir, "threadline.db")
	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("failed to open store")
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Str("path", dbPath).Msg("store opened")

	credStore, err := credentials.NewStore(db, dir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build credential store")
	}

	classifier := buildClassifier(log)
	mailerFor := buildMailerFor(log)

	w := worker.New(db, credStore, nil, classifier, mailerFor)
	svc := command.New(db, w, nil)
	_ = svc // the command surface is exercised by whatever transport is wired in; none is in this binary

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	w.Start(ctx)
	log.Info().Msg("threadlined running")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	w.Stop()
}

func buildClassifier(log zerolog.Logger) skillmatch.Classifier {
	endpoint := envOr(*llmURL, "THREADLINE_LLM_ENDPOINT")
	if endpoint == "" {
		log.Warn().Msg("no skill_classify endpoint configured, skill matching disabled")
		return skillmatch.NoopClassifier{}
	}
	apiKey := envOr(*llmKey, "THREADLINE_LLM_API_KEY")
	return skillmatch.NewHTTPClassifier(endpoint, apiKey)
}

// buildMailerFor returns the per-account Mailer resolver the worker hands
// to the action queue dispatcher. Every account currently shares the same
// configured relay; per-account outbound relays are a command-surface
// concern (account setup), not a worker concern.
func buildMailerFor(log zerolog.Logger) func(accountID string) mailer.Mailer {
	host := envOr(*smtpHost, "THREADLINE_SMTP_HOST")
	if host == "" {
		log.Warn().Msg("no SMTP relay configured, action queue Send actions will fail")
		return nil
	}
	cfg := mailer.SMTPConfig{
		Host:     host,
		Port:     *smtpPort,
		TLS:      *smtpTLS,
		Username: envOr(*smtpUser, "THREADLINE_SMTP_USER"),
		Password: envOr(*smtpPass, "THREADLINE_SMTP_PASS"),
	}
	m := mailer.NewSMTPMailer(cfg)
	return func(string) mailer.Mailer { return m }
}
