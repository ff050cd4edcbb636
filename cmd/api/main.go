package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"dietchain/internal/api"
	"dietchain/internal/completion"
	"dietchain/internal/config"
	"dietchain/internal/document"
	"dietchain/internal/pipeline"
	"dietchain/internal/platform/gemini"
	"dietchain/internal/platform/localllm"
	"dietchain/internal/profile"
	"dietchain/internal/report"
	"dietchain/internal/session"
)

func newLogger() zerolog.Logger {
	if os.Getenv("LOG_FORMAT") == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func main() {
	logger := newLogger()
	ctx := context.Background()

	cfg, err := config.Load("config.json")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	router := completion.NewRouter("groq")
	var transcriber document.ImageTranscriber

	if cfg.GroqAPIKey != "" {
		router.Register("groq", localllm.NewClient(cfg.GroqBaseURL, cfg.GroqAPIKey))
	}
	if cfg.GeminiAPIKey != "" {
		geminiClient, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("error creating gemini client")
		}
		defer geminiClient.Close()
		router.Register("gemini", geminiClient)
		transcriber = geminiClient
	}
	if router.Providers() == 0 {
		logger.Fatal().Msg("no completion provider configured: set GROQ_API_KEY or GEMINI_API_KEY")
	}

	profiles, reports, closeDB, err := openStores(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("error opening stores")
	}
	defer closeDB()

	runner := pipeline.NewRunner(router, cfg.Timeout(), logger)
	chain := pipeline.New(runner, cfg.Stages(), cfg.MinInputChars, logger)
	qa := pipeline.NewQA(runner, cfg.QA.Stage(), cfg.MinQuestionChars, cfg.QAContextChars)

	extractor, err := document.NewExtractor(transcriber, cfg.ExtractCacheSize, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("error creating extractor")
	}

	sessions, err := session.NewStore(cfg.SessionCapacity, func(id string) {
		// In-memory profiles live exactly as long as their session.
		if mem, ok := profiles.(*profile.MemoryStore); ok {
			_ = mem.Delete(context.Background(), id)
		}
		logger.Debug().Str("session_id", id).Msg("session evicted")
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("error creating session store")
	}

	handler := api.NewHandler(chain, qa, extractor, profiles, reports, sessions)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, handler, sessions, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info().Str("addr", srv.Addr).Int("providers", router.Providers()).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-stop.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 30*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
}

// openStores connects to Postgres when a database URL is configured and
// falls back to in-memory stores otherwise.
func openStores(databaseURL string, logger zerolog.Logger) (profile.Store, report.Store, func(), error) {
	if databaseURL == "" {
		logger.Warn().Msg("DATABASE_URL not set: profiles and reports are kept in memory")
		return profile.NewMemoryStore(), report.NewMemoryStore(), func() {}, nil
	}

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	profiles, err := profile.NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	reports, err := report.NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return profiles, reports, func() { db.Close() }, nil
}

func newRouter(cfg config.Config, handler *api.Handler, sessions api.SessionStore, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), api.RequestLogger(logger))

	// Configure CORS middleware
	corsConfig := cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", api.HeaderSessionID, api.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", api.HeaderSessionID, api.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	r.Use(cors.New(corsConfig))
	r.Use(api.SessionMiddleware(sessions))

	handler.Register(r)
	return r
}
