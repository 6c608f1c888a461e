package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/vibework/reportbot/internal/config"
	"github.com/vibework/reportbot/internal/domain/models"
	"github.com/vibework/reportbot/internal/repository/drafts"
	"github.com/vibework/reportbot/internal/repository/mongodb"
	"github.com/vibework/reportbot/internal/repository/sheets"
	"github.com/vibework/reportbot/internal/scheduler"
	"github.com/vibework/reportbot/internal/server/handlers"
	"github.com/vibework/reportbot/internal/server/router"
	"github.com/vibework/reportbot/internal/service/assembler"
	"github.com/vibework/reportbot/internal/service/notify"
	"github.com/vibework/reportbot/internal/service/reference"
	"github.com/vibework/reportbot/internal/service/session"
	"github.com/vibework/reportbot/internal/service/syncengine"
	telegramclient "github.com/vibework/reportbot/pkg/clients/telegram"
	"github.com/vibework/reportbot/pkg/logger"
)

// draftBackend is the store plus the local snapshot cache both backends carry.
type draftBackend interface {
	drafts.Store
	reference.Cache
}

type sheetsTransport struct {
	repo sheets.Repository
}

func (t sheetsTransport) Submit(ctx context.Context, report *models.Report) error {
	return t.repo.SubmitReport(ctx, report)
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	sheetsRepo, err := sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
	if err != nil {
		baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
	}

	store, err := openDraftStore(context.Background(), cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init draft store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close draft store", zap.Error(err))
		}
	}()

	referenceSvc := reference.NewService(sheetsRepo, store, cfg.Reference.MaxAge, baseLogger.Named("svc.reference"))
	if err := referenceSvc.Refresh(context.Background()); err != nil {
		// The service falls back to the locally cached snapshot on reads.
		baseLogger.Warn("initial reference refresh failed", zap.Error(err))
	}

	asm := assembler.NewService()
	engine := syncengine.NewEngine(store, asm, sheetsTransport{repo: sheetsRepo}, baseLogger.Named("svc.syncengine"))

	// Pick up drafts left queued by a previous run.
	if result, err := engine.Drain(context.Background()); err != nil {
		baseLogger.Warn("startup drain failed", zap.Error(err))
	} else if result.Delivered+result.Failed > 0 {
		baseLogger.Info("startup drain finished",
			zap.Int("delivered", result.Delivered),
			zap.Int("failed", result.Failed),
			zap.Int("pending", result.Pending))
	}

	tgClient := telegramclient.NewClient(cfg.Telegram.BotToken)
	notifier := notify.NewService(tgClient, baseLogger.Named("svc.notify"))
	sessions := session.NewManager()

	miniAppHandler := handlers.NewMiniAppHandler(
		cfg.Telegram.BotToken,
		cfg.Telegram.RegistrationCode,
		referenceSvc,
		store,
		engine,
		asm,
		sessions,
		notifier,
		baseLogger.Named("handlers.miniapp"),
	)
	ginEngine := router.New(miniAppHandler, baseLogger.Named("router"))

	sched, err := scheduler.NewScheduler(*cfg, referenceSvc, engine, sheetsRepo, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      ginEngine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openDraftStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (draftBackend, error) {
	switch cfg.Drafts.Backend {
	case config.BackendMongoDB:
		log.Info("using mongodb draft store", zap.String("db", cfg.Drafts.MongoDBName))
		return mongodb.NewDraftStore(ctx, cfg.Drafts.MongoURI, cfg.Drafts.MongoDBName)
	default:
		log.Info("using sqlite draft store", zap.String("path", cfg.Drafts.SQLitePath))
		return drafts.NewSQLiteStore(cfg.Drafts.SQLitePath)
	}
}
