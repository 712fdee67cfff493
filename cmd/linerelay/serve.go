package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/nexthr/linerelay/internal/config"
	"github.com/nexthr/linerelay/internal/conversation"
	"github.com/nexthr/linerelay/internal/db"
	"github.com/nexthr/linerelay/internal/dify"
	"github.com/nexthr/linerelay/internal/handlers"
	"github.com/nexthr/linerelay/internal/line"
	"github.com/nexthr/linerelay/internal/logger"
	"github.com/nexthr/linerelay/internal/mailer"
	"github.com/nexthr/linerelay/internal/relay"
	"github.com/nexthr/linerelay/internal/report"
	"github.com/nexthr/linerelay/internal/server"
	"github.com/nexthr/linerelay/internal/storage"
	"github.com/nexthr/linerelay/internal/tenant"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBPool,
			provideTenantService,
			provideConversationStore,
			provideDifyClient,
			provideLineClients,
			provideDispatcher,
			provideRelayService,
			provideMailSender,
			provideUploader,
			providePDFRenderer,
			provideReportStore,
			provideReportService,
			provideServerHandler(providePingHandler),
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(provideReportHandler),
			provideServerHandler(provideMailHandler),
			fx.Annotate(
				provideServer,
				fx.ParamTags(``, `group:"server_handlers"`),
			),
		),
		fx.Invoke(
			startServer,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return nil, err
	}
	pool, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { pool.Close(); return nil }})
	return pool, nil
}

func provideTenantService(log *slog.Logger, pool *pgxpool.Pool) *tenant.Service {
	return tenant.NewService(log, pool)
}

func provideConversationStore(log *slog.Logger, pool *pgxpool.Pool) *conversation.Store {
	return conversation.NewStore(log, pool)
}

func provideDifyClient(log *slog.Logger) *dify.Client {
	return dify.NewClient(log)
}

func provideLineClients(log *slog.Logger) *line.Clients {
	return line.NewClients(log)
}

func provideDispatcher(log *slog.Logger, cfg config.Config) *relay.Dispatcher {
	return relay.NewDispatcher(log, cfg.Relay.ReplyWindow())
}

func provideRelayService(log *slog.Logger, store *conversation.Store, ai *dify.Client, clients *line.Clients, dispatcher *relay.Dispatcher, cfg config.Config) *relay.Service {
	return relay.NewService(log, store, ai, clients, dispatcher, relay.Options{
		DifyTimeout:  cfg.Relay.DifyTimeout(),
		FallbackText: cfg.Relay.FallbackText,
		TimeoutText:  cfg.Relay.TimeoutText,
	})
}

func provideMailSender(log *slog.Logger, cfg config.Config) (mailer.Sender, error) {
	return mailer.NewSender(log, cfg.Mail)
}

func provideUploader(log *slog.Logger, cfg config.Config) (storage.Uploader, error) {
	if cfg.Storage.Bucket == "" {
		log.Warn("storage bucket not configured, report upload disabled")
		return storage.Disabled{}, nil
	}
	return storage.NewS3Uploader(context.Background(), log, cfg.Storage)
}

func providePDFRenderer() *report.PDFRenderer {
	return report.NewPDFRenderer()
}

func provideReportStore(pool *pgxpool.Pool) *report.PostgresStore {
	return report.NewPostgresStore(pool)
}

func provideReportService(log *slog.Logger, conversations *conversation.Store, tenants *tenant.Service, renderer *report.PDFRenderer, uploader storage.Uploader, store *report.PostgresStore, sender mailer.Sender) *report.Service {
	return report.NewService(log, conversations, tenants, renderer, uploader, store, sender)
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}

func provideWebhookHandler(log *slog.Logger, tenants *tenant.Service, relaySvc *relay.Service) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, tenants, relaySvc)
}

func provideReportHandler(log *slog.Logger, reports *report.Service) *handlers.ReportHandler {
	return handlers.NewReportHandler(log, reports)
}

func provideMailHandler(log *slog.Logger, sender mailer.Sender, renderer *report.PDFRenderer) *handlers.MailHandler {
	return handlers.NewMailHandler(log, sender, renderer)
}

func provideServer(cfg config.Config, handlerList []server.Handler) *server.Server {
	return server.New(cfg.Server.Addr, handlerList)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server stopped", slog.Any("error", err))
				}
			}()
			log.Info("server listening", slog.String("addr", cfg.Server.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
