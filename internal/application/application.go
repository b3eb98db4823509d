package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/diticoms/service-desk/internal/assistant"
	"github.com/diticoms/service-desk/internal/config"
	"github.com/diticoms/service-desk/internal/handler"
	"github.com/diticoms/service-desk/internal/invoice"
	"github.com/diticoms/service-desk/internal/middleware"
	"github.com/diticoms/service-desk/internal/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// API is the HTTP server mode.
type API struct {
	cfg      *config.Config
	log      *zap.Logger
	desk     *Desk
	renderer *invoice.ChromeRenderer
	httpSrv  *http.Server
}

func NewAPI(ctx context.Context, cfg *config.Config, log *zap.Logger) (*API, error) {
	desk, err := NewDesk(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	log = desk.Log
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	tokens := middleware.NewTokens(cfg.JWT.Secret, cfg.JWT.TTL)

	var (
		chrome   *invoice.ChromeRenderer
		renderer invoice.Renderer
	)
	if cfg.RendererEnabled() {
		chrome = invoice.NewChromeRenderer(invoice.ChromeConfig{
			RemoteURL: cfg.Chrome.RemoteURL,
			NoSandbox: cfg.Chrome.NoSandbox,
			Logger:    log.Named("chrome"),
		})
		renderer = chrome
	} else {
		log.Info("chrome: invoice images disabled (set CHROME_ENABLED or CHROME_REMOTE_URL)")
	}

	var uploader handler.Uploader
	up, err := invoice.NewUploader(invoice.StorageConfig{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		Bucket:    cfg.Minio.Bucket,
		UseSSL:    cfg.Minio.UseSSL,
	})
	switch {
	case err != nil:
		log.Warn("minio: invoice sharing disabled", zap.Error(err))
	case up != nil:
		if err := up.EnsureBucket(ctx); err != nil {
			log.Warn("minio: bucket check failed", zap.Error(err))
		}
		uploader = up
	}

	var ai handler.Assistant
	if cfg.Gemini.APIKey != "" {
		gen, err := assistant.NewGeminiGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			log.Warn("assistant disabled", zap.Error(err))
		} else {
			ai = assistant.New(gen, log.Named("assistant"))
		}
	}

	engine := router.New(router.Handlers{
		Auth:      handler.NewAuthHandler(desk.Service, tokens),
		Tickets:   handler.NewTicketHandler(desk.Service),
		Invoices:  handler.NewInvoiceHandler(desk.Service, renderer, uploader),
		Settings:  handler.NewSettingsHandler(desk.Service),
		Assistant: handler.NewAssistantHandler(desk.Service, ai),
		Ready:     desk.Ping,
	}, tokens, log.Named("http"))

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// refresh and writes wait on the sheet, which can take two attempts
		WriteTimeout: 2*cfg.Sheet.Timeout + cfg.Sheet.RetryDelay + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &API{
		cfg:      cfg,
		log:      log,
		desk:     desk,
		renderer: chrome,
		httpSrv:  httpSrv,
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.log.Info("HTTP server listening", zap.String("addr", a.httpSrv.Addr))
	a.log.Info("endpoints",
		zap.String("swagger", base+router.PathSwagger),
		zap.String("spec", base+router.PathSwagger+"/openapi.json"),
		zap.String("health", base+router.PathHealth),
		zap.String("ready", base+router.PathReady),
		zap.String("api", base+router.PathAPI+"/"))

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		a.close()
		if ok {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := a.httpSrv.Shutdown(shutdownCtx)
	a.close()
	if err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.log.Info("HTTP server stopped")
	return nil
}

func (a *API) close() {
	if a.renderer != nil {
		a.renderer.Close()
	}
	if err := a.desk.Close(); err != nil {
		a.log.Warn("close", zap.Error(err))
	}
}
