// Пакет server — HTTP-сервер сервиса сбора материалов: маршрутизация,
// middleware и graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/confcollect/collector/internal/api/errors"
	"github.com/confcollect/collector/internal/api/handlers"
	"github.com/confcollect/collector/internal/api/middleware"
	"github.com/confcollect/collector/internal/config"
)

// Handlers — набор обработчиков, монтируемых сервером.
type Handlers struct {
	Urls     *handlers.UrlsHandler
	Items    *handlers.ItemsHandler
	Files    *handlers.FilesHandler
	Download *handlers.DownloadHandler
	Admin    *handlers.AdminHandler
	Health   *handlers.HealthHandler
}

// Server — HTTP-сервер сервиса сбора материалов.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
// jwtAuth == nil отключает административные маршруты целиком: без
// настроенного JWKS endpoint их просто не существует.
func New(cfg *config.Config, logger *slog.Logger, h Handlers, jwtAuth *middleware.JWTAuth) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Get("/urls/{auth}/{uid}", func(w http.ResponseWriter, r *http.Request) {
			h.Urls.GetUrls(w, r, chi.URLParam(r, "auth"), chi.URLParam(r, "uid"))
		})

		r.Get("/items/{auth}/{uid}", func(w http.ResponseWriter, r *http.Request) {
			h.Items.GetItems(w, r, chi.URLParam(r, "auth"), chi.URLParam(r, "uid"))
		})

		r.Post("/upload/{uid}/{itemId}/{expiry}/{auth}", func(w http.ResponseWriter, r *http.Request) {
			expiry, ok := parseExpiry(w, r)
			if !ok {
				return
			}
			h.Files.UploadFile(w, r,
				chi.URLParam(r, "uid"),
				chi.URLParam(r, "itemId"),
				expiry,
				chi.URLParam(r, "auth"),
			)
		})

		r.Post("/delete/{uid}/{itemId}/{expiry}/{auth}", func(w http.ResponseWriter, r *http.Request) {
			expiry, ok := parseExpiry(w, r)
			if !ok {
				return
			}
			h.Files.DeleteFile(w, r,
				chi.URLParam(r, "uid"),
				chi.URLParam(r, "itemId"),
				expiry,
				chi.URLParam(r, "auth"),
			)
		})

		r.Get("/download/{expiry}/{auth}/{uid}", func(w http.ResponseWriter, r *http.Request) {
			expiry, ok := parseExpiry(w, r)
			if !ok {
				return
			}
			h.Download.DownloadFolder(w, r, expiry, chi.URLParam(r, "auth"), chi.URLParam(r, "uid"))
		})

		if jwtAuth != nil {
			r.Route("/admin", func(ar chi.Router) {
				ar.Use(jwtAuth.Middleware())
				ar.Use(middleware.RequireScope(middleware.ScopeAdmin))
				ar.Delete("/submissions/{uid}", func(w http.ResponseWriter, r *http.Request) {
					h.Admin.DeleteSubmission(w, r, chi.URLParam(r, "uid"))
				})
				ar.Get("/items", h.Admin.ListAllItems)
			})
		}
	})

	// ReadTimeout не задаётся: он ограничил бы и чтение тела, а
	// загрузка видео на медленном канале занимает минуты
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// parseExpiry разбирает unix-срок действия из пути запроса.
// Неразборный срок неотличим снаружи от неверного мандата.
func parseExpiry(w http.ResponseWriter, r *http.Request) (int64, bool) {
	expiry, err := strconv.ParseInt(chi.URLParam(r, "expiry"), 10, 64)
	if err != nil {
		errors.BadRequest(w)
		return 0, false
	}
	return expiry, true
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown с таймаутом из
// конфигурации.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен", slog.String("addr", s.httpServer.Addr))

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
