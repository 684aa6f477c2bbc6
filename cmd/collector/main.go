// Точка входа сервиса сбора материалов докладов.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/confcollect/collector/api"
	"github.com/confcollect/collector/internal/api/handlers"
	"github.com/confcollect/collector/internal/api/middleware"
	"github.com/confcollect/collector/internal/auth"
	"github.com/confcollect/collector/internal/catalog"
	"github.com/confcollect/collector/internal/check"
	"github.com/confcollect/collector/internal/check/audio"
	"github.com/confcollect/collector/internal/check/video"
	"github.com/confcollect/collector/internal/config"
	"github.com/confcollect/collector/internal/server"
	"github.com/confcollect/collector/internal/service"
	"github.com/confcollect/collector/internal/storage/remote"
	"github.com/confcollect/collector/internal/store"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Сервис сбора материалов запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("config_dir", cfg.ConfigDir),
		slog.String("storage_zone", cfg.StorageZone),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Инициализация компонентов ---

	// 1. Встроенный OpenAPI-контракт: расхождение со схемой
	// останавливает запуск до приёма трафика
	if _, err := api.Contract(ctx); err != nil {
		logger.Error("Ошибка OpenAPI-контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Каталог типов материалов и событий
	cat, err := catalog.Load(cfg.ConfigDir)
	if err != nil {
		logger.Error("Ошибка загрузки каталога", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Каталог загружен",
		slog.Int("file_types", len(cat.FileTypes)),
		slog.Int("events", len(cat.Events)),
	)

	// 3. Журнал записей о материалах
	st, err := store.New(filepath.Join(cfg.ConfigDir, "collectedFiles.jsonl"), logger)
	if err != nil {
		logger.Error("Ошибка загрузки журнала записей", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подпись мандатных токенов и ссылок CDN
	signer := auth.NewSigner(cfg.AuthPrivateKey, cfg.CdnTokenKey)

	// 5. Клиент внешнего хранилища и сброс кэша CDN
	remoteClient := remote.New(cfg.StorageEndpoint, cfg.StorageZone, cfg.StorageAccessKey, logger)
	purger := remote.NewPurger(cfg.CdnPurgeUrl, cfg.CdnApiKey, logger)
	if !purger.Enabled() {
		logger.Warn("Ключ CDN не задан, сброс кэша выключен")
	}

	// 6. Конвейер проверок: инструментальные проверки требуют ffprobe и ffmpeg
	prober, err := video.NewProber(cfg.FfprobePath)
	if err != nil {
		logger.Error("Ошибка инициализации ffprobe", slog.String("error", err.Error()))
		os.Exit(1)
	}
	analyzer, err := audio.NewAnalyzer(cfg.FfmpegPath)
	if err != nil {
		logger.Error("Ошибка инициализации ffmpeg", slog.String("error", err.Error()))
		os.Exit(1)
	}
	checker := check.NewFileChecker(video.NewChecker(prober), audio.NewChecker(analyzer), logger)

	// 7. Сервисы
	locks := service.NewSlotLocks()
	deleteSvc := service.NewDeleteService(cfg, st, remoteClient, locks, logger)
	uploadSvc := service.NewUploadService(cfg, cat, st, signer, remoteClient, purger, checker, locks, deleteSvc, logger)
	itemsSvc := service.NewItemsService(cat, st, signer, logger)
	downloadSvc := service.NewDownloadService(cfg, remoteClient, logger)

	// 8. Фоновые процессы

	// 8.1 Повтор записи журнала на диск после сбоев Save
	go ensureOnDiskLoop(ctx, st, cfg.EnsureOnDiskInterval, logger)

	// 8.2 Уборка осиротевших временных файлов загрузки
	janitorSvc := service.NewJanitorService(cfg.TempDir, cfg.JanitorMaxAge, cfg.JanitorInterval, logger)
	janitorSvc.Start(ctx)

	// 8.3 Сверка журнала записей с каталогом и хранилищем
	reconcileSvc := service.NewReconcileService(cfg, cat, st, remoteClient, cfg.ReconcileInterval, logger)
	reconcileSvc.Start(ctx)

	// 8.4 topologymetrics — мониторинг API хранилища
	instanceName := cfg.DephealthName
	if instanceName == "" {
		instanceName, _ = os.Hostname()
	}
	dephealthSvc, dephealthErr := service.NewDephealthService(
		instanceName,
		cfg.DephealthGroup,
		cfg.DephealthDepName,
		cfg.StorageEndpoint,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("target", cfg.StorageEndpoint),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 9. JWT middleware административных маршрутов
	var jwtAuth *middleware.JWTAuth
	if cfg.JWKSUrl != "" {
		jwtAuth, err = middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:    cfg.JWKSUrl,
			CACertPath: cfg.JWKSCACert,
		}, logger)
		if err != nil {
			// JWKS недоступен — административные маршруты не монтируются
			logger.Warn("JWT JWKS недоступен, административные маршруты выключены",
				slog.String("jwks_url", cfg.JWKSUrl),
				slog.String("error", err.Error()),
			)
			jwtAuth = nil
		} else {
			logger.Info("JWT аутентификация настроена",
				slog.String("jwks_url", cfg.JWKSUrl),
			)
		}
	} else {
		logger.Info("JWKS endpoint не задан, административные маршруты выключены")
	}

	// 10. Handlers
	h := server.Handlers{
		Urls:     handlers.NewUrlsHandler(signer, itemsSvc),
		Items:    handlers.NewItemsHandler(signer, itemsSvc),
		Files:    handlers.NewFilesHandler(signer, uploadSvc, deleteSvc, logger),
		Download: handlers.NewDownloadHandler(signer, downloadSvc),
		Admin:    handlers.NewAdminHandler(st, logger),
		Health:   handlers.NewHealthHandler(cfg.ConfigDir, cfg.TempDir, st),
	}

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h, jwtAuth)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	cancel()
	janitorSvc.Stop()
	reconcileSvc.Stop()
	if dephealthErr == nil {
		dephealthSvc.Stop()
	}

	// Последняя попытка дописать журнал перед выходом
	if err := st.EnsureOnDisk(); err != nil {
		logger.Error("Журнал записей не сохранён при остановке", slog.String("error", err.Error()))
	}

	logger.Info("Сервис сбора материалов остановлен")
}

// ensureOnDiskLoop периодически дописывает журнал на диск, если
// предыдущий Save завершился ошибкой. Диск мог восстановиться между
// запросами, поэтому повтор идёт по таймеру, а не по обращению.
func ensureOnDiskLoop(ctx context.Context, st *store.Store, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := st.EnsureOnDisk(); err != nil {
				logger.Error("Фоновая запись журнала на диск", slog.String("error", err.Error()))
			}
		}
	}
}
