// janitor.go — сервис фоновой уборки осиротевших временных файлов.
//
// Приём загрузки пишет поток во временный файл с именем-UUID и удаляет
// его по завершении транзакции. Падение процесса посреди приёма
// оставляет файл на диске; уборщик добирает такие остатки по таймеру.
//
// Удаляются только файлы, имя которых разбирается как UUID и возраст
// которых превышает порог: директория временных файлов может быть
// общей, чужие файлы трогать нельзя.
//
// Запускается как горутина с периодическим тикером (UP_JANITOR_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики уборщика
var (
	// janitorRunsTotal — количество запусков уборки.
	janitorRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "up_janitor_runs_total",
		Help: "Общее количество запусков уборки временных файлов",
	})

	// janitorFilesDeletedTotal — количество удалённых временных файлов.
	janitorFilesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "up_janitor_files_deleted_total",
		Help: "Общее количество временных файлов, удалённых уборкой",
	})

	// janitorDurationSeconds — длительность выполнения уборки.
	janitorDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "up_janitor_duration_seconds",
		Help:    "Длительность выполнения уборки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// JanitorResult — результат одного запуска уборки.
type JanitorResult struct {
	// DeletedCount — количество удалённых файлов
	DeletedCount int
	// Errors — количество ошибок при удалении
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// JanitorService — сервис уборки временных файлов загрузки.
type JanitorService struct {
	tempDir  string
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewJanitorService создаёт сервис уборки.
func NewJanitorService(
	tempDir string,
	maxAge time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *JanitorService {
	return &JanitorService{
		tempDir:  tempDir,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger.With(slog.String("component", "janitor")),
	}
}

// Start запускает фоновую горутину уборки с периодическим тикером.
// Вызывается один раз при старте приложения.
func (js *JanitorService) Start(ctx context.Context) {
	jsCtx, cancel := context.WithCancel(ctx)
	js.cancel = cancel

	go js.run(jsCtx)

	js.logger.Info("Уборка временных файлов запущена",
		slog.String("interval", js.interval.String()),
		slog.String("max_age", js.maxAge.String()),
	)
}

// Stop останавливает фоновый процесс уборки.
func (js *JanitorService) Stop() {
	if js.cancel != nil {
		js.cancel()
	}
	js.logger.Info("Уборка временных файлов остановлена")
}

// run — основной цикл фоновой горутины.
func (js *JanitorService) run(ctx context.Context) {
	// Первый запуск — сразу после старта: остатки прошлого процесса
	// ждут с момента его падения
	js.RunOnce()

	ticker := time.NewTicker(js.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			js.RunOnce()
		}
	}
}

// RunOnce выполняет один цикл уборки.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
func (js *JanitorService) RunOnce() *JanitorResult {
	js.mu.Lock()
	defer js.mu.Unlock()

	start := time.Now()
	result := &JanitorResult{}

	cutoff := start.Add(-js.maxAge)

	entries, err := os.ReadDir(js.tempDir)
	if err != nil {
		js.logger.Error("чтение директории временных файлов",
			slog.String("dir", js.tempDir),
			slog.String("error", err.Error()),
		)
		result.Errors++
		return result
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// Только файлы с именем-UUID: так называет их приём загрузки
		if _, err := uuid.Parse(entry.Name()); err != nil {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			// Файл может принадлежать идущей прямо сейчас загрузке
			continue
		}

		path := filepath.Join(js.tempDir, entry.Name())
		if err := os.Remove(path); err != nil {
			js.logger.Error("удаление осиротевшего временного файла",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}

		js.logger.Debug("осиротевший временный файл удалён",
			slog.String("path", path),
			slog.Int64("size", info.Size()),
		)
		result.DeletedCount++
	}

	result.Duration = time.Since(start)

	// Обновляем Prometheus метрики
	janitorRunsTotal.Inc()
	janitorFilesDeletedTotal.Add(float64(result.DeletedCount))
	janitorDurationSeconds.Observe(result.Duration.Seconds())

	if result.DeletedCount > 0 || result.Errors > 0 {
		js.logger.Info("Уборка завершена",
			slog.Int("deleted", result.DeletedCount),
			slog.Int("errors", result.Errors),
			slog.Duration("duration", result.Duration),
		)
	}

	return result
}
