// reconcile.go — сервис фоновой сверки журнала записей с каталогом и
// внешним хранилищем.
//
// Справочники каталога правятся руками между конференциями, журнал
// живёт дольше одного сезона, а файлы в хранилище доступны и другим
// инструментам. Сверка находит расхождения:
//   - unknown_event: доклад, событие которого исчезло из каталога
//   - unknown_file_type: слот с типом материала, которого нет в каталоге
//   - missing_upload_data: слот помечен загруженным, но без имени файла
//     или ссылки хранилища
//   - missing_remote_file: слот помечен загруженным, но файла нет в
//     листинге каталога хранилища
//
// Сверка только докладывает: записи не правятся и не удаляются,
// решение остаётся за оператором.
//
// Запускается как горутина с периодическим тикером (UP_RECONCILE_INTERVAL).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/confcollect/collector/internal/catalog"
	"github.com/confcollect/collector/internal/config"
	"github.com/confcollect/collector/internal/storage/remote"
	"github.com/confcollect/collector/internal/store"
)

// FolderLister — листинг каталога внешнего хранилища.
// Реализуется remote.Client.
type FolderLister interface {
	List(ctx context.Context, dirPath string) ([]remote.ObjectInfo, error)
}

// Prometheus метрики сверки
var (
	// reconcileRunsTotal — количество запусков сверки.
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "up_reconcile_runs_total",
		Help: "Общее количество запусков сверки журнала",
	})

	// reconcileIssuesTotal — количество обнаруженных расхождений по типу.
	reconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "up_reconcile_issues_total",
		Help: "Общее количество расхождений, обнаруженных сверкой",
	}, []string{"type"})

	// reconcileDurationSeconds — длительность выполнения сверки.
	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "up_reconcile_duration_seconds",
		Help:    "Длительность выполнения сверки в секундах",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// Типы расхождений сверки.
const (
	IssueUnknownEvent      = "unknown_event"
	IssueUnknownFileType   = "unknown_file_type"
	IssueMissingUploadData = "missing_upload_data"
	IssueMissingRemoteFile = "missing_remote_file"
)

// ReconcileIssue — одно расхождение журнала с каталогом.
type ReconcileIssue struct {
	// Type — тип расхождения
	Type string
	// Uid — идентификатор доклада
	Uid string
	// FileTypeId — тип материала слота (пустой для unknown_event)
	FileTypeId string
	// Description — человекочитаемое описание
	Description string
}

// ReconcileResult — результат одного запуска сверки.
type ReconcileResult struct {
	// SlotsChecked — количество проверенных слотов
	SlotsChecked int
	// Issues — обнаруженные расхождения
	Issues []ReconcileIssue
	// Duration — длительность выполнения
	Duration time.Duration
}

// ReconcileService — сервис фоновой сверки журнала.
type ReconcileService struct {
	cfg      *config.Config
	catalog  *catalog.Catalog
	store    *store.Store
	lister   FolderLister
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool       // сверка в процессе выполнения
	cancel    context.CancelFunc
}

// NewReconcileService создаёт сервис сверки. lister == nil отключает
// сверку с хранилищем, остаются только проверки журнала с каталогом.
func NewReconcileService(
	cfg *config.Config,
	cat *catalog.Catalog,
	st *store.Store,
	lister FolderLister,
	interval time.Duration,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		cfg:      cfg,
		catalog:  cat,
		store:    st,
		lister:   lister,
		interval: interval,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую горутину сверки с периодическим тикером.
func (rs *ReconcileService) Start(ctx context.Context) {
	rsCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel

	go rs.run(rsCtx)

	rs.logger.Info("Сверка журнала запущена",
		slog.String("interval", rs.interval.String()),
	)
}

// Stop останавливает фоновый процесс сверки.
func (rs *ReconcileService) Stop() {
	if rs.cancel != nil {
		rs.cancel()
	}
	rs.logger.Info("Сверка журнала остановлена")
}

// IsInProgress возвращает true, если сверка выполняется.
func (rs *ReconcileService) IsInProgress() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.inProcess
}

// run — основной цикл фоновой горутины.
func (rs *ReconcileService) run(ctx context.Context) {
	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл сверки.
// Потокобезопасен: если сверка уже выполняется, возвращает nil, true.
func (rs *ReconcileService) RunOnce(ctx context.Context) (*ReconcileResult, bool) {
	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		rs.logger.Warn("Сверка уже выполняется, пропуск")
		return nil, true
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	start := time.Now()
	result := rs.reconcile(ctx)
	result.Duration = time.Since(start)

	// Обновляем Prometheus метрики
	reconcileRunsTotal.Inc()
	reconcileDurationSeconds.Observe(result.Duration.Seconds())
	for _, issue := range result.Issues {
		reconcileIssuesTotal.WithLabelValues(issue.Type).Inc()
	}

	if len(result.Issues) > 0 {
		for _, issue := range result.Issues {
			rs.logger.Warn("расхождение журнала с каталогом",
				slog.String("type", issue.Type),
				slog.String("uid", issue.Uid),
				slog.String("file_type", issue.FileTypeId),
				slog.String("description", issue.Description),
			)
		}
	}

	rs.logger.Info("Сверка завершена",
		slog.Int("slots_checked", result.SlotsChecked),
		slog.Int("issues", len(result.Issues)),
		slog.Duration("duration", result.Duration),
	)

	return result, false
}

// reconcile сверяет все записи журнала с каталогом и хранилищем.
func (rs *ReconcileService) reconcile(ctx context.Context) *ReconcileResult {
	result := &ReconcileResult{}

	for _, sub := range rs.store.GetDictionaryCopy() {
		if _, ok := rs.catalog.EventForUID(sub.Uid); !ok {
			result.Issues = append(result.Issues, ReconcileIssue{
				Type:        IssueUnknownEvent,
				Uid:         sub.Uid,
				Description: "Событие доклада отсутствует в каталоге",
			})
		}

		remoteNames := rs.listSubmission(ctx, sub)

		for _, f := range sub.Files {
			result.SlotsChecked++

			if _, ok := rs.catalog.FileTypes[f.FileTypeId]; !ok {
				result.Issues = append(result.Issues, ReconcileIssue{
					Type:        IssueUnknownFileType,
					Uid:         sub.Uid,
					FileTypeId:  f.FileTypeId,
					Description: "Тип материала слота отсутствует в каталоге",
				})
			}

			if f.IsPresent && (f.FileName == "" || f.RawDownloadUrl == "") {
				result.Issues = append(result.Issues, ReconcileIssue{
					Type:        IssueMissingUploadData,
					Uid:         sub.Uid,
					FileTypeId:  f.FileTypeId,
					Description: "Слот помечен загруженным без имени файла или ссылки хранилища",
				})
			}

			if f.IsPresent && f.FileName != "" && remoteNames != nil && !remoteNames[f.FileName] {
				result.Issues = append(result.Issues, ReconcileIssue{
					Type:        IssueMissingRemoteFile,
					Uid:         sub.Uid,
					FileTypeId:  f.FileTypeId,
					Description: "Файл слота отсутствует в каталоге хранилища",
				})
			}
		}
	}

	return result
}

// listSubmission возвращает множество имён файлов каталога доклада в
// хранилище, nil — если сверка с хранилищем невозможна: листинг
// выключен, у доклада нет загрузок, либо листинг не удался. Отказ
// хранилища не превращается в расхождения на каждый слот.
func (rs *ReconcileService) listSubmission(ctx context.Context, sub store.SubmissionFiles) map[string]bool {
	if rs.lister == nil {
		return nil
	}
	hasUploads := false
	for _, f := range sub.Files {
		if f.IsPresent && f.FileName != "" {
			hasUploads = true
			break
		}
	}
	if !hasUploads {
		return nil
	}

	dirPath := fmt.Sprintf("/%s/%s/%s/", rs.cfg.StorageBasePath, catalog.EventFromUID(sub.Uid), sub.Uid)
	objects, err := rs.lister.List(ctx, dirPath)
	if err != nil {
		rs.logger.Warn("листинг каталога доклада не удался",
			slog.String("uid", sub.Uid),
			slog.String("error", err.Error()),
		)
		return nil
	}

	names := make(map[string]bool, len(objects))
	for _, obj := range objects {
		if !obj.IsDirectory {
			names[obj.ObjectName] = true
		}
	}
	return names
}
