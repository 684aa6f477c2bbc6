// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/confcollect/collector/internal/config"
	"github.com/confcollect/collector/internal/store"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// configDir — директория конфигурации и журнала (для проверки FS)
	configDir string
	// tempDir — директория временных файлов загрузки
	tempDir string
	// store — журнал записей (для проверки сохранённости на диске)
	store *store.Store
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(configDir, tempDir string, st *store.Store) *HealthHandler {
	return &HealthHandler{
		version:   config.Version,
		configDir: configDir,
		tempDir:   tempDir,
		store:     st,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "collector",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: директория конфигурации и журнала, директория временных
// файлов, сохранённость журнала на диске.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	configCheck := h.checkWritable(h.configDir)
	if configCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	tempCheck := h.checkWritable(h.tempDir)
	if tempCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	// Несохранённый журнал — повод вывести под из балансировки, пока
	// фоновый повтор не допишет его на диск
	journalCheck := h.checkJournal()
	if journalCheck["status"] != "ok" && overallStatus != statusFail {
		overallStatus = "degraded"
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "collector",
		"checks": map[string]any{
			"config_dir": configCheck,
			"temp_dir":   tempCheck,
			"journal":    journalCheck,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// checkWritable проверяет доступность директории на запись.
func (h *HealthHandler) checkWritable(dir string) map[string]any {
	if dir == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	testFile := filepath.Join(dir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Директория недоступна для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}

// checkJournal убеждается, что журнал записей сохранён на диске.
func (h *HealthHandler) checkJournal() map[string]any {
	if h.store == nil {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}
	if err := h.store.EnsureOnDisk(); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Журнал записей не сохранён: " + err.Error(),
		}
	}
	return map[string]any{
		"status": "ok",
	}
}
