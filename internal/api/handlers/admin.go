// admin.go — административные операции. Маршруты защищены JWT
// middleware со scope collector:admin и монтируются только при
// настроенном JWKS endpoint.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/confcollect/collector/internal/api/errors"
	"github.com/confcollect/collector/internal/api/middleware"
	"github.com/confcollect/collector/internal/store"
)

// AdminHandler — обработчики /api/admin/*.
type AdminHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewAdminHandler создаёт обработчик административных операций.
func NewAdminHandler(st *store.Store, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		store:  st,
		logger: logger.With(slog.String("component", "admin_handler")),
	}
}

// DeleteSubmission обрабатывает DELETE /api/admin/submissions/{uid}.
// Удаляет запись доклада из журнала. Доклад с загруженными файлами не
// удаляется: сначала нужно удалить сами файлы, иначе они останутся в
// хранилище без записи.
func (h *AdminHandler) DeleteSubmission(w http.ResponseWriter, r *http.Request, uid string) {
	if !h.store.DeleteUid(uid, true) {
		errors.Fail(w, "submission has uploaded files or does not exist")
		return
	}
	if err := h.store.Save(); err != nil {
		h.logger.Error("сохранение журнала после удаления доклада", "uid", uid, "error", err)
	}

	h.logger.Info("запись доклада удалена",
		slog.String("uid", uid),
		slog.String("subject", middleware.SubjectFromContext(r.Context())),
	)
	errors.WriteOK(w)
}

// ListAllItems обрабатывает GET /api/admin/items.
// Полный дамп журнала записей без подписанных ссылок: административный
// клиент работает с RawDownloadUrl напрямую.
func (h *AdminHandler) ListAllItems(w http.ResponseWriter, _ *http.Request) {
	items := h.store.GetDictionaryCopy()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}
