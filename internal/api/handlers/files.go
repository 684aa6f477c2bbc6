// files.go — приём и удаление материалов по подписанным ссылкам.
// Обе операции авторизуются мандатным токеном в пути запроса: сначала
// проверяется срок действия, затем токен, и только потом начинается
// какая-либо работа.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/confcollect/collector/internal/api/errors"
	"github.com/confcollect/collector/internal/api/middleware"
	"github.com/confcollect/collector/internal/auth"
	"github.com/confcollect/collector/internal/service"
)

// FilesHandler — обработчики POST /api/upload и POST /api/delete.
type FilesHandler struct {
	signer    *auth.Signer
	uploadSvc *service.UploadService
	deleteSvc *service.DeleteService
	logger    *slog.Logger
}

// NewFilesHandler создаёт обработчик операций с файлами.
func NewFilesHandler(
	signer *auth.Signer,
	uploadSvc *service.UploadService,
	deleteSvc *service.DeleteService,
	logger *slog.Logger,
) *FilesHandler {
	return &FilesHandler{
		signer:    signer,
		uploadSvc: uploadSvc,
		deleteSvc: deleteSvc,
		logger:    logger.With(slog.String("component", "files_handler")),
	}
}

// UploadFile обрабатывает POST /api/upload/{uid}/{itemId}/{expiry}/{auth}.
// Multipart-форма с одним файлом; используется первая секция с именем
// файла, остальные игнорируются. Поток секции передаётся сервису
// загрузки без буферизации тела целиком.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request, uid, itemId string, expiry int64, authToken string) {
	mr, err := r.MultipartReader()
	if err != nil {
		errors.UnsupportedMediaType(w, "multipart form expected")
		return
	}

	if expired(expiry) {
		errors.BadRequest(w)
		return
	}
	if !auth.SafeCompare(h.signer.UrlAuthUpload(uid, itemId, expiry), authToken) {
		errors.BadRequest(w)
		return
	}

	for {
		part, err := mr.NextPart()
		if err != nil {
			// Форма закончилась, файловой секции не было
			errors.Fail(w, "No files data in the request.")
			return
		}
		if part.FileName() == "" {
			continue
		}

		collF, serr := h.uploadSvc.Upload(r.Context(), service.UploadParams{
			UID:      uid,
			ItemID:   itemId,
			FileName: part.FileName(),
			Reader:   part,
		})
		if serr != nil {
			middleware.UploadsTotal.WithLabelValues(itemId, "fail").Inc()
			errors.WriteError(w, serr.StatusCode, serr.Message)
			return
		}

		middleware.UploadsTotal.WithLabelValues(itemId, "success").Inc()
		middleware.UploadBytes.Add(float64(collF.FileSize))
		if n := len(collF.Errors); n > 0 {
			middleware.CheckFindingsTotal.WithLabelValues(itemId, "error").Add(float64(n))
		}
		if n := len(collF.Warnings); n > 0 {
			middleware.CheckFindingsTotal.WithLabelValues(itemId, "warning").Add(float64(n))
		}

		errors.WriteOK(w)
		return
	}
}

// DeleteFile обрабатывает POST /api/delete/{uid}/{itemId}/{expiry}/{auth}.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request, uid, itemId string, expiry int64, authToken string) {
	if expired(expiry) {
		errors.BadRequest(w)
		return
	}
	if !auth.SafeCompare(h.signer.UrlAuthUpload(uid, itemId, expiry), authToken) {
		errors.BadRequest(w)
		return
	}

	if serr := h.deleteSvc.Delete(r.Context(), uid, itemId); serr != nil {
		middleware.DeletesTotal.WithLabelValues("fail").Inc()
		errors.WriteError(w, serr.StatusCode, serr.Message)
		return
	}
	middleware.DeletesTotal.WithLabelValues("success").Inc()
	errors.WriteOK(w)
}

// expired сообщает, истёк ли unix-срок действия мандата.
func expired(expiry int64) bool {
	return time.Unix(expiry, 0).Before(time.Now())
}
