// download.go — пакетное скачивание материалов доклада или события
// архивом. Сервис не собирает архив сам: запрос транслируется
// хранилищу, а ответ потоково пробрасывается клиенту.
package service

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/confcollect/collector/internal/catalog"
	"github.com/confcollect/collector/internal/config"
)

// DownloadService — проксирование архива каталога из хранилища.
type DownloadService struct {
	cfg    *config.Config
	remote RemoteStorage
	logger *slog.Logger
}

// NewDownloadService создаёт сервис пакетного скачивания.
func NewDownloadService(cfg *config.Config, remoteStorage RemoteStorage, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		cfg:    cfg,
		remote: remoteStorage,
		logger: logger.With(slog.String("component", "download_service")),
	}
}

// ServeFolderZip запрашивает у хранилища архив каталога доклада или
// события и транслирует ответ клиенту. Идентификатор без '_'
// трактуется как событие: архивируется каталог события целиком.
// Заголовки ответа хранилища пробрасываются, кроме Transfer-Encoding;
// Content-Disposition выставляется заново под имя {uid}.zip.
func (s *DownloadService) ServeFolderZip(w http.ResponseWriter, r *http.Request, uid string) {
	rootPath := fmt.Sprintf("/%s/%s/", s.cfg.StorageZone, s.cfg.StorageBasePath)

	isEvent := !strings.Contains(uid, "_")
	if !isEvent {
		rootPath += catalog.EventFromUID(uid) + "/"
	}
	path := rootPath + uid + "/"

	resp, err := s.remote.FolderZip(r.Context(), rootPath, []string{path})
	if err != nil {
		s.logger.Error("запрос архива у хранилища", "uid", uid, "error", err)
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if strings.EqualFold(key, "Transfer-Encoding") {
			continue
		}
		w.Header()[key] = values
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.zip", uid))
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		// Обрыв клиента во время стриминга: ответ уже начат,
		// остаётся только залогировать
		s.logger.Debug("трансляция архива прервана", "uid", uid, "error", err)
	}
}
