// download.go — пакетное скачивание материалов архивом.
package handlers

import (
	"net/http"

	"github.com/confcollect/collector/internal/api/errors"
	"github.com/confcollect/collector/internal/auth"
	"github.com/confcollect/collector/internal/service"
)

// downloadFolderItem — фиктивный идентификатор типа материала в
// контексте мандата пакетного скачивания.
const downloadFolderItem = ":download-folder:"

// DownloadHandler — обработчик GET /api/download/{expiry}/{auth}/{uid}.
type DownloadHandler struct {
	signer      *auth.Signer
	downloadSvc *service.DownloadService
}

// NewDownloadHandler создаёт обработчик пакетного скачивания.
func NewDownloadHandler(signer *auth.Signer, downloadSvc *service.DownloadService) *DownloadHandler {
	return &DownloadHandler{signer: signer, downloadSvc: downloadSvc}
}

// DownloadFolder проксирует архив каталога доклада или события из
// хранилища. Мандат строится в том же контексте, что и мандат
// загрузки, с фиксированным псевдотипом вместо itemId.
func (h *DownloadHandler) DownloadFolder(w http.ResponseWriter, r *http.Request, expiry int64, authToken, uid string) {
	if expired(expiry) {
		errors.BadRequest(w)
		return
	}
	if !auth.SafeCompare(h.signer.UrlAuthUpload(uid, downloadFolderItem, expiry), authToken) {
		errors.BadRequest(w)
		return
	}

	h.downloadSvc.ServeFolderZip(w, r, uid)
}
