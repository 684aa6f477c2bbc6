// items.go — выдача записей о материалах в проекции для клиентов.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/confcollect/collector/internal/api/errors"
	"github.com/confcollect/collector/internal/auth"
	"github.com/confcollect/collector/internal/domain/model"
	"github.com/confcollect/collector/internal/service"
)

// itemsDownloadExpiryHours — срок действия подписанных ссылок в выдаче.
const itemsDownloadExpiryHours = 24

// ItemsHandler — обработчик GET /api/items/{auth}/{uid}.
type ItemsHandler struct {
	signer *auth.Signer
	items  *service.ItemsService
}

// NewItemsHandler создаёт обработчик выдачи записей.
func NewItemsHandler(signer *auth.Signer, items *service.ItemsService) *ItemsHandler {
	return &ItemsHandler{signer: signer, items: items}
}

// itemView — проекция одной записи для внешнего потребителя.
// Служебные поля (RawDownloadUrl, ParentUid) не выдаются.
type itemView struct {
	Name         string   `json:"name"`
	FileName     string   `json:"fileName"`
	IsPresent    bool     `json:"isPresent"`
	FileSize     int64    `json:"fileSize"`
	Checksum     string   `json:"checksum"`
	LastUploaded *string  `json:"lastUploaded"`
	LastChecked  *string  `json:"lastChecked"`
	Url          string   `json:"url"`
	NumErrors    int      `json:"numErrors"`
	NumWarnings  int      `json:"numWarnings"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
}

// submissionView — записи одного доклада.
type submissionView struct {
	Uid   string     `json:"uid"`
	Items []itemView `json:"items"`
}

// GetItems выдаёт записи по адресуемому идентификатору: доклад, событие
// или "_" для всех. Параметр ft ограничивает выдачу перечисленными
// типами материалов; мандат привязан и к идентификатору, и к набору ft,
// поэтому ссылка на превью-выборку не открывает полный список.
func (h *ItemsHandler) GetItems(w http.ResponseWriter, r *http.Request, authToken, uid string) {
	ft := r.URL.Query()["ft"]
	ftS := strings.Join(ft, "|")

	if !auth.SafeCompare(h.signer.UrlAuthAction("api-items"+ftS, uid), authToken) {
		errors.BadRequest(w)
		return
	}

	items := h.items.Retrieve(uid, itemsDownloadExpiryHours)

	res := make([]submissionView, 0, len(items))
	for _, sub := range items {
		views := make([]itemView, 0, len(sub.Files))
		for _, f := range sub.Files {
			if len(ft) > 0 && !containsExact(ft, f.FileTypeId) {
				continue
			}
			views = append(views, toItemView(f))
		}
		res = append(res, submissionView{Uid: sub.Uid, Items: views})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

func toItemView(f *model.CollectedFile) itemView {
	v := itemView{
		Name:         f.Name,
		FileName:     f.FileName,
		IsPresent:    f.IsPresent,
		FileSize:     f.FileSize,
		Checksum:     f.Checksum,
		Url:          f.DownloadUrl,
		LastUploaded: formatTimestamp(f.LastUploaded),
		LastChecked:  formatTimestamp(f.LastChecked),
		NumErrors:    len(f.Errors),
		NumWarnings:  len(f.Warnings),
		Errors:       emptyIfNil(f.Errors),
		Warnings:     emptyIfNil(f.Warnings),
	}
	return v
}

// formatTimestamp выдаёт отметку времени в формате "2006-01-02 15:04:05Z".
func formatTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format("2006-01-02 15:04:05Z")
	return &s
}

func emptyIfNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func containsExact(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
