// Пакет handlers — HTTP-обработчики сервиса сбора материалов.
// urls.go — выдача набора адресных ссылок для клиентского приложения.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode"

	"github.com/confcollect/collector/internal/api/errors"
	"github.com/confcollect/collector/internal/auth"
	"github.com/confcollect/collector/internal/service"
)

// previewItemTypes — типы материалов, попадающие в превью-выборку
// (ускоренное видео и его субтитры).
var previewItemTypes = []string{"video-ff", "video-ff-subs"}

// UrlsHandler — обработчик GET /api/urls/{auth}/{uid}.
type UrlsHandler struct {
	signer *auth.Signer
	items  *service.ItemsService
}

// NewUrlsHandler создаёт обработчик выдачи ссылок.
func NewUrlsHandler(signer *auth.Signer, items *service.ItemsService) *UrlsHandler {
	return &UrlsHandler{signer: signer, items: items}
}

// urlsResponse — набор адресных ссылок для одного доклада.
type urlsResponse struct {
	UploadUrl       string `json:"uploadUrl"`
	RetrieveUrl     string `json:"retrieveUrl"`
	ItemsUrl        string `json:"itemsUrl"`
	PreviewItemsUrl string `json:"previewItemsUrl"`
}

// GetUrls выдаёт подписанные ссылки на операции с докладом. Мандат
// запроса не привязан к докладу: ссылки запрашивает доверенная система
// рассылки. Для идентификатора, оканчивающегося цифрой, слоты доклада
// материализуются сразу, чтобы рассылаемая ссылка вела на готовую
// страницу.
func (h *UrlsHandler) GetUrls(w http.ResponseWriter, r *http.Request, authToken, uid string) {
	if !auth.SafeCompare(h.signer.UrlAuthAction("urls", ""), authToken) {
		errors.BadRequest(w)
		return
	}

	if uid != "" && unicode.IsDigit(rune(uid[len(uid)-1])) {
		h.items.EnsureCollectedFiles(uid)
	}

	previewS := strings.Join(previewItemTypes, "|")
	uploadAuth := h.signer.UrlAuthAction("upload", uid)
	getAuth := h.signer.UrlAuthAction("get", uid)
	itemsAuth := h.signer.UrlAuthAction("api-items", uid)
	previewAuth := h.signer.UrlAuthAction("api-items"+previewS, uid)

	baseUrl := baseURLBefore(r, "api/urls")

	ftQuery := make([]string, len(previewItemTypes))
	for i, t := range previewItemTypes {
		ftQuery[i] = "ft=" + t
	}

	resp := urlsResponse{
		UploadUrl:       baseUrl + uploadAuth + "/upload/" + uid,
		RetrieveUrl:     baseUrl + getAuth + "/get/" + uid,
		ItemsUrl:        baseUrl + "api/items/" + itemsAuth + "/" + uid,
		PreviewItemsUrl: baseUrl + "api/items/" + previewAuth + "/" + uid + "?" + strings.Join(ftQuery, "&"),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// baseURLBefore восстанавливает абсолютный префикс URL запроса до
// указанного фрагмента пути. Если фрагмент не найден, возвращается "/".
func baseURLBefore(r *http.Request, marker string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	full := scheme + "://" + r.Host + r.URL.Path
	idx := strings.Index(strings.ToLower(full), marker)
	if idx == -1 {
		return "/"
	}
	return full[:idx]
}
