// Пакет remote — клиент внешнего файлового хранилища с HTTP API в
// стиле CDN-зоны: файл адресуется путём внутри зоны, авторизация
// ключом доступа в заголовке. Клиент покрывает загрузку, удаление,
// листинг каталога, пакетное скачивание каталога архивом и сброс
// кэша CDN.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const defaultTimeout = 120 * time.Second

// Client — клиент зоны хранилища.
type Client struct {
	httpClient *http.Client
	endpoint   string
	zone       string
	accessKey  string
	logger     *slog.Logger
}

// New создаёт клиент зоны.
//
// Параметры:
//   - endpoint: базовый URL API хранилища (https://storage.example.org)
//   - zone: имя зоны
//   - accessKey: ключ доступа зоны
func New(endpoint, zone, accessKey string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		zone:       zone,
		accessKey:  accessKey,
		logger:     logger.With(slog.String("component", "remote_storage")),
	}
}

// objectURL строит URL объекта зоны. targetPath начинается с "/".
func (c *Client) objectURL(targetPath string) string {
	return c.endpoint + "/" + c.zone + targetPath
}

// Upload загружает локальный файл в зону по пути targetPath.
// Контрольная сумма передаётся серверу, несовпадение на той стороне
// отклоняет загрузку целиком.
func (c *Client) Upload(ctx context.Context, localPath, targetPath, checksum string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("открытие файла %s: %w", localPath, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("чтение атрибутов %s: %w", localPath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.objectURL(targetPath), f)
	if err != nil {
		return fmt.Errorf("формирование запроса: %w", err)
	}
	req.ContentLength = fi.Size()
	req.Header.Set("AccessKey", c.accessKey)
	req.Header.Set("Content-Type", "application/octet-stream")
	if checksum != "" {
		req.Header.Set("Checksum", checksum)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("загрузка %s: %w", targetPath, err)
	}
	defer drainClose(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("загрузка %s: хранилище ответило %d", targetPath, resp.StatusCode)
	}

	c.logger.Info("файл передан в хранилище",
		slog.String("path", targetPath),
		slog.Int64("size", fi.Size()),
	)
	return nil
}

// Delete удаляет объект зоны. Возвращает false без ошибки, если
// хранилище ответило отказом.
func (c *Client) Delete(ctx context.Context, targetPath string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.objectURL(targetPath), nil)
	if err != nil {
		return false, fmt.Errorf("формирование запроса: %w", err)
	}
	req.Header.Set("AccessKey", c.accessKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("удаление %s: %w", targetPath, err)
	}
	defer drainClose(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("хранилище отклонило удаление",
			slog.String("path", targetPath),
			slog.Int("status", resp.StatusCode),
		)
		return false, nil
	}
	return true, nil
}

// ObjectInfo — запись листинга каталога зоны.
type ObjectInfo struct {
	// ObjectName — имя объекта без пути
	ObjectName string `json:"ObjectName"`
	// Length — размер в байтах
	Length int64 `json:"Length"`
	// IsDirectory — объект является каталогом
	IsDirectory bool `json:"IsDirectory"`
}

// List возвращает содержимое каталога зоны. dirPath начинается и
// заканчивается "/". Несуществующий каталог — пустой листинг, не ошибка.
func (c *Client) List(ctx context.Context, dirPath string) ([]ObjectInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectURL(dirPath), nil)
	if err != nil {
		return nil, fmt.Errorf("формирование запроса: %w", err)
	}
	req.Header.Set("AccessKey", c.accessKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("листинг %s: %w", dirPath, err)
	}
	defer drainClose(resp)

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("листинг %s: хранилище ответило %d", dirPath, resp.StatusCode)
	}

	var objects []ObjectInfo
	if err := json.NewDecoder(resp.Body).Decode(&objects); err != nil {
		return nil, fmt.Errorf("разбор листинга %s: %w", dirPath, err)
	}
	return objects, nil
}

// folderZipRequest — тело запроса пакетного скачивания.
type folderZipRequest struct {
	RootPath string   `json:"RootPath"`
	Paths    []string `json:"Paths"`
}

// FolderZip запрашивает у хранилища архив каталога. Ответ возвращается
// как есть: тело закрывает вызывающая сторона, которая транслирует его
// клиенту.
func (c *Client) FolderZip(ctx context.Context, rootPath string, paths []string) (*http.Response, error) {
	body, err := json.Marshal(folderZipRequest{RootPath: rootPath, Paths: paths})
	if err != nil {
		return nil, fmt.Errorf("сериализация запроса: %w", err)
	}

	reqURL := c.endpoint + "/" + c.zone + "/?AccessKey=" + url.QueryEscape(c.accessKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("формирование запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос архива %s: %w", rootPath, err)
	}
	return resp, nil
}

// Purger — клиент сброса кэша CDN. Отдельный тип с отдельным ключом:
// ключ аккаунта шире ключа зоны и может отсутствовать.
type Purger struct {
	httpClient *http.Client
	purgeURL   string
	apiKey     string
	logger     *slog.Logger
}

// NewPurger создаёт клиент сброса кэша. Пустой apiKey означает, что
// сброс кэша выключен: Enabled вернёт false.
func NewPurger(purgeURL, apiKey string, logger *slog.Logger) *Purger {
	return &Purger{
		httpClient: &http.Client{Timeout: defaultTimeout},
		purgeURL:   purgeURL,
		apiKey:     apiKey,
		logger:     logger.With(slog.String("component", "cdn_purge")),
	}
}

// Enabled сообщает, настроен ли сброс кэша.
func (p *Purger) Enabled() bool {
	return p.apiKey != ""
}

// Purge сбрасывает кэш CDN для одного URL.
func (p *Purger) Purge(ctx context.Context, fileURL string) error {
	reqURL := p.purgeURL + "?url=" + url.QueryEscape(fileURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return fmt.Errorf("формирование запроса: %w", err)
	}
	req.Header.Set("AccessKey", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("сброс кэша %s: %w", fileURL, err)
	}
	defer drainClose(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("сброс кэша %s: сервис ответил %d", fileURL, resp.StatusCode)
	}
	return nil
}

// drainClose дочитывает и закрывает тело ответа, чтобы соединение
// вернулось в пул.
func drainClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
