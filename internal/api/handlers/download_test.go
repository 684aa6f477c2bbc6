package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func zipResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header: http.Header{
			"Content-Type": []string{"application/zip"},
		},
		Body: io.NopCloser(strings.NewReader(body)),
	}
}

func TestDownloadFolder_Success(t *testing.T) {
	env := newTestEnv(t)
	env.remote.zipResp = zipResponse("zip-bytes")
	expiry := futureExpiry()
	token := env.signer.UrlAuthUpload("v-full_1001", ":download-folder:", expiry)

	req := httptest.NewRequest(http.MethodGet, "/api/download/0/x/v-full_1001", nil)
	rec := httptest.NewRecorder()
	env.download.DownloadFolder(rec, req, expiry, token, "v-full_1001")

	if rec.Code != http.StatusOK {
		t.Fatalf("Статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=v-full_1001.zip" {
		t.Errorf("Content-Disposition = %q", got)
	}
	if rec.Body.String() != "zip-bytes" {
		t.Errorf("Тело архива: %q", rec.Body.String())
	}
}

func TestDownloadFolder_WrongToken(t *testing.T) {
	env := newTestEnv(t)
	env.remote.zipResp = zipResponse("zip-bytes")
	expiry := futureExpiry()

	req := httptest.NewRequest(http.MethodGet, "/api/download/0/x/v-full_1001", nil)
	rec := httptest.NewRecorder()
	env.download.DownloadFolder(rec, req, expiry, "WrongToken1", "v-full_1001")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Статус = %d, ожидался 400", rec.Code)
	}
}

func TestDownloadFolder_UploadTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	env.remote.zipResp = zipResponse("zip-bytes")
	expiry := futureExpiry()
	// Мандат загрузки конкретного типа не подходит для скачивания каталога
	token := env.signer.UrlAuthUpload("v-full_1001", "video-full", expiry)

	req := httptest.NewRequest(http.MethodGet, "/api/download/0/x/v-full_1001", nil)
	rec := httptest.NewRecorder()
	env.download.DownloadFolder(rec, req, expiry, token, "v-full_1001")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Статус = %d, ожидался 400", rec.Code)
	}
}

func TestDownloadFolder_Expired(t *testing.T) {
	env := newTestEnv(t)
	env.remote.zipResp = zipResponse("zip-bytes")
	expiry := time.Now().Add(-time.Minute).Unix()
	token := env.signer.UrlAuthUpload("v-full_1001", ":download-folder:", expiry)

	req := httptest.NewRequest(http.MethodGet, "/api/download/0/x/v-full_1001", nil)
	rec := httptest.NewRecorder()
	env.download.DownloadFolder(rec, req, expiry, token, "v-full_1001")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Статус = %d, ожидался 400", rec.Code)
	}
}

func TestDownloadFolder_StorageError(t *testing.T) {
	env := newTestEnv(t)
	env.remote.zipErr = errors.New("connection refused")
	expiry := futureExpiry()
	token := env.signer.UrlAuthUpload("v-full_1001", ":download-folder:", expiry)

	req := httptest.NewRequest(http.MethodGet, "/api/download/0/x/v-full_1001", nil)
	rec := httptest.NewRecorder()
	env.download.DownloadFolder(rec, req, expiry, token, "v-full_1001")

	if rec.Code != http.StatusBadGateway {
		t.Errorf("Статус = %d, ожидался 502", rec.Code)
	}
}
