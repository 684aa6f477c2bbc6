package handlers

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/confcollect/collector/internal/auth"
	"github.com/confcollect/collector/internal/catalog"
	"github.com/confcollect/collector/internal/config"
	"github.com/confcollect/collector/internal/domain/model"
	"github.com/confcollect/collector/internal/service"
	"github.com/confcollect/collector/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testEnv — полный набор зависимостей обработчиков поверх заглушки
// внешнего хранилища.
type testEnv struct {
	cfg    *config.Config
	signer *auth.Signer
	store  *store.Store
	remote *stubRemote

	urls     *UrlsHandler
	items    *ItemsHandler
	files    *FilesHandler
	download *DownloadHandler
	admin    *AdminHandler
}

type stubRemote struct {
	uploadErr error
	zipResp   *http.Response
	zipErr    error
	deleted   []string
}

func (r *stubRemote) Upload(ctx context.Context, localPath, targetPath, checksum string) error {
	return r.uploadErr
}

func (r *stubRemote) Delete(ctx context.Context, targetPath string) (bool, error) {
	r.deleted = append(r.deleted, targetPath)
	return true, nil
}

func (r *stubRemote) FolderZip(ctx context.Context, rootPath string, paths []string) (*http.Response, error) {
	if r.zipErr != nil {
		return nil, r.zipErr
	}
	return r.zipResp, nil
}

type stubPurger struct{}

func (stubPurger) Enabled() bool                                  { return false }
func (stubPurger) Purge(ctx context.Context, fileURL string) error { return nil }

type stubChecker struct{}

func (stubChecker) PerformChecks(path string, file *model.CollectedFile, ftd catalog.FileTypeDescriptor) {
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		TempDir:         t.TempDir(),
		StorageZone:     "media-zone",
		StorageBasePath: "collect",
		CdnRootUrl:      "https://cdn.example.com",
		CdnTokenKey:     "cdn-secret",
		AuthPrivateKey:  "auth-secret",
		ConfigDir:       t.TempDir(),
	}
	logger := testLogger()
	signer := auth.NewSigner(cfg.AuthPrivateKey, cfg.CdnTokenKey)

	cat := &catalog.Catalog{
		FileTypes: map[string]catalog.FileTypeDescriptor{
			"video-full": {
				Id:             "video-full",
				Name:           "Video",
				FileName:       "video",
				FileExtensions: []string{"mp4"},
				FileType:       catalog.FileTypeVideo,
			},
			"video-ff": {
				Id:             "video-ff",
				Name:           "Preview",
				FileName:       "preview",
				FileExtensions: []string{"mp4"},
				FileType:       catalog.FileTypeVideo,
			},
		},
		Events: map[string]catalog.EventDescriptor{
			"v-full": {
				EventId:        "v-full",
				FilesToCollect: []string{"video-full", "video-ff"},
			},
		},
	}

	st, err := store.New(filepath.Join(t.TempDir(), "collected.jsonl"), logger)
	if err != nil {
		t.Fatalf("Ошибка создания журнала: %v", err)
	}

	remote := &stubRemote{}
	locks := service.NewSlotLocks()
	deleter := service.NewDeleteService(cfg, st, remote, locks, logger)
	uploader := service.NewUploadService(cfg, cat, st, signer, remote, stubPurger{}, stubChecker{}, locks, deleter, logger)
	itemsSvc := service.NewItemsService(cat, st, signer, logger)
	downloadSvc := service.NewDownloadService(cfg, remote, logger)

	return &testEnv{
		cfg:      cfg,
		signer:   signer,
		store:    st,
		remote:   remote,
		urls:     NewUrlsHandler(signer, itemsSvc),
		items:    NewItemsHandler(signer, itemsSvc),
		files:    NewFilesHandler(signer, uploader, deleter, logger),
		download: NewDownloadHandler(signer, downloadSvc),
		admin:    NewAdminHandler(st, logger),
	}
}

// multipartBody собирает multipart-форму с одним файлом.
func multipartBody(t *testing.T, fieldName, fileName, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(fieldName, fileName)
	if err != nil {
		t.Fatalf("Ошибка сборки формы: %v", err)
	}
	if _, err := io.Copy(fw, strings.NewReader(content)); err != nil {
		t.Fatalf("Ошибка записи файла в форму: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Ошибка закрытия формы: %v", err)
	}
	return &buf, mw.FormDataContentType()
}
