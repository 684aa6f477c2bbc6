package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/confcollect/collector/internal/catalog"
	"github.com/confcollect/collector/internal/config"
	"github.com/confcollect/collector/internal/domain/model"
	"github.com/confcollect/collector/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		TempDir:         t.TempDir(),
		StorageZone:     "media-zone",
		StorageBasePath: "collect",
		CdnRootUrl:      "https://cdn.example.com",
		CdnTokenKey:     "cdn-secret",
		AuthPrivateKey:  "auth-secret",
	}
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		FileTypes: map[string]catalog.FileTypeDescriptor{
			"video-full": {
				Id:             "video-full",
				Name:           "Video",
				FileName:       "video",
				FileExtensions: []string{"mp4"},
				FileType:       catalog.FileTypeVideo,
				PerformChecks:  true,
				CheckInfo: &catalog.CheckInfo{
					MinFileSize: 4,
					MaxFileSize: 1024,
				},
			},
			"pdf-notes": {
				Id:             "pdf-notes",
				Name:           "Notes",
				FileName:       "notes",
				FileExtensions: []string{"pdf"},
				FileType:       catalog.FileTypePdf,
			},
		},
		Events: map[string]catalog.EventDescriptor{
			"v-full": {
				EventId:        "v-full",
				FilesToCollect: []string{"video-full", "pdf-notes"},
			},
		},
	}
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "collected.jsonl"), testLogger())
	if err != nil {
		t.Fatalf("Ошибка создания журнала: %v", err)
	}
	return st
}

// stubRemote — заглушка внешнего хранилища с записью вызовов.
type stubRemote struct {
	uploadErr    error
	deleteOk     bool
	deleteErr    error
	zipResp      *http.Response
	zipErr       error
	uploadedTo   []string
	deletedPaths []string
	zipRoots     []string
	zipPaths     [][]string
}

func (r *stubRemote) Upload(ctx context.Context, localPath, targetPath, checksum string) error {
	if r.uploadErr != nil {
		return r.uploadErr
	}
	r.uploadedTo = append(r.uploadedTo, targetPath)
	return nil
}

func (r *stubRemote) Delete(ctx context.Context, targetPath string) (bool, error) {
	if r.deleteErr != nil {
		return false, r.deleteErr
	}
	r.deletedPaths = append(r.deletedPaths, targetPath)
	return r.deleteOk, nil
}

func (r *stubRemote) FolderZip(ctx context.Context, rootPath string, paths []string) (*http.Response, error) {
	r.zipRoots = append(r.zipRoots, rootPath)
	r.zipPaths = append(r.zipPaths, paths)
	if r.zipErr != nil {
		return nil, r.zipErr
	}
	return r.zipResp, nil
}

// stubPurger — заглушка сброса кэша CDN.
type stubPurger struct {
	enabled bool
	purged  []string
	err     error
}

func (p *stubPurger) Enabled() bool { return p.enabled }

func (p *stubPurger) Purge(ctx context.Context, fileURL string) error {
	p.purged = append(p.purged, fileURL)
	return p.err
}

// stubChecker — заглушка конвейера проверок: пишет заранее заданные
// замечания в запись.
type stubChecker struct {
	errors   []string
	warnings []string
	checked  []string
}

func (c *stubChecker) PerformChecks(path string, file *model.CollectedFile, ftd catalog.FileTypeDescriptor) {
	c.checked = append(c.checked, path)
	file.Errors = append(file.Errors, c.errors...)
	file.Warnings = append(file.Warnings, c.warnings...)
}

func zipResponse(status int, headers map[string]string, body string) *http.Response {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}
