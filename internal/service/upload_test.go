package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/confcollect/collector/internal/auth"
	"github.com/confcollect/collector/internal/catalog"
	"github.com/confcollect/collector/internal/store"
)

type uploadEnv struct {
	svc     *UploadService
	store   *store.Store
	locks   *SlotLocks
	remote  *stubRemote
	purger  *stubPurger
	checker *stubChecker
}

func newUploadEnv(t *testing.T) *uploadEnv {
	t.Helper()
	return newUploadEnvWithCatalog(t, testCatalog())
}

func newUploadEnvWithCatalog(t *testing.T, cat *catalog.Catalog) *uploadEnv {
	t.Helper()
	cfg := testConfig(t)
	st := testStore(t)
	logger := testLogger()
	signer := auth.NewSigner(cfg.AuthPrivateKey, cfg.CdnTokenKey)
	remote := &stubRemote{deleteOk: true}
	purger := &stubPurger{}
	checker := &stubChecker{}
	locks := NewSlotLocks()
	deleter := NewDeleteService(cfg, st, remote, locks, logger)
	svc := NewUploadService(cfg, cat, st, signer, remote, purger, checker, locks, deleter, logger)
	return &uploadEnv{svc: svc, store: st, locks: locks, remote: remote, purger: purger, checker: checker}
}

func TestUpload_Success(t *testing.T) {
	env := newUploadEnv(t)
	content := "test-video-data!"

	collF, serr := env.svc.Upload(context.Background(), UploadParams{
		UID:      "v-full_1",
		ItemID:   "video-full",
		FileName: "talk.MP4",
		Reader:   strings.NewReader(content),
	})
	if serr != nil {
		t.Fatalf("Ошибка загрузки: %v", serr)
	}

	if collF.FileName != "v-full_1_video.mp4" {
		t.Errorf("FileName = %q, ожидалось v-full_1_video.mp4", collF.FileName)
	}
	wantRaw := "https://cdn.example.com/collect/v-full/v-full_1/v-full_1_video.mp4"
	if collF.RawDownloadUrl != wantRaw {
		t.Errorf("RawDownloadUrl = %q, ожидалось %q", collF.RawDownloadUrl, wantRaw)
	}
	if !collF.IsPresent {
		t.Error("IsPresent должен быть true после загрузки")
	}
	if collF.FileSize != int64(len(content)) {
		t.Errorf("FileSize = %d, ожидалось %d", collF.FileSize, len(content))
	}

	wantSum := fmt.Sprintf("%X", sha256.Sum256([]byte(content)))
	if collF.Checksum != wantSum {
		t.Errorf("Checksum = %q, ожидалось %q", collF.Checksum, wantSum)
	}

	if collF.LastUploaded == nil {
		t.Error("LastUploaded не заполнен")
	}
	if collF.LastChecked == nil {
		t.Error("LastChecked не заполнен для типа с проверками")
	}
	if !strings.Contains(collF.DownloadUrl, "token=") {
		t.Errorf("DownloadUrl не подписан: %q", collF.DownloadUrl)
	}

	if len(env.remote.uploadedTo) != 1 || env.remote.uploadedTo[0] != "/collect/v-full/v-full_1/v-full_1_video.mp4" {
		t.Errorf("Передача в хранилище: %v", env.remote.uploadedTo)
	}
	if len(env.checker.checked) != 1 {
		t.Errorf("Конвейер проверок вызван %d раз, ожидался 1", len(env.checker.checked))
	}

	stored := env.store.GetCollectedFileCopy("v-full_1", "video-full")
	if stored == nil {
		t.Fatal("Запись не появилась в журнале")
	}
	if stored.Checksum != wantSum {
		t.Errorf("Checksum в журнале = %q, ожидалось %q", stored.Checksum, wantSum)
	}
}

func TestUpload_FindingsStoredAsData(t *testing.T) {
	env := newUploadEnv(t)
	env.checker.errors = []string{"the duration of the video is too long"}
	env.checker.warnings = []string{"the audio volume is too low"}

	collF, serr := env.svc.Upload(context.Background(), UploadParams{
		UID:      "v-full_1",
		ItemID:   "video-full",
		FileName: "talk.mp4",
		Reader:   strings.NewReader("test-video-data!"),
	})
	if serr != nil {
		t.Fatalf("Замечания проверок не должны приводить к отказу: %v", serr)
	}
	if len(collF.Errors) != 1 || collF.Errors[0] != "the duration of the video is too long" {
		t.Errorf("Errors = %v", collF.Errors)
	}
	if len(collF.Warnings) != 1 {
		t.Errorf("Warnings = %v", collF.Warnings)
	}
}

func TestUpload_NoChecksForDocumentType(t *testing.T) {
	env := newUploadEnv(t)

	collF, serr := env.svc.Upload(context.Background(), UploadParams{
		UID:      "v-full_1",
		ItemID:   "pdf-notes",
		FileName: "notes.pdf",
		Reader:   strings.NewReader("%PDF-1.4 notes"),
	})
	if serr != nil {
		t.Fatalf("Ошибка загрузки: %v", serr)
	}
	if len(env.checker.checked) != 0 {
		t.Error("Конвейер проверок не должен вызываться для типа без проверок")
	}
	if collF.LastChecked != nil {
		t.Error("LastChecked должен остаться пустым")
	}
}

func TestUpload_UnknownItem(t *testing.T) {
	env := newUploadEnv(t)

	_, serr := env.svc.Upload(context.Background(), UploadParams{
		UID:      "v-full_1",
		ItemID:   "no-such-type",
		FileName: "talk.mp4",
		Reader:   strings.NewReader("data"),
	})
	if serr == nil {
		t.Fatal("Ожидался отказ для неизвестного типа материала")
	}
	if serr.Message != "bad request" {
		t.Errorf("Message = %q, ожидалось bad request", serr.Message)
	}
}

func TestUpload_SlotBusy(t *testing.T) {
	env := newUploadEnv(t)
	env.locks.TryAcquire("v-full_1", "video-full")

	_, serr := env.svc.Upload(context.Background(), UploadParams{
		UID:      "v-full_1",
		ItemID:   "video-full",
		FileName: "talk.mp4",
		Reader:   strings.NewReader("test-video-data!"),
	})
	if serr == nil {
		t.Fatal("Ожидался отказ при занятом слоте")
	}
	if serr.Message != "concurrent upload already in progress" {
		t.Errorf("Message = %q", serr.Message)
	}
}

func TestUpload_FileNameValidation(t *testing.T) {
	env := newUploadEnv(t)

	cases := []struct {
		name     string
		fileName string
		wantMsg  string
	}{
		{"пустое имя", "   ", "no file name provided"},
		{"нет расширения", "talk", "missing file extension"},
		{"чужое расширение", "talk.avi", "invalid file extension"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, serr := env.svc.Upload(context.Background(), UploadParams{
				UID:      "v-full_1",
				ItemID:   "video-full",
				FileName: tc.fileName,
				Reader:   strings.NewReader("test-video-data!"),
			})
			if serr == nil {
				t.Fatal("Ожидался отказ")
			}
			if serr.Message != tc.wantMsg {
				t.Errorf("Message = %q, ожидалось %q", serr.Message, tc.wantMsg)
			}
		})
	}
}

func TestUpload_SizeBounds(t *testing.T) {
	env := newUploadEnv(t)

	_, serr := env.svc.Upload(context.Background(), UploadParams{
		UID:      "v-full_1",
		ItemID:   "video-full",
		FileName: "talk.mp4",
		Reader:   strings.NewReader(strings.Repeat("x", 2048)),
	})
	if serr == nil || serr.Message != "the file is too big" {
		t.Errorf("Большой файл: %v", serr)
	}

	_, serr = env.svc.Upload(context.Background(), UploadParams{
		UID:      "v-full_1",
		ItemID:   "video-full",
		FileName: "talk.mp4",
		Reader:   strings.NewReader("xx"),
	})
	if serr == nil || serr.Message != "the file is too small" {
		t.Errorf("Маленький файл: %v", serr)
	}
}

// TestUpload_OmittedMaxFileSize: справочник из файла, где в checkInfo
// задана только нижняя граница. Отсутствие maxFileSize не должно
// превращаться в нулевой предел, отклоняющий любой файл.
func TestUpload_OmittedMaxFileSize(t *testing.T) {
	dir := t.TempDir()
	types := `[{"id":"pdf-notes","fileName":"notes","fileExtensions":["pdf"],"fileType":"pdf","checkInfo":{"minFileSize":1}}]`
	events := `[{"eventId":"v-full","filesToCollect":["pdf-notes"]}]`
	if err := os.WriteFile(filepath.Join(dir, "fileTypes.json"), []byte(types), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "events.json"), []byte(events), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.Load(dir)
	if err != nil {
		t.Fatalf("Загрузка справочников: %v", err)
	}

	env := newUploadEnvWithCatalog(t, cat)
	collF, serr := env.svc.Upload(context.Background(), UploadParams{
		UID:      "v-full_1",
		ItemID:   "pdf-notes",
		FileName: "notes.pdf",
		Reader:   strings.NewReader("fourteen bytes"),
	})
	if serr != nil {
		t.Fatalf("Ошибка загрузки: %v", serr)
	}
	if !collF.IsPresent {
		t.Error("IsPresent должен быть true после загрузки")
	}
}

func TestUpload_TransferFailureAborts(t *testing.T) {
	env := newUploadEnv(t)
	env.remote.uploadErr = errors.New("storage down")

	_, serr := env.svc.Upload(context.Background(), UploadParams{
		UID:      "v-full_1",
		ItemID:   "video-full",
		FileName: "talk.mp4",
		Reader:   strings.NewReader("test-video-data!"),
	})
	if serr == nil {
		t.Fatal("Ожидался отказ при сбое передачи в хранилище")
	}
	if serr.Message != "An internal error occurred while transferring the received file." {
		t.Errorf("Message = %q", serr.Message)
	}
	if env.store.GetCollectedFileCopy("v-full_1", "video-full") != nil {
		t.Error("Запись не должна появляться в журнале после сбоя передачи")
	}
}

func TestUpload_ReplacesOldVersion(t *testing.T) {
	env := newUploadEnv(t)

	// Первая загрузка
	_, serr := env.svc.Upload(context.Background(), UploadParams{
		UID:      "v-full_1",
		ItemID:   "video-full",
		FileName: "old.mp4",
		Reader:   strings.NewReader("old-video-data!!"),
	})
	if serr != nil {
		t.Fatalf("Первая загрузка: %v", serr)
	}

	// Вторая загрузка того же слота должна удалить прежний файл
	_, serr = env.svc.Upload(context.Background(), UploadParams{
		UID:      "v-full_1",
		ItemID:   "video-full",
		FileName: "new.mp4",
		Reader:   strings.NewReader("new-video-data!!"),
	})
	if serr != nil {
		t.Fatalf("Вторая загрузка: %v", serr)
	}

	if len(env.remote.deletedPaths) != 1 {
		t.Fatalf("Удаление прежней версии вызвано %d раз, ожидался 1", len(env.remote.deletedPaths))
	}
	if env.remote.deletedPaths[0] != "/collect/v-full/v-full_1/v-full_1_video.mp4" {
		t.Errorf("Путь удаления: %q", env.remote.deletedPaths[0])
	}
}

func TestUpload_OldVersionDeleteFailureNotFatal(t *testing.T) {
	env := newUploadEnv(t)

	if _, serr := env.svc.Upload(context.Background(), UploadParams{
		UID:      "v-full_1",
		ItemID:   "video-full",
		FileName: "old.mp4",
		Reader:   strings.NewReader("old-video-data!!"),
	}); serr != nil {
		t.Fatalf("Первая загрузка: %v", serr)
	}

	env.remote.deleteErr = errors.New("storage down")

	collF, serr := env.svc.Upload(context.Background(), UploadParams{
		UID:      "v-full_1",
		ItemID:   "video-full",
		FileName: "new.mp4",
		Reader:   strings.NewReader("new-video-data!!"),
	})
	if serr != nil {
		t.Fatalf("Сбой удаления прежней версии не должен прерывать загрузку: %v", serr)
	}
	if !collF.IsPresent {
		t.Error("Новая версия должна быть записана")
	}
}

func TestUpload_PurgeCalled(t *testing.T) {
	env := newUploadEnv(t)
	env.purger.enabled = true

	collF, serr := env.svc.Upload(context.Background(), UploadParams{
		UID:      "v-full_1",
		ItemID:   "video-full",
		FileName: "talk.mp4",
		Reader:   strings.NewReader("test-video-data!"),
	})
	if serr != nil {
		t.Fatalf("Ошибка загрузки: %v", serr)
	}
	if len(env.purger.purged) != 1 || env.purger.purged[0] != collF.RawDownloadUrl {
		t.Errorf("Сброс кэша: %v", env.purger.purged)
	}
}

func TestUpload_PurgeFailureNotFatal(t *testing.T) {
	env := newUploadEnv(t)
	env.purger.enabled = true
	env.purger.err = errors.New("purge api down")

	_, serr := env.svc.Upload(context.Background(), UploadParams{
		UID:      "v-full_1",
		ItemID:   "video-full",
		FileName: "talk.mp4",
		Reader:   strings.NewReader("test-video-data!"),
	})
	if serr != nil {
		t.Fatalf("Сбой сброса кэша не должен прерывать загрузку: %v", serr)
	}
}
