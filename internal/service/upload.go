// upload.go — сервис приёма материалов: транзакция загрузки от
// временного файла до записи в журнале и подписанной ссылки.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/confcollect/collector/internal/auth"
	"github.com/confcollect/collector/internal/catalog"
	"github.com/confcollect/collector/internal/config"
	"github.com/confcollect/collector/internal/domain/model"
	"github.com/confcollect/collector/internal/store"
)

// downloadURLTTL — срок действия подписанной ссылки в ответе загрузки.
const downloadURLTTL = time.Hour

// ServiceError — ошибка операции с HTTP-кодом для внешнего ответа.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

func fail(message string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusBadRequest, Message: message}
}

// RemoteStorage — операции внешнего хранилища, нужные сервисам.
// Реализуется remote.Client.
type RemoteStorage interface {
	Upload(ctx context.Context, localPath, targetPath, checksum string) error
	Delete(ctx context.Context, targetPath string) (bool, error)
	FolderZip(ctx context.Context, rootPath string, paths []string) (*http.Response, error)
}

// CachePurger — сброс кэша CDN. Реализуется remote.Purger.
type CachePurger interface {
	Enabled() bool
	Purge(ctx context.Context, fileURL string) error
}

// FileChecker — конвейер проверки файла. Реализуется check.FileChecker.
type FileChecker interface {
	PerformChecks(path string, file *model.CollectedFile, ftd catalog.FileTypeDescriptor)
}

// UploadParams — параметры загрузки одного материала.
type UploadParams struct {
	// UID — идентификатор доклада
	UID string
	// ItemID — тип материала
	ItemID string
	// FileName — имя файла из multipart-формы
	FileName string
	// Reader — поток содержимого файла
	Reader io.Reader
}

// UploadService — сервис приёма материалов.
type UploadService struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	store   *store.Store
	signer  *auth.Signer
	remote  RemoteStorage
	purger  CachePurger
	checker FileChecker
	locks   *SlotLocks
	deleter *DeleteService
	logger  *slog.Logger
}

// NewUploadService создаёт сервис приёма материалов.
func NewUploadService(
	cfg *config.Config,
	cat *catalog.Catalog,
	st *store.Store,
	signer *auth.Signer,
	remoteStorage RemoteStorage,
	purger CachePurger,
	checker FileChecker,
	locks *SlotLocks,
	deleter *DeleteService,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		cfg:     cfg,
		catalog: cat,
		store:   st,
		signer:  signer,
		remote:  remoteStorage,
		purger:  purger,
		checker: checker,
		locks:   locks,
		deleter: deleter,
		logger:  logger.With(slog.String("component", "upload_service")),
	}
}

// Upload выполняет транзакцию загрузки.
//
// Поток:
//  1. Замок слота (uid, itemId), занятый слот — немедленный отказ
//  2. Валидация расширения по типу материала
//  3. Приём потока во временный файл, границы размера, SHA-256
//  4. Удаление прежней версии из хранилища (ошибка не прерывает)
//  5. Передача файла в хранилище — единственный фатальный шаг
//  6. Сброс кэша CDN (ошибка не прерывает)
//  7. Проверки содержимого: замечания пишутся в запись, не в ответ
//  8. InsertOrUpdate + Save, подпись ссылки скачивания
//
// Возвращённая запись содержит свежеподписанный DownloadUrl.
func (s *UploadService) Upload(ctx context.Context, params UploadParams) (*model.CollectedFile, *ServiceError) {
	ftd, ok := s.catalog.FileTypes[params.ItemID]
	if !ok {
		return nil, &ServiceError{StatusCode: http.StatusBadRequest, Message: "bad request"}
	}

	if !s.locks.TryAcquire(params.UID, params.ItemID) {
		return nil, fail("concurrent upload already in progress")
	}
	defer s.locks.Release(params.UID, params.ItemID)

	fn := strings.TrimSpace(params.FileName)
	if fn == "" {
		return nil, fail("no file name provided")
	}
	dotIdx := strings.LastIndexByte(fn, '.')
	if dotIdx == -1 {
		return nil, fail("missing file extension")
	}
	extension := strings.ToLower(fn[dotIdx+1:])
	if len(ftd.FileExtensions) > 0 && !containsString(ftd.FileExtensions, extension) {
		return nil, fail("invalid file extension")
	}

	saveToPath := filepath.Join(s.cfg.TempDir, uuid.New().String())
	defer os.Remove(saveToPath)

	if err := receiveToFile(saveToPath, params.Reader); err != nil {
		s.logger.Error("приём файла во временное хранилище", "uid", params.UID, "error", err)
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "An internal error occurred while receiving the file."}
	}

	fi, err := os.Stat(saveToPath)
	if err != nil {
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "An internal error occurred while receiving the file."}
	}
	fileSize := fi.Size()

	s.logger.Info("принят файл для загрузки",
		slog.String("uid", params.UID),
		slog.String("item", params.ItemID),
		slog.Int64("size", fileSize),
	)

	if ftd.CheckInfo != nil {
		if fileSize > ftd.CheckInfo.MaxFileSize {
			return nil, fail("the file is too big")
		}
		if fileSize < ftd.CheckInfo.MinFileSize {
			return nil, fail("the file is too small")
		}
	}

	checksum, err := auth.FileSHA256(saveToPath)
	if err != nil {
		s.logger.Error("подсчёт контрольной суммы", "uid", params.UID, "error", err)
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "An internal error occurred while receiving the file."}
	}

	// Прежняя версия удаляется до передачи новой; сбой удаления
	// логируется и не прерывает загрузку
	if old := s.store.GetCollectedFileCopy(params.UID, ftd.Id); old != nil && old.RawDownloadUrl != "" {
		if err := s.deleter.RemoveStored(ctx, old); err != nil {
			s.logger.Error("удаление прежней версии файла",
				"uid", params.UID, "item", params.ItemID, "error", err)
		}
	}

	eventId := catalog.EventFromUID(params.UID)
	targetFn := fmt.Sprintf("%s_%s.%s", params.UID, ftd.FileName, extension)
	targetUrlPath := fmt.Sprintf("/%s/%s/%s/%s", s.cfg.StorageBasePath, eventId, params.UID, targetFn)

	now := time.Now().UTC()
	collF := &model.CollectedFile{
		ParentUid:      params.UID,
		FileTypeId:     ftd.Id,
		Name:           ftd.Name,
		FileName:       targetFn,
		IsPresent:      true,
		Checksum:       checksum,
		LastUploaded:   &now,
		FileSize:       fileSize,
		Errors:         []string{},
		Warnings:       []string{},
		RawDownloadUrl: s.cfg.CdnRootUrl + targetUrlPath,
	}

	if err := s.remote.Upload(ctx, saveToPath, targetUrlPath, checksum); err != nil {
		s.logger.Error("передача файла в хранилище",
			"uid", params.UID, "item", params.ItemID, "error", err)
		return nil, fail("An internal error occurred while transferring the received file.")
	}

	if s.purger.Enabled() {
		if err := s.purger.Purge(ctx, collF.RawDownloadUrl); err != nil {
			s.logger.Error("сброс кэша CDN", "url", collF.RawDownloadUrl, "error", err)
		}
	}

	if ftd.PerformChecks {
		s.checker.PerformChecks(saveToPath, collF, ftd)
		checked := time.Now().UTC()
		collF.LastChecked = &checked
	}

	s.store.InsertOrUpdate(collF)
	if err := s.store.Save(); err != nil {
		s.logger.Error("сохранение журнала записей", "error", err)
	}

	signed, err := s.signer.SignStorageURL(collF.RawDownloadUrl, time.Now().Add(downloadURLTTL), false)
	if err != nil {
		s.logger.Error("подпись ссылки скачивания", "url", collF.RawDownloadUrl, "error", err)
	} else {
		collF.DownloadUrl = signed
	}

	return collF, nil
}

// receiveToFile сохраняет поток во временный файл.
func receiveToFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("создание временного файла: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("запись временного файла: %w", err)
	}
	return f.Close()
}

func containsString(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
