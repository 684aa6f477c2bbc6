// delete.go — сервис удаления загруженных материалов.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/confcollect/collector/internal/config"
	"github.com/confcollect/collector/internal/domain/model"
	"github.com/confcollect/collector/internal/store"
)

// DeleteService — удаление материала из хранилища и очистка записи.
type DeleteService struct {
	cfg    *config.Config
	store  *store.Store
	remote RemoteStorage
	locks  *SlotLocks
	logger *slog.Logger
}

// NewDeleteService создаёт сервис удаления.
func NewDeleteService(
	cfg *config.Config,
	st *store.Store,
	remoteStorage RemoteStorage,
	locks *SlotLocks,
	logger *slog.Logger,
) *DeleteService {
	return &DeleteService{
		cfg:    cfg,
		store:  st,
		remote: remoteStorage,
		locks:  locks,
		logger: logger.With(slog.String("component", "delete_service")),
	}
}

// Delete удаляет материал по запросу внешнего вызывающего: замок
// слота, затем удаление из хранилища и очистка записи.
func (s *DeleteService) Delete(ctx context.Context, uid, itemId string) *ServiceError {
	if !s.locks.TryAcquire(uid, itemId) {
		return fail("concurrent action already in progress")
	}
	defer s.locks.Release(uid, itemId)

	collF := s.store.GetCollectedFileCopy(uid, itemId)
	if collF == nil {
		return fail("requested file could not be found")
	}
	if collF.RawDownloadUrl == "" || len(collF.RawDownloadUrl) <= len(s.cfg.CdnRootUrl) {
		return fail("internal error")
	}

	if err := s.RemoveStored(ctx, collF); err != nil {
		s.logger.Error("удаление файла из хранилища",
			"uid", uid, "item", itemId, "error", err)
		return fail("delete was not successful")
	}
	return nil
}

// RemoveStored удаляет файл записи из хранилища и сбрасывает запись в
// состояние «не загружено». Запись обновляется в журнале немедленно.
// Используется и при явном удалении, и при замещении старой версии
// во время загрузки.
func (s *DeleteService) RemoveStored(ctx context.Context, collF *model.CollectedFile) error {
	path := collF.RawDownloadUrl[len(s.cfg.CdnRootUrl):]
	targetPath := "/" + strings.TrimPrefix(path, "/")

	ok, err := s.remote.Delete(ctx, targetPath)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("хранилище отклонило удаление %s", targetPath)
	}

	collF.Errors = nil
	collF.Warnings = nil
	collF.FileSize = 0
	collF.IsPresent = false
	collF.Checksum = ""
	collF.DownloadUrl = ""
	collF.RawDownloadUrl = ""
	collF.LastUploaded = nil
	collF.LastChecked = nil

	s.store.InsertOrUpdate(collF)
	if err := s.store.Save(); err != nil {
		s.logger.Error("сохранение журнала после удаления", "error", err)
	}
	return nil
}
