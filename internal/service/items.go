// items.go — сервис чтения записей: материализация слотов доклада и
// выборки с подписанными ссылками.
package service

import (
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/confcollect/collector/internal/auth"
	"github.com/confcollect/collector/internal/catalog"
	"github.com/confcollect/collector/internal/domain/model"
	"github.com/confcollect/collector/internal/store"
)

// AllSubmissionsUID — служебное значение uid, означающее выборку по
// всем докладам сразу.
const AllSubmissionsUID = "_"

// ItemsService — материализация и выборка записей о материалах.
type ItemsService struct {
	catalog *catalog.Catalog
	store   *store.Store
	signer  *auth.Signer
	logger  *slog.Logger
}

// NewItemsService создаёт сервис выборки записей.
func NewItemsService(cat *catalog.Catalog, st *store.Store, signer *auth.Signer, logger *slog.Logger) *ItemsService {
	return &ItemsService{
		catalog: cat,
		store:   st,
		signer:  signer,
		logger:  logger.With(slog.String("component", "items_service")),
	}
}

// EnsureCollectedFiles возвращает записи доклада, при первом обращении
// материализуя пустые слоты по списку типов события. Материализация
// происходит только для идентификатора правильной формы (ровно два
// разделителя, числовая локальная часть) с известным событием; иначе
// возвращается пустой срез без побочных эффектов.
func (s *ItemsService) EnsureCollectedFiles(uid string) []*model.CollectedFile {
	files := s.store.GetCollectedFilesCopy(uid)
	if len(files) != 0 {
		return files
	}

	if uid == "" || countSeparators(uid) != 2 {
		return files
	}
	idx := strings.LastIndexAny(uid, "_-")
	numberStr := uid[idx+1:]
	if numberStr == "" || !allDigits(numberStr) {
		return files
	}

	eventItem, ok := s.catalog.EventForUID(uid)
	if !ok {
		return files
	}

	for _, typeId := range eventItem.FilesToCollect {
		ftd, ok := s.catalog.FileTypes[typeId]
		if !ok {
			s.logger.Warn("событие ссылается на неизвестный тип материала",
				"event", eventItem.EventId, "fileType", typeId)
			continue
		}
		files = append(files, &model.CollectedFile{
			ParentUid:  uid,
			FileTypeId: typeId,
			Name:       ftd.Name,
		})
	}
	s.store.SetFiles(uid, files)
	if err := s.store.Save(); err != nil {
		s.logger.Error("сохранение журнала после материализации", "uid", uid, "error", err)
	}
	return files
}

// Retrieve возвращает записи по адресуемому идентификатору: "_" — все
// доклады, идентификатор события — его доклады, иначе один доклад с
// материализацией. DownloadUrl каждой записи пересчитывается из
// RawDownloadUrl с подписью на expiry часов вперёд; записи без
// загрузки остаются без ссылки.
func (s *ItemsService) Retrieve(uid string, expiryHours int) []store.SubmissionFiles {
	var items []store.SubmissionFiles

	switch {
	case uid == AllSubmissionsUID:
		items = s.store.GetDictionaryCopy()
	case s.isEvent(uid):
		items = s.store.GetEventCollectedFilesCopy(uid)
	default:
		items = []store.SubmissionFiles{{Uid: uid, Files: s.EnsureCollectedFiles(uid)}}
	}

	expiry := time.Now().Add(time.Duration(expiryHours) * time.Hour)
	for _, it := range items {
		for _, f := range it.Files {
			if f.RawDownloadUrl == "" {
				f.DownloadUrl = ""
				continue
			}
			signed, err := s.signer.SignStorageURL(f.RawDownloadUrl, expiry, false)
			if err != nil {
				s.logger.Error("подпись ссылки скачивания", "url", f.RawDownloadUrl, "error", err)
				f.DownloadUrl = ""
				continue
			}
			f.DownloadUrl = signed
		}
	}
	return items
}

func (s *ItemsService) isEvent(uid string) bool {
	_, ok := s.catalog.Events[uid]
	return ok
}

func countSeparators(uid string) int {
	n := 0
	for _, ch := range uid {
		if ch == '-' || ch == '_' {
			n++
		}
	}
	return n
}

func allDigits(str string) bool {
	for _, ch := range str {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}
