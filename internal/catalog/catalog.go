// Пакет catalog — справочники сервиса: типы материалов и события
// конференции. Справочники загружаются из JSON-файлов конфигурации;
// при отсутствии файлов создаётся набор по умолчанию.
package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/confcollect/collector/internal/check/image"
	"github.com/confcollect/collector/internal/check/video"
)

// FileType — категория материала, определяет набор проверок.
type FileType string

const (
	FileTypeVideo     FileType = "video"
	FileTypeSubtitles FileType = "subtitles"
	FileTypePdf       FileType = "pdf"
	FileTypeImage     FileType = "image"
	FileTypeText      FileType = "text"
	FileTypeOther     FileType = "other"
)

// VideoRequirementsConfig — требования к видео в конфигурационном
// представлении: длительности заданы в секундах.
type VideoRequirementsConfig struct {
	MinDurationSec            int64             `json:"minDurationSec"`
	MaxDurationSec            int64             `json:"maxDurationSec"`
	MaxRecommendedDurationSec *int64            `json:"maxRecommendedDurationSec,omitempty"`
	PackageFormats            []string          `json:"packageFormats,omitempty"`
	VideoCodecs               []string          `json:"videoCodecs,omitempty"`
	AudioCodecs               []string          `json:"audioCodecs,omitempty"`
	FrameRates                []string          `json:"frameRates,omitempty"`
	FrameSizes                []video.FrameSize `json:"frameSizes,omitempty"`
	MaxNumAudioStreams        int               `json:"maxNumAudioStreams"`
	AspectRatio               string            `json:"aspectRatio,omitempty"`
	CheckVoiceRecording       bool              `json:"checkVoiceRecording"`
}

// Requirements переводит конфигурационное представление в рабочее.
func (c *VideoRequirementsConfig) Requirements() video.Requirements {
	req := video.Requirements{
		MinDuration:         time.Duration(c.MinDurationSec) * time.Second,
		MaxDuration:         time.Duration(c.MaxDurationSec) * time.Second,
		PackageFormats:      c.PackageFormats,
		VideoCodecs:         c.VideoCodecs,
		AudioCodecs:         c.AudioCodecs,
		FrameRates:          c.FrameRates,
		FrameSizes:          c.FrameSizes,
		MaxNumAudioStreams:  c.MaxNumAudioStreams,
		AspectRatio:         c.AspectRatio,
		CheckVoiceRecording: c.CheckVoiceRecording,
	}
	if c.MaxRecommendedDurationSec != nil {
		d := time.Duration(*c.MaxRecommendedDurationSec) * time.Second
		req.MaxRecommendedDuration = &d
	}
	return req
}

// CheckInfo — параметры проверки материала данного типа.
type CheckInfo struct {
	// MinFileSize и MaxFileSize — границы размера файла в байтах.
	// Не заданный maxFileSize после загрузки становится math.MaxInt64
	MinFileSize int64 `json:"minFileSize"`
	MaxFileSize int64 `json:"maxFileSize"`

	VideoRequirements *VideoRequirementsConfig `json:"videoRequirements,omitempty"`
	ImageMaxSize      *image.Size              `json:"imageMaxSize,omitempty"`
}

// FileTypeDescriptor — описание одного типа материала.
type FileTypeDescriptor struct {
	Id             string     `json:"id"`
	Name           string     `json:"name,omitempty"`
	FileName       string     `json:"fileName,omitempty"`
	FileExtensions []string   `json:"fileExtensions,omitempty"`
	FileType       FileType   `json:"fileType"`
	IsOptional     bool       `json:"isOptional"`
	PerformChecks  bool       `json:"performChecks"`
	CheckInfo      *CheckInfo `json:"checkInfo,omitempty"`
}

// EventDescriptor — событие конференции и список типов материалов,
// которые для него собираются.
type EventDescriptor struct {
	EventId        string   `json:"eventId"`
	FilesToCollect []string `json:"filesToCollect"`
	// FilesBlockedForUpload — типы, для которых загрузка закрыта
	// (например, после дедлайна), скачивание остаётся доступным
	FilesBlockedForUpload []string `json:"filesBlockedForUpload,omitempty"`
}

// UploadBlocked сообщает, закрыта ли загрузка материалов данного типа.
// Признак информационный: операция загрузки его не проверяет, блокировку
// отражает клиентская форма.
func (e *EventDescriptor) UploadBlocked(fileTypeId string) bool {
	for _, id := range e.FilesBlockedForUpload {
		if id == fileTypeId {
			return true
		}
	}
	return false
}

// Catalog — загруженные справочники. После загрузки только читается,
// поэтому синхронизации не требует.
type Catalog struct {
	FileTypes map[string]FileTypeDescriptor
	Events    map[string]EventDescriptor
}

// Load читает справочники из каталога конфигурации. Отсутствующий
// файл не ошибка: соответствующий справочник заполняется набором
// по умолчанию, и файл создаётся.
func Load(dir string) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("создание каталога конфигурации %s: %w", dir, err)
	}

	c := &Catalog{
		FileTypes: make(map[string]FileTypeDescriptor),
		Events:    make(map[string]EventDescriptor),
	}

	var types []FileTypeDescriptor
	typesPath := filepath.Join(dir, "fileTypes.json")
	if err := loadOrCreate(typesPath, &types, DefaultFileTypes); err != nil {
		return nil, err
	}
	for _, t := range types {
		// Не заданный в файле maxFileSize означает «без ограничения»
		if t.CheckInfo != nil && t.CheckInfo.MaxFileSize == 0 {
			t.CheckInfo.MaxFileSize = math.MaxInt64
		}
		c.FileTypes[t.Id] = t
	}

	var events []EventDescriptor
	eventsPath := filepath.Join(dir, "events.json")
	if err := loadOrCreate(eventsPath, &events, DefaultEvents); err != nil {
		return nil, err
	}
	for _, e := range events {
		c.Events[e.EventId] = e
	}

	return c, nil
}

// loadOrCreate читает JSON-файл в out или, если файла нет, пишет в
// него значения по умолчанию.
func loadOrCreate[T any](path string, out *[]T, defaults func() []T) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		*out = defaults()
		created, mErr := json.MarshalIndent(*out, "", "  ")
		if mErr != nil {
			return mErr
		}
		if wErr := os.WriteFile(path, created, 0o644); wErr != nil {
			return fmt.Errorf("создание файла справочника %s: %w", path, wErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("чтение файла справочника %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("разбор файла справочника %s: %w", path, err)
	}
	return nil
}

// EventFromUID выделяет идентификатор события из идентификатора
// доклада: всё до последнего разделителя '_' или '-'. Для
// идентификатора без разделителей возвращается пустая строка.
func EventFromUID(uid string) string {
	idx := strings.LastIndexAny(uid, "_-")
	if idx == -1 {
		return ""
	}
	return uid[:idx]
}

// EventFromUIDWithPrefix дополнительно возвращает префикс до первого
// '-'. Префикс используется как запасной ключ поиска события, когда
// полный идентификатор события в справочнике не найден.
func EventFromUIDWithPrefix(uid string) (event, typePrefix string) {
	event = EventFromUID(uid)
	if idx := strings.Index(uid, "-"); idx != -1 {
		typePrefix = uid[:idx]
	}
	return event, typePrefix
}

// EventForUID находит событие для идентификатора доклада: сперва по
// полному идентификатору события, затем по префиксу типа.
func (c *Catalog) EventForUID(uid string) (EventDescriptor, bool) {
	event, prefix := EventFromUIDWithPrefix(uid)
	if e, ok := c.Events[event]; ok {
		return e, true
	}
	if e, ok := c.Events[prefix]; ok {
		return e, true
	}
	return EventDescriptor{}, false
}
