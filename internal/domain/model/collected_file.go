// Пакет model — доменные модели сервиса сбора материалов.
// CollectedFile — единая структура слота материала: используется как
// in-memory представление, формат строки в журнале на диске и тело
// API-ответа.
package model

import "time"

// CollectedFile — слот одного материала доклада. Слот существует с
// момента материализации списка требуемых материалов, ещё до первой
// загрузки; факт загрузки отражает IsPresent.
type CollectedFile struct {
	// ParentUid — идентификатор доклада, которому принадлежит слот.
	// Формат: {event}{separator}{локальная часть}
	ParentUid string `json:"parentUid"`

	// FileTypeId — тип материала из каталога типов (video-full, image, ...)
	FileTypeId string `json:"fileTypeId"`

	// Name — человекочитаемое название типа материала
	Name string `json:"name"`

	// IsPresent — загружен ли материал в данный момент
	IsPresent bool `json:"isPresent"`

	// FileName — имя файла, под которым материал лежит в хранилище
	FileName string `json:"fileName,omitempty"`

	// FileSize — размер файла в байтах
	FileSize int64 `json:"fileSize"`

	// DownloadUrl — подписанный URL скачивания с ограниченным сроком
	DownloadUrl string `json:"downloadUrl,omitempty"`

	// RawDownloadUrl — неподписанный URL файла в хранилище
	RawDownloadUrl string `json:"rawDownloadUrl,omitempty"`

	// Checksum — SHA-256 содержимого файла (hex)
	Checksum string `json:"checksum,omitempty"`

	// Errors — жёсткие замечания последней проверки
	Errors []string `json:"errors,omitempty"`

	// Warnings — мягкие замечания последней проверки
	Warnings []string `json:"warnings,omitempty"`

	// LastUploaded — время последней загрузки (UTC)
	LastUploaded *time.Time `json:"lastUploaded,omitempty"`

	// LastChecked — время последней проверки (UTC)
	LastChecked *time.Time `json:"lastChecked,omitempty"`
}

// Clone возвращает глубокую копию слота. Хранилище отдаёт наружу
// только копии, чтобы вызывающий код не мог изменить общее состояние
// в обход мьютекса.
func (f *CollectedFile) Clone() *CollectedFile {
	c := *f
	if f.Errors != nil {
		c.Errors = append([]string(nil), f.Errors...)
	}
	if f.Warnings != nil {
		c.Warnings = append([]string(nil), f.Warnings...)
	}
	if f.LastUploaded != nil {
		t := *f.LastUploaded
		c.LastUploaded = &t
	}
	if f.LastChecked != nil {
		t := *f.LastChecked
		c.LastChecked = &t
	}
	return &c
}
