// Пакет store — персистентное хранилище записей о собранных материалах.
// Состояние живёт в памяти под мьютексом и целиком сбрасывается на диск
// в формате «одна JSON-строка на слот». Запись на диск атомарна:
// временный файл, затем rename.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/confcollect/collector/internal/domain/model"
)

// SubmissionFiles — записи одного доклада.
type SubmissionFiles struct {
	Uid   string
	Files []*model.CollectedFile
}

// Store — потокобезопасное хранилище записей, сгруппированных по
// докладам. Наружу отдаются только глубокие копии.
type Store struct {
	mu       sync.Mutex
	saveMu   sync.Mutex
	fileName string
	logger   *slog.Logger

	filesPerSubmission map[string][]*model.CollectedFile
	// version растёт при каждом снимке Save; устаревший снимок
	// не попадает на диск
	version      int64
	savingFailed bool
}

// New создаёт хранилище и загружает журнал с диска. Отсутствие файла
// не ошибка: хранилище начинает с пустого состояния. Строки журнала,
// которые не разбираются как JSON, пропускаются с предупреждением.
func New(fileName string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		fileName:           fileName,
		logger:             logger,
		filesPerSubmission: make(map[string][]*model.CollectedFile),
	}

	f, err := os.Open(fileName)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("открытие журнала %s: %w", fileName, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var cf model.CollectedFile
		if err := json.Unmarshal([]byte(text), &cf); err != nil {
			logger.Warn("повреждённая строка журнала пропущена",
				"file", fileName, "line", line, "error", err)
			continue
		}
		s.filesPerSubmission[cf.ParentUid] = append(s.filesPerSubmission[cf.ParentUid], &cf)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("чтение журнала %s: %w", fileName, err)
	}

	return s, nil
}

// GetCollectedFilesCopy возвращает копии записей доклада.
// Для неизвестного доклада возвращается пустой срез.
func (s *Store) GetCollectedFilesCopy(uid string) []*model.CollectedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneList(s.filesPerSubmission[uid])
}

// GetCollectedFileCopy возвращает копию записи конкретного типа
// материала или nil.
func (s *Store) GetCollectedFileCopy(uid, itemId string) *model.CollectedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.filesPerSubmission[uid] {
		if f.FileTypeId == itemId {
			return f.Clone()
		}
	}
	return nil
}

// GetDictionaryCopy возвращает копию всех записей, сгруппированных
// по докладам.
func (s *Store) GetDictionaryCopy() []SubmissionFiles {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]SubmissionFiles, 0, len(s.filesPerSubmission))
	for uid, files := range s.filesPerSubmission {
		res = append(res, SubmissionFiles{Uid: uid, Files: cloneList(files)})
	}
	return res
}

// GetEventCollectedFilesCopy возвращает записи докладов события.
// Принадлежность определяется префиксом: идентификатор доклада
// начинается с идентификатора события, за которым идёт разделитель
// '-' или '_'.
func (s *Store) GetEventCollectedFilesCopy(eventId string) []SubmissionFiles {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []SubmissionFiles
	for uid, files := range s.filesPerSubmission {
		if !strings.HasPrefix(uid, eventId) || len(uid) <= len(eventId) {
			continue
		}
		if ch := uid[len(eventId)]; ch != '-' && ch != '_' {
			continue
		}
		res = append(res, SubmissionFiles{Uid: uid, Files: cloneList(files)})
	}
	return res
}

// GetAllCollectedFilesCopy возвращает копии всех записей одним срезом.
func (s *Store) GetAllCollectedFilesCopy() []*model.CollectedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allFilesLocked()
}

func (s *Store) allFilesLocked() []*model.CollectedFile {
	var res []*model.CollectedFile
	for _, files := range s.filesPerSubmission {
		for _, f := range files {
			res = append(res, f.Clone())
		}
	}
	return res
}

// InsertOrUpdate вставляет запись или целиком замещает существующую
// с тем же типом материала в том же докладе.
func (s *Store) InsertOrUpdate(file *model.CollectedFile) {
	f := file.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.filesPerSubmission[f.ParentUid]
	for i, ef := range list {
		if ef.FileTypeId == f.FileTypeId {
			list[i] = f
			return
		}
	}
	s.filesPerSubmission[f.ParentUid] = append(list, f)
}

// SetFiles замещает полный набор записей доклада.
func (s *Store) SetFiles(uid string, files []*model.CollectedFile) {
	copied := cloneList(files)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filesPerSubmission[uid] = copied
}

// DeleteUid удаляет доклад со всеми записями. При onlyIfNoUploads
// удаление отклоняется, если хотя бы один материал загружен.
func (s *Store) DeleteUid(uid string, onlyIfNoUploads bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok := s.filesPerSubmission[uid]
	if !ok {
		return false
	}
	if onlyIfNoUploads {
		for _, f := range list {
			if f.RawDownloadUrl != "" {
				return false
			}
		}
	}
	delete(s.filesPerSubmission, uid)
	return true
}

// Save сбрасывает снимок состояния на диск. Снимок берётся под
// мьютексом и получает номер версии; если к моменту rename версия
// устарела (успел начаться более новый Save), подмена файла
// пропускается. Ошибка записи взводит флаг savingFailed для
// последующего EnsureOnDisk и возвращается вызывающему.
func (s *Store) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	tmpFn := s.fileName + uuid.New().String()

	s.mu.Lock()
	files := s.allFilesLocked()
	s.version++
	version := s.version
	s.mu.Unlock()

	defer os.Remove(tmpFn)

	if err := writeLines(tmpFn, files); err != nil {
		s.markFailed()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != version {
		// Снимок устарел, на диск попадёт более новый
		return nil
	}
	if err := os.Rename(tmpFn, s.fileName); err != nil {
		s.savingFailed = true
		return fmt.Errorf("подмена журнала %s: %w", s.fileName, err)
	}
	s.savingFailed = false
	return nil
}

// EnsureOnDisk повторяет Save, если предыдущая запись на диск не
// удалась. Идемпотентна: при чистом состоянии ничего не делает.
func (s *Store) EnsureOnDisk() error {
	s.mu.Lock()
	failed := s.savingFailed
	s.mu.Unlock()
	if !failed {
		return nil
	}
	return s.Save()
}

func (s *Store) markFailed() {
	s.mu.Lock()
	s.savingFailed = true
	s.mu.Unlock()
}

// writeLines пишет записи во временный файл с fsync.
func writeLines(path string, files []*model.CollectedFile) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("создание временного файла: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, cf := range files {
		data, err := json.Marshal(cf)
		if err != nil {
			f.Close()
			return fmt.Errorf("сериализация записи %s/%s: %w", cf.ParentUid, cf.FileTypeId, err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			f.Close()
			return fmt.Errorf("запись временного файла: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("сброс буфера: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync временного файла: %w", err)
	}
	return f.Close()
}

func cloneList(files []*model.CollectedFile) []*model.CollectedFile {
	res := make([]*model.CollectedFile, 0, len(files))
	for _, f := range files {
		res = append(res, f.Clone())
	}
	return res
}
