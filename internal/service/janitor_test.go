package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

// writeTempFile создаёт файл и сдвигает его mtime в прошлое.
func writeTempFile(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("data"), 0o600); err != nil {
		t.Fatalf("Ошибка создания файла: %v", err)
	}
	old := time.Now().Add(-age)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("Ошибка сдвига mtime: %v", err)
	}
	return path
}

func TestJanitor_DeletesStaleUUIDFiles(t *testing.T) {
	dir := t.TempDir()
	stale := writeTempFile(t, dir, uuid.New().String(), 7*time.Hour)
	fresh := writeTempFile(t, dir, uuid.New().String(), time.Minute)
	foreign := writeTempFile(t, dir, "report.txt", 48*time.Hour)

	js := NewJanitorService(dir, 6*time.Hour, time.Hour, testLogger())
	result := js.RunOnce()

	if result.DeletedCount != 1 {
		t.Errorf("Удалено файлов: %d, ожидался 1", result.DeletedCount)
	}
	if result.Errors != 0 {
		t.Errorf("Ошибок: %d", result.Errors)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("Осиротевший файл должен быть удалён")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("Свежий файл не должен удаляться: загрузка может идти прямо сейчас")
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Error("Файл с именем не-UUID не должен удаляться")
	}
}

func TestJanitor_IgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	subdir := filepath.Join(dir, uuid.New().String())
	if err := os.Mkdir(subdir, 0o755); err != nil {
		t.Fatalf("Ошибка создания директории: %v", err)
	}
	old := time.Now().Add(-24 * time.Hour)
	if err := os.Chtimes(subdir, old, old); err != nil {
		t.Fatalf("Ошибка сдвига mtime: %v", err)
	}

	js := NewJanitorService(dir, 6*time.Hour, time.Hour, testLogger())
	result := js.RunOnce()

	if result.DeletedCount != 0 {
		t.Errorf("Удалено: %d, директории не должны трогаться", result.DeletedCount)
	}
	if _, err := os.Stat(subdir); err != nil {
		t.Error("Директория должна остаться")
	}
}

func TestJanitor_MissingDir(t *testing.T) {
	js := NewJanitorService(filepath.Join(t.TempDir(), "no-such"), 6*time.Hour, time.Hour, testLogger())
	result := js.RunOnce()

	if result.Errors != 1 {
		t.Errorf("Ошибок: %d, ожидалась 1", result.Errors)
	}
}
