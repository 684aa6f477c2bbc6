package catalog

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoad_CreatesDefaults проверяет, что при пустом каталоге
// конфигурации создаются файлы справочников по умолчанию.
func TestLoad_CreatesDefaults(t *testing.T) {
	dir := t.TempDir()

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("загрузка справочников: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "fileTypes.json")); err != nil {
		t.Error("fileTypes.json должен быть создан")
	}
	if _, err := os.Stat(filepath.Join(dir, "events.json")); err != nil {
		t.Error("events.json должен быть создан")
	}

	if _, ok := c.FileTypes["video-full"]; !ok {
		t.Error("в наборе по умолчанию нет типа video-full")
	}
	if _, ok := c.Events["v-full"]; !ok {
		t.Error("в наборе по умолчанию нет события v-full")
	}
}

// TestLoad_ReadsExisting проверяет чтение уже существующих файлов.
func TestLoad_ReadsExisting(t *testing.T) {
	dir := t.TempDir()

	types := `[{"id":"pdf-poster","fileType":"pdf","performChecks":false}]`
	events := `[{"eventId":"w-demo","filesToCollect":["pdf-poster"],"filesBlockedForUpload":["pdf-poster"]}]`
	if err := os.WriteFile(filepath.Join(dir, "fileTypes.json"), []byte(types), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "events.json"), []byte(events), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("загрузка справочников: %v", err)
	}

	ftd, ok := c.FileTypes["pdf-poster"]
	if !ok {
		t.Fatal("тип pdf-poster не загружен")
	}
	if ftd.FileType != FileTypePdf {
		t.Errorf("FileType: ожидалось pdf, получено %s", ftd.FileType)
	}

	e, ok := c.Events["w-demo"]
	if !ok {
		t.Fatal("событие w-demo не загружено")
	}
	if !e.UploadBlocked("pdf-poster") {
		t.Error("загрузка pdf-poster должна быть заблокирована")
	}
	if e.UploadBlocked("other") {
		t.Error("загрузка other не должна быть заблокирована")
	}
}

// TestLoad_OmittedMaxFileSize: не заданная в файле верхняя граница
// размера означает «без ограничения», а не ноль.
func TestLoad_OmittedMaxFileSize(t *testing.T) {
	dir := t.TempDir()

	types := `[
		{"id":"pdf-poster","fileType":"pdf","checkInfo":{"minFileSize":1}},
		{"id":"image-thumb","fileType":"image","checkInfo":{"minFileSize":1,"maxFileSize":2048}}
	]`
	if err := os.WriteFile(filepath.Join(dir, "fileTypes.json"), []byte(types), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("загрузка справочников: %v", err)
	}

	if got := c.FileTypes["pdf-poster"].CheckInfo.MaxFileSize; got != math.MaxInt64 {
		t.Errorf("MaxFileSize без ограничения: %d", got)
	}
	if got := c.FileTypes["image-thumb"].CheckInfo.MaxFileSize; got != 2048 {
		t.Errorf("явный MaxFileSize должен сохраняться: %d", got)
	}
}

// TestEventFromUID проверяет выделение события из идентификатора доклада.
func TestEventFromUID(t *testing.T) {
	tests := []struct {
		uid  string
		want string
	}{
		{"v-full_1032", "v-full"},
		{"v-short-17", "v-short"},
		{"v-full", "v"},
		{"plain", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := EventFromUID(tt.uid); got != tt.want {
			t.Errorf("EventFromUID(%q): ожидалось %q, получено %q", tt.uid, tt.want, got)
		}
	}
}

// TestEventForUID проверяет поиск события с запасным ключом по префиксу.
func TestEventForUID(t *testing.T) {
	c := &Catalog{
		Events: map[string]EventDescriptor{
			"v-full": {EventId: "v-full"},
			"w":      {EventId: "w"},
		},
	}

	if e, ok := c.EventForUID("v-full_1032"); !ok || e.EventId != "v-full" {
		t.Errorf("поиск по полному идентификатору события: %v %v", e, ok)
	}
	// Полного совпадения нет, срабатывает префикс до первого '-'
	if e, ok := c.EventForUID("w-poster_7"); !ok || e.EventId != "w" {
		t.Errorf("поиск по префиксу: %v %v", e, ok)
	}
	if _, ok := c.EventForUID("x-poster_7"); ok {
		t.Error("неизвестный доклад не должен находить событие")
	}
}

// TestVideoRequirementsConfig проверяет перевод секунд в Duration.
func TestVideoRequirementsConfig(t *testing.T) {
	rec := int64(540)
	cfg := VideoRequirementsConfig{
		MinDurationSec:            60,
		MaxDurationSec:            720,
		MaxRecommendedDurationSec: &rec,
	}

	req := cfg.Requirements()
	if req.MinDuration != time.Minute {
		t.Errorf("MinDuration: %v", req.MinDuration)
	}
	if req.MaxDuration != 12*time.Minute {
		t.Errorf("MaxDuration: %v", req.MaxDuration)
	}
	if req.MaxRecommendedDuration == nil || *req.MaxRecommendedDuration != 9*time.Minute {
		t.Errorf("MaxRecommendedDuration: %v", req.MaxRecommendedDuration)
	}
}
