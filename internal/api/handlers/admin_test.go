package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/confcollect/collector/internal/domain/model"
	"github.com/confcollect/collector/internal/store"
)

func TestDeleteSubmission_Success(t *testing.T) {
	env := newTestEnv(t)
	env.store.InsertOrUpdate(&model.CollectedFile{
		ParentUid:  "v-full_1001",
		FileTypeId: "video-full",
		Name:       "Video",
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/submissions/v-full_1001", nil)
	rec := httptest.NewRecorder()
	env.admin.DeleteSubmission(rec, req, "v-full_1001")

	if rec.Code != http.StatusOK {
		t.Fatalf("Статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
	if files := env.store.GetCollectedFilesCopy("v-full_1001"); len(files) != 0 {
		t.Error("Запись доклада осталась в журнале")
	}
}

func TestDeleteSubmission_WithUploads(t *testing.T) {
	env := newTestEnv(t)
	env.store.InsertOrUpdate(&model.CollectedFile{
		ParentUid:      "v-full_1001",
		FileTypeId:     "video-full",
		Name:           "Video",
		IsPresent:      true,
		RawDownloadUrl: "https://cdn.example.com/collect/v-full/v-full_1001/v-full_1001_video.mp4",
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/submissions/v-full_1001", nil)
	rec := httptest.NewRecorder()
	env.admin.DeleteSubmission(rec, req, "v-full_1001")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Статус = %d, ожидался 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "submission has uploaded files or does not exist") {
		t.Errorf("Тело: %s", rec.Body.String())
	}
	if files := env.store.GetCollectedFilesCopy("v-full_1001"); len(files) != 1 {
		t.Error("Запись доклада не должна удаляться при загруженных файлах")
	}
}

func TestDeleteSubmission_Unknown(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/submissions/v-full_9999", nil)
	rec := httptest.NewRecorder()
	env.admin.DeleteSubmission(rec, req, "v-full_9999")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Статус = %d, ожидался 400", rec.Code)
	}
}

func TestListAllItems(t *testing.T) {
	env := newTestEnv(t)
	env.store.InsertOrUpdate(&model.CollectedFile{
		ParentUid:      "v-full_1001",
		FileTypeId:     "video-full",
		Name:           "Video",
		RawDownloadUrl: "https://cdn.example.com/x.mp4",
	})
	env.store.InsertOrUpdate(&model.CollectedFile{
		ParentUid:  "v-full_1002",
		FileTypeId: "video-full",
		Name:       "Video",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/items", nil)
	rec := httptest.NewRecorder()
	env.admin.ListAllItems(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Статус = %d", rec.Code)
	}
	var items []store.SubmissionFiles
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("Ответ не JSON: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Докладов в дампе: %d", len(items))
	}
	// Административный дамп содержит RawDownloadUrl как есть
	found := false
	for _, it := range items {
		for _, f := range it.Files {
			if f.RawDownloadUrl == "https://cdn.example.com/x.mp4" {
				found = true
			}
		}
	}
	if !found {
		t.Error("RawDownloadUrl отсутствует в административном дампе")
	}
}
