package api

import (
	"context"
	"testing"
)

func TestContract(t *testing.T) {
	doc, err := Contract(context.Background())
	if err != nil {
		t.Fatalf("Контракт не прошёл валидацию: %v", err)
	}

	for _, path := range []string{
		"/api/urls/{auth}/{uid}",
		"/api/items/{auth}/{uid}",
		"/api/upload/{uid}/{itemId}/{expiry}/{auth}",
		"/api/delete/{uid}/{itemId}/{expiry}/{auth}",
		"/api/download/{expiry}/{auth}/{uid}",
		"/api/admin/submissions/{uid}",
		"/api/admin/items",
		"/health/live",
		"/health/ready",
		"/metrics",
	} {
		if doc.Paths.Find(path) == nil {
			t.Errorf("Маршрут %s отсутствует в контракте", path)
		}
	}
}
