package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewDephealthService_ValidURL(t *testing.T) {
	// Mock-сервер вместо API хранилища
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer mockServer.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// Используем изолированный Prometheus registry для тестов
	reg := prometheus.NewRegistry()

	ds, err := NewDephealthServiceWithRegisterer(
		"test-collector-01",
		"collector",
		"media-storage",
		mockServer.URL,
		5*time.Second,
		logger,
		reg,
	)

	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}
	if ds == nil {
		t.Fatal("DephealthService nil")
	}
}

func TestDephealthService_StartStop(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer mockServer.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	reg := prometheus.NewRegistry()

	ds, err := NewDephealthServiceWithRegisterer(
		"test-collector-02",
		"collector",
		"media-storage",
		mockServer.URL,
		1*time.Second,
		logger,
		reg,
	)
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start не должен блокировать
	if err := ds.Start(ctx); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}

	// Даём время на первую проверку (интервал 1s + запас)
	time.Sleep(3 * time.Second)

	// Health возвращает map с ключами формата "dependency:host:port"
	health := ds.Health()
	if health == nil {
		t.Fatal("Health() вернул nil")
	}

	found := false
	for key, val := range health {
		if strings.HasPrefix(key, "media-storage:") {
			found = true
			if !val {
				t.Errorf("media-storage health = false для ключа %q, ожидалось true", key)
			}
			break
		}
	}
	if !found {
		t.Errorf("Нет записи для media-storage в Health(), keys=%v", healthKeys(health))
	}

	// Stop не должен паниковать
	ds.Stop()
}

func TestDephealthService_UnhealthyDependency(t *testing.T) {
	// Сервер, который возвращает 500
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer mockServer.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	reg := prometheus.NewRegistry()

	ds, err := NewDephealthServiceWithRegisterer(
		"test-collector-03",
		"collector",
		"media-storage",
		mockServer.URL,
		1*time.Second,
		logger,
		reg,
	)
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ds.Start(ctx); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}

	// Даём время на первую проверку
	time.Sleep(3 * time.Second)

	health := ds.Health()

	found := false
	for key, val := range health {
		if strings.HasPrefix(key, "media-storage:") {
			found = true
			if val {
				t.Errorf("media-storage health = true для ключа %q, ожидалось false (сервер 500)", key)
			}
			break
		}
	}
	if !found {
		t.Errorf("Нет записи для media-storage в Health(), keys=%v", healthKeys(health))
	}

	ds.Stop()
}

// healthKeys возвращает ключи карты health для вывода в сообщениях об ошибках.
func healthKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
