package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/bardify/api/internal/client"
	"github.com/bardify/api/internal/handler"
	"github.com/bardify/api/internal/queue"
	"github.com/bardify/api/internal/service"
	"github.com/bardify/api/internal/store"
)

// memoryStorage is an in-memory StorageClient standing in for S3.
type memoryStorage struct {
	objects map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.objects[key] = data
	return "https://storage.test/" + key, nil
}

func (m *memoryStorage) Download(ctx context.Context, container, key, localPath string) error {
	return errors.New("not implemented")
}

func (m *memoryStorage) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryStorage) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://storage.test/" + key + "?signed", nil
}

func (m *memoryStorage) GetPublicURL(key string) string {
	return "https://storage.test/" + key
}

// testApp holds all components needed for testing
type testApp struct {
	app     *fiber.App
	tasks   *store.MemoryTaskStore
	queue   *queue.MemoryQueue
	storage *memoryStorage
}

// setupApp creates a Fiber app identical to main.go but with in-memory
// backends: no Redis, no Postgres, objects held in memory instead of S3.
func setupApp(t *testing.T) *testApp {
	t.Helper()
	return setupAppWithStorage(t, newMemoryStorage())
}

// setupAppWithStorage wires the app around an explicit storage client; pass
// nil to exercise the unconfigured-storage path.
func setupAppWithStorage(t *testing.T, storage *memoryStorage) *testApp {
	t.Helper()

	validate := validator.New()

	tasks := store.NewMemoryTaskStore()
	q := queue.NewMemoryQueue()

	var storageClient client.StorageClient
	if storage != nil {
		storageClient = storage
	}
	taskService := service.NewTaskService(storageClient, tasks, q)
	musicHandler := handler.NewMusicHandler(taskService, validate)

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	music := api.Group("/music")
	music.Post("/upload", musicHandler.Upload)
	music.Get("/status/:taskId", musicHandler.Status)
	music.Get("/result/:taskId", musicHandler.Result)

	return &testApp{app: app, tasks: tasks, queue: q, storage: storage}
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus fails the test if the response status differs from expected.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
