package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"xmlrelay/internal/forwarder"
	"xmlrelay/internal/logging"
	"xmlrelay/internal/model"
	"xmlrelay/internal/repository/memory"
	"xmlrelay/internal/service"
	"xmlrelay/internal/staging"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "secure-api-key"

type stack struct {
	storage    *fiber.App
	storageURL string
	ingest     *fiber.App
	stager     *staging.DiskStager
}

func newStorage(t *testing.T) (*fiber.App, string) {
	t.Helper()
	svc := service.NewProcessedFileService(memory.NewProcessedFileMemory())
	app, err := NewStorageApp(svc, nil, testAPIKey, Options{AccessLog: io.Discard})
	require.NoError(t, err)

	srv := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(srv.Close)
	return app, srv.URL
}

func newIngest(t *testing.T, storageURL, apiKey string) (*fiber.App, *staging.DiskStager) {
	t.Helper()
	stager := staging.NewDiskStager(t.TempDir())
	fwd := forwarder.New(storageURL, apiKey, forwarder.WithTimeout(5*time.Second))
	svc := service.NewIngestService(stager, fwd, logging.Discard(), nil)

	app, err := NewIngestApp(svc, nil, Options{AccessLog: io.Discard, BodyLimit: 1 << 20})
	require.NoError(t, err)
	return app, stager
}

func newStack(t *testing.T) *stack {
	t.Helper()
	storageApp, url := newStorage(t)
	ingestApp, stager := newIngest(t, url, testAPIKey)
	return &stack{storage: storageApp, storageURL: url, ingest: ingestApp, stager: stager}
}

func upload(t *testing.T, app *fiber.App, filename, content, logicalName string) *http.Response {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	if logicalName != "" {
		require.NoError(t, w.WriteField("fileName", logicalName))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/FileUpload/upload", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestEndToEnd_UploadThenFetch(t *testing.T) {
	s := newStack(t)

	resp := upload(t, s.ingest, "test.xml", `<?xml version="1.0"?><test><a>1</a><a>2</a></test>`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ingested service.IngestResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ingested))
	assert.Equal(t, "File processed and sent successfully", ingested.Message)
	assert.Equal(t, int64(1), ingested.FileID)
	assert.Equal(t, int64(0), s.stager.Outstanding())

	resp, err := s.storage.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/ProcessedFiles/%d", ingested.FileID), nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stored model.ProcessedFile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stored))
	assert.Equal(t, "test", stored.FileName)
	assert.Equal(t, `{"?xml":{"@version":"1.0"},"test":{"a":["1","2"]}}`, stored.FileContent)
	assert.False(t, stored.ProcessedDate.IsZero())

	resp, err = s.storage.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/ProcessedFiles/%d/download", ingested.FileID), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="test.json"`, resp.Header.Get("Content-Disposition"))
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, stored.FileContent, string(b))

	resp, err = s.storage.Test(httptest.NewRequest(http.MethodGet, "/api/ProcessedFiles", nil))
	require.NoError(t, err)
	var all []model.ProcessedFile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	assert.Len(t, all, 1)
}

func TestEndToEnd_LogicalName(t *testing.T) {
	s := newStack(t)

	resp := upload(t, s.ingest, "upload.xml", "<r>x</r>", "invoice-7")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := s.storage.Test(httptest.NewRequest(http.MethodGet, "/api/ProcessedFiles/1", nil))
	require.NoError(t, err)
	var stored model.ProcessedFile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stored))
	assert.Equal(t, "invoice-7", stored.FileName)
}

func TestEndToEnd_Failures(t *testing.T) {
	t.Run("malformed xml is not stored", func(t *testing.T) {
		s := newStack(t)

		resp := upload(t, s.ingest, "bad.xml", "<root><a>1</a>", "")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, int64(0), s.stager.Outstanding())

		resp, err := s.storage.Test(httptest.NewRequest(http.MethodGet, "/api/ProcessedFiles", nil))
		require.NoError(t, err)
		b, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "[]", string(b))
	})

	t.Run("wrong api key", func(t *testing.T) {
		_, url := newStorage(t)
		ingestApp, stager := newIngest(t, url, "wrong-key")

		resp := upload(t, ingestApp, "test.xml", "<a/>", "")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, int64(0), stager.Outstanding())

		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Error communicating with the storage service: storage service responded with status 401: Invalid API Key", body.Error.Message)
	})

	t.Run("storage unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		ingestApp, stager := newIngest(t, url, testAPIKey)

		resp := upload(t, ingestApp, "test.xml", "<a/>", "")
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, int64(0), stager.Outstanding())
	})
}

func TestEndToEnd_DeleteTwice(t *testing.T) {
	s := newStack(t)
	require.Equal(t, http.StatusOK, upload(t, s.ingest, "a.xml", "<a/>", "").StatusCode)

	resp, err := s.storage.Test(httptest.NewRequest(http.MethodDelete, "/api/ProcessedFiles/1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = s.storage.Test(httptest.NewRequest(http.MethodDelete, "/api/ProcessedFiles/1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = s.storage.Test(httptest.NewRequest(http.MethodGet, "/api/ProcessedFiles/1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStorage_ConcurrentReceive(t *testing.T) {
	_, url := newStorage(t)
	client := &http.Client{Timeout: 10 * time.Second}

	const n = 100
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf(`{"fileName":"f%d","fileContent":"{\"i\":%d}"}`, i, i)
			req, err := http.NewRequest(http.MethodPost, url+forwarder.ReceivePath, strings.NewReader(body))
			if !assert.NoError(t, err) {
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(forwarder.APIKeyHeader, testAPIKey)

			resp, err := client.Do(req)
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()
			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
			var res service.ReceiveResult
			if assert.NoError(t, json.NewDecoder(resp.Body).Decode(&res)) {
				ids <- res.FileID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
