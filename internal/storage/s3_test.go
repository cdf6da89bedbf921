package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3_UploadToCompatibleEndpoint(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	var (
		mu          sync.Mutex
		gotMethod   string
		gotPath     string
		gotBody     string
		contentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotMethod, gotPath, gotBody = r.Method, r.URL.Path, string(body)
		contentType = r.Header.Get("Content-Type")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewS3(context.Background(), S3Config{
		Region:   "ap-south-1",
		Bucket:   "reports",
		Prefix:   "/reconciliation/",
		Endpoint: srv.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, "s3(reports/reconciliation)", store.String())

	location, err := store.Upload(context.Background(), "2024-03-15.json", []byte(`{"date":"2024-03-15"}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, "s3://reports/reconciliation/2024-03-15.json", location)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/reports/reconciliation/2024-03-15.json", gotPath)
	assert.Equal(t, `{"date":"2024-03-15"}`, gotBody)
	assert.Equal(t, "application/json", contentType)
}

func TestS3_UploadError(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
	}))
	defer srv.Close()

	store, err := NewS3(context.Background(), S3Config{Region: "ap-south-1", Bucket: "reports", Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "x.json", []byte("{}"), "application/json")
	assert.Error(t, err)
}
