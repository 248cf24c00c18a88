package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/clubledger/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeS3 records the requests an S3 client sends it
type fakeS3 struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
}

type capturedRequest struct {
	Method  string
	Path    string
	Header  http.Header
	Payload string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, capturedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Payload: string(body)})
	status := f.status
	f.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (f *fakeS3) last() capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestArchive(t *testing.T, endpoint string) *S3Archive {
	t.Helper()
	a, err := NewS3Archive(context.Background(), config.ArchiveConfig{
		Bucket:          "webhook-archive",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Prefix:          "/webhooks/",
		UsePathStyle:    true,
	},
		WithLogger(zaptest.NewLogger(t)),
		WithClock(func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)
	return a
}

func TestNewS3Archive_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := NewS3Archive(ctx, config.ArchiveConfig{})
	assert.ErrorContains(t, err, "bucket is required")

	_, err = NewS3Archive(ctx, config.ArchiveConfig{Bucket: "b", AccessKeyID: "key"})
	assert.ErrorContains(t, err, "secret access key is required")

	a, err := NewS3Archive(ctx, config.ArchiveConfig{Bucket: "b", AccessKeyID: "key", SecretAccessKey: "secret", Endpoint: "minio:9000"})
	require.NoError(t, err)
	assert.Equal(t, "b", a.Bucket())
}

func TestS3Archive_Key(t *testing.T) {
	a := newTestArchive(t, "http://localhost:9000")
	id := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")

	assert.Equal(t, "webhooks/stripe/2024/03/15/0f8fad5b-d9cb-469f-a165-70867728950e.json", a.Key("Stripe", id))
}

func TestS3Archive_Archive(t *testing.T) {
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	a := newTestArchive(t, srv.URL)
	id := uuid.New()
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)

	require.NoError(t, a.Archive(context.Background(), "stripe", id, payload))

	req := fake.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/webhook-archive/webhooks/stripe/2024/03/15/"+id.String()+".json", req.Path)
	assert.Equal(t, "stripe", req.Header.Get("X-Amz-Meta-Gateway"))
	assert.Equal(t, id.String(), req.Header.Get("X-Amz-Meta-Webhook-Event-Id"))
	assert.Contains(t, req.Payload, `"evt_1"`)
}

func TestS3Archive_ArchiveErrors(t *testing.T) {
	fake := &fakeS3{status: http.StatusForbidden}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	a := newTestArchive(t, srv.URL)
	ctx := context.Background()

	assert.Error(t, a.Archive(ctx, "", uuid.New(), []byte("{}")))
	assert.Error(t, a.Archive(ctx, "stripe", uuid.Nil, []byte("{}")))

	err := a.Archive(ctx, "stripe", uuid.New(), []byte("{}"))
	assert.ErrorContains(t, err, "failed to archive webhook payload")
}
