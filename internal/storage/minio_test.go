package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/config"
)

type recordedRequest struct {
	method      string
	path        string
	contentType string
	body        []byte
}

// fakeObjectStore answers the handful of S3 calls the minio driver makes.
type fakeObjectStore struct {
	bucketStatus int
	headStatus   int
	putStatus    int

	mu       sync.Mutex
	requests []recordedRequest
}

func (f *fakeObjectStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		method:      r.Method,
		path:        r.URL.Path,
		contentType: r.Header.Get("Content-Type"),
		body:        body,
	})
	f.mu.Unlock()

	isBucket := r.URL.Path == "/profiles/" || r.URL.Path == "/profiles"
	switch {
	case r.Method == http.MethodHead && isBucket:
		w.WriteHeader(f.bucketStatus)
	case r.Method == http.MethodHead:
		if f.headStatus == http.StatusOK {
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
			w.Header().Set("Content-Length", "4")
			w.Header().Set("Content-Type", "image/jpeg")
		}
		w.WriteHeader(f.headStatus)
	case r.Method == http.MethodPut:
		if f.putStatus != http.StatusOK {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(f.putStatus)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
				`<Error><Code>InternalError</Code><Message>backend unavailable</Message></Error>`)
			return
		}
		w.Header().Set("ETag", `"5d41402abc4b2a76b9719d911017c592"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeObjectStore) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.method == method {
			n++
		}
	}
	return n
}

func (f *fakeObjectStore) lastPut() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].method == http.MethodPut {
			return f.requests[i]
		}
	}
	return recordedRequest{}
}

func newMinioAgainst(t *testing.T, f *fakeObjectStore) *MinioBucket {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	b, err := NewMinioFromConfig(&config.Config{
		StorageBucket:    "profiles",
		StorageEndpoint:  srv.Listener.Addr().String(),
		StorageRegion:    "us-east-1",
		StorageAccessKey: "minioadmin",
		StorageSecretKey: "minioadmin",
		StorageUseSSL:    false,
	})
	require.NoError(t, err)
	return b
}

func TestNewMinioFromConfig_RequiresEndpoint(t *testing.T) {
	_, err := NewMinioFromConfig(&config.Config{StorageBucket: "profiles"})
	assert.Error(t, err)
}

func TestMinioBucket_UploadRefusesExistingObject(t *testing.T) {
	f := &fakeObjectStore{bucketStatus: http.StatusOK, headStatus: http.StatusOK, putStatus: http.StatusOK}
	b := newMinioAgainst(t, f)

	err := b.Upload(context.Background(), "avatars/u1.jpg", bytes.NewReader(jpegBytes), int64(len(jpegBytes)), UploadOptions{})
	assert.ErrorIs(t, err, ErrObjectExists)

	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "upload", serr.Op)
	assert.Equal(t, "avatars/u1.jpg", serr.Key)
	assert.Zero(t, f.count(http.MethodPut))
}

func TestMinioBucket_UploadCreatesMissingObject(t *testing.T) {
	f := &fakeObjectStore{bucketStatus: http.StatusOK, headStatus: http.StatusNotFound, putStatus: http.StatusOK}
	b := newMinioAgainst(t, f)

	err := b.Upload(context.Background(), "avatars/u1.jpg", bytes.NewReader(jpegBytes), int64(len(jpegBytes)), UploadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, f.count(http.MethodHead))
	require.Equal(t, 1, f.count(http.MethodPut))
	put := f.lastPut()
	assert.Equal(t, "/profiles/avatars/u1.jpg", put.path)
	assert.Equal(t, "application/octet-stream", put.contentType)
	// Plain-http uploads are sent with chunked V4 signing, so the payload is framed.
	assert.True(t, bytes.Contains(put.body, jpegBytes))
}

func TestMinioBucket_UploadUpsertSkipsExistenceCheck(t *testing.T) {
	f := &fakeObjectStore{bucketStatus: http.StatusOK, headStatus: http.StatusOK, putStatus: http.StatusOK}
	b := newMinioAgainst(t, f)

	err := b.Upload(context.Background(), "avatars/u1.jpg", bytes.NewReader(jpegBytes), int64(len(jpegBytes)), UploadOptions{
		Upsert:      true,
		ContentType: "image/jpeg",
	})
	require.NoError(t, err)
	assert.Zero(t, f.count(http.MethodHead))
	assert.Equal(t, "image/jpeg", f.lastPut().contentType)
}

func TestMinioBucket_UploadServerError(t *testing.T) {
	f := &fakeObjectStore{bucketStatus: http.StatusOK, headStatus: http.StatusNotFound, putStatus: http.StatusInternalServerError}
	b := newMinioAgainst(t, f)

	err := b.Upload(context.Background(), "avatars/u1.jpg", bytes.NewReader(jpegBytes), int64(len(jpegBytes)), UploadOptions{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrObjectExists)

	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "upload", serr.Op)
	assert.Equal(t, "profiles", serr.Bucket)
	assert.Equal(t, 1, f.count(http.MethodPut), "a failed upload is not retried")
}

func TestMinioBucket_Ping(t *testing.T) {
	missing := newMinioAgainst(t, &fakeObjectStore{bucketStatus: http.StatusNotFound})
	err := missing.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket does not exist")

	present := newMinioAgainst(t, &fakeObjectStore{bucketStatus: http.StatusOK})
	assert.NoError(t, present.Ping(context.Background()))
}

func TestMinioBucket_PublicURL(t *testing.T) {
	b := &MinioBucket{bucket: "profiles", publicBase: "http://localhost:9000"}
	assert.Equal(t, "http://localhost:9000/profiles/abc.jpg", b.PublicURL("abc.jpg"))
}
