package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(maxRetries int) *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		MaxRetries:     maxRetries,
		RetryBaseDelay: time.Millisecond,
	})
}

func TestDownload_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, "Full Name,Phone Number\nAsha,9876543210\n")
	}))
	defer ts.Close()

	f := newTestFetcher(3)
	body, err := f.Download(context.Background(), ts.URL)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Asha")
	assert.Equal(t, int32(3), calls.Load())
}

func TestDownload_BacksOffOnTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer ts.Close()

	f := newTestFetcher(3)
	body, err := f.Download(context.Background(), ts.URL)
	require.NoError(t, err)
	body.Close()
	assert.Equal(t, int32(2), calls.Load())
}

func TestDownload_FailsAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	f := newTestFetcher(2)
	_, err := f.Download(context.Background(), ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retries exhausted")
	assert.Equal(t, int32(2), calls.Load())
}

func TestDownload_NonRetryableStatusIsHardFailure(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	f := newTestFetcher(3)
	_, err := f.Download(context.Background(), ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.Equal(t, int32(1), calls.Load(), "4xx other than 429 is not retried")
}

func TestDownload_SetsUserAgent(t *testing.T) {
	var gotAgent string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		io.WriteString(w, "ok")
	}))
	defer ts.Close()

	f := NewHTTPFetcher(HTTPOptions{UserAgent: "leadsync-test/1.0", RetryBaseDelay: time.Millisecond})
	body, err := f.Download(context.Background(), ts.URL)
	require.NoError(t, err)
	body.Close()
	assert.Equal(t, "leadsync-test/1.0", gotAgent)
}

func TestSheetCSVURL(t *testing.T) {
	assert.Equal(t,
		"https://docs.google.com/spreadsheets/d/doc1/export?format=csv&gid=0",
		SheetCSVURL("doc1", 0))
	assert.Equal(t,
		"https://docs.google.com/spreadsheets/d/doc2/export?format=csv&gid=1234",
		SheetCSVURL("doc2", 1234))
}
