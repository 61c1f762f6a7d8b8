package downloader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGetQueryAndHeaders(t *testing.T) {
	var gotQuery, gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("key")
		gotHeader = r.Header.Get("Accept")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	body, err := HTTPGet(
		context.Background(),
		server.URL+"/departures/1",
		map[string]string{"Accept": "application/json"},
		GetOptions{Query: map[string]string{"key": "secret"}},
	)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Equal(t, "secret", gotQuery)
	assert.Equal(t, "application/json", gotHeader)
}

func TestHTTPGetStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewHTTP().Get(context.Background(), server.URL, nil, GetOptions{})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestHTTPGetTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("late"))
	}))
	defer server.Close()

	_, err := NewHTTP().Get(context.Background(), server.URL, nil, GetOptions{Timeout: 20 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestHTTPGetStripsBOMAndLimitsSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("\xef\xbb\xbf{\"a\":1}"))
	}))
	defer server.Close()

	body, err := HTTPGet(context.Background(), server.URL, nil, GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(body))

	body, err = HTTPGet(context.Background(), server.URL, nil, GetOptions{MaxSize: 4})
	require.NoError(t, err)
	assert.Equal(t, `{`, string(body))
}

func TestFileReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte("\xef\xbb\xbf{\"departures\":[]}"), 0644))

	f := NewFile(path)
	body, err := f.Get(context.Background(), "http://example.com/departures/1", nil, GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, `{"departures":[]}`, string(body))
	assert.Equal(t, []string{"http://example.com/departures/1"}, f.Requests)

	_, err = NewFile(filepath.Join(t.TempDir(), "missing.json")).Get(context.Background(), "", nil, GetOptions{})
	assert.Error(t, err)
}

func TestHTTPGetRedactsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := HTTPGet(context.Background(), url+"/departures/1", nil, GetOptions{
		Query: map[string]string{"key": "secret"},
	})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
}
