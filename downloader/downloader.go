package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spkg/bom"
)

type GetOptions struct {
	MaxSize int
	Timeout time.Duration

	// Added to the URL's query string. Used for API keys.
	Query map[string]string
}

// A thing capable of downloading a document
type Downloader interface {
	Get(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error)
}

// Returned when the server answers with anything but a 2xx.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d", e.StatusCode)
}

// Plain HTTP downloader. No caching, no retries.
type HTTP struct {
	// Used if set. Timeouts from GetOptions still apply.
	Client *http.Client
}

func NewHTTP() *HTTP {
	return &HTTP{}
}

func (h *HTTP) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	client := h.Client
	if client == nil {
		client = &http.Client{}
	}
	return get(ctx, client, url, headers, options)
}

// Gets a document. Doesn't cache. Provided as convenience for
// implementing custom Downloaders.
func HTTPGet(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error) {
	return get(ctx, &http.Client{}, url, headers, options)
}

func get(
	ctx context.Context,
	client *http.Client,
	rawURL string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	if len(options.Query) > 0 {
		q := u.Query()
		for k, v := range options.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, v := range headers {
		req.Header.Add(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		// Query may hold secrets.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = rawURL
		}
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var reader io.Reader = resp.Body
	if options.MaxSize > 0 {
		reader = io.LimitReader(resp.Body, int64(options.MaxSize))
	}

	body, err := io.ReadAll(bom.NewReader(reader))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	return body, nil
}
