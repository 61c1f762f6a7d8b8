package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/trafiklab-tools/realtime/config"
	"github.com/trafiklab-tools/realtime/downloader"
	"github.com/trafiklab-tools/realtime/model"
	"github.com/trafiklab-tools/realtime/parse"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultMaxSize = 16 << 20 // 16 MB
)

// Client for the departures endpoint of the Realtime Timetables API.
type Client struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxSize    int
	Downloader downloader.Downloader
}

// Creates a Client from configuration. The API key is not checked
// until Fetch.
func NewClient(cfg *config.Config) *Client {
	c := &Client{
		BaseURL:    config.DefaultBaseURL,
		Timeout:    DefaultTimeout,
		MaxSize:    DefaultMaxSize,
		Downloader: downloader.NewHTTP(),
	}
	if cfg != nil {
		c.APIKey = cfg.APIKey
		if cfg.BaseURL != "" {
			c.BaseURL = cfg.BaseURL
		}
		if cfg.Timeout > 0 {
			c.Timeout = cfg.Timeout
		}
	}
	return c
}

// URL of the departures for an area. A nil when selects the current
// window. The key is not part of it.
func (c *Client) URL(areaID string, when *time.Time) string {
	if areaID == "" {
		areaID = model.DefaultAreaID
	}

	u := strings.TrimRight(c.BaseURL, "/") + "/departures/" + url.PathEscape(areaID)
	if when != nil {
		u += "/" + when.Format(model.WindowTimeLayout)
	}
	return u
}

// Retrieves departures for an area, in the 60 minute window starting
// at when, or the current window if when is nil. A blank areaID
// selects model.DefaultAreaID.
//
// Makes a single request. Fails with *model.ConfigError if there's no
// API key, *model.NetworkError if the request fails and
// *model.ParseError if the response isn't a departures document.
func (c *Client) Fetch(ctx context.Context, areaID string, when *time.Time) (*model.RawResponse, error) {
	if c.APIKey == "" {
		return nil, &model.ConfigError{Err: model.ErrMissingAPIKey}
	}

	u := c.URL(areaID, when)
	log.Debug().Str("url", u).Msg("fetching departures")

	start := time.Now()
	body, err := c.Downloader.Get(ctx, u, map[string]string{
		"Accept": "application/json",
	}, downloader.GetOptions{
		Timeout: c.Timeout,
		MaxSize: c.MaxSize,
		Query:   map[string]string{"key": c.APIKey},
	})
	if err != nil {
		netErr := &model.NetworkError{URL: u, Err: err}
		var statusErr *downloader.StatusError
		if errors.As(err, &statusErr) {
			netErr.StatusCode = statusErr.StatusCode
		}
		return nil, netErr
	}

	doc, err := parse.ParseResponse(body)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("url", u).
		Int("departures", len(doc.Departures)).
		Dur("elapsed", time.Since(start)).
		Msg("fetched departures")

	return doc, nil
}

func (c *Client) FetchWindow(ctx context.Context, window model.QueryWindow) (*model.RawResponse, error) {
	doc, err := c.Fetch(ctx, window.Area(), window.When)
	if err != nil {
		return nil, fmt.Errorf("fetching departures for %s: %w", window.Area(), err)
	}
	return doc, nil
}
