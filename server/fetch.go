package contour

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	Mp "github.com/maroda/contour/plugin"
)

const (
	webTimeout = 10 * time.Second

	// maxBody caps what a series source may send
	maxBody = 4 << 20
)

var ErrFetchStatus = errors.New("unexpected fetch status")

type HTTPClient interface {
	Get(string) (*http.Response, error)
}

// Shared HTTP Client
var sharedHTTPClient = &http.Client{
	Timeout: webTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	},
}

// SingleFetchWithClient handles the messy business of the HTTP connection
// and is testable with dependency injection, called by SingleFetch
func SingleFetchWithClient(url string, c HTTPClient) (int, []byte, error) {
	resp, err := c.Get(url)
	if err != nil {
		slog.Error("Fetch Error", slog.Any("Error", err))
		return 0, nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Close Error", slog.Any("Error", err))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		slog.Error("Could not read body", slog.Any("Error", err))
		return 0, nil, err
	}

	return resp.StatusCode, body, nil
}

// SingleFetch returns the Response Code, raw byte stream body, and error
// This uses a Shared HTTP Client:
// - to reuse existing endpoint connections
// - to avoid stale connections that eat up OS FDs
func SingleFetch(url string) (int, []byte, error) {
	return SingleFetchWithClient(url, sharedHTTPClient)
}

// FetchSeries reads a raw series from url.
// With a key the body is JSON and the key is a path into it;
// without one the body is a plain list of numbers.
func FetchSeries(url, key string, c HTTPClient) ([]float64, error) {
	if c == nil {
		c = sharedHTTPClient
	}

	status, body, err := SingleFetchWithClient(url, c)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s %d: %w", url, status, ErrFetchStatus)
	}

	return ParseSeriesBody(body, key)
}

// ParseSeriesBody picks the JSON extractor when a key is set
// or the body is a JSON array, and the plain text parser otherwise
func ParseSeriesBody(body []byte, key string) ([]float64, error) {
	trimmed := bytes.TrimSpace(body)
	if key != "" || bytes.HasPrefix(trimmed, []byte("[")) {
		var ex Mp.SeriesExtractor = Mp.NewJSONTransformer(key)
		return ex.Extract(trimmed)
	}
	return ParseSeriesReader(bytes.NewReader(trimmed))
}
