package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyFetcher implements Fetcher on top of a Colly collector. Like
// HTTPFetcher it makes a single attempt per call; non-200 responses
// come back as a *TransportError carrying the status code.
type CollyFetcher struct {
	UserAgent      string
	AcceptLanguage string
	RequestTimeout time.Duration
	MaxBodySize    int // bytes, 0 = unlimited
	DetectCharset  bool
	ProxyURL       string
}

// NewCollyFetcher creates a CollyFetcher from the per-source fetch settings.
func NewCollyFetcher(cfg FetchConfig) *CollyFetcher {
	f := &CollyFetcher{
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.AcceptLanguage,
		RequestTimeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxBodySize:    10 * 1024 * 1024, // 10MB
		DetectCharset:  true,
		ProxyURL:       cfg.ProxyURL,
	}
	if f.UserAgent == "" {
		f.UserAgent = defaultUserAgent
	}
	if f.AcceptLanguage == "" {
		f.AcceptLanguage = "it-IT,it;q=0.9,en;q=0.8"
	}
	if f.RequestTimeout <= 0 {
		f.RequestTimeout = 15 * time.Second
	}
	return f
}

func (f *CollyFetcher) buildCollector(ctx context.Context) *colly.Collector {
	opts := []colly.CollectorOption{
		colly.UserAgent(f.UserAgent),
		colly.MaxBodySize(f.MaxBodySize),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	}
	if f.DetectCharset {
		opts = append(opts, colly.DetectCharset())
	}

	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(f.RequestTimeout)
	if f.ProxyURL != "" {
		_ = c.SetProxy(f.ProxyURL)
	}

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", f.AcceptLanguage)
	})
	return c
}

// Fetch implements the Fetcher interface.
func (f *CollyFetcher) Fetch(ctx context.Context, targetURL string) (*FetchedDocument, error) {
	c := f.buildCollector(ctx)

	var result *FetchedDocument
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		result = &FetchedDocument{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        io.NopCloser(bytes.NewReader(r.Body)),
			FetchedAt:   time.Now(),
			Headers:     map[string][]string(r.Headers.Clone()),
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		te := &TransportError{URL: targetURL, Err: err}
		if r != nil && r.StatusCode != 0 {
			te.StatusCode = r.StatusCode
		}
		fetchErr = te
	})

	visitErr := c.Visit(targetURL)
	if fetchErr != nil {
		return nil, fetchErr
	}
	if visitErr != nil {
		return nil, &TransportError{URL: targetURL, Err: visitErr}
	}
	if result == nil {
		return nil, &TransportError{URL: targetURL, Err: fmt.Errorf("no response received")}
	}
	if result.StatusCode != http.StatusOK {
		return nil, &TransportError{URL: targetURL, StatusCode: result.StatusCode}
	}
	return result, nil
}
