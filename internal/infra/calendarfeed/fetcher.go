package calendarfeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"staybook/internal/app/policies"
	domaincalendar "staybook/internal/domain/calendar"
)

const (
	defaultTimeout = 15 * time.Second
	maxFeedBytes   = 5 << 20
	userAgent      = "staybook-calendar-sync/1.0"
)

var ErrFeedTooLarge = errors.New("calendarfeed: feed exceeds size limit")

// HTTPFetcher downloads feeds with conditional requests so unchanged feeds
// come back as 304 without a body.
type HTTPFetcher struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}, Timeout: timeout}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string, validators domaincalendar.Validators) (policies.FeedResponse, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return policies.FeedResponse{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")
	if validators.ETag != "" {
		req.Header.Set("If-None-Match", validators.ETag)
	}
	if validators.LastModified != "" {
		req.Header.Set("If-Modified-Since", validators.LastModified)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return policies.FeedResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return policies.FeedResponse{NotModified: true, Validators: validators}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return policies.FeedResponse{}, fmt.Errorf("calendarfeed: upstream answered %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return policies.FeedResponse{}, err
	}
	if len(body) > maxFeedBytes {
		return policies.FeedResponse{}, ErrFeedTooLarge
	}
	return policies.FeedResponse{
		Body: body,
		Validators: domaincalendar.Validators{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		},
	}, nil
}

var _ policies.FeedFetcher = (*HTTPFetcher)(nil)
