package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Proton-105/studio-booking-bot/internal/errors"
	"github.com/Proton-105/studio-booking-bot/pkg/metrics"
)

// maxMediaBytes matches the Bot API upload limit for photos sent by file.
const maxMediaBytes = 20 << 20

// Media is a downloaded photo or video ready for upload.
type Media struct {
	Data        []byte
	ContentType string
}

// FetchMedia downloads an uploaded asset. Assets live behind the same basic auth as
// the API, so Telegram cannot fetch them by URL itself.
func (c *Client) FetchMedia(ctx context.Context, rawURL string) (*Media, error) {
	url := c.AbsoluteURL(rawURL)
	if url == "" {
		return nil, apperrors.NewValidationError("media url is empty")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewBackendError("media", err)
	}

	start := time.Now()
	media, err := c.download(ctx, url)
	metrics.RecordBackendRequest(http.MethodGet, "media", outcome(err), time.Since(start))
	if err != nil {
		return nil, apperrors.NewBackendError("media", err)
	}
	return media, nil
}

func (c *Client) download(ctx context.Context, url string) (*Media, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.postTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Method: http.MethodGet, URL: url, Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("media %s is empty", url)
	}
	if len(data) > maxMediaBytes {
		return nil, fmt.Errorf("media %s exceeds %d bytes", url, maxMediaBytes)
	}

	return &Media{
		Data:        data,
		ContentType: strings.TrimSpace(resp.Header.Get("Content-Type")),
	}, nil
}
