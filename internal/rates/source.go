package rates

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kursbot/internal/currency"
)

// Source returns the raw document for a currency.
type Source interface {
	Retrieve(ctx context.Context, sym currency.Symbol) ([]byte, error)
}

type HTTPSource struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// maxDocumentSize caps a single page read.
const maxDocumentSize = 8 << 20

func NewHTTPSource(baseURL, userAgent string, timeout time.Duration) *HTTPSource {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPSource{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// URL returns the page address for sym.
func (s *HTTPSource) URL(sym currency.Symbol) string {
	return s.baseURL + sym.Slug()
}

func (s *HTTPSource) Retrieve(ctx context.Context, sym currency.Symbol) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(sym), nil)
	if err != nil {
		return nil, err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
}
