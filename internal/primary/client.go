// Package primary is the client for the property-management backend
package primary

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"

	"github.com/septivank/meter-reconciler/internal/reading"
	"github.com/septivank/meter-reconciler/internal/source"
)

const sourceName = "primary"

const (
	loginPath    = "/auth/login"
	countersPath = "/counters"
)

// Client holds a cookie-based session with the backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ source.Primary = (*Client)(nil)

// NewClient creates a client rooted at baseURL with its own cookie jar
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create cookie jar: %w", sourceName, err)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

// Authenticate submits the login form. Rejected credentials yield false
// with a nil error; transport failures yield an error
func (c *Client) Authenticate(ctx context.Context, login, password string) (bool, error) {
	form := url.Values{}
	form.Set("login", login)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("%s: failed to build login request: %w", sourceName, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%s: login request failed: %w", sourceName, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, &source.HTTPError{Source: sourceName, StatusCode: resp.StatusCode, Endpoint: loginPath}
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return false, fmt.Errorf("%s: failed to parse login response: %w", sourceName, err)
	}

	if hasLoginForm(doc) || len(c.httpClient.Jar.Cookies(resp.Request.URL)) == 0 {
		c.logger.Debug("login rejected by backend")
		return false, nil
	}

	c.logger.Debug("authenticated with backend")
	return true, nil
}

// ListReadings fetches and parses the counters page
func (c *Client) ListReadings(ctx context.Context) ([]reading.MeterReading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+countersPath, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build counters request: %w", sourceName, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: counters request failed: %w", sourceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &source.HTTPError{Source: sourceName, StatusCode: resp.StatusCode, Endpoint: countersPath}
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse counters page: %w", sourceName, err)
	}
	if hasLoginForm(doc) {
		return nil, fmt.Errorf("%s: %w: session expired", sourceName, source.ErrAuthenticationFailed)
	}

	readings := readingsFromDocument(doc)

	c.logger.Debug("fetched backend readings", zap.Int("count", len(readings)))
	return readings, nil
}
