// Package secondary is the client for the telemetry service
package secondary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/septivank/meter-reconciler/internal/reading"
	"github.com/septivank/meter-reconciler/internal/reconcile"
	"github.com/septivank/meter-reconciler/internal/source"
)

const sourceName = "secondary"

const statusOK = "ok"

// Client talks to the telemetry service JSON API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ source.Secondary = (*Client)(nil)

// NewClient creates a telemetry client rooted at baseURL
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type apiError struct {
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

type envelope struct {
	Status string          `json:"status"`
	Errors []apiError      `json:"errors"`
	Data   json.RawMessage `json:"data"`
}

func (e envelope) errorText() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ae := range e.Errors {
		msgs = append(msgs, ae.Name+": "+ae.Msg)
	}
	if len(msgs) == 0 {
		return "status " + e.Status
	}
	return strings.Join(msgs, "; ")
}

type loginData struct {
	SID string `json:"sid"`
}

type objectsData struct {
	Objects []struct {
		ID     int64  `json:"id"`
		Label  string `json:"label"`
		House  string `json:"house"`
		Number string `json:"number"`
	} `json:"objects"`
}

type metersData struct {
	Sensors []struct {
		SN     string     `json:"sn"`
		Meters []apiMeter `json:"meters"`
	} `json:"sensors"`
}

type apiMeter struct {
	MeterID int64  `json:"meter_id"`
	SN      string `json:"sn"`
	Name    string `json:"meter_name"`
	Unit    string `json:"unit"`
	Type    struct {
		Number int    `json:"number"`
		Name   string `json:"name"`
	} `json:"type"`
	State struct {
		Number int    `json:"number"`
		Name   string `json:"name"`
	} `json:"state"`
	Vals []*float64 `json:"vals"`
}

// Authenticate logs in and returns the session id
func (c *Client) Authenticate(ctx context.Context, login, password string) (string, error) {
	form := url.Values{}
	form.Set("email", login)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%s: failed to build login request: %w", sourceName, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var data loginData
	if err := c.do(req, &data); err != nil {
		return "", err
	}
	if data.SID == "" {
		return "", fmt.Errorf("%s: %w: empty session id", sourceName, source.ErrAuthenticationFailed)
	}

	c.logger.Debug("authenticated with telemetry service")
	return data.SID, nil
}

// ListSites returns the objects visible to the session
func (c *Client) ListSites(ctx context.Context, session string) ([]source.Site, error) {
	req, err := c.get(ctx, "/user/objects", url.Values{"sid": {session}})
	if err != nil {
		return nil, err
	}

	var data objectsData
	if err := c.do(req, &data); err != nil {
		return nil, err
	}

	sites := make([]source.Site, 0, len(data.Objects))
	for _, o := range data.Objects {
		address := strings.TrimSpace(strings.Join([]string{o.House, o.Number}, " "))
		sites = append(sites, source.Site{ID: o.ID, Label: o.Label, Address: address})
	}
	return sites, nil
}

// ListSiteMeters returns the site's meters keyed by normalized serial
func (c *Client) ListSiteMeters(ctx context.Context, session string, siteID int64) (reading.SecondaryIndex, error) {
	req, err := c.get(ctx, "/object/meters", url.Values{
		"sid": {session},
		"id":  {strconv.FormatInt(siteID, 10)},
	})
	if err != nil {
		return nil, err
	}

	var data metersData
	if err := c.do(req, &data); err != nil {
		return nil, err
	}

	var meters []reading.SecondaryMeter
	for _, sensor := range data.Sensors {
		for _, m := range sensor.Meters {
			meter, err := toSecondaryMeter(m)
			if err != nil {
				return nil, fmt.Errorf("%s: site %d: %w", sourceName, siteID, err)
			}
			meters = append(meters, meter)
		}
	}

	index, duplicates := reading.IndexMeters(meters)
	for _, d := range duplicates {
		c.logger.Warn("duplicate meter serial in telemetry, keeping first",
			zap.Int64("site_id", siteID),
			zap.Int64("meter_id", d.MeterID),
			zap.String("serial", d.OriginalSN),
		)
	}

	c.logger.Debug("fetched telemetry meters",
		zap.Int64("site_id", siteID),
		zap.Int("meters", len(meters)),
		zap.Int("indexed", len(index)),
	)
	return index, nil
}

// toSecondaryMeter rejects null channel values; a missing value is never read as zero
func toSecondaryMeter(m apiMeter) (reading.SecondaryMeter, error) {
	values := make([]float64, 0, len(m.Vals))
	for i, v := range m.Vals {
		if v == nil {
			return reading.SecondaryMeter{}, &reconcile.ContractViolationError{
				Serial: m.SN,
				Reason: fmt.Sprintf("meter %d has no value in channel %d", m.MeterID, i+1),
			}
		}
		values = append(values, *v)
	}

	return reading.SecondaryMeter{
		MeterID:    m.MeterID,
		Type:       reading.MeterType{Number: m.Type.Number, Name: m.Type.Name},
		Unit:       m.Unit,
		State:      m.State.Name,
		Values:     values,
		OriginalSN: m.SN,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request for %s: %w", sourceName, path, err)
	}
	return req, nil
}

// do executes req and decodes the envelope's data into out
func (c *Client) do(req *http.Request, out any) error {
	endpoint := req.URL.Path

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request to %s failed: %w", sourceName, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &source.HTTPError{Source: sourceName, StatusCode: resp.StatusCode, Endpoint: endpoint}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s: failed to decode response from %s: %w", sourceName, endpoint, err)
	}

	if env.Status != statusOK {
		if strings.HasSuffix(endpoint, "/login") {
			return fmt.Errorf("%s: %w: %s", sourceName, source.ErrAuthenticationFailed, env.errorText())
		}
		return fmt.Errorf("%s: %s returned %s", sourceName, endpoint, env.errorText())
	}

	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: failed to decode data from %s: %w", sourceName, endpoint, err)
	}
	return nil
}
