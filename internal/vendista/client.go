// Package vendista pulls card-payment data from the Vendista acquirer and
// feeds it into the terminal operation ledger.
package vendista

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrExternal marks acquirer call failures. Sync collects these per
// terminal instead of failing the run.
var ErrExternal = errors.New("vendista: external call failed")

// Client talks to the Vendista HTTP API.
type Client struct {
	httpClient *http.Client
	tokenURL   string
	reportURL  string
}

// NewClient constructs a Client. httpClient may be nil.
func NewClient(tokenURL, reportURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: httpClient, tokenURL: tokenURL, reportURL: reportURL}
}

// ReportLine is one terminal's takings in the acquirer report. Amounts are
// integers in 1/100 currency units.
type ReportLine struct {
	TerminalID     int64  `json:"terminal_id"`
	TID            string `json:"tid"`
	IncomingAmount int64  `json:"incoming_amount"`
	IncomingCount  int    `json:"incoming_count"`
	Comission      *int64 `json:"comission"`
}

// Token obtains a bearer token for the owner's credentials.
func (c *Client) Token(ctx context.Context, login, password string) (string, error) {
	q := url.Values{}
	q.Set("login", login)
	q.Set("password", password)

	var payload struct {
		Token string `json:"token"`
	}
	if err := c.getJSON(ctx, c.tokenURL, q, &payload); err != nil {
		return "", err
	}
	if payload.Token == "" {
		return "", fmt.Errorf("%w: empty token", ErrExternal)
	}
	return payload.Token, nil
}

// Report fetches terminal takings for the half-open interval [from, to).
func (c *Client) Report(ctx context.Context, token string, from, to time.Time) ([]ReportLine, error) {
	q := url.Values{}
	q.Set("DateFrom", from.Format("2006-01-02"))
	q.Set("DateTo", to.Format("2006-01-02"))
	q.Set("OrderByColumn", "0")
	q.Set("OrderDesc", "false")
	q.Set("token", token)

	var payload struct {
		Items []ReportLine `json:"items"`
	}
	if err := c.getJSON(ctx, c.reportURL, q, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExternal, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExternal, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrExternal, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrExternal, err)
	}
	return nil
}
