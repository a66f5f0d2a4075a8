// Package twilio is a minimal REST client for the parts of the Twilio
// API this service calls: message send/list and the serverless
// sub-API used to host media files. No SDK dependency; requests are
// form-encoded over stdlib net/http with Basic auth.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAPIBase        = "https://api.twilio.com"
	defaultServerlessBase = "https://serverless.twilio.com"
	defaultUploadBase     = "https://serverless-upload.twilio.com"

	// dateSentLayout is the RFC 2822 style format Twilio uses for
	// message timestamps, e.g. "Tue, 10 Aug 2021 19:55:01 +0000".
	dateSentLayout = time.RFC1123Z
)

// Client talks to the Twilio REST API with account credentials.
// The base URLs are exported so tests can point the client at a fake.
type Client struct {
	APIBase        string
	ServerlessBase string
	UploadBase     string

	accountSID string
	authToken  string
	httpClient *http.Client
}

func NewClient(accountSID, authToken string) *Client {
	return &Client{
		APIBase:        defaultAPIBase,
		ServerlessBase: defaultServerlessBase,
		UploadBase:     defaultUploadBase,
		accountSID:     accountSID,
		authToken:      authToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Message is the subset of the vendor message resource this service
// reads back.
type Message struct {
	SID          string `json:"sid"`
	Body         string `json:"body"`
	To           string `json:"to"`
	From         string `json:"from"`
	Status       string `json:"status"`
	DateSent     string `json:"date_sent"`
	ErrorMessage string `json:"error_message"`
}

// SentAt parses the vendor timestamp on the record. The zero time is
// returned when the vendor has not stamped the message yet.
func (m Message) SentAt() time.Time {
	ts, err := time.Parse(dateSentLayout, m.DateSent)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// SendParams describes a single outbound message. Body may be empty
// when MediaURL is set; the field is then omitted from the request.
type SendParams struct {
	From     string
	To       string
	Body     string
	MediaURL string
}

// SendMessage creates a message resource. A vendor-side delivery error
// is reported on the returned message, not as a Go error.
func (c *Client) SendMessage(ctx context.Context, p SendParams) (*Message, error) {
	form := url.Values{}
	form.Set("From", p.From)
	form.Set("To", p.To)
	if p.Body != "" {
		form.Set("Body", p.Body)
	}
	if p.MediaURL != "" {
		form.Set("MediaUrl", p.MediaURL)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.APIBase, c.accountSID)

	var msg Message
	if err := c.postForm(ctx, endpoint, form, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListParams translates history filters to the vendor's native
// parameter names. PageSize is fixed large by the caller to minimize
// pagination round-trips.
type ListParams struct {
	From       string
	To         string
	SentAfter  *time.Time
	SentBefore *time.Time
	PageSize   int
	Limit      int
}

type messagePage struct {
	Messages    []Message `json:"messages"`
	NextPageURI string    `json:"next_page_uri"`
}

// ListMessages returns up to Limit messages in vendor order
// (newest-first), following pagination as needed.
func (c *Client) ListMessages(ctx context.Context, p ListParams) ([]Message, error) {
	query := url.Values{}
	if p.From != "" {
		query.Set("From", p.From)
	}
	if p.To != "" {
		query.Set("To", p.To)
	}
	if p.SentAfter != nil {
		query.Set("DateSent>", p.SentAfter.UTC().Format("2006-01-02T15:04:05Z"))
	}
	if p.SentBefore != nil {
		query.Set("DateSent<", p.SentBefore.UTC().Format("2006-01-02T15:04:05Z"))
	}
	if p.PageSize > 0 {
		query.Set("PageSize", strconv.Itoa(p.PageSize))
	}

	next := fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json?%s", c.accountSID, query.Encode())

	var out []Message
	for next != "" {
		var page messagePage
		if err := c.getJSON(ctx, c.APIBase+next, &page); err != nil {
			return nil, err
		}

		out = append(out, page.Messages...)
		if p.Limit > 0 && len(out) >= p.Limit {
			return out[:p.Limit], nil
		}
		next = page.NextPageURI
	}

	return out, nil
}

// apiError is the vendor's request-level error envelope, returned with
// non-2xx statuses.
type apiError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	return c.do(req, out)
}

func (c *Client) delete(ctx context.Context, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}

	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("twilio returned %d (code %d): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("twilio returned %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	return nil
}
