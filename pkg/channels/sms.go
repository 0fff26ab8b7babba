package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reachflow/reachflow/pkg/models"
)

const defaultSMSBaseURL = "https://sms.reachflow.io/v1"

// SMSClient sends SMS messages through the provider's REST API using a
// form-encoded POST authenticated with the account's basic credentials.
type SMSClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSMSClient creates an SMS channel adapter. baseURL may be empty to use
// the provider default.
func NewSMSClient(baseURL string) *SMSClient {
	if baseURL == "" {
		baseURL = defaultSMSBaseURL
	}

	return &SMSClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *SMSClient) Channel() models.Channel {
	return models.ChannelSMS
}

func (c *SMSClient) Send(ctx context.Context, msg OutboundMessage, settings models.ProviderSettings) (string, error) {
	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", msg.From)
	form.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/accounts/%s/messages", c.baseURL, settings.AccountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build sms request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(settings.AccountID, settings.AuthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms provider request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read sms provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		SID string `json:"sid"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to decode sms provider response: %w", err)
	}

	if payload.SID == "" {
		return "", fmt.Errorf("sms provider response missing message sid")
	}

	return payload.SID, nil
}
