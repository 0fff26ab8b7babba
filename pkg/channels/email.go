package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/reachflow/reachflow/pkg/models"
)

const defaultEmailBaseURL = "https://mail.reachflow.io/v3"

// EmailClient sends email through the provider's JSON API with bearer-token
// authentication.
type EmailClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewEmailClient creates an email channel adapter. baseURL may be empty to
// use the provider default.
func NewEmailClient(baseURL string) *EmailClient {
	if baseURL == "" {
		baseURL = defaultEmailBaseURL
	}

	return &EmailClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *EmailClient) Channel() models.Channel {
	return models.ChannelEmail
}

type emailSendRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (c *EmailClient) Send(ctx context.Context, msg OutboundMessage, settings models.ProviderSettings) (string, error) {
	payload, err := json.Marshal(emailSendRequest{
		To:      msg.To,
		From:    msg.From,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build email request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+settings.AuthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("email provider request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read email provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("email provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response struct {
		ID string `json:"id"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to decode email provider response: %w", err)
	}

	if response.ID == "" {
		return "", fmt.Errorf("email provider response missing message id")
	}

	return response.ID, nil
}
