package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rentara/internal/infra/config"
)

// AfricasTalking sends SMS through the Africa's Talking messaging API.
type AfricasTalking struct {
	cfg     config.AfricasTalkingConfig
	baseURL string
	http    *http.Client
}

func NewAfricasTalking(cfg config.AfricasTalkingConfig) *AfricasTalking {
	baseURL := "https://api.africastalking.com"
	if cfg.Username == "sandbox" {
		baseURL = "https://api.sandbox.africastalking.com"
	}
	return &AfricasTalking{
		cfg:     cfg,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *AfricasTalking) Name() string { return "africastalking" }

type atResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			Number     string `json:"number"`
			Status     string `json:"status"`
			StatusCode int    `json:"statusCode"`
			MessageID  string `json:"messageId"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

func (a *AfricasTalking) Send(ctx context.Context, phone, message string) error {
	form := url.Values{}
	form.Set("username", a.cfg.Username)
	form.Set("to", phone)
	form.Set("message", message)
	if a.cfg.ShortCode != "" {
		form.Set("from", a.cfg.ShortCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/version1/messaging", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("error building africastalking request: %w", err)
	}
	req.Header.Set("apiKey", a.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("africastalking request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return fmt.Errorf("africastalking rejected message (http %d)", res.StatusCode)
	}
	var body atResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return fmt.Errorf("error decoding africastalking response: %w", err)
	}
	if len(body.SMSMessageData.Recipients) == 0 {
		return fmt.Errorf("africastalking accepted no recipients: %s", body.SMSMessageData.Message)
	}
	// 100 Processed, 101 Sent, 102 Queued.
	r := body.SMSMessageData.Recipients[0]
	if r.StatusCode < 100 || r.StatusCode > 102 {
		return fmt.Errorf("africastalking delivery to %s failed: %s (%d)", r.Number, r.Status, r.StatusCode)
	}
	return nil
}
