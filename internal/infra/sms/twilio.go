// Package sms delivers text messages through Twilio and Africa's Talking.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rentara/internal/infra/config"
)

// Twilio sends SMS through the Twilio Messages API.
type Twilio struct {
	cfg     config.TwilioConfig
	baseURL string
	http    *http.Client
}

func NewTwilio(cfg config.TwilioConfig) *Twilio {
	return &Twilio{
		cfg:     cfg,
		baseURL: "https://api.twilio.com",
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Twilio) Name() string { return "twilio" }

func (t *Twilio) Send(ctx context.Context, phone, message string) error {
	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", t.cfg.FromNumber)
	form.Set("Body", message)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("error building twilio request: %w", err)
	}
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		var apiErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(res.Body)
		_ = json.Unmarshal(raw, &apiErr)
		return fmt.Errorf("twilio rejected message (http %d, code %d): %s", res.StatusCode, apiErr.Code, apiErr.Message)
	}
	return nil
}
