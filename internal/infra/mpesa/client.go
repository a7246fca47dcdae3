// Package mpesa talks to the Safaricom Daraja API: OAuth tokens, STK push and STK push query.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rentara/internal/domain/payment"
	"rentara/internal/infra/config"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	tokenCacheKey = "mpesa:access_token"
	// processingCode is the query error code Daraja returns while the payer has not answered yet.
	processingCode = "500.001.1001"
)

var eat = time.FixedZone("EAT", 3*60*60)

// TokenCache keeps the OAuth token between calls.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// APIError is a non-success answer from Daraja.
type APIError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mpesa %s failed (http %d, code %s): %s", e.Op, e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return payment.ErrProvider }

// Client implements payment.Gateway against Daraja.
type Client struct {
	cfg     config.MpesaConfig
	baseURL string
	http    *http.Client
	tokens  TokenCache
	group   singleflight.Group
	now     func() time.Time
	logger  *logrus.Entry
}

func NewClient(cfg config.MpesaConfig, tokens TokenCache, logger *logrus.Entry) *Client {
	return &Client{
		cfg:     cfg,
		baseURL: cfg.BaseURL(),
		http:    &http.Client{Timeout: cfg.Timeout},
		tokens:  tokens,
		now:     time.Now,
		logger:  logger,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResponse struct {
	ResponseCode string `json:"ResponseCode"`
	ResultCode   string `json:"ResultCode"`
	ResultDesc   string `json:"ResultDesc"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// Initiate sends an STK push prompt to the payer's phone.
func (c *Client) Initiate(ctx context.Context, req payment.PushRequest) (*payment.PushResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().In(eat).Format("20060102150405")
	phone := FormatPhone(req.Phone)
	body := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.PassKey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount,
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  req.Reference,
		TransactionDesc:   req.Description,
	}

	var resp stkPushResponse
	status, err := c.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", token, body, &resp)
	if err != nil {
		return nil, fmt.Errorf("stk push: %w", err)
	}
	if status != http.StatusOK || resp.ResponseCode != "0" || resp.CheckoutRequestID == "" {
		return nil, &APIError{Op: "stk push", StatusCode: status, Code: firstNonEmpty(resp.ErrorCode, resp.ResponseCode),
			Message: firstNonEmpty(resp.ErrorMessage, resp.ResponseDescription)}
	}

	c.logger.WithFields(logrus.Fields{
		"checkout_request_id": resp.CheckoutRequestID,
		"reference":           req.Reference,
	}).Info("STK push accepted")

	return &payment.PushResult{TransactionRef: resp.CheckoutRequestID, ProviderMessage: resp.CustomerMessage}, nil
}

// QueryStatus asks Daraja for the outcome of an earlier STK push.
func (c *Client) QueryStatus(ctx context.Context, transactionRef string) (*payment.PushStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().In(eat).Format("20060102150405")
	body := stkQueryRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.PassKey, timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: transactionRef,
	}

	var resp stkQueryResponse
	status, err := c.postJSON(ctx, "/mpesa/stkpushquery/v1/query", token, body, &resp)
	if err != nil {
		return nil, fmt.Errorf("stk query: %w", err)
	}
	if resp.ErrorCode == processingCode {
		return &payment.PushStatus{Pending: true, ResultDesc: resp.ErrorMessage}, nil
	}
	if status != http.StatusOK || resp.ResultCode == "" {
		return nil, &APIError{Op: "stk query", StatusCode: status, Code: resp.ErrorCode, Message: resp.ErrorMessage}
	}
	code, err := strconv.Atoi(resp.ResultCode)
	if err != nil {
		return nil, &APIError{Op: "stk query", StatusCode: status, Code: resp.ResultCode, Message: "non-numeric result code"}
	}
	return &payment.PushStatus{ResultCode: code, ResultDesc: resp.ResultDesc}, nil
}

// accessToken returns a cached token or fetches a new one. Concurrent
// misses share a single OAuth call.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if tok, ok, err := c.tokens.Get(ctx, tokenCacheKey); err != nil {
		c.logger.WithError(err).Warn("Token cache read failed, fetching a new token")
	} else if ok {
		return tok, nil
	}

	v, err, _ := c.group.Do(tokenCacheKey, func() (interface{}, error) {
		return c.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("error building token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", payment.ErrProvider, err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	var tr tokenResponse
	if res.StatusCode != http.StatusOK || json.Unmarshal(raw, &tr) != nil || tr.AccessToken == "" {
		return "", &APIError{Op: "oauth", StatusCode: res.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	ttl := 3600 * time.Second
	if secs, err := strconv.Atoi(tr.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	ttl -= time.Minute
	if ttl > 0 {
		if err := c.tokens.Set(ctx, tokenCacheKey, tr.AccessToken, ttl); err != nil {
			c.logger.WithError(err).Warn("Token cache write failed")
		}
	}
	return tr.AccessToken, nil
}

func (c *Client) postJSON(ctx context.Context, path, token string, in, out any) (int, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("error encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", payment.ErrProvider, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, fmt.Errorf("%w: reading response: %v", payment.ErrProvider, err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return res.StatusCode, &APIError{Op: path, StatusCode: res.StatusCode, Message: "undecodable response: " + strings.TrimSpace(string(raw))}
		}
	}
	return res.StatusCode, nil
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

// FormatPhone converts +2547XXXXXXXX, 07XXXXXXXX and similar forms to 2547XXXXXXXX.
func FormatPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if len(digits) >= 9 {
		return "254" + digits[len(digits)-9:]
	}
	return digits
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
