// Package dispatch wraps the outbound SMS gateway. One call per send; the
// gateway replies with a bare status code in the response body, "0" meaning
// the message was accepted.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Reason classifies a gateway rejection.
type Reason string

const (
	ReasonBadPassword         Reason = "bad_password"
	ReasonUnknownAccount      Reason = "unknown_account"
	ReasonInsufficientBalance Reason = "insufficient_balance"
	ReasonIPRestricted        Reason = "ip_restricted"
	ReasonContentRejected     Reason = "content_rejected"
	ReasonInvalidNumber       Reason = "invalid_number"
	ReasonUnknown             Reason = "unknown"
)

var reasonByCode = map[string]Reason{
	"30": ReasonBadPassword,
	"40": ReasonUnknownAccount,
	"41": ReasonInsufficientBalance,
	"43": ReasonIPRestricted,
	"50": ReasonContentRejected,
	"51": ReasonInvalidNumber,
}

// SendError is a gateway rejection with its classified reason.
type SendError struct {
	Code   string
	Reason Reason
}

func (e *SendError) Error() string {
	return fmt.Sprintf("gateway rejected message: code=%s reason=%s", e.Code, e.Reason)
}

type Client interface {
	// Send delivers one message to one number. A nil return means the
	// gateway accepted the message.
	Send(ctx context.Context, targetNumber, content string) error
}

type Options struct {
	URL           string
	Username      string
	Password      string
	GoodsID       string
	MessagePrefix string
	Timeout       time.Duration
}

type gatewayClient struct {
	httpClient *http.Client
	opts       Options
}

const defaultTimeout = 10 * time.Second

// NewClient builds a gateway client with a bounded request timeout so a hung
// gateway cannot stall the scheduling loop.
func NewClient(opts Options) Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &gatewayClient{
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
	}
}

func (c *gatewayClient) Send(ctx context.Context, targetNumber, content string) error {
	params := url.Values{}
	params.Set("u", c.opts.Username)
	params.Set("p", c.opts.Password)
	params.Set("m", targetNumber)
	params.Set("c", c.formatContent(content))
	if c.opts.GoodsID != "" {
		params.Set("g", c.opts.GoodsID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}

	code := strings.TrimSpace(string(body))
	if code == "0" {
		return nil
	}

	reason, ok := reasonByCode[code]
	if !ok {
		reason = ReasonUnknown
	}
	return &SendError{Code: code, Reason: reason}
}

func (c *gatewayClient) formatContent(content string) string {
	return c.opts.MessagePrefix + "\n\n" + strings.TrimSpace(content)
}
