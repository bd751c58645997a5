package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rollcall/attendance-api/pkg/config"
)

// SMSGateway posts messages to an HTTP SMS provider using form encoding and
// basic auth.
type SMSGateway struct {
	cfg    config.SMSConfig
	client *http.Client
	logger *zap.Logger
}

// NewSMSGateway builds a gateway for the configured provider. A nil client
// falls back to one using cfg.Timeout.
func NewSMSGateway(cfg config.SMSConfig, client *http.Client, logger *zap.Logger) *SMSGateway {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMSGateway{cfg: cfg, client: client, logger: logger}
}

type smsAck struct {
	SID     string `json:"sid"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Send delivers message to phone. 401 and 403 responses mean the account may
// not send and are reported as PermissionDenied.
func (g *SMSGateway) Send(ctx context.Context, phone, message string) Result {
	if g.cfg.APIURL == "" || g.cfg.SenderNumber == "" {
		return Result{Outcome: OutcomePermissionDenied, Reason: "sms sender is not configured"}
	}

	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", g.cfg.SenderNumber)
	form.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return failed("build sms request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if g.cfg.AccountSID != "" {
		req.SetBasicAuth(g.cfg.AccountSID, g.cfg.AuthToken)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("sms request failed", zap.String("phone", phone), zap.Error(err))
		return failed("sms request: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var ack smsAck
	_ = json.Unmarshal(body, &ack)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		id := ack.SID
		if id == "" {
			id = ack.ID
		}
		return Result{Outcome: OutcomeSent, AckID: id}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{Outcome: OutcomePermissionDenied, Reason: providerReason(resp.StatusCode, ack.Message)}
	default:
		g.logger.Warn("sms provider rejected message", zap.String("phone", phone), zap.Int("status", resp.StatusCode))
		return Result{Outcome: OutcomeFailed, Reason: providerReason(resp.StatusCode, ack.Message)}
	}
}

func providerReason(status int, message string) string {
	if message == "" {
		return fmt.Sprintf("sms provider responded %d", status)
	}
	return fmt.Sprintf("sms provider responded %d: %s", status, message)
}
