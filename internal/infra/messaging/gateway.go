package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// GatewayRequest is the body posted to the gateway.
type GatewayRequest struct {
	Channel domain.Channel `json:"channel"`
	To      string         `json:"to"`
	Text    string         `json:"text"`
}

// Gateway posts messages to an HTTP SMS/WhatsApp gateway at
// <baseURL>/v1/messages. Any 2xx counts as handed off.
type Gateway struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewGateway creates a Gateway messenger.
func NewGateway(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Gateway {
	return &Gateway{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

// SendWhatsApp posts a WhatsApp message.
func (g *Gateway) SendWhatsApp(ctx context.Context, phone, text string) error {
	return g.send(ctx, GatewayRequest{Channel: domain.ChannelWhatsApp, To: phone, Text: text})
}

// SendSMS posts an SMS message.
func (g *Gateway) SendSMS(ctx context.Context, phone, text string) error {
	return g.send(ctx, GatewayRequest{Channel: domain.ChannelSMS, To: phone, Text: text})
}

func (g *Gateway) send(ctx context.Context, msg GatewayRequest) error {
	if err := requirePhone(msg.To); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return guard(ctx, "gateway", msg.Channel, g.cb, g.cfg, func(ctx context.Context) error {
		url := fmt.Sprintf("%s/v1/messages", g.baseURL)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			g.logger.Info("gateway: message handed off", zap.String("channel", string(msg.Channel)))
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, raw)
		default:
			g.logger.Warn("gateway: message rejected",
				zap.Int("status", resp.StatusCode),
				zap.String("body", string(raw)),
			)
			return &domain.ErrValidation{Field: "message", Message: fmt.Sprintf("gateway rejected message (status %d)", resp.StatusCode)}
		}
	})
}
