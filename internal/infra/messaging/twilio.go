package messaging

import (
	"context"
	"errors"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// messageCreator is the slice of the Twilio REST API we use.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Twilio sends SMS and WhatsApp messages through the Twilio Messages API.
type Twilio struct {
	api          messageCreator
	smsFrom      string
	whatsAppFrom string
	cb           *gobreaker.CircuitBreaker
	cfg          resilience.Config
	logger       *zap.Logger
}

// NewTwilio builds a Twilio messenger from account credentials.
func NewTwilio(accountSID, authToken, smsFrom, whatsAppFrom string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Twilio {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newTwilio(client.Api, smsFrom, whatsAppFrom, cb, cfg, logger)
}

func newTwilio(api messageCreator, smsFrom, whatsAppFrom string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Twilio {
	return &Twilio{api: api, smsFrom: smsFrom, whatsAppFrom: whatsAppFrom, cb: cb, cfg: cfg, logger: logger}
}

// SendWhatsApp sends text to phone over WhatsApp.
func (t *Twilio) SendWhatsApp(ctx context.Context, phone, text string) error {
	if err := requirePhone(phone); err != nil {
		return err
	}
	return t.send(ctx, domain.ChannelWhatsApp, "whatsapp:"+phone, "whatsapp:"+t.whatsAppFrom, text)
}

// SendSMS sends text to phone over SMS.
func (t *Twilio) SendSMS(ctx context.Context, phone, text string) error {
	if err := requirePhone(phone); err != nil {
		return err
	}
	return t.send(ctx, domain.ChannelSMS, phone, t.smsFrom, text)
}

func (t *Twilio) send(ctx context.Context, channel domain.Channel, to, from, text string) error {
	return guard(ctx, "twilio", channel, t.cb, t.cfg, func(context.Context) error {
		params := &twilioApi.CreateMessageParams{}
		params.SetTo(to)
		params.SetFrom(from)
		params.SetBody(text)

		resp, err := t.api.CreateMessage(params)
		if err != nil {
			if isTwilioClientError(err) {
				return &domain.ErrValidation{Field: "phone", Message: err.Error()}
			}
			return err
		}
		sid := ""
		if resp != nil && resp.Sid != nil {
			sid = *resp.Sid
		}
		t.logger.Info("twilio: message handed off",
			zap.String("channel", string(channel)),
			zap.String("sid", sid),
		)
		return nil
	})
}

// isTwilioClientError reports a 4xx from Twilio (bad number, unverified
// sender). Those fail the same way on every attempt.
func isTwilioClientError(err error) bool {
	var restErr *twilioClient.TwilioRestError
	if !errors.As(err, &restErr) {
		return false
	}
	return restErr.Status >= 400 && restErr.Status < 500 && restErr.Status != 429
}
