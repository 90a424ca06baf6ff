package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/resilience"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// SQSAPI is the part of the SQS client the outbox uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// OutboxMessage is the JSON body enqueued for a downstream sender.
type OutboxMessage struct {
	Channel  domain.Channel `json:"channel"`
	To       string         `json:"to"`
	Text     string         `json:"text"`
	QueuedAt time.Time      `json:"queued_at"`
}

// SQSOutbox enqueues messages on an SQS queue. Enqueued counts as handed off.
type SQSOutbox struct {
	client   SQSAPI
	queueURL string
	cb       *gobreaker.CircuitBreaker
	cfg      resilience.Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewSQSOutbox creates an SQS-backed messenger.
func NewSQSOutbox(client SQSAPI, queueURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *SQSOutbox {
	return &SQSOutbox{client: client, queueURL: queueURL, cb: cb, cfg: cfg, logger: logger, now: time.Now}
}

// SendWhatsApp enqueues a WhatsApp message.
func (o *SQSOutbox) SendWhatsApp(ctx context.Context, phone, text string) error {
	return o.enqueue(ctx, domain.ChannelWhatsApp, phone, text)
}

// SendSMS enqueues an SMS message.
func (o *SQSOutbox) SendSMS(ctx context.Context, phone, text string) error {
	return o.enqueue(ctx, domain.ChannelSMS, phone, text)
}

func (o *SQSOutbox) enqueue(ctx context.Context, channel domain.Channel, phone, text string) error {
	if err := requirePhone(phone); err != nil {
		return err
	}
	body, err := json.Marshal(OutboxMessage{Channel: channel, To: phone, Text: text, QueuedAt: o.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal outbox message: %w", err)
	}

	return guard(ctx, "sqs", channel, o.cb, o.cfg, func(ctx context.Context) error {
		out, err := o.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(o.queueURL),
			MessageBody: aws.String(string(body)),
			MessageAttributes: map[string]types.MessageAttributeValue{
				"channel": {DataType: aws.String("String"), StringValue: aws.String(string(channel))},
			},
		})
		if err != nil {
			return err
		}
		o.logger.Info("sqs: message enqueued",
			zap.String("channel", string(channel)),
			zap.String("message_id", aws.ToString(out.MessageId)),
		)
		return nil
	})
}
