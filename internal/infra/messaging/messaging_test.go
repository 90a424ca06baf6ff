package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/resilience"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

var testCfg = resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}

type fakeTwilio struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (f *fakeTwilio) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, p)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilio_WhatsAppPrefixesNumbers(t *testing.T) {
	api := &fakeTwilio{}
	tw := newTwilio(api, "+15550001", "+15550002", resilience.NewCircuitBreaker("twilio"), testCfg, zap.NewNop())

	require.NoError(t, tw.SendWhatsApp(context.Background(), "+5511999990000", "hello"))
	require.NoError(t, tw.SendSMS(context.Background(), "+5511999990000", "hi"))

	require.Len(t, api.params, 2)
	assert.Equal(t, "whatsapp:+5511999990000", *api.params[0].To)
	assert.Equal(t, "whatsapp:+15550002", *api.params[0].From)
	assert.Equal(t, "hello", *api.params[0].Body)
	assert.Equal(t, "+5511999990000", *api.params[1].To)
	assert.Equal(t, "+15550001", *api.params[1].From)
}

func TestTwilio_ClientErrorNotRetried(t *testing.T) {
	api := &fakeTwilio{err: &twilioClient.TwilioRestError{Status: 400, Message: "invalid To number"}}
	tw := newTwilio(api, "+1", "+2", resilience.NewCircuitBreaker("twilio"), testCfg, zap.NewNop())

	err := tw.SendSMS(context.Background(), "+55", "x")
	var ve *domain.ErrValidation
	assert.True(t, errors.As(err, &ve), "got %v", err)
	assert.Len(t, api.params, 1)
}

func TestTwilio_ServerErrorRetriedThenWrapped(t *testing.T) {
	api := &fakeTwilio{err: errors.New("connection reset")}
	tw := newTwilio(api, "+1", "+2", resilience.NewCircuitBreaker("twilio"), testCfg, zap.NewNop())

	err := tw.SendSMS(context.Background(), "+55", "x")
	var ext *domain.ErrExternalService
	assert.True(t, errors.As(err, &ext), "got %v", err)
	assert.Len(t, api.params, 3)
}

func TestMessengers_RejectEmptyPhone(t *testing.T) {
	ctx := context.Background()
	var ve *domain.ErrValidation
	assert.True(t, errors.As(NewLog(zap.NewNop()).SendSMS(ctx, "", "x"), &ve))
	assert.True(t, errors.As(newTwilio(&fakeTwilio{}, "", "", resilience.NewCircuitBreaker("t"), testCfg, zap.NewNop()).SendWhatsApp(ctx, "", "x"), &ve))
}

func TestGateway_PostsMessage(t *testing.T) {
	var got GatewayRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	gw := NewGateway(srv.Client(), srv.URL+"/", resilience.NewCircuitBreaker("gateway"), testCfg, zap.NewNop())
	require.NoError(t, gw.SendWhatsApp(context.Background(), "+5511999990000", "pay up"))
	assert.Equal(t, GatewayRequest{Channel: domain.ChannelWhatsApp, To: "+5511999990000", Text: "pay up"}, got)
}

func TestGateway_StatusHandling(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
		check     func(t *testing.T, err error)
	}{
		{"rejected", http.StatusBadRequest, 1, func(t *testing.T, err error) {
			var ve *domain.ErrValidation
			assert.True(t, errors.As(err, &ve), "got %v", err)
		}},
		{"unavailable", http.StatusServiceUnavailable, 3, func(t *testing.T, err error) {
			var ext *domain.ErrExternalService
			assert.True(t, errors.As(err, &ext), "got %v", err)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			gw := NewGateway(srv.Client(), srv.URL, resilience.NewCircuitBreaker("gateway"), testCfg, zap.NewNop())
			tt.check(t, gw.SendSMS(context.Background(), "+55", "x"))
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSOutbox_Enqueues(t *testing.T) {
	q := &fakeSQS{}
	o := NewSQSOutbox(q, "https://sqs.local/queue", resilience.NewCircuitBreaker("sqs"), testCfg, zap.NewNop())
	o.now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }

	require.NoError(t, o.SendSMS(context.Background(), "+5511999990000", "hello"))
	require.Len(t, q.inputs, 1)
	assert.Equal(t, "https://sqs.local/queue", aws.ToString(q.inputs[0].QueueUrl))
	assert.Equal(t, "sms", aws.ToString(q.inputs[0].MessageAttributes["channel"].StringValue))

	var msg OutboxMessage
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(q.inputs[0].MessageBody)), &msg))
	assert.Equal(t, domain.ChannelSMS, msg.Channel)
	assert.Equal(t, "hello", msg.Text)
	assert.True(t, msg.QueuedAt.Equal(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)))
}
