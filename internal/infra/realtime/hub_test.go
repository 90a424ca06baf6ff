package realtime_test

import (
	"sync/atomic"
	"testing"

	"github.com/boddenberg/isp-billing-bfa/internal/infra/realtime"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHub_PublishReachesTableSubscribers(t *testing.T) {
	h := realtime.NewHub(zap.NewNop())
	var clients, expenses atomic.Int32

	h.Subscribe("clients", func() { clients.Add(1) })
	h.Subscribe("clients", func() { clients.Add(1) })
	h.Subscribe("expenses", func() { expenses.Add(1) })

	h.Publish("clients")
	assert.Equal(t, int32(2), clients.Load())
	assert.Equal(t, int32(0), expenses.Load())
	assert.Equal(t, []string{"clients", "expenses"}, h.Tables())
}

func TestHub_Unsubscribe(t *testing.T) {
	h := realtime.NewHub(zap.NewNop())
	var n atomic.Int32

	unsub := h.Subscribe("settings", func() { n.Add(1) })
	h.Publish("settings")
	unsub()
	unsub()
	h.Publish("settings")

	assert.Equal(t, int32(1), n.Load())
	assert.Empty(t, h.Tables())
}

func TestHub_PanickingSubscriberIsIsolated(t *testing.T) {
	h := realtime.NewHub(zap.NewNop())
	var n atomic.Int32

	h.Subscribe("clients", func() { panic("boom") })
	h.Subscribe("clients", func() { n.Add(1) })

	assert.NotPanics(t, func() { h.Publish("clients") })
	assert.Equal(t, int32(1), n.Load())
}
