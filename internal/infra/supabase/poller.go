package supabase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/port"

	"go.uber.org/zap"
)

// Publisher receives "table changed" signals. *realtime.Hub implements it.
type Publisher interface {
	Publish(table string)
	Tables() []string
}

// changeColumn is the column whose maximum moves on every write to a table.
var changeColumn = map[string]string{
	port.TableClients:  "updated_at",
	port.TableSettings: "updated_at",
	port.TableExpenses: "updated_at",
	port.TableMessages: "created_at",
}

// Poller emulates a realtime feed over PostgREST: for every subscribed table
// it compares a fingerprint (row count plus newest change timestamp) at a
// fixed interval and publishes when it moves. Deletes change the count,
// inserts and updates change the timestamp.
type Poller struct {
	client   *Client
	pub      Publisher
	interval time.Duration
	logger   *zap.Logger
	last     map[string]string
}

// NewPoller creates a poller. Call Run to start it.
func NewPoller(client *Client, pub Publisher, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		client:   client,
		pub:      pub,
		interval: interval,
		logger:   logger,
		last:     map[string]string{},
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("supabase change poller started", zap.Duration("interval", p.interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll checks every subscribed table once. The first observation of a table
// only records its fingerprint.
func (p *Poller) Poll(ctx context.Context) {
	for _, table := range p.pub.Tables() {
		fp, err := p.fingerprint(ctx, table)
		if err != nil {
			p.logger.Warn("supabase: change poll failed", zap.String("table", table), zap.Error(err))
			continue
		}
		prev, seen := p.last[table]
		p.last[table] = fp
		if seen && prev != fp {
			p.logger.Debug("supabase: table changed", zap.String("table", table))
			p.pub.Publish(table)
		}
	}
}

func (p *Poller) fingerprint(ctx context.Context, table string) (string, error) {
	col, ok := changeColumn[table]
	if !ok {
		col = "created_at"
	}
	q := from(table).selectCols(col).order(col + ".desc.nullslast").limit(1)

	var fp string
	err := p.client.call(ctx, "Fingerprint", func(ctx context.Context) error {
		resp, err := p.client.send(ctx, http.MethodGet, q.String(), nil, preferCount)
		if err != nil {
			return err
		}
		total, _ := totalFromContentRange(resp.header.Get("Content-Range"))
		rows, err := decodeRows[map[string]any](resp.body)
		if err != nil {
			return err
		}
		var newest any
		if len(rows) > 0 {
			newest = rows[0][col]
		}
		fp = fmt.Sprintf("%d|%v", total, newest)
		return nil
	})
	return fp, err
}
