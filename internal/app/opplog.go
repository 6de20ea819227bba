package app

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/arbworker/livearb/internal/domain"
)

// appendDeadline bounds each KV append per the external-request deadline
// rules (KV write: 3s).
const appendDeadline = 3 * time.Second

// asyncOpportunityLog decouples the Evaluator's synchronous listener fan-out
// from the external KV: emitted opportunities go onto a bounded channel and
// a single writer goroutine drains it, so the evaluation path never awaits
// I/O. When the channel is full the oldest queued entry is dropped and
// counted.
type asyncOpportunityLog struct {
	kv      domain.OpportunityLogKV
	queue   chan domain.Opportunity
	dropped atomic.Int64
	log     *slog.Logger
}

func newAsyncOpportunityLog(kv domain.OpportunityLogKV, capacity int, log *slog.Logger) *asyncOpportunityLog {
	return &asyncOpportunityLog{
		kv:    kv,
		queue: make(chan domain.Opportunity, capacity),
		log:   log.With(slog.String("component", "opportunity_log")),
	}
}

// OnOpportunity implements domain.OpportunityListener. It never blocks: a
// full queue sheds its oldest entry to make room for the newest.
func (l *asyncOpportunityLog) OnOpportunity(o domain.Opportunity) {
	for {
		select {
		case l.queue <- o:
			return
		default:
		}
		select {
		case <-l.queue:
			l.dropped.Add(1)
		default:
		}
	}
}

// run drains the queue until ctx is cancelled.
func (l *asyncOpportunityLog) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-l.queue:
			writeCtx, cancel := context.WithTimeout(ctx, appendDeadline)
			if err := l.kv.AppendOpportunity(writeCtx, o); err != nil {
				l.log.Error("opportunity log append failed", slog.String("err", err.Error()), slog.String("id", o.ID))
			}
			cancel()
		}
	}
}

// DroppedCount returns how many opportunities were shed to queue overflow
// since start.
func (l *asyncOpportunityLog) DroppedCount() int64 {
	return l.dropped.Load()
}

var _ domain.OpportunityListener = (*asyncOpportunityLog)(nil)
