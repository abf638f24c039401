package proxy

import (
	"time"

	"github.com/papercomputeco/deepgate/pkg/llm"
	"github.com/papercomputeco/deepgate/pkg/relay"
	"github.com/papercomputeco/deepgate/pkg/storage"
	"github.com/papercomputeco/deepgate/proxy/worker"
)

// recordChat enqueues a usage record for a completed /chat call.
func (p *Proxy) recordChat(reqID string, resp *llm.ChatResponse, duration time.Duration) {
	rec := storage.Record{
		RequestID:  reqID,
		Model:      resp.Model,
		Outcome:    relay.Completed.String(),
		DurationMs: duration.Milliseconds(),
	}
	applyUsage(&rec, &resp.Usage)
	if resp.FinishReason != nil {
		rec.FinishReason = *resp.FinishReason
	}

	p.enqueue(rec)
}

// recordStream enqueues a usage record for a stream that reached upstream.
// Token counts are those upstream reported on the stream, else zero.
func (p *Proxy) recordStream(reqID string, sum relay.Summary) {
	rec := storage.Record{
		RequestID:    reqID,
		Model:        sum.Model,
		Streaming:    true,
		FinishReason: sum.FinishReason,
		Outcome:      sum.Outcome.String(),
		DurationMs:   sum.Duration.Milliseconds(),
	}
	applyUsage(&rec, sum.Usage)

	p.enqueue(rec)
}

func applyUsage(rec *storage.Record, u *llm.Usage) {
	if u == nil {
		return
	}
	rec.PromptTokens = u.PromptTokens
	rec.CompletionTokens = u.CompletionTokens
	rec.TotalTokens = u.TotalTokens
	rec.CachedTokens = u.PromptTokensDetails.CachedTokens
}

// enqueue hands rec to the worker pool without blocking.
func (p *Proxy) enqueue(rec storage.Record) {
	if p.workerPool == nil {
		return
	}
	p.workerPool.Enqueue(worker.Job{Record: rec})
}
