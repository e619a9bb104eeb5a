package inventory

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
	qstashx "github.com/tanpawarit/Chative-Ordering-Agent/pkg/qstash"
)

// Reindexer is what schedulers run.
type Reindexer interface {
	Reindex(ctx context.Context, tenantID string) (contractx.IndexResult, error)
}

// AsyncScheduler runs indexing in a goroutine detached from the caller's
// cancellation. Results are logged and, when configured, sent on a channel.
type AsyncScheduler struct {
	indexer Reindexer
	timeout time.Duration
	results chan<- contractx.IndexResult
}

type AsyncOption func(*AsyncScheduler)

func WithTimeout(d time.Duration) AsyncOption {
	return func(s *AsyncScheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithResults delivers each finished run on ch. Sends never block; a full
// channel drops the result.
func WithResults(ch chan<- contractx.IndexResult) AsyncOption {
	return func(s *AsyncScheduler) {
		s.results = ch
	}
}

func NewAsyncScheduler(indexer Reindexer, opts ...AsyncOption) *AsyncScheduler {
	s := &AsyncScheduler{indexer: indexer, timeout: 5 * time.Minute}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *AsyncScheduler) Schedule(ctx context.Context, tenantID string) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		runCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		res, err := s.indexer.Reindex(runCtx, tenantID)
		if err != nil {
			log.Error().Err(err).Str("tenant_id", tenantID).Msg("inventory indexing failed")
		}
		if s.results != nil {
			select {
			case s.results <- res:
			default:
			}
		}
	}()
}

// Publisher is the part of the QStash client the scheduler needs.
type Publisher interface {
	PublishJSON(ctx context.Context, destination string, payload any) (qstashx.PublishResponse, error)
}

// IndexRequest is the QStash message body for an indexing job.
type IndexRequest struct {
	TenantID string `json:"tenant_id"`
}

// QStashScheduler hands indexing to QStash, which calls back into the
// service's internal index endpoint. Publishing happens in the background.
type QStashScheduler struct {
	publisher   Publisher
	callbackURL string
	timeout     time.Duration
}

type QStashOption func(*QStashScheduler)

func WithPublishTimeout(d time.Duration) QStashOption {
	return func(s *QStashScheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewQStashScheduler(p Publisher, callbackURL string, opts ...QStashOption) *QStashScheduler {
	s := &QStashScheduler{publisher: p, callbackURL: callbackURL, timeout: 30 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *QStashScheduler) Schedule(ctx context.Context, tenantID string) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		pubCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		resp, err := s.publisher.PublishJSON(pubCtx, s.callbackURL, IndexRequest{TenantID: tenantID})
		if err != nil {
			log.Error().Err(err).Str("tenant_id", tenantID).Msg("publish indexing job failed")
			return
		}
		log.Info().Str("tenant_id", tenantID).Str("message_id", resp.MessageID).Msg("indexing job published")
	}()
}

// NopScheduler drops every request.
type NopScheduler struct{}

func (NopScheduler) Schedule(context.Context, string) {}
