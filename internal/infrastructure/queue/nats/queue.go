package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/resilience"
)

const (
	clientName     = "urbanism-zoning"
	defaultStream  = "REGULATION_INDEX"
	defaultDurable = "regulation-indexers"
)

// Queue carries regulation index jobs on a JetStream work-queue stream.
// Jobs are deduplicated by zone and source url inside DuplicateWindow, so
// repeated lookups of the same address enqueue one indexing run.
type Queue struct {
	conn     *nats.Conn
	js       jetstream.JetStream
	subject  string
	opts     Options
	executor *resilience.Executor

	streamMu sync.Mutex
	stream   jetstream.Stream
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor

	Stream          string
	Durable         string
	DuplicateWindow time.Duration
	// AckWait must exceed the longest indexing run or jobs are redelivered mid-flight.
	AckWait    time.Duration
	MaxDeliver int
	RetryDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 60
	}
	if o.Stream == "" {
		o.Stream = defaultStream
	}
	if o.Durable == "" {
		o.Durable = defaultDurable
	}
	if o.DuplicateWindow <= 0 {
		o.DuplicateWindow = 10 * time.Minute
	}
	if o.AckWait <= 0 {
		o.AckWait = 6 * time.Minute
	}
	if o.MaxDeliver <= 0 {
		o.MaxDeliver = 5
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 30 * time.Second
	}
	return o
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	opts := options.withDefaults()
	retryOnFailedConnect := true
	if opts.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *opts.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name(clientName),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init jetstream: %w", err)
	}
	executor := opts.ResilienceExecutor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Queue{
		conn:     conn,
		js:       js,
		subject:  subject,
		opts:     opts,
		executor: executor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// ensureStream creates the stream on first use. The connection may still be
// reconnecting when the process starts, so failures are retried on the next call.
func (q *Queue) ensureStream(ctx context.Context) (jetstream.Stream, error) {
	q.streamMu.Lock()
	defer q.streamMu.Unlock()
	if q.stream != nil {
		return q.stream, nil
	}
	stream, err := q.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       q.opts.Stream,
		Subjects:   []string{q.subject},
		Retention:  jetstream.WorkQueuePolicy,
		Storage:    jetstream.FileStorage,
		Duplicates: q.opts.DuplicateWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", q.opts.Stream, err)
	}
	q.stream = stream
	return stream, nil
}

// JobMessageID identifies a job for JetStream deduplication.
func JobMessageID(job domain.IndexJob) string {
	return job.ZoneCode + "|" + job.SourceURL
}

func (q *Queue) PublishIndexJob(ctx context.Context, job domain.IndexJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal index job: %w", err)
	}

	err = q.executor.Execute(ctx, "nats.publish", func(ctx context.Context) error {
		if _, err := q.ensureStream(ctx); err != nil {
			return err
		}
		ack, err := q.js.Publish(ctx, q.subject, payload, jetstream.WithMsgID(JobMessageID(job)))
		if err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		if ack.Duplicate {
			slog.Debug("index_job_duplicate", "zone_code", job.ZoneCode, "source_url", job.SourceURL)
		}
		return nil
	}, classifyNATSError)
	return wrapTemporaryIfNeeded(err)
}

// SubscribeIndexJobs consumes jobs until ctx is cancelled. Temporary failures
// are redelivered after RetryDelay; other failures and undecodable messages
// are terminated so they do not loop.
func (q *Queue) SubscribeIndexJobs(ctx context.Context, handler func(context.Context, domain.IndexJob) error) error {
	stream, err := q.ensureStream(ctx)
	if err != nil {
		return err
	}
	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       q.opts.Durable,
		FilterSubject: q.subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       q.opts.AckWait,
		MaxDeliver:    q.opts.MaxDeliver,
	})
	if err != nil {
		return fmt.Errorf("nats consumer %s: %w", q.opts.Durable, err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		q.handleMessage(ctx, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("nats consume: %w", err)
	}

	<-ctx.Done()
	consumeCtx.Drain()
	select {
	case <-consumeCtx.Closed():
	case <-time.After(5 * time.Second):
		consumeCtx.Stop()
	}
	return nil
}

func (q *Queue) handleMessage(ctx context.Context, msg jetstream.Msg, handler func(context.Context, domain.IndexJob) error) {
	job, err := DecodeIndexJob(msg.Data())
	if err != nil {
		slog.Error("index_job_decode_failed", "subject", msg.Subject(), "error", err)
		_ = msg.Term()
		return
	}

	err = handler(ctx, job)
	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Warn("index_job_ack_failed", "zone_code", job.ZoneCode, "error", ackErr)
		}
	case domain.IsKind(err, domain.ErrTemporary) || errors.Is(err, context.Canceled):
		slog.Warn("index_job_retry", "zone_code", job.ZoneCode, "source_url", job.SourceURL, "error", err)
		_ = msg.NakWithDelay(q.opts.RetryDelay)
	default:
		slog.Error("index_job_failed", "zone_code", job.ZoneCode, "source_url", job.SourceURL, "error", err)
		_ = msg.Term()
	}
}

// DecodeIndexJob parses a queued job and rejects messages without a zone or url.
func DecodeIndexJob(data []byte) (domain.IndexJob, error) {
	var job domain.IndexJob
	if err := json.Unmarshal(data, &job); err != nil {
		return domain.IndexJob{}, domain.WrapError(domain.ErrInvalidInput, "decode index job", err)
	}
	if strings.TrimSpace(job.ZoneCode) == "" || strings.TrimSpace(job.SourceURL) == "" {
		return domain.IndexJob{}, domain.WrapError(domain.ErrInvalidInput, "decode index job", errors.New("zone_code and source_url are required"))
	}
	return job, nil
}
