// Package campaign orchestrates one run: fetch the roster, filter it
// against the ledger, render and send with a bounded retry policy, and
// commit every outcome before moving on. The ledger commit for a key
// always happens strictly after the transport call for that key returns.
package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mailherald/herald/internal/ledger"
	"github.com/mailherald/herald/internal/mailer"
	"github.com/mailherald/herald/internal/metrics"
	"github.com/mailherald/herald/internal/recipient"
	"github.com/mailherald/herald/internal/render"
	"github.com/mailherald/herald/internal/roster"
)

// Config tunes the engine's retry and dispatch behavior.
type Config struct {
	// MaxRetries is the total attempt budget per recipient per run.
	MaxRetries int
	// RetryBackoff is the initial in-run backoff, doubled per attempt.
	RetryBackoff time.Duration
	// Workers bounds concurrent sends.
	Workers int
	// SendDelay paces live dispatches.
	SendDelay time.Duration
}

// Engine drives a campaign run over its collaborators. It exclusively
// owns ledger writes for the run's duration.
type Engine struct {
	source   roster.Source
	renderer *render.Renderer
	mailer   mailer.Mailer
	store    *ledger.Store
	metrics  *metrics.Metrics
	cfg      Config
	logger   *slog.Logger
}

// New creates an engine. Zero config fields get conservative defaults.
func New(source roster.Source, renderer *render.Renderer, m mailer.Mailer, store *ledger.Store, mx *metrics.Metrics, cfg Config, logger *slog.Logger) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if mx == nil {
		mx = metrics.New()
	}

	return &Engine{
		source:   source,
		renderer: renderer,
		mailer:   m,
		store:    store,
		metrics:  mx,
		cfg:      cfg,
		logger:   logger,
	}
}

// task is one deduplicated unit of work. Keys are unique across the
// task list, so no two workers ever touch the same key.
type task struct {
	key  recipient.Key
	rcpt recipient.Recipient
}

// Run executes one campaign pass and returns its summary. A roster or
// ledger failure is fatal; everything scoped to a single recipient is
// recorded and the run continues. Cancellation stops dispatching new
// recipients; in-flight sends complete and commit before Run returns.
func (e *Engine) Run(ctx context.Context, mode Mode) (*Summary, error) {
	runID := uuid.NewString()
	logger := e.logger.With("run_id", runID, "mode", mode)

	summary := &Summary{
		RunID:     runID,
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	}

	recipients, err := e.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching roster: %w", err)
	}
	summary.Total = len(recipients)
	e.metrics.RosterSize.Set(float64(len(recipients)))

	logger.Info("campaign run started", "roster_size", len(recipients))

	tasks, err := e.plan(ctx, recipients, summary)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Workers)

dispatch:
	for i, t := range tasks {
		if ctx.Err() != nil {
			logger.Warn("run aborted, waiting for in-flight sends", "remaining", len(tasks)-i)
			summary.Aborted = true
			break
		}

		t := t
		g.Go(func() error {
			return e.process(ctx, mode, t, summary, &mu, logger)
		})

		if mode == ModeLive && e.cfg.SendDelay > 0 && i < len(tasks)-1 {
			select {
			case <-time.After(e.cfg.SendDelay):
			case <-ctx.Done():
				continue dispatch
			}
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.FinishedAt = time.Now().UTC()
	e.updateLedgerGauges(ctx)

	// The archive write must survive a cancelled run context.
	if err := e.archive(context.WithoutCancel(ctx), summary); err != nil {
		logger.Warn("failed to archive run summary", "error", err)
	}

	logger.Info("campaign run finished",
		"sent", summary.Sent,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"already_sent", summary.AlreadySent,
		"duplicates", summary.Duplicates,
		"would_send", summary.WouldSend,
		"aborted", summary.Aborted,
	)

	return summary, nil
}

// plan walks the roster in order, derives keys, drops in-run duplicates
// and everything the ledger already marks sent. What remains is the
// work list, one entry per key.
func (e *Engine) plan(ctx context.Context, recipients []recipient.Recipient, summary *Summary) ([]task, error) {
	seen := make(map[recipient.Key]struct{}, len(recipients))
	tasks := make([]task, 0, len(recipients))

	for _, rcpt := range recipients {
		key, err := recipient.DeriveKey(rcpt)
		if err != nil {
			e.logger.Warn("skipping recipient with underivable key",
				"name", rcpt.Name,
				"error", err,
			)
			summary.Skipped++
			e.metrics.ObserveOutcome("skipped")
			if fb, ok := fallbackKey(rcpt); ok {
				if _, err := e.store.RecordSkip(ctx, fb, err.Error()); err != nil {
					return nil, fmt.Errorf("recording skip: %w", err)
				}
			}
			continue
		}

		if _, dup := seen[key]; dup {
			summary.Duplicates++
			e.metrics.ObserveOutcome("duplicate")
			continue
		}
		seen[key] = struct{}{}

		rec, err := e.store.Lookup(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("consulting ledger: %w", err)
		}
		if rec != nil && rec.Status == ledger.StatusSent {
			summary.AlreadySent++
			e.metrics.ObserveOutcome("already_sent")
			continue
		}

		tasks = append(tasks, task{key: key, rcpt: rcpt})
	}

	return tasks, nil
}

// process takes one deduplicated recipient to a terminal, committed
// outcome. Only ledger write failures propagate; they abort the run
// since outcomes can no longer be trusted to persist.
func (e *Engine) process(ctx context.Context, mode Mode, t task, summary *Summary, mu *sync.Mutex, logger *slog.Logger) error {
	logger = logger.With("key", t.key.String())

	// Commits must not be lost to a cancelled run context.
	commitCtx := context.WithoutCancel(ctx)

	msg, err := e.renderer.Render(t.rcpt)
	if err != nil {
		logger.Warn("rendering failed", "error", err)
		if _, lerr := e.store.RecordAttempt(commitCtx, t.key, ledger.StatusFailed, err); lerr != nil {
			return fmt.Errorf("recording render failure: %w", lerr)
		}
		e.count(summary, mu, func(s *Summary) { s.Failed++ })
		e.metrics.ObserveOutcome("failed")
		return nil
	}

	if mode == ModeDryRun {
		logger.Info("would send",
			"to", t.rcpt.Email,
			"name", t.rcpt.Name,
			"subject", msg.Subject,
		)
		if _, err := e.store.RecordSkip(commitCtx, t.key, "dry-run preview"); err != nil {
			return fmt.Errorf("recording dry-run preview: %w", err)
		}
		e.count(summary, mu, func(s *Summary) { s.WouldSend++ })
		e.metrics.ObserveOutcome("would_send")
		return nil
	}

	out := &mailer.Message{
		To:      recipient.NormalizeEmail(t.rcpt.Email),
		ToName:  t.rcpt.Name,
		Subject: msg.Subject,
		Body:    msg.Body,
	}

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		e.metrics.SendAttemptsTotal.Inc()

		sendErr := e.mailer.Send(ctx, out)
		if sendErr == nil {
			if _, err := e.store.RecordAttempt(commitCtx, t.key, ledger.StatusSent, nil); err != nil {
				return fmt.Errorf("recording successful send: %w", err)
			}
			logger.Info("message sent", "to", out.To, "attempt", attempt)
			e.count(summary, mu, func(s *Summary) { s.Sent++ })
			e.metrics.ObserveOutcome("sent")
			return nil
		}

		lastErr = sendErr
		temporary := mailer.IsTemporary(sendErr)
		e.metrics.ObserveSendFailure(temporary)

		if _, err := e.store.RecordAttempt(commitCtx, t.key, ledger.StatusFailed, sendErr); err != nil {
			return fmt.Errorf("recording failed send: %w", err)
		}

		logger.Warn("send attempt failed",
			"to", out.To,
			"attempt", attempt,
			"temporary", temporary,
			"error", sendErr,
		)

		if !temporary || attempt == e.cfg.MaxRetries {
			break
		}

		select {
		case <-time.After(e.backoff(attempt)):
		case <-ctx.Done():
			// Abort further retries; the failed outcome is committed.
			e.count(summary, mu, func(s *Summary) { s.Failed++ })
			e.metrics.ObserveOutcome("failed")
			return nil
		}
	}

	logger.Error("delivery failed permanently", "to", out.To, "error", lastErr)
	e.count(summary, mu, func(s *Summary) { s.Failed++ })
	e.metrics.ObserveOutcome("failed")
	return nil
}

func (e *Engine) count(summary *Summary, mu *sync.Mutex, f func(*Summary)) {
	mu.Lock()
	f(summary)
	mu.Unlock()
}

// backoff doubles per attempt from the configured base, capped at one
// minute; in-run retries are meant to ride out short transport blips.
func (e *Engine) backoff(attempt int) time.Duration {
	d := e.cfg.RetryBackoff << (attempt - 1)
	if d > time.Minute {
		return time.Minute
	}
	return d
}

func (e *Engine) archive(ctx context.Context, summary *Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return e.store.AppendRun(ctx, summary.RunID, summary.StartedAt, data)
}

func (e *Engine) updateLedgerGauges(ctx context.Context) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return
	}
	e.metrics.LedgerRecords.WithLabelValues(string(ledger.StatusSent)).Set(float64(stats.Sent))
	e.metrics.LedgerRecords.WithLabelValues(string(ledger.StatusFailed)).Set(float64(stats.Failed))
	e.metrics.LedgerRecords.WithLabelValues(string(ledger.StatusSkipped)).Set(float64(stats.Skipped))
}

// fallbackKey builds a best-effort identity for recipients whose real
// key cannot be derived, so the skip still leaves an audit record. Rows
// with no identity material at all are only logged.
func fallbackKey(rcpt recipient.Recipient) (recipient.Key, bool) {
	email := recipient.NormalizeEmail(rcpt.Email)
	title := strings.ToLower(strings.TrimSpace(rcpt.Title))
	if email == "" && title == "" {
		return "", false
	}
	return recipient.Key("invalid|" + email + "|" + title), true
}
