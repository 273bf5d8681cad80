package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"intake/internal/config"
	"intake/internal/intake"
	"intake/internal/logging"
	"intake/internal/metrics"
	"intake/internal/notifications"
	"intake/internal/publish"
	"intake/internal/services/chat"
	"intake/internal/services/sheets"
	"intake/internal/store"
	"intake/internal/votes"
)

// Manager coordinates the background loops.
type Manager struct {
	cfg       *config.Config
	store     *store.Store
	source    sheets.Source
	chat      chat.Client
	ingestor  *intake.Ingestor
	processor *publish.Processor
	evaluator *votes.Evaluator
	notifier  notifications.Service
	metrics   *metrics.Metrics
	logger    *slog.Logger

	sourceInterval   time.Duration
	reactionInterval time.Duration
	errorRetry       time.Duration

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastPass time.Time
}

// NewManager wires the manager from its collaborators.
func NewManager(cfg *config.Config, st *store.Store, source sheets.Source, client chat.Client,
	ingestor *intake.Ingestor, processor *publish.Processor, evaluator *votes.Evaluator,
	notifier notifications.Service, m *metrics.Metrics, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:              cfg,
		store:            st,
		source:           source,
		chat:             client,
		ingestor:         ingestor,
		processor:        processor,
		evaluator:        evaluator,
		notifier:         notifier,
		metrics:          m,
		logger:           logging.WithComponent(logger, "workflow"),
		sourceInterval:   secondsOrDefault(cfg.Workflow.SourcePollInterval, 60),
		reactionInterval: secondsOrDefault(cfg.Workflow.ReactionPollInterval, 30),
		errorRetry:       secondsOrDefault(cfg.Workflow.ErrorRetryInterval, 15),
	}
}

func secondsOrDefault(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(2)
	m.mu.Unlock()

	go m.runSourceLoop(runCtx)
	go m.runReactionLoop(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the background loops are active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// LastError returns the most recent loop failure, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// LastPass returns when a source pass last completed.
func (m *Manager) LastPass() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastPass
}

func (m *Manager) runSourceLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		interval := m.sourceInterval
		if err := m.SourcePass(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			m.logger.Error("source pass failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "source_pass_failed"),
				logging.String(logging.FieldErrorHint, "check source url/path and chat credentials"))
			if notifyErr := m.notifier.NotifyError(ctx, err, "source pass"); notifyErr != nil {
				m.logger.Warn("error notification failed", logging.Error(notifyErr))
			}
			interval = m.errorRetry
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (m *Manager) runReactionLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		interval := m.reactionInterval
		if err := m.ReactionPass(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			m.logger.Error("reaction pass failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "reaction_pass_failed"),
				logging.String(logging.FieldErrorHint, "check chat credentials and channel access"))
			interval = m.errorRetry
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// SourcePass reads the sheet, ingests new rows, and drains the queue once.
// Also used by the one-shot CLI commands.
func (m *Manager) SourcePass(ctx context.Context) error {
	snapshot, err := m.source.ReadAllRows(ctx)
	if err != nil {
		return err
	}
	m.metrics.RowsSeen.Add(float64(len(snapshot.Rows)))

	summary, err := m.ingestor.IngestRows(ctx, snapshot)
	if err != nil {
		return err
	}
	m.metrics.JobsQueued.Add(float64(summary.Queued))
	if summary.Queued > 0 {
		m.logger.Info("ingestion queued jobs",
			logging.Int("rows", summary.Rows),
			logging.Int("queued", summary.Queued))
	}

	drain, err := m.processor.Drain(ctx)
	if err != nil {
		return err
	}
	if drain.Failed > 0 {
		m.logger.Warn("queue halted by failing job",
			logging.String(logging.FieldJobID, drain.FailedJobID),
			logging.String("error", drain.FailedError))
	}

	m.mu.Lock()
	m.lastPass = time.Now().UTC()
	m.mu.Unlock()
	return nil
}

// ReactionPass re-tallies votes for all pending applications and sends due
// review reminders.
func (m *Manager) ReactionPass(ctx context.Context) error {
	if err := m.evaluator.EvaluatePending(ctx); err != nil {
		return err
	}
	return m.sendReminders(ctx)
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
