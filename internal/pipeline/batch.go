package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// PersistedEntry is a successfully stored molecule in a batch report.
type PersistedEntry struct {
	Identifier string  `json:"identifier"`
	Key        string  `json:"key"`
	PM7Energy  float64 `json:"pm7_energy"`
}

// SkippedEntry is a molecule whose key was already stored.
type SkippedEntry struct {
	Identifier string `json:"identifier"`
	Key        string `json:"key"`
}

// FailedEntry records where and why one molecule's pipeline failed.
type FailedEntry struct {
	Identifier string `json:"identifier"`
	Stage      string `json:"stage"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

// Report is the sole interface surface toward the front end: a complete
// account of one batch run, serializable as JSON.
type Report struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Persisted  []PersistedEntry `json:"persisted"`
	Skipped    []SkippedEntry   `json:"skipped"`
	Failed     []FailedEntry    `json:"failed"`
}

// Counts returns the persisted/skipped/failed totals.
func (r *Report) Counts() (persisted, skipped, failed int) {
	return len(r.Persisted), len(r.Skipped), len(r.Failed)
}

// ProgressFunc observes batch progress. done counts finished molecules.
type ProgressFunc func(done, total int, outcome Outcome)

// BatchRunner runs the orchestrator over a collection of requests with
// bounded concurrency. One molecule's failure never aborts the batch; the
// store's own locking is the only synchronization between molecule runs.
type BatchRunner struct {
	orch    *Orchestrator
	workers int
	log     *slog.Logger

	// OnProgress, when set, is called after each molecule finishes. It
	// may be called from multiple goroutines, but calls are serialized.
	OnProgress ProgressFunc
}

func NewBatchRunner(orch *Orchestrator, workers int, log *slog.Logger) *BatchRunner {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &BatchRunner{orch: orch, workers: workers, log: log}
}

// Run processes every request and always returns a complete report, even
// if every molecule fails. Cancelling the context stops dispatching new
// molecules; runs already in flight finish under their own tool timeouts.
func (b *BatchRunner) Run(ctx context.Context, requests []Request) *Report {
	report := &Report{
		RunID:     uuid.New().String()[:8],
		StartedAt: time.Now(),
		Persisted: []PersistedEntry{},
		Skipped:   []SkippedEntry{},
		Failed:    []FailedEntry{},
	}

	b.log.Info("starting batch", "run_id", report.RunID, "molecules", len(requests), "workers", b.workers)

	outcomes := make([]*Outcome, len(requests))
	var (
		mu   sync.Mutex
		done int
	)

	// Cancellation gates dispatch only. Molecule runs get a detached
	// context so in-flight tool invocations are never killed mid-run;
	// their own per-tool timeouts still apply.
	runCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, req := range requests {
		if ctx.Err() != nil {
			b.log.Warn("batch cancelled, not dispatching remaining molecules",
				"run_id", report.RunID, "remaining", len(requests)-i)
			break
		}
		g.Go(func() error {
			outcome := b.orch.Run(runCtx, req)

			mu.Lock()
			outcomes[i] = &outcome
			done++
			d := done
			if b.OnProgress != nil {
				b.OnProgress(d, len(requests), outcome)
			}
			mu.Unlock()

			b.log.Info("molecule finished",
				"run_id", report.RunID,
				"identifier", req.Identifier,
				"outcome", outcome.Kind,
				"progress", d,
				"total", len(requests))
			return nil
		})
	}
	// Workers never return errors; outcomes carry all failure detail.
	_ = g.Wait()

	// Report entries follow submission order regardless of which worker
	// finished first.
	for _, outcome := range outcomes {
		if outcome == nil {
			continue
		}
		switch outcome.Kind {
		case OutcomePersisted:
			entry := PersistedEntry{Identifier: outcome.Identifier, Key: outcome.Key}
			if outcome.Row != nil {
				entry.PM7Energy = outcome.Row.PM7Energy
			}
			report.Persisted = append(report.Persisted, entry)
		case OutcomeSkipped:
			report.Skipped = append(report.Skipped, SkippedEntry{
				Identifier: outcome.Identifier,
				Key:        outcome.Key,
			})
		case OutcomeFailed:
			report.Failed = append(report.Failed, FailedEntry{
				Identifier: outcome.Identifier,
				Stage:      outcome.Stage.String(),
				Kind:       outcome.FailureKind,
				Message:    outcome.Message,
			})
		}
	}

	report.FinishedAt = time.Now()
	p, s, f := report.Counts()
	b.log.Info("batch finished", "run_id", report.RunID, "persisted", p, "skipped", s, "failed", f)
	return report
}
