package pipeline

import (
	"context"
	"sync"
	"testing"
)

func TestBatchFailureIsolationAndOrder(t *testing.T) {
	orch, _ := testOrchestrator(t, newFakeTools())
	runner := NewBatchRunner(orch, 2, testLogger())

	report := runner.Run(context.Background(), []Request{
		{Identifier: "water"},
		{Identifier: "not-a-real-molecule"},
		{Identifier: "ethanol"},
	})

	p, s, f := report.Counts()
	if p != 2 || s != 0 || f != 1 {
		t.Fatalf("counts = %d/%d/%d, want 2 persisted, 0 skipped, 1 failed", p, s, f)
	}
	if report.RunID == "" {
		t.Error("report without run id")
	}
	if report.FinishedAt.Before(report.StartedAt) {
		t.Error("finished before started")
	}

	// Entries keep submission order even under concurrency.
	if report.Persisted[0].Identifier != "water" || report.Persisted[1].Identifier != "ethanol" {
		t.Errorf("persisted order = %q, %q; want water, ethanol",
			report.Persisted[0].Identifier, report.Persisted[1].Identifier)
	}

	failed := report.Failed[0]
	if failed.Identifier != "not-a-real-molecule" {
		t.Errorf("failed identifier = %q", failed.Identifier)
	}
	if failed.Stage != "StructureRetrieved" {
		t.Errorf("failed stage = %q, want StructureRetrieved", failed.Stage)
	}
	if failed.Kind != "ToolNonZeroExit" {
		t.Errorf("failed kind = %q, want ToolNonZeroExit", failed.Kind)
	}
}

func TestBatchDeduplicatesConcurrently(t *testing.T) {
	orch, st := testOrchestrator(t, newFakeTools())
	runner := NewBatchRunner(orch, 3, testLogger())

	report := runner.Run(context.Background(), []Request{
		{Identifier: "water"},
		{Identifier: "water"},
		{Identifier: "dihydrogen monoxide"},
	})

	p, s, f := report.Counts()
	if p != 1 || s != 2 || f != 0 {
		t.Fatalf("counts = %d/%d/%d, want 1 persisted, 2 skipped, 0 failed", p, s, f)
	}

	rows, err := st.Rows()
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	if len(rows) != 1 || rows[0].Smiles != "O" {
		t.Errorf("stored rows = %+v, want a single row keyed O", rows)
	}
}

// cancelDuringConvert cancels the batch while its own molecule is in
// flight; later stages report any cancellation they observe.
type cancelDuringConvert struct {
	*fakeTools
	cancel context.CancelFunc
}

func (c *cancelDuringConvert) Convert(ctx context.Context, inputPath, format string) (string, error) {
	c.cancel()
	return c.fakeTools.Convert(ctx, inputPath, format)
}

func (c *cancelDuringConvert) RunQuantum(ctx context.Context, xyzPath string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.fakeTools.RunQuantum(ctx, xyzPath)
}

func TestBatchCancelDoesNotAbortInFlightRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tools := &cancelDuringConvert{fakeTools: newFakeTools(), cancel: cancel}
	orch, _ := testOrchestrator(t, tools)
	runner := NewBatchRunner(orch, 1, testLogger())

	report := runner.Run(ctx, []Request{{Identifier: "water"}})

	p, s, f := report.Counts()
	if f != 0 {
		t.Fatalf("in-flight molecule failed after cancel: %+v", report.Failed)
	}
	if p != 1 || s != 0 {
		t.Fatalf("counts = %d/%d/%d, want the in-flight molecule persisted", p, s, f)
	}
}

func TestBatchCancelledBeforeDispatch(t *testing.T) {
	orch, _ := testOrchestrator(t, newFakeTools())
	runner := NewBatchRunner(orch, 2, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := runner.Run(ctx, []Request{{Identifier: "water"}, {Identifier: "ethanol"}})
	p, s, f := report.Counts()
	if p != 0 || s != 0 || f != 0 {
		t.Errorf("counts = %d/%d/%d, want nothing processed", p, s, f)
	}
}

func TestBatchProgressCallback(t *testing.T) {
	orch, _ := testOrchestrator(t, newFakeTools())
	runner := NewBatchRunner(orch, 2, testLogger())

	var (
		mu    sync.Mutex
		calls []int
		total int
	)
	runner.OnProgress = func(done, t int, _ Outcome) {
		mu.Lock()
		calls = append(calls, done)
		total = t
		mu.Unlock()
	}

	runner.Run(context.Background(), []Request{
		{Identifier: "water"},
		{Identifier: "ethanol"},
		{Identifier: "not-a-real-molecule"},
	})

	if len(calls) != 3 {
		t.Fatalf("progress called %d times, want 3", len(calls))
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	// done is monotonically increasing under the runner's serialization.
	for i, d := range calls {
		if d != i+1 {
			t.Errorf("call %d reported done=%d, want %d", i, d, i+1)
			break
		}
	}
}
