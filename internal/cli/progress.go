package cli

import (
	"context"
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"thermopipe/internal/pipeline"
)

const timeRound = time.Second

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func okStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(defaultTheme.Success).Bold(true)
}

func errStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(defaultTheme.Error).Bold(true)
}

func hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(defaultTheme.Hint)
}

func statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(defaultTheme.Status)
}

// outcomeMsg carries one finished molecule.
type outcomeMsg struct {
	done    int
	total   int
	outcome pipeline.Outcome
}

// batchDoneMsg carries the final report.
type batchDoneMsg struct {
	report *pipeline.Report
}

// batchModel is the bubbletea model for live batch progress.
type batchModel struct {
	progress progress.Model
	cancel   context.CancelFunc

	total      int
	done       int
	persisted  int
	skipped    int
	failed     int
	last       string
	cancelling bool
	report     *pipeline.Report
}

func newBatchModel(total int, cancel context.CancelFunc) batchModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return batchModel{progress: prog, cancel: cancel, total: total}
}

func (m batchModel) Init() tea.Cmd {
	return m.progress.Init()
}

func (m batchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Stop dispatching new molecules; in-flight tool runs finish
			// under their own timeouts.
			m.cancelling = true
			m.cancel()
		}

	case outcomeMsg:
		m.done = msg.done
		m.last = msg.outcome.Identifier
		switch msg.outcome.Kind {
		case pipeline.OutcomePersisted:
			m.persisted++
		case pipeline.OutcomeSkipped:
			m.skipped++
		default:
			m.failed++
		}
		return m, nil

	case batchDoneMsg:
		m.report = msg.report
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m batchModel) View() tea.View {
	var pct float64
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}

	status := statusStyle().Render(fmt.Sprintf("[%d/%d]", m.done, m.total))
	counts := fmt.Sprintf("%s %d  %s %d  %s %d",
		okStyle().Render("✓"), m.persisted,
		hintStyle().Render("–"), m.skipped,
		errStyle().Render("✗"), m.failed)

	line := fmt.Sprintf("%s %s %s\n", status, m.progress.ViewAs(pct), counts)
	if m.last != "" {
		line += hintStyle().Render("last: "+m.last) + "\n"
	}
	if m.cancelling {
		line += errStyle().Render("cancelling, waiting for running molecules...") + "\n"
	} else {
		line += hintStyle().Render("Press Ctrl+C to stop dispatching new molecules") + "\n"
	}
	return tea.NewView(line)
}

// runBatchWithProgress runs the batch under a live progress display and
// returns the final report.
func runBatchWithProgress(ctx context.Context, runner *pipeline.BatchRunner, requests []pipeline.Request) (*pipeline.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newBatchModel(len(requests), cancel))

	runner.OnProgress = func(done, total int, outcome pipeline.Outcome) {
		p.Send(outcomeMsg{done: done, total: total, outcome: outcome})
	}
	go func() {
		report := runner.Run(ctx, requests)
		p.Send(batchDoneMsg{report: report})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}
	m, ok := final.(batchModel)
	if !ok || m.report == nil {
		return nil, fmt.Errorf("progress display exited before the batch finished")
	}
	return m.report, nil
}
