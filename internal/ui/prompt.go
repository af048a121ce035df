package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kennyg/folio/internal/install"
)

type conflictKeys struct {
	Overwrite key.Binding
	Rename    key.Binding
	Skip      key.Binding
	Cancel    key.Binding
}

func (k conflictKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Overwrite, k.Rename, k.Skip}
}

func (k conflictKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Overwrite, k.Rename, k.Skip, k.Cancel}}
}

var defaultConflictKeys = conflictKeys{
	Overwrite: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "overwrite")),
	Rename:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "keep both")),
	Skip:      key.NewBinding(key.WithKeys("s", "enter"), key.WithHelp("s", "skip")),
	Cancel:    key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "skip")),
}

// conflictModel asks what to do about one existing file
type conflictModel struct {
	dest   string
	keys   conflictKeys
	help   help.Model
	choice install.Decision
	done   bool
}

func newConflictModel(dest string) conflictModel {
	return conflictModel{
		dest:   dest,
		keys:   defaultConflictKeys,
		help:   help.New(),
		choice: install.DecisionSkip,
	}
}

func (m conflictModel) Init() tea.Cmd { return nil }

func (m conflictModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(km, m.keys.Overwrite):
		m.choice = install.DecisionOverwrite
	case key.Matches(km, m.keys.Rename):
		m.choice = install.DecisionRename
	case key.Matches(km, m.keys.Skip), key.Matches(km, m.keys.Cancel):
		m.choice = install.DecisionSkip
	default:
		return m, nil
	}
	m.done = true
	return m, tea.Quit
}

func (m conflictModel) View() string {
	if m.done {
		return fmt.Sprintf("  %s %s\n", Render(Dim, m.dest), Render(Muted, "→ "+m.choice.String()))
	}
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(Render(Warning, "exists:"))
	b.WriteString(" ")
	b.WriteString(Render(Code, m.dest))
	b.WriteString("\n  ")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

// PromptResolver asks the user about every conflict. Cancelling the prompt
// or its context counts as skip.
type PromptResolver struct {
	In  io.Reader
	Out io.Writer
}

var _ install.Resolver = (*PromptResolver)(nil)

// Resolve runs a small bubbletea program for dest
func (p *PromptResolver) Resolve(ctx context.Context, dest string) (install.Decision, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithoutSignalHandler()}
	if p.In != nil {
		opts = append(opts, tea.WithInput(p.In))
	}
	if p.Out != nil {
		opts = append(opts, tea.WithOutput(p.Out))
	}

	final, err := tea.NewProgram(newConflictModel(dest), opts...).Run()
	if err != nil {
		return install.DecisionSkip, fmt.Errorf("conflict prompt for %s: %w", dest, err)
	}
	m, ok := final.(conflictModel)
	if !ok || !m.done {
		return install.DecisionSkip, nil
	}
	return m.choice, nil
}

// ConflictSummary renders "n installed, n skipped, n failed" for a report
func ConflictSummary(installed, skipped, failed int) string {
	parts := []string{
		Render(Success, fmt.Sprintf("%d installed", installed)),
		Render(Muted, fmt.Sprintf("%d skipped", skipped)),
	}
	failStyle := Muted
	if failed > 0 {
		failStyle = lipgloss.NewStyle().Foreground(Pink).Bold(true)
	}
	parts = append(parts, Render(failStyle, fmt.Sprintf("%d failed", failed)))
	return "  " + strings.Join(parts, ", ")
}
