package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"

	"github.com/kennyg/folio/internal/artifact"
)

// IsTTY indicates whether stdout is an interactive terminal.
// When false, UI functions produce plain text without colors or decorations.
var IsTTY = term.IsTerminal(os.Stdout.Fd())

// ═══════════════════════════════════════════════════════════════════════════════
// COLOR PALETTE
// ═══════════════════════════════════════════════════════════════════════════════

var (
	Gold    = lipgloss.Color("#F4D03F")
	Amber   = lipgloss.Color("#E59866")
	Copper  = lipgloss.Color("#DC7633")
	Blue    = lipgloss.Color("#5DADE2")
	Cyan    = lipgloss.Color("#76D7C4")
	Green   = lipgloss.Color("#58D68D")
	Emerald = lipgloss.Color("#27AE60")
	Pink    = lipgloss.Color("#FF6B9D")
	Magenta = lipgloss.Color("#E91E8C")

	White    = lipgloss.Color("#FDFEFE")
	Gray     = lipgloss.Color("#AAB7B8")
	DarkGray = lipgloss.Color("#5D6D7E")
	Black    = lipgloss.Color("#1C2833")
)

// ═══════════════════════════════════════════════════════════════════════════════
// TEXT STYLES
// ═══════════════════════════════════════════════════════════════════════════════

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Gold)

	Success = lipgloss.NewStyle().
		Foreground(Green)

	Error = lipgloss.NewStyle().
		Foreground(Pink).
		Bold(true)

	Warning = lipgloss.NewStyle().
		Foreground(Copper)

	Muted = lipgloss.NewStyle().
		Foreground(Gray)

	Dim = lipgloss.NewStyle().
		Foreground(DarkGray)

	Highlight = lipgloss.NewStyle().
		Foreground(Gold).
		Bold(true)

	// Code is used for file paths and commands
	Code = lipgloss.NewStyle().
		Foreground(Magenta)
)

// ═══════════════════════════════════════════════════════════════════════════════
// BADGES
// ═══════════════════════════════════════════════════════════════════════════════

var baseBadge = lipgloss.NewStyle().
	Padding(0, 1).
	Bold(true)

type badge struct {
	plain string
	fancy string
	bg    lipgloss.Color
	fg    lipgloss.Color
}

var kindBadges = map[artifact.Kind]badge{
	artifact.KindAgent:               {"[AGENT]", "◈ AGENT", Magenta, White},
	artifact.KindPrompt:              {"[PROMPT]", "✎ PROMPT", Emerald, White},
	artifact.KindInstruction:         {"[INSTR]", "§ INSTR", Blue, White},
	artifact.KindAlwaysOnInstruction: {"[ALWAYS]", "✦ ALWAYS", Gold, Black},
}

// KindBadge returns the badge for an item kind. Unknown kinds render as
// their raw name.
func KindBadge(k artifact.Kind) string {
	b, ok := kindBadges[k]
	if !ok {
		b = badge{plain: "[" + strings.ToUpper(string(k)) + "]", fancy: strings.ToUpper(string(k)), bg: DarkGray, fg: White}
	}
	if !IsTTY {
		return b.plain
	}
	return baseBadge.Background(b.bg).Foreground(b.fg).Render(b.fancy)
}

// StatusOK returns the success status badge
func StatusOK() string {
	if !IsTTY {
		return "[OK]"
	}
	return baseBadge.Background(Green).Foreground(White).Render("✓")
}

// StatusWarn returns the warning status badge
func StatusWarn() string {
	if !IsTTY {
		return "[!]"
	}
	return baseBadge.Background(Copper).Foreground(White).Render("!")
}

// StatusError returns the error status badge
func StatusError() string {
	if !IsTTY {
		return "[ERR]"
	}
	return baseBadge.Background(Pink).Foreground(White).Render("✗")
}

// StatusSkip marks an item left alone
func StatusSkip() string {
	if !IsTTY {
		return "[SKIP]"
	}
	return baseBadge.Background(DarkGray).Foreground(White).Render("–")
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOGO
// ═══════════════════════════════════════════════════════════════════════════════

// Logo returns the folio banner used in the root help text
func Logo() string {
	if !IsTTY {
		return "\n  FOLIO - curated Copilot agents, prompts and instructions\n"
	}

	lines := []struct {
		text  string
		color lipgloss.Color
	}{
		{"", Black},
		{"     ┌───────────┬───────────┐", DarkGray},
		{"     │  ▄▀▀ ▄▀▄  │  █   █ ▄▀▄ │", Gold},
		{"     │  █▀  █ █  │  █   █ █ █ │", Amber},
		{"     │  ▀    ▀   │  ▀▀▀ ▀  ▀  │", Copper},
		{"     └───────────┴───────────┘", DarkGray},
		{"", Black},
	}

	var result strings.Builder
	for _, line := range lines {
		result.WriteString(lipgloss.NewStyle().Foreground(line.color).Render(line.text))
		result.WriteString("\n")
	}
	return result.String()
}

// ═══════════════════════════════════════════════════════════════════════════════
// DECORATIVE ELEMENTS
// ═══════════════════════════════════════════════════════════════════════════════

// SectionHeader creates a decorated section header
func SectionHeader(title string) string {
	if !IsTTY {
		return fmt.Sprintf("=== %s ===", title)
	}

	width := min(TerminalWidth(), 80)

	titleStyled := Title.Render(title)

	titleLen := lipgloss.Width(title)
	padLeft := max((width-titleLen-6)/2, 0)
	padRight := max(width-titleLen-6-padLeft, 0)

	left := lipgloss.NewStyle().Foreground(DarkGray).Render(strings.Repeat("─", padLeft) + "┤ ")
	right := lipgloss.NewStyle().Foreground(DarkGray).Render(" ├" + strings.Repeat("─", padRight))

	return left + titleStyled + right
}

// PageFooter creates a footer matching the header width
func PageFooter() string {
	if !IsTTY {
		return "\n"
	}

	width := min(TerminalWidth(), 80)
	padSide := (width - 5) / 2
	left := strings.Repeat("─", padSide)
	right := strings.Repeat("─", width-padSide-5)
	line := lipgloss.NewStyle().Foreground(DarkGray).Render(left + " ✦ " + right)
	return "\n" + line + "\n"
}

// ═══════════════════════════════════════════════════════════════════════════════
// STATUS LINES
// ═══════════════════════════════════════════════════════════════════════════════

func statusLine(icon, message string, color lipgloss.Color) string {
	iconStyled := lipgloss.NewStyle().Foreground(color).Render(icon)
	msgStyled := lipgloss.NewStyle().Foreground(color).Render(message)
	return fmt.Sprintf("  %s %s", iconStyled, msgStyled)
}

// SuccessLine creates a success status line
func SuccessLine(message string) string {
	if !IsTTY {
		return fmt.Sprintf("  OK: %s", message)
	}
	return statusLine("✓", message, Green)
}

// ErrorLine creates an error status line
func ErrorLine(message string) string {
	if !IsTTY {
		return fmt.Sprintf("  ERROR: %s", message)
	}
	return statusLine("✗", message, Pink)
}

// WarningLine creates a warning status line
func WarningLine(message string) string {
	if !IsTTY {
		return fmt.Sprintf("  WARN: %s", message)
	}
	return statusLine("!", message, Copper)
}

// InfoLine creates an info status line
func InfoLine(message string) string {
	if !IsTTY {
		return fmt.Sprintf("  %s", message)
	}
	return statusLine("→", message, Blue)
}

// ═══════════════════════════════════════════════════════════════════════════════
// EMPTY STATES
// ═══════════════════════════════════════════════════════════════════════════════

// NothingInstalled is shown by status when the receipt has no entries
func NothingInstalled() string {
	if !IsTTY {
		return "\n  Nothing installed yet.\n  Use `folio install <id>` to begin.\n"
	}
	message := lipgloss.NewStyle().Foreground(Gray).Render("Nothing installed yet.")
	hint := lipgloss.NewStyle().Foreground(Cyan).Render("folio install <id>")
	return fmt.Sprintf("\n  %s\n  Use %s to begin.\n", message, hint)
}

// NoResults returns a friendly no-results state
func NoResults(query string) string {
	if query == "" {
		return RenderMuted("\n  The catalogue has no matching items.\n")
	}
	if !IsTTY {
		return fmt.Sprintf("\n  No items found for %q\n  Try broader search terms\n", query)
	}
	message := lipgloss.NewStyle().Foreground(Gray).Render(fmt.Sprintf("No items found for %q", query))
	hint := lipgloss.NewStyle().Foreground(Cyan).Render("Try broader search terms")
	return fmt.Sprintf("\n  %s\n  %s\n", message, hint)
}

// ═══════════════════════════════════════════════════════════════════════════════
// HELPER FUNCTIONS
// ═══════════════════════════════════════════════════════════════════════════════

// Truncate truncates text to n runes with an ellipsis
func Truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// WrapText wraps text to fit within maxWidth, returning multiple lines.
func WrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{text}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	var currentLine strings.Builder

	for _, word := range words {
		if currentLine.Len() == 0 {
			currentLine.WriteString(word)
		} else if currentLine.Len()+1+len(word) <= maxWidth {
			currentLine.WriteString(" ")
			currentLine.WriteString(word)
		} else {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
			currentLine.WriteString(word)
		}
	}

	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	return lines
}

// Render applies a lipgloss style to text, returning plain text in non-TTY environments.
func Render(style lipgloss.Style, text string) string {
	if !IsTTY {
		return text
	}
	return style.Render(text)
}

// RenderMuted renders text in muted style (TTY-aware)
func RenderMuted(text string) string {
	return Render(Muted, text)
}

// RenderDim renders text in dim style (TTY-aware)
func RenderDim(text string) string {
	return Render(Dim, text)
}

// RenderHighlight renders text in highlight style (TTY-aware)
func RenderHighlight(text string) string {
	return Render(Highlight, text)
}

// RenderCode renders a path or command (TTY-aware)
func RenderCode(text string) string {
	return Render(Code, text)
}

// RenderError renders text in error style (TTY-aware)
func RenderError(text string) string {
	return Render(Error, text)
}

// TerminalWidth returns the current terminal width, defaulting to 80 if unknown
func TerminalWidth() int {
	w, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// DescriptionWidth returns the recommended width for descriptions based on terminal size
func DescriptionWidth() int {
	// indentation plus some margin
	return max(TerminalWidth()-8, 40)
}
