// Package ui renders sumx status output on stderr.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.Color("#7C3AED") // violet
	colorSuccess = lipgloss.Color("#10B981") // emerald
	colorError   = lipgloss.Color("#EF4444") // red
	colorWarning = lipgloss.Color("#F59E0B") // amber
	colorInfo    = lipgloss.Color("#3B82F6") // blue
	colorMuted   = lipgloss.Color("#6B7280") // gray-500
	colorSubtle  = lipgloss.Color("#9CA3AF") // gray-400
	colorText    = lipgloss.Color("#F9FAFB") // gray-50
)

var (
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleWarn    = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleInfo    = lipgloss.NewStyle().Foreground(colorInfo).Bold(true)

	styleBold    = lipgloss.NewStyle().Bold(true)
	styleDim     = lipgloss.NewStyle().Foreground(colorMuted)
	stylePrimary = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)

	styleLabel = lipgloss.NewStyle().Foreground(colorSubtle).Width(12)
	styleValue = lipgloss.NewStyle().Foreground(colorText)

	styleHeader = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			MarginBottom(1)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "●"
	iconArrow   = "→"
	iconBullet  = "•"
	iconBuild   = "⚙"
	iconWatch   = "◎"
)

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr
)

// SetOutput redirects all ui output and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return prev
}

// Writer returns the current output writer.
func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return out
}

func printf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, format, args...)
}

func SuccessPrefix() string { return styleSuccess.Render(iconSuccess) }
func ErrorPrefix() string   { return styleError.Render(iconError) }
func WarnPrefix() string    { return styleWarn.Render(iconWarning) }
func InfoPrefix() string    { return styleInfo.Render(iconInfo) }

// Success prints a success message.
func Success(msg string, args ...any) {
	printf("%s %s\n", SuccessPrefix(), fmt.Sprintf(msg, args...))
}

// Error prints an error message.
func Error(msg string, args ...any) {
	printf("%s %s\n", ErrorPrefix(), fmt.Sprintf(msg, args...))
}

// Warn prints a warning message.
func Warn(msg string, args ...any) {
	printf("%s %s\n", WarnPrefix(), fmt.Sprintf(msg, args...))
}

// Info prints an info message.
func Info(msg string, args ...any) {
	printf("%s %s\n", InfoPrefix(), fmt.Sprintf(msg, args...))
}

// Step prints an indented step message.
func Step(msg string, args ...any) {
	printf("  %s %s\n", styleDim.Render(iconBullet), fmt.Sprintf(msg, args...))
}

// Label prints a key-value pair.
func Label(key, value string) {
	printf("  %s %s\n", styleLabel.Render(key), styleValue.Render(value))
}

// Header prints a section header.
func Header(title string) {
	printf("\n%s\n", styleHeader.Render(title))
}

// Target prints a build target header.
func Target(idx, total int, name string) {
	if total > 1 {
		counter := styleDim.Render(fmt.Sprintf("[%d/%d]", idx+1, total))
		printf("\n%s %s\n", counter, stylePrimary.Render(name))
		return
	}
	printf("\n%s %s\n", styleInfo.Render(iconArrow), stylePrimary.Render(name))
}

// Building prints build start message.
func Building(target string) {
	printf("%s %s %s\n", styleInfo.Render(iconBuild), styleDim.Render("Building"), styleBold.Render(target))
}

// Built prints build completion message.
func Built(output string, d time.Duration) {
	if output != "" {
		printf("%s %s %s\n", SuccessPrefix(), output, styleDim.Render(fmt.Sprintf("(%s)", FormatDuration(d))))
		return
	}
	printf("%s %s %s\n", SuccessPrefix(), styleDim.Render("Built in"), FormatDuration(d))
}

// BuildFailed prints build failure message.
func BuildFailed(target string, err error) {
	printf("%s %s: %v\n", ErrorPrefix(), target, err)
}

// Watching prints the watch-mode banner.
func Watching(dir string) {
	printf("%s %s %s\n", styleInfo.Render(iconWatch), styleDim.Render("Watching"), dir)
}

// Check prints one verification result line.
func Check(name string, ok bool, detail string) {
	if ok {
		printf("  %s %s\n", SuccessPrefix(), name)
		return
	}
	if detail != "" {
		printf("  %s %s %s\n", ErrorPrefix(), name, styleDim.Render(detail))
		return
	}
	printf("  %s %s\n", ErrorPrefix(), name)
}

// ----------------------------------------------------------------------------
// Table
// ----------------------------------------------------------------------------

// Table renders a simple aligned table.
type Table struct {
	headers []string
	rows    [][]string
	widths  []int
}

// NewTable creates a new table with headers.
func NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	return &Table{headers: headers, widths: widths}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cols ...string) {
	for i, c := range cols {
		if i < len(t.widths) && len(c) > t.widths[i] {
			t.widths[i] = len(c)
		}
	}
	t.rows = append(t.rows, cols)
}

// Render prints the table.
func (t *Table) Render() {
	printf("  %s\n", styleDim.Render(t.line(t.headers)))

	sep := make([]string, len(t.widths))
	for i, w := range t.widths {
		sep[i] = strings.Repeat("─", w)
	}
	printf("  %s\n", styleDim.Render(strings.Join(sep, "  ")))

	for _, row := range t.rows {
		printf("  %s\n", t.line(row))
	}
}

func (t *Table) line(cols []string) string {
	var b strings.Builder
	for i, col := range cols {
		if i > 0 {
			b.WriteString("  ")
		}
		if i < len(t.widths) {
			fmt.Fprintf(&b, "%-*s", t.widths[i], col)
		} else {
			b.WriteString(col)
		}
	}
	return b.String()
}

// FormatSize formats bytes as a human readable string.
func FormatSize(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case b >= GB:
		return fmt.Sprintf("%.1f GB", float64(b)/GB)
	case b >= MB:
		return fmt.Sprintf("%.1f MB", float64(b)/MB)
	case b >= KB:
		return fmt.Sprintf("%.1f KB", float64(b)/KB)
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// FormatDuration formats a duration as a human readable string.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
