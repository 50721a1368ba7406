// Package render draws case detail views and loading placeholders on a terminal.
package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	prefetch "github.com/bragbook2/brag-book-gallery-sub005"
)

const (
	defaultWidth = 80
	barWidth     = 30
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})
	descStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
	bodyStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// Options configures a Terminal.
type Options struct {
	Writer     io.Writer // default: os.Stdout
	ForcePlain bool      // never animate, even on a TTY
	Width      int       // 0 detects the terminal width
}

// Terminal renders detail views and the loading skeleton to a writer.
// It animates the placeholder only when the writer is a terminal.
type Terminal struct {
	mu      sync.Mutex
	w       io.Writer
	animate bool
	width   int
	active  *placeholder
}

var (
	_ prefetch.IRenderer    = (*Terminal)(nil)
	_ prefetch.IPlaceholder = (*Terminal)(nil)
)

// New creates a Terminal.
func New(opts Options) *Terminal {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	tty, width := inspect(opts.Writer)
	if opts.Width > 0 {
		width = opts.Width
	}

	return &Terminal{
		w:       opts.Writer,
		animate: tty && !opts.ForcePlain,
		width:   width,
	}
}

// inspect reports whether w is a terminal and its width.
func inspect(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok {
		return false, defaultWidth
	}

	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false, defaultWidth
	}

	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		width = defaultWidth
	}

	return true, width
}

// Render implements prefetch.IRenderer.
func (t *Terminal) Render(_ context.Context, payload prefetch.Payload) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.clearLocked()

	var b strings.Builder
	if payload.Title != "" {
		b.WriteString(titleStyle.Render(payload.Title))
		b.WriteByte('\n')
	}

	if payload.Description != "" {
		b.WriteString(descStyle.Render(payload.Description))
		b.WriteByte('\n')
	}

	text := PlainText(payload.HTML)
	if text != "" {
		b.WriteString(bodyStyle.Width(t.bodyWidth()).Render(text))
		b.WriteByte('\n')
	}

	_, _ = io.WriteString(t.w, b.String())
}

// RenderError implements prefetch.IRenderer.
func (t *Terminal) RenderError(_ context.Context, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.clearLocked()
	_, _ = fmt.Fprintln(t.w, errorStyle.Render("Failed to load case details."), err)
}

type placeholder struct {
	drawn bool
}

// ShowPlaceholder implements prefetch.IPlaceholder.
func (t *Terminal) ShowPlaceholder(_ context.Context) prefetch.PlaceholderHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	ph := &placeholder{}
	t.active = ph

	if !t.animate {
		_, _ = fmt.Fprintln(t.w, "loading case details...")
		return ph
	}

	t.drawLocked(ph, 0)

	return ph
}

// Advance implements prefetch.IPlaceholder. Stale handles are ignored.
func (t *Terminal) Advance(handle prefetch.PlaceholderHandle, progress float64) {
	ph, ok := handle.(*placeholder)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.animate || t.active != ph {
		return
	}

	t.drawLocked(ph, progress)
}

func (t *Terminal) drawLocked(ph *placeholder, progress float64) {
	_, _ = fmt.Fprintf(t.w, "\r%s %3.0f%%", barStyle.Render(Bar(progress, barWidth)), progress*100)
	ph.drawn = true
}

// clearLocked erases an animated placeholder line before real content is drawn.
func (t *Terminal) clearLocked() {
	ph := t.active
	t.active = nil

	if ph != nil && ph.drawn && t.animate {
		_, _ = io.WriteString(t.w, "\r\x1b[2K")
	}
}

func (t *Terminal) bodyWidth() int {
	w := t.width - 4 // border and padding
	if w < 20 {
		return 20
	}

	return w
}

// Bar draws a progress bar of width cells. progress is clamped to [0, 1].
func Bar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}

	if progress > 1 {
		progress = 1
	}

	filled := int(progress * float64(width))

	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
