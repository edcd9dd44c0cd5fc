package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// FormatQuote is the one-line display form of a record.
func FormatQuote(q domain.Quote) string {
	return fmt.Sprintf("%q — (%s)", q.Text, q.Category)
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// renderer writes command output. Styling applies only when the output is a
// terminal; piped output stays plain so that it can be parsed.
type renderer struct {
	w      io.Writer
	styled bool

	text     lipgloss.Style
	category lipgloss.Style
	author   lipgloss.Style
	muted    lipgloss.Style
	selected lipgloss.Style
	success  lipgloss.Style
}

func newRenderer(w io.Writer, styled bool) *renderer {
	return &renderer{
		w:        w,
		styled:   styled,
		text:     lipgloss.NewStyle().Bold(true),
		category: lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")),
		author:   lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#9E9E9E")),
		muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#9E9E9E")),
		selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2196F3")),
		success:  lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")),
	}
}

func (r *renderer) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}

	return s.Render(text)
}

func (r *renderer) line(s string) {
	fmt.Fprintln(r.w, s)
}

// quote writes a record in display form, followed by its author when known.
func (r *renderer) quote(q domain.Quote) {
	if !r.styled {
		r.line(FormatQuote(q))
		return
	}

	out := r.style(r.text, fmt.Sprintf("%q", q.Text)) + " — " + r.style(r.category, "("+q.Category+")")
	if q.Author != "" && q.Author != domain.AuthorUnknown {
		out += " " + r.style(r.author, q.Author)
	}

	r.line(out)
}

// quotes writes each record on its own line, or the empty state.
func (r *renderer) quotes(qs []domain.Quote) {
	if len(qs) == 0 {
		r.noQuotes()
		return
	}

	for _, q := range qs {
		r.quote(q)
	}
}

func (r *renderer) noQuotes() {
	r.note(dto.NoQuotesMessage)
}

func (r *renderer) note(s string) {
	r.line(r.style(r.muted, s))
}

// categories lists the selectors, marking the persisted one.
func (r *renderer) categories(cats []string, selected string) {
	for _, c := range cats {
		if c == selected {
			r.line(r.style(r.selected, "* "+c))
			continue
		}

		r.line("  " + c)
	}
}

func (r *renderer) done(format string, args ...any) {
	r.line(r.style(r.success, fmt.Sprintf(format, args...)))
}

func (r *renderer) syncResult(res app.SyncResult) {
	r.done("Synced from %s: %d fetched, %d applied, %d local replaced, %d total",
		strings.Join(res.Sources, ", "), res.Fetched, res.Applied, res.DiscardedLocal, res.Total)

	if res.Dropped > 0 {
		r.line(r.style(r.muted, fmt.Sprintf("%d candidates dropped", res.Dropped)))
	}
}
