package progress

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/progress"
)

// Tracker renders a single-line progress bar for one pipeline stage.
type Tracker struct {
	bar         progress.Model
	out         io.Writer
	description string
	unit        string
	total       int
	done        int
	// open is set while the bar line has not been terminated.
	open bool
}

// New creates a Tracker writing to out. A nil out disables rendering.
func New(out io.Writer, description, unit string) *Tracker {
	return &Tracker{
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		out:         out,
		description: description,
		unit:        unit,
	}
}

// SetTotal resets the tracker to zero of total.
func (t *Tracker) SetTotal(total int) {
	t.total = total
	t.done = 0
	t.render()
}

// Increment advances the bar by one. Calls past the total are ignored.
func (t *Tracker) Increment() {
	if t.done >= t.total {
		return
	}
	t.done++
	t.render()
	if t.done == t.total {
		t.Done()
	}
}

// Done ends the bar line so later output starts on a fresh line. Safe to call
// more than once.
func (t *Tracker) Done() {
	if !t.open {
		return
	}
	fmt.Fprintln(t.out)
	t.open = false
}

// Percent returns the completed fraction in [0, 1].
func (t *Tracker) Percent() float64 {
	if t.total == 0 {
		return 0
	}
	return float64(t.done) / float64(t.total)
}

func (t *Tracker) render() {
	if t.out == nil {
		return
	}
	fmt.Fprintf(t.out, "\r%s: %s %d/%d %s", t.description, t.bar.ViewAs(t.Percent()), t.done, t.total, t.unit)
	t.open = true
}
