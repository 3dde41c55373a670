// Package output renders mock MES results for a terminal.
//
// Styling uses lipgloss. The renderer is bound to the destination writer, so
// output to a file or buffer carries no escape codes.
//
// Key types:
//   - [Printer] - writes routings, SFC records, transitions and errors
package output

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"mockmes/internal/command"
	"mockmes/internal/report"
	"mockmes/internal/routing"
	"mockmes/internal/sfc"
	"mockmes/internal/status"
)

// Printer writes styled results to a writer.
//
// Create with [NewPrinter] or [NewPrinterWithWriter].
type Printer struct {
	out      io.Writer
	renderer *lipgloss.Renderer
	color    bool

	title    lipgloss.Style
	muted    lipgloss.Style
	success  lipgloss.Style
	failure  lipgloss.Style
	states   map[status.State]lipgloss.Style
	statuses map[status.SFCStatus]lipgloss.Style
}

// NewPrinter creates a Printer writing to standard output.
func NewPrinter() *Printer {
	return NewPrinterWithWriter(os.Stdout)
}

// NewPrinterWithWriter creates a Printer writing to w.
func NewPrinterWithWriter(w io.Writer) *Printer {
	p := &Printer{
		out:      w,
		renderer: lipgloss.NewRenderer(w),
		color:    true,
	}
	p.buildStyles()
	return p
}

// SetColor turns colors on or off. Bold and other attributes are kept.
func (p *Printer) SetColor(enabled bool) {
	p.color = enabled
	p.buildStyles()
}

func (p *Printer) buildStyles() {
	fg := func(s lipgloss.Style, hex string) lipgloss.Style {
		if !p.color {
			return s
		}
		return s.Foreground(lipgloss.Color(hex))
	}
	base := p.renderer.NewStyle()

	p.title = fg(base.Bold(true), "#FFD93D")
	p.muted = fg(base, "#888888")
	p.success = fg(base, "#00FF00")
	p.failure = fg(base.Bold(true), "#FF5F5F")
	p.states = map[status.State]lipgloss.Style{
		status.Blank:    fg(base, "#AAAAAA"),
		status.InWork:   fg(base.Bold(true), "#00BFFF"),
		status.Done:     fg(base, "#00FF00"),
		status.Bypassed: fg(base.Italic(true), "#FFA500"),
	}
	p.statuses = map[status.SFCStatus]lipgloss.Style{
		status.StatusNew:    fg(base, "#AAAAAA"),
		status.StatusInWork: fg(base.Bold(true), "#00BFFF"),
		status.StatusDone:   fg(base.Bold(true), "#00FF00"),
	}
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// Result prints whichever shape res carries.
func (p *Printer) Result(res command.Result) {
	switch {
	case res.Transition != nil:
		p.Transition(*res.Transition)
	case res.Record != nil:
		p.Record(*res.Record)
	case res.RoutingState != nil:
		p.RoutingState(*res.RoutingState)
	case res.Routing != nil:
		p.Routing(*res.Routing)
	default:
		p.list(res)
	}
}

// list handles the slice shapes, which may legitimately be empty.
func (p *Printer) list(res command.Result) {
	switch res.Command.(type) {
	case command.ListRoutings:
		p.Routings(res.Routings)
	case command.ListSFCs:
		p.Records(res.Records)
	case command.History:
		p.History(res.History)
	default:
		p.Muted("nothing to show")
	}
}

// Routing prints one routing and its operations.
func (p *Printer) Routing(r routing.Routing) {
	p.printf("%s  %s\n", p.title.Render(r.ID), p.muted.Render(plural(len(r.Operations), "operation")))
	p.operations(r.Operations)
}

// Routings prints a one-line summary per routing.
func (p *Printer) Routings(rs []routing.Routing) {
	if len(rs) == 0 {
		p.Muted("no routings")
		return
	}
	for _, r := range rs {
		p.printf("%-12s %s\n", r.ID, p.muted.Render(plural(len(r.Operations), "operation")))
	}
}

// Record prints an SFC and its operation table.
func (p *Printer) Record(rec sfc.Record) {
	p.printf("%s  %s  %s\n", p.title.Render(rec.ID), p.status(rec.Status), p.routingLabel(rec.RoutingID))
	p.operations(rec.Operations)
}

// Transition prints the record after a transition, noting when nothing
// changed.
func (p *Printer) Transition(t sfc.Transition) {
	p.Record(t.Record)
	if !t.Changed {
		p.Muted("no change: no operation was in work")
	}
}

// RoutingState prints a routing-state projection.
func (p *Printer) RoutingState(rs sfc.RoutingState) {
	p.printf("%s  %s  %s\n", p.title.Render(rs.SFCID), p.status(rs.Status), p.routingLabel(rs.RoutingID))
	for _, op := range rs.Operations {
		p.operationLine(op.ID, op.Description, op.State)
	}
}

// Records prints a one-line summary per SFC.
func (p *Printer) Records(recs []sfc.Record) {
	if len(recs) == 0 {
		p.Muted("no sfcs")
		return
	}
	for _, rec := range recs {
		routingID := rec.RoutingID
		if routingID == "" {
			routingID = "-"
		}
		p.printf("%-12s %-12s %s  %s\n", rec.ID, routingID, p.status(rec.Status), p.progress(rec.Operations))
	}
}

// History prints journal entries oldest first.
func (p *Printer) History(entries []sfc.Entry) {
	if len(entries) == 0 {
		p.Muted("no history")
		return
	}
	for _, e := range entries {
		detail := ""
		switch {
		case e.Step > 0:
			detail = fmt.Sprintf("step %d", e.Step)
		case e.RoutingID != "":
			detail = e.RoutingID
		}
		states := make([]string, len(e.States))
		for i, s := range e.States {
			states[i] = p.state(s)
		}
		p.printf("%s  %-16s %-10s [%s]\n",
			p.muted.Render(e.At.UTC().Format("2006-01-02T15:04:05Z")),
			e.Action, detail, strings.Join(states, " "))
	}
}

// ReportSummary prints the header and counts of a report.
func (p *Printer) ReportSummary(r *report.Report) {
	p.printf("%s %s\n", p.title.Render("Report"), p.muted.Render(r.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z")))
	if r.Source != "" {
		p.printf("  source:   %s\n", r.Source)
	}
	p.printf("  routings: %d\n", r.Summary.Routings)
	p.printf("  sfcs:     %d\n", r.Summary.SFCs)

	keys := make([]status.SFCStatus, 0, len(r.Summary.ByStatus))
	for k := range r.Summary.ByStatus {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		p.printf("    %-8s %d\n", p.status(k), r.Summary.ByStatus[k])
	}
}

// Prompt writes label followed by a space, without a newline.
func (p *Printer) Prompt(label string) {
	p.printf("%s ", p.title.Render(label))
}

// Success prints a confirmation line.
func (p *Printer) Success(msg string) {
	p.printf("%s %s\n", p.success.Render("✓"), msg)
}

// Muted prints a dimmed informational line.
func (p *Printer) Muted(msg string) {
	p.printf("%s\n", p.muted.Render(msg))
}

// Error prints an error line.
func (p *Printer) Error(err error) {
	if err == nil {
		return
	}
	p.printf("%s %s\n", p.failure.Render("✗"), err.Error())
}

func (p *Printer) operations(ops routing.Operations) {
	for _, op := range ops {
		p.operationLine(op.ID, op.Description, op.State)
	}
}

func (p *Printer) operationLine(id int, desc string, s status.State) {
	p.printf("  %3d  %-24s %s\n", id, desc, p.state(s))
}

func (p *Printer) state(s status.State) string {
	style, ok := p.states[s]
	if !ok {
		return string(s)
	}
	return style.Render(string(s))
}

func (p *Printer) status(s status.SFCStatus) string {
	style, ok := p.statuses[s]
	if !ok {
		return string(s)
	}
	return style.Render(string(s))
}

func (p *Printer) routingLabel(routingID string) string {
	if routingID == "" {
		return p.muted.Render("no routing assigned")
	}
	return p.muted.Render("routing " + routingID)
}

// progress renders "done/total" counting bypassed steps as finished.
func (p *Printer) progress(ops routing.Operations) string {
	finished := 0
	for _, op := range ops {
		if op.State == status.Done || op.State == status.Bypassed {
			finished++
		}
	}
	return p.muted.Render(fmt.Sprintf("%d/%d", finished, len(ops)))
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
