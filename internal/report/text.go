package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/harrison/snippetcheck/internal/models"
)

// TextOptions controls the human-readable rendering.
type TextOptions struct {
	Color   bool // Emit ANSI colours
	Verbose bool // List passing snippets and full diffs
}

type palette struct {
	pass, fail, warn, dim, bold *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		pass: color.New(color.FgGreen),
		fail: color.New(color.FgRed),
		warn: color.New(color.FgYellow),
		dim:  color.New(color.FgHiBlack),
		bold: color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.pass, p.fail, p.warn, p.dim, p.bold} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// WriteText renders rep as a per-topic breakdown followed by a summary line.
// Failing snippets always show their mismatches; passing snippets are only
// listed when Verbose is set.
func WriteText(w io.Writer, rep models.Report, opts TextOptions) error {
	p := newPalette(opts.Color)
	var b strings.Builder

	for _, topic := range rep.Topics {
		verdicts := rep.VerdictsByTopic[topic]
		passed := 0
		for _, v := range verdicts {
			if v.Passed {
				passed++
			}
		}
		counts := fmt.Sprintf("%d/%d passed", passed, len(verdicts))
		if passed == len(verdicts) {
			counts = p.pass.Sprint(counts)
		} else {
			counts = p.fail.Sprint(counts)
		}
		fmt.Fprintf(&b, "%s  %s\n", p.bold.Sprint(topicLabel(topic)), counts)

		for _, v := range verdicts {
			if v.Passed && !opts.Verbose {
				continue
			}
			writeVerdict(&b, p, v, opts.Verbose)
		}
	}

	if len(rep.Topics) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(summary(rep, p))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func writeVerdict(b *strings.Builder, p palette, v models.Verdict, verbose bool) {
	var mark string
	switch v.Outcome {
	case models.OutcomePassed:
		mark = p.pass.Sprint("PASS")
	case models.OutcomeIncomplete:
		mark = p.warn.Sprint("TIME")
	case models.OutcomeCancelled:
		mark = p.warn.Sprint("STOP")
	default:
		mark = p.fail.Sprint("FAIL")
	}
	fmt.Fprintf(b, "  %s %s %s\n", mark, v.SnippetID, p.dim.Sprintf("(%s)", formatDuration(v.Duration)))
	if v.Passed {
		return
	}

	if v.Error != "" {
		fmt.Fprintf(b, "      error: %s\n", v.Error)
	}
	switch {
	case verbose && v.Detail != "":
		for _, line := range strings.Split(v.Detail, "\n") {
			fmt.Fprintf(b, "      %s\n", line)
		}
	case len(v.Diff) > 0:
		for _, m := range v.Diff {
			fmt.Fprintf(b, "      %s\n", m.String())
		}
	case v.Detail != "":
		fmt.Fprintf(b, "      %s\n", firstLine(v.Detail))
	}
}

// summary renders the one-line run summary.
func summary(rep models.Report, p palette) string {
	status := p.pass.Sprint("OK")
	if !rep.AllPassed() {
		status = p.fail.Sprint("FAILED")
	}
	line := fmt.Sprintf("%s: %d snippets, %d passed, %d failed", status, rep.TotalCount, rep.PassedCount, rep.FailedCount)
	if rep.IncompleteCount > 0 || rep.CancelledCount > 0 {
		line += fmt.Sprintf(" (%d incomplete, %d cancelled)", rep.IncompleteCount, rep.CancelledCount)
	}
	return line + fmt.Sprintf(" in %s", formatDuration(rep.Duration))
}

func topicLabel(topic string) string {
	if topic == "" {
		return "(no topic)"
	}
	return topic
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
