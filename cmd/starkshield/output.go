package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"starkshield/internal/history"
	"starkshield/internal/nullifier"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	labelColor   = color.New(color.FgYellow)
	dimColor     = color.New(color.Faint)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
)

// printer renders command results either as JSON or as colored text.
type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(w io.Writer, asJSON bool) *printer {
	return &printer{w: w, json: asJSON}
}

// emit writes v as indented JSON in JSON mode and otherwise calls text.
func (p *printer) emit(v any, text func()) error {
	if p.json {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}

func (p *printer) header(s string) {
	headerColor.Fprintln(p.w, s)
}

func (p *printer) field(label string, value any) {
	fmt.Fprintf(p.w, "  %s %v\n", labelColor.Sprintf("%-18s", label+":"), value)
}

func (p *printer) ok(format string, args ...any) {
	successColor.Fprintf(p.w, "✓ "+format+"\n", args...)
}

func (p *printer) fail(format string, args ...any) {
	errorColor.Fprintf(p.w, "✗ "+format+"\n", args...)
}

func (p *printer) warn(format string, args ...any) {
	warnColor.Fprintf(p.w, "! "+format+"\n", args...)
}

func (p *printer) dim(format string, args ...any) {
	dimColor.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) outcome(o nullifier.Outcome) {
	switch o.Status {
	case nullifier.StatusUnused:
		p.ok("nullifier has not been used")
	case nullifier.StatusUsed:
		p.fail("nullifier already registered")
		if o.Record != nil {
			p.field("circuit id", o.Record.CircuitID)
			p.field("registered at", o.Record.Timestamp)
		}
	default:
		p.warn("nullifier check failed: %v", o.Err)
	}
}

func (p *printer) entries(entries []history.Entry) {
	if len(entries) == 0 {
		p.dim("no verifications recorded")
		return
	}
	for i, e := range entries {
		if i > 0 {
			fmt.Fprintln(p.w)
		}
		p.header(fmt.Sprintf("%s  %s", e.PredicateType.Label(), shorten(e.TxHash)))
		p.field("nullifier", e.Nullifier)
		p.field("threshold", e.Threshold)
		p.field("status", confirmation(e))
		p.field("explorer", e.ExplorerURL())
	}
}

func confirmation(e history.Entry) string {
	switch {
	case e.Confirmed == nil:
		return "unknown"
	case *e.Confirmed:
		return successColor.Sprint("confirmed")
	default:
		return warnColor.Sprint("not found on chain")
	}
}

// shorten abbreviates long hex strings for display.
func shorten(h string) string {
	if len(h) <= 18 {
		return h
	}
	return h[:10] + "…" + h[len(h)-6:]
}

func joinLines(items []string) string {
	return strings.Join(items, "\n                     ")
}
