// Package output renders command results as tables, JSON or YAML.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Format selects how a command prints its result.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses the value of an -o/--output flag. Empty selects
// FormatTable.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

func (f Format) String() string {
	return string(f)
}

// Printer writes command results to out in a fixed format.
type Printer struct {
	out    io.Writer
	format Format
	color  bool
}

// NewPrinter creates a Printer. Status messages are colored only when
// useColor is set.
func NewPrinter(out io.Writer, format Format, useColor bool) *Printer {
	return &Printer{out: out, format: format, color: useColor}
}

// Format returns the printer's output format.
func (p *Printer) Format() Format {
	return p.format
}

// Print renders data. Table output requires data to implement
// TableRenderer; anything else falls back to JSON.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatTable:
		if renderer, ok := data.(TableRenderer); ok {
			return PrintTable(p.out, renderer)
		}
		return PrintJSON(p.out, data)
	case FormatJSON:
		return PrintJSON(p.out, data)
	case FormatYAML:
		return PrintYAML(p.out, data)
	default:
		return fmt.Errorf("unknown format: %s", p.format)
	}
}

// Success prints msg in green.
func (p *Printer) Success(msg string) {
	p.status(color.FgGreen, msg)
}

// Warning prints msg in yellow.
func (p *Printer) Warning(msg string) {
	p.status(color.FgYellow, msg)
}

// Error prints msg in red.
func (p *Printer) Error(msg string) {
	p.status(color.FgRed, msg)
}

func (p *Printer) status(attr color.Attribute, msg string) {
	c := color.New(attr)
	if p.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	_, _ = c.Fprintln(p.out, msg)
}
