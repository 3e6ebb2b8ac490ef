// Package output provides output formatting for the Jack CLI.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Format represents the output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (valid: table, json, yaml)", s)
	}
}

// Formatter formats output in various formats
type Formatter struct {
	Format Format
	Quiet  bool
	Writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(format Format, quiet bool) *Formatter {
	return &Formatter{
		Format: format,
		Quiet:  quiet,
		Writer: os.Stdout,
	}
}

// Print outputs data in the configured format. Table format expects
// rows of label/value pairs.
func (f *Formatter) Print(rows [][]string, data interface{}) error {
	if f.Quiet {
		return nil
	}

	switch f.Format {
	case FormatJSON:
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(f.Writer)
		defer enc.Close()
		return enc.Encode(data)
	default:
		table := tablewriter.NewWriter(f.Writer)
		table.SetBorder(false)
		table.SetColumnSeparator("")
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, row := range rows {
			table.Append(row)
		}
		table.Render()
		return nil
	}
}

// Warn prints a warning line to stderr, regardless of format
func (f *Formatter) Warn(message string) {
	fmt.Fprintln(os.Stderr, "Warning:", message)
}
