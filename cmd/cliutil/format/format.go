package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/pflag"
)

// OutputFormat selects how list commands print their results. It is a pflag.Value so an
// unknown format fails while the flags are parsed.
type OutputFormat string

const (
	TableFormat OutputFormat = "table"
	JSONFormat  OutputFormat = "json"
)

const flagName = "output"

var formats = []OutputFormat{TableFormat, JSONFormat}

// ParseOutputFormat parses a case-insensitive format name. Empty means table.
func ParseOutputFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return TableFormat, nil
	}
	if !lo.Contains(formats, f) {
		names := lo.Map(formats, func(f OutputFormat, _ int) string { return string(f) })
		return "", fmt.Errorf("unknown output format %q (valid formats: %s)", s, strings.Join(names, ", "))
	}
	return f, nil
}

func (f *OutputFormat) String() string { return string(*f) }

func (f *OutputFormat) Set(s string) error {
	parsed, err := ParseOutputFormat(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (f *OutputFormat) Type() string { return "format" }

// AddFlag registers -o/--output on flags, defaulting to table.
func AddFlag(flags *pflag.FlagSet) {
	f := TableFormat
	flags.VarP(&f, flagName, "o", "Output format: table or json")
}

// FromFlags returns the format chosen with the flag AddFlag registered.
func FromFlags(flags *pflag.FlagSet) (OutputFormat, error) {
	fl := flags.Lookup(flagName)
	if fl == nil {
		return TableFormat, nil
	}
	return ParseOutputFormat(fl.Value.String())
}

type Formatter interface {
	Format(data any) error
}

// NewFormatter returns the formatter for format writing to w.
func NewFormatter(format OutputFormat, w io.Writer) Formatter {
	if format == JSONFormat {
		return &JSONFormatter{writer: w}
	}
	return &TableFormatter{writer: w}
}

// JSONFormatter writes indented JSON without HTML escaping.
type JSONFormatter struct {
	writer io.Writer
}

func (f *JSONFormatter) Format(data any) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(data)
}
