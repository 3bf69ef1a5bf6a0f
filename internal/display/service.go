package display

import (
	"fmt"
	"io"
	"strings"
)

// Service provides formatting and output for the interactive commands.
// Backup runs themselves log through internal/logging; the service covers
// the human-facing surfaces such as artifact listings, prune previews and
// status messages.
type Service interface {
	// Status messages
	Success(message string)
	Warning(message string)
	Error(message string)
	Info(message string)

	// Structured output
	PrintHeader(title string)
	PrintTable(headers []string, rows [][]string)

	// Icon rendering
	RenderIcon(name string) string

	// Building blocks
	NewTableFormatter() TableFormatter
	Formatter(format OutputFormat) (Formatter, bool)

	// Output control
	Writer() io.Writer
	SetWriter(writer io.Writer)
	Config() *Config
}

// OutputFormat selects how list-style command output is rendered.
type OutputFormat string

const (
	FormatTable   OutputFormat = "table"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatCompact OutputFormat = "compact"
)

// ParseOutputFormat maps a --format flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	case string(FormatCompact), "tsv":
		return FormatCompact, nil
	default:
		return "", fmt.Errorf("unsupported output format %q, expected table, json, yaml or compact", s)
	}
}

// Color represents terminal color options
type Color int

const (
	ColorReset Color = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorWhite
	ColorBrightRed
	ColorBrightGreen
	ColorBrightYellow
	ColorBrightBlue
	ColorBrightCyan
	ColorBrightWhite
)

// ColorTheme defines the color scheme for different message types
type ColorTheme struct {
	Primary   Color
	Success   Color
	Warning   Color
	Error     Color
	Info      Color
	Muted     Color
	Highlight Color
}

// DarkColorTheme returns a color theme for dark terminals
func DarkColorTheme() ColorTheme {
	return ColorTheme{
		Primary:   ColorBrightBlue,
		Success:   ColorBrightGreen,
		Warning:   ColorBrightYellow,
		Error:     ColorBrightRed,
		Info:      ColorCyan,
		Muted:     ColorWhite,
		Highlight: ColorBrightWhite,
	}
}

// LightColorTheme returns a color theme for light terminals
func LightColorTheme() ColorTheme {
	return ColorTheme{
		Primary:   ColorBlue,
		Success:   ColorGreen,
		Warning:   ColorYellow,
		Error:     ColorRed,
		Info:      ColorCyan,
		Muted:     ColorMagenta,
		Highlight: ColorBlue,
	}
}

// PlainTextTheme returns a theme that applies no colors
func PlainTextTheme() ColorTheme {
	return ColorTheme{
		Primary:   ColorReset,
		Success:   ColorReset,
		Warning:   ColorReset,
		Error:     ColorReset,
		Info:      ColorReset,
		Muted:     ColorReset,
		Highlight: ColorReset,
	}
}

// GetThemeByName returns a color theme by name, defaulting to the dark theme
func GetThemeByName(name string) ColorTheme {
	switch name {
	case "light":
		return LightColorTheme()
	case "plain", "none":
		return PlainTextTheme()
	default:
		return DarkColorTheme()
	}
}
