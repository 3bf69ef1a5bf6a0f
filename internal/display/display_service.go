package display

import (
	"fmt"
	"io"
	"strings"
)

type displayService struct {
	config            *Config
	colorSystem       ColorSystem
	iconSystem        IconSystem
	writer            io.Writer
	formatterRegistry *FormatterRegistry
}

// NewService creates a display service with the given configuration.
// A nil config uses the defaults.
func NewService(config *Config) Service {
	if config == nil {
		config = DefaultConfig()
	}
	config.SetDefaults()

	theme := GetThemeByName(config.Theme)
	if !config.IsColorEnabled() {
		theme = PlainTextTheme()
	}

	return &displayService{
		config:            config,
		colorSystem:       NewColorSystem(theme, config.IsColorEnabled()),
		iconSystem:        NewIconSystem(),
		writer:            config.Writer,
		formatterRegistry: NewFormatterRegistry(),
	}
}

// Success prints a success message
func (ds *displayService) Success(message string) {
	ds.printStatus("success", ds.colorSystem.Theme().Success, message)
}

// Warning prints a warning message
func (ds *displayService) Warning(message string) {
	ds.printStatus("warning", ds.colorSystem.Theme().Warning, message)
}

// Error prints an error message
func (ds *displayService) Error(message string) {
	ds.printStatus("error", ds.colorSystem.Theme().Error, message)
}

// Info prints an informational message
func (ds *displayService) Info(message string) {
	if ds.config.QuietMode {
		return
	}
	ds.printStatus("info", ds.colorSystem.Theme().Info, message)
}

func (ds *displayService) printStatus(icon string, clr Color, message string) {
	var prefix string
	if ds.config.IsIconsEnabled() {
		prefix = ds.iconSystem.RenderIconWithColor(icon, ds.colorSystem) + " "
	}

	fmt.Fprintln(ds.writer, prefix+ds.colorSystem.Colorize(message, clr))
}

// PrintHeader prints a section header with an underline
func (ds *displayService) PrintHeader(title string) {
	if ds.config.QuietMode {
		return
	}

	fmt.Fprintln(ds.writer, ds.colorSystem.Colorize(title, ds.colorSystem.Theme().Primary))
	fmt.Fprintln(ds.writer, strings.Repeat("=", len(title)))
}

// PrintTable renders a table with the configured style
func (ds *displayService) PrintTable(headers []string, rows [][]string) {
	formatter := ds.NewTableFormatter()
	formatter.SetHeaders(headers)
	for _, row := range rows {
		formatter.AddRow(row)
	}
	formatter.RenderTo(ds.writer)
}

// RenderIcon renders a named icon with color
func (ds *displayService) RenderIcon(name string) string {
	if !ds.config.IsIconsEnabled() {
		return ""
	}
	return ds.iconSystem.RenderIconWithColor(name, ds.colorSystem)
}

// NewTableFormatter creates a table formatter using the configured style
func (ds *displayService) NewTableFormatter() TableFormatter {
	formatter := NewTableFormatter(ds.colorSystem, ds.colorSystem.Theme())
	formatter.SetStyle(TableStyleByName(ds.config.TableStyle))
	return formatter
}

// Formatter returns the machine-readable formatter for the given format
func (ds *displayService) Formatter(format OutputFormat) (Formatter, bool) {
	return ds.formatterRegistry.Get(format)
}

// Writer returns the current output writer
func (ds *displayService) Writer() io.Writer {
	return ds.writer
}

// SetWriter redirects output to another writer
func (ds *displayService) SetWriter(writer io.Writer) {
	ds.writer = writer
}

// Config returns the active display configuration
func (ds *displayService) Config() *Config {
	return ds.config
}
