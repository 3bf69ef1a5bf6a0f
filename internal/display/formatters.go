package display

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Formatter renders command output in a machine-readable format. The table
// format is handled separately by TableFormatter; everything else goes
// through one of these.
type Formatter interface {
	FormatTable(headers []string, rows [][]string) (string, error)
	FormatDocument(v interface{}) (string, error)
	FormatMessage(level, message string) (string, error)
}

// JSONFormatter renders output as indented JSON
type JSONFormatter struct {
	indent string
}

// NewJSONFormatter creates a JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{indent: "  "}
}

// FormatTable renders rows as an array of header-keyed objects
func (f *JSONFormatter) FormatTable(headers []string, rows [][]string) (string, error) {
	data := rowsToMaps(headers, rows)

	jsonData, err := json.MarshalIndent(data, "", f.indent)
	if err != nil {
		return "", fmt.Errorf("failed to marshal table to JSON: %w", err)
	}

	return string(jsonData), nil
}

// FormatDocument renders an arbitrary value as JSON
func (f *JSONFormatter) FormatDocument(v interface{}) (string, error) {
	jsonData, err := json.MarshalIndent(v, "", f.indent)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document to JSON: %w", err)
	}

	return string(jsonData), nil
}

// FormatMessage renders a status message as JSON
func (f *JSONFormatter) FormatMessage(level, message string) (string, error) {
	return f.FormatDocument(map[string]string{
		"level":   level,
		"message": message,
	})
}

// YAMLFormatter renders output as YAML
type YAMLFormatter struct{}

// NewYAMLFormatter creates a YAML formatter
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// FormatTable renders rows as a YAML sequence of header-keyed maps
func (f *YAMLFormatter) FormatTable(headers []string, rows [][]string) (string, error) {
	yamlData, err := yaml.Marshal(rowsToMaps(headers, rows))
	if err != nil {
		return "", fmt.Errorf("failed to marshal table to YAML: %w", err)
	}

	return string(yamlData), nil
}

// FormatDocument renders an arbitrary value as YAML
func (f *YAMLFormatter) FormatDocument(v interface{}) (string, error) {
	yamlData, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document to YAML: %w", err)
	}

	return string(yamlData), nil
}

// FormatMessage renders a status message as YAML
func (f *YAMLFormatter) FormatMessage(level, message string) (string, error) {
	return f.FormatDocument(map[string]string{
		"level":   level,
		"message": message,
	})
}

// CompactFormatter renders minimal tab-separated output for scripting
type CompactFormatter struct {
	separator      string
	includeHeaders bool
}

// NewCompactFormatter creates a compact formatter with tab separation
func NewCompactFormatter() *CompactFormatter {
	return &CompactFormatter{
		separator:      "\t",
		includeHeaders: true,
	}
}

// SetSeparator changes the field separator
func (f *CompactFormatter) SetSeparator(separator string) {
	f.separator = separator
}

// SetIncludeHeaders controls whether the header line is emitted
func (f *CompactFormatter) SetIncludeHeaders(include bool) {
	f.includeHeaders = include
}

// FormatTable renders separator-joined rows, one per line
func (f *CompactFormatter) FormatTable(headers []string, rows [][]string) (string, error) {
	var result strings.Builder

	if f.includeHeaders && len(headers) > 0 {
		result.WriteString(strings.Join(headers, f.separator))
		result.WriteString("\n")
	}

	for _, row := range rows {
		padded := make([]string, len(headers))
		for i := range headers {
			if i < len(row) {
				padded[i] = row[i]
			}
		}
		result.WriteString(strings.Join(padded, f.separator))
		result.WriteString("\n")
	}

	return result.String(), nil
}

// FormatDocument renders a value as single-line JSON for piping
func (f *CompactFormatter) FormatDocument(v interface{}) (string, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	return string(jsonData), nil
}

// FormatMessage renders a status message as LEVEL:message
func (f *CompactFormatter) FormatMessage(level, message string) (string, error) {
	return fmt.Sprintf("%s:%s", strings.ToUpper(level), message), nil
}

// rowsToMaps converts table rows into header-keyed maps, padding short rows
func rowsToMaps(headers []string, rows [][]string) []map[string]string {
	var data []map[string]string

	for _, row := range rows {
		rowMap := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(row) {
				rowMap[header] = row[i]
			} else {
				rowMap[header] = ""
			}
		}
		data = append(data, rowMap)
	}

	return data
}

// FormatterRegistry manages the available output formatters
type FormatterRegistry struct {
	formatters map[OutputFormat]Formatter
}

// NewFormatterRegistry creates a registry with the default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[OutputFormat]Formatter),
	}

	registry.Register(FormatJSON, NewJSONFormatter())
	registry.Register(FormatYAML, NewYAMLFormatter())
	registry.Register(FormatCompact, NewCompactFormatter())

	return registry
}

// Register registers a formatter for an output format
func (r *FormatterRegistry) Register(format OutputFormat, formatter Formatter) {
	r.formatters[format] = formatter
}

// Get returns the formatter for the given format
func (r *FormatterRegistry) Get(format OutputFormat) (Formatter, bool) {
	formatter, exists := r.formatters[format]
	return formatter, exists
}
