package display

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// TableFormatter builds aligned text tables for artifact and result listings
type TableFormatter interface {
	SetHeaders(headers []string)
	AddRow(row []string)
	SetColumnAlignment(column int, alignment Alignment)
	SetStyle(style TableStyle)
	Render() string
	RenderTo(writer io.Writer)
}

// Alignment represents column alignment options
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// TableStyle defines the visual style of a table
type TableStyle struct {
	Name            string
	Border          BorderStyle
	HeaderSeparator bool
	Padding         int
	MaxWidth        int // 0 means terminal width
}

// BorderStyle defines table border characters
type BorderStyle struct {
	TopLeft     string
	TopRight    string
	BottomLeft  string
	BottomRight string
	Horizontal  string
	Vertical    string
	Cross       string
	TopTee      string
	BottomTee   string
	LeftTee     string
	RightTee    string
}

var (
	ASCIIBorderStyle = BorderStyle{
		TopLeft: "+", TopRight: "+", BottomLeft: "+", BottomRight: "+",
		Horizontal: "-", Vertical: "|", Cross: "+",
		TopTee: "+", BottomTee: "+", LeftTee: "+", RightTee: "+",
	}

	RoundedBorderStyle = BorderStyle{
		TopLeft: "╭", TopRight: "╮", BottomLeft: "╰", BottomRight: "╯",
		Horizontal: "─", Vertical: "│", Cross: "┼",
		TopTee: "┬", BottomTee: "┴", LeftTee: "├", RightTee: "┤",
	}

	NoBorderStyle = BorderStyle{}
)

var (
	// DefaultTableStyle is a simple ASCII table
	DefaultTableStyle = TableStyle{
		Name:            "default",
		Border:          ASCIIBorderStyle,
		HeaderSeparator: true,
		Padding:         1,
	}

	// RoundedTableStyle uses Unicode box drawing characters
	RoundedTableStyle = TableStyle{
		Name:            "rounded",
		Border:          RoundedBorderStyle,
		HeaderSeparator: true,
		Padding:         1,
	}

	// CompactTableStyle has no borders at all
	CompactTableStyle = TableStyle{
		Name:    "compact",
		Padding: 1,
	}
)

// TableStyleByName returns a predefined style, defaulting to the ASCII style
func TableStyleByName(name string) TableStyle {
	switch name {
	case "rounded":
		return RoundedTableStyle
	case "compact", "minimal":
		return CompactTableStyle
	default:
		return DefaultTableStyle
	}
}

type tableFormatter struct {
	headers       []string
	rows          [][]string
	alignments    map[int]Alignment
	style         TableStyle
	colorSystem   ColorSystem
	theme         ColorTheme
	terminalWidth int
}

// NewTableFormatter creates a table formatter bound to a color system
func NewTableFormatter(colorSystem ColorSystem, theme ColorTheme) TableFormatter {
	return &tableFormatter{
		alignments:    make(map[int]Alignment),
		style:         DefaultTableStyle,
		colorSystem:   colorSystem,
		theme:         theme,
		terminalWidth: getTerminalWidth(),
	}
}

func (tf *tableFormatter) SetHeaders(headers []string) {
	tf.headers = headers
}

func (tf *tableFormatter) AddRow(row []string) {
	tf.rows = append(tf.rows, row)
}

func (tf *tableFormatter) SetColumnAlignment(column int, alignment Alignment) {
	tf.alignments[column] = alignment
}

func (tf *tableFormatter) SetStyle(style TableStyle) {
	tf.style = style
}

// Render returns the formatted table as a string
func (tf *tableFormatter) Render() string {
	if len(tf.headers) == 0 && len(tf.rows) == 0 {
		return ""
	}

	widths := tf.columnWidths()

	var result strings.Builder

	if tf.style.Border.Horizontal != "" {
		result.WriteString(tf.renderBorder(widths, tf.style.Border.TopLeft, tf.style.Border.TopTee, tf.style.Border.TopRight))
		result.WriteString("\n")
	}

	if len(tf.headers) > 0 {
		result.WriteString(tf.renderRow(tf.headers, widths, true))
		result.WriteString("\n")

		if tf.style.HeaderSeparator && tf.style.Border.Horizontal != "" {
			result.WriteString(tf.renderBorder(widths, tf.style.Border.LeftTee, tf.style.Border.Cross, tf.style.Border.RightTee))
			result.WriteString("\n")
		}
	}

	for _, row := range tf.rows {
		result.WriteString(tf.renderRow(row, widths, false))
		result.WriteString("\n")
	}

	if tf.style.Border.Horizontal != "" {
		result.WriteString(tf.renderBorder(widths, tf.style.Border.BottomLeft, tf.style.Border.BottomTee, tf.style.Border.BottomRight))
		result.WriteString("\n")
	}

	return result.String()
}

// RenderTo renders the table to the given writer
func (tf *tableFormatter) RenderTo(writer io.Writer) {
	fmt.Fprint(writer, tf.Render())
}

// columnWidths computes per-column widths from content, shrinking
// proportionally when the table would overflow the terminal.
func (tf *tableFormatter) columnWidths() []int {
	numCols := len(tf.headers)
	for _, row := range tf.rows {
		if len(row) > numCols {
			numCols = len(row)
		}
	}
	if numCols == 0 {
		return nil
	}

	widths := make([]int, numCols)
	for i, header := range tf.headers {
		widths[i] = utf8.RuneCountInString(header)
	}
	for _, row := range tf.rows {
		for i, cell := range row {
			if w := utf8.RuneCountInString(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	for i := range widths {
		widths[i] += tf.style.Padding * 2
	}

	maxWidth := tf.style.MaxWidth
	if maxWidth == 0 {
		maxWidth = tf.terminalWidth
	}
	if maxWidth <= 0 {
		return widths
	}

	total := 0
	for _, w := range widths {
		total += w
	}
	if tf.style.Border.Vertical != "" {
		total += numCols + 1
	}

	// Shrink the widest column first until the table fits or every column
	// is at its minimum.
	minWidth := tf.style.Padding*2 + 3
	for total > maxWidth {
		widest := -1
		for i, w := range widths {
			if w > minWidth && (widest == -1 || w > widths[widest]) {
				widest = i
			}
		}
		if widest == -1 {
			break
		}
		widths[widest]--
		total--
	}

	return widths
}

func (tf *tableFormatter) renderBorder(widths []int, left, tee, right string) string {
	var result strings.Builder

	result.WriteString(left)
	for i, width := range widths {
		result.WriteString(strings.Repeat(tf.style.Border.Horizontal, width))
		if i < len(widths)-1 {
			result.WriteString(tee)
		}
	}
	result.WriteString(right)

	return result.String()
}

func (tf *tableFormatter) renderRow(row []string, widths []int, isHeader bool) string {
	var result strings.Builder

	if tf.style.Border.Vertical != "" {
		result.WriteString(tf.style.Border.Vertical)
	}

	for i, width := range widths {
		var cell string
		if i < len(row) {
			cell = row[i]
		}

		alignment := AlignLeft
		if align, exists := tf.alignments[i]; exists {
			alignment = align
		}

		result.WriteString(tf.formatCell(cell, width, alignment, isHeader))

		if tf.style.Border.Vertical != "" {
			result.WriteString(tf.style.Border.Vertical)
		}
	}

	return result.String()
}

// formatCell pads, aligns and truncates a single cell
func (tf *tableFormatter) formatCell(content string, width int, alignment Alignment, isHeader bool) string {
	contentWidth := width - tf.style.Padding*2
	if contentWidth < 0 {
		contentWidth = 0
	}

	if utf8.RuneCountInString(content) > contentWidth {
		runes := []rune(content)
		if contentWidth > 3 {
			content = string(runes[:contentWidth-3]) + "..."
		} else {
			content = string(runes[:contentWidth])
		}
	}

	// Measure before colorizing so ANSI escape codes do not count as width.
	totalPadding := contentWidth - utf8.RuneCountInString(content)
	if totalPadding < 0 {
		totalPadding = 0
	}

	if isHeader && tf.colorSystem != nil && tf.colorSystem.IsColorSupported() {
		content = tf.colorSystem.Colorize(content, tf.theme.Primary)
	}

	var leftPad, rightPad int
	switch alignment {
	case AlignCenter:
		leftPad = totalPadding / 2
		rightPad = totalPadding - leftPad
	case AlignRight:
		leftPad = totalPadding
	default:
		rightPad = totalPadding
	}

	leftPad += tf.style.Padding
	rightPad += tf.style.Padding

	return strings.Repeat(" ", leftPad) + content + strings.Repeat(" ", rightPad)
}

// getTerminalWidth returns the current terminal width
func getTerminalWidth() int {
	width, _, err := term.GetSize(0)
	if err != nil {
		return 80
	}
	return width
}
