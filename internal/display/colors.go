package display

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// ColorSystem handles color application and terminal detection
type ColorSystem interface {
	Colorize(text string, color Color) string
	Sprintf(color Color, format string, args ...interface{}) string
	IsColorSupported() bool
	Theme() ColorTheme
}

type colorSystem struct {
	theme          ColorTheme
	colorSupported bool
	colorMap       map[Color]*color.Color
}

// NewColorSystem creates a color system with terminal detection. Passing
// enabled=false forces colors off regardless of the terminal.
func NewColorSystem(theme ColorTheme, enabled bool) ColorSystem {
	cs := &colorSystem{
		theme:          theme,
		colorSupported: enabled && detectColorSupport(),
	}

	cs.colorMap = map[Color]*color.Color{
		ColorReset:        color.New(color.Reset),
		ColorRed:          color.New(color.FgRed),
		ColorGreen:        color.New(color.FgGreen),
		ColorYellow:       color.New(color.FgYellow),
		ColorBlue:         color.New(color.FgBlue),
		ColorMagenta:      color.New(color.FgMagenta),
		ColorCyan:         color.New(color.FgCyan),
		ColorWhite:        color.New(color.FgWhite),
		ColorBrightRed:    color.New(color.FgHiRed),
		ColorBrightGreen:  color.New(color.FgHiGreen),
		ColorBrightYellow: color.New(color.FgHiYellow),
		ColorBrightBlue:   color.New(color.FgHiBlue),
		ColorBrightCyan:   color.New(color.FgHiCyan),
		ColorBrightWhite:  color.New(color.FgHiWhite),
	}

	if !cs.colorSupported {
		color.NoColor = true
	}

	return cs
}

// detectColorSupport checks whether stdout is a color-capable terminal
func detectColorSupport() bool {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return false
	}

	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}

	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}

	return termenv.ColorProfile() != termenv.Ascii
}

// Colorize applies color to text if color is supported
func (cs *colorSystem) Colorize(text string, clr Color) string {
	if !cs.colorSupported || clr == ColorReset {
		return text
	}

	if colorFunc, exists := cs.colorMap[clr]; exists {
		return colorFunc.Sprint(text)
	}

	return text
}

// Sprintf formats text and applies color to the result
func (cs *colorSystem) Sprintf(clr Color, format string, args ...interface{}) string {
	return cs.Colorize(fmt.Sprintf(format, args...), clr)
}

// IsColorSupported returns whether colors are supported
func (cs *colorSystem) IsColorSupported() bool {
	return cs.colorSupported
}

// Theme returns the active color theme
func (cs *colorSystem) Theme() ColorTheme {
	return cs.theme
}
