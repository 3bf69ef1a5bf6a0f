package display

import (
	"os"
	"unicode/utf8"

	"github.com/mattn/go-isatty"
)

// Icon represents a visual icon with Unicode and ASCII fallbacks
type Icon struct {
	Unicode string
	ASCII   string
	Color   Color
}

// IconSystem handles icon rendering with fallbacks
type IconSystem interface {
	GetIcon(name string) Icon
	RenderIcon(name string) string
	RenderIconWithColor(name string, colorSystem ColorSystem) string
	IsUnicodeSupported() bool
	SetUnicodeSupport(enabled bool)
}

type iconSystem struct {
	unicodeSupported bool
	icons            map[string]Icon
}

// NewIconSystem creates an icon system with Unicode detection
func NewIconSystem() IconSystem {
	is := &iconSystem{
		unicodeSupported: detectUnicodeSupport(),
	}

	is.initializeIcons()
	return is
}

// detectUnicodeSupport checks if the terminal renders Unicode characters
func detectUnicodeSupport() bool {
	if os.Getenv("FORCE_UNICODE") != "" {
		return true
	}

	if os.Getenv("NO_UNICODE") != "" {
		return false
	}

	if os.Getenv("LANG") == "C" || os.Getenv("LC_ALL") == "C" {
		return false
	}

	term := os.Getenv("TERM")
	if term == "dumb" || term == "vt100" {
		return false
	}

	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return false
	}

	return true
}

// initializeIcons sets up the predefined icon mappings
func (is *iconSystem) initializeIcons() {
	is.icons = map[string]Icon{
		// Per-database outcome icons
		"uploaded": {
			Unicode: "⬆",
			ASCII:   "[UP]",
			Color:   ColorGreen,
		},
		"unchanged": {
			Unicode: "≡",
			ASCII:   "[=]",
			Color:   ColorCyan,
		},
		"failed": {
			Unicode: "✗",
			ASCII:   "[FAIL]",
			Color:   ColorRed,
		},

		// Object icons
		"database": {
			Unicode: "🗄",
			ASCII:   "[DB]",
			Color:   ColorBlue,
		},
		"archive": {
			Unicode: "📦",
			ASCII:   "[AR]",
			Color:   ColorBlue,
		},
		"storage": {
			Unicode: "☁",
			ASCII:   "[ST]",
			Color:   ColorCyan,
		},
		"encrypted": {
			Unicode: "🔒",
			ASCII:   "[ENC]",
			Color:   ColorMagenta,
		},
		"prune": {
			Unicode: "🗑",
			ASCII:   "[DEL]",
			Color:   ColorYellow,
		},

		// Status icons
		"success": {
			Unicode: "✅",
			ASCII:   "[OK]",
			Color:   ColorGreen,
		},
		"error": {
			Unicode: "❌",
			ASCII:   "[ERR]",
			Color:   ColorRed,
		},
		"warning": {
			Unicode: "⚠",
			ASCII:   "[WARN]",
			Color:   ColorYellow,
		},
		"info": {
			Unicode: "ℹ",
			ASCII:   "[INFO]",
			Color:   ColorBlue,
		},

		// List decoration
		"arrow-right": {
			Unicode: "→",
			ASCII:   "->",
			Color:   ColorBlue,
		},
		"bullet": {
			Unicode: "•",
			ASCII:   "*",
			Color:   ColorWhite,
		},
	}
}

// GetIcon returns the icon for the given name
func (is *iconSystem) GetIcon(name string) Icon {
	if icon, exists := is.icons[name]; exists {
		return icon
	}
	return Icon{
		Unicode: "?",
		ASCII:   "?",
		Color:   ColorWhite,
	}
}

// RenderIcon returns the Unicode or ASCII representation of an icon
func (is *iconSystem) RenderIcon(name string) string {
	icon := is.GetIcon(name)

	if is.unicodeSupported && utf8.ValidString(icon.Unicode) {
		return icon.Unicode
	}

	return icon.ASCII
}

// RenderIconWithColor returns the icon with its color applied
func (is *iconSystem) RenderIconWithColor(name string, colorSystem ColorSystem) string {
	icon := is.GetIcon(name)
	iconText := is.RenderIcon(name)

	if colorSystem.IsColorSupported() {
		return colorSystem.Colorize(iconText, icon.Color)
	}

	return iconText
}

// IsUnicodeSupported returns whether Unicode is supported
func (is *iconSystem) IsUnicodeSupported() bool {
	return is.unicodeSupported
}

// SetUnicodeSupport manually sets Unicode support
func (is *iconSystem) SetUnicodeSupport(enabled bool) {
	is.unicodeSupported = enabled
}
