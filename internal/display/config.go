package display

import (
	"io"
	"os"
)

// Config holds the visual options for command output
type Config struct {
	ColorEnabled bool
	Theme        string
	UseIcons     bool
	QuietMode    bool
	TableStyle   string

	Writer io.Writer
}

// DefaultConfig returns the default display configuration
func DefaultConfig() *Config {
	return &Config{
		ColorEnabled: true,
		Theme:        "dark",
		UseIcons:     true,
		TableStyle:   "default",
		Writer:       os.Stdout,
	}
}

// SetDefaults fills unset fields
func (c *Config) SetDefaults() {
	if c.Theme == "" {
		c.Theme = "dark"
	}
	if c.TableStyle == "" {
		c.TableStyle = "default"
	}
	if c.Writer == nil {
		c.Writer = os.Stdout
	}
}

// IsColorEnabled returns true if colors should be used
func (c *Config) IsColorEnabled() bool {
	return c.ColorEnabled && !c.QuietMode
}

// IsIconsEnabled returns true if icons should be used
func (c *Config) IsIconsEnabled() bool {
	return c.UseIcons && !c.QuietMode
}
