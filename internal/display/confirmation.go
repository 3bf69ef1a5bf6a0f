package display

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Prompt asks yes/no questions before destructive operations. The default
// answer is always no; EOF on the input declines as well, so piped
// invocations never hang or destroy anything.
type Prompt struct {
	display Service
	reader  *bufio.Reader
}

// NewPrompt creates a prompt reading from stdin and writing through the
// display service.
func NewPrompt(display Service) *Prompt {
	return &Prompt{
		display: display,
		reader:  bufio.NewReader(os.Stdin),
	}
}

// WithReader replaces the input source.
func (p *Prompt) WithReader(reader io.Reader) *Prompt {
	p.reader = bufio.NewReader(reader)
	return p
}

// Confirm prints the detail lines and the question, then waits for an
// answer. Only "y" and "yes" confirm.
func (p *Prompt) Confirm(question string, details ...string) bool {
	writer := p.display.Writer()

	for _, detail := range details {
		fmt.Fprintf(writer, "  %s\n", detail)
	}
	if len(details) > 0 {
		fmt.Fprintln(writer)
	}

	icon := p.display.RenderIcon("warning")
	if icon != "" {
		icon += " "
	}
	fmt.Fprintf(writer, "%s%s [y/N]: ", icon, question)

	answer, err := p.reader.ReadString('\n')
	if err != nil && answer == "" {
		fmt.Fprintln(writer)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
