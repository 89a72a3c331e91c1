package display

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// ProdConfirmPhrase must be typed verbatim to confirm a destructive
// operation on a prod-role environment.
const ProdConfirmPhrase = "UPDATE PRODUCTION"

// Confirmer prompts the operator for explicit approval. An interrupt while
// waiting counts as a decline.
type Confirmer struct {
	display *Service
	in      io.Reader
	// AutoApprove skips the prompt; set from --yes.
	AutoApprove bool
}

// NewConfirmer creates a confirmer reading from stdin.
func NewConfirmer(display *Service, autoApprove bool) *Confirmer {
	return &Confirmer{
		display:     display,
		in:          os.Stdin,
		AutoApprove: autoApprove,
	}
}

// NewConfirmerWithReader creates a confirmer for tests.
func NewConfirmerWithReader(display *Service, in io.Reader) *Confirmer {
	return &Confirmer{display: display, in: in}
}

// Confirm asks a yes/no question. A non-interactive stdin without
// AutoApprove declines, so unattended runs never proceed silently.
func (c *Confirmer) Confirm(question string) (bool, error) {
	if c.AutoApprove {
		c.display.Info("Auto-approved: %s", question)
		return true, nil
	}
	if !c.interactive() {
		c.display.Warning("Not a terminal and --yes not given; declining: %s", question)
		return false, nil
	}

	answer, err := c.prompt(fmt.Sprintf("%s [y/N]: ", question))
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

// ConfirmPhrase requires the operator to type an exact phrase, used before
// destructive operations on prod-role environments.
func (c *Confirmer) ConfirmPhrase(question, phrase string) (bool, error) {
	if c.AutoApprove {
		c.display.Info("Auto-approved: %s", question)
		return true, nil
	}
	if !c.interactive() {
		c.display.Warning("Not a terminal and --yes not given; declining: %s", question)
		return false, nil
	}

	c.display.Warning("%s", question)
	answer, err := c.prompt(fmt.Sprintf("Type %q to continue: ", phrase))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(answer) == phrase, nil
}

// interactive reports whether a prompt can actually be answered.
func (c *Confirmer) interactive() bool {
	if c.in != os.Stdin {
		return true
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// prompt reads one line, treating SIGINT/SIGTERM while waiting as a
// decline.
func (c *Confirmer) prompt(question string) (string, error) {
	fmt.Fprint(os.Stderr, question)

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)

	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(c.in).ReadString('\n')
		if err != nil && err != io.EOF {
			errs <- err
			return
		}
		lines <- line
	}()

	select {
	case <-interrupts:
		fmt.Fprintln(os.Stderr)
		c.display.Warning("Operation cancelled")
		return "", nil
	case err := <-errs:
		return "", fmt.Errorf("failed to read confirmation input: %w", err)
	case line := <-lines:
		return line, nil
	}
}
