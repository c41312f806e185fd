// Package ui is the output surface the agent loop and the CLI talk to.
package ui

import (
	"fmt"
	"io"
	"sync"
)

type UI interface {
	// UpdateStatus reports a state change such as "Task completed!".
	UpdateStatus(status string)
	// UpdateIteration reports the number of the completion about to be requested.
	UpdateIteration(iter int)
	// Log shows conversation text: replies and command output.
	Log(msg string)
}

type SilentUI struct{}

func (s SilentUI) UpdateStatus(status string) {}
func (s SilentUI) UpdateIteration(iter int)   {}
func (s SilentUI) Log(msg string)             {}

// Console writes conversation text to Out and status lines to Err.
// Iterations are only shown when Verbose is set.
type Console struct {
	mu      sync.Mutex
	Out     io.Writer
	Err     io.Writer
	Verbose bool
}

// NewConsole returns a console writing everything to out and err.
func NewConsole(out, err io.Writer, verbose bool) *Console {
	return &Console{Out: out, Err: err, Verbose: verbose}
}

func (c *Console) UpdateStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.Out, status)
}

func (c *Console) UpdateIteration(iter int) {
	if !c.Verbose {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.Err, "-- request %d\n", iter)
}

func (c *Console) Log(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.Out, msg)
}
