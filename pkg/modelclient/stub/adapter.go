// Package stub provides local-only Transport implementations used for
// testing: Replay (returns a fixed scripted sequence of
// responses), Human (reads a response from stdin, for manual debugging
// sessions), and InstantEmptySubmit (always immediately submits an empty
// flag, used to drive the engine's plumbing without a real model or
// solver-facing terminal).
package stub

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Cyber-Gym/enigma-plus/pkg/modelclient"
)

// Replay returns a scripted sequence of responses, one per call, looping
// back to the first once exhausted. It never retries; it returns an error
// only when the script is empty.
type Replay struct {
	mu        sync.Mutex
	responses []string
	next      int
}

// NewReplay creates a Replay transport over a fixed response script.
func NewReplay(responses []string) *Replay {
	return &Replay{responses: responses}
}

// Submit implements modelclient.Transport.
func (r *Replay) Submit(_ context.Context, _ []modelclient.Message) (string, int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.responses) == 0 {
		return "", 0, 0, fmt.Errorf("replay: no responses configured")
	}
	resp := r.responses[r.next%len(r.responses)]
	r.next++
	return resp, 0, 0, nil
}

// Human reads one line from an input stream as the "model" response,
// printing the conversation history to an output stream first so an
// operator can read it before answering.
type Human struct {
	in  *bufio.Reader
	out io.Writer
}

// NewHuman creates a Human transport driven by in/out (typically os.Stdin
// and os.Stdout).
func NewHuman(in io.Reader, out io.Writer) *Human {
	return &Human{in: bufio.NewReader(in), out: out}
}

// Submit implements modelclient.Transport.
func (h *Human) Submit(_ context.Context, history []modelclient.Message) (string, int, int, error) {
	for _, m := range history {
		fmt.Fprintf(h.out, "[%s] %s\n", m.Role, m.Content)
	}
	fmt.Fprint(h.out, "> ")

	line, err := h.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", 0, 0, fmt.Errorf("human: reading response: %w", err)
	}
	return line, 0, 0, nil
}

// InstantEmptySubmit always responds with an empty-flag submission action,
// used to exercise the engine end-to-end without a real model or solver.
type InstantEmptySubmit struct {
	SubmitText string
}

// NewInstantEmptySubmit creates an InstantEmptySubmit transport that always
// returns submitText (defaulting to "submit" if empty).
func NewInstantEmptySubmit(submitText string) *InstantEmptySubmit {
	if submitText == "" {
		submitText = "submit"
	}
	return &InstantEmptySubmit{SubmitText: submitText}
}

// Submit implements modelclient.Transport.
func (i *InstantEmptySubmit) Submit(_ context.Context, _ []modelclient.Message) (string, int, int, error) {
	return i.SubmitText, 0, 0, nil
}
