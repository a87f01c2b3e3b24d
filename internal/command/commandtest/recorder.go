// Package commandtest provides a recording command.Runner for tests.
package commandtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hut8labs/palimpsest/internal/command"
)

// ErrInjected is the cause carried by failures configured with FailOn.
var ErrInjected = errors.New("injected failure")

// Recorder is a command.Runner that records every command instead of
// executing it.
type Recorder struct {
	mu      sync.Mutex
	cmds    []command.Cmd
	outputs map[string][]string
	fail    map[string]bool
	hooks   map[string]func(command.Cmd)
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		outputs: make(map[string][]string),
		fail:    make(map[string]bool),
		hooks:   make(map[string]func(command.Cmd)),
	}
}

// Respond queues stdout for the next invocations of the named tool. When
// the queue is drained, the last output is repeated.
func (r *Recorder) Respond(name string, outputs ...string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[name] = append(r.outputs[name], outputs...)
	return r
}

// FailOn makes every invocation of the named tool fail with a
// *command.ToolError.
func (r *Recorder) FailOn(name string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[name] = true
	return r
}

// OnRun registers fn to be called whenever the named tool runs, before
// its result is returned. Tests use it to emulate side effects such as
// truncate creating a file.
func (r *Recorder) OnRun(name string, fn func(command.Cmd)) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[name] = fn
	return r
}

// Run implements command.Runner.
func (r *Recorder) Run(_ context.Context, c command.Cmd) (string, error) {
	r.mu.Lock()
	r.cmds = append(r.cmds, c)
	hook := r.hooks[c.Name]
	failed := r.fail[c.Name]
	var out string
	if q := r.outputs[c.Name]; len(q) > 0 {
		out = q[0]
		if len(q) > 1 {
			r.outputs[c.Name] = q[1:]
		}
	}
	r.mu.Unlock()

	if failed {
		return "", &command.ToolError{
			Cmd:    c,
			Output: fmt.Sprintf("%s: failed", c.Name),
			Cause:  ErrInjected,
		}
	}
	if hook != nil {
		hook(c)
	}
	return out, nil
}

// Commands returns a copy of the recorded commands.
func (r *Recorder) Commands() []command.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]command.Cmd(nil), r.cmds...)
}

// Lines returns the recorded commands rendered as command lines.
func (r *Recorder) Lines() []string {
	cmds := r.Commands()
	lines := make([]string, len(cmds))
	for i, c := range cmds {
		lines[i] = c.String()
	}
	return lines
}

// Names returns the tool name of each recorded command.
func (r *Recorder) Names() []string {
	cmds := r.Commands()
	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = c.Name
	}
	return names
}
