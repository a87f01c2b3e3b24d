/*
   Copyright The containerd Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package command runs the external tools palimpsest is built on.
//
// Every invocation goes through a Runner so that the exact sequence of
// tool invocations can be echoed and tested.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/containerd/log"
	"github.com/fatih/color"

	"github.com/hut8labs/palimpsest/internal/stringutil"
)

// maxLogOutput bounds the tool output repeated in debug logs. The
// output itself is passed through in full.
const maxLogOutput = 256

var echoColor = color.New(color.FgCyan)

// Cmd is a single external tool invocation.
type Cmd struct {
	// Name is the executable, resolved through PATH.
	Name string
	// Args are passed verbatim.
	Args []string
	// Stdin, when non-empty, is written to the tool's standard input.
	Stdin string
}

// New returns a Cmd for name with args.
func New(name string, args ...string) Cmd {
	return Cmd{Name: name, Args: args}
}

// WithStdin returns a copy of c that feeds s to the tool's standard input.
func (c Cmd) WithStdin(s string) Cmd {
	c.Stdin = s
	return c
}

// String renders c as a shell command line. Piped input is shown as an
// echo so the line can be replayed by hand.
func (c Cmd) String() string {
	var b strings.Builder
	if c.Stdin != "" {
		b.WriteString("echo ")
		b.WriteString(stringutil.ShellQuote(strings.TrimSuffix(c.Stdin, "\n")))
		b.WriteString(" | ")
	}
	b.WriteString(stringutil.ShellQuote(c.Name))
	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteString(stringutil.ShellQuote(a))
	}
	return b.String()
}

// Runner executes commands one at a time.
type Runner interface {
	// Run executes cmd to completion and returns its standard output.
	// A non-zero exit is reported as a *ToolError.
	Run(ctx context.Context, cmd Cmd) (string, error)
}

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	// Echo receives each command line before it is executed, followed by
	// the tool's standard output as it is produced. Nil disables echoing.
	Echo io.Writer
	// Stderr receives the tool's standard error as it is produced.
	Stderr io.Writer
	// Color highlights echoed lines. It is still subject to color.NoColor,
	// so output to a pipe stays plain.
	Color bool
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Cmd) (string, error) {
	line := c.String()
	switch {
	case r.Echo == nil:
	case r.Color:
		echoColor.Fprintln(r.Echo, line)
	default:
		fmt.Fprintln(r.Echo, line)
	}
	log.G(ctx).WithField("cmd", line).Debug("exec")

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = tee(&stdout, r.Echo)
	cmd.Stderr = tee(&stderr, r.Stderr)
	err := cmd.Run()
	out := append(stderr.Bytes(), stdout.Bytes()...)
	log.G(ctx).WithField("cmd", line).Debugf("output: %s", stringutil.TruncateOutput(out, maxLogOutput))
	if err != nil {
		return stdout.String(), &ToolError{
			Cmd:    c,
			Output: string(out),
			Cause:  err,
		}
	}
	return stdout.String(), nil
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

// ToolError is returned when an external tool exits unsuccessfully.
type ToolError struct {
	Cmd    Cmd
	Output string // standard error followed by standard output, verbatim
	Cause  error
}

func (e *ToolError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s: %v", e.Cmd, e.Cause)
	}
	return fmt.Sprintf("%s: %v: %s", e.Cmd, e.Cause, out)
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the tool's exit status, or -1 if it did not exit
// normally (not found, killed by a signal).
func (e *ToolError) ExitCode() int {
	var ee *exec.ExitError
	if errors.As(e.Cause, &ee) {
		return ee.ExitCode()
	}
	return -1
}
