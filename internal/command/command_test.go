package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestCmdString(t *testing.T) {
	tests := []struct {
		name string
		cmd  Cmd
		want string
	}{
		{
			name: "plain",
			cmd:  New("losetup", "-f", "--show", "disk.img"),
			want: "losetup -f --show disk.img",
		},
		{
			name: "quoted argument",
			cmd:  New("truncate", "-s", "1G", "my disk.img"),
			want: "truncate -s 1G 'my disk.img'",
		},
		{
			name: "piped stdin",
			cmd:  New("dmsetup", "create", "snap.img").WithStdin("0 2097152 snapshot disk.img.lo snap.img.lo P 8\n"),
			want: "echo '0 2097152 snapshot disk.img.lo snap.img.lo P 8' | dmsetup create snap.img",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cmd.String(); got != tc.want {
				t.Errorf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExecRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ctx := context.Background()

	t.Run("echoes before running and passes output through", func(t *testing.T) {
		var echo, errOut bytes.Buffer
		r := &ExecRunner{Echo: &echo, Stderr: &errOut}
		out, err := r.Run(ctx, New("sh", "-c", "echo /dev/loop7; echo 'Writing superblocks' >&2"))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if out != "/dev/loop7\n" {
			t.Errorf("stdout = %q", out)
		}
		want := "sh -c 'echo /dev/loop7; echo '\\''Writing superblocks'\\'' >&2'\n/dev/loop7\n"
		if got := echo.String(); got != want {
			t.Errorf("echo = %q, want %q", got, want)
		}
		if got := errOut.String(); got != "Writing superblocks\n" {
			t.Errorf("stderr = %q", got)
		}
	})

	t.Run("large failure output is kept whole", func(t *testing.T) {
		var errOut bytes.Buffer
		r := &ExecRunner{Stderr: &errOut}
		script := `i=0; while [ $i -lt 300 ]; do printf 0123456789 >&2; i=$((i+1)); done; exit 1`
		_, err := r.Run(ctx, New("sh", "-c", script))
		var te *ToolError
		if !errors.As(err, &te) {
			t.Fatalf("expected *ToolError, got %T: %v", err, err)
		}
		want := strings.Repeat("0123456789", 300)
		if te.Output != want {
			t.Errorf("Output carries %d bytes, want %d", len(te.Output), len(want))
		}
		if errOut.String() != want {
			t.Errorf("stderr passed through %d bytes, want %d", errOut.Len(), len(want))
		}
		if !strings.Contains(te.Error(), want) {
			t.Error("error message should carry the full output")
		}
	})

	t.Run("colored echo", func(t *testing.T) {
		noColor := color.NoColor
		t.Cleanup(func() { color.NoColor = noColor })

		var echo bytes.Buffer
		r := &ExecRunner{Echo: &echo, Color: true}

		color.NoColor = true
		if _, err := r.Run(ctx, New("sh", "-c", "true")); err != nil {
			t.Fatal(err)
		}
		if got := echo.String(); got != "sh -c true\n" {
			t.Errorf("echo with colors disabled = %q", got)
		}

		echo.Reset()
		color.NoColor = false
		if _, err := r.Run(ctx, New("sh", "-c", "true")); err != nil {
			t.Fatal(err)
		}
		if got := echo.String(); !strings.HasPrefix(got, "\x1b[") || !strings.Contains(got, "sh -c true") {
			t.Errorf("echo with colors enabled = %q", got)
		}
	})

	t.Run("feeds stdin", func(t *testing.T) {
		r := &ExecRunner{}
		out, err := r.Run(ctx, New("sh", "-c", "cat").WithStdin("0 8 snapshot a b N 8\n"))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if out != "0 8 snapshot a b N 8\n" {
			t.Errorf("stdout = %q", out)
		}
	})

	t.Run("non-zero exit is a ToolError", func(t *testing.T) {
		r := &ExecRunner{}
		_, err := r.Run(ctx, New("sh", "-c", "echo no free loop devices >&2; exit 3"))
		var te *ToolError
		if !errors.As(err, &te) {
			t.Fatalf("expected *ToolError, got %T: %v", err, err)
		}
		if te.ExitCode() != 3 {
			t.Errorf("ExitCode() = %d, want 3", te.ExitCode())
		}
		if !strings.Contains(te.Error(), "no free loop devices") {
			t.Errorf("error should carry tool output: %v", te)
		}
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			t.Error("ToolError should unwrap to *exec.ExitError")
		}
	})

	t.Run("missing tool", func(t *testing.T) {
		r := &ExecRunner{}
		_, err := r.Run(ctx, New("palimpsest-no-such-tool"))
		var te *ToolError
		if !errors.As(err, &te) {
			t.Fatalf("expected *ToolError, got %T: %v", err, err)
		}
		if te.ExitCode() != -1 {
			t.Errorf("ExitCode() = %d, want -1", te.ExitCode())
		}
	})
}
