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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/containerd/log"
	"github.com/urfave/cli/v2"

	"github.com/hut8labs/palimpsest/internal/command"
	"github.com/hut8labs/palimpsest/internal/layering"
	"github.com/hut8labs/palimpsest/internal/preflight"
	"github.com/hut8labs/palimpsest/internal/registry"
)

// Version information - set via ldflags at build time
// Example: go build -ldflags "-X main.version=1.0.0 -X main.gitCommit=$(git rev-parse HEAD)"
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "palimpsest",
		Usage:   "Copy-on-write layering for loopback filesystem images",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				EnvVars: []string{"PALIMPSEST_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "state-db",
				Usage:   "Record created images in this database (enables 'list')",
				EnvVars: []string{"PALIMPSEST_STATE_DB"},
			},
			&cli.BoolFlag{
				Name:    "rollback",
				Usage:   "Undo completed steps when a create operation fails",
				EnvVars: []string{"PALIMPSEST_ROLLBACK"},
			},
			&cli.BoolFlag{
				Name:    "skip-preflight",
				Usage:   "Do not check for required tools and kernel support",
				EnvVars: []string{"PALIMPSEST_SKIP_PREFLIGHT"},
			},
		},
		Before: func(cliCtx *cli.Context) error {
			if err := log.SetLevel(cliCtx.String("log-level")); err != nil {
				return err
			}
			if v, err := preflight.KernelVersion(); err == nil {
				log.G(cliCtx.Context).WithField("kernel", v).Debug("starting")
			}
			return nil
		},
		Commands: []*cli.Command{
			baseCommand,
			layerCommand,
			statusCommand,
			unmountCommand,
			listCommand,
		},
	}
}

// withManager builds a Manager from the global flags, runs fn with it and
// releases the registry afterwards.
func withManager(cliCtx *cli.Context, fn func(*layering.Manager) error) error {
	opts := []layering.Opt{}
	if cliCtx.Bool("rollback") {
		opts = append(opts, layering.WithRollback())
	}
	if !cliCtx.Bool("skip-preflight") {
		opts = append(opts, layering.WithPreflight())
	}
	if path := cliCtx.String("state-db"); path != "" {
		store, err := registry.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, layering.WithRegistry(store))
	}
	runner := &command.ExecRunner{
		Echo:   cliCtx.App.Writer,
		Stderr: cliCtx.App.ErrWriter,
		Color:  cliCtx.App.Writer == os.Stdout,
	}
	return fn(layering.New(runner, opts...))
}

// args returns the positional arguments, enforcing their count.
func args(cliCtx *cli.Context, lo, hi int) ([]string, error) {
	n := cliCtx.NArg()
	if n < lo || n > hi {
		return nil, fmt.Errorf("%s: expected %s, got %d argument(s)", cliCtx.Command.FullName(), cliCtx.Command.ArgsUsage, n)
	}
	return cliCtx.Args().Slice(), nil
}
