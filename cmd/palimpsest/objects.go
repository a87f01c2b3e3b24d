package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/hut8labs/palimpsest/internal/fsutil"
	"github.com/hut8labs/palimpsest/internal/layering"
)

var baseCommand = &cli.Command{
	Name:  "base",
	Usage: "Manage base images",
	Subcommands: []*cli.Command{
		{
			Name:      "create",
			Usage:     "Create, bind and format a sparse base image",
			ArgsUsage: "FILE SIZE_GB [MOUNTPOINT]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "fs-type",
					Usage: "Filesystem to create (mkfs.<type>)",
					Value: fsutil.DefaultFSType,
				},
			},
			Action: func(cliCtx *cli.Context) error {
				a, err := args(cliCtx, 2, 3)
				if err != nil {
					return err
				}
				size, err := strconv.ParseInt(a[1], 10, 64)
				if err != nil || size < 0 {
					return fmt.Errorf("invalid size %q: must be a number of gigabytes", a[1])
				}
				return withManager(cliCtx, func(m *layering.Manager) error {
					return m.BaseCreate(cliCtx.Context, a[0], size, optional(a, 2), cliCtx.String("fs-type"))
				})
			},
		},
		{
			Name:      "mount",
			Usage:     "Mount a base image",
			ArgsUsage: "FILE MOUNTPOINT",
			Action: func(cliCtx *cli.Context) error {
				a, err := args(cliCtx, 2, 2)
				if err != nil {
					return err
				}
				return withManager(cliCtx, func(m *layering.Manager) error {
					return m.BaseMount(cliCtx.Context, a[0], a[1])
				})
			},
		},
		{
			Name:      "destroy",
			Usage:     "Detach and delete a base image",
			ArgsUsage: "FILE",
			Action: func(cliCtx *cli.Context) error {
				a, err := args(cliCtx, 1, 1)
				if err != nil {
					return err
				}
				return withManager(cliCtx, func(m *layering.Manager) error {
					return m.BaseDestroy(cliCtx.Context, a[0])
				})
			},
		},
	},
}

var layerCommand = &cli.Command{
	Name:  "layer",
	Usage: "Manage copy-on-write layers on top of a base image",
	Subcommands: []*cli.Command{
		{
			Name:      "create",
			Usage:     "Create a snapshot layer over a base image",
			ArgsUsage: "BASE FILE [MOUNTPOINT]",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "transient",
					Usage: "Discard layer writes when the layer is destroyed",
				},
			},
			Action: func(cliCtx *cli.Context) error {
				a, err := args(cliCtx, 2, 3)
				if err != nil {
					return err
				}
				return withManager(cliCtx, func(m *layering.Manager) error {
					return m.LayerCreate(cliCtx.Context, a[0], a[1], optional(a, 2), cliCtx.Bool("transient"))
				})
			},
		},
		{
			Name:      "mount",
			Usage:     "Mount a layer",
			ArgsUsage: "FILE MOUNTPOINT",
			Action: func(cliCtx *cli.Context) error {
				a, err := args(cliCtx, 2, 2)
				if err != nil {
					return err
				}
				return withManager(cliCtx, func(m *layering.Manager) error {
					return m.LayerMount(cliCtx.Context, a[0], a[1])
				})
			},
		},
		{
			Name:      "destroy",
			Usage:     "Remove a layer's snapshot target, detach and delete it",
			ArgsUsage: "FILE",
			Action: func(cliCtx *cli.Context) error {
				a, err := args(cliCtx, 1, 1)
				if err != nil {
					return err
				}
				return withManager(cliCtx, func(m *layering.Manager) error {
					return m.LayerDestroy(cliCtx.Context, a[0])
				})
			},
		},
	},
}

func optional(a []string, i int) string {
	if i < len(a) {
		return a[i]
	}
	return ""
}
