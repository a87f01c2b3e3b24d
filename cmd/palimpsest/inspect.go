package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/urfave/cli/v2"

	"github.com/hut8labs/palimpsest/internal/layering"
	"github.com/hut8labs/palimpsest/internal/registry"
)

var statusCommand = &cli.Command{
	Name:      "status",
	Usage:     "Show the bindings and mounts of an image",
	ArgsUsage: "FILE",
	Action: func(cliCtx *cli.Context) error {
		a, err := args(cliCtx, 1, 1)
		if err != nil {
			return err
		}
		return withManager(cliCtx, func(m *layering.Manager) error {
			st, err := m.Status(cliCtx.Context, a[0])
			if err != nil {
				return err
			}
			return printStatus(cliCtx.App.Writer, st)
		})
	},
}

var unmountCommand = &cli.Command{
	Name:      "unmount",
	Aliases:   []string{"umount"},
	Usage:     "Unmount a base or layer mountpoint",
	ArgsUsage: "MOUNTPOINT",
	Action: func(cliCtx *cli.Context) error {
		a, err := args(cliCtx, 1, 1)
		if err != nil {
			return err
		}
		return withManager(cliCtx, func(m *layering.Manager) error {
			return m.Unmount(cliCtx.Context, a[0])
		})
	},
}

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "List images recorded in the state database",
	Action: func(cliCtx *cli.Context) error {
		if _, err := args(cliCtx, 0, 0); err != nil {
			return err
		}
		path := cliCtx.String("state-db")
		if path == "" {
			return fmt.Errorf("list requires --state-db")
		}
		store, err := registry.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()
		records, err := store.List()
		if err != nil {
			return err
		}
		return printRecords(cliCtx.App.Writer, records, time.Now())
	},
}

func describeBinding(b layering.Binding) string {
	switch {
	case !b.Linked:
		return "none"
	case b.Live:
		return fmt.Sprintf("%s -> %s", b.Link, b.Target)
	default:
		return fmt.Sprintf("%s -> %s (dangling)", b.Link, b.Target)
	}
}

func printStatus(w io.Writer, st *layering.Status) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	kind := "base"
	if st.Layer() {
		kind = "layer"
	}
	fmt.Fprintf(tw, "path:\t%s\n", st.Path)
	if !st.Exists {
		fmt.Fprintf(tw, "image:\tmissing\n")
	} else {
		fmt.Fprintf(tw, "kind:\t%s\n", kind)
		fmt.Fprintf(tw, "size:\t%s (%s allocated)\n", units.BytesSize(float64(st.SizeBytes)), units.BytesSize(float64(st.AllocatedBytes)))
	}
	fmt.Fprintf(tw, "loop:\t%s\n", describeBinding(st.Loop))
	if st.Layer() {
		fmt.Fprintf(tw, "mapper:\t%s\n", describeBinding(st.Mapper))
	}
	if st.BackingFile != "" {
		fmt.Fprintf(tw, "backing file:\t%s\n", st.BackingFile)
	}
	if len(st.LoopFlags) > 0 {
		fmt.Fprintf(tw, "loop flags:\t%s\n", strings.Join(st.LoopFlags, ", "))
	}
	if st.Orphan != "" {
		fmt.Fprintf(tw, "unrecorded loop:\t%s (bound without %s)\n", st.Orphan, st.Loop.Link)
	}
	mounts := "none"
	if len(st.Mountpoints) > 0 {
		mounts = strings.Join(st.Mountpoints, ", ")
	}
	fmt.Fprintf(tw, "mounted at:\t%s\n", mounts)
	return tw.Flush()
}

func printRecords(w io.Writer, records []registry.Record, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tPATH\tLOOP\tMAPPER\tMODE\tSIZE\tCREATED")
	for _, r := range records {
		mapper, mode := "-", "-"
		if r.Kind == registry.KindLayer {
			mapper = r.MapperName
			mode = "transient"
			if r.Persistent {
				mode = "persistent"
			}
		} else if r.FSType != "" {
			mode = r.FSType
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s ago\n",
			r.Kind, r.Path, r.LoopDevice, mapper, mode,
			units.BytesSize(float64(r.SizeBytes)),
			units.HumanDuration(now.Sub(r.CreatedAt)))
	}
	return tw.Flush()
}
