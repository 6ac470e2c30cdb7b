// cmd/info.go

package main

import (
	"fmt"
	"strconv"

	"ChunkFS/pkg/store"

	"github.com/urfave/cli/v2"
)

func infoFlags() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "show where offsets of a device are stored",
		ArgsUsage: "MOUNTPOINT OFFSET ...",
		Action:    info,
	}
}

func info(ctx *cli.Context) error {
	if err := needArgs(ctx, 2, "MOUNTPOINT and OFFSET"); err != nil {
		return err
	}
	dev, st, err := devicePath(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	if st.Store.Quantum <= 0 || st.Store.Qset <= 0 {
		return fmt.Errorf("invalid geometry of %s: quantum %d, qset %d", dev, st.Store.Quantum, st.Store.Qset)
	}
	index := store.NewIndex(st.Store.Quantum, st.Store.Qset, 0)
	fmt.Printf("%s: length %d, quantum %d, qset %d, tail chunk %d (%d bytes)\n",
		dev, st.Store.Length, st.Store.Quantum, st.Store.Qset, st.Store.Tail, st.Store.TailFill)
	for i := 1; i < ctx.Args().Len(); i++ {
		arg := ctx.Args().Get(i)
		off, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || off < 0 {
			logger.Errorf("invalid offset %s", arg)
			continue
		}
		a := index.Translate(off)
		var note string
		if off >= st.Store.Length {
			note = " (past the end)"
		}
		fmt.Printf("  %d: segment %d, slot %d, offset %d%s\n", off, a.Segment, a.Slot, a.Offset, note)
	}
	return nil
}
