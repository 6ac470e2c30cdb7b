// cmd/trim.go

package main

import (
	"os"

	"github.com/urfave/cli/v2"
)

func trimFlags() *cli.Command {
	return &cli.Command{
		Name:      "trim",
		Usage:     "drop all data of a mounted device",
		ArgsUsage: "MOUNTPOINT ...",
		Action:    trim,
	}
}

func trim(ctx *cli.Context) error {
	if err := needArgs(ctx, 1, "MOUNTPOINT"); err != nil {
		return err
	}
	for i := 0; i < ctx.Args().Len(); i++ {
		mp := ctx.Args().Get(i)
		dev, st, err := devicePath(mp)
		if err != nil {
			logger.Errorf("%s", err)
			continue
		}
		// a write-only open drops the data, the close frees the chunks
		f, err := os.OpenFile(dev, os.O_WRONLY, 0)
		if err != nil {
			logger.Errorf("open %s: %s", dev, err)
			continue
		}
		if err = f.Close(); err != nil {
			logger.Errorf("close %s: %s", dev, err)
			continue
		}
		logger.Infof("Trimmed %d bytes of %s", st.Store.Length, dev)
	}
	return nil
}
