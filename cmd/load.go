// cmd/load.go

package main

import (
	"bytes"
	"io"
	"os"

	"ChunkFS/pkg/utils"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func loadFlags() *cli.Command {
	return &cli.Command{
		Name:      "load",
		Usage:     "replace the data of a mounted device with a local file",
		ArgsUsage: "MOUNTPOINT FILE",
		Action:    load,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "append",
				Usage: "append to the device instead of replacing its data",
			},
			&cli.BoolFlag{
				Name:  "verify",
				Usage: "read the data back and compare it with the file",
			},
			&cli.IntFlag{
				Name:  "buffer-size",
				Value: 1 << 20,
				Usage: "size of every write in bytes",
			},
		},
	}
}

func copyIn(dev, name string, appending bool, bufSize int, quiet bool) (int64, error) {
	src, err := os.Open(name)
	if err != nil {
		return 0, err
	}
	defer src.Close()
	fi, err := src.Stat()
	if err != nil {
		return 0, err
	}

	flags := os.O_WRONLY
	if appending {
		flags |= os.O_APPEND
	}
	dst, err := os.OpenFile(dev, flags, 0)
	if err != nil {
		return 0, err
	}
	progress, bar := utils.NewByteProgressBar("loading:", fi.Size(), quiet)
	n, err := io.CopyBuffer(dst, bar.ProxyReader(src), make([]byte, bufSize))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		bar.Abort(false)
	} else {
		bar.SetTotal(n, true)
	}
	progress.Wait()
	return n, err
}

// verify compares the size bytes of dev starting at off with the file name.
func verify(dev, name string, off, size int64, bufSize int) error {
	src, err := os.Open(name)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Open(dev)
	if err != nil {
		return err
	}
	defer dst.Close()

	a := make([]byte, bufSize)
	b := make([]byte, bufSize)
	var pos int64
	for pos < size {
		n := int64(bufSize)
		if size-pos < n {
			n = size - pos
		}
		if _, err = io.ReadFull(src, a[:n]); err != nil {
			return errors.Wrapf(err, "read %s at %d", name, pos)
		}
		if _, err = dst.ReadAt(b[:n], off+pos); err != nil && err != io.EOF {
			return errors.Wrapf(err, "read %s at %d", dev, off+pos)
		}
		if !bytes.Equal(a[:n], b[:n]) {
			return errors.Errorf("data of %s differs from %s near offset %d", dev, name, off+pos)
		}
		pos += n
	}
	return nil
}

func load(ctx *cli.Context) error {
	if err := needArgs(ctx, 2, "MOUNTPOINT and FILE"); err != nil {
		return err
	}
	dev, st, err := devicePath(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	name := ctx.Args().Get(1)
	bufSize := ctx.Int("buffer-size")
	if bufSize <= 0 {
		bufSize = 1 << 20
	}
	var start int64
	if ctx.Bool("append") {
		start = st.Store.Length
	}

	n, err := copyIn(dev, name, ctx.Bool("append"), bufSize, ctx.Bool("quiet"))
	if err != nil {
		return errors.Wrapf(err, "load %s into %s after %d bytes", name, dev, n)
	}
	logger.Infof("Loaded %d bytes from %s into %s", n, name, dev)

	if ctx.Bool("verify") {
		if err = verify(dev, name, start, n, bufSize); err != nil {
			return err
		}
		logger.Infof("Verified %d bytes of %s", n, dev)
	}
	return nil
}
