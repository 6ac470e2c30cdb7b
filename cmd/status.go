// cmd/status.go

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ChunkFS/pkg/vfs"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func printJson(v interface{}) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Fatalf("json: %s", err)
	}
	fmt.Println(string(output))
}

// findMount walks up from path to the directory holding the .stats file of a
// mounted device.
func findMount(path string) (string, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		if st, err := os.Stat(filepath.Join(p, ".stats")); err == nil && st.Mode().IsRegular() {
			return p, nil
		}
		if p == "/" || p == "." {
			return "", errors.Errorf("%s is not inside a chunkfs mount", path)
		}
		p = filepath.Dir(p)
	}
}

func loadStats(mp string) (*vfs.Stats, error) {
	data, err := os.ReadFile(filepath.Join(mp, ".stats"))
	if err != nil {
		return nil, err
	}
	var st vfs.Stats
	if err = json.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrapf(err, "decode stats of %s", mp)
	}
	return &st, nil
}

// devicePath returns the mount point and the device file of the mount holding path.
func devicePath(path string) (string, *vfs.Stats, error) {
	mp, err := findMount(path)
	if err != nil {
		return "", nil, err
	}
	st, err := loadStats(mp)
	if err != nil {
		return "", nil, err
	}
	return filepath.Join(mp, st.Name), st, nil
}

func status(ctx *cli.Context) error {
	if err := needArgs(ctx, 1, "MOUNTPOINT"); err != nil {
		return err
	}
	mp, err := findMount(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	st, err := loadStats(mp)
	if err != nil {
		logger.Fatalf("load stats: %s", err)
	}
	printJson(st)
	return nil
}

func statusFlags() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "show status of a mounted device",
		ArgsUsage: "MOUNTPOINT",
		Action:    status,
	}
}
