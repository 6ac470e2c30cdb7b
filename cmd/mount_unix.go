// cmd/mount_unix.go

package main

import (
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"ChunkFS/pkg/chunk"
	"ChunkFS/pkg/fuse"
	"ChunkFS/pkg/store"
	"ChunkFS/pkg/utils"
	"ChunkFS/pkg/vfs"

	"github.com/juicedata/godaemon"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// defaultMemoryLimit bounds the chunks of a mounted device in MiB, a sparse
// write far past the end fails with ENOSPC instead of exhausting the host.
const defaultMemoryLimit = 1024

func checkMountpoint(name, mp string) {
	for i := 0; i < 20; i++ {
		time.Sleep(time.Millisecond * 500)
		st, err := os.Stat(mp)
		if err == nil {
			if sys, ok := st.Sys().(*syscall.Stat_t); ok && sys.Ino == 1 {
				logger.Infof("\033[92mOK\033[0m, %s is ready at %s", name, mp)
				return
			}
		}
		os.Stdout.WriteString(".")
		os.Stdout.Sync()
	}
	os.Stdout.WriteString("\n")
	logger.Fatalf("fail to mount after 10 seconds, please mount in foreground")
}

func makeDaemon(c *cli.Context, name, mp string) error {
	var attrs godaemon.DaemonAttr
	attrs.OnExit = func(stage int) error {
		if stage != 0 {
			return nil
		}
		checkMountpoint(name, mp)
		return nil
	}

	// the current dir will be changed to root in daemon,
	// so the mount point has to be an absolute path.
	if godaemon.Stage() == 0 {
		for i, a := range os.Args {
			if a == mp {
				amp, err := filepath.Abs(mp)
				if err == nil {
					os.Args[i] = amp
				} else {
					logger.Warnf("abs of %s: %s", mp, err)
				}
			}
		}
		var err error
		logfile := c.String("log")
		attrs.Stdout, err = os.OpenFile(logfile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			logger.Errorf("open log file %s: %s", logfile, err)
		}
	}
	_, _, err := godaemon.MakeDaemon(&attrs)
	return err
}

func mountFlags() *cli.Command {
	var defaultLogDir = "/var/log"
	switch runtime.GOOS {
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Fatalf("%v", err)
			return nil
		}
		defaultLogDir = path.Join(homeDir, ".chunkfs")
	}
	return &cli.Command{
		Name:      "mount",
		Usage:     "create a device and mount it",
		ArgsUsage: "MOUNTPOINT",
		Action:    mount,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "d",
				Aliases: []string{"background"},
				Usage:   "run in background",
			},
			&cli.StringFlag{
				Name:  "log",
				Value: path.Join(defaultLogDir, "chunkfs.log"),
				Usage: "path of log file when running in background",
			},
			&cli.StringFlag{
				Name:  "o",
				Usage: "other FUSE options",
			},
			&cli.Float64Flag{
				Name:  "attr-cache",
				Value: 1.0,
				Usage: "attributes cache timeout in seconds",
			},
			&cli.Float64Flag{
				Name:  "entry-cache",
				Value: 1.0,
				Usage: "file entry cache timeout in seconds",
			},
			&cli.StringFlag{
				Name:  "name",
				Value: vfs.DefaultName,
				Usage: "name of the device file",
			},
			&cli.IntFlag{
				Name:  "quantum",
				Value: chunk.DefaultChunkSize,
				Usage: "chunk size in bytes",
			},
			&cli.IntFlag{
				Name:  "qset",
				Value: store.DefaultQset,
				Usage: "number of chunks per segment",
			},
			&cli.IntFlag{
				Name:  "max-segments",
				Usage: "maximum number of segments (0 for unlimited)",
			},
			&cli.IntFlag{
				Name:  "max-chunks",
				Usage: "maximum number of live chunks (0 for unlimited)",
			},
			&cli.Int64Flag{
				Name:  "memory-limit",
				Value: defaultMemoryLimit,
				Usage: "memory held by chunks in MiB (0 for unlimited)",
			},
			&cli.Int64Flag{
				Name:  "cache-size",
				Value: 64,
				Usage: "memory of freed chunks kept for reuse in MiB",
			},
			&cli.Int64Flag{
				Name:  "read-limit",
				Usage: "bandwidth limit for reads in Mbps (0 for unlimited)",
			},
			&cli.Int64Flag{
				Name:  "write-limit",
				Usage: "bandwidth limit for writes in Mbps (0 for unlimited)",
			},
			&cli.StringFlag{
				Name:  "preload",
				Usage: "load the content of a local file into the device before mounting",
			},
			&cli.IntFlag{
				Name:  "preload-threads",
				Value: 4,
				Usage: "number of workers used by preload",
			},
		},
	}
}

func deviceConfig(c *cli.Context) vfs.Config {
	conf := vfs.Config{
		Name:        c.String("name"),
		Quantum:     c.Int("quantum"),
		Qset:        c.Int("qset"),
		MaxSegments: c.Int("max-segments"),
		MaxChunks:   c.Int("max-chunks"),
		MemoryLimit: c.Int64("memory-limit") << 20,
		CacheSize:   c.Int64("cache-size") << 20,
		ReadLimit:   c.Int64("read-limit") * 1e6 / 8,
		WriteLimit:  c.Int64("write-limit") * 1e6 / 8,
	}
	conf.Check()
	return conf
}

func preload(dev *vfs.Device, name string, threads int) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := dev.Fill(vfs.Background, f, threads, nil)
	if err != nil {
		return errors.Wrapf(err, "preload %s", name)
	}
	logger.Infof("Preloaded %d bytes from %s", n, name)
	return nil
}

func mount(c *cli.Context) error {
	if err := needArgs(c, 1, "MOUNTPOINT"); err != nil {
		return err
	}
	mp := c.Args().Get(0)
	if !utils.Exists(mp) {
		if err := os.MkdirAll(mp, 0777); err != nil {
			return errors.Wrapf(err, "create %s", mp)
		}
	}
	conf := deviceConfig(c)
	if fuse.IsSpecialName(conf.Name) || strings.Contains(conf.Name, "/") {
		return errors.Errorf("invalid device name %q", conf.Name)
	}

	if c.Bool("d") {
		if err := makeDaemon(c, conf.Name, mp); err != nil {
			logger.Fatalf("Failed to make daemon: %s", err)
		}
		if err := utils.SetOutFile(c.String("log")); err != nil {
			logger.Warnf("log to %s: %s", c.String("log"), err)
		}
	}

	dev := vfs.NewDevice(conf, nil)
	if p := c.String("preload"); p != "" {
		if err := preload(dev, p, c.Int("preload-threads")); err != nil {
			dev.Shutdown()
			return err
		}
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	go func() {
		sig := <-signalChan
		logger.Infof("Received signal %s, unmounting %s", sig, mp)
		if err := doUmount(mp, true); err != nil {
			logger.Errorf("umount %s: %s", mp, err)
		}
	}()

	logger.Infof("Mounting device %s at %s ...", conf.Name, mp)
	err := fuse.Serve(dev, mp, fuse.Options{
		Options:      c.String("o"),
		AttrTimeout:  c.Float64("attr-cache"),
		EntryTimeout: c.Float64("entry-cache"),
		Debug:        c.Bool("trace"),
	})
	if err != nil {
		dev.Shutdown()
		logger.Fatalf("fuse: %s", err)
	}
	return nil
}
