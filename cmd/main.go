// cmd/main.go

package main

import (
	"fmt"
	"os"

	"ChunkFS/pkg/utils"
	"ChunkFS/pkg/version"

	"github.com/google/gops/agent"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var logger = utils.GetLogger("chunkfs")

func main() {
	cli.VersionFlag = &cli.BoolFlag{
		Name: "version", Aliases: []string{"V"},
		Usage: "print only the version",
	}
	app := &cli.App{
		Name:                 "chunkfs",
		Usage:                "An in-memory chunked byte device exposed through FUSE.",
		Version:              version.Version(),
		Copyright:            "MIT License",
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"debug", "v"},
				Usage:   "enable debug log",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "only warning and errors",
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "enable trace log",
			},
			&cli.BoolFlag{
				Name:  "no-agent",
				Usage: "disable gops agent",
			},
		},
		Before: func(c *cli.Context) error {
			setLoggerLevel(c)
			if !c.Bool("no-agent") {
				// the agent listens on a local port picked by gops
				if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
					logger.Debugf("gops agent: %s", err)
				}
			}
			return nil
		},
		Commands: []*cli.Command{
			mountFlags(),
			umountFlags(),
			statusFlags(),
			infoFlags(),
			trimFlags(),
			loadFlags(),
		},
	}

	err := app.Run(reorderOptions(app, os.Args))
	if err != nil {
		logger.Errorf("%s", err)
		os.Exit(1)
	}
}

// reorderOptions moves global flags placed after the command in front of it.
func reorderOptions(app *cli.App, args []string) []string {
	global := make(map[string]bool)
	for _, f := range app.Flags {
		for _, n := range f.Names() {
			global["-"+n] = true
			global["--"+n] = true
		}
	}
	var head, tail []string
	for i, a := range args {
		if i > 0 && global[a] {
			head = append(head, a)
		} else {
			tail = append(tail, a)
		}
	}
	if len(tail) == 0 {
		return args
	}
	return append(append([]string{tail[0]}, head...), tail[1:]...)
}

func setLoggerLevel(c *cli.Context) {
	if c.Bool("trace") {
		utils.SetLogLevel(logrus.TraceLevel)
	} else if c.Bool("verbose") {
		utils.SetLogLevel(logrus.DebugLevel)
	} else if c.Bool("quiet") {
		utils.SetLogLevel(logrus.WarnLevel)
	} else {
		utils.SetLogLevel(logrus.InfoLevel)
	}
}

func needArgs(c *cli.Context, n int, usage string) error {
	if c.Args().Len() < n {
		return fmt.Errorf("%s is needed", usage)
	}
	return nil
}
