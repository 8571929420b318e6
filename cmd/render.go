package cmd

import (
	"errors"
	"os"

	"github.com/urfave/cli"

	"github.com/corefan/flexrender/engine"
	"github.com/corefan/flexrender/log"
)

var logger = log.New("cmd")

// setupLogging wires -v/-vv verbosity flags to the log package, matching
// the teacher's main.go/cmd/logging.go convention.
func setupLogging(ctx *cli.Context) {
	log.SetSink(os.Stderr)
	switch {
	case ctx.Bool("vv"):
		log.SetLevel(log.Debug)
	case ctx.Bool("v"):
		log.SetLevel(log.Info)
	default:
		log.SetLevel(log.Notice)
	}
}

// RenderCommand runs a still render: engine <config_file> <scene_file>
// [--intervals N] [--jobs M], per spec §6's CLI surface.
func RenderCommand(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 2 {
		return errors.New("usage: engine render <config_file> <scene_file>")
	}
	configPath := ctx.Args().Get(0)
	scenePath := ctx.Args().Get(1)

	cfg, camDef, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.MaxIntervals = ctx.Int("intervals")
	cfg.MaxJobs = ctx.Int("jobs")

	e, err := engine.New(cfg)
	if err != nil {
		return err
	}

	sceneFile, err := os.Open(scenePath)
	if err != nil {
		return err
	}
	defer sceneFile.Close()

	if err := e.Load(sceneFile); err != nil {
		return err
	}
	if err := e.Build(); err != nil {
		return err
	}

	logger.Noticef("rendering %s (%dx%d, aa=%d, jobs=%d)", scenePath, cfg.Width, cfg.Height, cfg.AAFactor, cfg.MaxJobs)
	return e.Run(camDef)
}

// Flags declares render's CLI flags, matching the teacher's per-command
// cli.Flag slice convention.
var Flags = []cli.Flag{
	cli.IntFlag{Name: "intervals", Value: 0, Usage: "stop after N consecutive unchanged stats intervals (0 = disabled)"},
	cli.IntFlag{Name: "jobs", Value: 4, Usage: "maximum number of in-flight ray jobs"},
	cli.BoolFlag{Name: "v", Usage: "verbose logging"},
	cli.BoolFlag{Name: "vv", Usage: "debug logging"},
}
