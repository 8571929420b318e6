package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/corefan/flexrender/cmd"
)

func main() {
	app := cli.NewApp()
	app.Name = "flexrender"
	app.Usage = "distributed path tracer render core"
	app.Commands = []cli.Command{
		{
			Name:      "render",
			Usage:     "render a still frame from a config and scene file",
			ArgsUsage: "<config_file> <scene_file>",
			Flags:     cmd.Flags,
			Action:    cmd.RenderCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
