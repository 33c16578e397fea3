package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "mcc",
		Usage:   "List, start, stop and connect to instances across AWS, Azure and GCP",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the configuration file (default ~/.cloud/config.ini)",
				EnvVars: []string{"MCC_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Write diagnostic logs to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "Print the instance table once and exit",
				Action:  listCommand,
			},
			{
				Name:   "configure",
				Usage:  "Write provider credentials to the configuration file",
				Action: configureCommand,
			},
		},
		// Default action when no command specified
		Action: interactiveCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
