package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "hostbot",
		Usage: "hosting plan shop over chat: orders, provisioning and notifications",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API and the chat webhook",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "store",
						Usage: "order store override: postgres or memory",
					},
				},
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: migrate,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
