package cmd

import (
	"github.com/urfave/cli/v2"
)

const version = "0.1.0"

// NewApp builds the messenger command tree.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "messenger",
		Usage:   "Threads, messages and calls between providers",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"MESSENGER_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			ServeCommand(),
			CallsCommand(),
			ThreadsCommand(),
		},
	}
}
