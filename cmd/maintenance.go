package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

// CallsCommand returns the call system maintenance commands.
func CallsCommand() *cli.Command {
	return &cli.Command{
		Name:  "calls",
		Usage: "Manage the call system",
		Subcommands: []*cli.Command{
			{
				Name:  "down",
				Usage: "End all active calls and disable the call system",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "duration",
						Usage: "How many minutes to disable calling for",
					},
					&cli.BoolFlag{
						Name:  "now",
						Usage: "End calls now instead of dispatching a job",
					},
				},
				Action: runCallsDown,
			},
			{
				Name:   "up",
				Usage:  "Re-enable the call system before the lockout expires",
				Action: runCallsUp,
			},
		},
	}
}

// ThreadsCommand returns the thread maintenance commands.
func ThreadsCommand() *cli.Command {
	return &cli.Command{
		Name:  "threads",
		Usage: "Manage threads",
		Subcommands: []*cli.Command{
			{
				Name:  "purge",
				Usage: "Remove threads archived for at least the given days",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Usage: "Minimum days since the thread was archived",
					},
					&cli.BoolFlag{
						Name:  "now",
						Usage: "Purge now instead of dispatching a job",
					},
				},
				Action: runThreadsPurge,
			},
		},
	}
}

func runCallsDown(c *cli.Context) error {
	a, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer a.Close()

	minutes := a.cfg.Calls.DownMinutes
	if c.IsSet("duration") {
		minutes = c.Int("duration")
	}
	if minutes < 1 {
		return fmt.Errorf("duration must be at least one minute, got %d", minutes)
	}

	out, err := a.runner.CallsDown(c.Context, time.Duration(minutes)*time.Minute, c.Bool("now"))
	if err != nil {
		return err
	}
	printLines(c, out)
	return nil
}

func runCallsUp(c *cli.Context) error {
	a, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.runner.CallsUp(c.Context)
	if err != nil {
		return err
	}
	printLines(c, out)
	return nil
}

func runThreadsPurge(c *cli.Context) error {
	a, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer a.Close()

	days := a.cfg.Threads.PurgeDays
	if c.IsSet("days") {
		days = c.Int("days")
	}
	if days < 1 {
		return fmt.Errorf("days must be at least one, got %d", days)
	}

	out, err := a.runner.PurgeThreads(c.Context, days, c.Bool("now"))
	if err != nil {
		return err
	}
	printLines(c, out)
	return nil
}

func printLines(c *cli.Context, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(c.App.Writer, line)
	}
}
