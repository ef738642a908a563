// Package cli wires the nytest commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nytrix/nytest/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "nytest"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
	env    config.Env
	out    io.Writer
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "bin",
			Usage: "Compiler binary under test",
			Value: "build/ny",
		},
		&cli.IntFlag{
			Name:    "jobs",
			Aliases: []string{"j"},
			Usage:   "Worker count, 0 derives it from the host topology",
		},
		&cli.StringSliceFlag{
			Name:    "pattern",
			Aliases: []string{"p"},
			Usage:   "Only run cases whose path matches the regular expression (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "smoke",
			Usage: "Run the interactive smoke session before the suites",
		},
		&cli.BoolFlag{
			Name:  "no-smoke",
			Usage: "Never run the interactive smoke session",
		},
		&cli.StringFlag{
			Name:  "root",
			Usage: "Project root containing etc/tests and std",
			Value: ".",
		},
	}
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		env:    config.OSEnv(),
		out:    os.Stdout,
		cli: &cli.App{
			Name:      AppName,
			Usage:     "Run the Nytrix test suites with result caching",
			ArgsUsage: "[PATTERN...]",
			Flags: append([]cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
			}, runFlags()...),
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}
	// run is also the default action
	app.cli.Action = app.run
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "run",
		Usage:     "Run the test suites",
		ArgsUsage: "[PATTERN...]",
		Action:    app.run,
		Flags:     runFlags(),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List previous runs",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results (default: 20)",
				Value:   20,
			},
			&cli.BoolFlag{
				Name:  "failed",
				Usage: "Only list runs with failing cases",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:            "view",
		Usage:           "View a previous run",
		ArgsUsage:       "[ID|INDEX] [-- PPROF ARGS]",
		Action:          app.view,
		SkipFlagParsing: true,
		Description: `View a previous run and open its timing profile.

Arguments:
  0           View last run (default)
  -1          View 2nd last run
  -2          View 3rd last run
  <hex-id>    View the run matching the hex ID prefix

Remaining arguments are passed to go tool pprof.

Examples:
  nytest view                # View last run
  nytest view -1 -top        # Slowest cases of the 2nd last run
  nytest view abc123 -- -http=:8080`,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the persisted caches",
		Subcommands: []*cli.Command{
			{
				Name:   "info",
				Usage:  "Show the cache location and usage",
				Action: app.cacheInfo,
			},
			{
				Name:   "clear",
				Usage:  "Remove cached results, timings or native artifacts (all when no flag is given)",
				Action: app.cacheClear,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "results", Usage: "Remove the result cache"},
					&cli.BoolFlag{Name: "timings", Usage: "Remove the timing table"},
					&cli.BoolFlag{Name: "native", Usage: "Remove the native artifacts"},
				},
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "host",
		Usage:  "Show the host topology and recommended worker counts",
		Action: app.host,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "profile",
				Usage: "Scheduling profile (off, conservative, smt, aggressive, auto)",
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Workload kind (test or build)",
				Value: "test",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "smoke",
		Usage:  "Run the interactive smoke session",
		Action: app.smoke,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "bin",
				Usage: "Compiler binary under test",
				Value: "build/ny",
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "Project root",
				Value: ".",
			},
		},
	})
	return app
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && len(commit) >= 8 {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}

// settings loads the environment settings for the running host.
func (a *App) settings() config.Settings {
	return config.Load(a.env, hostinfoDetect(), a.logger)
}
