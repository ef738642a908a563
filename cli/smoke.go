package cli

// This file contains the standalone smoke command.

import (
	"github.com/nytrix/nytest/config"
	"github.com/nytrix/nytest/report"
	"github.com/urfave/cli/v2"
)

func (a *App) smoke(ctx *cli.Context) error {
	root, err := projectRoot(ctx)
	if err != nil {
		return err
	}
	s := a.settings()
	bin, err := resolveBinary(root, ctx.String("bin"))
	if err != nil {
		return err
	}

	rep := report.New(a.out, report.Options{
		Root:  root,
		ASCII: s.Symbols == config.SymbolsASCII,
		Color: s.Color,
		GOOS:  s.Host().OS,
	})
	rep.Header("Repl")
	res, err := a.smokeFunc(s)(ctx.Context, bin)
	rep.Smoke(res, err)
	if err != nil {
		return cli.Exit("", exitFailed)
	}
	return nil
}
