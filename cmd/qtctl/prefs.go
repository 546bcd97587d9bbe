package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/kislikjeka/quicktrade/internal/platform/preference"
)

var prefsCommand = &cli.Command{
	Name:  "prefs",
	Usage: "show and change user preferences",
	Subcommands: []*cli.Command{
		{
			Name:   "show",
			Usage:  "prints user_prefs.json as the application sees it",
			Action: showPrefs,
		},
		{
			Name:      "set-exchanges",
			Usage:     "sets the enabled exchanges, in display order",
			ArgsUsage: "<exchange>...",
			Action: updatePrefs(func(c *cli.Context, p *preference.Store) error {
				return p.SetEnabledExchanges(c.Args().Slice())
			}),
		},
		{
			Name:      "set-currency",
			Usage:     "sets the display currency",
			ArgsUsage: "<currency>",
			Action: updatePrefs(func(c *cli.Context, p *preference.Store) error {
				return p.SetDisplayCurrency(c.Args().First())
			}),
		},
		{
			Name:      "set-dust",
			Usage:     "shows or hides dust holdings",
			ArgsUsage: "<true|false>",
			Action: updatePrefs(func(c *cli.Context, p *preference.Store) error {
				show, err := strconv.ParseBool(c.Args().First())
				if err != nil {
					return fmt.Errorf("set-dust expects true or false, got %q", c.Args().First())
				}
				return p.SetShowDust(show)
			}),
		},
		{
			Name:      "set-theme",
			Usage:     "sets the UI theme",
			ArgsUsage: "<dark|light>",
			Action: updatePrefs(func(c *cli.Context, p *preference.Store) error {
				return p.SetTheme(preference.Theme(c.Args().First()))
			}),
		},
		{
			Name:   "reset",
			Usage:  "restores the default preferences",
			Action: updatePrefs(func(_ *cli.Context, p *preference.Store) error { return p.Reset() }),
		},
	},
}

func showPrefs(c *cli.Context) error {
	ws, err := openWorkspace(c, nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	return jsonOutput(c, ws.prefs.Snapshot())
}

func updatePrefs(fn func(c *cli.Context, p *preference.Store) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		ws, err := openWorkspace(c, nil)
		if err != nil {
			return err
		}
		defer ws.Close()

		if err := fn(c, ws.prefs); err != nil {
			return err
		}
		return jsonOutput(c, ws.prefs.Snapshot())
	}
}
