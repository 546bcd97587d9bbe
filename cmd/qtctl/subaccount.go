package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

var errMissingArgs = errors.New("missing arguments")

var subaccountCommand = &cli.Command{
	Name:    "subaccount",
	Aliases: []string{"sub"},
	Usage:   "add, rename, delete and list subaccounts",
	Subcommands: []*cli.Command{
		{
			Name:      "list",
			Usage:     "lists subaccounts with their state and masked key",
			ArgsUsage: "[exchange]",
			Action:    listSubaccounts,
		},
		{
			Name:      "add",
			Usage:     "adds a subaccount; without a name the next free SubN is used",
			ArgsUsage: "<exchange> [name]",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "key", Usage: "API key to store right away"},
				&cli.StringFlag{Name: "secret", Usage: "API secret to store right away"},
			},
			Action: addSubaccount,
		},
		{
			Name:      "rename",
			Usage:     "renames a subaccount",
			ArgsUsage: "<exchange> <name> <new name>",
			Action:    renameSubaccount,
		},
		{
			Name:      "delete",
			Usage:     "deletes a subaccount",
			ArgsUsage: "<exchange> <name>",
			Action:    deleteSubaccount,
		},
		{
			Name:      "set-credentials",
			Usage:     "stores the API key and secret of a subaccount",
			ArgsUsage: "<exchange> <name>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "key", Usage: "API key", Required: true},
				&cli.StringFlag{Name: "secret", Usage: "API secret", Required: true},
			},
			Action: setCredentials,
		},
	},
}

func listSubaccounts(c *cli.Context) error {
	ws, err := openWorkspace(c, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	if exchange := c.Args().First(); exchange != "" {
		return jsonOutput(c, ws.creds.ExchangeRows(exchange))
	}
	return jsonOutput(c, ws.creds.Rows())
}

func addSubaccount(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("%w: add needs <exchange> [name]", errMissingArgs)
	}
	exchange, name := c.Args().Get(0), c.Args().Get(1)

	key, secret := c.String("key"), c.String("secret")
	if (key == "") != (secret == "") {
		return errors.New("--key and --secret must be given together")
	}

	ws, err := openWorkspace(c, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	created, err := ws.accounts.AddSubaccount(exchange, name)
	if err != nil {
		return err
	}
	if key != "" {
		if err := ws.creds.UpdateCredentials(exchange, created, key, secret); err != nil {
			return fmt.Errorf("subaccount %s created without credentials: %w", created, err)
		}
	}
	return printState(c, ws, exchange, created)
}

func renameSubaccount(c *cli.Context) error {
	if c.NArg() < 3 {
		return fmt.Errorf("%w: rename needs <exchange> <name> <new name>", errMissingArgs)
	}
	exchange, name, newName := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)

	ws, err := openWorkspace(c, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := ws.accounts.RenameSubaccount(exchange, name, newName); err != nil {
		return err
	}
	return jsonOutput(c, ws.creds.ExchangeRows(exchange))
}

func deleteSubaccount(c *cli.Context) error {
	if c.NArg() < 2 {
		return fmt.Errorf("%w: delete needs <exchange> <name>", errMissingArgs)
	}
	exchange, name := c.Args().Get(0), c.Args().Get(1)

	ws, err := openWorkspace(c, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	if !ws.creds.HasSubaccount(exchange, name) {
		return fmt.Errorf("subaccount %s/%s does not exist", exchange, name)
	}
	if err := ws.accounts.DeleteSubaccount(exchange, name); err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "deleted %s/%s\n", exchange, name)
	return err
}

func setCredentials(c *cli.Context) error {
	if c.NArg() < 2 {
		return fmt.Errorf("%w: set-credentials needs <exchange> <name>", errMissingArgs)
	}
	exchange, name := c.Args().Get(0), c.Args().Get(1)

	ws, err := openWorkspace(c, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := ws.creds.UpdateCredentials(exchange, name, c.String("key"), c.String("secret")); err != nil {
		return err
	}
	return printState(c, ws, exchange, name)
}

func printState(c *cli.Context, ws *workspace, exchange, name string) error {
	for _, row := range ws.creds.ExchangeRows(exchange) {
		if row.Key.Subaccount == name {
			return jsonOutput(c, row)
		}
	}
	return fmt.Errorf("subaccount %s/%s does not exist", exchange, name)
}
