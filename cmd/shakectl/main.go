// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// shakectl is a thin operator CLI over a single in-process Engine: it
// exists to exercise the engine's public surface from a terminal for
// manual testing and demos, not as a production operator tool (no
// persistence beyond a single process's memStore).
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/clawshake/shake/escrow"
	"github.com/clawshake/shake/escrow/ledgertest"
	"github.com/clawshake/shake/log"
)

var (
	app    *cli.App
	engine *escrow.Engine
	ledger *ledgertest.Ledger
)

func init() {
	app = cli.NewApp()
	app.Name = "shakectl"
	app.Usage = "inspect and drive a shake escrow engine from the command line"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Usage: "path to a TOML engine config"},
		cli.BoolFlag{Name: "dev", Usage: "human-readable console logging instead of JSON"},
	}
	app.Before = setup
	app.Commands = []cli.Command{
		createCommand,
		acceptCommand,
		deliverCommand,
		releaseCommand,
		disputeCommand,
		inspectCommand,
	}
}

func setup(c *cli.Context) error {
	if c.GlobalBool("dev") {
		log.SetDevelopment()
	}

	opts := []escrow.Option{}
	var feePolicy escrow.FeePolicy
	if path := c.GlobalString("config"); path != "" {
		fc, err := escrow.LoadConfigTOML(path)
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("loading config: %v", err), 1)
		}
		fileOpts, err := fc.ToOptions()
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("applying config: %v", err), 1)
		}
		opts = append(opts, fileOpts...)
		feePolicy = fc.FeePolicy()
	}

	ledger = ledgertest.New()
	reputation := ledgertest.NewReputationSink()
	engine = escrow.NewEngine(nil, ledger, reputation, feePolicy, opts...)
	return nil
}

var createCommand = cli.Command{
	Name:      "create",
	Usage:     "create a new root shake",
	ArgsUsage: "<requester-hex> <amount> <deadline-seconds>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 3 {
			return cli.NewExitError("expected 3 arguments", 1)
		}
		requester, err := parsePrincipal(c.Args().Get(0))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		amount, ok := new(big.Int).SetString(c.Args().Get(1), 10)
		if !ok {
			return cli.NewExitError("invalid amount", 1)
		}
		var deadline int64
		if _, err := fmt.Sscan(c.Args().Get(2), &deadline); err != nil {
			return cli.NewExitError("invalid deadline", 1)
		}

		ledger.Credit(requester, amount)
		id, err := engine.CreateShake(context.Background(), requester, amount, deadline, escrow.Fingerprint{}, escrow.Fingerprint{})
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		color.Green("created shake %d", id)
		return nil
	},
}

var acceptCommand = cli.Command{
	Name:      "accept",
	Usage:     "accept a pending shake",
	ArgsUsage: "<id> <worker-hex>",
	Action: func(c *cli.Context) error {
		id, err := parseID(c.Args().Get(0))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		worker, err := parsePrincipal(c.Args().Get(1))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		if err := engine.AcceptShake(context.Background(), id, worker); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		color.Green("shake %d accepted by %s", id, worker)
		return nil
	},
}

var deliverCommand = cli.Command{
	Name:      "deliver",
	Usage:     "deliver an active shake",
	ArgsUsage: "<id> <worker-hex>",
	Action: func(c *cli.Context) error {
		id, err := parseID(c.Args().Get(0))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		worker, err := parsePrincipal(c.Args().Get(1))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		if err := engine.DeliverShake(context.Background(), id, worker, escrow.Fingerprint{}, escrow.Fingerprint{}); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		color.Green("shake %d delivered", id)
		return nil
	},
}

var releaseCommand = cli.Command{
	Name:      "release",
	Usage:     "release a delivered shake",
	ArgsUsage: "<id> <caller-hex>",
	Action: func(c *cli.Context) error {
		id, err := parseID(c.Args().Get(0))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		caller, err := parsePrincipal(c.Args().Get(1))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		if err := engine.ReleaseShake(context.Background(), id, caller); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		color.Green("shake %d released", id)
		return nil
	},
}

var disputeCommand = cli.Command{
	Name:      "dispute",
	Usage:     "dispute a delivered shake",
	ArgsUsage: "<id> <requester-hex>",
	Action: func(c *cli.Context) error {
		id, err := parseID(c.Args().Get(0))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		requester, err := parsePrincipal(c.Args().Get(1))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		if err := engine.DisputeShake(context.Background(), id, requester); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		color.Yellow("shake %d disputed", id)
		return nil
	},
}

var inspectCommand = cli.Command{
	Name:      "inspect",
	Usage:     "print a shake's current state",
	ArgsUsage: "<id>",
	Action: func(c *cli.Context) error {
		id, err := parseID(c.Args().Get(0))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		s, err := engine.GetShake(id)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		fmt.Println(s.String())
		return nil
	},
}

func parsePrincipal(s string) (escrow.Principal, error) {
	return escrow.ParsePrincipal(s)
}

func parseID(s string) (uint64, error) {
	var id uint64
	if _, err := fmt.Sscan(s, &id); err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

func main() {
	if err := app.Run(os.Args); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}
