package main

import (
	"log"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "hlctl",
		Usage: "Sign, submit and stream Hyperliquid actions",
		Description: `A command line client for the Hyperliquid venue.

Configuration is read from HL_* environment variables and an optional .env
file. Exactly one signer may be configured: HL_PRIVATE_KEY, HL_KMS_KEY_ID or
HL_REMOTE_SIGNER_URL together with --remote-address.`,
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "network",
				Usage: "mainnet or testnet (overrides HL_NETWORK)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.StringFlag{
				Name:  "remote-address",
				Usage: "Address served by the remote signer at HL_REMOTE_SIGNER_URL",
			},
			&cli.StringFlag{
				Name:  "aws-region",
				Usage: "Region of the KMS key at HL_KMS_KEY_ID",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "address",
				Usage:  "Print the configured signer's address",
				Action: addressCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "whoami",
						Usage: "Also print the AWS principal used for KMS signing",
					},
				},
			},
			{
				Name:  "digest",
				Usage: "Print the typed data and EIP-712 digest of an action without submitting it",
				Flags: append(actionFlags(),
					&cli.BoolFlag{
						Name:  "sign",
						Usage: "Sign the digest with the configured signer",
					},
				),
				Action: digestCommand,
			},
			{
				Name:   "send",
				Usage:  "Sign and submit an action",
				Flags:  append(actionFlags(), wsFlag()),
				Action: sendCommand,
			},
			{
				Name:  "info",
				Usage: "Query the info endpoint",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "request",
						Usage:    `Info request JSON, e.g. {"type":"allMids"}, or @file`,
						Required: true,
					},
					wsFlag(),
				},
				Action: infoCommand,
			},
			{
				Name:  "subscribe",
				Usage: "Stream a websocket subscription until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "subscription",
						Usage:    `Subscription JSON, e.g. {"type":"l2Book","coin":"BTC"}, or @file`,
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "keep-alive",
						Usage: "Idle time before a ping is sent",
					},
				},
				Action: subscribeCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func actionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "action",
			Usage:    `Action JSON, e.g. {"type":"noop"}, or @file`,
			Required: true,
		},
		&cli.Uint64Flag{
			Name:  "nonce",
			Usage: "Nonce in milliseconds (default: next nonce for the signer)",
		},
		&cli.StringFlag{
			Name:  "vault",
			Usage: "Vault or sub-account to act for (overrides HL_VAULT_ADDRESS)",
		},
		&cli.Uint64Flag{
			Name:  "expires-after",
			Usage: "Timestamp in milliseconds after which the action is rejected",
		},
	}
}

func wsFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "ws",
		Usage: "Send the request as a websocket post instead of over HTTP",
	}
}
