// Copyright ©️ gitbruv. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/gitbruv/gitbruv/pkg/version"
	"github.com/sirupsen/logrus"
)

type App struct {
	Globals
	HTTPD   HTTPD   `cmd:"httpd" help:"start gitbruv httpd server"`
	Keygen  Keygen  `cmd:"keygen" help:"Generates a random X25519 private key"`
	Encrypt Encrypt `cmd:"encrypt" help:"Encrypting config secrets using the server key"`
}

func main() {
	var app App
	ctx := kong.Parse(&app,
		kong.Name("gitbruv-serve"),
		kong.Description("gitbruv - git hosting on object storage"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version.GetVersionString(),
		},
	)
	if app.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if err := ctx.Run(&app.Globals); err != nil {
		os.Exit(1)
	}
}
