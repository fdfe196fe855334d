// chatdesk - A terminal client for the chat assistant backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/jeranaias/chatdesk/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	if Version != "dev" {
		cli.Version = Version
	}
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate

	os.Exit(cli.Execute())
}
