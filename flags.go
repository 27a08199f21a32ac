package main

import "flag"

// cliFlags holds command line overrides for the environment configuration.
type cliFlags struct {
	fleetURL          *string
	fleetToken        *string
	botToken          *string
	chatID            *int64
	clipsDir          *string
	scratchDir        *string
	ledgerPath        *string
	deleteAfterUpload *bool
}

func parseFlags() cliFlags {
	flags := cliFlags{
		fleetURL:          flag.String("fleet-url", "", "Fleet API base URL (overrides environment)"),
		fleetToken:        flag.String("fleet-token", "", "Fleet API token (overrides environment)"),
		botToken:          flag.String("bot-token", "", "Telegram bot token (overrides environment)"),
		chatID:            flag.Int64("chat-id", 0, "Telegram chat ID (overrides environment)"),
		clipsDir:          flag.String("clips-dir", "", "Directory holding downloaded segment files (overrides environment)"),
		scratchDir:        flag.String("scratch-dir", "", "Directory for extracted chunks (overrides environment)"),
		ledgerPath:        flag.String("ledger-path", "", "Path of the progress ledger database (overrides environment)"),
		deleteAfterUpload: flag.Bool("delete-after-upload", false, "Delete source files once fully uploaded (overrides environment)"),
	}
	flag.Parse()

	// Only carry the bool override when the flag was given, so its default
	// cannot clobber an environment setting.
	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "delete-after-upload" {
			explicit = true
		}
	})
	if !explicit {
		flags.deleteAfterUpload = nil
	}

	return flags
}
