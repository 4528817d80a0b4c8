/*
Package cli provides command-line helpers used by the loupe command.

Output Formatting:

Commands that print results accept --format text|json:

	format, err := cli.ParseFormat(flagValue)
	if err != nil {
		return err
	}
	if err := cli.NewFormatter(format).FormatTo(os.Stdout, result); err != nil {
		return err
	}

Errors and Exit Codes:

Configuration problems exit with ExitConfigError, everything else with
ExitFailure:

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

	reload, stopReload := cli.NotifyReload()
	defer stopReload()
*/
package cli
