/*
Package cli provides command-line interface utilities for switchboard.

The cli package includes output formatters, a progress reporter, signal
handling and exit codes used by the switchboard command.

Output Formatting:

Tables render as aligned text columns, CSV or JSON:

	formatter := cli.NewFormatter(cli.FormatCSV)
	if err := formatter.FormatTo(os.Stdout, table); err != nil {
		return err
	}

Progress Reporting:

	progress := cli.NewProgressReporter(nil)
	progress.Start(int64(len(names)))
	progress.Increment("google")
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
