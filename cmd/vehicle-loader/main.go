package main

import (
	"errors"
	"fmt"
	"os"

	"vehicle-loader/internal/app"
	"vehicle-loader/internal/logging"
)

// main runs the loader and maps failures to a non-zero exit status.
func main() {
	runner := app.NewAppRunner()

	if err := runner.Run(os.Args[1:]); err != nil {
		if errors.Is(err, app.ErrUsage) || errors.Is(err, app.ErrConfigNotFound) || errors.Is(err, app.ErrMissingArgs) {
			fmt.Fprintln(os.Stderr, "")
			runner.Usage(os.Stderr)
		}

		if logging.GetLevel() < logging.Error {
			logging.SetLevel(logging.Error)
		}
		logging.Logf(logging.Error, "Migration run failed: %v", err)
		os.Exit(1)
	}
}
