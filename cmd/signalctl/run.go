package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/internal/signal"
	"github.com/Adithya-Monish-Kumar-K/Signal-Digest-Pipeline/pkg/config"
)

// CLITriggeredBy labels runs started from the shell.
const CLITriggeredBy = "cli"

// exitError reports a non-zero exit whose details were already printed.
type exitError struct{ status signal.RunStatus }

func (e exitError) Error() string { return "run finished with status " + string(e.status) }

func asExit(err error, target *exitError) bool {
	return errors.As(err, target)
}

// runOutput is printed after a run; ok is false only for FAILED runs.
type runOutput struct {
	OK bool `json:"ok"`
	ingestion.Result
}

func runCMD(cfgPath *string) *cobra.Command {
	var req ingestion.Request
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run ingestion for one edition date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validator.ValidateRunRequest(&req); err != nil {
				return err
			}
			return withApp(cmd.Context(), *cfgPath, func(ctx context.Context, _ *config.Config, app *bootstrap.App) error {
				result, err := app.Runner.Trigger(ctx, req)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&req.Date, "date", "", "edition date (YYYY-MM-DD, default today UTC)")
	cmd.Flags().StringVar(&req.TriggeredBy, "triggered-by", CLITriggeredBy, "label recorded on the run")
	cmd.Flags().IntVar(&req.MaxItems, "max-items", 0, "item budget (default from config)")
	return cmd
}

// printResult writes the run result as indented JSON and returns an
// exitError when the run failed.
func printResult(w io.Writer, result ingestion.Result) error {
	out := runOutput{OK: result.Status != signal.RunFailed, Result: result}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if !out.OK {
		return exitError{status: result.Status}
	}
	return nil
}
