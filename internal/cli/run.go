package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
// local может быть nil, тогда команда "run local" не регистрируется.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output, local LocalExecutor) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dispatch and inspect pipeline runs",
	}

	cmd.AddCommand(
		newRunDispatchCmd(clientFn, outputFn),
		newRunListCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunStagesCmd(clientFn, outputFn),
	)
	if local != nil {
		cmd.AddCommand(newRunLocalCmd(local, outputFn))
	}

	return cmd
}

func newRunDispatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var actor string
	var wait bool
	var timeout time.Duration
	var poll time.Duration

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Start a run manually",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			d, err := client.DispatchRun(actor)
			if err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Run dispatched: %s", d.IdempotencyKey))

			if !wait {
				out.Dispatched(d)
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			run, err := client.WaitRun(ctx, d.IdempotencyKey, poll)
			if err != nil {
				return err
			}
			out.Run(run)
			return out.Outcome(*run)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", os.Getenv("USER"), "Who starts the run")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the run to finish")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Hour, "Maximum time to wait with --wait")
	cmd.Flags().DurationVar(&poll, "poll", 2*time.Second, "Status poll interval with --wait")

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string
	var trigger string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOpts{
				Status:  status,
				Trigger: trigger,
				Limit:   limit,
			})
			if err != nil {
				return err
			}

			out.Runs(runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED, SKIPPED)")
	cmd.Flags().StringVar(&trigger, "trigger", "", "Filter by trigger (schedule, manual)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Run(run)
			return nil
		},
	}
}

func newRunStagesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stages RUN_ID",
		Short: "List stages of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stages, err := client.ListStages(args[0])
			if err != nil {
				return err
			}

			out.Stages(stages)
			return nil
		},
	}
}
