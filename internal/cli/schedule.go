package cli

import (
	"github.com/spf13/cobra"
)

// NewScheduleCmd создаёт группу команд для расписания.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect the run schedule",
	}

	cmd.AddCommand(newScheduleNextCmd(clientFn, outputFn))
	return cmd
}

func newScheduleNextCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show upcoming scheduled runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			s, err := client.GetSchedule(count)
			if err != nil {
				return err
			}

			out.Schedule(s)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 5, "Number of fire times")
	return cmd
}
