package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// LocalResult — итог run, выполненного в процессе CLI.
type LocalResult struct {
	Run    RunResponse     `json:"run"`
	Stages []StageResponse `json:"stages"`
}

// LocalExecutor выполняет один run в текущем процессе.
type LocalExecutor func(ctx context.Context, actor string) (*LocalResult, error)

func newRunLocalCmd(exec LocalExecutor, outputFn func() *Output) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "local",
		Short: "Execute one run in this process, without the API",
		Long: "Execute quota check and scanner stages in this process.\n" +
			"Secrets are read from the environment and .env.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			res, err := exec(cmd.Context(), actor)
			if err != nil {
				return err
			}

			out.Local(res)
			return out.Outcome(res.Run)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", os.Getenv("USER"), "Who starts the run")
	return cmd
}
