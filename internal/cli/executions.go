package cli

import (
	"github.com/spf13/cobra"
)

// NewExecutionsCmd создаёт группу команд для истории выполнений.
func NewExecutionsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "executions",
		Aliases: []string{"exec"},
		Short:   "Inspect execution history",
	}

	cmd.AddCommand(
		newExecutionsListCmd(clientFn, outputFn),
		newExecutionsShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newExecutionsListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flowID string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			execs, err := client.ListExecutions(ListExecutionsOpts{
				FlowID: flowID,
				Status: status,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "FLOW_ID", "STATUS", "STARTED", "ERROR"}
			rows := make([][]string, len(execs))
			for i, e := range execs {
				rows[i] = []string{e.ID, e.FlowID, e.Status, e.StartedAt, e.Error}
			}

			out.Print(headers, rows, execs)
			return nil
		},
	}

	cmd.Flags().StringVar(&flowID, "flow-id", "", "Filter by flow ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (SUCCEEDED, FAILED, CANCELLED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newExecutionsShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show execution report with its log trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			exec, err := client.GetExecution(args[0])
			if err != nil {
				return err
			}

			if out.IsJSON() {
				out.JSON(exec)
				return nil
			}
			out.Table(
				[]string{"ID", "FLOW_ID", "STATUS", "STARTED", "FINISHED", "ERROR"},
				[][]string{{exec.ID, exec.FlowID, exec.Status, exec.StartedAt, exec.FinishedAt, exec.Error}},
			)
			out.Logs(exec.Logs)
			return nil
		},
	}
}
