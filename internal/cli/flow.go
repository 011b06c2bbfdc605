package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewFlowCmd создаёт группу команд для управления сохранёнными flows.
func NewFlowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Manage stored flows",
	}

	cmd.AddCommand(
		newFlowListCmd(clientFn, outputFn),
		newFlowCreateCmd(clientFn, outputFn),
		newFlowShowCmd(clientFn, outputFn),
		newFlowDeleteCmd(clientFn, outputFn),
		newFlowTriggerCmd(clientFn, outputFn),
	)

	return cmd
}

var flowHeaders = []string{"ID", "NAME", "NODES", "ACTIVE", "CREATED"}

func flowRow(f FlowResponse) []string {
	return []string{f.ID, f.Name, strconv.Itoa(len(f.Nodes)), strconv.FormatBool(f.IsActive), f.CreatedAt}
}

func newFlowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flows, err := client.ListFlows()
			if err != nil {
				return err
			}

			rows := make([][]string, len(flows))
			for i, f := range flows {
				rows[i] = flowRow(f)
			}

			out.Print(flowHeaders, rows, flows)
			return nil
		},
	}
}

func newFlowCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create FILE",
		Short: "Store a flow from a workflow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read flow file: %w", err)
			}

			var def map[string]any
			if err := json.Unmarshal(data, &def); err != nil {
				return fmt.Errorf("flow file is not valid JSON: %w", err)
			}
			if name != "" {
				def["name"] = name
			}
			body, err := json.Marshal(def)
			if err != nil {
				return err
			}

			flow, err := client.CreateFlow(body)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow created: %s", flow.ID))
			out.Print(flowHeaders, [][]string{flowRow(*flow)}, flow)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Flow name (overrides the file)")

	return cmd
}

func newFlowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show flow details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.GetFlow(args[0])
			if err != nil {
				return err
			}

			out.Print(flowHeaders, [][]string{flowRow(*flow)}, flow)
			return nil
		},
	}
}

func newFlowDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteFlow(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow deleted: %s", args[0]))
			return nil
		},
	}
}

func newFlowTriggerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var vars []string

	cmd := &cobra.Command{
		Use:   "trigger ID",
		Short: "Trigger a stored flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			parsed, err := ParseVars(vars)
			if err != nil {
				return err
			}

			res, err := client.TriggerFlow(args[0], parsed)
			if err != nil {
				return err
			}

			if res.Queued {
				out.Success(fmt.Sprintf("Flow queued: %s", res.ExecutionID))
				if out.IsJSON() {
					out.JSON(res)
				}
				return nil
			}
			return printResult(out, res.Result)
		},
	}

	cmd.Flags().StringSliceVar(&vars, "var", nil, "Variables as KEY=VALUE (repeatable, JSON values allowed)")

	return cmd
}
