package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Crypto-Goatz/jaxrun/internal/bootstrap"
	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/orchestrator"
)

// ErrExecutionFailed — выполнение завершилось неуспешно.
var ErrExecutionFailed = errors.New("execution failed")

// Workflow — файл workflow: узлы, рёбра и начальные переменные.
// Интеграции бирж в файле допускаются, но обычно берутся из EXCHANGES_FILE.
type Workflow struct {
	FlowID    string                       `json:"flowId,omitempty"`
	Nodes     []domain.Node                `json:"nodes"`
	Edges     []domain.Edge                `json:"edges"`
	Variables map[string]any               `json:"variables,omitempty"`
	Exchanges []domain.ExchangeIntegration `json:"exchanges,omitempty"`
}

// LoadWorkflow читает workflow из JSON файла. "-" означает stdin.
func LoadWorkflow(path string) (*Workflow, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}

	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow %s: %w", path, err)
	}
	return &wf, nil
}

// NewRunCmd создаёт команду выполнения workflow из файла.
//
// По умолчанию workflow выполняется локально; с --remote — через API.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output, logger *slog.Logger) *cobra.Command {
	var vars []string
	var remote bool

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a workflow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			wf, err := LoadWorkflow(args[0])
			if err != nil {
				return err
			}
			extra, err := ParseVars(vars)
			if err != nil {
				return err
			}
			if len(extra) > 0 && wf.Variables == nil {
				wf.Variables = map[string]any{}
			}
			maps.Copy(wf.Variables, extra)

			var result *ExecutionResult
			if remote {
				result, err = clientFn().Execute(wf)
				if err != nil {
					return err
				}
			} else {
				result, err = runLocal(cmd.Context(), wf, logger)
				if err != nil {
					return err
				}
			}

			return printResult(out, result)
		},
	}

	cmd.Flags().StringSliceVar(&vars, "var", nil, "Variables as KEY=VALUE (repeatable, JSON values allowed)")
	cmd.Flags().BoolVar(&remote, "remote", false, "Execute on the API server instead of locally")

	return cmd
}

// NewValidateCmd создаёт команду проверки workflow без выполнения.
func NewValidateCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a workflow file without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			wf, err := LoadWorkflow(args[0])
			if err != nil {
				return err
			}

			v := orchestrator.Validate(wf.Nodes, wf.Edges)
			if out.IsJSON() {
				out.JSON(v)
			} else {
				for _, id := range v.Unreachable {
					out.Success("warning: node " + id + " is not reachable from any trigger")
				}
				for _, msg := range v.Errors {
					out.Error(msg)
				}
			}
			if !v.Valid() {
				return fmt.Errorf("workflow is invalid: %d error(s)", len(v.Errors))
			}
			out.Success(fmt.Sprintf("Workflow is valid: %d nodes, %d edges", len(wf.Nodes), len(wf.Edges)))
			return nil
		},
	}
}

// runLocal выполняет workflow в процессе CLI.
func runLocal(ctx context.Context, wf *Workflow, logger *slog.Logger) (*ExecutionResult, error) {
	exchanges := wf.Exchanges
	if len(exchanges) == 0 {
		loaded, err := bootstrap.Exchanges(logger)
		if err != nil {
			return nil, err
		}
		exchanges = loaded
	}

	exec := bootstrap.Engine(logger, nil).Execute(ctx, orchestrator.Invocation{
		FlowID:    wf.FlowID,
		Nodes:     wf.Nodes,
		Edges:     wf.Edges,
		Exchanges: exchanges,
		Variables: wf.Variables,
	})
	return resultFrom(exec.Result()), nil
}

// resultFrom переводит итог движка в формат ответа API.
func resultFrom(r domain.ExecutionResult) *ExecutionResult {
	logs := make([]LogEntry, len(r.Logs))
	for i, l := range r.Logs {
		logs[i] = LogEntry{
			Timestamp: l.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			Level:     string(l.Level),
			Message:   l.Message,
			NodeID:    l.NodeID,
		}
	}
	return &ExecutionResult{
		Success:     r.Success,
		ExecutionID: r.ExecutionID,
		Output:      r.Output,
		Error:       r.Error,
		Logs:        logs,
	}
}

// printResult выводит итог и возвращает ErrExecutionFailed для неуспешного.
func printResult(out *Output, r *ExecutionResult) error {
	if out.IsJSON() {
		out.JSON(r)
	} else {
		out.Logs(r.Logs)
		if r.Output != nil {
			data, _ := json.Marshal(r.Output)
			out.Success("Output: " + string(data))
		}
		out.Success("Execution: " + r.ExecutionID)
	}
	if !r.Success {
		return fmt.Errorf("%w: %s", ErrExecutionFailed, r.Error)
	}
	return nil
}

// ParseVars разбирает KEY=VALUE. Значение, которое читается как JSON
// (число, bool, объект), передаётся типизированным, иначе строкой.
func ParseVars(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable format %q, expected KEY=VALUE", kv)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		vars[key] = v
	}
	return vars, nil
}
