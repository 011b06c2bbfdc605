// jaxrun — инструмент командной строки: локальное выполнение
// workflow-файлов и управление сервером через HTTP API.
//
// Использование:
//
//	jaxrun [--api-url URL] [--json] <command> [subcommand] [flags]
//
// Команды:
//
//	run         Выполнить workflow-файл
//	validate    Проверить workflow-файл
//	flow        Управление flows
//	executions  История выполнений
//	schedule    Управление schedules
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Crypto-Goatz/jaxrun/internal/cli"
	"github.com/Crypto-Goatz/jaxrun/internal/config"
	"github.com/Crypto-Goatz/jaxrun/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	if err := config.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "jaxrun",
		Short:         "jaxrun — crypto trading workflow engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", config.String(config.EnvAPIURL, "http://localhost:8080"), "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(clientFn, outputFn, telemetry.NewLogger(os.Stderr)),
		cli.NewValidateCmd(outputFn),
		cli.NewFlowCmd(clientFn, outputFn),
		cli.NewExecutionsCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
