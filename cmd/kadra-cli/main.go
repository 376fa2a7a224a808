// Kadra CLI — инструмент командной строки для работы с системой
// скрининга резюме через HTTP API.
//
// Использование:
//
//	kadra [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	job        Управление вакансиями
//	candidate  Управление кандидатами
//	feedback   Работа с feedback заинтересованных лиц
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Kadra/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "kadra",
		Short:         "Kadra CLI — resume screening tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewJobCmd(clientFn, outputFn),
		cli.NewCandidateCmd(clientFn, outputFn),
		cli.NewFeedbackCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
