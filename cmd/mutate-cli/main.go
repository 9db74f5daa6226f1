// Mutate CLI — инструмент командной строки для отправки jobs,
// управления конфигурациями и webhook deliveries через HTTP API.
//
// Использование:
//
//	mutate [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	job       Управление jobs трансформации
//	config    Управление конфигурациями
//	delivery  Управление webhook deliveries
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khyo-labs/mutate/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "mutate",
		Short:         "Mutate CLI — spreadsheet transformation service tool",
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
		cli.NewConfigCmd(clientFn, outputFn),
		cli.NewDeliveryCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
