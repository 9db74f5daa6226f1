package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewConfigCmd создаёт группу команд для управления конфигурациями.
func NewConfigCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage transformation configurations",
	}

	cmd.AddCommand(
		newConfigCreateCmd(clientFn, outputFn),
		newConfigShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newConfigCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var orgID string
	var name string
	var outputFormat string
	var webhookID string
	var callbackURL string

	cmd := &cobra.Command{
		Use:   "create RULES_FILE",
		Short: "Create a configuration version from a rules JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rules, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if !json.Valid(rules) {
				return fmt.Errorf("%s is not valid JSON", args[0])
			}

			cfg, err := client.CreateConfiguration(CreateConfigurationRequest{
				OrganizationID: orgID,
				Name:           name,
				Rules:          rules,
				OutputFormat:   outputFormat,
				WebhookID:      webhookID,
				CallbackURL:    callbackURL,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Configuration created: %s (version %d)", cfg.ID, cfg.Version))
			out.Print(
				[]string{"ID", "NAME", "VERSION", "FORMAT", "CREATED"},
				[][]string{{cfg.ID, cfg.Name, strconv.Itoa(cfg.Version), cfg.OutputFormat, cfg.CreatedAt}},
				cfg,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization ID (required)")
	cmd.Flags().StringVar(&name, "name", "", "Configuration name (required)")
	cmd.Flags().StringVar(&outputFormat, "format", "csv", "Output format (csv, json, xlsx)")
	cmd.Flags().StringVar(&webhookID, "webhook-id", "", "Organization webhook for notifications")
	cmd.Flags().StringVar(&callbackURL, "callback-url", "", "Legacy callback URL")
	cmd.MarkFlagRequired("org")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newConfigShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var version int

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a configuration (latest version by default)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			cfg, err := client.GetConfiguration(args[0], version)
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "VERSION", "FORMAT", "CALLBACK", "CREATED"},
				[][]string{{cfg.ID, cfg.Name, strconv.Itoa(cfg.Version), cfg.OutputFormat, cfg.CallbackURL, cfg.CreatedAt}},
				cfg,
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&version, "version", 0, "Configuration version (latest if not specified)")

	return cmd
}
