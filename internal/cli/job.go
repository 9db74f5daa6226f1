package cli

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewJobCmd создаёт группу команд для управления jobs.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage transformation jobs",
	}

	cmd.AddCommand(
		newJobSubmitCmd(clientFn, outputFn),
		newJobShowCmd(clientFn, outputFn),
		newJobWatchCmd(clientFn, outputFn),
		newJobLogCmd(clientFn, outputFn),
	)

	return cmd
}

func newJobSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var orgID string
	var configID string
	var callbackURL string
	var conversionType string
	var options []string

	cmd := &cobra.Command{
		Use:   "submit FILE",
		Short: "Submit a file for transformation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			req := CreateJobRequest{
				OrganizationID:  orgID,
				ConfigurationID: configID,
				FileName:        filepath.Base(args[0]),
				FileData:        base64.StdEncoding.EncodeToString(data),
				ConversionType:  conversionType,
				CallbackURL:     callbackURL,
			}

			if len(options) > 0 {
				req.Options = make(map[string]any)
				for _, kv := range options {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid option format %q, expected KEY=VALUE", kv)
					}
					// Булевы опции (evaluateFormulas=true) передаются как bool
					if parts[1] == "true" || parts[1] == "false" {
						req.Options[parts[0]] = parts[1] == "true"
					} else {
						req.Options[parts[0]] = parts[1]
					}
				}
			}

			job, err := client.CreateJob(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job submitted: %s", job.ID))
			out.Print(
				[]string{"ID", "STATUS", "FILE", "CREATED"},
				[][]string{{job.ID, job.Status, job.FileName, job.CreatedAt}},
				job,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization ID (required)")
	cmd.Flags().StringVar(&configID, "config", "", "Configuration ID (required)")
	cmd.Flags().StringVar(&callbackURL, "callback-url", "", "Per-job callback URL")
	cmd.Flags().StringVar(&conversionType, "conversion-type", "", "Conversion type label")
	cmd.Flags().StringSliceVar(&options, "option", nil, "Job options as KEY=VALUE (repeatable)")
	cmd.MarkFlagRequired("org")
	cmd.MarkFlagRequired("config")

	return cmd
}

func newJobShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetJob(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "STATUS", "PROGRESS", "FILE", "ERROR", "DOWNLOAD"},
				[][]string{{job.ID, job.Status, strconv.Itoa(job.Progress) + "%", job.FileName, job.Error, job.DownloadURL}},
				job,
			)
			return nil
		},
	}
}

func newJobWatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch ID",
		Short: "Poll a job until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			for {
				job, err := client.GetJob(args[0])
				if err != nil {
					return err
				}

				out.Success(fmt.Sprintf("%s  %s  %d%%", job.ID, job.Status, job.Progress))

				if job.Status == "completed" || job.Status == "failed" {
					out.Print(
						[]string{"ID", "STATUS", "ERROR", "DOWNLOAD"},
						[][]string{{job.ID, job.Status, job.Error, job.DownloadURL}},
						job,
					)
					if job.Status == "failed" {
						return fmt.Errorf("job failed: %s", job.Error)
					}
					return nil
				}

				time.Sleep(interval)
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")

	return cmd
}

func newJobLogCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "log ID",
		Short: "Show job execution log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetJob(args[0])
			if err != nil {
				return err
			}

			if len(job.ExecutionLog) == 0 {
				out.Success("No execution log")
				return nil
			}

			for _, line := range job.ExecutionLog {
				fmt.Fprintln(os.Stdout, line)
			}
			return nil
		},
	}
}
