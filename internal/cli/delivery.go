package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewDeliveryCmd создаёт группу команд для webhook deliveries.
func NewDeliveryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delivery",
		Short: "Manage webhook deliveries",
	}

	cmd.AddCommand(
		newDeliveryDeadCmd(clientFn, outputFn),
		newDeliveryShowCmd(clientFn, outputFn),
		newDeliveryReplayCmd(clientFn, outputFn),
	)

	return cmd
}

func newDeliveryDeadCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "dead",
		Short: "List dead-letter deliveries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			deliveries, err := client.ListDeadDeliveries(limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "JOB_ID", "URL", "ATTEMPTS", "HTTP", "ERROR"}
			rows := make([][]string, len(deliveries))
			for i, d := range deliveries {
				rows[i] = []string{
					d.ID, d.JobID, d.URL,
					strconv.Itoa(d.Attempts),
					strconv.Itoa(d.ResponseStatus),
					d.Error,
				}
			}

			out.Print(headers, rows, deliveries)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newDeliveryShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show delivery details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			d, err := client.GetDelivery(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "JOB_ID", "URL", "STATUS", "ATTEMPTS", "HTTP", "ERROR"},
				[][]string{{
					d.ID, d.JobID, d.URL, d.Status,
					strconv.Itoa(d.Attempts),
					strconv.Itoa(d.ResponseStatus),
					d.Error,
				}},
				d,
			)
			return nil
		},
	}
}

func newDeliveryReplayCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "replay ID",
		Short: "Replay a dead-letter delivery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			d, err := client.ReplayDelivery(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Replay accepted: %s", d.ID))
			return nil
		},
	}
}
