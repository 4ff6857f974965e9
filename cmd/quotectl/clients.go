package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dongwonkwak/erpquote/internal/quotes"
)

func newClientsCmd(g *globalFlags) *cobra.Command {
	clientsCmd := &cobra.Command{
		Use:   "clients",
		Short: "Customer commands",
	}

	var search string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List customer companies",
		RunE: withEnv(g, func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
			return runClientsList(ctx, cmd.OutOrStdout(), e.quotes, search)
		}),
	}
	listCmd.Flags().StringVar(&search, "search", "", "Filter by name")

	clientsCmd.AddCommand(listCmd)
	return clientsCmd
}

func runClientsList(ctx context.Context, w io.Writer, svc *quotes.Service, search string) error {
	list, err := svc.ListCustomers(ctx, search)
	if err != nil {
		fmt.Fprintf(w, "warning: could not load customers from the ERP: %v\n", err)
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No customers found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tPHONE\tVAT")
	for _, c := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Email, c.Phone, c.VAT)
	}
	return tw.Flush()
}
