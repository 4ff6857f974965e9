package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dongwonkwak/erpquote/internal/export"
	"github.com/dongwonkwak/erpquote/internal/quotes"
)

func newQuotesCmd(g *globalFlags) *cobra.Command {
	quotesCmd := &cobra.Command{
		Use:   "quotes",
		Short: "Quote commands",
	}

	// quotes list
	var list quotes.ListParams
	var status string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the agent's quotes, newest number first",
		RunE: withEnv(g, func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
			st, err := quotes.ParseStatus(status)
			if err != nil {
				return err
			}
			p := list
			p.Agent, p.Status = g.agent, st
			return runQuotesList(ctx, cmd.OutOrStdout(), e.quotes, p)
		}),
	}
	listCmd.Flags().IntVar(&list.Page, "page", 1, "Page number (1-based)")
	listCmd.Flags().IntVar(&list.Limit, "limit", 0, "Quotes per page (default from config)")
	listCmd.Flags().StringVar(&list.Search, "search", "", "Filter by customer name")
	listCmd.Flags().StringVar(&status, "status", "", "Filter by status (draft|sent|confirmed|done|cancelled)")

	// quotes get
	getCmd := &cobra.Command{
		Use:   "get <quote-id>",
		Short: "Show one quote and its lines",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(g, func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
			id, err := quotes.ParseQuoteID(args[0])
			if err != nil {
				return err
			}
			return runQuotesGet(ctx, cmd.OutOrStdout(), e.quotes, id)
		}),
	}

	// quotes create
	var create quotes.NewQuote
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a quote for a customer",
		RunE: withEnv(g, func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
			in := create
			in.Agent = g.agent
			return runQuotesCreate(ctx, cmd.OutOrStdout(), e.quotes, in)
		}),
	}
	createCmd.Flags().IntVar(&create.PartnerID, "customer", 0, "Customer (partner) id")
	createCmd.Flags().StringVar(&create.DateOrder, "date", "", "Order date, YYYY-MM-DD HH:MM:SS")
	createCmd.Flags().StringVar(&create.Note, "note", "", "Free-text note")
	_ = createCmd.MarkFlagRequired("customer")

	// quotes update
	var partnerID int
	var dateOrder, note string
	updateCmd := &cobra.Command{
		Use:   "update <quote-id>",
		Short: "Change the customer, date or note of a quote",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(g, func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
			id, err := quotes.ParseQuoteID(args[0])
			if err != nil {
				return err
			}
			var changes quotes.QuoteChanges
			if cmd.Flags().Changed("customer") {
				changes.PartnerID = &partnerID
			}
			if cmd.Flags().Changed("date") {
				changes.DateOrder = &dateOrder
			}
			if cmd.Flags().Changed("note") {
				changes.Note = &note
			}
			return runQuotesUpdate(ctx, cmd.OutOrStdout(), e.quotes, id, changes)
		}),
	}
	updateCmd.Flags().IntVar(&partnerID, "customer", 0, "New customer (partner) id")
	updateCmd.Flags().StringVar(&dateOrder, "date", "", "New order date")
	updateCmd.Flags().StringVar(&note, "note", "", "New note")

	// quotes export
	var out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export a page of the agent's quotes to an .xlsx file",
		RunE: withEnv(g, func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
			st, err := quotes.ParseStatus(status)
			if err != nil {
				return err
			}
			p := list
			p.Agent, p.Status = g.agent, st
			return runQuotesExport(ctx, cmd.OutOrStdout(), e.quotes, p, out)
		}),
	}
	exportCmd.Flags().StringVar(&out, "out", "quotes.xlsx", "Output file")
	exportCmd.Flags().IntVar(&list.Page, "page", 1, "Page number (1-based)")
	exportCmd.Flags().IntVar(&list.Limit, "limit", 0, "Quotes per page (default from config)")
	exportCmd.Flags().StringVar(&list.Search, "search", "", "Filter by customer name")
	exportCmd.Flags().StringVar(&status, "status", "", "Filter by status")

	// quotes lines
	linesCmd := &cobra.Command{
		Use:   "lines <quote-id>",
		Short: "List the lines of a quote",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(g, func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
			id, err := quotes.ParseQuoteID(args[0])
			if err != nil {
				return err
			}
			return runQuoteLines(ctx, cmd.OutOrStdout(), e.quotes, id)
		}),
	}

	// quotes add-line
	var line quotes.LineInput
	addLineCmd := &cobra.Command{
		Use:   "add-line <quote-id>",
		Short: "Add a line, creating the product if it does not exist",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(g, func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
			id, err := quotes.ParseQuoteID(args[0])
			if err != nil {
				return err
			}
			in := line
			in.QuoteID = id
			return runAddLine(ctx, cmd.OutOrStdout(), e.quotes, in)
		}),
	}
	addLineCmd.Flags().StringVar(&line.ProductName, "product", "", "Product name")
	addLineCmd.Flags().StringVar(&line.Description, "description", "", "Line description")
	addLineCmd.Flags().Float64Var(&line.Quantity, "qty", 1, "Quantity")
	addLineCmd.Flags().Float64Var(&line.PriceUnit, "price", 0, "Unit price")
	_ = addLineCmd.MarkFlagRequired("product")

	// quotes remove-line
	removeLineCmd := &cobra.Command{
		Use:   "remove-line <line-id>",
		Short: "Delete a quote line",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(g, func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
			id, err := quotes.ParseQuoteID(args[0])
			if err != nil {
				return err
			}
			if err := e.quotes.RemoveQuoteLine(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Line %d removed.\n", id)
			return nil
		}),
	}

	quotesCmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, exportCmd, linesCmd, addLineCmd, removeLineCmd)
	return quotesCmd
}

// runQuotesList prints one page of quotes. A remote failure is reported as a
// warning above an empty table; only a missing agent is an error.
func runQuotesList(ctx context.Context, w io.Writer, svc *quotes.Service, p quotes.ListParams) error {
	list, err := svc.ListQuotes(ctx, p)
	if errors.Is(err, quotes.ErrMissingAgent) {
		return fmt.Errorf("%w (use --agent or ERP_AGENT)", err)
	}
	if err != nil {
		fmt.Fprintf(w, "warning: could not load quotes from the ERP: %v\n", err)
	}
	printQuotes(w, list)
	return nil
}

func printQuotes(w io.Writer, list []quotes.Quote) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No quotes found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNUMBER\tCUSTOMER\tDATE\tTOTAL\tSTATUS")
	for _, q := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\t%s\n", q.ID, q.Name, q.PartnerName, q.DateOrder, q.AmountTotal, q.State.Label())
	}
	_ = tw.Flush()
}

func runQuotesGet(ctx context.Context, w io.Writer, svc *quotes.Service, id int) error {
	q, err := svc.GetQuote(ctx, id)
	if errors.Is(err, quotes.ErrQuoteNotFound) {
		fmt.Fprintf(w, "Quote %d not found.\n", id)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "=== Quote %s ===\n", q.Name)
	fmt.Fprintf(w, "ID:        %d\n", q.ID)
	fmt.Fprintf(w, "Customer:  %s (%d)\n", q.PartnerName, q.PartnerID)
	fmt.Fprintf(w, "Date:      %s\n", q.DateOrder)
	fmt.Fprintf(w, "Total:     %.2f\n", q.AmountTotal)
	fmt.Fprintf(w, "Status:    %s\n", q.State.Label())
	if q.Note != "" {
		fmt.Fprintf(w, "Note:      %s\n", q.Note)
	}

	lines, err := svc.ListQuoteLines(ctx, id)
	if err != nil {
		fmt.Fprintf(w, "warning: could not load quote lines: %v\n", err)
		return nil
	}
	fmt.Fprintln(w)
	printLines(w, lines)
	return nil
}

func runQuotesCreate(ctx context.Context, w io.Writer, svc *quotes.Service, in quotes.NewQuote) error {
	id, err := svc.CreateQuote(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Quote %d created.\n", id)
	return nil
}

func runQuotesUpdate(ctx context.Context, w io.Writer, svc *quotes.Service, id int, changes quotes.QuoteChanges) error {
	if err := svc.UpdateQuote(ctx, id, changes); err != nil {
		return err
	}
	fmt.Fprintf(w, "Quote %d updated.\n", id)
	return nil
}

func runQuotesExport(ctx context.Context, w io.Writer, svc *quotes.Service, p quotes.ListParams, path string) error {
	list, err := svc.ListQuotes(ctx, p)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.QuotesXLSX(f, list); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	fmt.Fprintf(w, "%d quotes written to %s\n", len(list), path)
	return nil
}

func runQuoteLines(ctx context.Context, w io.Writer, svc *quotes.Service, quoteID int) error {
	lines, err := svc.ListQuoteLines(ctx, quoteID)
	if err != nil {
		fmt.Fprintf(w, "warning: could not load quote lines: %v\n", err)
	}
	printLines(w, lines)
	return nil
}

func printLines(w io.Writer, lines []quotes.Line) {
	if len(lines) == 0 {
		fmt.Fprintln(w, "No lines.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRODUCT\tDESCRIPTION\tQTY\tPRICE\tSUBTOTAL")
	for _, l := range lines {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%g\t%.2f\t%.2f\n", l.ID, l.ProductName, l.Description, l.Quantity, l.PriceUnit, l.Subtotal)
	}
	_ = tw.Flush()
}

func runAddLine(ctx context.Context, w io.Writer, svc *quotes.Service, in quotes.LineInput) error {
	id, err := svc.AddQuoteLine(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Line %d added to quote %d.\n", id, in.QuoteID)
	return nil
}
