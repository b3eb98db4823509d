package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/diticoms/service-desk/internal/filter"
	"github.com/diticoms/service-desk/internal/model"
	"github.com/diticoms/service-desk/internal/report"
	"github.com/diticoms/service-desk/internal/service"
	"github.com/spf13/cobra"
)

var ticketFlags struct {
	from   string
	to     string
	query  string
	tech   string
	status string
	all    bool
}

var exportOutput string

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "List cached tickets for the logged-in user (today by default)",
	RunE:  runTickets,
}

var ticketsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the filtered list to an Excel workbook",
	RunE:  runTicketsExport,
}

func init() {
	f := ticketsCmd.PersistentFlags()
	f.StringVar(&ticketFlags.from, "from", "", "first date, YYYY-MM-DD")
	f.StringVar(&ticketFlags.to, "to", "", "last date, YYYY-MM-DD")
	f.StringVarP(&ticketFlags.query, "q", "q", "", "search name, phone or address")
	f.StringVar(&ticketFlags.tech, "tech", "", "technician (admins only)")
	f.StringVar(&ticketFlags.status, "status", "", "ticket status")
	f.BoolVar(&ticketFlags.all, "all", false, "ignore the date range")

	ticketsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default Diticoms_Report_<date>.xlsx)")
	ticketsCmd.AddCommand(ticketsExportCmd)
	rootCmd.AddCommand(ticketsCmd)
}

func ticketCriteria(now time.Time) (model.FilterCriteria, error) {
	c := model.FilterCriteria{
		DateFrom:   ticketFlags.from,
		DateTo:     ticketFlags.to,
		Search:     ticketFlags.query,
		Technician: ticketFlags.tech,
		Status:     model.TicketStatus(ticketFlags.status),
		ViewAll:    ticketFlags.all,
	}
	if c.Status != "" && !c.Status.Valid() {
		return c, fmt.Errorf("unknown status %q", c.Status)
	}
	if !c.ViewAll && c.DateFrom == "" && c.DateTo == "" {
		today := filter.Today(now)
		c.DateFrom, c.DateTo = today.DateFrom, today.DateTo
	}
	return c, nil
}

// listForSession loads the session user and the filtered cached tickets.
func listForSession(cmd *cobra.Command) (model.User, []model.Ticket, error) {
	crit, err := ticketCriteria(time.Now())
	if err != nil {
		return model.User{}, nil, err
	}
	desk, err := openDesk(cmd.Context())
	if err != nil {
		return model.User{}, nil, err
	}
	defer desk.Close()

	u, err := desk.Service.CurrentUser(cmd.Context())
	if err != nil {
		return model.User{}, nil, fmt.Errorf("%w (run login first)", err)
	}
	items, err := desk.Service.List(cmd.Context(), u, crit)
	if err != nil {
		return model.User{}, nil, err
	}
	return u, items, nil
}

func runTickets(cmd *cobra.Command, args []string) error {
	u, items, err := listForSession(cmd)
	if err != nil {
		return fmt.Errorf("tickets: %w", err)
	}
	return printTickets(cmd.OutOrStdout(), items, u.IsAdmin())
}

func printTickets(w io.Writer, items []model.Ticket, withTotals bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNGÀY\tKHÁCH HÀNG\tSĐT\tKỸ THUẬT\tTRẠNG THÁI\tDOANH THU\tCÔNG NỢ")
	for _, t := range items {
		tech := t.Technician
		if tech == "" {
			tech = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Date(), t.CustomerName, t.Phone, tech, t.Status,
			report.FormatVND(t.Revenue), report.FormatVND(t.Debt))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !withTotals {
		_, err := fmt.Fprintf(w, "%d phiếu\n", len(items))
		return err
	}
	s := service.Summarize(items)
	_, err := fmt.Fprintf(w, "%d phiếu, doanh thu %sđ, giá vốn %sđ, lợi nhuận %sđ, công nợ %sđ\n",
		s.Count, report.FormatVND(s.Revenue), report.FormatVND(s.Cost),
		report.FormatVND(s.Profit), report.FormatVND(s.Debt))
	return err
}

func runTicketsExport(cmd *cobra.Command, args []string) error {
	u, items, err := listForSession(cmd)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	path := exportOutput
	if path == "" {
		path = report.FileName(time.Now())
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := report.Write(f, items, u.IsAdmin()); err != nil {
		f.Close()
		return fmt.Errorf("export: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "export: wrote %d tickets to %s\n", len(items), path)
	return nil
}
