package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/nikolayk812/biashara-pos/internal/domain"
)

type searchCmd struct{}

func (*searchCmd) Name() string     { return "search" }
func (*searchCmd) Synopsis() string { return "look up products by name or barcode" }
func (*searchCmd) Usage() string {
	return `search <terms>

  Prints the products matching the terms with their price and available stock.
`
}

func (*searchCmd) SetFlags(*flag.FlagSet) {}

func (*searchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	query := strings.TrimSpace(strings.Join(f.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "search terms are required")
		return subcommands.ExitUsageError
	}

	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	if _, err := a.requireSession(ctx); err != nil {
		return fail(err)
	}

	engine, err := a.newEngine()
	if err != nil {
		return fail(err)
	}
	defer engine.Close()

	res := engine.SearchNow(ctx, query)
	if res.Err != nil {
		return fail(res.Err)
	}

	printProducts(os.Stdout, res.Products)
	return subcommands.ExitSuccess
}

type alertsCmd struct {
	status string
	search string
}

func (*alertsCmd) Name() string     { return "alerts" }
func (*alertsCmd) Synopsis() string { return "list low-stock alerts" }
func (*alertsCmd) Usage() string {
	return `alerts [-status all|resolved|unresolved] [-search <product name>]

  Lists low-stock alerts, newest as returned by the backend.
`
}

func (c *alertsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.status, "status", "all", "alert status to show: all, resolved or unresolved")
	f.StringVar(&c.search, "search", "", "product name substring")
}

func (c *alertsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	status, err := domain.ParseAlertStatus(c.status)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	if _, err := a.requireSession(ctx); err != nil {
		return fail(err)
	}

	alerts, err := a.client.LowStockAlerts(ctx)
	if err != nil {
		return fail(err)
	}

	printAlerts(os.Stdout, domain.FilterAlerts(alerts, domain.AlertFilter{Status: status, Search: c.search}))
	return subcommands.ExitSuccess
}

func printProducts(w io.Writer, products []domain.ResolvedProduct) {
	if len(products) == 0 {
		fmt.Fprintln(w, "No products found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tName\tPrice\tIn stock")
	for _, p := range products {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", p.ID, p.Name, p.Price, p.AvailableQuantity)
	}
	_ = tw.Flush()
}

func printAlerts(w io.Writer, alerts []domain.StockAlert) {
	if len(alerts) == 0 {
		fmt.Fprintln(w, "No alerts")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Product\tQuantity\tThreshold\tStatus\tRaised")
	for _, a := range alerts {
		status := "open"
		if a.Resolved {
			status = "resolved"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
			a.ProductName, a.CurrentQuantity, a.StockThreshold, status, a.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}
