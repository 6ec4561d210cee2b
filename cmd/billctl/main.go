// Command billctl is the accounting operator's view of the settlement queue.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/nurpe/logistics-bills/internal/auth"
	"github.com/nurpe/logistics-bills/internal/client"
	"github.com/nurpe/logistics-bills/internal/model"
)

const usage = `usage: billctl [flags] <command> [args]

commands:
  queue                 list bills awaiting settlement
  settle <bill-id>      mark an Allinpay reserve as settled
  complete <bill-id>    mark a bill paid and CTN valid (needs --yes)
  summary               accounting summary of completed bills
  stats                 bill counts and service fee totals
`

type options struct {
	baseURL  string
	token    string
	secret   string
	username string
	blNumber string
	status   string
	search   string
	date     string
	yes      bool
	timeout  time.Duration
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "billctl:", describe(err))
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var opts options
	fs := pflag.NewFlagSet("billctl", pflag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage); fs.PrintDefaults() }
	fs.StringVar(&opts.baseURL, "url", envOr("BILLS_API_URL", "http://localhost:8000"), "bill service base URL")
	fs.StringVar(&opts.token, "token", os.Getenv("BILLS_TOKEN"), "bearer token")
	fs.StringVar(&opts.secret, "secret", os.Getenv("JWT_ACCESS_SECRET"), "sign a short-lived staff token with this secret when no token is given")
	fs.StringVar(&opts.username, "user", envOr("USER", "operator"), "username for a signed token")
	fs.StringVar(&opts.blNumber, "bl", "", "BL number filter")
	fs.StringVar(&opts.status, "status", "", "status filter")
	fs.StringVar(&opts.search, "search", "", "local BL number search")
	fs.StringVar(&opts.date, "date", "", "business day, YYYY-MM-DD")
	fs.BoolVarP(&opts.yes, "yes", "y", false, "confirm a completion")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	session, err := newSession(opts)
	if err != nil {
		return err
	}
	c := client.New(opts.baseURL, session)

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	command, rest := fs.Arg(0), fs.Args()[1:]
	switch command {
	case "queue":
		return showQueue(ctx, c, opts, out)
	case "settle":
		id, err := parseID(rest)
		if err != nil {
			return err
		}
		queue := client.NewReviewQueue(c, "")
		if err := queue.Refresh(ctx); err != nil {
			return err
		}
		if err := queue.SettleReserve(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "reserve settled for %s\n", id)
		return printBills(out, queue.Bills())
	case "complete":
		id, err := parseID(rest)
		if err != nil {
			return err
		}
		if !opts.yes {
			return errors.New("completion is final; rerun with --yes to confirm")
		}
		queue := client.NewReviewQueue(c, "")
		if err := queue.Complete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "bill %s completed\n", id)
		return printBills(out, queue.Bills())
	case "summary":
		report, err := c.AccountBills(ctx, opts.date, opts.blNumber)
		if err != nil {
			return err
		}
		return printSummary(out, report.Summary)
	case "stats":
		stats, err := c.StatsSummary(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Total bills\t%d\n", stats.TotalBills)
		fmt.Fprintf(w, "Completed\t%d\n", stats.CompletedBills)
		fmt.Fprintf(w, "Pending\t%d\n", stats.PendingBills)
		fmt.Fprintf(w, "Invoiced\t%s\n", stats.TotalInvoiceAmount)
		fmt.Fprintf(w, "Received\t%s\n", stats.TotalPaymentReceived)
		fmt.Fprintf(w, "Outstanding\t%s\n", stats.TotalPaymentOutstanding)
		return w.Flush()
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func showQueue(ctx context.Context, c *client.Client, opts options, out io.Writer) error {
	queue := client.NewReviewQueue(c, opts.blNumber)
	if err := queue.Refresh(ctx); err != nil {
		return err
	}
	bills := queue.Filter(opts.search, opts.status)
	if err := printBills(out, bills); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return printSummary(out, queue.Summary())
}

func newSession(opts options) (*client.Session, error) {
	if opts.token != "" {
		return client.NewSession(opts.token, model.Principal{Username: opts.username}), nil
	}
	if opts.secret == "" {
		return nil, errors.New("no credentials: set --token or --secret")
	}
	principal := model.Principal{UserID: opts.username, Username: opts.username, Role: model.RoleStaff}
	token, err := auth.NewParser(opts.secret).Issue(principal, 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return client.NewSession(token, principal), nil
}

func printBills(out io.Writer, bills []model.Bill) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tBL NUMBER\tCUSTOMER\tSTATUS\tMETHOD\tPAYMENT\tRESERVE\tTOTAL")
	for _, bill := range bills {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			bill.ID, dash(bill.BLNumber), dash(bill.CustomerName), bill.Status.Label(),
			dash(bill.PaymentMethod), dash(bill.PaymentStatus), dash(bill.ReserveStatus), bill.Total())
	}
	return w.Flush()
}

func printSummary(out io.Writer, s model.Summary) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Entries\t%d\n", s.TotalEntries)
	fmt.Fprintf(w, "CTN fees\t%s\n", s.TotalCTNFee)
	fmt.Fprintf(w, "Service fees\t%s\n", s.TotalServiceFee)
	fmt.Fprintf(w, "Bank transfer\t%s\n", s.BankTotal)
	fmt.Fprintf(w, "Allinpay 85%%\t%s\n", s.Allinpay85Total)
	fmt.Fprintf(w, "Reserve 15%%\t%s\n", s.ReserveTotal)
	return w.Flush()
}

func parseID(args []string) (uuid.UUID, error) {
	if len(args) != 1 {
		return uuid.Nil, errors.New("expected exactly one bill id")
	}
	id, err := uuid.Parse(strings.TrimSpace(args[0]))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid bill id %q", args[0])
	}
	return id, nil
}

// describe turns client errors into operator-facing text.
func describe(err error) string {
	var remote *client.RemoteError
	var validation *client.ValidationError
	switch {
	case errors.Is(err, client.ErrUnauthenticated):
		return "not signed in or session expired; obtain a new token"
	case errors.As(err, &remote):
		return remote.Message
	case errors.As(err, &validation):
		return validation.Error()
	default:
		return err.Error()
	}
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
