package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/nikolayk812/biashara-pos/internal/cart"
	"github.com/nikolayk812/biashara-pos/internal/domain"
)

const tillHelp = `commands:
  search <terms>             look up products
  add <product id> [qty]     add a product from the last search
  qty <product id> <qty>     change a line quantity
  rm <product id>            remove a line
  pay cash|credit            choose the payment method
  pay mpesa [reference]      pay by M-PESA
  customer <name> <phone>    set the customer
  mpesa <phone>              send an M-PESA payment prompt
  show                       print the cart
  submit                     record the sale
  reset                      start over
  quit                       leave the till
`

var errUnknownCommand = errors.New("unknown command, type help")

type sellCmd struct{}

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "run an interactive till" }
func (*sellCmd) Usage() string {
	return `sell

  Reads till commands from stdin, one per line, and records sales.

` + tillHelp
}

func (*sellCmd) SetFlags(*flag.FlagSet) {}

func (*sellCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	s, err := a.requireSession(ctx)
	if err != nil {
		return fail(err)
	}

	engine, err := a.newEngine()
	if err != nil {
		return fail(err)
	}
	defer engine.Close()

	printUser(os.Stdout, "Till open for", s)
	if err := newTill(engine, os.Stdout).run(ctx, os.Stdin); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

// till drives a cart engine from line-oriented commands.
type till struct {
	engine *cart.Engine
	out    io.Writer
}

func newTill(engine *cart.Engine, out io.Writer) *till {
	return &till{engine: engine, out: out}
}

// run executes commands until quit, end of input or cancellation. Command
// errors are printed and do not stop the till.
func (t *till) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(t.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(t.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		quit, err := t.exec(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintln(t.out, "error:", domain.UserMessage(err))
		}
		if quit {
			return nil
		}
	}
}

func (t *till) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	switch verb {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprint(t.out, tillHelp)
		return false, nil
	case "search":
		return false, t.search(ctx, strings.Join(args, " "))
	case "add":
		return false, t.add(args)
	case "qty":
		return false, t.setQuantity(args)
	case "rm":
		return false, t.remove(args)
	case "pay":
		return false, t.pay(args)
	case "customer":
		return false, t.setCustomer(args)
	case "mpesa":
		return false, t.mpesa(ctx, args)
	case "show":
		t.show()
		return false, nil
	case "submit":
		return false, t.submit(ctx)
	case "reset":
		t.engine.Reset()
		fmt.Fprintln(t.out, "cart cleared")
		return false, nil
	}
	return false, errUnknownCommand
}

func (t *till) search(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return errors.New("usage: search <terms>")
	}
	res := t.engine.SearchNow(ctx, query)
	if res.Err != nil {
		return res.Err
	}
	printProducts(t.out, res.Products)
	return nil
}

func (t *till) add(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: add <product id> [qty]")
	}
	id, err := parseProductID(args[0])
	if err != nil {
		return err
	}
	qty := 1
	if len(args) == 2 {
		if qty, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("invalid quantity %q", args[1])
		}
	}

	product, ok := t.engine.Pick(id)
	if !ok {
		return fmt.Errorf("product %d is not in the search results, search for it first", id)
	}
	if err := t.engine.AddOrIncrement(product, qty); err != nil {
		return err
	}
	fmt.Fprintf(t.out, "added %d x %s, total %s\n", qty, product.Name, t.engine.Total())
	return nil
}

func (t *till) setQuantity(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: qty <product id> <qty>")
	}
	id, err := parseProductID(args[0])
	if err != nil {
		return err
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid quantity %q", args[1])
	}
	if err := t.engine.SetQuantity(id, qty); err != nil {
		return err
	}
	fmt.Fprintf(t.out, "total %s\n", t.engine.Total())
	return nil
}

func (t *till) remove(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: rm <product id>")
	}
	id, err := parseProductID(args[0])
	if err != nil {
		return err
	}
	if err := t.engine.Remove(id); err != nil {
		return err
	}
	fmt.Fprintf(t.out, "total %s\n", t.engine.Total())
	return nil
}

func (t *till) pay(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: pay cash|mpesa [reference]|credit")
	}
	method, err := domain.ParsePaymentMethod(args[0])
	if err != nil {
		return err
	}

	current := t.engine.Draft().Payment
	customer := buyer(current)

	var payment domain.Payment
	switch method {
	case domain.PaymentMpesa:
		ref := strings.Join(args[1:], " ")
		if m, ok := current.(domain.Mpesa); ok && ref == "" {
			ref = m.ReferenceNumber
		}
		payment = domain.Mpesa{Customer: customer, ReferenceNumber: ref}
	case domain.PaymentCredit:
		payment = domain.Credit{Customer: customer}
	default:
		payment = domain.Cash{Customer: customer}
	}
	if err := t.engine.SetPayment(payment); err != nil {
		return err
	}
	fmt.Fprintf(t.out, "payment %s\n", method)
	return nil
}

// setCustomer takes the last argument as the phone and the rest as the name.
func (t *till) setCustomer(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: customer <name> <phone>")
	}
	customer := domain.Customer{
		Name:  strings.Join(args[:len(args)-1], " "),
		Phone: args[len(args)-1],
	}

	var payment domain.Payment
	switch p := t.engine.Draft().Payment.(type) {
	case domain.Mpesa:
		p.Customer = customer
		payment = p
	case domain.Credit:
		p.Customer = customer
		payment = p
	default:
		payment = domain.Cash{Customer: customer}
	}
	if err := t.engine.SetPayment(payment); err != nil {
		return err
	}
	fmt.Fprintf(t.out, "customer %s %s\n", customer.Name, customer.Phone)
	return nil
}

func (t *till) mpesa(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: mpesa <phone>")
	}
	res, err := t.engine.InitiateMpesa(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(t.out, "payment prompt sent: %s (checkout request %s)\n", res.ResponseDescription, res.CheckoutRequestID)
	return nil
}

func (t *till) show() {
	items := t.engine.Items()
	if len(items) == 0 {
		fmt.Fprintln(t.out, "cart is empty")
		return
	}

	tw := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tName\tQty\tPrice\tAmount")
	for _, it := range items {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n",
			it.Line.ProductID, it.Product.Name, it.Line.Quantity, it.Line.UnitPrice, it.Amount)
	}
	_ = tw.Flush()

	payment := t.engine.Draft().Payment
	method := domain.PaymentCash
	if payment != nil {
		method = payment.Method()
	}
	fmt.Fprintf(t.out, "payment: %s\n", method)
	if c := buyer(payment); c.Name != "" || c.Phone != "" {
		fmt.Fprintf(t.out, "customer: %s %s\n", c.Name, c.Phone)
	}
	fmt.Fprintf(t.out, "total: %s\n", t.engine.Total())
}

func (t *till) submit(ctx context.Context) error {
	conf, err := t.engine.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.out, "%s: %d lines, %s\n", conf.Message, conf.LineCount, conf.Total)
	return nil
}

func buyer(p domain.Payment) domain.Customer {
	if p == nil {
		return domain.Customer{}
	}
	return p.Buyer()
}

func parseProductID(s string) (domain.ProductID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid product id %q", s)
	}
	return domain.ProductID(id), nil
}
