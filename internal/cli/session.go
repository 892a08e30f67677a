package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/nikolayk812/biashara-pos/internal/domain"
)

type loginCmd struct {
	email    string
	password string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "sign in and persist the session token" }
func (*loginCmd) Usage() string {
	return `login -email <email> [-password <password>]

  Signs in against the backend. The password is read from stdin when not given.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "account email")
	f.StringVar(&c.password, "password", "", "account password")
}

func (c *loginCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.email == "" {
		fmt.Fprintln(os.Stderr, "-email is required")
		return subcommands.ExitUsageError
	}

	password, err := passwordOrPrompt(c.password, os.Stdin, os.Stdout)
	if err != nil {
		return fail(err)
	}

	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	s, err := a.guard.Login(ctx, c.email, password)
	if err != nil {
		return fail(err)
	}

	printUser(os.Stdout, "Signed in as", s)
	return subcommands.ExitSuccess
}

type registerCmd struct {
	fullName string
	email    string
	password string
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "create an account and sign in" }
func (*registerCmd) Usage() string {
	return `register -name <full name> -email <email> [-password <password>]

  Creates an account and signs in with it. The password is read from stdin when not given.
`
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.fullName, "name", "", "full name")
	f.StringVar(&c.email, "email", "", "account email")
	f.StringVar(&c.password, "password", "", "account password")
}

func (c *registerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.fullName == "" || c.email == "" {
		fmt.Fprintln(os.Stderr, "-name and -email are required")
		return subcommands.ExitUsageError
	}

	password, err := passwordOrPrompt(c.password, os.Stdin, os.Stdout)
	if err != nil {
		return fail(err)
	}

	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	s, err := a.guard.Register(ctx, c.fullName, c.email, password)
	if err != nil {
		return fail(err)
	}

	printUser(os.Stdout, "Registered and signed in as", s)
	return subcommands.ExitSuccess
}

type logoutCmd struct{}

func (*logoutCmd) Name() string     { return "logout" }
func (*logoutCmd) Synopsis() string { return "forget the persisted session token" }
func (*logoutCmd) Usage() string {
	return `logout

  Deletes the persisted session token. Never fails on a missing token.
`
}

func (*logoutCmd) SetFlags(*flag.FlagSet) {}

func (*logoutCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	a.guard.Logout(ctx)
	fmt.Println("Signed out")
	return subcommands.ExitSuccess
}

type whoamiCmd struct{}

func (*whoamiCmd) Name() string     { return "whoami" }
func (*whoamiCmd) Synopsis() string { return "verify the persisted session token" }
func (*whoamiCmd) Usage() string {
	return `whoami

  Verifies the persisted token with the backend and prints the signed-in user.
  A rejected token is deleted.
`
}

func (*whoamiCmd) SetFlags(*flag.FlagSet) {}

func (*whoamiCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	s, err := a.requireSession(ctx)
	if err != nil {
		return fail(err)
	}

	printUser(os.Stdout, "Signed in as", s)
	return subcommands.ExitSuccess
}

func passwordOrPrompt(password string, in io.Reader, out io.Writer) (string, error) {
	if password != "" {
		return password, nil
	}
	line, err := prompt(bufio.NewReader(in), out, "Password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return line, nil
}

func printUser(w io.Writer, label string, s domain.Session) {
	if s.User == nil {
		return
	}
	fmt.Fprintf(w, "%s %s <%s>\n", label, s.User.FullName, s.User.Email)
}
