// Command reservectl drives a reservation account from the terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dvcrn/reserve-client/internal/api"
	"github.com/dvcrn/reserve-client/internal/app"
	"github.com/dvcrn/reserve-client/internal/auth"
	"github.com/dvcrn/reserve-client/internal/config"
	"github.com/dvcrn/reserve-client/internal/logger"
)

const usage = `usage: reservectl [-config path] <command> [flags]

commands:
  login        -email <email> [-password <pw>]   (RESERVE_PASSWORD is used when -password is empty)
  tokens       -access <token> -refresh <token>
  logout
  status
  user
  items        [-category c] [-q query]
  item         <id>
  reserve      -item <id> [-qty n]
  reservations
  jobs
  get          <endpoint>
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("reservectl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := global.String("config", "", "Path to a YAML config file")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	log := logger.NewDevelopment(stderr).Level(logger.ParseLevel(cfg.LogLevel))
	store, err := app.NewStore(cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "store: %v\n", err)
		return 1
	}
	a := app.New(cfg, store, log)
	a.Bootstrap(ctx)

	cmd, rest := global.Arg(0), global.Args()[1:]
	err = dispatch(ctx, a, cmd, rest, stdout, stderr)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		global.Usage()
		return 2
	case a.HandleSessionExpired(ctx, err):
		fmt.Fprintln(stderr, "session expired, run `reservectl login` again")
		return 1
	default:
		fmt.Fprintf(stderr, "%s: %v\n", cmd, err)
		return 1
	}
}

func dispatch(ctx context.Context, a *app.App, cmd string, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)

	switch cmd {
	case "login":
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		if *password == "" {
			*password = os.Getenv("RESERVE_PASSWORD")
		}
		if *email == "" || *password == "" {
			return errUsage
		}
		if err := a.SignIn(ctx, *email, *password); err != nil {
			return err
		}
		return printJSON(stdout, a.Session().State())

	case "tokens":
		access := fs.String("access", "", "access token")
		refresh := fs.String("refresh", "", "refresh token")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		if err := a.SignInWithTokens(ctx, *access, *refresh); err != nil {
			return err
		}
		return printJSON(stdout, a.Session().State())

	case "logout":
		if err := a.SignOut(ctx); err != nil {
			return err
		}
		return printJSON(stdout, a.Session().State())

	case "status":
		return printJSON(stdout, a.Status(ctx))

	case "user":
		u, err := a.API().User(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, u)

	case "items":
		category := fs.String("category", "", "category filter")
		query := fs.String("q", "", "search text")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		items, err := a.API().FoodItems(ctx, api.FoodItemQuery{Category: *category, Query: *query})
		if err != nil {
			return err
		}
		return printJSON(stdout, items)

	case "item":
		if len(args) != 1 {
			return errUsage
		}
		item, err := a.API().FoodItem(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(stdout, item)

	case "reserve":
		item := fs.String("item", "", "food item id")
		qty := fs.Int("qty", 1, "quantity")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		r, err := a.API().Reserve(ctx, *item, *qty)
		if err != nil {
			return err
		}
		return printJSON(stdout, r)

	case "reservations":
		rs, err := a.API().Reservations(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, rs)

	case "jobs":
		jobs, err := a.API().Jobs(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, jobs)

	case "get":
		if len(args) != 1 {
			return errUsage
		}
		return rawGet(ctx, a.Executor(), args[0], stdout)
	}
	return errUsage
}

// rawGet prints an arbitrary protected endpoint as returned by the backend.
func rawGet(ctx context.Context, exec *auth.Executor, endpoint string, stdout io.Writer) error {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	resp, err := exec.Do(ctx, endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(stdout, resp.Body); err != nil {
		return err
	}
	fmt.Fprintln(stdout)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("backend answered %s", resp.Status)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
