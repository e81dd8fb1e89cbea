// Command samajctl performs operator tasks against the Mero Samaj database:
// promoting a superadmin, listing NGO applications and repairing roles.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/pflag"

	"merosamaj.org/internal/cache"
	"merosamaj.org/internal/config"
	"merosamaj.org/internal/store/pg"
)

type command struct {
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

var commands = map[string]command{
	"grant-superadmin": {"give an existing account the superadmin role", runGrantSuperadmin},
	"list-ngos":        {"list NGO applications by status", runListNGOs},
	"reconcile":        {"repair profile roles from verification records", runReconcile},
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := pflag.NewFlagSet("samajctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	dsn := global.String("dsn", "", "PostgreSQL DSN (default: SAMAJ_PG_DSN)")
	timeout := global.Duration("timeout", 30*time.Second, "overall deadline")
	global.Usage = func() { printHelp(global) }
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		printHelp(global)
		return fmt.Errorf("missing command")
	}
	name := global.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *dsn == "" {
		*dsn = cfg.PGDSN
	}
	if *dsn == "" {
		return errors.New("missing DSN: provide via --dsn or SAMAJ_PG_DSN")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	st, err := pg.Open(*dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	e := &env{store: st, out: os.Stdout}
	if cfg.RedisAddr != "" {
		roles := cache.NewRoles(cache.NewClient(cfg.RedisAddr, cfg.RedisPassword), cfg.RoleCacheTTL)
		defer roles.Close()
		e.cache = roles
	}
	return cmd.run(ctx, e, global.Args()[1:])
}

func printHelp(flags *pflag.FlagSet) {
	fmt.Fprintln(os.Stderr, "usage: samajctl [--dsn DSN] <command> [flags]")
	fmt.Fprintln(os.Stderr, "\ncommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-18s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(os.Stderr, "\nflags:")
	flags.PrintDefaults()
}
