package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/pflag"

	"merosamaj.org/internal/migrate"
)

func main() {
	log.SetFlags(0)
	flags := pflag.NewFlagSet("migrate", pflag.ExitOnError)
	var (
		dsn            = flags.String("dsn", os.Getenv("SAMAJ_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = flags.String("migrations", "", "Directory of SQL migrations (default: embedded)")
		seedsPath      = flags.String("seeds", "", "Directory of SQL seeds (default: embedded)")
		timeout        = flags.Duration("timeout", 30*time.Second, "Overall deadline")
	)
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [flags] up|down|seed|status")
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	if *dsn == "" {
		log.Fatal("missing DSN: provide via --dsn or SAMAJ_PG_DSN")
	}
	if flags.NArg() == 0 {
		flags.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, source(*migrationsPath, migrate.Migrations()), source(*seedsPath, migrate.Seeds()))

	cmd := flags.Arg(0)
	switch cmd {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatalf("unknown command %q", cmd)
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", cmd, err)
	}
}

func source(dir string, embedded fs.FS) fs.FS {
	if dir == "" {
		return embedded
	}
	return os.DirFS(dir)
}
