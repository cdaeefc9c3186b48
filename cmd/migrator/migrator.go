package main

import (
	"context"
	"database/sql"
	"flag"
	"io/fs"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/NordCoder/pingboard/migrations"
)

func main() {
	dialect := flag.String("dialect", "postgres", "postgres or sqlite3")
	dsn := flag.String("dsn", os.Getenv("DB_DSN"), "database DSN or sqlite file path")
	down := flag.Bool("down", false, "roll back the latest migration instead")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("DB_DSN is empty")
	}

	var (
		driver string
		gd     goose.Dialect
		fsys   fs.FS
	)
	switch *dialect {
	case "postgres":
		driver, gd, fsys = "pgx", goose.DialectPostgres, migrations.Postgres()
	case "sqlite3":
		driver, gd, fsys = "sqlite3", goose.DialectSQLite3, migrations.SQLite()
	default:
		log.Fatalf("unknown dialect %q", *dialect)
	}

	db, err := sql.Open(driver, *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	provider, err := goose.NewProvider(gd, db, fsys)
	if err != nil {
		log.Fatalf("goose provider: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if *down {
		res, err := provider.Down(ctx)
		if err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		log.Printf("migrations: rolled back %s", res.Source.Path)
		return
	}
	results, err := provider.Up(ctx)
	if err != nil {
		log.Fatalf("migrate up: %v", err)
	}
	for _, r := range results {
		log.Printf("applied %s in %s", r.Source.Path, r.Duration)
	}
	log.Println("migrations: up OK")
}
