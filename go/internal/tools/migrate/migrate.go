package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/partytrivia/go/internal/dbconfig"
	"github.com/mcdev12/partytrivia/go/internal/roomstore"
)

// migrate creates the rooms table and, when ROOM_TTL is set, deletes rooms
// that have not been written for that long.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// 1) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 2) Apply the schema; it is idempotent
	if _, err := pool.Exec(ctx, roomstore.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "apply schema: %v\n", err)
		os.Exit(1)
	}

	// 3) Optionally purge idle rooms
	var purged int64
	if raw := os.Getenv("ROOM_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			fmt.Fprintf(os.Stderr, "invalid ROOM_TTL %q\n", raw)
			os.Exit(1)
		}
		tag, err := pool.Exec(ctx,
			`DELETE FROM rooms WHERE updated_at < now() - make_interval(secs => $1)`,
			ttl.Seconds(),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "purge rooms: %v\n", err)
			os.Exit(1)
		}
		purged = tag.RowsAffected()
	}

	var total int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM rooms`).Scan(&total); err != nil {
		fmt.Fprintf(os.Stderr, "count rooms: %v\n", err)
		os.Exit(1)
	}

	// 4) Print summary
	fmt.Printf("Migration complete on %s: %d rooms, %d purged\n", cfg.Redacted(), total, purged)
}
