// Package main prints recent access decisions from the audit database. It exits
// non-zero on any failure so it can gate deployment checks on a reachable database.
//
// Usage: audit-report [-denied] [-user name] [-path prefix] [-since 24h] [-limit 50]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/church-dashboard/church-dashboard/internal/config"
	"github.com/church-dashboard/church-dashboard/internal/db"
	"github.com/church-dashboard/church-dashboard/internal/db/repositories"
)

func main() {
	denied := flag.Bool("denied", false, "only show denied decisions")
	user := flag.String("user", "", "filter by user name")
	path := flag.String("path", "", "filter by path prefix")
	since := flag.Duration("since", 24*time.Hour, "look back this far")
	limit := flag.Int("limit", 50, "maximum rows")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), 2, 1)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close()

	from := time.Now().Add(-*since)
	filters := repositories.AccessAuditFilters{Path: path, Since: &from}
	if *denied {
		granted := false
		filters.Granted = &granted
	}
	if *user != "" {
		filters.UserName = user
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo := repositories.NewAccessAuditRepository(db.Wrap(database))
	rows, total, err := repo.ListAccessAudit(ctx, filters, *limit, 0)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tGUARD\tOUTCOME\tREASON\tUSER\tROLES\tPATH")
	for _, r := range rows {
		outcome := "denied"
		if r.Granted {
			outcome = "granted"
		}
		name := "-"
		if r.UserName != nil {
			name = *r.UserName
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Local().Format(time.DateTime), r.Guard, outcome, r.Reason,
			name, strings.Join(r.Roles, ","), r.Path)
	}
	w.Flush()

	fmt.Printf("\n%d of %d decision(s) since %s\n", len(rows), total, from.Format(time.RFC3339))
}
