// Command orgreview is the moderator's console for organization signups. It
// lists the pending queue and approves or rejects one organization through
// the lifecycle engine, so the owner is notified as with the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"clothdonate/internal/adapter/repo"
	"clothdonate/internal/domain"
	"clothdonate/internal/infra"
	"clothdonate/internal/lifecycle"
	"clothdonate/internal/notify/render"
	"clothdonate/internal/sqlinline"
)

func main() {
	var (
		adminFlag   string
		approveFlag string
		rejectFlag  string
		limitFlag   int
	)
	flag.StringVar(&adminFlag, "admin", "", "admin user ID recorded as the reviewer (UUID)")
	flag.StringVar(&approveFlag, "approve", "", "organization ID to approve")
	flag.StringVar(&rejectFlag, "reject", "", "organization ID to reject")
	flag.IntVar(&limitFlag, "limit", 50, "maximum pending organizations to list")
	flag.Parse()

	approveID := strings.TrimSpace(approveFlag)
	rejectID := strings.TrimSpace(rejectFlag)
	if approveID != "" && rejectID != "" {
		exitWithError(errors.New("use only one of -approve or -reject"))
	}
	admin := lifecycle.Actor{UserID: strings.TrimSpace(adminFlag), Role: domain.UserRoleAdmin}
	if admin.UserID == "" {
		exitWithError(errors.New("-admin is required"))
	}

	infra.LoadDotEnv()
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", "").With().Str("cmd", "orgreview").Logger()
	runner := infra.NewSQLRunner(pool, logger)

	catalog, err := render.Default("en")
	if err != nil {
		exitWithError(err)
	}
	engine, err := lifecycle.NewEngine(lifecycle.Options{
		Store:    repo.NewStore(runner),
		Renderer: catalog,
		Logger:   logger,
	})
	if err != nil {
		exitWithError(err)
	}

	switch {
	case approveID != "":
		org, err := engine.Approve(ctx, admin, approveID)
		if err != nil {
			exitWithError(fmt.Errorf("approve %s: %w", approveID, err))
		}
		fmt.Printf("Organization %s (%s) is now %s\n", org.ID, org.Name, org.Status)
	case rejectID != "":
		org, err := engine.Reject(ctx, admin, rejectID)
		if err != nil {
			exitWithError(fmt.Errorf("reject %s: %w", rejectID, err))
		}
		fmt.Printf("Organization %s (%s) is now %s\n", org.ID, org.Name, org.Status)
	default:
		orgs, err := engine.ListPendingOrganizations(ctx, admin, limitFlag)
		if err != nil {
			exitWithError(fmt.Errorf("list pending: %w", err))
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tBUSINESS NUMBER\tREQUESTED")
		for _, o := range orgs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.ID, o.Name, o.BusinessNumber, o.CreatedAt.Format(time.RFC3339))
		}
		_ = tw.Flush()
	}

	if err := printSummary(ctx, runner); err != nil {
		exitWithError(err)
	}
}

func printSummary(ctx context.Context, runner *infra.SQLRunner) error {
	rows, err := runner.Query(ctx, sqlinline.QCountOrganizationsByStatus)
	if err != nil {
		return fmt.Errorf("count organizations: %w", err)
	}
	defer rows.Close()
	var parts []string
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return fmt.Errorf("scan count: %w", err)
		}
		parts = append(parts, fmt.Sprintf("%s=%d", strings.ToLower(status), n))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	fmt.Println(strings.Join(parts, " "))
	return nil
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
