package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/profile"
	"merosamaj.org/internal/session"
	"merosamaj.org/internal/store"
	"merosamaj.org/internal/verification"
)

// adminStore is the slice of the database samajctl touches.
type adminStore interface {
	AccountByEmail(ctx context.Context, email string) (identity.Account, error)
	profile.Store
	verification.Store
}

type invalidator interface {
	Invalidate(ctx context.Context, id string) error
}

type env struct {
	store adminStore
	cache invalidator
	out   io.Writer
}

// operator is the acting session for maintenance commands.
var operator = session.State{
	Identity: &identity.Identity{ID: "samajctl", Email: "samajctl@localhost"},
	Role:     profile.RoleSuperadmin,
}

func runGrantSuperadmin(ctx context.Context, e *env, args []string) error {
	flags := pflag.NewFlagSet("grant-superadmin", pflag.ContinueOnError)
	email := flags.String("email", "", "account email")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	id, err := grantSuperadmin(ctx, e, *email, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s (%s) is now superadmin\n", *email, id)
	return nil
}

// grantSuperadmin promotes the account with email. A missing profile is
// created so accounts left without one by a partial registration can
// still be promoted.
func grantSuperadmin(ctx context.Context, e *env, email string, now time.Time) (string, error) {
	acc, err := e.store.AccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("no account with email %s", email)
	}
	if err != nil {
		return "", err
	}

	err = e.store.SetRole(ctx, acc.ID, profile.RoleSuperadmin)
	if errors.Is(err, store.ErrNotFound) {
		err = e.store.PutProfile(ctx, profile.Profile{
			ID:        acc.ID,
			Name:      acc.DisplayName,
			Email:     acc.Email,
			Role:      profile.RoleSuperadmin,
			CreatedAt: now.UTC(),
		})
	}
	if err != nil {
		return "", fmt.Errorf("set role: %w", err)
	}
	if e.cache != nil {
		if err := e.cache.Invalidate(ctx, acc.ID); err != nil {
			return acc.ID, fmt.Errorf("role saved but cache invalidation failed: %w", err)
		}
	}
	return acc.ID, nil
}

func runListNGOs(ctx context.Context, e *env, args []string) error {
	flags := pflag.NewFlagSet("list-ngos", pflag.ContinueOnError)
	status := flags.StringP("status", "s", string(verification.StatusPending), "pending|approved|rejected|revoked")
	if err := flags.Parse(args); err != nil {
		return err
	}
	s := verification.Status(strings.ToLower(*status))
	if !s.Valid() {
		return fmt.Errorf("unknown status %q", *status)
	}
	recs, err := e.store.OrganizationsByStatus(ctx, s)
	if err != nil {
		return err
	}
	if s == verification.StatusApproved {
		verification.SortByOrgName(recs)
	}
	return printRecords(e.out, recs)
}

func printRecords(w io.Writer, recs []verification.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tORGANIZATION\tSTATUS\tSUBMITTED\tDOCUMENT")
	for _, r := range recs {
		doc := r.DocumentURL
		if doc == "" {
			doc = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.UserID, r.OrgName, r.Status, r.SubmittedAt.Format(time.DateOnly), doc)
	}
	return tw.Flush()
}

func runReconcile(ctx context.Context, e *env, args []string) error {
	flags := pflag.NewFlagSet("reconcile", pflag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}
	opts := []verification.ServiceOption{}
	if e.cache != nil {
		opts = append(opts, verification.WithInvalidator(e.cache))
	}
	report, err := verification.NewService(e.store, e.store, opts...).Reconcile(ctx, operator)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "checked %d, fixed %d, missing profiles %d\n", report.Checked, len(report.Fixed), len(report.Missing))
	for _, id := range report.Fixed {
		fmt.Fprintf(e.out, "fixed %s\n", id)
	}
	for _, id := range report.Missing {
		fmt.Fprintf(e.out, "missing %s\n", id)
	}
	return nil
}
