// Command bootstrap-api-key issues, lists or revokes API keys directly
// against the key store, for setups where no admin client exists yet.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/epochzone/epochzone/internal/auth"
	"github.com/epochzone/epochzone/internal/repository"
)

type output struct {
	KeyID     string     `json:"key_id"`
	Key       string     `json:"key"`
	KeyPrefix string     `json:"key_prefix"`
	Label     string     `json:"label,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", envOr("DATABASE_URL", "epochzone.db"), "Key store: postgres:// URL, bolt://path or SQLite path")
		label       = flag.String("label", "bootstrap", "Label for the new key")
		ttl         = flag.Duration("ttl", 0, "Key lifetime, 0 for no expiry")
		list        = flag.Bool("list", false, "List keys instead of issuing one")
		revoke      = flag.String("revoke", "", "Revoke the key with this ID instead of issuing one")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := repository.Open(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open key store:", err)
		os.Exit(1)
	}
	defer store.Close()

	// The admin key is only checked by the HTTP admin routes; any value
	// satisfies the service here.
	svc, err := auth.NewService(store, auth.Config{AdminKey: envOr("ADMIN_API_KEY", "bootstrap")})
	if err != nil {
		fmt.Fprintln(os.Stderr, "create auth service:", err)
		os.Exit(1)
	}

	switch {
	case *list:
		err = listKeys(ctx, svc, os.Stdout)
	case *revoke != "":
		err = svc.RevokeKey(ctx, *revoke)
		if err == nil {
			fmt.Println("revoked", *revoke)
		}
	default:
		err = issueKey(ctx, svc, *label, *ttl, *format, os.Stdout)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func issueKey(ctx context.Context, svc *auth.Service, label string, ttl time.Duration, format string, w io.Writer) error {
	in := auth.CreateKeyInput{Label: label}
	if ttl > 0 {
		exp := time.Now().Add(ttl).UTC()
		in.ExpiresAt = &exp
	}

	created, err := svc.GenerateKey(ctx, in)
	if err != nil {
		return fmt.Errorf("generate api key: %w", err)
	}

	out := output{
		KeyID:     created.Key.ID,
		Key:       created.Secret,
		KeyPrefix: created.Key.KeyPrefix,
		Label:     created.Key.Label,
		ExpiresAt: created.Key.ExpiresAt,
	}

	switch strings.ToLower(format) {
	case "plain":
		fmt.Fprintln(w, out.Key)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		return fmt.Errorf("invalid format %q; use plain or json", format)
	}
	return nil
}

func listKeys(ctx context.Context, svc *auth.Service, w io.Writer) error {
	keys, err := svc.ListKeys(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPREFIX\tLABEL\tCREATED\tSTATUS")
	now := time.Now()
	for _, k := range keys {
		status := "active"
		switch {
		case k.IsRevoked():
			status = "revoked"
		case k.IsExpired(now):
			status = "expired"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", k.ID, k.KeyPrefix, k.Label, k.CreatedAt.Format(time.RFC3339), status)
	}
	return tw.Flush()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
