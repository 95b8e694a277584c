// Command oxidecms is the operational CLI for the content backend: it runs
// contributor-store migrations and bootstraps the first admin account. The
// backend itself is a library embedded by a host server.
package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	oxidecms "github.com/a-s-l-a-h/oxidecms-core-backend"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/authpw"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/config"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/store"
)

func main() {
	log := logrus.New()
	cfg := config.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "migrate":
		if err := runMigrate(ctx, cfg); err != nil {
			log.WithError(err).Fatal("migrate failed")
		}
		log.Info("migrations applied")
	case "create-admin":
		if err := runCreateAdmin(ctx, cfg, log); err != nil {
			log.WithError(err).Fatal("create-admin failed")
		}
	case "reindex":
		if err := runReindex(ctx, cfg, log); err != nil {
			log.WithError(err).Fatal("reindex failed")
		}
		log.Info("reindex complete")
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: oxidecms <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  migrate       apply contributor database migrations")
	fmt.Fprintln(os.Stderr, "  create-admin  create the bootstrap admin account")
	fmt.Fprintln(os.Stderr, "  reindex       rebuild the external search index from published posts")
}

func runMigrate(ctx context.Context, cfg config.Config) error {
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	return store.ApplyMigrations(ctx, db)
}

func runCreateAdmin(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.ApplyMigrations(ctx, db); err != nil {
		return err
	}

	contributors := store.New(db)
	users, err := contributors.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.IsAdmin() {
			log.WithField("username", u.Username).Info("admin account already exists")
			return nil
		}
	}

	password := cfg.AdminPassword
	if password == "" {
		password, err = promptPassword(cfg.AdminUsername)
		if err != nil {
			return err
		}
	}

	auth := authpw.NewService(contributors)
	admin, err := auth.CreateUser(ctx, cfg.AdminUsername, password, domain.RoleAdmin)
	if err != nil {
		return err
	}
	log.WithField("username", admin.Username).Info("admin account created")
	return nil
}

func runReindex(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	backend, err := oxidecms.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()
	return backend.Reindex(ctx)
}

func promptPassword(username string) (string, error) {
	fmt.Fprintf(os.Stderr, "password for %s: ", username)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}
