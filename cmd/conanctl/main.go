// Command conanctl seeds and updates registry user accounts. Request
// handling never creates users, so an operator runs this against the
// metadata database before pointing clients at the registry.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/conanshim/registry/internal/registry/config"
	"github.com/conanshim/registry/internal/registry/models"
	"github.com/conanshim/registry/internal/registry/repomanager"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func main() {

	cfg := config.Load()

	var (
		dsn      = flag.String("dsn", cfg.DatabaseDSN, "PostgreSQL DSN")
		username = flag.String("username", "", "account name (required)")
		role     = flag.String("role", models.RoleViewer, "account role: admin, developer or viewer")
	)
	flag.Parse()

	if err := run(context.Background(), *dsn, *username, *role); err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Println("Success!")
}

func run(ctx context.Context, dsn, username, role string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	switch role {
	case models.RoleAdmin, models.RoleDeveloper, models.RoleViewer:
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	password, err := promptPassword()
	if err != nil {
		return err
	}
	if len(password) == 0 {
		return fmt.Errorf("password must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("password hashing: %w", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := rm.Users(db).Upsert(ctx, user); err != nil {
		return fmt.Errorf("user upsert: %w", err)
	}
	return nil
}

func promptPassword() ([]byte, error) {
	fmt.Print("Enter password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return nil, err
	}
	return pw, nil
}
