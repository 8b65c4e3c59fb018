// mktoken mints an operator JWT for the admin API. Run it on a host with
// the production JWT_SECRET; paste the output into an Authorization header.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/formwork/platform/internal/auth"
	"github.com/formwork/platform/internal/infra"
	"github.com/google/uuid"
)

func main() {
	email := flag.String("email", "", "operator email (informational claim)")
	role := flag.String("role", auth.RoleOperator, "token role: viewer, operator, or admin")
	flag.Parse()

	if err := run(*email, *role); err != nil {
		fmt.Fprintln(os.Stderr, "mktoken:", err)
		os.Exit(1)
	}
}

func run(email, role string) error {
	switch role {
	case auth.RoleViewer, auth.RoleOperator, auth.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	expiry, err := time.ParseDuration(cfg.JWTOperatorExpiry)
	if err != nil {
		return fmt.Errorf("parse operator JWT expiry: %w", err)
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, expiry).GenerateToken(uuid.New(), email, role)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	fmt.Println(token)
	return nil
}
