// Command devtoken mints a bearer token for local testing against cmd/api.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"clothdonate/internal/domain"
	"clothdonate/internal/infra"
	"clothdonate/internal/middleware"
)

func main() {
	var (
		subFlag    string
		roleFlag   string
		localeFlag string
		ttlFlag    time.Duration
	)
	flag.StringVar(&subFlag, "sub", "", "user ID placed in the subject claim (random UUID when empty)")
	flag.StringVar(&roleFlag, "role", string(domain.UserRoleUser), "role claim (user or admin)")
	flag.StringVar(&localeFlag, "locale", "", "optional locale claim (en, id)")
	flag.DurationVar(&ttlFlag, "ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	infra.LoadDotEnv()
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		exitWithError(fmt.Errorf("JWT_SECRET is required"))
	}
	issuer := strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	if issuer == "" {
		issuer = "clothdonate"
	}

	role := domain.UserRole(strings.ToLower(strings.TrimSpace(roleFlag)))
	switch role {
	case domain.UserRoleUser, domain.UserRoleAdmin:
	default:
		exitWithError(fmt.Errorf("unsupported role %q", roleFlag))
	}
	sub := strings.TrimSpace(subFlag)
	if sub == "" {
		sub = uuid.NewString()
	} else if _, err := uuid.Parse(sub); err != nil {
		exitWithError(fmt.Errorf("-sub must be a UUID: %w", err))
	}

	token, err := middleware.SignToken(secret, issuer, middleware.Principal{
		UserID: sub,
		Role:   role,
		Locale: strings.TrimSpace(localeFlag),
	}, ttlFlag, time.Now())
	if err != nil {
		exitWithError(err)
	}
	fmt.Fprintf(os.Stderr, "sub=%s role=%s expires_in=%s\n", sub, role, ttlFlag)
	fmt.Println(token)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
