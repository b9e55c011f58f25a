// Package main mints operator access tokens for local development against the activity
// API. Tokens are signed with the development key unless -key is given.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "reloop/internal/jwt_token"
	id "reloop/pkg/domain"
	"reloop/pkg/requestcontext"
)

const (
	// Matches config.FromEnv when JWT_SIGNING_KEY is unset in development.
	devSigningKey   = "dev-secret-key-change-in-production"
	defaultIssuer   = "reloop"
	defaultTokenTTL = time.Hour
)

type tokenOutput struct {
	Token     string            `json:"token"`
	ExpiresIn string            `json:"expires_in"`
	Claims    map[string]string `json:"claims"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	flags := flag.NewFlagSet("tokengen", flag.ExitOnError)
	userID := flags.String("user-id", "", "Subject user ID (required)")
	superAdmin := flags.Bool("super-admin", false, "Grant the super admin role (cross-user queries)")
	role := flags.String("role", "admin", "Role claim when -super-admin is not set")
	ttl := flags.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	key := flags.String("key", envOr("JWT_SIGNING_KEY", devSigningKey), "HS256 signing key")
	issuer := flags.String("issuer", envOr("JWT_ISSUER", defaultIssuer), "Token issuer")
	asJSON := flags.Bool("json", false, "Output as JSON")
	_ = flags.Parse(os.Args[1:])

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "tokengen: -user-id is required")
		flags.Usage()
		os.Exit(2)
	}
	if *superAdmin {
		*role = requestcontext.RoleSuperAdmin
	}

	svc := jwttoken.NewJWTService(*key, *issuer, *ttl)
	token, err := svc.GenerateAccessToken(id.UserID(*userID), *role, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		os.Exit(1)
	}

	if !*asJSON {
		fmt.Println(token)
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tokenOutput{
		Token:     token,
		ExpiresIn: ttl.String(),
		Claims:    map[string]string{"userId": *userID, "role": *role, "iss": *issuer},
		Usage:     map[string]string{"header": "Authorization: Bearer <token>"},
	}); err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: encode: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
