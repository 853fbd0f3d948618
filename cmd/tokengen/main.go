// Package main generates learner bearer tokens for local development.
// Tokens are signed with the dev key and are rejected outside dev.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	jwttoken "academy/internal/jwt_token"
	"academy/internal/platform/config"
	id "academy/pkg/domain"
	"academy/pkg/requestcontext"
)

const (
	// Matches config.FromEnv when JWT_SIGNING_KEY is not set.
	devSigningKey   = "dev-secret-key-change-in-production"
	defaultIssuer   = "academy"
	defaultAudience = "academy-api"
	defaultTokenTTL = 15 * time.Minute
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	ExpiresIn string            `json:"expires_in,omitempty"`
	Claims    map[string]any    `json:"claims,omitempty"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	learnerCmd := flag.NewFlagSet("learner", flag.ExitOnError)
	personFlag := learnerCmd.String("person-id", "", "Person ID (UUID). Generated if empty.")
	ttlFlag := learnerCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	keyFlag := learnerCmd.String("signing-key", envOr("JWT_SIGNING_KEY", devSigningKey), "HS256 signing key")
	issuerFlag := learnerCmd.String("issuer", envOr("JWT_ISSUER", defaultIssuer), "Token issuer")
	audienceFlag := learnerCmd.String("audience", envOr("JWT_AUDIENCE", defaultAudience), "Token audience")
	learnerJSON := learnerCmd.Bool("json", false, "Output as JSON")

	adminCmd := flag.NewFlagSet("admin", flag.ExitOnError)
	adminJSON := adminCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "learner":
		_ = learnerCmd.Parse(os.Args[2:])
		svc := jwttoken.NewJWTService(*keyFlag, *issuerFlag, *audienceFlag, *ttlFlag)
		svc.SetEnv("dev")
		generateLearnerToken(svc, *personFlag, *ttlFlag, *learnerJSON)
	case "admin":
		_ = adminCmd.Parse(os.Args[2:])
		showAdminToken(*adminJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate development tokens for the academy API

WARNING: Tokens use the dev signing key unless -signing-key is given.

Usage:
  tokengen <command> [flags]

Commands:
  learner   Generate a learner bearer token for /me routes
  admin     Show the dev X-Admin-Token value

Examples:
  tokengen learner -person-id "550e8400-e29b-41d4-a716-446655440000"
  tokengen learner -ttl 1h -json
  tokengen admin`)
}

func generateLearnerToken(svc *jwttoken.JWTService, rawPersonID string, ttl time.Duration, jsonOutput bool) {
	personID := parseOrGeneratePersonID(rawPersonID)

	token, err := svc.GenerateAccessToken(context.Background(), personID, requestcontext.RoleLearner)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Token:     token,
			Type:      "access_token",
			ExpiresIn: ttl.String(),
			Claims:    map[string]any{"sub": personID.String(), "role": string(requestcontext.RoleLearner)},
			Usage:     map[string]string{"header": "Authorization: Bearer <token>"},
		})
		return
	}
	fmt.Println("Learner Token (JWT)")
	fmt.Println("===================")
	fmt.Printf("Person ID:  %s\n", personID)
	fmt.Printf("Expires In: %s\n", ttl)
	fmt.Println()
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/me/credentials")
}

func showAdminToken(jsonOutput bool) {
	if jsonOutput {
		printJSON(tokenOutput{
			Token: config.DevAdminToken,
			Type:  "admin_token",
			Usage: map[string]string{
				"header": "X-Admin-Token: " + config.DevAdminToken,
				"note":   "Accepted when ACADEMY_ENV=dev and ADMIN_API_TOKEN is unset",
			},
		})
		return
	}
	fmt.Println("Admin API Token")
	fmt.Println("===============")
	fmt.Printf("Token: %s\n", config.DevAdminToken)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"X-Admin-Token: " + config.DevAdminToken + "\" http://localhost:8080/admin/...")
}

func parseOrGeneratePersonID(input string) id.PersonID {
	if input == "" {
		return id.PersonID(uuid.New())
	}
	personID, err := id.ParsePersonID(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid person-id UUID: %s\n", input)
		os.Exit(1)
	}
	return personID
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
