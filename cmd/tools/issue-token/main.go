// cmd/tools/issue-token/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"intake-service/internal/common/auth"
	"intake-service/internal/common/config"
)

// Issues a bearer token signed with the configured secret, for local runs
// against the API.
func main() {
	var (
		subject    = flag.String("sub", "", "applicant id (token subject)")
		username   = flag.String("username", "", "username claim")
		email      = flag.String("email", "", "email claim")
		admin      = flag.Bool("admin", false, "grant the admin role")
		ttl        = flag.Duration("ttl", time.Hour, "token lifetime")
		configPath = flag.String("config", "", "config file (defaults to configs/config.yaml lookup)")
	)
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "Error: -sub is required")
		flag.Usage()
		os.Exit(2)
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AdminRole)
	tok, err := verifier.Sign(auth.Principal{
		ApplicantID: *subject,
		Username:    *username,
		Email:       *email,
		IsAdmin:     *admin,
	}, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
