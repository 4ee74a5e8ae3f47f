// Command token mints a signed access token for local development, standing
// in for a hosted identity provider.
//
// Usage:
//
//	go run ./cmd/token -identity U1
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/phrazzld/detailer-api/internal/config"
	"github.com/phrazzld/detailer-api/internal/service/auth"
)

func main() {
	identity := flag.String("identity", "", "identity to issue the token for (required)")
	flag.Parse()

	if *identity == "" {
		fmt.Fprintln(os.Stderr, "error: -identity is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	token, err := jwtService.GenerateToken(context.Background(), *identity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
