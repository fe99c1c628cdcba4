// Command devsession mints a wallet session token for local testing against
// the bookings API. It signs with the configured JWT secret and chain id.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/diagnosis/rental-bookings/internal/lifecycle"
	"github.com/diagnosis/rental-bookings/pkg/auth"
	"github.com/diagnosis/rental-bookings/pkg/config"
	"github.com/diagnosis/rental-bookings/pkg/logger"
)

func main() {
	cfg := config.Load()

	wallet := flag.String("wallet", "", "wallet address to issue the session for")
	ttl := flag.Duration("ttl", cfg.Auth.SessionTTL, "session lifetime")
	flag.Parse()

	id := lifecycle.NewIdentity(*wallet)
	if id.IsZero() {
		fmt.Fprintln(os.Stderr, "usage: devsession -wallet 0x... [-ttl 24h]")
		os.Exit(2)
	}

	token, err := auth.NewWalletSession(string(id), cfg.Chain.ChainID, cfg.Auth.JWTSecret, *ttl)
	if err != nil {
		logger.Error("Failed to sign session", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
