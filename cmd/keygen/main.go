package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/prooftamil/ime-gateway/internal/auth"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run cmd/keygen/main.go <client-id> <api-key>")
		fmt.Println("Prints HMAC-SHA256(API_KEY_SECRET, api-key) for use as key_hash in config.yaml")
		os.Exit(1)
	}

	_ = godotenv.Load()

	secret := os.Getenv("API_KEY_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "API_KEY_SECRET must be set")
		os.Exit(1)
	}

	clientID, apiKey := os.Args[1], os.Args[2]
	keyHash := hex.EncodeToString(auth.HashAPIKey([]byte(secret), apiKey))

	fmt.Printf("Client: %s\n", clientID)
	fmt.Printf("HMAC-SHA256: %s\n", keyHash)
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Printf("auth:\n")
	fmt.Printf("  clients:\n")
	fmt.Printf("    - id: %q\n", clientID)
	fmt.Printf("      key_hash: %q\n", keyHash)
}
