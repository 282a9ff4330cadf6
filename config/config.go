package config

import (
	"log/slog"
	"os"
)

// JwtKey signs and verifies session tokens. Loaded once at startup.
var JwtKey []byte

// LoadSecrets reads the JWT signing key from the environment. The server
// refuses to start without one: a guessable default would let anyone forge
// an actor identity.
func LoadSecrets() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slog.Error("JWT_SECRET environment variable is not set")
		os.Exit(1)
	}
	JwtKey = []byte(secret)
}

// ServerAddr returns the listen address, defaulting to :8080.
func ServerAddr() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}
