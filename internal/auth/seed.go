package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes for the seed admin password.
const seedPasswordBytes = 16

// SeedAdmin creates the initial administrator account on first boot if no
// users exist. The generated password is logged and must be changed
// immediately. Returns the generated password (empty string if seeding was
// skipped).
func SeedAdmin(ctx context.Context, userRepo UserRepository, logger *slog.Logger) (string, error) {
	count, err := userRepo.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}

	if count > 0 {
		logger.Info("users exist, skipping admin seed")
		return "", nil
	}

	passwordBytes := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(passwordBytes)

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &User{
		Username:     "admin",
		FullName:     "System Administrator",
		PasswordHash: hash,
		Enabled:      true,
	}

	if err := userRepo.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	if err := userRepo.Grant(ctx, admin.ID, AdminAuthority); err != nil {
		return "", fmt.Errorf("granting admin authority: %w", err)
	}

	logger.Warn("seed admin account created",
		"username", "admin",
		"password", password,
		"action_required", "change this password immediately",
	)

	return password, nil
}
