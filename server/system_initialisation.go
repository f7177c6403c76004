package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-sso/brokers"
	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/users"
	"github.com/rs/zerolog/log"
)

const DefaultAdminUsername = "admin"

// InitialiseSystem registers the brokers listed in the configuration and
// creates the administrator account when it does not exist yet. A generated
// administrator password is printed once.
func (s *Server) InitialiseSystem(ctx context.Context) error {
	baseURL := s.config.GetBaseURL()

	// Step 1: Register configured brokers
	seeded, err := s.seedBrokers(ctx)
	if err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to seed brokers: %w", err)
	}

	// Step 2: Create or get the administrator
	adminEmail := s.config.GetAdminEmail()
	generatedPassword, err := s.createAdmin(adminEmail, s.config.GetAdminPassword())
	if err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to bootstrap admin: %w", err)
	}

	if generatedPassword != "" {
		fmt.Printf("📋 System Configuration:\n")
		fmt.Printf("   Base URL:    %s\n", baseURL)
		fmt.Printf("   Commands:    %s%s{command}\n", baseURL, RouteAPIPrefix)
		fmt.Printf("\n")
		fmt.Printf("👤 Administrator Credentials:\n")
		fmt.Printf("   Email:       %s\n", adminEmail)
		fmt.Printf("   Password:    %s\n", generatedPassword)
		fmt.Printf("\n")
		fmt.Printf("🔐 Brokers Registered:\n")
		for i, name := range seeded {
			fmt.Printf("   %d. %s\n", i+1, name)
		}
		fmt.Printf("\n")
	}
	return nil
}

func (s *Server) seedBrokers(ctx context.Context) ([]string, error) {
	seeds := s.config.GetSeedBrokers()
	names := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		b := &brokers.Broker{
			Name:      seed.Name,
			Secret:    seed.Secret,
			Origin:    seed.Origin,
			CreatedAt: time.Now(),
		}
		if existing, err := s.repos.Brokers.Get(ctx, seed.Name); err == nil {
			b.CreatedAt = existing.CreatedAt
		} else if !errors.Is(err, ssoerrors.ErrBrokerNotFound) {
			return nil, fmt.Errorf("[server seedBrokers] %w", err)
		}
		if err := s.repos.Brokers.Upsert(ctx, b); err != nil {
			return nil, fmt.Errorf("[server seedBrokers] broker %q: %w", seed.Name, err)
		}
		log.Info().Str("broker", seed.Name).Msg("broker registered")
		names = append(names, seed.Name)
	}
	return names, nil
}

// createAdmin creates the administrator if it doesn't exist and returns the
// password only when one was generated.
func (s *Server) createAdmin(adminEmail, defaultPassword string) (generatedPassword string, err error) {
	existingUser, err := s.repos.Users.GetByEmail(adminEmail)
	if err == nil && existingUser != nil {
		log.Info().Str("email", adminEmail).Msg("administrator already exists")
		return "", nil
	}
	if err != nil && !errors.Is(err, ssoerrors.ErrUserNotFound) {
		return "", fmt.Errorf("[server createAdmin] %w", err)
	}

	password := defaultPassword
	if password == "" {
		passwordBytes := make([]byte, 16)
		if _, err := rand.Read(passwordBytes); err != nil {
			return "", fmt.Errorf("[server createAdmin] failed to generate password: %w", err)
		}
		password = base64.URLEncoding.EncodeToString(passwordBytes)
		generatedPassword = password
	}

	passwordHash, err := users.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("[server createAdmin] failed to hash password: %w", err)
	}

	adminUser := &users.User{
		Email:        adminEmail,
		Username:     DefaultAdminUsername,
		PasswordHash: passwordHash,
		FirstName:    "System",
		LastName:     "Administrator",
	}
	if err := s.repos.Users.Upsert(adminUser); err != nil {
		return "", fmt.Errorf("[server createAdmin] failed to create admin: %w", err)
	}
	log.Info().Str("email", adminEmail).Msg("administrator created")
	return generatedPassword, nil
}
