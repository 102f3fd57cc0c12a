// Package bootstrap applies the optional startup seed file: extra catalogue
// labels and the initial administrator accounts.
package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Seed is the decoded seed file.
type Seed struct {
	Designations []string    `yaml:"designations"`
	Branches     []string    `yaml:"branches"`
	Admins       []AdminSeed `yaml:"admins"`
}

// AdminSeed describes one administrator to provision.
type AdminSeed struct {
	Name         string   `yaml:"name"`
	Email        string   `yaml:"email"`
	Password     string   `yaml:"password"`
	PhoneNumber  string   `yaml:"phone_number"`
	Branch       string   `yaml:"branch"`
	Designations []string `yaml:"designations"`
}

// AdminProvisioner creates an admin unless the email is already registered.
// created reports whether a new account was made.
type AdminProvisioner interface {
	EnsureAdmin(ctx context.Context, admin AdminSeed) (created bool, err error)
}

// Load reads and validates a seed file. Unknown keys are rejected.
func Load(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates seed content.
func Parse(data []byte) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks every admin entry.
func (s *Seed) Validate() error {
	seen := map[string]bool{}
	for i, admin := range s.Admins {
		var missing []string
		if strings.TrimSpace(admin.Name) == "" {
			missing = append(missing, "name")
		}
		if strings.TrimSpace(admin.Email) == "" {
			missing = append(missing, "email")
		}
		if admin.Password == "" {
			missing = append(missing, "password")
		}
		if strings.TrimSpace(admin.Branch) == "" {
			missing = append(missing, "branch")
		}
		if len(missing) > 0 {
			return fmt.Errorf("admins[%d]: missing %s", i, strings.Join(missing, ", "))
		}
		email := strings.ToLower(strings.TrimSpace(admin.Email))
		if seen[email] {
			return fmt.Errorf("admins[%d]: duplicate email %s", i, admin.Email)
		}
		seen[email] = true
	}
	return nil
}

// Apply registers the catalogue and provisions admins.
func Apply(ctx context.Context, seed *Seed, provisioner AdminProvisioner, logger *zap.Logger) error {
	if seed == nil {
		return nil
	}
	domain.RegisterCatalogue(seed.Designations, seed.Branches)

	for _, admin := range seed.Admins {
		created, err := provisioner.EnsureAdmin(ctx, admin)
		if err != nil {
			return fmt.Errorf("provision admin %s: %w", admin.Email, err)
		}
		if created {
			logger.Info("seeded admin account", zap.String("email", admin.Email))
		}
	}
	return nil
}
