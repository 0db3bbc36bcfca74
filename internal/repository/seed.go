package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/aryan0dhankhar/academyportal/internal/domain"
)

// Seed is the YAML document used to populate the in-memory repositories.
//
//	tenants:
//	  - id: academia-centro
//	    name: Academia Centro
//	    aulasExtrasAtivas: true
//	users:
//	  - name: Ana
//	    email: ana@example.com
//	    password: secret123
//	    role: ALUNO
//	    tenantId: academia-centro
type Seed struct {
	Tenants []SeedTenant `yaml:"tenants"`
	Users   []SeedUser   `yaml:"users"`
}

type SeedTenant struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	AulasExtrasAtivas bool   `yaml:"aulasExtrasAtivas"`
	CrossfitAtivo     bool   `yaml:"crossfitAtivo"`
}

type SeedUser struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	TenantID string `yaml:"tenantId"`
	// Inactive marks a disabled account; omitted means active.
	Inactive bool `yaml:"inactive"`
}

// ParseSeed decodes a seed document and validates roles and required fields.
func ParseSeed(r io.Reader) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}

	for i, u := range seed.Users {
		if u.Email == "" || u.Password == "" {
			return nil, fmt.Errorf("seed user %d: email and password are required", i)
		}
		role, ok := domain.NormalizeRole(u.Role)
		if !ok {
			return nil, fmt.Errorf("seed user %s: unknown role %q", u.Email, u.Role)
		}
		seed.Users[i].Role = role.String()
		seed.Users[i].Email = strings.TrimSpace(u.Email)
	}
	return &seed, nil
}

// LoadSeedFile reads a seed file from disk.
func LoadSeedFile(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

// Apply hashes every password with cost and stores tenants and users.
func (s *Seed) Apply(ctx context.Context, users domain.UserRepository, tenants *MemoryTenantRepository, cost int) error {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	for _, t := range s.Tenants {
		if tenants == nil {
			break
		}
		tenants.Put(&domain.Tenant{
			ID:                t.ID,
			Name:              t.Name,
			AulasExtrasAtivas: t.AulasExtrasAtivas,
			CrossfitAtivo:     t.CrossfitAtivo,
			IsActive:          true,
		})
	}
	for _, u := range s.Users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), cost)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", u.Email, err)
		}
		user := &domain.User{
			ID:           u.ID,
			Name:         u.Name,
			Email:        u.Email,
			PasswordHash: string(hash),
			Role:         u.Role,
			TenantID:     u.TenantID,
			IsActive:     !u.Inactive,
		}
		if err := users.Create(ctx, user); err != nil {
			return err
		}
	}
	return nil
}
