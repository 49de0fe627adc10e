// Package user serves the signed-in shopper's profile and saved address.
package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/fafa-store/internal/cart"
	"github.com/noah-isme/fafa-store/internal/db"
)

// Profile is the storefront's view of an identity provider user.
type Profile struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Email     *string       `json:"email,omitempty"`
	Role      string        `json:"role"`
	Address   *cart.Address `json:"address,omitempty"`
	CreatedAt *time.Time    `json:"createdAt,omitempty"`
}

// AddressSaver stores the user's default shipping address.
type AddressSaver interface {
	SaveUserAddress(ctx context.Context, userID string, addr cart.Address) error
}

// Service reads and updates profiles.
type Service struct {
	DB        db.DBTX
	Addresses AddressSaver
}

// Me returns the profile of userID. Users the storefront has not stored yet
// get a bare customer profile.
func (s *Service) Me(ctx context.Context, userID string) (Profile, error) {
	var (
		p       Profile
		raw     []byte
		created time.Time
	)
	err := s.DB.QueryRow(ctx, `SELECT id::text, name, email, role, address, created_at FROM users WHERE id = $1`, userID).
		Scan(&p.ID, &p.Name, &p.Email, &p.Role, &raw, &created)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{ID: userID, Role: "customer"}, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}
	p.CreatedAt = &created
	if len(raw) > 0 && string(raw) != "null" {
		var addr cart.Address
		if err := json.Unmarshal(raw, &addr); err != nil {
			return Profile{}, fmt.Errorf("decode profile address: %w", err)
		}
		p.Address = &addr
	}
	return p, nil
}

// UpdateAddress validates and stores addr as the user's default address.
func (s *Service) UpdateAddress(ctx context.Context, userID string, addr cart.Address) (cart.Address, error) {
	if err := addr.Validate(); err != nil {
		return cart.Address{}, err
	}
	if err := s.Addresses.SaveUserAddress(ctx, userID, addr); err != nil {
		return cart.Address{}, err
	}
	return addr, nil
}
