// Package cache holds Redis-backed read caches.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const profileKeyPrefix = "helpdesk:profile:"

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	mode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}

type cachedProfile struct {
	ID           string    `cbor:"1,keyasint"`
	Name         string    `cbor:"2,keyasint"`
	Email        string    `cbor:"3,keyasint"`
	PhoneNumber  *string   `cbor:"4,keyasint,omitempty"`
	Designations []string  `cbor:"5,keyasint"`
	Branch       string    `cbor:"6,keyasint"`
	IsAdmin      bool      `cbor:"7,keyasint"`
	CreatedAt    time.Time `cbor:"8,keyasint"`
	UpdatedAt    time.Time `cbor:"9,keyasint"`
}

// ProfileCache stores CBOR-encoded profiles with a TTL.
type ProfileCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewProfileCache builds a cache. A non-positive ttl disables caching.
func NewProfileCache(client redis.Cmdable, ttl time.Duration) *ProfileCache {
	return &ProfileCache{client: client, ttl: ttl}
}

// Get returns the cached profile and whether it was found.
func (c *ProfileCache) Get(ctx context.Context, id string) (*domain.Profile, bool, error) {
	if c.ttl <= 0 {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, profileKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	profile, err := decodeProfile(raw)
	if err != nil {
		return nil, false, err
	}
	return profile, true, nil
}

// Set stores profile under its id.
func (c *ProfileCache) Set(ctx context.Context, profile *domain.Profile) error {
	if c.ttl <= 0 || profile == nil {
		return nil
	}
	raw, err := encodeProfile(profile)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, profileKey(profile.ID), raw, c.ttl).Err()
}

// Evict removes the cached copy.
func (c *ProfileCache) Evict(ctx context.Context, id string) error {
	return c.client.Del(ctx, profileKey(id)).Err()
}

func profileKey(id string) string {
	return profileKeyPrefix + id
}

func encodeProfile(p *domain.Profile) ([]byte, error) {
	return encMode.Marshal(cachedProfile{
		ID:           p.ID,
		Name:         p.Name,
		Email:        p.Email,
		PhoneNumber:  p.PhoneNumber,
		Designations: p.Designations,
		Branch:       p.Branch,
		IsAdmin:      p.IsAdmin,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	})
}

func decodeProfile(raw []byte) (*domain.Profile, error) {
	var cp cachedProfile
	if err := cbor.Unmarshal(raw, &cp); err != nil {
		return nil, err
	}
	if cp.ID == "" {
		return nil, errors.New("cached profile has no id")
	}
	return &domain.Profile{
		ID:           cp.ID,
		Name:         cp.Name,
		Email:        cp.Email,
		PhoneNumber:  cp.PhoneNumber,
		Designations: cp.Designations,
		Branch:       cp.Branch,
		IsAdmin:      cp.IsAdmin,
		CreatedAt:    cp.CreatedAt,
		UpdatedAt:    cp.UpdatedAt,
	}, nil
}
