package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/domain/providers"
	"github.com/zatekoja/clinicflow/internal/domain/repositories"
)

// doctorTTL bounds how long a deactivated doctor keeps resolving from cache
const doctorTTL = 5 * time.Minute

// CachedDoctorDirectory wraps a DoctorDirectory with a read-through cache.
// Every authenticated doctor request resolves its profile, so lookups by
// user ID and by doctor ID are cached; listings go straight to the adapter.
type CachedDoctorDirectory struct {
	adapter repositories.DoctorDirectory
	cache   providers.CacheProvider
}

// NewCachedDoctorDirectory creates a new cached doctor directory
func NewCachedDoctorDirectory(adapter repositories.DoctorDirectory, cache providers.CacheProvider) *CachedDoctorDirectory {
	return &CachedDoctorDirectory{
		adapter: adapter,
		cache:   cache,
	}
}

func doctorCacheKey(id int64) string {
	return fmt.Sprintf("doctor:%d", id)
}

func doctorByUserCacheKey(userID int64) string {
	return fmt.Sprintf("doctor:user:%d", userID)
}

// GetDoctor retrieves a doctor by ID with caching
func (a *CachedDoctorDirectory) GetDoctor(ctx context.Context, id int64) (*entities.Doctor, error) {
	return a.readThrough(ctx, doctorCacheKey(id), func() (*entities.Doctor, error) {
		return a.adapter.GetDoctor(ctx, id)
	})
}

// GetDoctorByUserID retrieves the doctor profile owned by a user with caching
func (a *CachedDoctorDirectory) GetDoctorByUserID(ctx context.Context, userID int64) (*entities.Doctor, error) {
	return a.readThrough(ctx, doctorByUserCacheKey(userID), func() (*entities.Doctor, error) {
		return a.adapter.GetDoctorByUserID(ctx, userID)
	})
}

// ListDoctors is not cached
func (a *CachedDoctorDirectory) ListDoctors(ctx context.Context, ids []int64) ([]*entities.Doctor, error) {
	return a.adapter.ListDoctors(ctx, ids)
}

// Invalidate drops the cached entries of a doctor
func (a *CachedDoctorDirectory) Invalidate(ctx context.Context, doctor *entities.Doctor) {
	for _, key := range []string{doctorCacheKey(doctor.ID), doctorByUserCacheKey(doctor.UserID)} {
		if err := a.cache.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to invalidate doctor cache")
		}
	}
}

// readThrough serves key from cache, falling back to load. Errors from load
// are returned as is and never cached; cache failures only cost a lookup.
func (a *CachedDoctorDirectory) readThrough(ctx context.Context, key string, load func() (*entities.Doctor, error)) (*entities.Doctor, error) {
	cached, err := a.cache.Get(ctx, key)
	if err == nil {
		var doctor entities.Doctor
		if err := json.Unmarshal(cached, &doctor); err == nil {
			return &doctor, nil
		}
		log.Warn().Err(err).Str("key", key).Msg("Failed to unmarshal cached doctor")
	} else if !errors.Is(err, providers.ErrCacheMiss) {
		log.Warn().Err(err).Str("key", key).Msg("Doctor cache read failed")
	}

	doctor, err := load()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(doctor); err == nil {
		if err := a.cache.Set(ctx, key, data, doctorTTL); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to cache doctor")
		}
	}

	return doctor, nil
}
