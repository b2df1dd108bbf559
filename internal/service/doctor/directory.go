package doctor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/queue-api/internal/model"
)

// Directory resolves a doctor id to the fields stamped onto patient records.
type Directory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.DoctorRef, error)
}

type doctorGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
}

// CachedDirectory reads through to the doctor store and keeps refs for a short TTL.
type CachedDirectory struct {
	repo  doctorGetter
	cache *cache.Cache
}

func NewCachedDirectory(repo doctorGetter, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDirectory{
		repo:  repo,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (d *CachedDirectory) FindByID(ctx context.Context, id uuid.UUID) (*model.DoctorRef, error) {
	if v, ok := d.cache.Get(id.String()); ok {
		return v.(*model.DoctorRef), nil
	}
	doctor, err := d.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ref := doctor.Ref()
	d.cache.SetDefault(id.String(), ref)
	return ref, nil
}

// Invalidate drops a cached entry after the doctor record changes.
func (d *CachedDirectory) Invalidate(id uuid.UUID) {
	d.cache.Delete(id.String())
}
