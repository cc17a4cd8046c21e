package holiday

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"leavedesk/internal/platform/metrics"
)

var (
	ErrNotFound      = errors.New("holiday not found")
	ErrDuplicateDate = errors.New("a holiday already exists on that date")
	ErrInvalidName   = errors.New("holiday name must be 1 to 50 characters")
)

const (
	cacheSize = 8
	cacheTTL  = 10 * time.Minute
	dateISO   = "2006-01-02"
)

type Holiday struct {
	ID        uuid.UUID `json:"id"`
	Date      time.Time `json:"date"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type StoreAPI interface {
	List(ctx context.Context) ([]Holiday, error)
	ListYear(ctx context.Context, year int) ([]Holiday, error)
	Create(ctx context.Context, date time.Time, name string) (Holiday, error)
	Update(ctx context.Context, id uuid.UUID, date time.Time, name string) (Holiday, error)
	Get(ctx context.Context, id uuid.UUID) (Holiday, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service caches per-year holiday sets in an expiring LRU. Date-range
// validation hits this on every leave submission, so the common case
// must not touch the database.
type Service struct {
	Store StoreAPI
	cache *expirable.LRU[int, []Holiday]
}

func NewService(store StoreAPI) *Service {
	return &Service{
		Store: store,
		cache: expirable.NewLRU[int, []Holiday](cacheSize, nil, cacheTTL),
	}
}

func (s *Service) List(ctx context.Context) ([]Holiday, error) {
	return s.Store.List(ctx)
}

func (s *Service) forYear(ctx context.Context, year int) ([]Holiday, error) {
	if cached, ok := s.cache.Get(year); ok {
		metrics.RecordHolidayCacheHit()
		return cached, nil
	}
	metrics.RecordHolidayCacheMiss()

	list, err := s.Store.ListYear(ctx, year)
	if err != nil {
		return nil, err
	}
	s.cache.Add(year, list)
	return list, nil
}

// Between returns ISO date -> holiday name for every holiday falling in
// [start, end] inclusive.
func (s *Service) Between(ctx context.Context, start, end time.Time) (map[string]string, error) {
	out := map[string]string{}
	for year := start.Year(); year <= end.Year(); year++ {
		list, err := s.forYear(ctx, year)
		if err != nil {
			return nil, err
		}
		for _, h := range list {
			key := h.Date.Format(dateISO)
			if key >= start.Format(dateISO) && key <= end.Format(dateISO) {
				out[key] = h.Name
			}
		}
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, date time.Time, name string) (Holiday, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 50 {
		return Holiday{}, ErrInvalidName
	}
	h, err := s.Store.Create(ctx, date, name)
	if err != nil {
		return Holiday{}, err
	}
	s.cache.Remove(date.Year())
	return h, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, date time.Time, name string) (Holiday, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 50 {
		return Holiday{}, ErrInvalidName
	}
	// Moving a holiday across a year boundary stales both years' caches.
	prev, err := s.Store.Get(ctx, id)
	if err != nil {
		return Holiday{}, err
	}
	h, err := s.Store.Update(ctx, id, date, name)
	if err != nil {
		return Holiday{}, err
	}
	s.cache.Remove(prev.Date.Year())
	s.cache.Remove(date.Year())
	return h, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	h, err := s.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Remove(h.Date.Year())
	return nil
}
