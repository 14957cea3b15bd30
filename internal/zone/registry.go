package zone

import (
	"errors"
	"fmt"
	"net/url"
	"sync"

	"CraneGuard/internal/entity"
	"github.com/samber/lo"
)

var (
	ErrZoneNotFound     = errors.New("zone not found")
	ErrNoZones          = errors.New("zone list is empty")
	ErrDuplicateZone    = errors.New("duplicate zone id")
	ErrInvalidCameraURL = errors.New("camera source url must be an absolute http(s) url")
)

// Registry keeps the ordered zone list and which zone is being watched.
type Registry struct {
	mu     sync.RWMutex
	zones  []entity.Zone
	active string
}

func NewRegistry(zones []entity.Zone, activeID string) (*Registry, error) {
	if len(zones) == 0 {
		return nil, ErrNoZones
	}

	ids := lo.Map(zones, func(z entity.Zone, _ int) string { return z.ID })
	if dup := lo.FindDuplicates(ids); len(dup) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateZone, dup[0])
	}

	for _, z := range zones {
		if err := ValidateCameraURL(z.CameraSourceURL); err != nil {
			return nil, fmt.Errorf("zone %s: %w", z.ID, err)
		}
	}

	if activeID == "" {
		activeID = zones[0].ID
	}
	if !lo.Contains(ids, activeID) {
		return nil, fmt.Errorf("%w: %s", ErrZoneNotFound, activeID)
	}

	return &Registry{
		zones:  append([]entity.Zone(nil), zones...),
		active: activeID,
	}, nil
}

func (r *Registry) List() []entity.Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]entity.Zone(nil), r.zones...)
}

func (r *Registry) Get(id string) (entity.Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	z, ok := lo.Find(r.zones, func(z entity.Zone) bool { return z.ID == id })
	if !ok {
		return entity.Zone{}, fmt.Errorf("%w: %s", ErrZoneNotFound, id)
	}
	return z, nil
}

func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// CommitIfActive runs commit while holding the registry read lock, so Select
// cannot switch zones between the check and the commit.
func (r *Registry) CommitIfActive(zoneID string, commit func()) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.active != zoneID {
		return false
	}
	commit()
	return true
}

func (r *Registry) Active() entity.Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()

	z, _ := lo.Find(r.zones, func(z entity.Zone) bool { return z.ID == r.active })
	return z
}

// Select makes id the active zone. It reports whether the selection changed.
func (r *Registry) Select(id string) (entity.Zone, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	z, ok := lo.Find(r.zones, func(z entity.Zone) bool { return z.ID == id })
	if !ok {
		return entity.Zone{}, false, fmt.Errorf("%w: %s", ErrZoneNotFound, id)
	}

	changed := r.active != id
	r.active = id
	return z, changed, nil
}

// UpdateCamera replaces the zone's camera source. An empty url selects the
// local capture device. The returned flag is true when the updated zone is the
// active one, in which case its frame source has to be re-acquired.
func (r *Registry) UpdateCamera(id, sourceURL string) (entity.Zone, bool, error) {
	if err := ValidateCameraURL(sourceURL); err != nil {
		return entity.Zone{}, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, idx, ok := lo.FindIndexOf(r.zones, func(z entity.Zone) bool { return z.ID == id })
	if !ok {
		return entity.Zone{}, false, fmt.Errorf("%w: %s", ErrZoneNotFound, id)
	}

	r.zones[idx].CameraSourceURL = sourceURL
	return r.zones[idx], id == r.active, nil
}

func ValidateCameraURL(sourceURL string) error {
	if sourceURL == "" {
		return nil
	}
	u, err := url.Parse(sourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidCameraURL, sourceURL)
	}
	return nil
}
