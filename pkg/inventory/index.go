// Package inventory keeps an in-memory index of device descriptions reported
// by backends, keyed by assigned device ID with a reverse index by class.
package inventory

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/devicematch/pkg/devicedesc"
)

var errEmptyDescription = errors.New("device description is empty")

// Device is the stored form of a reported device: the description plus the
// identity and bookkeeping the index assigns.
type Device struct {
	ID          string                  `json:"id"`
	Description *devicedesc.Description `json:"description"`
	FirstSeen   time.Time               `json:"first_seen"`
}

// Clone creates a defensive copy of the Device.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}

	clone := *d
	clone.Description = d.Description.Clone()

	return &clone
}

// Index maintains an in-memory index of device descriptions keyed by device
// ID and by normalized device class.
type Index struct {
	mu      sync.RWMutex
	byID    map[string]*Device
	byClass map[string]map[string]struct{}
	now     func() time.Time
}

// NewIndex creates an empty device index.
func NewIndex() *Index {
	return &Index{
		byID:    make(map[string]*Device),
		byClass: make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

// Add stores a description under a freshly assigned ID and returns the stored
// device. An empty description is rejected.
func (idx *Index) Add(desc *devicedesc.Description) (*Device, error) {
	if desc.IsEmpty() {
		return nil, errEmptyDescription
	}

	device := &Device{
		ID:          uuid.NewString(),
		Description: desc.Clone(),
		FirstSeen:   idx.now().UTC(),
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.byID[device.ID] = device

	if class := normalizeClass(desc.DeviceClass); class != "" {
		if _, ok := idx.byClass[class]; !ok {
			idx.byClass[class] = make(map[string]struct{})
		}
		idx.byClass[class][device.ID] = struct{}{}
	}

	return device.Clone(), nil
}

// Get returns a defensive copy of the device with the given ID.
func (idx *Index) Get(id string) (*Device, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	device, ok := idx.byID[id]
	if !ok {
		return nil, false
	}

	return device.Clone(), true
}

// Remove deletes a device entry and cleans up the class index.
func (idx *Index) Remove(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	device, ok := idx.byID[id]
	if !ok {
		return
	}

	delete(idx.byID, id)

	if class := normalizeClass(device.Description.DeviceClass); class != "" {
		if set, ok := idx.byClass[class]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(idx.byClass, class)
			}
		}
	}
}

// List returns every stored device sorted by ID.
func (idx *Index) List() []*Device {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	devices := make([]*Device, 0, len(idx.byID))
	for _, device := range idx.byID {
		devices = append(devices, device.Clone())
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].ID < devices[j].ID
	})

	return devices
}

// ListByClass returns the device IDs whose description carries the given
// class, compared case-insensitively.
func (idx *Index) ListByClass(class string) []string {
	class = normalizeClass(class)
	if class == "" {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	set, ok := idx.byClass[class]
	if !ok || len(set) == 0 {
		return nil
	}

	results := make([]string, 0, len(set))
	for id := range set {
		results = append(results, id)
	}
	sort.Strings(results)

	return results
}

func normalizeClass(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
