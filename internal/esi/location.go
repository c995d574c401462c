package esi

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"eve-hubcompare/internal/catalog"
	"eve-hubcompare/internal/logger"
)

// StructureIDThreshold marks the start of the player-structure id range.
// Locations at or above it are not looked up; they are assigned to the hub.
const StructureIDThreshold int64 = 1_000_000_000_000

// LocationStore is the persistent LocationMap. A stored systemID of 0 with
// found=true is a cached failed lookup.
type LocationStore interface {
	GetLocation(locationID int64) (systemID int32, found bool)
	SetLocation(locationID int64, systemID int32)
}

// LocationResolver maps order locations to solar systems.
type LocationResolver struct {
	client *Client
	store  LocationStore
	cache  sync.Map // int64 -> int32 (0 = unresolved)
	group  singleflight.Group
}

// NewLocationResolver creates a resolver backed by the given persistent store (may be nil).
func NewLocationResolver(client *Client, store LocationStore) *LocationResolver {
	return &LocationResolver{client: client, store: store}
}

// Resolve returns the system of a location, or false when it cannot be resolved.
//
// Structure ids (>= StructureIDThreshold) are assigned to the hub's secondary
// system if it has one, else the primary, without verification.
// NPC stations are looked up once via /universe/stations/{id}/ and memoized,
// including failures.
func (r *LocationResolver) Resolve(ctx context.Context, locationID int64, hub catalog.Hub) (int32, bool) {
	if locationID >= StructureIDThreshold {
		return hub.StructureSystem(), true
	}
	if locationID <= 0 {
		return 0, false
	}

	// L1: in-memory
	if v, ok := r.cache.Load(locationID); ok {
		sys := v.(int32)
		return sys, sys != 0
	}
	// L2: persistent
	if r.store != nil {
		if sys, ok := r.store.GetLocation(locationID); ok {
			r.cache.Store(locationID, sys)
			return sys, sys != 0
		}
	}
	// L3: ESI, coalesced per location
	v, _, _ := r.group.Do(strconv.FormatInt(locationID, 10), func() (interface{}, error) {
		return r.lookup(ctx, locationID), nil
	})
	sys := v.(int32)
	return sys, sys != 0
}

func (r *LocationResolver) lookup(ctx context.Context, locationID int64) int32 {
	var info struct {
		SystemID int32 `json:"system_id"`
	}
	sys := int32(0)
	if r.client != nil {
		if err := r.client.GetJSON(ctx, StationURL(r.client.BaseURL(), locationID), &info); err != nil {
			logger.Warn("ESI", fmt.Sprintf("location %d unresolved: %v", locationID, err))
		} else {
			sys = info.SystemID
		}
	}
	// A cancelled request says nothing about the location; do not memoize it.
	if ctx.Err() != nil {
		return sys
	}
	r.cache.Store(locationID, sys)
	if r.store != nil {
		r.store.SetLocation(locationID, sys)
	}
	return sys
}

// Forget drops the in-memory map (the persistent store is cleared separately).
func (r *LocationResolver) Forget() {
	r.cache.Range(func(k, _ interface{}) bool {
		r.cache.Delete(k)
		return true
	})
}
