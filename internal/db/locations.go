package db

import (
	"database/sql"
	"fmt"
	"time"

	"eve-hubcompare/internal/logger"
)

// GetLocation returns the cached system for a location. found is false when
// the location was never looked up; a found entry with systemID 0 is a
// remembered failure.
func (d *DB) GetLocation(locationID int64) (int32, bool) {
	var sys sql.NullInt32
	err := d.sql.QueryRow("SELECT system_id FROM location_cache WHERE location_id=?", locationID).Scan(&sys)
	if err != nil {
		return 0, false
	}
	if !sys.Valid {
		return 0, true
	}
	return sys.Int32, true
}

// SetLocation stores a lookup result; systemID 0 is stored as NULL.
func (d *DB) SetLocation(locationID int64, systemID int32) {
	var sys interface{}
	if systemID != 0 {
		sys = systemID
	}
	_, err := d.sql.Exec(
		"INSERT OR REPLACE INTO location_cache (location_id, system_id, updated_at) VALUES (?,?,?)",
		locationID, sys, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		logger.Warn("DB", fmt.Sprintf("SetLocation %d: %v", locationID, err))
	}
}

// LocationCount returns the number of cached locations.
func (d *DB) LocationCount() int {
	var n int
	d.sql.QueryRow("SELECT COUNT(*) FROM location_cache").Scan(&n)
	return n
}
