package db

import (
	"fmt"

	"eve-hubcompare/internal/logger"
)

// GetETag returns the last ETag seen for an order page.
func (d *DB) GetETag(regionID, typeID int32, page int) (string, bool) {
	var etag string
	err := d.sql.QueryRow(
		"SELECT etag FROM page_etag WHERE region_id=? AND type_id=? AND page=?",
		regionID, typeID, page,
	).Scan(&etag)
	if err != nil {
		return "", false
	}
	return etag, true
}

// SetETag records the ETag of an order page.
func (d *DB) SetETag(regionID, typeID int32, page int, etag string) {
	_, err := d.sql.Exec(
		"INSERT OR REPLACE INTO page_etag (region_id, type_id, page, etag) VALUES (?,?,?,?)",
		regionID, typeID, page, etag,
	)
	if err != nil {
		logger.Warn("DB", fmt.Sprintf("SetETag r=%d t=%d p=%d: %v", regionID, typeID, page, err))
	}
}
