package db

import (
	"fmt"
	"time"

	"eve-hubcompare/internal/esi"
	"eve-hubcompare/internal/logger"
	"eve-hubcompare/internal/market"
)

const (
	// historyTTL is how long a fetched series is served without refetching.
	historyTTL = 24 * time.Hour
	// historyDays is the number of newest daily rows kept per series: the
	// trend baseline plus today.
	historyDays = market.TrendWindow + 1
	// historyRetention drops series nobody has asked for in a week.
	historyRetention = 7 * 24 * time.Hour
)

// GetMarketHistory returns the cached series for (region, type) when it was
// fetched within historyTTL.
func (d *DB) GetMarketHistory(regionID int32, typeID int32) ([]esi.HistoryEntry, bool) {
	cutoff := d.clock().Add(-historyTTL).UnixMilli()
	rows, err := d.sql.Query(`
		SELECT h.date, h.average, h.highest, h.lowest, h.volume, h.order_count
		FROM market_history h
		JOIN market_history_meta m ON m.region_id = h.region_id AND m.type_id = h.type_id
		WHERE h.region_id = ? AND h.type_id = ? AND m.fetched_at > ?
		ORDER BY h.date`,
		regionID, typeID, cutoff,
	)
	if err != nil {
		logger.Warn("DB", fmt.Sprintf("history %d/%d: %v", regionID, typeID, err))
		return nil, false
	}
	defer rows.Close()

	var entries []esi.HistoryEntry
	for rows.Next() {
		var e esi.HistoryEntry
		if err := rows.Scan(&e.Date, &e.Average, &e.Highest, &e.Lowest, &e.Volume, &e.OrderCount); err != nil {
			logger.Warn("DB", fmt.Sprintf("history %d/%d: scan: %v", regionID, typeID, err))
			return nil, false
		}
		entries = append(entries, e)
	}
	if rows.Err() != nil || len(entries) == 0 {
		return nil, false
	}
	return entries, true
}

// SetMarketHistory replaces the cached series with the newest historyDays
// entries, which is all a trend needs.
func (d *DB) SetMarketHistory(regionID int32, typeID int32, entries []esi.HistoryEntry) {
	sorted := make([]esi.HistoryEntry, len(entries))
	copy(sorted, entries)
	esi.SortHistory(sorted)
	if len(sorted) > historyDays {
		sorted = sorted[len(sorted)-historyDays:]
	}

	if err := d.replaceHistory(regionID, typeID, sorted); err != nil {
		logger.Warn("DB", fmt.Sprintf("store history %d/%d: %v", regionID, typeID, err))
	}
}

func (d *DB) replaceHistory(regionID, typeID int32, entries []esi.HistoryEntry) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM market_history WHERE region_id = ? AND type_id = ?", regionID, typeID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO market_history
		(region_id, type_id, date, average, highest, lowest, volume, order_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.Exec(regionID, typeID, e.Date, e.Average, e.Highest, e.Lowest, e.Volume, e.OrderCount); err != nil {
			return fmt.Errorf("insert %s: %w", e.Date, err)
		}
	}
	if _, err := tx.Exec(`
		INSERT INTO market_history_meta (region_id, type_id, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(region_id, type_id) DO UPDATE SET fetched_at = excluded.fetched_at`,
		regionID, typeID, d.clock().UnixMilli(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// PruneHistory drops series not fetched within historyRetention and returns
// the number of series removed. Run at startup.
func (d *DB) PruneHistory() (int, error) {
	cutoff := d.clock().Add(-historyRetention).UnixMilli()
	tx, err := d.sql.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM market_history_meta WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history meta: %w", err)
	}
	n, _ := res.RowsAffected()
	if _, err := tx.Exec(`
		DELETE FROM market_history
		WHERE NOT EXISTS (
			SELECT 1 FROM market_history_meta m
			WHERE m.region_id = market_history.region_id AND m.type_id = market_history.type_id
		)`); err != nil {
		return 0, fmt.Errorf("prune history rows: %w", err)
	}
	return int(n), tx.Commit()
}
