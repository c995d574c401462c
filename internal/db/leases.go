package db

import (
	"fmt"
	"time"
)

// AcquireLease takes key for owner until now+ttl. It succeeds only if the key
// is free or its previous lease has expired; the check and the write are a
// single statement.
func (d *DB) AcquireLease(key, owner string, ttl time.Duration, now time.Time) (bool, error) {
	res, err := d.sql.Exec(`
		INSERT INTO refresh_lease (key, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET owner=excluded.owner, expires_at=excluded.expires_at
		WHERE refresh_lease.expires_at <= ?`,
		key, owner, now.Add(ttl).UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	return n == 1, nil
}

// ReleaseLease drops key if owner still holds it.
func (d *DB) ReleaseLease(key, owner string) error {
	if _, err := d.sql.Exec("DELETE FROM refresh_lease WHERE key=? AND owner=?", key, owner); err != nil {
		return fmt.Errorf("release lease %s: %w", key, err)
	}
	return nil
}

// LeaseHolder returns the current owner and expiry of key if the lease is live at now.
func (d *DB) LeaseHolder(key string, now time.Time) (string, time.Time, bool) {
	var owner string
	var expires int64
	err := d.sql.QueryRow("SELECT owner, expires_at FROM refresh_lease WHERE key=?", key).Scan(&owner, &expires)
	if err != nil {
		return "", time.Time{}, false
	}
	exp := time.UnixMilli(expires)
	if !exp.After(now) {
		return "", time.Time{}, false
	}
	return owner, exp, true
}
