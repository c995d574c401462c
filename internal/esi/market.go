package esi

import (
	"fmt"
)

// RawOrder mirrors the ESI market order response. Fields the aggregator
// requires are pointers so that missing keys can be told apart from zero.
type RawOrder struct {
	OrderID      int64    `json:"order_id"`
	TypeID       int32    `json:"type_id"`
	SystemID     int32    `json:"system_id"`
	LocationID   *int64   `json:"location_id"`
	Price        *float64 `json:"price"`
	VolumeRemain *int64   `json:"volume_remain"`
	IsBuyOrder   *bool    `json:"is_buy_order"`
}

// Complete reports whether price, volume, side and location are all present.
func (o RawOrder) Complete() bool {
	return o.LocationID != nil && o.Price != nil && o.VolumeRemain != nil && o.IsBuyOrder != nil
}

// OrdersURL returns the paginated order listing for one type in a region.
func OrdersURL(base string, regionID, typeID int32, page int) string {
	return fmt.Sprintf("%s/markets/%d/orders/?datasource=tranquility&order_type=all&type_id=%d&page=%d",
		base, regionID, typeID, page)
}

// StationURL returns the station detail endpoint.
func StationURL(base string, locationID int64) string {
	return fmt.Sprintf("%s/universe/stations/%d/?datasource=tranquility", base, locationID)
}

// HistoryURL returns the daily market history endpoint.
func HistoryURL(base string, regionID, typeID int32) string {
	return fmt.Sprintf("%s/markets/%d/history/?datasource=tranquility&type_id=%d", base, regionID, typeID)
}
