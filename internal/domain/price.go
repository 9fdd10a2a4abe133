// Package domain holds the persistent record types shared by every
// component: the price store's PriceRecord and the import registry's
// ImportRecord, plus the status machine that governs the latter.
package domain

import "time"

// PriceRecord is one daily observation for a symbol.
//
// (Symbol, Date) is the uniqueness key enforced by the price store's
// index; callers never construct a PriceRecord with a zero Date or a
// non-finite Close/AdjClose — the ingestion pipeline drops such rows
// before they reach the store.
type PriceRecord struct {
	Symbol       string    `bson:"symbol" json:"symbol"`
	SecurityName string    `bson:"security_name" json:"security_name"`
	Date         time.Time `bson:"date" json:"date"`
	Open         float64   `bson:"open" json:"open"`
	High         float64   `bson:"high" json:"high"`
	Low          float64   `bson:"low" json:"low"`
	Close        float64   `bson:"close" json:"close"`
	AdjClose     float64   `bson:"adj_close" json:"adj_close"`
	Volume       int64     `bson:"volume" json:"volume"`
	ImportID     string    `bson:"import_id" json:"import_id"`
}
