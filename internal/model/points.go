package model

import "time"

// EventPoints is one row of the points ledger.  The unique key on
// (konfi_id, event_id) makes an award idempotent; Points and Category
// record what was granted so a revoke subtracts exactly that amount.
type EventPoints struct {
	ID             uint64        `json:"id"`
	KonfiID        uint64        `json:"konfi_id"`
	EventID        uint64        `json:"event_id"`
	OrganizationID uint64        `json:"organization_id"`
	Points         int           `json:"points"`
	Category       PointCategory `json:"point_type"`
	AwardedAt      time.Time     `json:"awarded_date"`
}

// PointTotals holds a konfi's running totals per category.
type PointTotals struct {
	Gottesdienst int `json:"gottesdienst"`
	Gemeinde     int `json:"gemeinde"`
}

// Add adds delta to the category's total.
func (t *PointTotals) Add(c PointCategory, delta int) {
	switch c {
	case PointCategoryGottesdienst:
		t.Gottesdienst += delta
	case PointCategoryGemeinde:
		t.Gemeinde += delta
	}
}

// Get returns the total of the category.
func (t PointTotals) Get(c PointCategory) int {
	switch c {
	case PointCategoryGottesdienst:
		return t.Gottesdienst
	case PointCategoryGemeinde:
		return t.Gemeinde
	}
	return 0
}
