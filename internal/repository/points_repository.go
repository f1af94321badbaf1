package repository

import (
	"context"
	"fmt"

	"github.com/iliyamo/konfi-registration/internal/model"
)

// InsertEventPoints adds a ledger row unless one already exists for
// (konfi, event).  It reports whether a row was actually inserted.
func (t *Tx) InsertEventPoints(ctx context.Context, p *model.EventPoints) (bool, error) {
	const q = `INSERT IGNORE INTO event_points (konfi_id, event_id, organization_id, points, point_type, awarded_date)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, p.KonfiID, p.EventID, p.OrganizationID, p.Points, string(p.Category), p.AwardedAt.UTC())
	if err != nil {
		return false, classify(err, "insert points")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err, "insert points")
	}
	if n == 0 {
		return false, nil
	}
	p.ID, err = insertID(res, "insert points")
	return err == nil, err
}

// GetEventPoints returns the ledger row of (konfi, event) FOR UPDATE.
func (t *Tx) GetEventPoints(ctx context.Context, konfiID, eventID uint64) (*model.EventPoints, error) {
	const q = `SELECT id, konfi_id, event_id, organization_id, points, point_type, awarded_date
		FROM event_points WHERE konfi_id = ? AND event_id = ? FOR UPDATE`
	var (
		p        model.EventPoints
		category string
	)
	err := t.tx.QueryRowContext(ctx, q, konfiID, eventID).
		Scan(&p.ID, &p.KonfiID, &p.EventID, &p.OrganizationID, &p.Points, &category, &p.AwardedAt)
	if err != nil {
		return nil, classify(err, "get points")
	}
	p.Category = model.PointCategory(category)
	return &p, nil
}

// DeleteEventPoints removes one ledger row.
func (t *Tx) DeleteEventPoints(ctx context.Context, id uint64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM event_points WHERE id = ?`, id)
	if err != nil {
		return classify(err, "delete points")
	}
	return mustAffect(res, "delete points")
}

func profileColumn(c model.PointCategory) (string, error) {
	switch c {
	case model.PointCategoryGottesdienst:
		return "gottesdienst_points", nil
	case model.PointCategoryGemeinde:
		return "gemeinde_points", nil
	}
	return "", fmt.Errorf("unknown point category %q", c)
}

// AdjustProfilePoints adds delta to one category total, creating the
// profile row if needed.  Totals never go below zero.
func (t *Tx) AdjustProfilePoints(ctx context.Context, konfiID uint64, c model.PointCategory, delta int) error {
	col, err := profileColumn(c)
	if err != nil {
		return err
	}
	q := `INSERT INTO konfi_profiles (user_id, ` + col + `) VALUES (?, GREATEST(0, ?))
		ON DUPLICATE KEY UPDATE ` + col + ` = GREATEST(0, CAST(` + col + ` AS SIGNED) + ?)`
	if _, err := t.tx.ExecContext(ctx, q, konfiID, delta, delta); err != nil {
		return classify(err, "adjust profile")
	}
	return nil
}

// ProfileTotals reads a konfi's cached totals and locks the profile row.
func (t *Tx) ProfileTotals(ctx context.Context, konfiID uint64) (model.PointTotals, error) {
	const q = `SELECT gottesdienst_points, gemeinde_points FROM konfi_profiles WHERE user_id = ? FOR UPDATE`
	var tot model.PointTotals
	if err := t.tx.QueryRowContext(ctx, q, konfiID).Scan(&tot.Gottesdienst, &tot.Gemeinde); err != nil {
		return tot, classify(err, "profile totals")
	}
	return tot, nil
}

// LedgerTotals sums a konfi's ledger rows per category.
func (t *Tx) LedgerTotals(ctx context.Context, konfiID uint64) (model.PointTotals, error) {
	const q = `SELECT point_type, COALESCE(SUM(points), 0) FROM event_points WHERE konfi_id = ? GROUP BY point_type`
	var tot model.PointTotals
	rows, err := t.tx.QueryContext(ctx, q, konfiID)
	if err != nil {
		return tot, classify(err, "ledger totals")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			category string
			sum      int
		)
		if err := rows.Scan(&category, &sum); err != nil {
			return tot, classify(err, "ledger totals")
		}
		tot.Add(model.PointCategory(category), sum)
	}
	return tot, classify(rows.Err(), "ledger totals")
}

// SetProfileTotals overwrites both cached totals.
func (t *Tx) SetProfileTotals(ctx context.Context, konfiID uint64, tot model.PointTotals) error {
	const q = `UPDATE konfi_profiles SET gottesdienst_points = ?, gemeinde_points = ? WHERE user_id = ?`
	res, err := t.tx.ExecContext(ctx, q, tot.Gottesdienst, tot.Gemeinde, konfiID)
	if err != nil {
		return classify(err, "set profile")
	}
	return mustAffect(res, "set profile")
}

// ListKonfiProfiles returns the user ids of all konfi profiles.
func (t *Tx) ListKonfiProfiles(ctx context.Context) ([]uint64, error) {
	return t.listIDs(ctx, `SELECT user_id FROM konfi_profiles ORDER BY user_id`)
}
