package repository

import (
	"context"

	"github.com/iliyamo/konfi-registration/internal/model"
)

// UserInOrg reports whether the user belongs to the organization.
func (t *Tx) UserInOrg(ctx context.Context, orgID, userID uint64) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE id=? AND organization_id=?",
		userID, orgID).Scan(&n)
	if err != nil {
		return false, classify(err, "user in org")
	}
	return n > 0, nil
}

// ListOrgAdmins returns the ids of the organization's organizers.
func (t *Tx) ListOrgAdmins(ctx context.Context, orgID uint64) ([]uint64, error) {
	return t.listIDs(ctx,
		"SELECT id FROM users WHERE organization_id=? AND user_type=? ORDER BY id",
		orgID, model.UserTypeAdmin)
}
