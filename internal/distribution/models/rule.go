package models

import (
	"slices"
	"time"

	id "doccontrol/pkg/domain"
)

// Rule subscribes one user to a set of areas of one contract. An empty
// Areas set subscribes the user to nothing.
type Rule struct {
	TenantID   id.TenantID   `json:"tenant_id"`
	ContractID id.ContractID `json:"contract_id"`
	UserID     id.UserID     `json:"user_id"`
	Areas      []string      `json:"areas"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Covers reports whether the rule subscribes to area. Matching is exact and
// case-sensitive.
func (r *Rule) Covers(area string) bool {
	return slices.Contains(r.Areas, area)
}

// Recipients returns the users whose rules cover area, each once, in rule
// order.
func Recipients(rules []*Rule, area string) []id.UserID {
	seen := make(map[id.UserID]struct{}, len(rules))
	var out []id.UserID
	for _, r := range rules {
		if !r.Covers(area) {
			continue
		}
		if _, dup := seen[r.UserID]; dup {
			continue
		}
		seen[r.UserID] = struct{}{}
		out = append(out, r.UserID)
	}
	return out
}
