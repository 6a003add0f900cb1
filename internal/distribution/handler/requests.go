package handler

import (
	"fmt"
	"strings"

	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
)

type UserRuleRequest struct {
	UserID string   `json:"user_id"`
	Areas  []string `json:"areas"`
}

// SaveRulesRequest is the body of PUT /contracts/{contractID}/distribution-rules.
// Each listed user's areas replace whatever they had before; an empty list
// unsubscribes them.
type SaveRulesRequest struct {
	Rules []UserRuleRequest `json:"rules"`

	byUser map[id.UserID][]string
}

func (r *SaveRulesRequest) Normalize() {
	for i := range r.Rules {
		r.Rules[i].UserID = strings.TrimSpace(r.Rules[i].UserID)
	}
}

func (r *SaveRulesRequest) Validate() error {
	if len(r.Rules) == 0 {
		return dErrors.Validation("at least one rule is required", map[string]string{"rules": "required"})
	}
	fields := map[string]string{}
	r.byUser = make(map[id.UserID][]string, len(r.Rules))
	for i, rule := range r.Rules {
		key := fmt.Sprintf("rules[%d].user_id", i)
		uid, err := id.ParseUserID(rule.UserID)
		if err != nil {
			fields[key] = "invalid"
			continue
		}
		if _, dup := r.byUser[uid]; dup {
			fields[key] = "duplicate"
			continue
		}
		r.byUser[uid] = rule.Areas
	}
	if len(fields) > 0 {
		return dErrors.Validation("invalid distribution rules", fields)
	}
	return nil
}
