package handler

import (
	"fmt"
	"strings"

	"doccontrol/internal/notification/models"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
)

// MarkReadRequest is the body of POST /notifications/read.
type MarkReadRequest struct {
	IDs []string `json:"ids"`

	ids []id.NotificationID
}

func (r *MarkReadRequest) Normalize() {
	for i := range r.IDs {
		r.IDs[i] = strings.TrimSpace(r.IDs[i])
	}
}

func (r *MarkReadRequest) Validate() error {
	if len(r.IDs) == 0 {
		return dErrors.Validation("ids are required", map[string]string{"ids": "required"})
	}
	r.ids = make([]id.NotificationID, 0, len(r.IDs))
	for i, raw := range r.IDs {
		nid, err := id.ParseNotificationID(raw)
		if err != nil {
			return dErrors.Validation("invalid notification id", map[string]string{fmt.Sprintf("ids[%d]", i): "invalid"})
		}
		r.ids = append(r.ids, nid)
	}
	return nil
}

// BroadcastRequest is the body of POST /notifications/broadcast.
type BroadcastRequest struct {
	TargetType string   `json:"target_type"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	UserIDs    []string `json:"user_ids"`

	target  models.TargetType
	userIDs []id.UserID
}

func (r *BroadcastRequest) Normalize() {
	r.TargetType = strings.TrimSpace(r.TargetType)
	r.Title = strings.TrimSpace(r.Title)
	r.Body = strings.TrimSpace(r.Body)
}

func (r *BroadcastRequest) Validate() error {
	fields := map[string]string{}
	target, err := models.ParseTargetType(r.TargetType)
	if err != nil {
		fields["target_type"] = reason(r.TargetType)
	}
	r.target = target
	if r.Title == "" {
		fields["title"] = "required"
	}
	if r.Body == "" {
		fields["body"] = "required"
	}
	if target == models.TargetSpecificUsers {
		if len(r.UserIDs) == 0 {
			fields["user_ids"] = "required"
		}
		for i, raw := range r.UserIDs {
			uid, err := id.ParseUserID(strings.TrimSpace(raw))
			if err != nil {
				fields[fmt.Sprintf("user_ids[%d]", i)] = "invalid"
				continue
			}
			r.userIDs = append(r.userIDs, uid)
		}
	}
	if len(fields) > 0 {
		return dErrors.Validation("invalid broadcast", fields)
	}
	return nil
}

func (r *BroadcastRequest) content() models.Content {
	return models.Content{Title: r.Title, Body: r.Body}
}

func reason(raw string) string {
	if raw == "" {
		return "required"
	}
	return "invalid"
}
