package handler

import (
	"strings"
	"time"

	"doccontrol/internal/document/models"
	"doccontrol/internal/document/service"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

type AttachmentRequest struct {
	Link string `json:"link"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

func (a *AttachmentRequest) toModel() models.Attachment {
	if a == nil {
		return models.Attachment{}
	}
	return models.Attachment{Link: a.Link, Name: a.Name, Size: a.Size, Type: a.Type}
}

func (a *AttachmentRequest) validate(fields map[string]string) {
	if a == nil {
		return
	}
	if a.Link == "" {
		fields["attachment.link"] = "required"
	}
	if a.Size < 0 {
		fields["attachment.size"] = "invalid"
	}
}

// SubmitRequest is the body of POST /documents.
type SubmitRequest struct {
	Code                 string             `json:"code"`
	Title                string             `json:"title"`
	Area                 string             `json:"area"`
	ContractID           string             `json:"contract_id"`
	ResponsibleID        string             `json:"responsible_id"`
	ElaborationDate      string             `json:"elaboration_date"`
	Observation          string             `json:"observation"`
	Content              string             `json:"content"`
	Attachment           *AttachmentRequest `json:"attachment"`
	DesignatedApproverID string             `json:"designated_approver_id"`

	contractID      id.ContractID
	responsibleID   id.UserID
	elaborationDate time.Time
	approver        *id.UserID
}

func (r *SubmitRequest) Normalize() {
	r.Code = strings.TrimSpace(r.Code)
	r.Title = strings.TrimSpace(r.Title)
	r.Area = strings.TrimSpace(r.Area)
	r.ContractID = strings.TrimSpace(r.ContractID)
	r.ResponsibleID = strings.TrimSpace(r.ResponsibleID)
	r.ElaborationDate = strings.TrimSpace(r.ElaborationDate)
	r.DesignatedApproverID = strings.TrimSpace(r.DesignatedApproverID)
}

func (r *SubmitRequest) Validate() error {
	fields := map[string]string{}
	if r.Code == "" {
		fields["code"] = "required"
	}
	if r.Area == "" {
		fields["area"] = "required"
	}
	if cid, err := id.ParseContractID(r.ContractID); err != nil {
		fields["contract_id"] = reason(r.ContractID)
	} else {
		r.contractID = cid
	}
	if uid, err := id.ParseUserID(r.ResponsibleID); err != nil {
		fields["responsible_id"] = reason(r.ResponsibleID)
	} else {
		r.responsibleID = uid
	}
	if d, err := time.Parse(dateLayout, r.ElaborationDate); err != nil {
		fields["elaboration_date"] = reason(r.ElaborationDate)
	} else {
		r.elaborationDate = d
	}
	if r.DesignatedApproverID != "" {
		uid, err := id.ParseUserID(r.DesignatedApproverID)
		if err != nil {
			fields["designated_approver_id"] = "invalid"
		} else {
			r.approver = &uid
		}
	}
	r.Attachment.validate(fields)
	if len(fields) > 0 {
		return dErrors.Validation("invalid document", fields)
	}
	return nil
}

func (r *SubmitRequest) command() service.SubmitCommand {
	return service.SubmitCommand{
		Code:               r.Code,
		Title:              r.Title,
		Area:               r.Area,
		ContractID:         r.contractID,
		ResponsibleID:      r.responsibleID,
		ElaborationDate:    r.elaborationDate,
		Observation:        r.Observation,
		Content:            r.Content,
		Attachment:         r.Attachment.toModel(),
		DesignatedApprover: r.approver,
	}
}

// AppendRequest is the body of POST /documents/{id}/revisions.
type AppendRequest struct {
	Observation          string             `json:"observation"`
	Content              string             `json:"content"`
	Attachment           *AttachmentRequest `json:"attachment"`
	DesignatedApproverID string             `json:"designated_approver_id"`

	approver *id.UserID
}

func (r *AppendRequest) Normalize() {
	r.DesignatedApproverID = strings.TrimSpace(r.DesignatedApproverID)
}

func (r *AppendRequest) Validate() error {
	fields := map[string]string{}
	if r.DesignatedApproverID != "" {
		uid, err := id.ParseUserID(r.DesignatedApproverID)
		if err != nil {
			fields["designated_approver_id"] = "invalid"
		} else {
			r.approver = &uid
		}
	}
	r.Attachment.validate(fields)
	if len(fields) > 0 {
		return dErrors.Validation("invalid revision", fields)
	}
	return nil
}

func (r *AppendRequest) command() service.AppendCommand {
	return service.AppendCommand{
		Observation:        r.Observation,
		Content:            r.Content,
		Attachment:         r.Attachment.toModel(),
		DesignatedApprover: r.approver,
	}
}

// TransitionRequest is the body of POST /documents/{id}/status.
type TransitionRequest struct {
	Status      string `json:"status"`
	Observation string `json:"observation"`

	status models.Status
}

func (r *TransitionRequest) Normalize() {
	r.Status = strings.TrimSpace(r.Status)
}

func (r *TransitionRequest) Validate() error {
	if r.Status == "" {
		return dErrors.Validation("status is required", map[string]string{"status": "required"})
	}
	s, err := models.ParseStatus(r.Status)
	if err != nil {
		return err
	}
	r.status = s
	return nil
}

func reason(raw string) string {
	if raw == "" {
		return "required"
	}
	return "invalid"
}
