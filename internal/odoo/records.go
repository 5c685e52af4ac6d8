package odoo

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// Remote models consumed by the sync.
const (
	ModelUser       = "res.users"
	ModelCompany    = "res.company"
	ModelJob        = "hr.job"
	ModelApplicant  = "hr.applicant"
	ModelAttachment = "ir.attachment"
)

var (
	userFields       = []string{"id", "name", "login", "company_ids"}
	companyFields    = []string{"id", "name"}
	jobFields        = []string{"id", "name", "description", "state", "active", "create_date", "date_to", "company_id"}
	applicantFields  = []string{"id", "name", "partner_name", "email_from", "partner_phone", "stage_id", "job_id", "date_open", "date_last_stage_update"}
	attachmentFields = []string{"id", "name", "mimetype", "file_size", "create_date"}
	contentFields    = []string{"id", "name", "mimetype", "datas"}
)

type UserInfo struct {
	ID         int64 `json:"id"`
	Name       Text  `json:"name"`
	Login      Text  `json:"login"`
	CompanyIDs IDs   `json:"company_ids"`
}

type Company struct {
	ID   int64 `json:"id"`
	Name Text  `json:"name"`
}

type Job struct {
	ID          int64    `json:"id"`
	Name        Text     `json:"name"`
	Description Text     `json:"description"`
	State       Text     `json:"state"`
	Active      *bool    `json:"active"`
	CreateDate  Text     `json:"create_date"`
	DateTo      Text     `json:"date_to"`
	CompanyID   Many2One `json:"company_id"`
}

type Applicant struct {
	ID                  int64    `json:"id"`
	Name                Text     `json:"name"`
	PartnerName         Text     `json:"partner_name"`
	EmailFrom           Text     `json:"email_from"`
	PartnerPhone        Text     `json:"partner_phone"`
	StageID             Many2One `json:"stage_id"`
	JobID               Many2One `json:"job_id"`
	DateOpen            Text     `json:"date_open"`
	DateLastStageUpdate Text     `json:"date_last_stage_update"`
}

// Attachment is an ir.attachment row. Datas is only filled by
// AttachmentContent and holds the base64 payload.
type Attachment struct {
	ID         int64 `json:"id"`
	Name       Text  `json:"name"`
	Mimetype   Text  `json:"mimetype"`
	FileSize   Int   `json:"file_size"`
	CreateDate Text  `json:"create_date"`
	Datas      Text  `json:"datas"`
}

// ApplicantFilter selects applicants by job or, when JobID is zero, by company.
type ApplicantFilter struct {
	JobID     int64
	CompanyID int64
}

func (f ApplicantFilter) domain() []any {
	if f.JobID != 0 {
		return []any{[]any{"job_id", "=", f.JobID}}
	}
	return []any{[]any{"company_id", "=", f.CompanyID}}
}

func (c *Client) searchRead(ctx context.Context, model string, domain []any, fields []string, out any) error {
	if domain == nil {
		domain = []any{}
	}
	raw, err := c.Call(ctx, model, "search_read", []any{domain}, map[string]any{"fields": fields})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RemoteError{Service: "object", Model: model, Method: "search_read", Message: "unexpected result shape", Err: err}
	}
	return nil
}

func (c *Client) read(ctx context.Context, model string, ids []int64, fields []string, out any) error {
	raw, err := c.Call(ctx, model, "read", []any{ids}, map[string]any{"fields": fields})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RemoteError{Service: "object", Model: model, Method: "read", Message: "unexpected result shape", Err: err}
	}
	return nil
}

// UserInfo reads the authenticated user.
func (c *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	if c.uid == 0 {
		ok, err := c.Authenticate(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrAuthenticationFailed
		}
	}
	var users []UserInfo
	if err := c.read(ctx, ModelUser, []int64{c.uid}, userFields, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, &RemoteError{Service: "object", Model: ModelUser, Method: "read", Message: fmt.Sprintf("user %d not found", c.uid)}
	}
	return &users[0], nil
}

// Companies returns the companies the authenticated user belongs to, or all
// visible companies when the user record lists none.
func (c *Client) Companies(ctx context.Context) ([]Company, error) {
	user, err := c.UserInfo(ctx)
	if err != nil {
		return nil, err
	}
	var domain []any
	if len(user.CompanyIDs) > 0 {
		domain = []any{[]any{"id", "in", []int64(user.CompanyIDs)}}
	}
	var companies []Company
	if err := c.searchRead(ctx, ModelCompany, domain, companyFields, &companies); err != nil {
		return nil, err
	}
	return companies, nil
}

// Jobs returns the job positions of a remote company.
func (c *Client) Jobs(ctx context.Context, companyID int64) ([]Job, error) {
	var jobs []Job
	domain := []any{[]any{"company_id", "=", companyID}}
	if err := c.searchRead(ctx, ModelJob, domain, jobFields, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Applicants returns the applicants matching filter.
func (c *Client) Applicants(ctx context.Context, filter ApplicantFilter) ([]Applicant, error) {
	var applicants []Applicant
	if err := c.searchRead(ctx, ModelApplicant, filter.domain(), applicantFields, &applicants); err != nil {
		return nil, err
	}
	return applicants, nil
}

// Attachments lists attachment metadata of an applicant without content.
func (c *Client) Attachments(ctx context.Context, applicantID int64) ([]Attachment, error) {
	var attachments []Attachment
	domain := []any{
		[]any{"res_model", "=", ModelApplicant},
		[]any{"res_id", "=", applicantID},
	}
	if err := c.searchRead(ctx, ModelAttachment, domain, attachmentFields, &attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}

// AttachmentContent reads one attachment including its base64 payload.
func (c *Client) AttachmentContent(ctx context.Context, id int64) (*Attachment, error) {
	var attachments []Attachment
	if err := c.read(ctx, ModelAttachment, []int64{id}, contentFields, &attachments); err != nil {
		return nil, err
	}
	if len(attachments) == 0 {
		return nil, &RemoteError{Service: "object", Model: ModelAttachment, Method: "read", Message: fmt.Sprintf("attachment %d not found", id)}
	}
	return &attachments[0], nil
}
