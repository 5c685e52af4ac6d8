package odoo_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmdznr/odoo-recruit-sync/internal/odoo"
	"github.com/chmdznr/odoo-recruit-sync/internal/odoo/odootest"
)

func newClient(srv *odootest.Server) *odoo.Client {
	return odoo.New(odoo.Config{
		URL:    srv.URL,
		DB:     srv.DB,
		Login:  srv.Login,
		Secret: srv.Secret,
	})
}

func TestAuthenticate(t *testing.T) {
	srv := odootest.NewServer(t)
	c := newClient(srv)

	ok, err := c.Authenticate(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, srv.UID, c.UID())

	srv.RejectLogin(true)
	ok, err = c.Authenticate(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, c.UID())
}

func TestCallAuthenticatesLazily(t *testing.T) {
	srv := odootest.NewServer(t)
	srv.SetRecords(odoo.ModelCompany, odootest.Record{"id": 1, "name": "Acme"})
	c := newClient(srv)

	_, err := c.Call(context.Background(), odoo.ModelCompany, "search_read", []any{[]any{}}, nil)
	require.NoError(t, err)
	_, err = c.Call(context.Background(), odoo.ModelCompany, "search_read", []any{[]any{}}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, srv.Logins())
	assert.Equal(t, 2, srv.Calls(odoo.ModelCompany, "search_read"))
}

func TestCallRejectedLogin(t *testing.T) {
	srv := odootest.NewServer(t)
	srv.RejectLogin(true)
	c := newClient(srv)

	_, err := c.Call(context.Background(), odoo.ModelCompany, "search_read", nil, nil)
	assert.ErrorIs(t, err, odoo.ErrAuthenticationFailed)
}

func TestCallWrapsRemoteErrors(t *testing.T) {
	srv := odootest.NewServer(t)
	c := newClient(srv)

	_, err := c.Call(context.Background(), odoo.ModelJob, "unlink", []any{[]any{1}}, nil)
	var rerr *odoo.RemoteError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, odoo.ModelJob, rerr.Model)
	assert.Equal(t, "unlink", rerr.Method)
	assert.Equal(t, "builtins.AttributeError", rerr.Name)
	assert.Contains(t, err.Error(), "hr.job.unlink")
}

func TestHTTPStatusAndTransportErrors(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer broken.Close()

	c := odoo.New(odoo.Config{URL: broken.URL, DB: "db", Login: "l", Secret: "s"})
	_, err := c.Authenticate(context.Background())
	var rerr *odoo.RemoteError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, http.StatusBadGateway, rerr.Code)

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()

	c = odoo.New(odoo.Config{URL: slow.URL}, odoo.WithTimeout(20*time.Millisecond))
	_, err = c.Authenticate(context.Background())
	require.True(t, errors.As(err, &rerr))
	assert.NotNil(t, rerr.Unwrap())
}

func TestCompaniesScopedToUser(t *testing.T) {
	srv := odootest.NewServer(t)
	srv.SetRecords(odoo.ModelCompany,
		odootest.Record{"id": 10, "name": "Acme"},
		odootest.Record{"id": 20, "name": "Globex"},
		odootest.Record{"id": 30, "name": "Initech"},
	)
	c := newClient(srv)

	companies, err := c.Companies(context.Background())
	require.NoError(t, err)
	assert.Len(t, companies, 3, "user without company_ids sees every company")

	srv.SetUserCompanies(10, 30)
	companies, err = c.Companies(context.Background())
	require.NoError(t, err)
	require.Len(t, companies, 2)
	assert.Equal(t, int64(10), companies[0].ID)
	assert.Equal(t, odoo.Text("Initech"), companies[1].Name)
}

func TestApplicantsDecodeOdooValues(t *testing.T) {
	srv := odootest.NewServer(t)
	srv.SetRecords(odoo.ModelApplicant,
		odootest.Record{
			"id":                     7,
			"name":                   "Backend role application",
			"partner_name":           "Ann Lee",
			"email_from":             "ann@example.com",
			"partner_phone":          false,
			"stage_id":               []any{3, "First Interview"},
			"job_id":                 []any{100, "Backend Engineer"},
			"date_last_stage_update": "2026-09-30 10:00:00",
		},
		odootest.Record{
			"id":       8,
			"name":     "Other",
			"stage_id": false,
			"job_id":   []any{200, "Designer"},
		},
	)
	c := newClient(srv)

	applicants, err := c.Applicants(context.Background(), odoo.ApplicantFilter{JobID: 100})
	require.NoError(t, err)
	require.Len(t, applicants, 1)
	a := applicants[0]
	assert.Equal(t, odoo.Text("Ann Lee"), a.PartnerName)
	assert.Empty(t, a.PartnerPhone)
	assert.Equal(t, odoo.Many2One{ID: 3, Name: "First Interview"}, a.StageID)
	assert.Empty(t, a.DateOpen)

	applicants, err = c.Applicants(context.Background(), odoo.ApplicantFilter{JobID: 200})
	require.NoError(t, err)
	require.Len(t, applicants, 1)
	assert.False(t, applicants[0].StageID.Valid())
}

func TestAttachmentContent(t *testing.T) {
	srv := odootest.NewServer(t)
	srv.SetRecords(odoo.ModelAttachment,
		odootest.Record{"id": 501, "name": "cv.pdf", "mimetype": "application/pdf", "res_model": "hr.applicant", "res_id": 7, "datas": "JVBERi0="},
		odootest.Record{"id": 502, "name": "letter.txt", "res_model": "hr.applicant", "res_id": 7, "datas": "aGk="},
	)
	srv.FailContent(502)
	c := newClient(srv)

	metas, err := c.Attachments(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Empty(t, metas[0].Datas, "metadata listing must not carry content")

	content, err := c.AttachmentContent(context.Background(), 501)
	require.NoError(t, err)
	assert.Equal(t, odoo.Text("JVBERi0="), content.Datas)

	_, err = c.AttachmentContent(context.Background(), 502)
	var rerr *odoo.RemoteError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "odoo.exceptions.MissingError", rerr.Name)

	_, err = c.AttachmentContent(context.Background(), 999)
	assert.Error(t, err)
}

func TestLenientValues(t *testing.T) {
	var v struct {
		Name   odoo.Text     `json:"name"`
		Rel    odoo.Many2One `json:"rel"`
		IDs    odoo.IDs      `json:"ids"`
		Size   odoo.Int      `json:"size"`
		OnlyID odoo.Many2One `json:"only_id"`
	}
	err := json.Unmarshal([]byte(`{"name": false, "rel": "weird", "ids": false, "size": false, "only_id": [5]}`), &v)
	require.NoError(t, err)
	assert.Empty(t, v.Name)
	assert.False(t, v.Rel.Valid())
	assert.Nil(t, v.IDs)
	assert.Zero(t, v.Size)
	assert.Equal(t, odoo.Many2One{ID: 5}, v.OnlyID)
}

func TestTimeoutDoesNotModifySharedClient(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()

	shared := &http.Client{}
	tests := []struct {
		name string
		opts []odoo.Option
	}{
		{name: "timeout after client", opts: []odoo.Option{odoo.WithHTTPClient(shared), odoo.WithTimeout(20 * time.Millisecond)}},
		{name: "timeout before client", opts: []odoo.Option{odoo.WithTimeout(20 * time.Millisecond), odoo.WithHTTPClient(shared)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := odoo.New(odoo.Config{URL: slow.URL}, tt.opts...)
			start := time.Now()
			_, err := c.Authenticate(context.Background())
			require.Error(t, err)
			assert.Less(t, time.Since(start), 150*time.Millisecond, "timeout must apply")
			assert.Zero(t, shared.Timeout, "shared client must not change")
		})
	}
}
