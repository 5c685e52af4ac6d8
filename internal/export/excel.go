// Package export writes a recruiter's synced data to an Excel workbook.
package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/chmdznr/odoo-recruit-sync/internal/db"
	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
	"github.com/chmdznr/odoo-recruit-sync/pkg/utils"
)

const (
	companiesSheet   = "Companies"
	jobsSheet        = "Jobs"
	candidatesSheet  = "Candidates"
	attachmentsSheet = "Attachments"
	lastSyncSheet    = "Last Sync"

	timeLayout = "2006-01-02 15:04:05"
)

// Snapshot is everything stored locally for one recruiter.
type Snapshot struct {
	Recruiter   models.Recruiter
	Companies   []models.Company
	Jobs        []models.Job
	Candidates  []models.Candidate
	Attachments []models.Attachment
	LastRun     *models.SyncRun
}

// Collect reads the snapshot of a recruiter from the store.
func Collect(ctx context.Context, store *db.DB, recruiterID int64) (*Snapshot, error) {
	recruiter, err := store.GetRecruiter(ctx, recruiterID)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Recruiter: *recruiter}

	if snap.Companies, err = store.ListCompanies(ctx, recruiterID); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	for _, c := range snap.Companies {
		jobs, err := store.ListJobs(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list jobs of company %d: %w", c.ID, err)
		}
		snap.Jobs = append(snap.Jobs, jobs...)
	}
	for _, j := range snap.Jobs {
		candidates, err := store.ListCandidates(ctx, j.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list candidates of job %d: %w", j.ID, err)
		}
		snap.Candidates = append(snap.Candidates, candidates...)
	}
	for _, c := range snap.Candidates {
		attachments, err := store.ListAttachments(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list attachments of candidate %d: %w", c.ID, err)
		}
		snap.Attachments = append(snap.Attachments, attachments...)
	}

	run, err := store.LatestSyncRun(ctx, recruiterID)
	switch {
	case err == nil:
		snap.LastRun = run
	case !errors.Is(err, db.ErrNotFound):
		return nil, fmt.Errorf("failed to load last sync run: %w", err)
	}
	return snap, nil
}

// ToExcel writes snap to outputPath, adding the .xlsx extension when
// missing, and returns the path written.
func ToExcel(snap *Snapshot, outputPath string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(outputPath), ".xlsx") {
		outputPath += ".xlsx"
	}
	outputPath = filepath.Clean(outputPath)

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return "", err
	}

	companyNames := make(map[int64]string, len(snap.Companies))
	for _, c := range snap.Companies {
		companyNames[c.ID] = c.Name
	}
	jobTitles := make(map[int64]string, len(snap.Jobs))
	jobCompany := make(map[int64]int64, len(snap.Jobs))
	for _, j := range snap.Jobs {
		jobTitles[j.ID] = j.Title
		jobCompany[j.ID] = j.CompanyID
	}
	candidateNames := make(map[int64]string, len(snap.Candidates))
	for _, c := range snap.Candidates {
		candidateNames[c.ID] = c.Name
	}

	tables := []struct {
		name   string
		header []any
		widths []float64
		rows   [][]any
	}{
		{
			name:   companiesSheet,
			header: []any{"ID", "Odoo ID", "Name", "Active"},
			widths: []float64{8, 10, 35, 10},
		},
		{
			name:   jobsSheet,
			header: []any{"ID", "Odoo ID", "Company", "Title", "State", "Active", "Posted"},
			widths: []float64{8, 10, 25, 35, 12, 10, 20},
		},
		{
			name:   candidatesSheet,
			header: []any{"ID", "Odoo ID", "Company", "Job", "Name", "Email", "Phone", "State", "Stage Changed", "Applied"},
			widths: []float64{8, 10, 25, 30, 25, 30, 18, 12, 20, 20},
		},
		{
			name:   attachmentsSheet,
			header: []any{"ID", "Odoo ID", "Candidate", "Name", "Mime Type", "Size", "Status", "Storage Key"},
			widths: []float64{8, 10, 25, 30, 25, 12, 12, 70},
		},
	}
	for _, c := range snap.Companies {
		tables[0].rows = append(tables[0].rows, []any{c.ID, externalID(c.ExternalID), c.Name, yesNo(c.Active)})
	}
	for _, j := range snap.Jobs {
		tables[1].rows = append(tables[1].rows, []any{
			j.ID, externalID(j.ExternalID), companyNames[j.CompanyID], j.Title, string(j.State), yesNo(j.Active), formatTime(j.PostedAt),
		})
	}
	for _, c := range snap.Candidates {
		tables[2].rows = append(tables[2].rows, []any{
			c.ID, externalID(c.ExternalID), companyNames[jobCompany[c.JobID]], jobTitles[c.JobID],
			c.Name, c.Email, c.Phone, string(c.State), formatTime(c.StageChangedAt), formatTime(c.AppliedAt),
		})
	}
	for _, a := range snap.Attachments {
		tables[3].rows = append(tables[3].rows, []any{
			a.ID, a.ExternalID, candidateNames[a.CandidateID], a.Name, a.MimeType, utils.FormatSize(a.Size), string(a.Status), a.StorageKey,
		})
	}

	f.SetSheetName("Sheet1", tables[0].name)
	for i, tbl := range tables {
		if i > 0 {
			if _, err := f.NewSheet(tbl.name); err != nil {
				return "", err
			}
		}
		if err := writeTable(f, tbl.name, tbl.header, tbl.widths, tbl.rows, headerStyle); err != nil {
			return "", fmt.Errorf("failed to create %s sheet: %w", tbl.name, err)
		}
	}

	if _, err := f.NewSheet(lastSyncSheet); err != nil {
		return "", err
	}
	if err := writeLastSync(f, snap, headerStyle); err != nil {
		return "", fmt.Errorf("failed to create %s sheet: %w", lastSyncSheet, err)
	}

	if err := f.SaveAs(outputPath); err != nil {
		return "", fmt.Errorf("failed to save Excel file: %w", err)
	}
	return outputPath, nil
}

func writeTable(f *excelize.File, sheet string, header []any, widths []float64, rows [][]any, headerStyle int) error {
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if len(rows) > 0 {
		bottom, err := excelize.CoordinatesToCellName(len(header), len(rows)+1)
		if err != nil {
			return err
		}
		if err := f.AutoFilter(sheet, "A1:"+bottom, []excelize.AutoFilterOptions{}); err != nil {
			return err
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeLastSync(f *excelize.File, snap *Snapshot, headerStyle int) error {
	f.SetColWidth(lastSyncSheet, "A", "A", 22)
	f.SetColWidth(lastSyncSheet, "B", "B", 14)
	f.SetColWidth(lastSyncSheet, "C", "C", 80)

	rows := [][]any{
		{"Recruiter", snap.Recruiter.Name, snap.Recruiter.Email},
		{"Exported", time.Now().UTC().Format(timeLayout)},
	}
	if snap.LastRun == nil {
		rows = append(rows, []any{"Last sync", "never"})
	} else {
		r := snap.LastRun.Report
		rows = append(rows,
			[]any{"Last sync", r.Scope, r.StartedAt.UTC().Format(timeLayout)},
			[]any{"Duration", utils.FormatDuration(r.FinishedAt.Sub(r.StartedAt))},
			[]any{},
			[]any{"Entity", "Synced", "Created / Updated / Unchanged / Deactivated / Skipped / Failed"},
		)
		for _, c := range []struct {
			name   string
			counts models.Counts
		}{
			{"Companies", r.Companies},
			{"Jobs", r.Jobs},
			{"Candidates", r.Candidates},
			{"Attachments", r.Attachments},
		} {
			rows = append(rows, []any{c.name, c.counts.Synced(), fmt.Sprintf("%d / %d / %d / %d / %d / %d",
				c.counts.Created, c.counts.Updated, c.counts.Unchanged, c.counts.Deactivated, c.counts.Skipped, c.counts.Failed)})
		}
		if len(r.Skipped) > 0 {
			rows = append(rows, []any{}, []any{"Skipped", "Odoo ID", "Reason"})
			for _, s := range r.Skipped {
				rows = append(rows, []any{s.Entity, s.ExternalID, s.Reason})
			}
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(lastSyncSheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetCellStyle(lastSyncSheet, "A1", "A1", headerStyle)
}

func externalID(id *int64) any {
	if v, ok := models.ExternalIDOf(id); ok {
		return v
	}
	return ""
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
