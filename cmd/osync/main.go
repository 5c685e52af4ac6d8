package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/chmdznr/odoo-recruit-sync/internal/blob"
	"github.com/chmdznr/odoo-recruit-sync/internal/config"
	"github.com/chmdznr/odoo-recruit-sync/internal/db"
	"github.com/chmdznr/odoo-recruit-sync/internal/export"
	"github.com/chmdznr/odoo-recruit-sync/internal/secret"
	"github.com/chmdznr/odoo-recruit-sync/internal/sync"
	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
	"github.com/chmdznr/odoo-recruit-sync/pkg/utils"
	"github.com/chmdznr/odoo-recruit-sync/pkg/version"
)

func main() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"v"},
		Usage:   "print the version",
	}

	recruiterFlag := &cli.StringFlag{
		Name:     "recruiter",
		Aliases:  []string{"r"},
		Usage:    "Recruiter id or email",
		Required: true,
	}

	app := &cli.App{
		Name:                 "osync",
		Usage:                "Mirror Odoo recruitment data into a local store",
		Version:              version.Version,
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Dotenv file with OSYNC_* settings",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "SQLite database path (overrides OSYNC_DB_PATH)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides OSYNC_LOG_LEVEL)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text or json (overrides OSYNC_LOG_FORMAT)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "Print detailed version information",
				Action: func(c *cli.Context) error {
					fmt.Printf("Version:    %s\n", version.Version)
					fmt.Printf("Git commit: %s\n", version.GitCommit)
					fmt.Printf("Built:      %s\n", version.BuildTime)
					return nil
				},
			},
			{
				Name:  "recruiter",
				Usage: "Manage recruiters",
				Subcommands: []*cli.Command{
					{
						Name:  "add",
						Usage: "Register a recruiter",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "email", Usage: "Recruiter email", Required: true},
							&cli.StringFlag{Name: "name", Usage: "Display name"},
						},
						Action: addRecruiter,
					},
					{
						Name:   "list",
						Usage:  "List recruiters",
						Action: listRecruiters,
					},
				},
			},
			{
				Name:  "connect",
				Usage: "Verify and store the Odoo account of a recruiter",
				Flags: append([]cli.Flag{
					recruiterFlag,
					&cli.BoolFlag{Name: "import-companies", Usage: "Import the companies of the Odoo user after connecting", Value: true},
				}, odooFlags()...),
				Action: connectAccount,
			},
			{
				Name:   "verify",
				Usage:  "Check Odoo credentials without storing them",
				Flags:  odooFlags(),
				Action: verifyAccount,
			},
			{
				Name:  "sync",
				Usage: "Reconcile local data with Odoo",
				Subcommands: []*cli.Command{
					{
						Name:  "companies",
						Usage: "Sync the companies of a recruiter",
						Flags: append([]cli.Flag{
							recruiterFlag,
							&cli.BoolFlag{Name: "jobs", Usage: "Also sync the jobs of every company", Value: true},
							&cli.BoolFlag{Name: "candidates", Usage: "Also sync the candidates of every job"},
						}, syncFlags()...),
						Action: syncCompanies,
					},
					{
						Name:  "jobs",
						Usage: "Sync the jobs of a company",
						Flags: append([]cli.Flag{
							&cli.Int64Flag{Name: "company", Usage: "Local company id", Required: true},
							&cli.BoolFlag{Name: "candidates", Usage: "Also sync the candidates of every job"},
						}, syncFlags()...),
						Action: syncJobs,
					},
					{
						Name:  "candidates",
						Usage: "Sync the candidates of a job, or of a whole company",
						Flags: append([]cli.Flag{
							&cli.Int64Flag{Name: "job", Usage: "Local job id"},
							&cli.Int64Flag{Name: "company", Usage: "Local company id; files applicants under matching jobs"},
						}, syncFlags()...),
						Action: syncCandidates,
					},
					{
						Name:  "attachments",
						Usage: "Download the attachments of a candidate",
						Flags: append([]cli.Flag{
							&cli.Int64Flag{Name: "candidate", Usage: "Local candidate id", Required: true},
						}, syncFlags()...),
						Action: syncAttachments,
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show what is stored for a recruiter",
				Flags:  []cli.Flag{recruiterFlag},
				Action: showStatus,
			},
			{
				Name:  "export",
				Usage: "Write a recruiter's data to an Excel workbook",
				Flags: []cli.Flag{
					recruiterFlag,
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file", Value: "osync-export.xlsx"},
				},
				Action: exportWorkbook,
			},
			{
				Name:  "attachment",
				Usage: "Read back stored attachments",
				Subcommands: []*cli.Command{
					{
						Name:  "get",
						Usage: "Copy the content of an attachment to a file",
						Flags: []cli.Flag{
							&cli.Int64Flag{Name: "id", Usage: "Local attachment id", Required: true},
							&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default: cleaned original file name)"},
						},
						Action: getAttachment,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func odooFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "url", Usage: "Odoo base URL", Required: true},
		&cli.StringFlag{Name: "odoo-db", Usage: "Odoo database name", Required: true},
		&cli.StringFlag{Name: "login", Usage: "Odoo login", Required: true},
		&cli.StringFlag{Name: "secret", Usage: "Odoo password or API key", EnvVars: []string{"OSYNC_ODOO_SECRET"}, Required: true},
	}
}

// env is what every command needs: settings, logger and the open store.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *db.DB
}

func openEnv(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("db") {
		cfg.DBPath = c.String("db")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = strings.ToLower(c.String("log-level"))
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = strings.ToLower(c.String("log-format"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	store, err := db.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	return &env{cfg: cfg, logger: logger, db: store}, nil
}

func (e *env) Close() error {
	return e.db.Close()
}

func (e *env) newSyncer(ctx context.Context, opts sync.Options, progress io.Writer) (*sync.Syncer, error) {
	if e.cfg.EncryptionKey == "" {
		return nil, errors.New("OSYNC_ENCRYPTION_KEY is not set")
	}
	cipher, err := secret.NewCipher(e.cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	blobs, err := e.cfg.OpenBlobStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %v", err)
	}
	return sync.NewSyncer(e.db, cipher, blobs,
		sync.WithLogger(e.logger),
		sync.WithHTTPTimeout(e.cfg.HTTPTimeout),
		sync.WithOptions(opts),
		sync.WithProgress(progress),
	), nil
}

// resolveRecruiter accepts a numeric id or an email address.
func resolveRecruiter(ctx context.Context, store *db.DB, ref string) (*models.Recruiter, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return store.GetRecruiter(ctx, id)
	}
	return store.GetRecruiterByEmail(ctx, ref)
}

func addRecruiter(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	r := &models.Recruiter{Email: strings.TrimSpace(c.String("email")), Name: c.String("name")}
	if err := e.db.CreateRecruiter(c.Context, r); err != nil {
		return fmt.Errorf("failed to create recruiter: %v", err)
	}
	fmt.Printf("Recruiter %s created with id %d\n", r.Email, r.ID)
	return nil
}

func listRecruiters(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	recruiters, err := e.db.ListRecruiters(c.Context)
	if err != nil {
		return err
	}
	if len(recruiters) == 0 {
		fmt.Println("No recruiters yet. Add one with 'osync recruiter add'.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tCREATED")
	for _, r := range recruiters {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Email, r.Name, humanize.Time(r.CreatedAt))
	}
	return w.Flush()
}

func connectParams(c *cli.Context) sync.ConnectParams {
	return sync.ConnectParams{
		URL:    c.String("url"),
		DB:     c.String("odoo-db"),
		Login:  c.String("login"),
		Secret: c.String("secret"),
	}
}

func connectAccount(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()
	ctx := c.Context

	r, err := resolveRecruiter(ctx, e.db, c.String("recruiter"))
	if err != nil {
		return err
	}
	syncer, err := e.newSyncer(ctx, sync.Options{SkipAttachments: true}, nil)
	if err != nil {
		return err
	}
	cred, err := syncer.Connect(ctx, r.ID, connectParams(c))
	if err != nil {
		return err
	}
	color.Green("Connected %s to %s (database %s, remote user %d)", r.Email, cred.URL, cred.DBName, cred.RemoteUserID)

	if !c.Bool("import-companies") {
		return nil
	}
	_, report, err := syncer.SyncCompanies(ctx, r.ID)
	if report != nil {
		if _, serr := e.db.SaveSyncRun(ctx, report); serr != nil {
			e.logger.Error("failed to save sync run", "error", serr)
		}
		printReport(report)
	}
	return err
}

func verifyAccount(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	// Verification never touches stored secrets, so no cipher is needed.
	syncer := sync.NewSyncer(e.db, nil, nil, sync.WithLogger(e.logger), sync.WithHTTPTimeout(e.cfg.HTTPTimeout))
	user, err := syncer.Verify(c.Context, connectParams(c))
	if err != nil {
		return err
	}
	color.Green("Credentials are valid: %s (uid %d, %d companies)", user.Name, user.ID, len(user.CompanyIDs))
	return nil
}

func showStatus(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()
	ctx := c.Context

	r, err := resolveRecruiter(ctx, e.db, c.String("recruiter"))
	if err != nil {
		return err
	}
	stats, err := e.db.GetStats(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("failed to get stats: %v", err)
	}

	bold := color.New(color.Bold).SprintFunc()
	fmt.Printf("%s %s <%s>\n", bold("Recruiter:"), r.Name, r.Email)

	cred, err := e.db.LatestCredential(ctx, r.ID)
	switch {
	case err == nil:
		fmt.Printf("%s %s (database %s, login %s, connected %s)\n",
			bold("Odoo:"), cred.URL, cred.DBName, cred.Login, humanize.Time(cred.CreatedAt))
	case errors.Is(err, db.ErrNotFound):
		fmt.Printf("%s %s\n", bold("Odoo:"), color.YellowString("not connected"))
	default:
		return err
	}

	fmt.Printf("Companies: %s (active: %s)\n", humanize.Comma(stats.TotalCompanies), humanize.Comma(stats.ActiveCompanies))
	fmt.Printf("Jobs: %s (open: %s)\n", humanize.Comma(stats.TotalJobs), humanize.Comma(stats.OpenJobs))
	fmt.Printf("Candidates: %s\n", humanize.Comma(stats.TotalCandidates))
	fmt.Printf("Attachments: %s (completed: %s, failed: %s, size: %s)\n",
		humanize.Comma(stats.TotalAttachments),
		humanize.Comma(stats.CompletedAttachments),
		failedString(stats.FailedAttachments),
		utils.FormatSize(stats.AttachmentBytes),
	)

	run, err := e.db.LatestSyncRun(ctx, r.ID)
	switch {
	case err == nil:
		fmt.Printf("Last sync: %s, %s (took %s, %d skipped)\n",
			run.Scope,
			humanize.Time(run.FinishedAt),
			utils.FormatDuration(run.FinishedAt.Sub(run.StartedAt)),
			len(run.Report.Skipped),
		)
	case errors.Is(err, db.ErrNotFound):
		fmt.Println("Last sync: never")
	default:
		return err
	}
	return nil
}

func exportWorkbook(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	r, err := resolveRecruiter(c.Context, e.db, c.String("recruiter"))
	if err != nil {
		return err
	}
	snap, err := export.Collect(c.Context, e.db, r.ID)
	if err != nil {
		return err
	}
	path, err := export.ToExcel(snap, c.String("output"))
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d companies, %d jobs, %d candidates and %d attachments to %s\n",
		len(snap.Companies), len(snap.Jobs), len(snap.Candidates), len(snap.Attachments), path)
	return nil
}

func getAttachment(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()
	ctx := c.Context

	att, err := e.db.GetAttachment(ctx, c.Int64("id"))
	if err != nil {
		return err
	}
	if att.Status != models.AttachmentCompleted {
		return fmt.Errorf("attachment %d has status %s, no content stored", att.ID, att.Status)
	}
	blobs, err := e.cfg.OpenBlobStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %v", err)
	}
	rc, err := blobs.Get(ctx, att.StorageKey)
	if err != nil {
		return err
	}
	defer rc.Close()

	output := c.String("output")
	if output == "" {
		output = defaultOutputName(att)
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, rc)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %v", output, err)
	}
	fmt.Printf("Wrote %s (%s)\n", output, utils.FormatSize(n))
	return nil
}

// defaultOutputName derives a file name in the working directory from the
// remote file name, which may contain path separators.
func defaultOutputName(att *models.Attachment) string {
	return filepath.Base(blob.CleanName(att.OriginalFilename) + path.Ext(att.StorageKey))
}

func failedString(n int64) string {
	if n == 0 {
		return "0"
	}
	return color.RedString(humanize.Comma(n))
}
