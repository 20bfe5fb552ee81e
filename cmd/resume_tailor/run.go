package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jonathan/resume-tailor/internal/observability"
	"github.com/jonathan/resume-tailor/internal/pipeline"
	"github.com/jonathan/resume-tailor/internal/storage"
	"github.com/jonathan/resume-tailor/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Tailor one resume locally and write the artifacts to a directory",
	Long: `Runs a single tailoring job in-process: parse -> screen (optional) -> generate -> validate -> render.

Inputs are read from local files and stored, together with the generated DOCX and PDF,
under --out. Job state is kept in memory for the duration of the command.`,
	RunE: runTailorCmd,
}

var (
	runResume     string
	runJob        string
	runJobText    string
	runTemplate   string
	runTenant     string
	runOut        string
	runComprehend bool
	runVerbose    bool
)

func init() {
	runCommand.Flags().StringVarP(&runResume, "resume", "r", "", "Path to the resume (DOCX, PDF or text)")
	runCommand.Flags().StringVarP(&runJob, "job", "j", "", "Path to the job description file (mutually exclusive with --job-text)")
	runCommand.Flags().StringVar(&runJobText, "job-text", "", "Job description text (mutually exclusive with --job)")
	runCommand.Flags().StringVarP(&runTemplate, "template", "t", "", "Path to a DOCX template (optional)")
	runCommand.Flags().StringVar(&runTenant, "tenant", "local", "Tenant id used for storage keys")
	runCommand.Flags().StringVarP(&runOut, "out", "o", "output", "Output directory")
	runCommand.Flags().BoolVar(&runComprehend, "comprehend", false, "Screen the job description for personal data")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print the draft and stage progress")

	rootCmd.AddCommand(runCommand)
}

// localQueue records the accepted job so the command can execute it in-process
type localQueue struct {
	tenantID, jobID string
}

func (q *localQueue) Enqueue(_ context.Context, tenantID, jobID string) error {
	q.tenantID, q.jobID = tenantID, jobID
	return nil
}

// printingDrafter prints each draft as it is produced
type printingDrafter struct {
	next    pipeline.Drafter
	printer *observability.Printer
}

func (d *printingDrafter) Generate(ctx context.Context, resume, jobDescription string) (*types.Draft, error) {
	draft, err := d.next.Generate(ctx, resume, jobDescription)
	if err == nil {
		d.printer.PrintDraft(draft)
	}
	return draft, err
}

func runTailorCmd(cmd *cobra.Command, _ []string) error {
	if runResume == "" {
		return fmt.Errorf("--resume is required")
	}
	if (runJob == "") == (runJobText == "") {
		return fmt.Errorf("exactly one of --job or --job-text must be provided")
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	// local runs always use the file store and the memory ledger
	cfg.Storage.Backend = "fs"
	cfg.Storage.Dir = runOut
	cfg.Database.URL = ""

	out := cmd.OutOrStdout()
	printer := observability.NewPrinter(out)
	opts := appOptions{}
	if runVerbose {
		opts.wrapDrafter = func(next pipeline.Drafter) pipeline.Drafter {
			return &printingDrafter{next: next, printer: printer}
		}
		opts.onProgress = progressLogger(log)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, log, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := tailorLocal(ctx, a, log)
	if err != nil {
		return err
	}

	printer.PrintJob(job)
	if job.Result != nil {
		printer.PrintReport(job.Result.ValidationReport)
		writeArtifactPaths(out, runOut, job.Result)
	}
	if job.Status == types.StatusFailed {
		return fmt.Errorf("tailoring failed in %s: %s", job.Error.Stage, job.Error.Message)
	}
	return nil
}

// tailorLocal stores the local inputs, submits the job and executes it
func tailorLocal(ctx context.Context, a *app, log logrus.FieldLogger) (*types.Job, error) {
	queue := &localQueue{}
	svc := pipeline.NewService(a.ledger, a.blobs, nil, queue, log)

	resumeRef, err := uploadFile(ctx, svc, storage.DefaultUploadCategory, runResume)
	if err != nil {
		return nil, err
	}
	req := &types.SubmitRequest{
		TenantID:           runTenant,
		ResumeRef:          resumeRef,
		JobDescriptionText: runJobText,
		Options:            types.JobOptions{RunComprehend: runComprehend},
	}
	if runJob != "" {
		if req.JobDescriptionRef, err = uploadFile(ctx, svc, pipeline.JobDescriptionCategory, runJob); err != nil {
			return nil, err
		}
	}
	if runTemplate != "" {
		if req.TemplateRef, err = uploadFile(ctx, svc, "templates", runTemplate); err != nil {
			return nil, err
		}
	}

	if _, err := svc.Submit(ctx, req); err != nil {
		return nil, err
	}
	job, err := a.orch.Execute(ctx, queue.tenantID, queue.jobID)
	if job == nil {
		return nil, err
	}
	// stage failures are recorded on the job and reported by the caller
	return job, nil
}

func uploadFile(ctx context.Context, svc *pipeline.Service, category, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	resp, err := svc.Upload(ctx, &types.UploadRequest{
		TenantID: runTenant,
		Category: category,
		FileName: filepath.Base(path),
		Data:     data,
	})
	if err != nil {
		return "", err
	}
	return resp.Key, nil
}

func progressLogger(log logrus.FieldLogger) pipeline.ProgressCallback {
	return func(e pipeline.ProgressEvent) {
		entry := log.WithFields(logrus.Fields{"job_id": e.JobID, "stage": e.Stage})
		if e.Message != "" {
			entry = entry.WithField("detail", e.Message)
		}
		entry.Info(strings.ReplaceAll(e.Event, "_", " "))
	}
}

//nolint:errcheck // writing to stdout
func writeArtifactPaths(out io.Writer, dir string, result *types.JobResult) {
	fmt.Fprintln(out)
	if result.DocxRef != "" {
		fmt.Fprintf(out, "DOCX written to %s\n", filepath.Join(dir, filepath.FromSlash(result.DocxRef)))
	}
	if result.PdfRef != "" {
		fmt.Fprintf(out, "PDF written to %s\n", filepath.Join(dir, filepath.FromSlash(result.PdfRef)))
	}
}
