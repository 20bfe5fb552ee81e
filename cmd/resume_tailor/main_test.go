package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-tailor/internal/config"
	"github.com/jonathan/resume-tailor/internal/ledger"
	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/observability"
	"github.com/jonathan/resume-tailor/internal/pipeline"
	"github.com/jonathan/resume-tailor/internal/types"
)

const (
	sampleResume = "Jane Doe\nSenior Engineer, Acme Corp\n- Built payment APIs in Go\nBS Computer Science, State University"
	sampleJD     = "Go engineer with payments experience. Contact hiring@acme.example for details."
)

type stubDrafter struct {
	draft *types.Draft
	err   error
}

func (d *stubDrafter) Generate(context.Context, string, string) (*types.Draft, error) {
	return d.draft, d.err
}

func sampleDraft() *types.Draft {
	return &types.Draft{
		Sections: types.Sections{
			types.SectionSummary:        types.Scalar("Go engineer focused on payments."),
			types.SectionSkills:         types.List("Go", "Payments"),
			types.SectionExperience:     types.List("Senior Engineer, Acme Corp: built payment APIs in Go"),
			types.SectionEducation:      types.List("BS Computer Science, State University"),
			types.SectionCertifications: types.List(),
		},
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// testConfig loads defaults with an offline-safe model provider
func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	t.Setenv("TAILOR_MODEL_PROVIDER", "openai")
	t.Setenv("TAILOR_MODEL_API_KEY", "test-key")
	t.Setenv("TAILOR_STORAGE_DIR", dir)
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

// resetRunFlags restores run command flag defaults between executions
func resetRunFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		runResume, runJob, runJobText, runTemplate = "", "", "", ""
		runTenant, runOut = "local", "output"
		runComprehend, runVerbose = false, false
		configPath = ""
	})
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetRunFlags(t)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRunCommand_MissingFlags(t *testing.T) {
	_, err := executeCommand(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--resume is required")

	_, err = executeCommand(t, "run", "--resume", "resume.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --job or --job-text")

	_, err = executeCommand(t, "run", "--resume", "resume.txt", "--job", "jd.txt", "--job-text", "Go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --job or --job-text")
}

func TestRunCommand_MissingResumeFile(t *testing.T) {
	dir := t.TempDir()
	testConfig(t, dir)

	_, err := executeCommand(t, "run", "--resume", filepath.Join(dir, "nope.txt"), "--job-text", "Go", "--out", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestMigrateCommand_RequiresDatabase(t *testing.T) {
	testConfig(t, t.TempDir())
	t.Setenv("TAILOR_DATABASE_URL", "")

	_, err := executeCommand(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
}

func TestServeCommand_RequiresSigningKey(t *testing.T) {
	testConfig(t, t.TempDir())
	t.Setenv("TAILOR_STORAGE_SIGNING_KEY", "")

	_, err := executeCommand(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing_key")
}

func TestTailorLocal_Completes(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	resetRunFlags(t)

	resumePath := filepath.Join(dir, "resume.txt")
	require.NoError(t, os.WriteFile(resumePath, []byte(sampleResume), 0o644))
	runResume, runJobText, runTenant, runComprehend = resumePath, sampleJD, "local", true

	var events []pipeline.ProgressEvent
	a, err := newApp(context.Background(), cfg, quietLogger(), appOptions{
		wrapDrafter: func(pipeline.Drafter) pipeline.Drafter { return &stubDrafter{draft: sampleDraft()} },
		onProgress:  func(e pipeline.ProgressEvent) { events = append(events, e) },
	})
	require.NoError(t, err)
	defer a.Close()

	job, err := tailorLocal(context.Background(), a, quietLogger())
	require.NoError(t, err)
	require.Equal(t, types.StatusCompleted, job.Status, "%+v", job.Error)
	require.NotNil(t, job.Result)

	for _, ref := range []string{job.Result.DocxRef, job.Result.PdfRef} {
		_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(ref)))
		assert.NoError(t, err, ref)
	}
	assert.Equal(t, pipeline.EventJobCompleted, events[len(events)-1].Event)

	var changes []string
	for _, c := range job.Result.ValidationReport.ChangeLog {
		changes = append(changes, c.Change)
	}
	assert.Contains(t, changes, pipeline.ChangePIIDetected)

	var out bytes.Buffer
	writeArtifactPaths(&out, dir, job.Result)
	assert.Contains(t, out.String(), "DOCX written to")
}

func TestTailorLocal_StageFailureIsReturnedOnJob(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	resetRunFlags(t)

	resumePath := filepath.Join(dir, "resume.txt")
	jdPath := filepath.Join(dir, "jd.txt")
	require.NoError(t, os.WriteFile(resumePath, []byte(sampleResume), 0o644))
	require.NoError(t, os.WriteFile(jdPath, []byte(sampleJD), 0o644))
	runResume, runJob, runTenant = resumePath, jdPath, "local"

	a, err := newApp(context.Background(), cfg, quietLogger(), appOptions{
		wrapDrafter: func(pipeline.Drafter) pipeline.Drafter {
			return &stubDrafter{err: &types.ProviderUnavailableError{Provider: "openai", Cause: context.DeadlineExceeded}}
		},
	})
	require.NoError(t, err)
	defer a.Close()

	job, err := tailorLocal(context.Background(), a, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, types.StageGenerate, job.Error.Stage)
}

func TestPrintingDrafter(t *testing.T) {
	var buf bytes.Buffer
	d := &printingDrafter{next: &stubDrafter{draft: sampleDraft()}, printer: observability.NewPrinter(&buf)}

	draft, err := d.Generate(context.Background(), sampleResume, sampleJD)
	require.NoError(t, err)
	assert.NotNil(t, draft)
	assert.Contains(t, buf.String(), "TAILORED DRAFT")
}

func TestNewApp_MemoryLedgerAndMetrics(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	reg := prometheus.NewRegistry()

	a, err := newApp(context.Background(), cfg, quietLogger(), appOptions{registerer: reg})
	require.NoError(t, err)
	defer a.Close()
	assert.IsType(t, &ledger.MemoryLedger{}, a.ledger)

	// a second registration on the same registry is rejected
	_, err = newApp(context.Background(), cfg, quietLogger(), appOptions{registerer: reg})
	assert.Error(t, err)
}

func TestNewApp_GCSWithoutBucketFails(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Storage.Backend = "gcs"
	cfg.Storage.Bucket = ""

	_, err := newApp(context.Background(), cfg, quietLogger(), appOptions{})
	assert.Error(t, err)
}

func TestModelConfig(t *testing.T) {
	cfg := config.ModelConfig{
		Provider:       "anthropic",
		Model:          "claude-test",
		APIKey:         "k",
		Temperature:    0.4,
		Timeout:        time.Minute,
		RetryBaseDelay: time.Second,
	}

	mc := modelConfig(cfg)
	assert.Equal(t, llm.ProviderAnthropic, mc.Provider)
	assert.Equal(t, "claude-test", mc.Model)
	assert.Equal(t, 0, mc.Retry.MaxRetries)

	cfg.MaxRetries = 2
	mc = modelConfig(cfg)
	assert.Equal(t, 2, mc.Retry.MaxRetries)
	assert.Equal(t, time.Second, mc.Retry.BaseDelay)
	assert.Equal(t, 30*time.Second, mc.Retry.MaxDelay)
}

func TestPipelineConfig(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Pipeline.FetchRetries = 5

	pc := pipelineConfig(cfg)
	assert.Equal(t, cfg.Storage.OutputPrefix, pc.OutputPrefix)
	assert.Equal(t, cfg.Pipeline.GenerateTimeout, pc.GenerateTimeout)
	assert.Equal(t, 5, pc.FetchRetry.MaxRetries)
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, newLimiter(config.RateLimitConfig{Enabled: false}))

	l := newLimiter(config.RateLimitConfig{Enabled: true, JobsPerHour: 10, RequestsPerMinute: 100, Exempt: []string{"10.0.0.1"}})
	require.NotNil(t, l)
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("10.0.0.1", "POST", "/jobs").Allowed)
	}
	assert.True(t, l.Allow("10.0.0.2", "POST", "/jobs").Allowed)
	assert.False(t, l.Allow("10.0.0.2", "POST", "/jobs").Allowed)
}
