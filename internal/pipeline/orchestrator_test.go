package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-tailor/internal/ledger"
	"github.com/jonathan/resume-tailor/internal/parsing"
	"github.com/jonathan/resume-tailor/internal/rendering"
	"github.com/jonathan/resume-tailor/internal/retry"
	"github.com/jonathan/resume-tailor/internal/storage"
	"github.com/jonathan/resume-tailor/internal/types"
	"github.com/jonathan/resume-tailor/internal/validation"
)

const (
	testTenant = "acme"
	testJobID  = "job-1"
	resumeKey  = "acme/approved/r1-resume.txt"
	jdKey      = "acme/job-descriptions/j1-jd.txt"

	testResume = "Jane Doe\nSenior Engineer, Acme Corp\n- Built payment APIs in Go\nBS Computer Science, State University"
	testJD     = "Go engineer with payments experience. Contact hiring@acme.example for details."
)

// MockDrafter returns a fixed draft, or runs OnCall when set
type MockDrafter struct {
	Draft  *types.Draft
	Err    error
	OnCall func(ctx context.Context) error
	calls  atomic.Int32
}

func (m *MockDrafter) Generate(ctx context.Context, resume, jobDescription string) (*types.Draft, error) {
	m.calls.Add(1)
	if m.OnCall != nil {
		if err := m.OnCall(ctx); err != nil {
			return nil, err
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Draft, nil
}

// SpyScreener records calls and returns scripted findings
type SpyScreener struct {
	Entities []types.PIIEntity
	Err      error
	calls    atomic.Int32
}

func (s *SpyScreener) Screen(ctx context.Context, text string) ([]types.PIIEntity, error) {
	s.calls.Add(1)
	return s.Entities, s.Err
}

type panickingRenderer struct{}

func (panickingRenderer) Render(context.Context, types.Sections, []byte) (*rendering.Artifacts, error) {
	panic(errors.New("converter crashed"))
}

type failingRenderer struct{ err error }

func (r failingRenderer) Render(context.Context, types.Sections, []byte) (*rendering.Artifacts, error) {
	return nil, r.err
}

func goodDraft() *types.Draft {
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

type testEnv struct {
	ledger   *ledger.MemoryLedger
	blobs    *storage.FileStore
	drafter  *MockDrafter
	screener *SpyScreener
	metrics  *Metrics
	events   []ProgressEvent
	mu       sync.Mutex
	cfg      Config
	renderer Renderer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	blobs, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, blobs.Put(ctx, resumeKey, []byte(testResume), storage.ContentTypeText))
	require.NoError(t, blobs.Put(ctx, jdKey, []byte(testJD), storage.ContentTypeText))

	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.FetchRetry = retry.None()
	return &testEnv{
		ledger:   ledger.NewMemoryLedger(),
		blobs:    blobs,
		drafter:  &MockDrafter{Draft: goodDraft()},
		screener: &SpyScreener{},
		metrics:  metrics,
		cfg:      cfg,
		renderer: rendering.NewRenderer(nil),
	}
}

func (e *testEnv) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	o, err := NewOrchestrator(e.cfg, Deps{
		Ledger:   e.ledger,
		Blobs:    e.blobs,
		Parser:   parsing.NewDocumentParser(),
		Screener: e.screener,
		Drafter:  e.drafter,
		Renderer: e.renderer,
		Log:      log,
		Metrics:  e.metrics,
		OnProgress: func(ev ProgressEvent) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.events = append(e.events, ev)
		},
	})
	require.NoError(t, err)
	return o
}

func (e *testEnv) queue(t *testing.T, runComprehend bool) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, e.ledger.Put(context.Background(), &types.Job{
		TenantID: testTenant,
		JobID:    testJobID,
		Status:   types.StatusQueued,
		Inputs: types.JobInputs{
			ResumeRef:         resumeKey,
			JobDescriptionRef: jdKey,
			Options:           types.JobOptions{RunComprehend: runComprehend},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, false))
}

func (e *testEnv) stored(t *testing.T) *types.Job {
	t.Helper()
	job, err := e.ledger.Get(context.Background(), testTenant, testJobID)
	require.NoError(t, err)
	require.NoError(t, job.CheckTerminal())
	return job
}

func TestNewOrchestrator_RequiresDeps(t *testing.T) {
	_, err := NewOrchestrator(DefaultConfig(), Deps{})
	assert.Error(t, err)
}

func TestExecute_CompletesWithoutScreening(t *testing.T) {
	env := newTestEnv(t)
	env.queue(t, false)

	job, err := env.orchestrator(t).Execute(context.Background(), testTenant, testJobID)
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, job.Status)
	assert.Equal(t, types.StagePersist, job.LastStage)
	require.NotNil(t, job.Result)
	assert.Nil(t, job.Error)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, "acme/generated/job-1.docx", job.Result.DocxRef)
	assert.Equal(t, "acme/generated/job-1.pdf", job.Result.PdfRef)
	require.NotNil(t, job.Result.ValidationReport)

	assert.Equal(t, int32(0), env.screener.calls.Load(), "screener must not run when runComprehend is false")
	assert.Equal(t, int32(1), env.drafter.calls.Load())

	for _, key := range []string{job.Result.DocxRef, job.Result.PdfRef} {
		ok, err := env.blobs.Exists(context.Background(), key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}
	docx, err := env.blobs.Get(context.Background(), job.Result.DocxRef)
	require.NoError(t, err)
	assert.True(t, rendering.IsDOCX(docx))

	stored := env.stored(t)
	assert.Equal(t, job.Result.DocxRef, stored.Result.DocxRef)

	var stages []types.Stage
	for _, ev := range env.events {
		if ev.Event == EventStageStarted {
			stages = append(stages, ev.Stage)
		}
	}
	assert.Equal(t, []types.Stage{types.StageParse, types.StageGenerate, types.StageValidate, types.StageRender}, stages)
	assert.Equal(t, EventJobCompleted, env.events[len(env.events)-1].Event)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.jobOutcomes.WithLabelValues("COMPLETED")))
}

func TestExecute_ScreensJobDescription(t *testing.T) {
	env := newTestEnv(t)
	env.screener.Entities = []types.PIIEntity{{Type: "EMAIL", Text: "hiring@acme.example", Offset: 50}}
	env.queue(t, true)

	job, err := env.orchestrator(t).Execute(context.Background(), testTenant, testJobID)
	require.NoError(t, err)

	assert.Equal(t, int32(1), env.screener.calls.Load())
	var found *types.ChangeLogEntry
	for i, entry := range job.Result.ValidationReport.ChangeLog {
		if entry.Change == ChangePIIDetected {
			found = &job.Result.ValidationReport.ChangeLog[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "EMAIL=1", found.Details)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.piiEntities.WithLabelValues("EMAIL")))
}

func TestExecute_ScreenerFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	env.screener.Err = errors.New("screening service down")
	env.queue(t, true)

	job, err := env.orchestrator(t).Execute(context.Background(), testTenant, testJobID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, job.Status)
	for _, entry := range job.Result.ValidationReport.ChangeLog {
		assert.NotEqual(t, ChangePIIDetected, entry.Change)
	}
}

func TestExecute_GenerateTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.GenerateTimeout = 20 * time.Millisecond
	env.drafter.OnCall = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	env.queue(t, false)

	job, err := env.orchestrator(t).Execute(context.Background(), testTenant, testJobID)

	var failure *types.StageFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, types.StageGenerate, failure.Stage)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NotNil(t, job)
	assert.Equal(t, types.StatusFailed, job.Status)

	stored := env.stored(t)
	assert.Equal(t, types.StatusFailed, stored.Status)
	assert.Equal(t, types.StageParse, stored.LastStage)
	require.NotNil(t, stored.Error)
	assert.Equal(t, types.StageGenerate, stored.Error.Stage)
	assert.Contains(t, stored.Error.Message, "deadline exceeded")
	assert.Nil(t, stored.Result)
}

func TestExecute_CallerCancellationStillRecordsFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	env.drafter.OnCall = func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	}
	env.queue(t, false)

	_, err := env.orchestrator(t).Execute(ctx, testTenant, testJobID)
	assert.ErrorIs(t, err, context.Canceled)

	stored := env.stored(t)
	assert.Equal(t, types.StatusFailed, stored.Status)
	assert.Equal(t, types.StageGenerate, stored.Error.Stage)
}

func TestExecute_StageFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(env *testEnv)
		stage     types.Stage
		lastStage types.Stage
		check     func(t *testing.T, err error)
	}{
		{
			name: "unparseable resume fails parse",
			setup: func(env *testEnv) {
				require.NoError(t, env.blobs.Put(context.Background(), resumeKey, []byte("  \n\t\n"), storage.ContentTypeText))
			},
			stage: types.StageParse,
			check: func(t *testing.T, err error) {
				var parseErr *parsing.ParseError
				assert.ErrorAs(t, err, &parseErr)
			},
		},
		{
			name: "provider unavailable fails generate",
			setup: func(env *testEnv) {
				env.drafter.Err = &types.ProviderUnavailableError{Provider: "gemini", Cause: errors.New("connection refused")}
			},
			stage:     types.StageGenerate,
			lastStage: types.StageParse,
			check: func(t *testing.T, err error) {
				var unavailable *types.ProviderUnavailableError
				assert.ErrorAs(t, err, &unavailable)
			},
		},
		{
			name: "draft without sections fails validate",
			setup: func(env *testEnv) {
				env.drafter.Draft = &types.Draft{}
			},
			stage:     types.StageValidate,
			lastStage: types.StageGenerate,
			check: func(t *testing.T, err error) {
				var vErr *validation.Error
				assert.ErrorAs(t, err, &vErr)
			},
		},
		{
			name: "renderer error fails render",
			setup: func(env *testEnv) {
				env.renderer = failingRenderer{err: errors.New("converter crashed")}
			},
			stage:     types.StageRender,
			lastStage: types.StageValidate,
		},
		{
			name: "panicking drafter fails generate",
			setup: func(env *testEnv) {
				env.drafter.OnCall = func(context.Context) error { panic("index out of range") }
			},
			stage:     types.StageGenerate,
			lastStage: types.StageParse,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "panic: index out of range")
			},
		},
		{
			name: "panicking renderer fails render",
			setup: func(env *testEnv) {
				env.renderer = panickingRenderer{}
			},
			stage:     types.StageRender,
			lastStage: types.StageValidate,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "panic: converter crashed")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			tt.setup(env)
			env.queue(t, false)

			_, err := env.orchestrator(t).Execute(context.Background(), testTenant, testJobID)
			var failure *types.StageFailure
			require.ErrorAs(t, err, &failure)
			assert.Equal(t, tt.stage, failure.Stage)
			if tt.check != nil {
				tt.check(t, err)
			}

			stored := env.stored(t)
			assert.Equal(t, types.StatusFailed, stored.Status)
			assert.Equal(t, tt.stage, stored.Error.Stage)
			assert.Equal(t, tt.lastStage, stored.LastStage)
			assert.Equal(t, failure.Cause.Error(), stored.Error.Message)
		})
	}
}

func TestExecute_MissingResumeIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	require.NoError(t, env.ledger.Put(context.Background(), &types.Job{
		TenantID: testTenant, JobID: testJobID, Status: types.StatusQueued,
		Inputs:    types.JobInputs{ResumeRef: "acme/approved/missing.txt", JobDescriptionRef: jdKey},
		CreatedAt: now, UpdatedAt: now,
	}, false))

	_, err := env.orchestrator(t).Execute(context.Background(), testTenant, testJobID)
	assert.True(t, types.IsNotFound(err))
}

func TestExecute_RequiresQueuedJob(t *testing.T) {
	env := newTestEnv(t)
	env.queue(t, false)
	o := env.orchestrator(t)

	_, err := o.Execute(context.Background(), testTenant, testJobID)
	require.NoError(t, err)

	_, err = o.Execute(context.Background(), testTenant, testJobID)
	assert.True(t, types.IsStatusConflict(err))
	assert.Equal(t, int32(1), env.drafter.calls.Load())

	_, err = o.Execute(context.Background(), testTenant, "unknown")
	assert.True(t, types.IsNotFound(err))
}

func TestExecute_ConcurrentClaimsRunOnce(t *testing.T) {
	env := newTestEnv(t)
	env.queue(t, false)
	o := env.orchestrator(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Execute(context.Background(), testTenant, testJobID)
			switch {
			case err == nil:
				succeeded.Add(1)
			case types.IsStatusConflict(err):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(workers-1), conflicts.Load())
	assert.Equal(t, int32(1), env.drafter.calls.Load())
	assert.Equal(t, types.StatusCompleted, env.stored(t).Status)
}

func TestPersist_IsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.queue(t, false)
	o := env.orchestrator(t)

	done, err := o.Execute(context.Background(), testTenant, testJobID)
	require.NoError(t, err)

	again, err := o.Persist(context.Background(), testTenant, testJobID, *done.Result)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, again.Status)
	assert.Equal(t, done.CompletedAt, again.CompletedAt)

	other := *done.Result
	other.DocxRef = "acme/generated/other.docx"
	_, err = o.Persist(context.Background(), testTenant, testJobID, other)
	assert.True(t, types.IsStatusConflict(err))
}

func TestFormatSummary(t *testing.T) {
	assert.Equal(t, "EMAIL=2, PHONE=1", formatSummary(map[string]int{"PHONE": 1, "EMAIL": 2}))
	assert.Empty(t, formatSummary(nil))
}
