// ABOUTME: End-to-end mirror run: credentials, tokens, enumeration, reconciliation
// ABOUTME: Produces one RunResult or one typed RunError and records run history
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/harperreed/mirrorsync/models"
)

// TokenExchanger turns a stored credential into an access token.
type TokenExchanger interface {
	Resolve(ctx context.Context, cred *models.StoredCredential) (*oauth2.Token, error)
}

// RunRecorder persists run history. Recorder failures never fail a run.
type RunRecorder interface {
	RunStarted(ctx context.Context, run models.RunRecord) error
	RunFinished(ctx context.Context, run models.RunRecord) error
}

// Job describes one collection type to the runner.
type Job[R any] struct {
	Collection string
	// Open binds the collection to an authorized client.
	Open      func(ctx context.Context, client *http.Client) (RemoteCollection[R], error)
	Limits    Limits[R]
	Key       KeyFunc[R]
	IndexKeys IndexFunc[R]
	DryRun    bool
	// CreateCap lowers MaxCreatesPerRun when positive.
	CreateCap int
}

// CalendarJob mirrors calendar events into the destination's primary calendar.
func CalendarJob(opts CalendarOptions) Job[Event] {
	return Job[Event]{
		Collection: models.CollectionCalendar,
		Open: func(ctx context.Context, client *http.Client) (RemoteCollection[Event], error) {
			return NewCalendarCollection(ctx, client, opts)
		},
		Limits: CalendarLimits(),
		Key:    EventKey,
	}
}

// ContactsJob mirrors contacts keyed by their first email address.
func ContactsJob(opts PeopleOptions) Job[Contact] {
	return Job[Contact]{
		Collection: models.CollectionContacts,
		Open: func(ctx context.Context, client *http.Client) (RemoteCollection[Contact], error) {
			return NewPeopleCollection(ctx, client, opts)
		},
		Limits:    ContactLimits(),
		Key:       ContactKey,
		IndexKeys: ContactIndexKeys,
	}
}

// Runner holds what every run shares. It keeps no per-run state.
type Runner struct {
	tokens   TokenExchanger
	store    CredentialStore
	recorder RunRecorder
	client   ClientOptions
	logger   *slog.Logger
	now      func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRecorder records every run.
func WithRecorder(recorder RunRecorder) RunnerOption {
	return func(r *Runner) {
		r.recorder = recorder
	}
}

// WithClientOptions sets rate limit, timeout and base transport for gateway calls.
func WithClientOptions(opts ClientOptions) RunnerOption {
	return func(r *Runner) {
		r.client = opts
	}
}

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a runner reading credentials from store.
func NewRunner(tokens TokenExchanger, store CredentialStore, opts ...RunnerOption) *Runner {
	r := &Runner{
		tokens: tokens,
		store:  store,
		client: ClientOptions{RequestsPerSecond: DefaultRequestsPerSecond},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRunID returns a sortable run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// Execute performs one run of job. On error no result is returned and
// nothing is reported as succeeded, although creates already issued stand.
func Execute[R any](ctx context.Context, r *Runner, job Job[R]) (*models.RunResult, error) {
	run := models.RunRecord{
		ID:         NewRunID(),
		Collection: job.Collection,
		DryRun:     job.DryRun,
		StartedAt:  r.now(),
	}
	logger := r.logger.With("run_id", run.ID, "collection", job.Collection)

	if r.recorder != nil {
		if err := r.recorder.RunStarted(ctx, run); err != nil {
			logger.Warn("failed to record run start", "error", err)
		}
	}

	result, err := execute(ctx, r, job, logger)

	run.FinishedAt = r.now()
	if err != nil {
		run.Status = models.StatusError
		var runErr *RunError
		if errors.As(err, &runErr) {
			run.ErrorStage = string(runErr.Stage)
		}
		run.ErrorMessage = err.Error()
		logger.Error("sync run failed", "error", err, "duration", run.Duration())
	} else {
		result.RunID = run.ID
		result.Collection = job.Collection
		run.Status = result.Status
		run.Created = result.Created
		run.Skipped = result.Skipped
		run.SourceCount = result.SourceCount
		run.DestCount = result.DestinationCount
		run.Unevaluated = result.Unevaluated
		logger.Info("sync run completed",
			"created", result.Created,
			"skipped", result.Skipped,
			"source_count", result.SourceCount,
			"destination_count", result.DestinationCount,
			"unevaluated", result.Unevaluated,
			"dry_run", result.DryRun,
			"duration", run.Duration())
	}

	if r.recorder != nil {
		// The run outcome is recorded even if the caller's context is gone.
		if recErr := r.recorder.RunFinished(context.WithoutCancel(ctx), run); recErr != nil {
			logger.Warn("failed to record run result", "error", recErr)
		}
	}

	if err != nil {
		return nil, err
	}
	return result, nil
}

func execute[R any](ctx context.Context, r *Runner, job Job[R], logger *slog.Logger) (*models.RunResult, error) {
	if job.Open == nil || job.Key == nil {
		return nil, configError(fmt.Sprintf("collection %q is not configured", job.Collection))
	}
	if r.tokens == nil || r.store == nil {
		return nil, configError("runner is missing a token exchanger or credential store")
	}

	srcCred, err := loadCredential(ctx, r.store, models.RoleSource)
	if err != nil {
		return nil, err
	}
	dstCred, err := loadCredential(ctx, r.store, models.RoleDestination)
	if err != nil {
		return nil, err
	}

	var srcToken, dstToken *oauth2.Token
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := r.tokens.Resolve(gctx, srcCred)
		srcToken = t
		return err
	})
	g.Go(func() error {
		t, err := r.tokens.Resolve(gctx, dstCred)
		dstToken = t
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Debug("access tokens resolved")

	src, err := job.Open(ctx, NewAPIClient(srcToken, r.client))
	if err != nil {
		return nil, fetchError("failed to open source collection", err)
	}
	dst, err := job.Open(ctx, NewAPIClient(dstToken, r.client))
	if err != nil {
		return nil, fetchError("failed to open destination collection", err)
	}

	var source, destination []R
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := Collect(gctx, src, job.Limits, logger.With("role", models.RoleSource))
		source = records
		return err
	})
	g.Go(func() error {
		records, err := Collect(gctx, dst, job.Limits, logger.With("role", models.RoleDestination))
		destination = records
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Debug("collections enumerated", "source_count", len(source), "destination_count", len(destination))

	opts := []ReconcilerOption[R]{
		WithDryRun[R](job.DryRun),
		WithReconcilerLogger[R](logger),
	}
	if job.IndexKeys != nil {
		opts = append(opts, WithIndexKeys(job.IndexKeys))
	}
	if job.CreateCap > 0 {
		opts = append(opts, WithCreateCap[R](job.CreateCap))
	}

	result := NewReconciler(job.Key, dst.Create, opts...).Reconcile(ctx, source, destination)
	return &result, nil
}

// loadCredential maps store failures onto the run error taxonomy.
func loadCredential(ctx context.Context, store CredentialStore, role models.Role) (*models.StoredCredential, error) {
	cred, err := store.Get(ctx, role)
	switch {
	case errors.Is(err, models.ErrCredentialNotFound):
		return nil, inputError(ErrMissingCredential, "Missing refresh tokens", err)
	case errors.Is(err, models.ErrCredentialInvalid):
		return nil, inputError(ErrInvalidCredential, fmt.Sprintf("Invalid %s credential", role), err)
	case err != nil:
		return nil, &RunError{Stage: StageConfig, Kind: ErrMisconfigured, Message: "failed to load credentials", Detail: err.Error(), Err: err}
	}
	if cred == nil || cred.RefreshToken == "" {
		return nil, inputError(ErrMissingCredential, "Missing refresh tokens", nil)
	}
	return cred, nil
}
