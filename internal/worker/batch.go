package worker

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/antihoax/internal/client"
	"github.com/ppiankov/antihoax/internal/dataset"
	"github.com/ppiankov/antihoax/internal/model"
	"github.com/ppiankov/antihoax/internal/verify"
)

// DefaultMinAccuracy is the share of cases a run must pass
const DefaultMinAccuracy = 0.7

// Verifier evaluates one request
type Verifier interface {
	Verify(ctx context.Context, req verify.Request) (*model.Envelope, error)
}

// LocalVerifier runs requests through an in-process service
type LocalVerifier struct {
	Service *verify.Service
}

// Verify evaluates the request in-process
func (l *LocalVerifier) Verify(ctx context.Context, req verify.Request) (*model.Envelope, error) {
	env := l.Service.Evaluate(ctx, req)
	return &env, nil
}

// RemoteVerifier posts requests to a running server
type RemoteVerifier struct {
	Client *client.Client
}

// Verify calls POST /api/verify
func (r *RemoteVerifier) Verify(ctx context.Context, req verify.Request) (*model.Envelope, error) {
	env, _, err := r.Client.Verify(ctx, req)
	return env, err
}

// CaseJob evaluates one dataset case
type CaseJob struct {
	Index    int
	Case     dataset.Case
	Verifier Verifier
}

// Run executes the job
func (j *CaseJob) Run(ctx context.Context) Result {
	start := time.Now()
	res := &CaseResult{Index: j.Index, Case: j.Case}
	defer func() { res.Elapsed = time.Since(start) }()

	if j.Case.ID == "" || j.Case.Text == "" || j.Case.ExpectedStatus == "" {
		res.Error = eris.New("malformed test case: id, text and expectedStatus are required")
		return res
	}

	expected, err := dataset.ParseStatus(j.Case.ExpectedStatus)
	if err != nil {
		res.Error = err
		return res
	}
	res.Expected = expected

	env, err := j.Verifier.Verify(ctx, verify.Request{Text: j.Case.Text, Type: verify.TypeText})
	if err != nil {
		res.Error = err
		return res
	}

	res.Envelope = env
	res.Got = env.Data.Status()
	res.Passed = env.Success && dataset.Accepts(expected, res.Got)
	return res
}

// CaseResult is the outcome of one case
type CaseResult struct {
	Index    int
	Case     dataset.Case
	Expected model.Status
	Got      model.Status
	Envelope *model.Envelope
	Passed   bool
	Error    error
	Elapsed  time.Duration
}

// Err returns the evaluation error, if any
func (r *CaseResult) Err() error {
	return r.Error
}

// Summary aggregates a batch run
type Summary struct {
	Total   int
	Passed  int
	Failed  int
	Errors  int
	Results []*CaseResult
}

// Accuracy is the share of passed cases
func (s *Summary) Accuracy() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Total)
}

// Succeeded reports whether accuracy reaches min. An empty run succeeds.
func (s *Summary) Succeeded(min float64) bool {
	return s.Total == 0 || s.Accuracy() >= min
}

// BatchRunner evaluates dataset cases concurrently
type BatchRunner struct {
	verifier    Verifier
	concurrency int
	maxErrors   int
	logger      *zap.Logger
}

// NewBatchRunner creates a runner. A nil logger disables logging.
func NewBatchRunner(verifier Verifier, concurrency int, logger *zap.Logger) *BatchRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchRunner{
		verifier:    verifier,
		concurrency: concurrency,
		logger:      logger.Named("batch"),
	}
}

// WithMaxErrors aborts a run once n cases have errored, e.g. when the
// server went away. Zero runs every case.
func (b *BatchRunner) WithMaxErrors(n int) *BatchRunner {
	b.maxErrors = n
	return b
}

// Run evaluates every case and returns results in input order
func (b *BatchRunner) Run(ctx context.Context, cases []dataset.Case) *Summary {
	summary := &Summary{Total: len(cases), Results: make([]*CaseResult, 0, len(cases))}
	if len(cases) == 0 {
		return summary
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	go func() {
		defer pool.Close()
		for i, c := range cases {
			if err := pool.Submit(&CaseJob{Index: i, Case: c, Verifier: b.verifier}); err != nil {
				return
			}
		}
	}()

	seen := make(map[int]bool, len(cases))
	errCount, aborted := 0, false
	for r := range pool.Results() {
		res := r.(*CaseResult)
		seen[res.Index] = true
		summary.Results = append(summary.Results, res)
		b.logCase(res)

		if res.Error != nil {
			errCount++
		}
		if !aborted && b.maxErrors > 0 && errCount >= b.maxErrors {
			aborted = true
			b.logger.Warn("aborting run", zap.Int("errors", errCount))
			go pool.Shutdown()
		}
	}

	// Cases never run because ctx ended or the run was aborted count as errors
	for i, c := range cases {
		if !seen[i] {
			err := ctx.Err()
			switch {
			case err != nil:
			case aborted:
				err = eris.Errorf("run aborted after %d errors", errCount)
			default:
				err = eris.New("case was not evaluated")
			}
			summary.Results = append(summary.Results, &CaseResult{Index: i, Case: c, Error: err})
		}
	}

	sort.Slice(summary.Results, func(i, j int) bool {
		return summary.Results[i].Index < summary.Results[j].Index
	})

	for _, res := range summary.Results {
		switch {
		case res.Error != nil:
			summary.Errors++
			summary.Failed++
		case res.Passed:
			summary.Passed++
		default:
			summary.Failed++
		}
	}

	return summary
}

func (b *BatchRunner) logCase(res *CaseResult) {
	fields := []zap.Field{
		zap.String("id", res.Case.ID),
		zap.String("group", res.Case.Group),
		zap.Duration("elapsed", res.Elapsed),
	}
	if res.Error != nil {
		b.logger.Warn("case errored", append(fields, zap.Error(res.Error))...)
		return
	}
	b.logger.Debug("case evaluated", append(fields,
		zap.String("expected", string(res.Expected)),
		zap.String("got", string(res.Got)),
		zap.Bool("passed", res.Passed),
	)...)
}
