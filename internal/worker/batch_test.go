package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/antihoax/internal/client"
	"github.com/ppiankov/antihoax/internal/dataset"
	"github.com/ppiankov/antihoax/internal/heuristic"
	"github.com/ppiankov/antihoax/internal/model"
	"github.com/ppiankov/antihoax/internal/verify"
)

// MockVerifier answers every request with a fixed verdict
type MockVerifier struct {
	verdict model.Verdict
	err     error
	delay   time.Duration
	calls   int32
}

func (m *MockVerifier) Verify(ctx context.Context, req verify.Request) (*model.Envelope, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	env := model.Wrap(m.verdict, http.StatusOK)
	return &env, nil
}

func heuristicVerdict(flag model.HoaxFlag) model.Verdict {
	return model.NewHeuristicVerdict(model.HeuristicVerdictFields{IsHoax: flag, Confidence: 0.6})
}

func TestBatchRunner_LocalDataset(t *testing.T) {
	svc := verify.NewService(nil, heuristic.NewClassifier(), verify.Options{})
	runner := NewBatchRunner(&LocalVerifier{Service: svc}, 3, nil)

	cases := dataset.Default().Cases()
	summary := runner.Run(context.Background(), cases)

	if summary.Total != len(cases) {
		t.Errorf("expected %d total, got %d", len(cases), summary.Total)
	}
	if summary.Errors != 0 {
		t.Errorf("expected no errors, got %d", summary.Errors)
	}
	if summary.Passed != len(cases) {
		for _, r := range summary.Results {
			if !r.Passed {
				t.Logf("%s: expected %s, got %s", r.Case.ID, r.Expected, r.Got)
			}
		}
		t.Errorf("expected the heuristic to pass every sample, got %d/%d", summary.Passed, summary.Total)
	}
	if !summary.Succeeded(DefaultMinAccuracy) {
		t.Error("expected run to succeed")
	}

	for i, r := range summary.Results {
		if r.Index != i || r.Case.ID != cases[i].ID {
			t.Errorf("result %d out of order: %s", i, r.Case.ID)
		}
	}
}

func TestBatchRunner_Acceptance(t *testing.T) {
	cases := []dataset.Case{
		{Sample: dataset.Sample{ID: "h1", Text: "x", ExpectedStatus: "hoaks"}, Group: dataset.GroupHoax},
		{Sample: dataset.Sample{ID: "f1", Text: "x", ExpectedStatus: "fakta"}, Group: dataset.GroupFact},
		{Sample: dataset.Sample{ID: "p1", Text: "x", ExpectedStatus: "perlu_verifikasi"}, Group: dataset.GroupNeedsReview},
	}

	// needs_review satisfies hoax and needs_review, not fact
	runner := NewBatchRunner(&MockVerifier{verdict: heuristicVerdict(model.HoaxUnknown)}, 2, nil)
	summary := runner.Run(context.Background(), cases)

	if summary.Passed != 2 || summary.Failed != 1 {
		t.Errorf("expected 2 passed and 1 failed, got %d/%d", summary.Passed, summary.Failed)
	}
	if summary.Results[1].Passed {
		t.Error("fact case must fail on needs_review")
	}
	if summary.Succeeded(DefaultMinAccuracy) {
		t.Errorf("accuracy %.2f should be below %.2f", summary.Accuracy(), DefaultMinAccuracy)
	}
}

func TestBatchRunner_FailedEnvelope(t *testing.T) {
	v := model.NewErrorVerdict(model.ProviderAI, model.CategoryError, "Analysis could not be performed.", "boom", nil)
	runner := NewBatchRunner(&MockVerifier{verdict: v}, 1, nil)

	cases := []dataset.Case{{Sample: dataset.Sample{ID: "p1", Text: "x", ExpectedStatus: "perlu_verifikasi"}}}
	summary := runner.Run(context.Background(), cases)

	if summary.Passed != 0 {
		t.Error("a failed envelope must not pass even when the status matches")
	}
}

func TestBatchRunner_MalformedAndErrors(t *testing.T) {
	cases := []dataset.Case{
		{Sample: dataset.Sample{ID: "", Text: "x", ExpectedStatus: "hoaks"}},
		{Sample: dataset.Sample{ID: "u1", Text: "x", ExpectedStatus: "maybe"}},
		{Sample: dataset.Sample{ID: "e1", Text: "x", ExpectedStatus: "fakta"}},
	}

	mock := &MockVerifier{err: errors.New("connection refused")}
	summary := NewBatchRunner(mock, 2, nil).Run(context.Background(), cases)

	if summary.Errors != 3 || summary.Failed != 3 {
		t.Errorf("expected 3 errors, got errors=%d failed=%d", summary.Errors, summary.Failed)
	}
	if atomic.LoadInt32(&mock.calls) != 1 {
		t.Errorf("only the well-formed case should reach the verifier, got %d calls", mock.calls)
	}
}

func TestBatchRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	cases := make([]dataset.Case, 20)
	for i := range cases {
		cases[i] = dataset.Case{Sample: dataset.Sample{ID: "c", Text: "x", ExpectedStatus: "hoaks"}}
	}

	mock := &MockVerifier{verdict: heuristicVerdict(model.HoaxTrue), delay: 50 * time.Millisecond}
	summary := NewBatchRunner(mock, 2, nil).Run(ctx, cases)

	if len(summary.Results) != len(cases) {
		t.Fatalf("expected a result per case, got %d", len(summary.Results))
	}
	if summary.Errors == 0 {
		t.Error("expected cancelled cases to be reported as errors")
	}
	if summary.Passed+summary.Failed != summary.Total {
		t.Errorf("inconsistent summary %+v", summary)
	}
}

func TestBatchRunner_MaxErrors(t *testing.T) {
	cases := make([]dataset.Case, 10)
	for i := range cases {
		cases[i] = dataset.Case{Sample: dataset.Sample{ID: "c", Text: "x", ExpectedStatus: "hoaks"}}
	}

	mock := &MockVerifier{err: errors.New("connection refused"), delay: 10 * time.Millisecond}
	summary := NewBatchRunner(mock, 1, nil).WithMaxErrors(2).Run(context.Background(), cases)

	if calls := atomic.LoadInt32(&mock.calls); calls >= int32(len(cases)) {
		t.Errorf("expected the run to stop early, got %d calls", calls)
	}
	if len(summary.Results) != len(cases) || summary.Errors != len(cases) {
		t.Errorf("expected every case reported as an error, got %+v", summary)
	}
	if summary.Succeeded(DefaultMinAccuracy) {
		t.Error("aborted run must not succeed")
	}
}

func TestBatchRunner_Empty(t *testing.T) {
	summary := NewBatchRunner(&MockVerifier{}, 2, nil).Run(context.Background(), nil)
	if summary.Total != 0 || !summary.Succeeded(DefaultMinAccuracy) {
		t.Errorf("unexpected empty summary %+v", summary)
	}
}

func TestRemoteVerifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/verify" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req verify.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Type != verify.TypeText {
			t.Errorf("expected type text, got %q", req.Type)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.Wrap(heuristicVerdict(model.HoaxTrue), http.StatusOK))
	}))
	defer server.Close()

	c, err := client.New(server.URL)
	if err != nil {
		t.Fatal(err)
	}

	cases := []dataset.Case{{Sample: dataset.Sample{ID: "h1", Text: "x", ExpectedStatus: "hoaks"}, Group: dataset.GroupHoax}}
	summary := NewBatchRunner(&RemoteVerifier{Client: c}, 1, nil).Run(context.Background(), cases)

	if summary.Passed != 1 {
		t.Errorf("expected remote case to pass, got %+v", summary.Results[0])
	}
}
