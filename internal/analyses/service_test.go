package analyses

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"paperal-backend/internal/llm"
	"paperal-backend/internal/papers"
	"paperal-backend/internal/queue"
	localstore "paperal-backend/internal/shared/storage/object/local"
)

type fakeLLM struct {
	calls  int
	output string
	err    error
	lastIn llm.AnalyzeInput
}

func (f *fakeLLM) Analyze(ctx context.Context, input llm.AnalyzeInput) (string, error) {
	_ = ctx
	f.calls++
	f.lastIn = input
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

type captureQueue struct {
	sent []queue.Message
	err  error
}

func (q *captureQueue) Send(ctx context.Context, msg queue.Message) error {
	_ = ctx
	if q.err != nil {
		return q.err
	}
	q.sent = append(q.sent, msg)
	return nil
}

type testEnv struct {
	svc      *Service
	papers   *papers.Service
	queue    *captureQueue
	llm      *fakeLLM
	paperID  string
	userID   string
	analysis Analysis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := localstore.New(t.TempDir())
	paperRepo := papers.NewMemoryRepo()
	paperSvc := &papers.Service{Store: store, Repo: paperRepo}

	text := "Low-Rank Adaptation of Protein Language Models\n\nAuthors: Kim Park, Lee Han\n\nWe fine-tune protein language models with low-rank updates."
	paper, err := paperSvc.Upload(context.Background(), "guest:u1", "paper.txt", strings.NewReader(text))
	if err != nil {
		t.Fatalf("upload paper: %v", err)
	}

	q := &captureQueue{}
	client := &fakeLLM{output: "Strong licensing potential in drug discovery tooling."}
	svc := &Service{
		Repo:    NewMemoryRepo(),
		Papers:  paperRepo,
		Store:   store,
		LLM:     client,
		Queue:   q,
		Model:   "anthropic.claude-3-sonnet-20240229-v1:0",
		Version: "claude-3-sonnet:v1",
	}

	return &testEnv{
		svc:     svc,
		papers:  paperSvc,
		queue:   q,
		llm:     client,
		paperID: paper.ID,
		userID:  "guest:u1",
	}
}

func (e *testEnv) request(t *testing.T) Analysis {
	t.Helper()
	analysis, err := e.svc.Request(context.Background(), e.paperID, e.userID, "standard", nil)
	if err != nil {
		t.Fatalf("request analysis: %v", err)
	}
	e.analysis = analysis
	return analysis
}

func TestRequestCreatesPendingAndEnqueues(t *testing.T) {
	env := newTestEnv(t)
	analysis := env.request(t)

	if analysis.Status != StatusPending {
		t.Errorf("status = %q, want pending", analysis.Status)
	}
	if len(env.queue.sent) != 1 {
		t.Fatalf("expected one queued message, got %d", len(env.queue.sent))
	}
	msg := env.queue.sent[0]
	if msg.Kind != queue.KindAnalysis || msg.AnalysisID != analysis.ID {
		t.Errorf("queued message = %+v", msg)
	}
}

func TestListFiltersByPaper(t *testing.T) {
	env := newTestEnv(t)
	first := env.request(t)

	other, err := env.papers.Upload(context.Background(), env.userID, "second.txt",
		strings.NewReader("Sparse Mixture Routing for Retrieval\n\nAuthors: Dana Wu\n\nWe study sparse routing."))
	if err != nil {
		t.Fatalf("upload second paper: %v", err)
	}
	second, err := env.svc.Request(context.Background(), other.ID, env.userID, "standard", nil)
	if err != nil {
		t.Fatalf("request second analysis: %v", err)
	}

	all, err := env.svc.List(context.Background(), env.userID, "", "", 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 analyses, got %d", len(all))
	}

	filtered, err := env.svc.List(context.Background(), env.userID, "", other.ID, 20, 0)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != second.ID {
		t.Fatalf("filtered = %+v", filtered)
	}
	if filtered[0].ID == first.ID {
		t.Fatalf("filter returned the wrong analysis")
	}
}

func TestRequestUnknownPaper(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.Request(context.Background(), "missing-paper", env.userID, "standard", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProcessCompletesAnalysis(t *testing.T) {
	env := newTestEnv(t)
	analysis := env.request(t)

	if err := env.svc.Process(context.Background(), analysis.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	done, err := env.svc.Repo.GetByID(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", done.Status)
	}
	if raw, _ := done.Result["raw_analysis"].(string); raw != env.llm.output {
		t.Errorf("raw_analysis = %q", raw)
	}
	if done.StartedAt == nil || done.CompletedAt == nil || done.ProcessingTime == nil {
		t.Errorf("expected timing fields, got %+v", done)
	}
	if env.llm.lastIn.Title != "Low-Rank Adaptation of Protein Language Models" {
		t.Errorf("llm title = %q", env.llm.lastIn.Title)
	}
	if env.llm.lastIn.Excerpt == "" {
		t.Errorf("expected excerpt from extracted text")
	}
}

func TestProcessRedeliveryIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	analysis := env.request(t)

	if err := env.svc.Process(context.Background(), analysis.ID); err != nil {
		t.Fatalf("first process: %v", err)
	}
	if err := env.svc.Process(context.Background(), analysis.ID); err != nil {
		t.Fatalf("redelivery must be a no-op, got %v", err)
	}
	if env.llm.calls != 1 {
		t.Errorf("llm calls = %d, want 1", env.llm.calls)
	}

	done, _ := env.svc.Repo.GetByID(context.Background(), analysis.ID)
	if done.Status != StatusCompleted {
		t.Errorf("status = %q after redelivery", done.Status)
	}
}

func TestProcessLLMFailureMarksFailed(t *testing.T) {
	env := newTestEnv(t)
	env.llm.err = errors.New("model timeout")
	analysis := env.request(t)

	if err := env.svc.Process(context.Background(), analysis.ID); err == nil {
		t.Fatalf("expected process error")
	}

	failed, _ := env.svc.Repo.GetByID(context.Background(), analysis.ID)
	if failed.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", failed.Status)
	}
	if failed.ErrorMessage == "" {
		t.Errorf("expected error message")
	}

	// Failed is absorbing, redelivery must not resurrect the analysis.
	env.llm.err = nil
	if err := env.svc.Process(context.Background(), analysis.ID); err != nil {
		t.Fatalf("redelivery of failed analysis: %v", err)
	}
	still, _ := env.svc.Repo.GetByID(context.Background(), analysis.ID)
	if still.Status != StatusFailed {
		t.Errorf("status = %q, want failed to stick", still.Status)
	}
	if env.llm.calls != 1 {
		t.Errorf("llm calls = %d, want 1", env.llm.calls)
	}
}

func TestEnqueueFailureFallsBackInline(t *testing.T) {
	env := newTestEnv(t)
	env.queue.err = errors.New("sqs unavailable")

	analysis, err := env.svc.Request(context.Background(), env.paperID, env.userID, "standard", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	// Inline fallback runs in a goroutine; poll until it lands in a
	// terminal state.
	var done Analysis
	for i := 0; i < 500; i++ {
		a, err := env.svc.Repo.GetByID(context.Background(), analysis.ID)
		if err == nil && a.IsTerminal() {
			done = a
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if done.Status != StatusCompleted {
		t.Errorf("status = %q, want completed via inline fallback", done.Status)
	}
}

func TestGetResultsNotReady(t *testing.T) {
	env := newTestEnv(t)
	analysis := env.request(t)

	got, err := env.svc.GetResults(context.Background(), analysis.ID, env.userID)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("status = %q", got.Status)
	}

	if err := env.svc.Process(context.Background(), analysis.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	got, err = env.svc.GetResults(context.Background(), analysis.ID, env.userID)
	if err != nil {
		t.Fatalf("results after completion: %v", err)
	}
	if got.Result == nil {
		t.Errorf("expected result payload")
	}
}

func TestGetRejectsOtherUser(t *testing.T) {
	env := newTestEnv(t)
	analysis := env.request(t)

	if _, err := env.svc.Get(context.Background(), analysis.ID, "guest:u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
}

func TestAttachFeedback(t *testing.T) {
	env := newTestEnv(t)
	analysis := env.request(t)

	feedback := map[string]any{"rating": 5, "comment": "useful"}
	if err := env.svc.AttachFeedback(context.Background(), analysis.ID, env.userID, feedback); err != nil {
		t.Fatalf("attach feedback: %v", err)
	}

	got, _ := env.svc.Get(context.Background(), analysis.ID, env.userID)
	if got.Feedback == nil || got.Feedback["comment"] != "useful" {
		t.Errorf("feedback = %v", got.Feedback)
	}

	if err := env.svc.AttachFeedback(context.Background(), analysis.ID, "guest:u2", feedback); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
}
