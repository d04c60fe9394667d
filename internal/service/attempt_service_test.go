package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vigilo/vigilo-backend/internal/apperr"
	"github.com/vigilo/vigilo-backend/internal/model"
)

const (
	testCandidateID = 1
	testOrgID       = 7
)

type attemptFixture struct {
	svc        *AttemptService
	exams      *fakeExamStore
	questions  *fakeQuestionStore
	attempts   *fakeAttemptStore
	candidates *fakeCandidateStore
	grants     *fakeGrantStore
	mappings   *fakeMappingStore
	cache      *fakeCache
	examID     uuid.UUID
}

// newAttemptFixture wires the service against fakes with one published MCQ
// exam (one question worth 10 marks, correct answer "B") and one granted
// candidate.
func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()

	f := &attemptFixture{
		exams:      newFakeExamStore(),
		questions:  newFakeQuestionStore(),
		attempts:   newFakeAttemptStore(),
		candidates: newFakeCandidateStore(),
		mappings:   newFakeMappingStore(),
		cache:      newFakeCache(),
	}
	f.grants = newFakeGrantStore(f.exams)

	now := time.Now()
	exam := f.exams.put(&model.Exam{
		OrgID:           testOrgID,
		Title:           "Networks Midterm",
		Type:            model.ExamTypeMCQ,
		DurationMinutes: 60,
		Status:          model.ExamStatusPublished,
		PublishedAt:     &now,
		CreatedAt:       now,
	})
	f.examID = exam.ID

	f.questions.questions[f.examID] = []model.Question{
		{ID: uuid.New(), ExamID: f.examID, Text: "Pick one", CorrectAnswers: []string{"B"}, Marks: 10, OrderNum: 1},
	}
	f.candidates.candidates[testCandidateID] = &model.Candidate{
		ID: testCandidateID, OrgID: testOrgID, Email: "bob@x.com", CreatedAt: now.Add(-time.Hour),
	}
	f.grants.grant(f.examID, testCandidateID)

	f.svc = NewAttemptService(
		f.exams, f.questions, f.attempts, f.candidates, f.grants, f.mappings, f.cache, zerolog.Nop(),
	)
	return f
}

func TestStartCreatesLiveAttempt(t *testing.T) {
	f := newAttemptFixture(t)

	attempt, err := f.svc.Start(context.Background(), f.examID, testCandidateID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if attempt.Status != model.AttemptStatusLive {
		t.Errorf("status = %s, want LIVE", attempt.Status)
	}
	if !attempt.IsLive {
		t.Error("attempt not flagged live")
	}
	if len(attempt.Answers) != 0 {
		t.Errorf("new attempt has %d answers, want 0", len(attempt.Answers))
	}
	if attempt.TotalMarks != 10 {
		t.Errorf("total marks = %d, want 10", attempt.TotalMarks)
	}
	if _, ok := f.cache.starts[cacheKey(f.examID.String(), testCandidateID)]; !ok {
		t.Error("attempt start not cached")
	}
	if f.cache.durations[f.examID.String()] != 60 {
		t.Error("exam duration not cached")
	}
}

func TestStartTwiceIsConflict(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, f.examID, testCandidateID); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	_, err := f.svc.Start(ctx, f.examID, testCandidateID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("second Start error = %v, want conflict", err)
	}
}

func TestStartConcurrentDuplicatesSingleWinner(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Start(ctx, f.examID, testCandidateID)
		}()
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case apperr.Is(err, apperr.KindConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("%d starts succeeded, want exactly 1", won)
	}
}

func TestStartRejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(f *attemptFixture)
		examID   func(f *attemptFixture) uuid.UUID
		wantKind apperr.Kind
	}{
		{
			name:     "unknown exam",
			mutate:   func(*attemptFixture) {},
			examID:   func(*attemptFixture) uuid.UUID { return uuid.New() },
			wantKind: apperr.KindNotFound,
		},
		{
			name: "draft exam",
			mutate: func(f *attemptFixture) {
				f.exams.exams[f.examID].Status = model.ExamStatusDraft
			},
			examID:   func(f *attemptFixture) uuid.UUID { return f.examID },
			wantKind: apperr.KindInvalidState,
		},
		{
			name: "no access grant",
			mutate: func(f *attemptFixture) {
				delete(f.grants.grants[f.examID], testCandidateID)
			},
			examID:   func(f *attemptFixture) uuid.UUID { return f.examID },
			wantKind: apperr.KindForbidden,
		},
		{
			name: "no questions",
			mutate: func(f *attemptFixture) {
				f.questions.questions[f.examID] = nil
			},
			examID:   func(f *attemptFixture) uuid.UUID { return f.examID },
			wantKind: apperr.KindInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAttemptFixture(t)
			tt.mutate(f)
			_, err := f.svc.Start(context.Background(), tt.examID(f), testCandidateID)
			if !apperr.Is(err, tt.wantKind) {
				t.Fatalf("error = %v, want kind %s", err, tt.wantKind)
			}
		})
	}
}

func TestEvaluatorAssignedDeterministically(t *testing.T) {
	f := newAttemptFixture(t)
	f.mappings.mappings[f.examID] = []model.EvaluatorMapping{
		{ID: 1, ExamID: f.examID, EvaluatorID: 11, CandidateEmails: []string{"alice@x.com"}},
		{ID: 2, ExamID: f.examID, EvaluatorID: 22, CandidateEmails: []string{"bob@x.com"}},
	}

	attempt, err := f.svc.Start(context.Background(), f.examID, testCandidateID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if attempt.EvaluatorID == nil || *attempt.EvaluatorID != 22 {
		t.Fatalf("evaluator = %v, want 22", attempt.EvaluatorID)
	}
	if attempt.RandomlyAssigned {
		t.Error("deterministic assignment flagged as random")
	}
}

func TestEvaluatorRandomFallback(t *testing.T) {
	f := newAttemptFixture(t)
	// No mapping lists bob@x.com, so the draw falls back to a random mapping.
	f.mappings.mappings[f.examID] = []model.EvaluatorMapping{
		{ID: 1, ExamID: f.examID, EvaluatorID: 11, CandidateEmails: []string{"alice@x.com"}},
		{ID: 2, ExamID: f.examID, EvaluatorID: 22, CandidateEmails: []string{"carol@x.com"}},
	}
	f.svc.pick = func(n int) int { return n - 1 }

	attempt, err := f.svc.Start(context.Background(), f.examID, testCandidateID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if attempt.EvaluatorID == nil || *attempt.EvaluatorID != 22 {
		t.Fatalf("evaluator = %v, want 22 (picked index n-1)", attempt.EvaluatorID)
	}
	if !attempt.RandomlyAssigned {
		t.Error("random fallback not flagged")
	}
}

func TestEvaluatorUnsetWithoutMappings(t *testing.T) {
	f := newAttemptFixture(t)

	attempt, err := f.svc.Start(context.Background(), f.examID, testCandidateID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if attempt.EvaluatorID != nil {
		t.Fatalf("evaluator = %d, want unset", *attempt.EvaluatorID)
	}
}

func TestAutosaveUpdatesLiveAttempt(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, f.examID, testCandidateID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	qid := f.questions.questions[f.examID][0].ID.String()
	answers := model.AnswerMap{qid: {"B"}}
	if err := f.svc.Autosave(ctx, f.examID, testCandidateID, answers); err != nil {
		t.Fatalf("Autosave: %v", err)
	}

	stored := f.attempts.get(f.examID, testCandidateID)
	if len(stored.Answers) != 1 {
		t.Fatalf("stored %d answers, want 1", len(stored.Answers))
	}
	mirrored, _ := f.cache.Answers(ctx, f.examID.String(), testCandidateID)
	if mirrored[qid] != "B" {
		t.Errorf("cache mirror = %q, want B", mirrored[qid])
	}
}

func TestAutosaveWithoutLiveAttempt(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	err := f.svc.Autosave(ctx, f.examID, testCandidateID, model.AnswerMap{})
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("error = %v, want invalid state", err)
	}

	// Same after submission closes the attempt.
	if _, err := f.svc.Submit(ctx, f.examID, testCandidateID, model.AnswerMap{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	err = f.svc.Autosave(ctx, f.examID, testCandidateID, model.AnswerMap{})
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("post-submit error = %v, want invalid state", err)
	}
}

func TestSubmitClosesLiveAttempt(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, f.examID, testCandidateID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	qid := f.questions.questions[f.examID][0].ID.String()
	attempt, err := f.svc.Submit(ctx, f.examID, testCandidateID, model.AnswerMap{qid: {"B"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if attempt.ID != started.ID {
		t.Error("submit created a second record for the pair")
	}
	if attempt.Status != model.AttemptStatusSubmitted {
		t.Errorf("status = %s, want SUBMITTED", attempt.Status)
	}
	if attempt.Score == nil || *attempt.Score != 100 {
		t.Fatalf("score = %v, want 100 (MCQ scored at submit)", attempt.Score)
	}
	if _, ok := f.cache.starts[cacheKey(f.examID.String(), testCandidateID)]; ok {
		t.Error("attempt cache not cleared after submit")
	}
}

func TestSubmitWithoutStartCreatesSubmittedRecord(t *testing.T) {
	f := newAttemptFixture(t)
	f.mappings.mappings[f.examID] = []model.EvaluatorMapping{
		{ID: 1, ExamID: f.examID, EvaluatorID: 11, CandidateEmails: []string{"bob@x.com"}},
	}

	attempt, err := f.svc.Submit(context.Background(), f.examID, testCandidateID, model.AnswerMap{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if attempt.Status != model.AttemptStatusSubmitted {
		t.Errorf("status = %s, want SUBMITTED", attempt.Status)
	}
	// The fallback path resolves the evaluator at submit time.
	if attempt.EvaluatorID == nil || *attempt.EvaluatorID != 11 {
		t.Fatalf("evaluator = %v, want 11", attempt.EvaluatorID)
	}
}

func TestSubmitTwiceUpdatesInPlace(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	qid := f.questions.questions[f.examID][0].ID.String()

	first, err := f.svc.Submit(ctx, f.examID, testCandidateID, model.AnswerMap{qid: {"A"}})
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	second, err := f.svc.Submit(ctx, f.examID, testCandidateID, model.AnswerMap{qid: {"B"}})
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}

	if first.ID != second.ID {
		t.Fatal("second submit created a duplicate record")
	}
	stored := f.attempts.get(f.examID, testCandidateID)
	if got := stored.Answers[qid]; len(got) != 1 || got[0] != "B" {
		t.Fatalf("stored answer = %v, want [B]", got)
	}
	if stored.Score == nil || *stored.Score != 100 {
		t.Fatalf("score = %v, want 100 after corrected resubmit", stored.Score)
	}
}

func TestSubmitKeepsOriginalEvaluator(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	f.mappings.mappings[f.examID] = []model.EvaluatorMapping{
		{ID: 1, ExamID: f.examID, EvaluatorID: 11, CandidateEmails: []string{"bob@x.com"}},
	}

	if _, err := f.svc.Start(ctx, f.examID, testCandidateID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Mapping changes between start and submit must not reassign.
	f.mappings.mappings[f.examID][0].EvaluatorID = 99

	if _, err := f.svc.Submit(ctx, f.examID, testCandidateID, model.AnswerMap{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	stored := f.attempts.get(f.examID, testCandidateID)
	if stored.EvaluatorID == nil || *stored.EvaluatorID != 11 {
		t.Fatalf("evaluator = %v, want the original 11", stored.EvaluatorID)
	}
}

func TestSubmitSkipsScoringForManualTypes(t *testing.T) {
	f := newAttemptFixture(t)
	f.exams.exams[f.examID].Type = model.ExamTypeFreeResponse

	attempt, err := f.svc.Submit(context.Background(), f.examID, testCandidateID, model.AnswerMap{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if attempt.Score != nil {
		t.Fatalf("score = %d, want nil until an evaluator grades", *attempt.Score)
	}
}

func TestRecordEvaluation(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	req := model.RecordEvaluationRequest{Score: 85, Comments: "solid work"}

	// Missing attempt.
	err := f.svc.RecordEvaluation(ctx, f.examID, testCandidateID, req)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}

	// Live attempt is not gradable yet.
	if _, err := f.svc.Start(ctx, f.examID, testCandidateID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err = f.svc.RecordEvaluation(ctx, f.examID, testCandidateID, req)
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("error = %v, want invalid state", err)
	}

	if _, err := f.svc.Submit(ctx, f.examID, testCandidateID, model.AnswerMap{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := f.svc.RecordEvaluation(ctx, f.examID, testCandidateID, req); err != nil {
		t.Fatalf("RecordEvaluation: %v", err)
	}

	stored := f.attempts.get(f.examID, testCandidateID)
	if stored.Status != model.AttemptStatusEvaluated {
		t.Errorf("status = %s, want EVALUATED", stored.Status)
	}
	if stored.Score == nil || *stored.Score != 85 {
		t.Errorf("score = %v, want 85", stored.Score)
	}
	if stored.Comments == nil || *stored.Comments != "solid work" {
		t.Errorf("comments = %v, want recorded", stored.Comments)
	}
}

func TestListLiveExcludesStaleAttempts(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	now := time.Now()
	f.svc.now = func() time.Time { return now }

	fresh := &model.ExamAttempt{
		ExamID: f.examID, CandidateID: 1, IsLive: true,
		Status: model.AttemptStatusLive, StartedAt: now.Add(-10 * time.Minute),
	}
	answered := &model.ExamAttempt{
		ExamID: f.examID, CandidateID: 2, IsLive: true,
		Status: model.AttemptStatusLive, StartedAt: now.Add(-10 * time.Minute),
		Answers: model.AnswerMap{"q1": {"A"}},
	}
	expired := &model.ExamAttempt{
		ExamID: f.examID, CandidateID: 3, IsLive: true,
		Status: model.AttemptStatusLive, StartedAt: now.Add(-90 * time.Minute),
	}
	for _, a := range []*model.ExamAttempt{fresh, answered, expired} {
		a.ID = uuid.New()
		f.attempts.attempts[attemptKey{f.examID, a.CandidateID}] = a
	}

	live, err := f.svc.ListLive(ctx, f.examID)
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	if len(live) != 1 || live[0].CandidateID != 1 {
		t.Fatalf("live = %v, want only candidate 1", live)
	}

	// The two stale attempts are queued for the background sweep.
	if len(f.cache.expired) != 2 {
		t.Fatalf("queued %d ids for expiry, want 2", len(f.cache.expired))
	}
}

func TestStateFromCache(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	now := time.Now()
	f.svc.now = func() time.Time { return now }

	if _, err := f.svc.Start(ctx, f.examID, testCandidateID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.cache.starts[cacheKey(f.examID.String(), testCandidateID)] = now.Add(-15 * time.Minute)

	state, err := f.svc.State(ctx, f.examID, testCandidateID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	want := float64(45 * 60)
	if state.RemainingTime != want {
		t.Fatalf("remaining = %v, want %v", state.RemainingTime, want)
	}
}

func TestStateHealsCacheFromStore(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, f.examID, testCandidateID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Simulate cache loss.
	delete(f.cache.starts, cacheKey(f.examID.String(), testCandidateID))
	delete(f.cache.durations, f.examID.String())

	state, err := f.svc.State(ctx, f.examID, testCandidateID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.RemainingTime <= 0 || state.RemainingTime > 60*60 {
		t.Fatalf("remaining = %v, want within (0, 3600]", state.RemainingTime)
	}
	if _, ok := f.cache.starts[cacheKey(f.examID.String(), testCandidateID)]; !ok {
		t.Error("start timestamp not healed back into cache")
	}
	if f.cache.durations[f.examID.String()] != 60 {
		t.Error("duration not healed back into cache")
	}
}

func TestStateForMissingAttempt(t *testing.T) {
	f := newAttemptFixture(t)

	_, err := f.svc.State(context.Background(), f.examID, testCandidateID)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}
