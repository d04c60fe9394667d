package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vigilo/vigilo-backend/internal/apperr"
	"github.com/vigilo/vigilo-backend/internal/model"
)

type publicationFixture struct {
	svc        *PublicationService
	exams      *fakeExamStore
	questions  *fakeQuestionStore
	candidates *fakeCandidateStore
	grants     *fakeGrantStore
	examID     uuid.UUID
}

// newPublicationFixture wires the service against fakes with one draft exam
// (one question) and four candidates across two departments.
func newPublicationFixture(t *testing.T) *publicationFixture {
	t.Helper()

	f := &publicationFixture{
		exams:      newFakeExamStore(),
		questions:  newFakeQuestionStore(),
		candidates: newFakeCandidateStore(),
	}
	f.grants = newFakeGrantStore(f.exams)

	exam := f.exams.put(&model.Exam{
		OrgID:           testOrgID,
		Title:           "Algorithms Final",
		Type:            model.ExamTypeMCQ,
		DurationMinutes: 90,
		Status:          model.ExamStatusDraft,
	})
	f.examID = exam.ID
	f.questions.questions[f.examID] = []model.Question{
		{ID: uuid.New(), ExamID: f.examID, CorrectAnswers: []string{"A"}, Marks: 5, OrderNum: 1},
	}

	profiles := []struct {
		id         int
		department string
		semester   int
	}{
		{1, "CS", 4},
		{2, "CS", 6},
		{3, "EE", 4},
		{4, "EE", 6},
	}
	for _, p := range profiles {
		f.candidates.candidates[p.id] = &model.Candidate{
			ID: p.id, OrgID: testOrgID, Department: p.department, Semester: p.semester,
		}
	}
	// A candidate from another organization must never be granted.
	f.candidates.candidates[99] = &model.Candidate{ID: 99, OrgID: testOrgID + 1, Department: "CS"}

	f.svc = NewPublicationService(
		f.exams, f.questions, f.candidates, f.grants, newFakeCache(), zerolog.Nop(),
	)
	return f
}

func TestPublishEmptyFilterGrantsWholeOrg(t *testing.T) {
	f := newPublicationFixture(t)

	exam, err := f.svc.Publish(context.Background(), f.examID, testOrgID, model.CandidateFilter{})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if exam.Status != model.ExamStatusPublished {
		t.Errorf("status = %s, want PUBLISHED", exam.Status)
	}
	if exam.CandidateCount == nil || *exam.CandidateCount != 4 {
		t.Fatalf("candidate count = %v, want 4", exam.CandidateCount)
	}
	if exam.PublishedAt == nil {
		t.Fatal("published_at not set")
	}
	for id := 1; id <= 4; id++ {
		if !f.grants.grants[f.examID][id] {
			t.Errorf("candidate %d missing grant", id)
		}
	}
	if f.grants.grants[f.examID][99] {
		t.Error("foreign-org candidate granted")
	}
}

func TestPublishFilterSelectsSubset(t *testing.T) {
	f := newPublicationFixture(t)

	filter := model.CandidateFilter{Departments: []string{"CS"}, Semesters: []int{4}}
	exam, err := f.svc.Publish(context.Background(), f.examID, testOrgID, filter)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if *exam.CandidateCount != 1 {
		t.Fatalf("candidate count = %d, want 1", *exam.CandidateCount)
	}
	if !f.grants.grants[f.examID][1] {
		t.Error("matching candidate 1 missing grant")
	}
	if f.grants.grants[f.examID][2] || f.grants.grants[f.examID][3] {
		t.Error("non-matching candidates granted")
	}
}

func TestPublishFailureLeavesExamDraft(t *testing.T) {
	f := newPublicationFixture(t)
	f.grants.failErr = errors.New("constraint violation")

	_, err := f.svc.Publish(context.Background(), f.examID, testOrgID, model.CandidateFilter{})
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("error = %v, want internal", err)
	}

	exam, _ := f.exams.GetByID(context.Background(), f.examID)
	if exam.Status != model.ExamStatusDraft {
		t.Fatalf("status = %s, want DRAFT after failed publish", exam.Status)
	}
	if exam.PublishedAt != nil || exam.CandidateCount != nil {
		t.Error("failed publish left a partial snapshot on the exam")
	}
}

func TestPublishRejections(t *testing.T) {
	t.Run("no questions", func(t *testing.T) {
		f := newPublicationFixture(t)
		f.questions.questions[f.examID] = nil
		_, err := f.svc.Publish(context.Background(), f.examID, testOrgID, model.CandidateFilter{})
		if !apperr.Is(err, apperr.KindInvalidState) {
			t.Fatalf("error = %v, want invalid state", err)
		}
	})

	t.Run("already published", func(t *testing.T) {
		f := newPublicationFixture(t)
		if _, err := f.svc.Publish(context.Background(), f.examID, testOrgID, model.CandidateFilter{}); err != nil {
			t.Fatalf("first Publish: %v", err)
		}
		_, err := f.svc.Publish(context.Background(), f.examID, testOrgID, model.CandidateFilter{})
		if !apperr.Is(err, apperr.KindConflict) {
			t.Fatalf("error = %v, want conflict", err)
		}
	})

	t.Run("foreign organization", func(t *testing.T) {
		f := newPublicationFixture(t)
		_, err := f.svc.Publish(context.Background(), f.examID, testOrgID+1, model.CandidateFilter{})
		if !apperr.Is(err, apperr.KindForbidden) {
			t.Fatalf("error = %v, want forbidden", err)
		}
	})

	t.Run("unknown exam", func(t *testing.T) {
		f := newPublicationFixture(t)
		_, err := f.svc.Publish(context.Background(), uuid.New(), testOrgID, model.CandidateFilter{})
		if !apperr.Is(err, apperr.KindNotFound) {
			t.Fatalf("error = %v, want not found", err)
		}
	})
}

func TestUnpublishRevertsToDraft(t *testing.T) {
	f := newPublicationFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Publish(ctx, f.examID, testOrgID, model.CandidateFilter{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := f.svc.Unpublish(ctx, f.examID, testOrgID); err != nil {
		t.Fatalf("Unpublish: %v", err)
	}

	exam, _ := f.exams.GetByID(ctx, f.examID)
	if exam.Status != model.ExamStatusDraft {
		t.Fatalf("status = %s, want DRAFT", exam.Status)
	}
	if exam.PublishedAt != nil || exam.CandidateCount != nil {
		t.Error("snapshot not cleared on unpublish")
	}
	if len(f.grants.grants[f.examID]) != 0 {
		t.Error("grants not deleted on unpublish")
	}
}

func TestUnpublishDraftIsInvalid(t *testing.T) {
	f := newPublicationFixture(t)

	err := f.svc.Unpublish(context.Background(), f.examID, testOrgID)
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("error = %v, want invalid state", err)
	}
}

func TestCountCandidates(t *testing.T) {
	f := newPublicationFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter model.CandidateFilter
		want   int
	}{
		{"empty filter counts whole org", model.CandidateFilter{}, 4},
		{"single dimension", model.CandidateFilter{Departments: []string{"EE"}}, 2},
		{"conjunction of dimensions", model.CandidateFilter{Departments: []string{"EE"}, Semesters: []int{6}}, 1},
		{"list within a dimension", model.CandidateFilter{Semesters: []int{4, 6}}, 4},
		{"no match", model.CandidateFilter{Departments: []string{"MECH"}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.CountCandidates(ctx, testOrgID, tt.filter)
			if err != nil {
				t.Fatalf("CountCandidates: %v", err)
			}
			if got != tt.want {
				t.Fatalf("count = %d, want %d", got, tt.want)
			}
		})
	}
}
