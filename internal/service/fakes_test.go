package service

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vigilo/vigilo-backend/internal/model"
)

// In-memory store fakes mimicking the repository contracts, including the
// pgx.ErrNoRows signaling conventions the services depend on.

type attemptKey struct {
	exam      uuid.UUID
	candidate int
}

type fakeExamStore struct {
	mu    sync.Mutex
	exams map[uuid.UUID]*model.Exam
}

func newFakeExamStore() *fakeExamStore {
	return &fakeExamStore{exams: map[uuid.UUID]*model.Exam{}}
}

func (s *fakeExamStore) put(e *model.Exam) *model.Exam {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	s.exams[e.ID] = e
	return e
}

func (s *fakeExamStore) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *e
	return &copied, nil
}

func (s *fakeExamStore) Create(_ context.Context, e *model.Exam) error {
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	s.put(e)
	return nil
}

func (s *fakeExamStore) ListByOrg(_ context.Context, orgID, limit, offset int) ([]model.Exam, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Exam
	for _, e := range s.exams {
		if e.OrgID == orgID {
			out = append(out, *e)
		}
	}
	return out, len(out), nil
}

func (s *fakeExamStore) ListVisibleToCandidate(context.Context, int) ([]model.Exam, error) {
	return nil, nil
}

func (s *fakeExamStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.exams, id)
	return nil
}

type fakeQuestionStore struct {
	questions map[uuid.UUID][]model.Question
}

func newFakeQuestionStore() *fakeQuestionStore {
	return &fakeQuestionStore{questions: map[uuid.UUID][]model.Question{}}
}

func (s *fakeQuestionStore) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	return s.questions[examID], nil
}

func (s *fakeQuestionStore) CountByExam(_ context.Context, examID uuid.UUID) (int, error) {
	return len(s.questions[examID]), nil
}

func (s *fakeQuestionStore) ReplaceForExam(_ context.Context, examID uuid.UUID, questions []model.Question) error {
	s.questions[examID] = questions
	return nil
}

type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts map[attemptKey]*model.ExamAttempt
	now      func() time.Time
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		attempts: map[attemptKey]*model.ExamAttempt{},
		now:      time.Now,
	}
}

func (s *fakeAttemptStore) get(examID uuid.UUID, candidateID int) *model.ExamAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[attemptKey{examID, candidateID}]
}

func (s *fakeAttemptStore) GetByExamAndCandidate(_ context.Context, examID uuid.UUID, candidateID int) (*model.ExamAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[attemptKey{examID, candidateID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *a
	return &copied, nil
}

func (s *fakeAttemptStore) Create(_ context.Context, a *model.ExamAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey{a.ExamID, a.CandidateID}
	if _, exists := s.attempts[key]; exists {
		return pgx.ErrNoRows
	}
	a.ID = uuid.New()
	a.StartedAt = s.now()
	copied := *a
	s.attempts[key] = &copied
	return nil
}

func (s *fakeAttemptStore) UpdateAnswers(_ context.Context, examID uuid.UUID, candidateID int, answers model.AnswerMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[attemptKey{examID, candidateID}]
	if !ok || !a.IsLive {
		return pgx.ErrNoRows
	}
	a.Answers = answers
	return nil
}

func (s *fakeAttemptStore) Submit(_ context.Context, a *model.ExamAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey{a.ExamID, a.CandidateID}
	now := s.now()
	if existing, ok := s.attempts[key]; ok {
		existing.Answers = a.Answers
		existing.IsLive = false
		existing.Status = model.AttemptStatusSubmitted
		existing.TotalMarks = a.TotalMarks
		existing.SubmittedAt = &now
		a.ID = existing.ID
		a.StartedAt = existing.StartedAt
		a.SubmittedAt = existing.SubmittedAt
		return nil
	}
	a.ID = uuid.New()
	a.StartedAt = now
	a.SubmittedAt = &now
	a.IsLive = false
	a.Status = model.AttemptStatusSubmitted
	copied := *a
	s.attempts[key] = &copied
	return nil
}

func (s *fakeAttemptStore) SetScore(_ context.Context, examID uuid.UUID, candidateID, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.attempts[attemptKey{examID, candidateID}]; ok {
		a.Score = &score
	}
	return nil
}

func (s *fakeAttemptStore) RecordEvaluation(_ context.Context, examID uuid.UUID, candidateID, score int, comments string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[attemptKey{examID, candidateID}]
	if !ok || a.Status != model.AttemptStatusSubmitted {
		return pgx.ErrNoRows
	}
	now := s.now()
	a.Status = model.AttemptStatusEvaluated
	a.Score = &score
	a.Comments = &comments
	a.EvaluatedAt = &now
	return nil
}

func (s *fakeAttemptStore) ListLiveByExam(_ context.Context, examID uuid.UUID) ([]model.ExamAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ExamAttempt
	for key, a := range s.attempts {
		if key.exam == examID && a.IsLive {
			out = append(out, *a)
		}
	}
	return out, nil
}

type fakeCandidateStore struct {
	candidates map[int]*model.Candidate
}

func newFakeCandidateStore() *fakeCandidateStore {
	return &fakeCandidateStore{candidates: map[int]*model.Candidate{}}
}

func (s *fakeCandidateStore) matches(c *model.Candidate, orgID int, filter model.CandidateFilter) bool {
	if c.OrgID != orgID {
		return false
	}
	if len(filter.Schools) > 0 && !slices.Contains(filter.Schools, c.School) {
		return false
	}
	if len(filter.Departments) > 0 && !slices.Contains(filter.Departments, c.Department) {
		return false
	}
	if len(filter.Batches) > 0 && !slices.Contains(filter.Batches, c.Batch) {
		return false
	}
	if len(filter.Semesters) > 0 && !slices.Contains(filter.Semesters, c.Semester) {
		return false
	}
	return true
}

func (s *fakeCandidateStore) GetByID(_ context.Context, id int) (*model.Candidate, error) {
	c, ok := s.candidates[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return c, nil
}

func (s *fakeCandidateStore) CountByFilter(_ context.Context, orgID int, filter model.CandidateFilter) (int, error) {
	count := 0
	for _, c := range s.candidates {
		if s.matches(c, orgID, filter) {
			count++
		}
	}
	return count, nil
}

func (s *fakeCandidateStore) ListIDsByFilter(_ context.Context, orgID int, filter model.CandidateFilter) ([]int, error) {
	var ids []int
	for id, c := range s.candidates {
		if s.matches(c, orgID, filter) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

type fakeGrantStore struct {
	exams   *fakeExamStore
	grants  map[uuid.UUID]map[int]bool
	failErr error
}

func newFakeGrantStore(exams *fakeExamStore) *fakeGrantStore {
	return &fakeGrantStore{exams: exams, grants: map[uuid.UUID]map[int]bool{}}
}

func (s *fakeGrantStore) grant(examID uuid.UUID, candidateID int) {
	if s.grants[examID] == nil {
		s.grants[examID] = map[int]bool{}
	}
	s.grants[examID][candidateID] = true
}

func (s *fakeGrantStore) PublishExam(_ context.Context, examID uuid.UUID, candidateIDs []int, _ model.CandidateFilter) (time.Time, error) {
	if s.failErr != nil {
		return time.Time{}, s.failErr
	}
	for _, cid := range candidateIDs {
		s.grant(examID, cid)
	}

	s.exams.mu.Lock()
	defer s.exams.mu.Unlock()
	e := s.exams.exams[examID]
	now := time.Now()
	count := len(candidateIDs)
	e.Status = model.ExamStatusPublished
	e.CandidateCount = &count
	e.PublishedAt = &now
	return now, nil
}

func (s *fakeGrantStore) UnpublishExam(_ context.Context, examID uuid.UUID) error {
	s.exams.mu.Lock()
	defer s.exams.mu.Unlock()
	e := s.exams.exams[examID]
	if e == nil || e.Status != model.ExamStatusPublished {
		return pgx.ErrNoRows
	}
	delete(s.grants, examID)
	e.Status = model.ExamStatusDraft
	e.CandidateCount = nil
	e.PublishedAt = nil
	return nil
}

func (s *fakeGrantStore) HasAccess(_ context.Context, examID uuid.UUID, candidateID int) (bool, error) {
	return s.grants[examID][candidateID], nil
}

type fakeMappingStore struct {
	mappings map[uuid.UUID][]model.EvaluatorMapping
}

func newFakeMappingStore() *fakeMappingStore {
	return &fakeMappingStore{mappings: map[uuid.UUID][]model.EvaluatorMapping{}}
}

func (s *fakeMappingStore) ListMappingsByExam(_ context.Context, examID uuid.UUID) ([]model.EvaluatorMapping, error) {
	return s.mappings[examID], nil
}

func (s *fakeMappingStore) CreateMapping(_ context.Context, m *model.EvaluatorMapping) error {
	m.ID = len(s.mappings[m.ExamID]) + 1
	s.mappings[m.ExamID] = append(s.mappings[m.ExamID], *m)
	return nil
}

type fakeCache struct {
	mu        sync.Mutex
	answers   map[string]map[string]string
	starts    map[string]time.Time
	durations map[string]int
	expired   []uuid.UUID
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		answers:   map[string]map[string]string{},
		starts:    map[string]time.Time{},
		durations: map[string]int{},
	}
}

func cacheKey(examID string, candidateID int) string {
	return examID + "|" + strconv.Itoa(candidateID)
}

func (c *fakeCache) MirrorAnswers(_ context.Context, examID string, candidateID int, answers model.AnswerMap, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	mirror := map[string]string{}
	for qid, value := range answers {
		if len(value) == 1 {
			mirror[qid] = value[0]
		} else {
			mirror[qid] = "multi"
		}
	}
	c.answers[cacheKey(examID, candidateID)] = mirror
	return nil
}

func (c *fakeCache) Answers(_ context.Context, examID string, candidateID int) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.answers[cacheKey(examID, candidateID)]; ok {
		return m, nil
	}
	return map[string]string{}, nil
}

func (c *fakeCache) SetAttemptStart(_ context.Context, examID string, candidateID int, start time.Time, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts[cacheKey(examID, candidateID)] = start
	return nil
}

func (c *fakeCache) AttemptStart(_ context.Context, examID string, candidateID int) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start, ok := c.starts[cacheKey(examID, candidateID)]
	if !ok {
		return time.Time{}, ErrCacheMiss
	}
	return start, nil
}

func (c *fakeCache) SetExamDuration(_ context.Context, examID string, minutes int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.durations[examID] = minutes
	return nil
}

func (c *fakeCache) ExamDuration(_ context.Context, examID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	minutes, ok := c.durations[examID]
	if !ok {
		return 0, ErrCacheMiss
	}
	return minutes, nil
}

func (c *fakeCache) Clear(_ context.Context, examID string, candidateID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.answers, cacheKey(examID, candidateID))
	delete(c.starts, cacheKey(examID, candidateID))
	return nil
}

func (c *fakeCache) QueueLiveExpiry(_ context.Context, ids []uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired = append(c.expired, ids...)
	return nil
}
