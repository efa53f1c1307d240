// Package memstore is a mutex-guarded, process-local implementation of the
// repository interfaces. It backs STORAGE_DRIVER=memory and the service tests.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"codeclash/internal/common"
	"codeclash/internal/domain/model"
	"codeclash/internal/domain/repository"
)

type Store struct {
	mu          sync.RWMutex
	users       map[string]model.User
	questions   map[string]model.Question
	contests    map[string]*model.Contest
	submissions map[string]*model.Submission
	subOrder    []string
	now         func() time.Time
}

func New() *Store {
	return &Store{
		users:       make(map[string]model.User),
		questions:   make(map[string]model.Question),
		contests:    make(map[string]*model.Contest),
		submissions: make(map[string]*model.Submission),
		now:         time.Now,
	}
}

// Seed helpers. Callers own uniqueness of ids.

func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) PutQuestion(q model.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = q
}

func (s *Store) PutContest(c model.Contest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneContest(&c)
	s.contests[c.ID] = cp
}

// PutSubmission stores sub as-is, keeping its SubmittedAt.
func (s *Store) PutSubmission(sub model.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[sub.ID]; !ok {
		s.subOrder = append(s.subOrder, sub.ID)
	}
	cp := cloneSubmission(&sub)
	s.submissions[sub.ID] = cp
}

func (s *Store) Users() repository.UserRepository             { return userRepo{s} }
func (s *Store) Questions() repository.QuestionRepository     { return questionRepo{s} }
func (s *Store) Contests() repository.ContestRepository       { return contestRepo{s} }
func (s *Store) Submissions() repository.SubmissionRepository { return submissionRepo{s} }

func cloneContest(c *model.Contest) *model.Contest {
	cp := *c
	cp.Questions = append([]string(nil), c.Questions...)
	cp.Participants = append([]string(nil), c.Participants...)
	cp.LeaderboardSnapshot = append([]model.LeaderboardEntry(nil), c.LeaderboardSnapshot...)
	if c.LeaderboardSnapshotUpdatedAt != nil {
		at := *c.LeaderboardSnapshotUpdatedAt
		cp.LeaderboardSnapshotUpdatedAt = &at
	}
	return &cp
}

func cloneSubmission(sub *model.Submission) *model.Submission {
	cp := *sub
	if sub.ContestID != nil {
		id := *sub.ContestID
		cp.ContestID = &id
	}
	if sub.JudgeToken != nil {
		tok := *sub.JudgeToken
		cp.JudgeToken = &tok
	}
	if sub.ExecutionTime != nil {
		d := *sub.ExecutionTime
		cp.ExecutionTime = &d
	}
	cp.JudgeStatus = append(json.RawMessage(nil), sub.JudgeStatus...)
	return &cp
}

type userRepo struct{ s *Store }

func (r userRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) FindByIDs(_ context.Context, ids []string) ([]model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.User
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type questionRepo struct{ s *Store }

func (r questionRepo) FindByID(_ context.Context, id string) (*model.Question, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	q, ok := r.s.questions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	q.TestCases = append([]model.TestCase(nil), q.TestCases...)
	return &q, nil
}

func (r questionRepo) FindByIDs(_ context.Context, ids []string) ([]model.Question, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Question
	for _, id := range ids {
		if q, ok := r.s.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r questionRepo) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.questions), nil
}

func (r questionRepo) SampleIDs(_ context.Context, n int) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := make([]string, 0, len(r.s.questions))
	for id := range r.s.questions {
		ids = append(ids, id)
	}
	// map order is not uniform; sort first so the shuffle is the only source of randomness
	sort.Strings(ids)
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if n < len(ids) {
		ids = ids[:n]
	}
	return ids, nil
}

type contestRepo struct{ s *Store }

func (r contestRepo) FindByID(_ context.Context, id string) (*model.Contest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.contests[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return cloneContest(c), nil
}

func (r contestRepo) ListContainingQuestion(_ context.Context, questionID string) ([]model.Contest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Contest
	for _, c := range r.s.contests {
		if c.HasQuestion(questionID) {
			out = append(out, *cloneContest(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r contestRepo) AddParticipant(_ context.Context, contestID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contests[contestID]
	if !ok {
		return fmt.Errorf("contest %s: %w", contestID, common.ErrNotFound)
	}
	if !c.HasParticipant(userID) {
		c.Participants = append(c.Participants, userID)
		c.UpdatedAt = r.s.now()
	}
	return nil
}

func (r contestRepo) AssignQuestionsIfEmpty(_ context.Context, contestID string, questionIDs []string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contests[contestID]
	if !ok {
		return false, fmt.Errorf("contest %s: %w", contestID, common.ErrNotFound)
	}
	if len(c.Questions) != 0 {
		return false, nil
	}
	if len(questionIDs) > c.NumQuestions {
		return false, fmt.Errorf("%d questions exceed the quota of contest %s: %w", len(questionIDs), contestID, common.ErrValidation)
	}
	c.Questions = append([]string(nil), questionIDs...)
	c.UpdatedAt = r.s.now()
	return true, nil
}

func (r contestRepo) ResetQuestions(_ context.Context, contestID string, numQuestions int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contests[contestID]
	if !ok {
		return common.ErrNotFound
	}
	c.Questions = nil
	if numQuestions > 0 {
		c.NumQuestions = numQuestions
	}
	c.UpdatedAt = r.s.now()
	return nil
}

func (r contestRepo) SaveLeaderboardSnapshot(_ context.Context, contestID string, entries []model.LeaderboardEntry, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contests[contestID]
	if !ok {
		return common.ErrNotFound
	}
	c.LeaderboardSnapshot = append([]model.LeaderboardEntry{}, entries...)
	c.LeaderboardSnapshotUpdatedAt = &at
	return nil
}

type submissionRepo struct{ s *Store }

func (r submissionRepo) Create(_ context.Context, sub *model.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.submissions[sub.ID]; ok {
		return fmt.Errorf("submission %s already exists: %w", sub.ID, common.ErrConflict)
	}
	now := r.s.now()
	sub.SubmittedAt = now
	sub.UpdatedAt = now
	r.s.submissions[sub.ID] = cloneSubmission(sub)
	r.s.subOrder = append(r.s.subOrder, sub.ID)
	return nil
}

func (r submissionRepo) FindByID(_ context.Context, id string) (*model.Submission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sub, ok := r.s.submissions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return cloneSubmission(sub), nil
}

func (r submissionRepo) FinalizeVerdict(_ context.Context, id string, upd model.VerdictUpdate) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.submissions[id]
	if !ok || sub.Verdict != model.VerdictJudging {
		return false, nil
	}
	sub.Verdict = upd.Verdict
	sub.ExecutionTime = upd.ExecutionTime
	sub.JudgeToken = upd.JudgeToken
	sub.JudgeStatus = append(json.RawMessage(nil), upd.JudgeStatus...)
	sub.UpdatedAt = r.s.now()
	return true, nil
}

func (r submissionRepo) filter(keep func(*model.Submission) bool) []model.Submission {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Submission
	for _, id := range r.s.subOrder {
		if sub := r.s.submissions[id]; keep(sub) {
			out = append(out, *cloneSubmission(sub))
		}
	}
	return out
}

func (r submissionRepo) ListByContest(_ context.Context, contestID string) ([]model.Submission, error) {
	return r.filter(func(s *model.Submission) bool {
		return s.ContestID != nil && *s.ContestID == contestID
	}), nil
}

func (r submissionRepo) ListByVerdict(_ context.Context, verdict model.Verdict) ([]model.Submission, error) {
	return r.filter(func(s *model.Submission) bool { return s.Verdict == verdict }), nil
}

func (r submissionRepo) ListWithoutContest(_ context.Context) ([]model.Submission, error) {
	return r.filter(func(s *model.Submission) bool { return s.ContestID == nil }), nil
}

func (r submissionRepo) SetContest(_ context.Context, submissionID, contestID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.submissions[submissionID]
	if !ok || sub.ContestID != nil {
		return false, nil
	}
	id := contestID
	sub.ContestID = &id
	sub.UpdatedAt = r.s.now()
	return true, nil
}
