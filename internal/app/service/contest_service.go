package service

import (
	"context"
	"time"

	"codeclash/internal/common"
	"codeclash/internal/domain/model"
	"codeclash/internal/domain/repository"
	"codeclash/internal/platform/logger"

	"go.uber.org/zap"
)

type ContestService struct {
	contestRepo         repository.ContestRepository
	questionRepo        repository.QuestionRepository
	defaultNumQuestions int
}

func NewContestService(
	contestRepo repository.ContestRepository,
	questionRepo repository.QuestionRepository,
	defaultNumQuestions int,
) *ContestService {
	if defaultNumQuestions <= 0 {
		defaultNumQuestions = 5
	}
	return &ContestService{
		contestRepo:         contestRepo,
		questionRepo:        questionRepo,
		defaultNumQuestions: defaultNumQuestions,
	}
}

func (s *ContestService) GetContest(ctx context.Context, contestID string, now time.Time) (*model.ContestView, error) {
	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return nil, common.Errorf("contest %s: %w", contestID, err)
	}
	view := contest.View(now)
	return &view, nil
}

func (s *ContestService) GetStatus(ctx context.Context, contestID string, now time.Time) (model.ContestStatus, error) {
	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return "", common.Errorf("contest %s: %w", contestID, err)
	}
	return contest.StatusAt(now), nil
}

// Join registers userID as a participant and makes sure the contest has its questions.
// Joining twice is harmless. Ended contests cannot be joined.
func (s *ContestService) Join(ctx context.Context, contestID, userID string, now time.Time) (*model.ContestView, error) {
	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return nil, common.Errorf("contest %s: %w", contestID, err)
	}
	if contest.StatusAt(now) == model.ContestEnded {
		return nil, common.Errorf("contest %s has already ended: %w", contestID, common.ErrForbidden)
	}

	if err := s.contestRepo.AddParticipant(ctx, contestID, userID); err != nil {
		return nil, common.Errorf("join contest %s: %w", contestID, err)
	}
	if !contest.HasParticipant(userID) {
		contest.Participants = append(contest.Participants, userID)
	}

	if _, err := s.AssignQuestionsIfEmpty(ctx, contest, contest.NumQuestions); err != nil {
		return nil, err
	}
	logger.Info(ctx, "user joined contest", zap.String("contest_id", contestID), zap.String("user_id", userID))

	view := contest.View(now)
	return &view, nil
}

// AssignQuestionsIfEmpty gives the contest min(requested, quota, pool size) random questions
// unless it already has some. A zero quota assigns nothing. Concurrent callers race on a compare-and-set in storage;
// losers adopt the winner's list. contest.Questions is updated in place.
func (s *ContestService) AssignQuestionsIfEmpty(ctx context.Context, contest *model.Contest, requested int) ([]string, error) {
	count := requested
	if count <= 0 || count > contest.NumQuestions {
		count = contest.NumQuestions
	}

	if len(contest.Questions) > 0 {
		return contest.Questions, nil
	}

	total, err := s.questionRepo.Count(ctx)
	if err != nil {
		return nil, common.Errorf("count questions: %w", err)
	}
	finalCount := min(count, total)
	if finalCount <= 0 {
		logger.Warn(ctx, "no questions to assign, contest left without questions",
			zap.String("contest_id", contest.ID), zap.Int("quota", contest.NumQuestions), zap.Int("pool", total))
		return contest.Questions, nil
	}

	picked, err := s.questionRepo.SampleIDs(ctx, finalCount)
	if err != nil {
		return nil, common.Errorf("sample questions: %w", err)
	}
	won, err := s.contestRepo.AssignQuestionsIfEmpty(ctx, contest.ID, picked)
	if err != nil {
		return nil, common.Errorf("assign questions to contest %s: %w", contest.ID, err)
	}
	if won {
		logger.Info(ctx, "assigned questions to contest", zap.String("contest_id", contest.ID), zap.Strings("questions", picked))
		contest.Questions = picked
		return picked, nil
	}

	fresh, err := s.contestRepo.FindByID(ctx, contest.ID)
	if err != nil {
		return nil, common.Errorf("reload contest %s: %w", contest.ID, err)
	}
	contest.Questions = fresh.Questions
	return contest.Questions, nil
}

// Reassign drops the current question list and draws a new one. Only the creator may do it.
// A positive requested count also becomes the contest's question quota; a contest without a
// quota gets the default one.
func (s *ContestService) Reassign(ctx context.Context, contestID, userID string, requested int) ([]string, error) {
	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return nil, common.Errorf("contest %s: %w", contestID, err)
	}
	if contest.CreatedBy != userID {
		return nil, common.Errorf("only the contest creator can reassign questions: %w", common.ErrForbidden)
	}

	quota := requested
	if quota <= 0 && contest.NumQuestions <= 0 {
		quota = s.defaultNumQuestions
	}
	if err := s.contestRepo.ResetQuestions(ctx, contestID, quota); err != nil {
		return nil, common.Errorf("reset questions of contest %s: %w", contestID, err)
	}
	contest, err = s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return nil, common.Errorf("reload contest %s: %w", contestID, err)
	}
	return s.AssignQuestionsIfEmpty(ctx, contest, quota)
}

// GetQuestions lists the contest's questions for a participant once the contest has started.
func (s *ContestService) GetQuestions(ctx context.Context, contestID, userID string, now time.Time) ([]model.QuestionSummary, error) {
	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return nil, common.Errorf("contest %s: %w", contestID, err)
	}
	if !contest.HasParticipant(userID) {
		return nil, common.Errorf("join the contest to view its questions: %w", common.ErrForbidden)
	}
	if contest.StatusAt(now) == model.ContestUpcoming {
		return nil, common.Errorf("contest %s has not started yet: %w", contestID, common.ErrForbidden)
	}

	questions, err := s.questionRepo.FindByIDs(ctx, contest.Questions)
	if err != nil {
		return nil, common.Errorf("load questions of contest %s: %w", contestID, err)
	}
	byID := make(map[string]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}
	summaries := make([]model.QuestionSummary, 0, len(contest.Questions))
	for _, id := range contest.Questions {
		if q, ok := byID[id]; ok {
			summaries = append(summaries, q.Summary())
		}
	}
	return summaries, nil
}
