package service

import (
	"context"
	"strconv"
	"strings"

	"codeclash/internal/common"
	"codeclash/internal/domain/model"
	"codeclash/internal/domain/repository"
	"codeclash/internal/platform/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobQueue hands submission ids to the judge workers.
type JobQueue interface {
	Enqueue(ctx context.Context, submissionID string) error
}

type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	questionRepo   repository.QuestionRepository
	contestRepo    repository.ContestRepository
	queue          JobQueue
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	questionRepo repository.QuestionRepository,
	contestRepo repository.ContestRepository,
	queue JobQueue,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: subRepo,
		questionRepo:   questionRepo,
		contestRepo:    contestRepo,
		queue:          queue,
	}
}

type SubmitRequest struct {
	QuestionID string `json:"questionId"`
	ContestID  string `json:"contestId,omitempty"`
	Language   string `json:"language"` // judge language id, e.g. "71"
	Code       string `json:"code"`
}

// Submit stores a Judging submission and queues it for evaluation. It returns as
// soon as both have happened; the verdict arrives later.
func (s *SubmissionService) Submit(ctx context.Context, userID string, req SubmitRequest) (*model.Submission, error) {
	ctx = logger.WithUserID(ctx, userID)

	req.QuestionID = strings.TrimSpace(req.QuestionID)
	req.ContestID = strings.TrimSpace(req.ContestID)
	req.Language = strings.TrimSpace(req.Language)
	if req.QuestionID == "" || req.Language == "" || strings.TrimSpace(req.Code) == "" {
		return nil, common.Errorf("questionId, language and code are required: %w", common.ErrValidation)
	}
	if id, err := strconv.Atoi(req.Language); err != nil || id <= 0 {
		return nil, common.Errorf("language must be a numeric judge language id: %w", common.ErrValidation)
	}

	if _, err := s.questionRepo.FindByID(ctx, req.QuestionID); err != nil {
		return nil, common.Errorf("question %s: %w", req.QuestionID, err)
	}

	var contestID *string
	if req.ContestID != "" {
		contest, err := s.contestRepo.FindByID(ctx, req.ContestID)
		if err != nil {
			return nil, common.Errorf("contest %s: %w", req.ContestID, err)
		}
		if !contest.HasParticipant(userID) {
			return nil, common.Errorf("join contest %s before submitting: %w", req.ContestID, common.ErrForbidden)
		}
		contestID = &contest.ID
	}

	submission := &model.Submission{
		ID:         uuid.NewString(),
		UserID:     userID,
		QuestionID: req.QuestionID,
		ContestID:  contestID,
		Code:       req.Code,
		Language:   req.Language,
		Verdict:    model.VerdictJudging,
	}
	if err := s.submissionRepo.Create(ctx, submission); err != nil {
		return nil, common.Errorf("failed to create submission: %w", err)
	}

	if err := s.queue.Enqueue(ctx, submission.ID); err != nil {
		logger.Error(ctx, "failed to enqueue submission", zap.String("submission_id", submission.ID), zap.Error(err))
		// Nothing will ever pick it up, so close it out instead of leaving it Judging.
		if _, ferr := s.submissionRepo.FinalizeVerdict(ctx, submission.ID, model.VerdictUpdate{Verdict: model.VerdictSystemError}); ferr != nil {
			logger.Error(ctx, "failed to mark unqueued submission as system error", zap.String("submission_id", submission.ID), zap.Error(ferr))
		}
		return nil, common.Errorf("judge queue unavailable: %w", common.ErrServiceUnavailable)
	}

	logger.Info(ctx, "submission queued for judging", zap.String("submission_id", submission.ID))
	return submission, nil
}

// GetSubmission returns a submission to its owner.
func (s *SubmissionService) GetSubmission(ctx context.Context, submissionID, userID string) (*model.Submission, error) {
	sub, err := s.submissionRepo.FindByID(ctx, submissionID)
	if err != nil {
		return nil, common.Errorf("submission %s: %w", submissionID, err)
	}
	if sub.UserID != userID {
		return nil, common.Errorf("submission %s belongs to another user: %w", submissionID, common.ErrForbidden)
	}
	return sub, nil
}
