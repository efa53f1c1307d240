package service

import (
	"context"

	"codeclash/internal/common"
	"codeclash/internal/domain/model"
	"codeclash/internal/domain/repository"
	"codeclash/internal/platform/logger"

	"go.uber.org/zap"
)

// MaintenanceService holds the repair jobs run from judgectl.
type MaintenanceService struct {
	submissionRepo repository.SubmissionRepository
	contestRepo    repository.ContestRepository
	queue          JobQueue
}

func NewMaintenanceService(
	subRepo repository.SubmissionRepository,
	contestRepo repository.ContestRepository,
	queue JobQueue,
) *MaintenanceService {
	return &MaintenanceService{submissionRepo: subRepo, contestRepo: contestRepo, queue: queue}
}

// RequeuePending pushes every submission still in Judging back onto the judge queue.
// Evaluation is idempotent, so a submission that is already in flight is skipped by
// whichever worker loses the lock or finds it finished.
func (s *MaintenanceService) RequeuePending(ctx context.Context) (int, error) {
	pending, err := s.submissionRepo.ListByVerdict(ctx, model.VerdictJudging)
	if err != nil {
		return 0, common.Errorf("list judging submissions: %w", err)
	}
	requeued := 0
	for _, sub := range pending {
		if err := s.queue.Enqueue(ctx, sub.ID); err != nil {
			return requeued, common.Errorf("requeue submission %s: %w", sub.ID, err)
		}
		requeued++
	}
	logger.Info(ctx, "requeued judging submissions", zap.Int("count", requeued))
	return requeued, nil
}

type BackfillMatch struct {
	SubmissionID string
	ContestID    string
}

type BackfillReport struct {
	Attached  []BackfillMatch
	Ambiguous map[string][]string // submission id -> candidate contest ids
	Unmatched []string
}

// BackfillContests attaches a contest to submissions that have none when exactly one
// contest both contains the question and was running at submission time.
func (s *MaintenanceService) BackfillContests(ctx context.Context, dryRun bool) (*BackfillReport, error) {
	orphans, err := s.submissionRepo.ListWithoutContest(ctx)
	if err != nil {
		return nil, common.Errorf("list submissions without contest: %w", err)
	}

	report := &BackfillReport{Ambiguous: make(map[string][]string)}
	byQuestion := make(map[string][]model.Contest)
	for _, sub := range orphans {
		contests, ok := byQuestion[sub.QuestionID]
		if !ok {
			contests, err = s.contestRepo.ListContainingQuestion(ctx, sub.QuestionID)
			if err != nil {
				return nil, common.Errorf("contests for question %s: %w", sub.QuestionID, err)
			}
			byQuestion[sub.QuestionID] = contests
		}

		var candidates []string
		for i := range contests {
			if contests[i].Covers(sub.SubmittedAt) {
				candidates = append(candidates, contests[i].ID)
			}
		}

		switch len(candidates) {
		case 0:
			report.Unmatched = append(report.Unmatched, sub.ID)
		case 1:
			if !dryRun {
				attached, err := s.submissionRepo.SetContest(ctx, sub.ID, candidates[0])
				if err != nil {
					return nil, common.Errorf("attach contest to submission %s: %w", sub.ID, err)
				}
				if !attached {
					continue
				}
			}
			report.Attached = append(report.Attached, BackfillMatch{SubmissionID: sub.ID, ContestID: candidates[0]})
		default:
			report.Ambiguous[sub.ID] = candidates
		}
	}

	logger.Info(ctx, "contest backfill finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("attached", len(report.Attached)),
		zap.Int("ambiguous", len(report.Ambiguous)),
		zap.Int("unmatched", len(report.Unmatched)))
	return report, nil
}
