package service

import (
	"context"
	"sort"
	"time"

	"codeclash/internal/common"
	"codeclash/internal/domain/model"
	"codeclash/internal/domain/repository"
	"codeclash/internal/platform/logger"
	"codeclash/internal/platform/metrics"

	"go.uber.org/zap"
)

type LeaderboardService struct {
	contestRepo    repository.ContestRepository
	submissionRepo repository.SubmissionRepository
	userRepo       repository.UserRepository
	questionRepo   repository.QuestionRepository
}

func NewLeaderboardService(
	contestRepo repository.ContestRepository,
	submissionRepo repository.SubmissionRepository,
	userRepo repository.UserRepository,
	questionRepo repository.QuestionRepository,
) *LeaderboardService {
	return &LeaderboardService{
		contestRepo:    contestRepo,
		submissionRepo: submissionRepo,
		userRepo:       userRepo,
		questionRepo:   questionRepo,
	}
}

// Compute ranks the contest's participants. Once a contest has ended the first
// computed board is stored and served verbatim from then on.
func (s *LeaderboardService) Compute(ctx context.Context, contestID string, now time.Time) (*model.Leaderboard, error) {
	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return nil, common.Errorf("contest %s: %w", contestID, err)
	}

	ended := contest.StatusAt(now) == model.ContestEnded
	if ended && contest.HasSnapshot() {
		metrics.LeaderboardReads.WithLabelValues("snapshot").Inc()
		entries := contest.LeaderboardSnapshot
		if entries == nil {
			entries = []model.LeaderboardEntry{}
		}
		return &model.Leaderboard{Entries: entries, Snapshot: true}, nil
	}

	entries, err := s.aggregate(ctx, contest)
	if err != nil {
		return nil, err
	}
	metrics.LeaderboardReads.WithLabelValues("computed").Inc()

	if ended {
		if err := s.contestRepo.SaveLeaderboardSnapshot(ctx, contest.ID, entries, now); err != nil {
			logger.Error(ctx, "failed to persist leaderboard snapshot", zap.String("contest_id", contest.ID), zap.Error(err))
		}
	}
	return &model.Leaderboard{Entries: entries, Snapshot: false}, nil
}

func (s *LeaderboardService) aggregate(ctx context.Context, contest *model.Contest) ([]model.LeaderboardEntry, error) {
	users, err := s.userRepo.FindByIDs(ctx, contest.Participants)
	if err != nil {
		return nil, common.Errorf("load participants of contest %s: %w", contest.ID, err)
	}
	names := make(map[string]string, len(users))
	for i := range users {
		names[users[i].ID] = users[i].DisplayName()
	}

	board := make(map[string]*model.LeaderboardEntry, len(contest.Participants))
	entries := make([]*model.LeaderboardEntry, 0, len(contest.Participants))
	for _, id := range contest.Participants {
		if _, dup := board[id]; dup {
			continue
		}
		e := &model.LeaderboardEntry{UserID: id, Name: names[id]}
		board[id] = e
		entries = append(entries, e)
	}

	subs, err := s.submissionRepo.ListByContest(ctx, contest.ID)
	if err != nil {
		return nil, common.Errorf("load submissions of contest %s: %w", contest.ID, err)
	}

	type solve struct{ userID, questionID string }
	credited := make(map[solve]struct{})
	var solves []solve
	questionIDs := make(map[string]struct{})
	for _, sub := range subs {
		if !sub.Verdict.IsAccepted() {
			continue
		}
		if _, ok := board[sub.UserID]; !ok {
			continue
		}
		key := solve{sub.UserID, sub.QuestionID}
		if _, seen := credited[key]; seen {
			continue
		}
		credited[key] = struct{}{}
		solves = append(solves, key)
		questionIDs[sub.QuestionID] = struct{}{}
	}

	difficulty, err := s.difficulties(ctx, questionIDs)
	if err != nil {
		return nil, err
	}
	for _, sv := range solves {
		e := board[sv.userID]
		e.Score += difficulty[sv.questionID].Weight()
		e.Solved++
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Solved > entries[j].Solved
	})

	out := make([]model.LeaderboardEntry, len(entries))
	for i, e := range entries {
		out[i] = *e
	}
	return out, nil
}

func (s *LeaderboardService) difficulties(ctx context.Context, ids map[string]struct{}) (map[string]model.Difficulty, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	questions, err := s.questionRepo.FindByIDs(ctx, list)
	if err != nil {
		return nil, common.Errorf("load question difficulties: %w", err)
	}
	out := make(map[string]model.Difficulty, len(questions))
	for _, q := range questions {
		out[q.ID] = q.Difficulty
	}
	return out, nil
}
