package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"codeclash/internal/app/service"
	"codeclash/internal/domain/model"
	"codeclash/internal/domain/repository"
	"codeclash/internal/domain/repository/memstore"
)

func leaderboardStore(participants ...string) *memstore.Store {
	store := memstore.New()
	store.PutQuestion(model.Question{ID: "easy", Difficulty: model.DifficultyEasy})
	store.PutQuestion(model.Question{ID: "med", Difficulty: model.DifficultyMedium})
	store.PutQuestion(model.Question{ID: "hard", Difficulty: model.DifficultyHard})
	store.PutQuestion(model.Question{ID: "unrated"})
	store.PutUser(model.User{ID: "A", Name: "Alice", Email: "alice@example.com"})
	store.PutUser(model.User{ID: "B", Email: "bob@example.com"})
	store.PutUser(model.User{ID: "C", Name: "Carol"})
	store.PutContest(model.Contest{
		ID: "c1", StartTime: contestStart, EndTime: contestEnd, NumQuestions: 4,
		Questions: []string{"easy", "med", "hard", "unrated"}, Participants: participants,
	})
	return store
}

func accepted(store *memstore.Store, id, user, question string, verdict model.Verdict) {
	contestID := "c1"
	store.PutSubmission(model.Submission{ID: id, UserID: user, QuestionID: question, ContestID: &contestID, Verdict: verdict})
}

func TestLeaderboardScoresDistinctAcceptedSolves(t *testing.T) {
	store := leaderboardStore("A", "B")
	accepted(store, "1", "A", "hard", model.VerdictAccepted)
	accepted(store, "2", "A", "hard", model.VerdictAccepted) // duplicate solve
	accepted(store, "3", "B", "easy", model.VerdictAccepted)
	accepted(store, "4", "B", "med", "accepted") // legacy lower-case
	accepted(store, "5", "B", "hard", "Wrong Answer")
	accepted(store, "6", "stranger", "hard", model.VerdictAccepted)

	svc := service.NewLeaderboardService(store.Contests(), store.Submissions(), store.Users(), store.Questions())
	lb, err := svc.Compute(context.Background(), "c1", contestStart.Add(time.Minute))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if lb.Snapshot {
		t.Fatalf("live leaderboard must not be a snapshot")
	}
	want := []model.LeaderboardEntry{
		{UserID: "B", Name: "bob@example.com", Score: 8, Solved: 2},
		{UserID: "A", Name: "Alice", Score: 7, Solved: 1},
	}
	if len(lb.Entries) != len(want) {
		t.Fatalf("entries = %+v", lb.Entries)
	}
	for i := range want {
		if lb.Entries[i] != want[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, lb.Entries[i], want[i])
		}
	}
}

func TestLeaderboardTieBreakAndZeroScores(t *testing.T) {
	store := leaderboardStore("A", "B", "C")
	accepted(store, "1", "A", "hard", model.VerdictAccepted)
	accepted(store, "2", "C", "easy", model.VerdictAccepted)
	accepted(store, "3", "C", "unrated", model.VerdictAccepted) // no difficulty, scores as Easy
	accepted(store, "4", "C", "unrated", model.VerdictAccepted)
	accepted(store, "5", "C", "missing-question", model.VerdictAccepted)
	svc := service.NewLeaderboardService(store.Contests(), store.Submissions(), store.Users(), store.Questions())

	lb, err := svc.Compute(context.Background(), "c1", contestStart)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if lb.Entries[0].UserID != "C" || lb.Entries[0].Score != 9 || lb.Entries[0].Solved != 3 {
		t.Fatalf("unexpected leader %+v", lb.Entries[0])
	}
	if lb.Entries[1].UserID != "A" || lb.Entries[1].Score != 7 {
		t.Fatalf("unexpected second %+v", lb.Entries[1])
	}
	if lb.Entries[2].UserID != "B" || lb.Entries[2].Score != 0 || lb.Entries[2].Solved != 0 {
		t.Fatalf("participant without solves must still be listed: %+v", lb.Entries[2])
	}
}

func TestLeaderboardEqualScoreMoreSolvesFirst(t *testing.T) {
	store := leaderboardStore("A", "B")
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("m%d", i)
		store.PutQuestion(model.Question{ID: id, Difficulty: model.DifficultyMedium})
		accepted(store, "a"+id, "A", id, model.VerdictAccepted)
	}
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("e%d", i)
		store.PutQuestion(model.Question{ID: id, Difficulty: model.DifficultyEasy})
		accepted(store, "b"+id, "B", id, model.VerdictAccepted)
	}
	svc := service.NewLeaderboardService(store.Contests(), store.Submissions(), store.Users(), store.Questions())

	lb, err := svc.Compute(context.Background(), "c1", contestStart)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if lb.Entries[0].Score != 15 || lb.Entries[1].Score != 15 {
		t.Fatalf("expected a 15-15 tie, got %+v", lb.Entries)
	}
	if lb.Entries[0].UserID != "B" || lb.Entries[0].Solved != 5 {
		t.Fatalf("more solves must rank first on equal score, got %+v", lb.Entries)
	}
}

func TestLeaderboardSnapshotFreezesEndedContest(t *testing.T) {
	store := leaderboardStore("A", "B")
	accepted(store, "1", "A", "easy", model.VerdictAccepted)
	svc := service.NewLeaderboardService(store.Contests(), store.Submissions(), store.Users(), store.Questions())
	ctx := context.Background()
	after := contestEnd.Add(time.Minute)

	first, err := svc.Compute(ctx, "c1", after)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if first.Snapshot {
		t.Fatalf("first read after end computes the board")
	}

	// late data must not change the frozen board
	accepted(store, "2", "B", "hard", model.VerdictAccepted)

	second, err := svc.Compute(ctx, "c1", after.Add(time.Hour))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !second.Snapshot {
		t.Fatalf("second read must come from the snapshot")
	}
	if len(second.Entries) != len(first.Entries) || second.Entries[0] != first.Entries[0] {
		t.Fatalf("snapshot differs: %+v vs %+v", second.Entries, first.Entries)
	}
	if second.Entries[0].UserID != "A" || second.Entries[1].Score != 0 {
		t.Fatalf("late submission leaked into snapshot: %+v", second.Entries)
	}
}

type failingSnapshots struct {
	repository.ContestRepository
}

func (failingSnapshots) SaveLeaderboardSnapshot(context.Context, string, []model.LeaderboardEntry, time.Time) error {
	return errors.New("disk full")
}

func TestLeaderboardSnapshotFailureIsNotFatal(t *testing.T) {
	store := leaderboardStore("A")
	accepted(store, "1", "A", "med", model.VerdictAccepted)
	svc := service.NewLeaderboardService(failingSnapshots{store.Contests()}, store.Submissions(), store.Users(), store.Questions())

	lb, err := svc.Compute(context.Background(), "c1", contestEnd.Add(time.Second))
	if err != nil {
		t.Fatalf("Compute must succeed when the snapshot write fails: %v", err)
	}
	if lb.Snapshot || len(lb.Entries) != 1 || lb.Entries[0].Score != 5 {
		t.Fatalf("unexpected leaderboard %+v", lb)
	}
}

func TestLeaderboardUnknownContest(t *testing.T) {
	store := memstore.New()
	svc := service.NewLeaderboardService(store.Contests(), store.Submissions(), store.Users(), store.Questions())
	if _, err := svc.Compute(context.Background(), "nope", contestStart); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLeaderboardTwoParticipants(t *testing.T) {
	store := leaderboardStore("A", "B")
	accepted(store, "1", "A", "easy", model.VerdictAccepted)
	accepted(store, "2", "A", "med", model.VerdictAccepted)
	accepted(store, "3", "B", "hard", model.VerdictAccepted)
	svc := service.NewLeaderboardService(store.Contests(), store.Submissions(), store.Users(), store.Questions())

	lb, err := svc.Compute(context.Background(), "c1", contestStart)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	want := []model.LeaderboardEntry{
		{UserID: "A", Name: "Alice", Score: 8, Solved: 2},
		{UserID: "B", Name: "bob@example.com", Score: 7, Solved: 1},
	}
	for i := range want {
		if lb.Entries[i] != want[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, lb.Entries[i], want[i])
		}
	}
}
