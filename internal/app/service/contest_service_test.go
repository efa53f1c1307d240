package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"codeclash/internal/app/service"
	"codeclash/internal/common"
	"codeclash/internal/domain/model"
	"codeclash/internal/domain/repository/memstore"
)

var (
	contestStart = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	contestEnd   = contestStart.Add(2 * time.Hour)
)

func newContestStore(questions, numQuestions int) *memstore.Store {
	store := memstore.New()
	for i := 0; i < questions; i++ {
		store.PutQuestion(model.Question{ID: fmt.Sprintf("q%02d", i), Title: fmt.Sprintf("Q%d", i), Difficulty: model.DifficultyMedium})
	}
	store.PutContest(model.Contest{
		ID: "c1", Name: "Weekly", StartTime: contestStart, EndTime: contestEnd,
		NumQuestions: numQuestions, CreatedBy: "owner",
	})
	return store
}

func TestConcurrentJoinsAssignQuestionsOnce(t *testing.T) {
	store := newContestStore(10, 4)
	svc := service.NewContestService(store.Contests(), store.Questions(), 5)
	ctx := context.Background()

	const joiners = 100
	var wg sync.WaitGroup
	seen := make([][]string, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Join(ctx, "c1", fmt.Sprintf("u%d", i), contestStart.Add(-time.Minute)); err != nil {
				t.Errorf("join %d: %v", i, err)
				return
			}
			c, _ := store.Contests().FindByID(ctx, "c1")
			seen[i] = c.Questions
		}(i)
	}
	wg.Wait()

	final, _ := store.Contests().FindByID(ctx, "c1")
	if len(final.Questions) != 4 {
		t.Fatalf("expected 4 questions, got %v", final.Questions)
	}
	if len(final.Participants) != joiners {
		t.Fatalf("expected %d participants, got %d", joiners, len(final.Participants))
	}
	unique := map[string]bool{}
	for _, q := range final.Questions {
		if unique[q] {
			t.Fatalf("duplicate question %s", q)
		}
		unique[q] = true
	}
	for i, qs := range seen {
		if fmt.Sprint(qs) != fmt.Sprint(final.Questions) {
			t.Fatalf("joiner %d observed %v, final is %v", i, qs, final.Questions)
		}
	}
}

func TestAssignUsesWholePoolWhenSmaller(t *testing.T) {
	store := newContestStore(3, 5)
	svc := service.NewContestService(store.Contests(), store.Questions(), 5)
	ctx := context.Background()

	contest, _ := store.Contests().FindByID(ctx, "c1")
	got, err := svc.AssignQuestionsIfEmpty(ctx, contest, 5)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected all 3 questions, got %v", got)
	}
}

func TestAssignWithEmptyPool(t *testing.T) {
	store := newContestStore(0, 5)
	svc := service.NewContestService(store.Contests(), store.Questions(), 5)
	ctx := context.Background()

	contest, _ := store.Contests().FindByID(ctx, "c1")
	got, err := svc.AssignQuestionsIfEmpty(ctx, contest, 5)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty assignment, got %v", got)
	}
}

func TestAssignIsNoOpWhenAlreadyAssigned(t *testing.T) {
	store := newContestStore(10, 2)
	ctx := context.Background()
	if _, err := store.Contests().AssignQuestionsIfEmpty(ctx, "c1", []string{"q01", "q02"}); err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	svc := service.NewContestService(store.Contests(), store.Questions(), 5)

	contest, _ := store.Contests().FindByID(ctx, "c1")
	got, _ := svc.AssignQuestionsIfEmpty(ctx, contest, 2)
	if fmt.Sprint(got) != "[q01 q02]" {
		t.Fatalf("existing assignment replaced: %v", got)
	}
}

func TestAssignFallsBackToContestQuota(t *testing.T) {
	store := newContestStore(10, 4)
	svc := service.NewContestService(store.Contests(), store.Questions(), 5)
	ctx := context.Background()

	contest, _ := store.Contests().FindByID(ctx, "c1")
	got, _ := svc.AssignQuestionsIfEmpty(ctx, contest, 0)
	if len(got) != 4 {
		t.Fatalf("expected the contest quota of 4 questions, got %d", len(got))
	}

	// requests above the quota are capped
	store = newContestStore(10, 2)
	contest, _ = store.Contests().FindByID(ctx, "c1")
	got, _ = service.NewContestService(store.Contests(), store.Questions(), 5).AssignQuestionsIfEmpty(ctx, contest, 7)
	if len(got) != 2 {
		t.Fatalf("expected the request capped at 2, got %d", len(got))
	}
}

func TestJoinZeroQuotaContestAssignsNothing(t *testing.T) {
	store := newContestStore(7, 0)
	svc := service.NewContestService(store.Contests(), store.Questions(), 5)
	ctx := context.Background()

	if _, err := svc.Join(ctx, "c1", "u1", contestStart); err != nil {
		t.Fatalf("Join: %v", err)
	}
	contest, _ := store.Contests().FindByID(ctx, "c1")
	if len(contest.Questions) > contest.NumQuestions {
		t.Fatalf("quota exceeded: %d questions for numQuestions=%d", len(contest.Questions), contest.NumQuestions)
	}
	if len(contest.Questions) != 0 {
		t.Fatalf("expected no questions, got %v", contest.Questions)
	}
}

func TestReassignZeroQuotaUsesDefault(t *testing.T) {
	store := newContestStore(7, 0)
	svc := service.NewContestService(store.Contests(), store.Questions(), 5)
	ctx := context.Background()

	got, err := svc.Reassign(ctx, "c1", "owner", 0)
	if err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	contest, _ := store.Contests().FindByID(ctx, "c1")
	if len(got) != 5 || contest.NumQuestions != 5 {
		t.Fatalf("expected default quota of 5, got %d questions, numQuestions=%d", len(got), contest.NumQuestions)
	}
}

func TestJoinEndedContestForbidden(t *testing.T) {
	store := newContestStore(5, 3)
	svc := service.NewContestService(store.Contests(), store.Questions(), 5)

	_, err := svc.Join(context.Background(), "c1", "u1", contestEnd.Add(time.Second))
	if !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestJoinUnknownContest(t *testing.T) {
	store := newContestStore(5, 3)
	svc := service.NewContestService(store.Contests(), store.Questions(), 5)

	_, err := svc.Join(context.Background(), "nope", "u1", contestStart)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	store := newContestStore(5, 3)
	svc := service.NewContestService(store.Contests(), store.Questions(), 5)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		view, err := svc.Join(ctx, "c1", "u1", contestStart)
		if err != nil {
			t.Fatalf("join: %v", err)
		}
		if view.Participants != 1 || view.Status != model.ContestLive {
			t.Fatalf("unexpected view %+v", view)
		}
	}
}

func TestGetStatus(t *testing.T) {
	store := newContestStore(0, 3)
	svc := service.NewContestService(store.Contests(), store.Questions(), 5)
	ctx := context.Background()

	for now, want := range map[time.Time]model.ContestStatus{
		contestStart.Add(-time.Second): model.ContestUpcoming,
		contestStart:                   model.ContestLive,
		contestEnd:                     model.ContestLive,
		contestEnd.Add(time.Second):    model.ContestEnded,
	} {
		got, err := svc.GetStatus(ctx, "c1", now)
		if err != nil || got != want {
			t.Fatalf("GetStatus(%v) = %s, %v; want %s", now, got, err, want)
		}
	}
}

func TestGetQuestionsVisibility(t *testing.T) {
	store := newContestStore(6, 3)
	svc := service.NewContestService(store.Contests(), store.Questions(), 5)
	ctx := context.Background()

	if _, err := svc.Join(ctx, "c1", "u1", contestStart.Add(-time.Hour)); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := svc.GetQuestions(ctx, "c1", "stranger", contestStart); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("non participant: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.GetQuestions(ctx, "c1", "u1", contestStart.Add(-time.Minute)); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("before start: expected ErrForbidden, got %v", err)
	}

	got, err := svc.GetQuestions(ctx, "c1", "u1", contestStart)
	if err != nil {
		t.Fatalf("GetQuestions: %v", err)
	}
	contest, _ := store.Contests().FindByID(ctx, "c1")
	if len(got) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(got))
	}
	for i, q := range got {
		if q.ID != contest.Questions[i] {
			t.Fatalf("questions out of contest order: %v vs %v", got, contest.Questions)
		}
	}
}

func TestReassignCreatorOnly(t *testing.T) {
	store := newContestStore(10, 3)
	svc := service.NewContestService(store.Contests(), store.Questions(), 5)
	ctx := context.Background()

	if _, err := svc.Reassign(ctx, "c1", "u1", 3); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	got, err := svc.Reassign(ctx, "c1", "owner", 6)
	if err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	contest, _ := store.Contests().FindByID(ctx, "c1")
	if len(got) != 6 || contest.NumQuestions != 6 || len(contest.Questions) != 6 {
		t.Fatalf("unexpected reassignment: got %v, contest %+v", got, contest)
	}
}

func TestAssignThreeOfFive(t *testing.T) {
	store := newContestStore(5, 3)
	svc := service.NewContestService(store.Contests(), store.Questions(), 5)
	ctx := context.Background()

	contest, _ := store.Contests().FindByID(ctx, "c1")
	got, err := svc.AssignQuestionsIfEmpty(ctx, contest, 3)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(got) != 3 || got[0] == got[1] || got[1] == got[2] || got[0] == got[2] {
		t.Fatalf("expected 3 distinct questions, got %v", got)
	}
}
