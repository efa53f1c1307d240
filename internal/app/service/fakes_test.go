package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"codeclash/internal/app/judge"
)

type scriptedJudge struct {
	mu       sync.Mutex
	results  []*judge.Result
	errs     []error
	requests []judge.Request
	block    bool
}

func (j *scriptedJudge) Evaluate(ctx context.Context, req judge.Request) (*judge.Result, error) {
	j.mu.Lock()
	i := len(j.requests)
	j.requests = append(j.requests, req)
	block := j.block
	j.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, errors.Join(judge.ErrDispatch, ctx.Err())
	}
	if i < len(j.errs) && j.errs[i] != nil {
		return nil, j.errs[i]
	}
	if i >= len(j.results) {
		return nil, errors.New("unexpected judge call")
	}
	return j.results[i], nil
}

func (j *scriptedJudge) calls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.requests)
}

func status(id judge.StatusID, ms int) *judge.Result {
	d := time.Duration(ms) * time.Millisecond
	return &judge.Result{StatusID: id, Description: id.Description(), Time: &d, Token: "tok", Raw: []byte(`{"status":{}}`)}
}

type fakeQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *fakeQueue) Enqueue(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}
