package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"codeclash/internal/app/judge"
	"codeclash/internal/common"
	"codeclash/internal/domain/model"
	"codeclash/internal/domain/repository"
	"codeclash/internal/platform/logger"
	"codeclash/internal/platform/metrics"

	"go.uber.org/zap"
)

// VerdictService owns the Judging -> terminal transition of a submission.
type VerdictService struct {
	submissionRepo repository.SubmissionRepository
	questionRepo   repository.QuestionRepository
	judge          judge.Dispatcher
	timeout        time.Duration
}

func NewVerdictService(
	subRepo repository.SubmissionRepository,
	questionRepo repository.QuestionRepository,
	dispatcher judge.Dispatcher,
	timeout time.Duration,
) *VerdictService {
	return &VerdictService{
		submissionRepo: subRepo,
		questionRepo:   questionRepo,
		judge:          dispatcher,
		timeout:        timeout,
	}
}

// Evaluate runs every test case of the submission's question in order and writes
// exactly one terminal verdict. Submissions that are already terminal are left alone.
// If ctx is cancelled mid-run the submission stays Judging and the returned error
// wraps ctx.Err(), so the caller can hand it back to the queue.
func (s *VerdictService) Evaluate(ctx context.Context, submissionID string) error {
	ctx = logger.WithSubmissionID(ctx, submissionID)

	sub, err := s.submissionRepo.FindByID(ctx, submissionID)
	if err != nil {
		return common.Errorf("load submission %s: %w", submissionID, err)
	}
	if sub.Verdict.IsTerminal() {
		logger.Info(ctx, "submission already judged, skipping", zap.String("verdict", string(sub.Verdict)))
		return nil
	}

	started := time.Now()
	defer func() { metrics.EvaluationDuration.Observe(time.Since(started).Seconds()) }()

	evalCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	upd, err := s.judgeSubmission(evalCtx, sub)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn(ctx, "evaluation interrupted, submission left in Judging", zap.Error(err))
			return fmt.Errorf("evaluate submission %s: %w", submissionID, ctx.Err())
		}
		logger.Error(ctx, "evaluation failed, recording system error", zap.Error(err))
		upd = model.VerdictUpdate{Verdict: model.VerdictSystemError}
	}
	return s.finalize(ctx, sub.ID, upd)
}

func (s *VerdictService) judgeSubmission(ctx context.Context, sub *model.Submission) (model.VerdictUpdate, error) {
	question, err := s.questionRepo.FindByID(ctx, sub.QuestionID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return model.VerdictUpdate{}, fmt.Errorf("load question %s: %w", sub.QuestionID, err)
	}
	if question == nil || len(question.TestCases) == 0 {
		logger.Warn(ctx, "question missing or has no test cases", zap.String("question_id", sub.QuestionID))
		return model.VerdictUpdate{Verdict: model.VerdictNoTestCases}, nil
	}

	languageID, err := strconv.Atoi(strings.TrimSpace(sub.Language))
	if err != nil || languageID <= 0 {
		return model.VerdictUpdate{}, fmt.Errorf("language %q is not a judge language id", sub.Language)
	}

	var last *judge.Result
	for i, tc := range question.TestCases {
		res, err := s.judge.Evaluate(ctx, judge.Request{
			LanguageID:     languageID,
			SourceCode:     sub.Code,
			Stdin:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
		})
		if err != nil {
			return model.VerdictUpdate{}, fmt.Errorf("test case %d/%d: %w", i+1, len(question.TestCases), err)
		}
		last = res
		if !res.Accepted() {
			logger.Info(ctx, "test case failed",
				zap.Int("case", i+1), zap.String("status", res.Description))
			return verdictUpdateFrom(model.Verdict(res.Description), res), nil
		}
	}
	return verdictUpdateFrom(model.VerdictAccepted, last), nil
}

func verdictUpdateFrom(v model.Verdict, res *judge.Result) model.VerdictUpdate {
	upd := model.VerdictUpdate{Verdict: v, ExecutionTime: res.Time, JudgeStatus: res.Raw}
	if res.Token != "" {
		token := res.Token
		upd.JudgeToken = &token
	}
	return upd
}

func (s *VerdictService) finalize(ctx context.Context, submissionID string, upd model.VerdictUpdate) error {
	written, err := s.submissionRepo.FinalizeVerdict(ctx, submissionID, upd)
	if err != nil {
		logger.Error(ctx, "failed to write verdict", zap.String("verdict", string(upd.Verdict)), zap.Error(err))
		return common.Errorf("write verdict for %s: %w", submissionID, err)
	}
	if !written {
		logger.Warn(ctx, "verdict already written by another evaluation", zap.String("verdict", string(upd.Verdict)))
		return nil
	}
	metrics.Verdicts.WithLabelValues(verdictLabel(upd.Verdict)).Inc()
	logger.Info(ctx, "verdict written", zap.String("verdict", string(upd.Verdict)))
	return nil
}

func verdictLabel(v model.Verdict) string {
	switch v {
	case model.VerdictNoTestCases:
		return "no_test_cases"
	case model.VerdictSystemError:
		return "system_error"
	}
	return strings.ReplaceAll(strings.ToLower(string(v)), " ", "_")
}
