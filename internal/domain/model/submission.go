package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Verdict is either Judging, Accepted, one of the system error verdicts, or the
// remote judge's description of the first failing test case.
type Verdict string

const (
	VerdictJudging     Verdict = "Judging"
	VerdictAccepted    Verdict = "Accepted"
	VerdictSystemError Verdict = "System Error"
	VerdictNoTestCases Verdict = "System Error: No Test Cases"
)

func (v Verdict) IsTerminal() bool {
	return v != "" && v != VerdictJudging
}

// IsAccepted compares case-insensitively so legacy rows written as "accepted" still score.
func (v Verdict) IsAccepted() bool {
	return strings.EqualFold(string(v), string(VerdictAccepted))
}

type Submission struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	QuestionID    string          `json:"questionId"`
	ContestID     *string         `json:"contestId,omitempty"`
	Code          string          `json:"code"`
	Language      string          `json:"language"`
	Verdict       Verdict         `json:"verdict"`
	ExecutionTime *time.Duration  `json:"-"`
	JudgeToken    *string         `json:"judgeToken,omitempty"`
	JudgeStatus   json.RawMessage `json:"judgeStatus,omitempty"`
	SubmittedAt   time.Time       `json:"submittedAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// ExecutionTimeMs is the judge-reported time of the deciding test case in milliseconds.
func (s *Submission) ExecutionTimeMs() *int64 {
	if s.ExecutionTime == nil {
		return nil
	}
	ms := s.ExecutionTime.Milliseconds()
	return &ms
}

func (s Submission) MarshalJSON() ([]byte, error) {
	type alias Submission
	return json.Marshal(struct {
		alias
		ExecutionTimeMs *int64 `json:"executionTime,omitempty"`
	}{alias: alias(s), ExecutionTimeMs: s.ExecutionTimeMs()})
}

// VerdictUpdate is the single terminal write applied to a Judging submission.
type VerdictUpdate struct {
	Verdict       Verdict
	ExecutionTime *time.Duration
	JudgeToken    *string
	JudgeStatus   json.RawMessage
}
