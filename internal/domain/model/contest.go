package model

import "time"

type ContestStatus string

const (
	ContestUpcoming ContestStatus = "Upcoming"
	ContestLive     ContestStatus = "Live"
	ContestEnded    ContestStatus = "Ended"
)

type Contest struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
	NumQuestions int       `json:"numQuestions"`
	// Questions is ordered and holds no duplicates. It is written once through a
	// compare-and-set on emptiness.
	Questions    []string  `json:"questions"`
	Participants []string  `json:"participants"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	LeaderboardSnapshot          []LeaderboardEntry `json:"-"`
	LeaderboardSnapshotUpdatedAt *time.Time         `json:"-"`
}

// StatusAt derives the lifecycle state at now. Both window edges count as Live.
func (c *Contest) StatusAt(now time.Time) ContestStatus {
	switch {
	case now.Before(c.StartTime):
		return ContestUpcoming
	case now.After(c.EndTime):
		return ContestEnded
	default:
		return ContestLive
	}
}

func (c *Contest) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func (c *Contest) HasQuestion(questionID string) bool {
	for _, q := range c.Questions {
		if q == questionID {
			return true
		}
	}
	return false
}

func (c *Contest) HasSnapshot() bool {
	return c.LeaderboardSnapshotUpdatedAt != nil
}

// Covers reports whether t falls inside the contest window.
func (c *Contest) Covers(t time.Time) bool {
	return !t.Before(c.StartTime) && !t.After(c.EndTime)
}

// ContestView is what clients see: no question list, plus the derived status.
type ContestView struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	StartTime    time.Time     `json:"startTime"`
	EndTime      time.Time     `json:"endTime"`
	NumQuestions int           `json:"numQuestions"`
	Participants int           `json:"participants"`
	CreatedBy    string        `json:"createdBy"`
	Status       ContestStatus `json:"status"`
	ServerTime   time.Time     `json:"serverTime"`
}

func (c *Contest) View(now time.Time) ContestView {
	return ContestView{
		ID:           c.ID,
		Name:         c.Name,
		StartTime:    c.StartTime,
		EndTime:      c.EndTime,
		NumQuestions: c.NumQuestions,
		Participants: len(c.Participants),
		CreatedBy:    c.CreatedBy,
		Status:       c.StatusAt(now),
		ServerTime:   now,
	}
}
