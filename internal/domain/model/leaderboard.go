package model

type LeaderboardEntry struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Solved int    `json:"solved"`
}

type Leaderboard struct {
	Entries  []LeaderboardEntry `json:"leaderboard"`
	Snapshot bool               `json:"snapshot"`
}
