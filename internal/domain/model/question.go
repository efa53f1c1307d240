package model

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Weight is the leaderboard score for solving a question of this difficulty.
// Unknown or empty difficulties score as Easy.
func (d Difficulty) Weight() int {
	switch d {
	case DifficultyMedium:
		return 5
	case DifficultyHard:
		return 7
	default:
		return 3
	}
}

type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

type Question struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Difficulty  Difficulty `json:"difficulty"`
	TestCases   []TestCase `json:"-"`
}

// QuestionSummary is the participant-facing shape; hidden test cases stay server side.
type QuestionSummary struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Difficulty  Difficulty `json:"difficulty"`
}

func (q *Question) Summary() QuestionSummary {
	return QuestionSummary{ID: q.ID, Title: q.Title, Description: q.Description, Difficulty: q.Difficulty}
}
