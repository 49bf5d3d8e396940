package game

import (
	"disk-spinner/internal/puzzle"
	"disk-spinner/internal/session"
)

// CreateSessionRequest is the JSON body for POST /game/sessions. Empty
// fields default to addition and easy.
type CreateSessionRequest struct {
	Operation  string `json:"operation"`
	Difficulty string `json:"difficulty"`
}

// ConfigRequest is the JSON body for PUT /game/sessions/{id}/config.
// Omitted fields keep the session's current value.
type ConfigRequest struct {
	Operation  *string `json:"operation"`
	Difficulty *string `json:"difficulty"`
}

// RotateRequest is the JSON body for POST .../disks/{side}/rotate.
// Negative steps turn counter-clockwise.
type RotateRequest struct {
	Steps int `json:"steps"`
}

// SelectRequest is the JSON body for PUT .../disks/{side}.
type SelectRequest struct {
	Value *int `json:"value"`
}

// AnswerRequest is the optional JSON body for POST .../answer. When set,
// the values are selected before the answer is checked.
type AnswerRequest struct {
	Left  *int `json:"left"`
	Right *int `json:"right"`
}

// AnswerResponse is returned by POST .../answer.
type AnswerResponse struct {
	Evaluation puzzle.EvaluationResult `json:"evaluation"`
	Session    session.View            `json:"session"`
}

// FinishResponse is returned by DELETE /game/sessions/{id}.
type FinishResponse struct {
	ID     string         `json:"id"`
	Result session.Result `json:"result"`
}

// PoolResponse describes one row of the pool table.
type PoolResponse struct {
	Operation  string               `json:"operation"`
	Difficulty string               `json:"difficulty"`
	Symbol     string               `json:"symbol"`
	Left       [puzzle.PoolSize]int `json:"left"`
	Right      [puzzle.PoolSize]int `json:"right"`
	Reachable  []int                `json:"reachable"`
}

func newPoolResponse(op puzzle.Operation, diff puzzle.Difficulty, p puzzle.DiskPool) PoolResponse {
	return PoolResponse{
		Operation:  op.Key(),
		Difficulty: diff.Key(),
		Symbol:     op.Symbol(),
		Left:       p.Left,
		Right:      p.Right,
		Reachable:  puzzle.Reachable(op, p),
	}
}

// HighScoreResponse is returned by GET /game/highscores/{operation}/{difficulty}.
type HighScoreResponse struct {
	Operation  string `json:"operation"`
	Difficulty string `json:"difficulty"`
	Key        string `json:"key"`
	HighScore  int    `json:"high_score"`
}
