package puzzle

import (
	"fmt"
	"strings"
)

// Operation is the arithmetic applied to the two selected disk values.
type Operation int

const (
	Addition Operation = iota
	Subtraction
	Multiplication
	Division
)

// Difficulty selects the disk pools for an operation.
type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
)

var (
	operationNames  = [...]string{"Addition", "Subtraction", "Multiplication", "Division"}
	operationSymbol = [...]string{"+", "-", "*", "/"}
	difficultyNames = [...]string{"Easy", "Medium", "Hard"}
)

// Operations lists every operation in table order.
func Operations() []Operation {
	return []Operation{Addition, Subtraction, Multiplication, Division}
}

// Difficulties lists every difficulty in table order.
func Difficulties() []Difficulty {
	return []Difficulty{Easy, Medium, Hard}
}

func (o Operation) valid() bool { return o >= Addition && o <= Division }

func (o Operation) String() string {
	if !o.valid() {
		return fmt.Sprintf("Operation(%d)", int(o))
	}
	return operationNames[o]
}

// Key is the lower-case name used in pool keys and URLs.
func (o Operation) Key() string { return strings.ToLower(o.String()) }

// Symbol is the operator shown between the two selected numbers.
func (o Operation) Symbol() string {
	if !o.valid() {
		return "?"
	}
	return operationSymbol[o]
}

// ParseOperation accepts full names, short names and operator symbols.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "addition", "add", "plus", "+":
		return Addition, nil
	case "subtraction", "subtract", "sub", "minus", "-":
		return Subtraction, nil
	case "multiplication", "multiply", "mul", "times", "*", "x", "×":
		return Multiplication, nil
	case "division", "divide", "div", "/", "÷":
		return Division, nil
	}
	return 0, fmt.Errorf("unknown operation %q", s)
}

func (d Difficulty) valid() bool { return d >= Easy && d <= Hard }

func (d Difficulty) String() string {
	if !d.valid() {
		return fmt.Sprintf("Difficulty(%d)", int(d))
	}
	return difficultyNames[d]
}

// Key is the lower-case name used in pool keys and URLs.
func (d Difficulty) Key() string { return strings.ToLower(d.String()) }

// ParseDifficulty accepts difficulty names case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return Easy, nil
	case "medium":
		return Medium, nil
	case "hard":
		return Hard, nil
	}
	return 0, fmt.Errorf("unknown difficulty %q", s)
}

// PoolSize is the number of values on each disk.
const PoolSize = 6

// DiskPool holds the values printed on the left and right disks.
type DiskPool struct {
	Left  [PoolSize]int `json:"left"`
	Right [PoolSize]int `json:"right"`
}

// EvaluationResult is the outcome of one answer submission.
type EvaluationResult struct {
	Correct       bool `json:"correct"`
	PointsAwarded int  `json:"points_awarded"`
	NewStreak     int  `json:"new_streak"`
	// Result is the value the selected numbers produce; zero when the
	// operation is undefined for them (zero divisor, inexact division).
	Result     int  `json:"result"`
	Defined    bool `json:"defined"`
	Target     int  `json:"target"`
	NextTarget int  `json:"next_target"`
}

// State is a read-only copy of the engine's session state.
type State struct {
	Operation     Operation  `json:"-"`
	Difficulty    Difficulty `json:"-"`
	Target        int        `json:"target"`
	LeftSelected  int        `json:"left_selected"`
	RightSelected int        `json:"right_selected"`
	Score         int        `json:"score"`
	Streak        int        `json:"streak"`
	RecentTargets []int      `json:"recent_targets"`
}

// Expression renders the current selection, e.g. "3 + 4".
func (s State) Expression() string {
	return fmt.Sprintf("%d %s %d", s.LeftSelected, s.Operation.Symbol(), s.RightSelected)
}
