// Package transliterate validates transliteration queries, calls the engine
// and shapes its output into ranked suggestions.
package transliterate

// ErrorKind names a client-visible failure. Values are part of the HTTP
// contract and must not change.
type ErrorKind string

const (
	KindInvalidRequest ErrorKind = "InvalidRequest"
	KindEngineFailure  ErrorKind = "EngineFailure"
)

// Modes accepted when none are configured.
const (
	ModeSpoken = "spoken"
	ModeFormal = "formal"
)

// Query is a single transliteration request.
type Query struct {
	Text  string
	Mode  string
	Limit int
}

// Suggestion is one ranked candidate.
type Suggestion struct {
	Word  string  `json:"word"`
	Ta    string  `json:"ta"`
	Score float64 `json:"score"`
}

// Result is the outcome of Handle. Error is empty when Success is true.
type Result struct {
	Success     bool
	Suggestions []Suggestion
	Error       ErrorKind
}

func failed(kind ErrorKind) Result {
	return Result{Error: kind}
}
