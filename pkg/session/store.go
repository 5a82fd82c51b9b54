// Package session persists per-user presentation state: the submission
// snapshot, raw evaluation payloads, the chat transcript, and the demo
// session marker. It plays the role browser local/session storage played in
// the original client.
package session

import "context"

// Keys for the per-user state. One submission supersedes the previous one,
// so values are simply overwritten on each run.
const (
	KeyOfferID     = "offer_id"
	KeySubmission  = "submission"
	KeyEvaluation  = "evaluation"
	KeyParsed      = "parsed"
	KeySnapshot    = "market_snapshot"
	KeyTranscript  = "chat_transcript"
	KeyDemoSession = "demo_session"
)

// AnalysisKeys lists everything logout must clear. Clearing keys that are
// already absent is a no-op, never an error.
var AnalysisKeys = []string{
	KeyOfferID, KeySubmission, KeyEvaluation, KeyParsed, KeySnapshot,
	KeyTranscript, KeyDemoSession,
}

// Store is the narrow persistence port for session-scoped values. A stored
// value that fails to decode is reported as absent, not as an error: corrupt
// state must degrade, not crash.
type Store interface {
	PutJSON(ctx context.Context, user, key string, v any) error
	GetJSON(ctx context.Context, user, key string, out any) (bool, error)
	Delete(ctx context.Context, user string, keys ...string) error
}
