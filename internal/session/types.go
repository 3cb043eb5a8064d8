package session

import (
	"time"

	"docquote/internal/grounding"
)

// Entry is one answered question in the session history. The session keeps
// history for the current document only; loading a new document discards it
// along with any in-flight work.
type Entry struct {
	ID              string            `json:"id"`
	Question        string            `json:"question"`
	Answer          *grounding.Answer `json:"answer"`
	Tier            string            `json:"tier"`
	DocumentVersion uint64            `json:"document_version"`
	AskedAt         time.Time         `json:"asked_at"`
}
