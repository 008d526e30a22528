package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Session identifies one control-plane process lifetime in telemetry.
type Session struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSession creates a session with a generated id.
func NewSession() *Session {
	return &Session{
		SessionID: generateSessionID(),
		CreatedAt: time.Now().UTC(),
	}
}

func generateSessionID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("sess-%x", time.Now().UnixNano())
	}
	return "sess-" + hex.EncodeToString(b)
}
