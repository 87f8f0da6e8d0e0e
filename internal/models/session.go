// internal/models/session.go
package models

import "time"

// SessionState 会话状态
type SessionState int32

const (
	SessionConnecting SessionState = iota
	SessionReady
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionReady:
		return "ready"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionInfo 会话元数据快照
type SessionInfo struct {
	ID           string    `json:"id"`
	State        string    `json:"state"`
	RemoteAddr   string    `json:"remote_addr,omitempty"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
}
