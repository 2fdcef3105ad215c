package internal

import (
	"strings"

	"github.com/google/uuid"
)

// RepoShortName returns the final path segment of a hub repository identifier,
// e.g. "nascenia/bn2en_base" -> "bn2en_base"
func RepoShortName(repoID string) string {
	if idx := strings.LastIndex(repoID, "/"); idx != -1 {
		return repoID[idx+1:]
	}
	return repoID
}

// GenerateRequestID creates a unique ID used to correlate log lines of one session
func GenerateRequestID() string {
	return uuid.NewString()
}
