package aiprovider

import (
	"strings"

	"github.com/shipsec/workflow-engine/errs"
)

// classifyChatError maps a model.ChatModel error into the engine's error
// taxonomy by inspecting its message, since neither provider SDK exports a
// typed error hierarchy worth switching on.
func classifyChatError(nodeID string, err error) *errs.NodeError {
	msg := strings.ToLower(err.Error())
	kind := errs.Internal
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		kind = errs.RateLimited
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "connection") ||
		strings.Contains(msg, "temporary") || strings.Contains(msg, "503") || strings.Contains(msg, "502"):
		kind = errs.Transient
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "401") || strings.Contains(msg, "api key"):
		kind = errs.Authentication
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "400"):
		kind = errs.Validation
	}
	return &errs.NodeError{NodeID: nodeID, Kind: kind, Message: err.Error(), Cause: err}
}
