package service

import (
	"strings"

	"github.com/google/uuid"
)

// Workflow ID prefixes. Request-phase IDs are distinct from confirmed-session
// IDs so a record's phase is readable from its identifier alone.
const (
	accessRequestPrefix = "REQ"
	accessSessionPrefix = "VIS"
	keyRequestPrefix    = "KREQ"
	keyCustodyPrefix    = "KEY"
)

func newWorkflowID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + strings.ToUpper(raw[:10])
}
