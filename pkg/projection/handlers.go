package projection

import "encoding/json"

// Read-model state values. Projection tables store states as text so rows
// stay readable without the Go enums.
const (
	stateActive     = "active"
	stateInactive   = "inactive"
	stateInitial    = "initial"
	stateLocked     = "locked"
	stateTerminated = "terminated"
)

// DefaultHandlers returns every projection of the backend.
func DefaultHandlers() []Handler {
	return []Handler{
		NewOrgProjection(),
		NewUserProjection(),
		NewProjectProjection(),
		NewMemberProjection(),
		NewAppProjection(),
		NewSessionProjection(),
		NewIDPProjection(),
		NewNotifyConfigProjection(),
		NewActionProjection(),
		NewPolicyProjection(),
		NewWebKeyProjection(),
	}
}

// jsonStrings encodes a string slice for a TEXT column. Nil encodes as the
// empty list so columns never hold SQL NULL.
func jsonStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}
