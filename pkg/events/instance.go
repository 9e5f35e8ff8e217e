package events

import "github.com/auriga-id/auriga/pkg/eventstore"

// Instance aggregate events: actions, executions and backchannel session
// termination.
const (
	InstanceActionAddedType       eventstore.EventType = "instance.action.added"
	InstanceActionChangedType     eventstore.EventType = "instance.action.changed"
	InstanceActionDeactivatedType eventstore.EventType = "instance.action.deactivated"
	InstanceActionReactivatedType eventstore.EventType = "instance.action.reactivated"
	InstanceActionRemovedType     eventstore.EventType = "instance.action.removed"

	InstanceExecutionSetType     eventstore.EventType = "instance.execution.set"
	InstanceExecutionRemovedType eventstore.EventType = "instance.execution.removed"
)

type InstanceActionAdded struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Script        string `json:"script"`
	Timeout       int64  `json:"timeout,omitempty"` // nanoseconds
	AllowedToFail bool   `json:"allowedToFail,omitempty"`
}

type InstanceActionChanged struct {
	ID            string  `json:"id"`
	Name          *string `json:"name,omitempty"`
	Script        *string `json:"script,omitempty"`
	Timeout       *int64  `json:"timeout,omitempty"`
	AllowedToFail *bool   `json:"allowedToFail,omitempty"`
}

type InstanceActionStateChanged struct {
	ID string `json:"id"`
}

type InstanceActionRemoved struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// InstanceExecutionSet binds a trigger condition to an ordered target list.
type InstanceExecutionSet struct {
	Condition string   `json:"condition"`
	Targets   []string `json:"targets"`
}

type InstanceExecutionRemoved struct {
	Condition string `json:"condition"`
}
