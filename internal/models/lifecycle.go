package models

import "fmt"

// Status is the soft-delete lifecycle state stored on every managed entity.
type Status string

const (
	// StatusActive marks a row as visible and usable.
	StatusActive Status = "active"
	// StatusInactive marks a soft-deleted row.
	StatusInactive Status = "inactive"
	// StatusGraduated marks a student who completed the programme.
	StatusGraduated Status = "graduated"
	// StatusTransferred marks a student who moved to another school.
	StatusTransferred Status = "transferred"
)

// Lifecycle holds the allowed status transitions for one entity kind.
type Lifecycle struct {
	entity      string
	transitions map[Status][]Status
}

// NewLifecycle builds a lifecycle from an explicit transition table.
func NewLifecycle(entity string, transitions map[Status][]Status) Lifecycle {
	return Lifecycle{entity: entity, transitions: transitions}
}

var (
	// HalqaLifecycle allows halaqat to be deactivated and reactivated.
	HalqaLifecycle = NewLifecycle("halqa", map[Status][]Status{
		StatusActive:   {StatusInactive},
		StatusInactive: {StatusActive},
	})
	// CourseLifecycle allows courses to be deactivated and reactivated.
	CourseLifecycle = NewLifecycle("course", map[Status][]Status{
		StatusActive:   {StatusInactive},
		StatusInactive: {StatusActive},
	})
	// GradeLifecycle allows grades to be withdrawn and restored.
	GradeLifecycle = NewLifecycle("grade", map[Status][]Status{
		StatusActive:   {StatusInactive},
		StatusInactive: {StatusActive},
	})
	// StudentLifecycle adds graduation and transfer, which have no way back.
	StudentLifecycle = NewLifecycle("student", map[Status][]Status{
		StatusActive:      {StatusInactive, StatusGraduated, StatusTransferred},
		StatusInactive:    {StatusActive},
		StatusGraduated:   {},
		StatusTransferred: {},
	})
)

// Valid reports whether the status belongs to this lifecycle.
func (l Lifecycle) Valid(status Status) bool {
	_, ok := l.transitions[status]
	return ok
}

// Statuses lists every status of the lifecycle in a stable order.
func (l Lifecycle) Statuses() []Status {
	ordered := []Status{StatusActive, StatusInactive, StatusGraduated, StatusTransferred}
	result := make([]Status, 0, len(l.transitions))
	for _, status := range ordered {
		if l.Valid(status) {
			result = append(result, status)
		}
	}
	return result
}

// CanTransition reports whether moving from one status to another is allowed.
func (l Lifecycle) CanTransition(from, to Status) bool {
	for _, next := range l.transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates a status change and returns a descriptive error when it is not allowed.
func (l Lifecycle) Transition(from, to Status) error {
	if !l.Valid(to) {
		return fmt.Errorf("%s status %q is not recognised", l.entity, to)
	}
	if from == to {
		return fmt.Errorf("%s is already %s", l.entity, to)
	}
	if !l.CanTransition(from, to) {
		return fmt.Errorf("%s cannot move from %s to %s", l.entity, from, to)
	}
	return nil
}
