// Package filter implements composable predicates over stream events,
// used to decide which events a given consumer should actually receive.
package filter

import "github.com/codeready-toolchain/streamweaver/pkg/event"

// Filter decides whether an event should be delivered to a consumer.
// Implementations short-circuit: Composite stops evaluating its children
// as soon as the AND/OR result is determined.
type Filter interface {
	Decide(ev *event.Event) bool
}

// Func adapts a plain function to Filter, mirroring CallableFilter.
type Func func(ev *event.Event) bool

// Decide implements Filter.
func (f Func) Decide(ev *event.Event) bool { return f(ev) }

type visibilityFilter struct {
	allowed map[event.Visibility]bool
}

// Visibility returns a filter that admits events whose Visibility is one
// of the given values.
func Visibility(visibilities ...event.Visibility) Filter {
	allowed := make(map[event.Visibility]bool, len(visibilities))
	for _, v := range visibilities {
		allowed[v] = true
	}
	return &visibilityFilter{allowed: allowed}
}

func (f *visibilityFilter) Decide(ev *event.Event) bool {
	return f.allowed[ev.Visibility]
}

type typeFilter struct {
	types   map[event.Type]bool
	include bool
}

// Type returns a filter over event Type. When include is true, only the
// listed types pass; when false, the listed types are excluded and
// everything else passes.
func Type(include bool, types ...event.Type) Filter {
	set := make(map[event.Type]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return &typeFilter{types: set, include: include}
}

func (f *typeFilter) Decide(ev *event.Event) bool {
	if f.include {
		return f.types[ev.Type]
	}
	return !f.types[ev.Type]
}

type sessionFilter struct {
	sessions map[string]bool
	include  bool
}

// Session returns a filter over SessionID, with the same include/exclude
// semantics as Type.
func Session(include bool, sessionIDs ...string) Filter {
	set := make(map[string]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		set[id] = true
	}
	return &sessionFilter{sessions: set, include: include}
}

func (f *sessionFilter) Decide(ev *event.Event) bool {
	if f.include {
		return f.sessions[ev.SessionID]
	}
	return !f.sessions[ev.SessionID]
}

type notFilter struct {
	inner Filter
}

// Not negates the decision of inner.
func Not(inner Filter) Filter {
	return &notFilter{inner: inner}
}

func (f *notFilter) Decide(ev *event.Event) bool {
	return !f.inner.Decide(ev)
}

type compositeOp int

const (
	opAnd compositeOp = iota
	opOr
)

type compositeFilter struct {
	filters []Filter
	op      compositeOp
}

// And returns a filter admitting an event only if every child filter
// admits it. Evaluation stops at the first rejection.
func And(filters ...Filter) Filter {
	return &compositeFilter{filters: filters, op: opAnd}
}

// Or returns a filter admitting an event if any child filter admits it.
// Evaluation stops at the first acceptance.
func Or(filters ...Filter) Filter {
	return &compositeFilter{filters: filters, op: opOr}
}

func (f *compositeFilter) Decide(ev *event.Event) bool {
	switch f.op {
	case opAnd:
		for _, child := range f.filters {
			if !child.Decide(ev) {
				return false
			}
		}
		return true
	default: // opOr
		for _, child := range f.filters {
			if child.Decide(ev) {
				return true
			}
		}
		return false
	}
}

// Apply returns the subset of events that pass f, preserving order.
func Apply(f Filter, events []*event.Event) []*event.Event {
	if f == nil {
		return events
	}
	out := make([]*event.Event, 0, len(events))
	for _, ev := range events {
		if f.Decide(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// UserFacing admits only events meant for the user-facing chat UI.
var UserFacing = Visibility(event.VisibilityUserFacing)

// LiveUI admits events meant for the user-facing UI or the live-only
// real-time stream (e.g. reasoning tokens).
var LiveUI = Or(
	Visibility(event.VisibilityUserFacing),
	Visibility(event.VisibilityLiveUIOnly),
)

// NoHeartbeat excludes heartbeat keep-alive events.
var NoHeartbeat = Type(false, event.TypeHeartbeat)

// ProgressOnly admits only the event types a progress bar cares about.
var ProgressOnly = Type(true,
	event.TypeWorkflowStarted,
	event.TypeStepStarted,
	event.TypeStepProgress,
	event.TypeStepCompleted,
	event.TypeWorkflowCompleted,
)
