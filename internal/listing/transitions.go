// File: internal/listing/transitions.go
package listing

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"marketplace_backend/internal/common"
)

// Event is an action that triggers a status transition.
type Event string

const (
	EventSubmit      Event = "submit"
	EventStartReview Event = "start_review"
	EventLock        Event = "lock"
	EventApprove     Event = "approve"
	EventPublish     Event = "publish"
	EventReject      Event = "reject"
	EventResubmit    Event = "resubmit"
	EventUnpublish   Event = "unpublish"
	EventExpire      Event = "expire"
	EventArchive     Event = "archive"
)

// Transition defines a valid status change: an event moves a listing from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions defines all valid status changes in the publication lifecycle.
// REVIEWING and LOCKED are review-time sub-states of IN_REVIEW; approval and
// rejection are allowed from all three. Publish is allowed directly from the
// review states because approval may auto-publish in the same request.
var Transitions = []Transition{
	{Event: EventSubmit, Src: StatusDraft, Dst: StatusInReview},
	{Event: EventStartReview, Src: StatusInReview, Dst: StatusReviewing},
	{Event: EventLock, Src: StatusInReview, Dst: StatusLocked},
	{Event: EventLock, Src: StatusReviewing, Dst: StatusLocked},

	{Event: EventApprove, Src: StatusInReview, Dst: StatusApproved},
	{Event: EventApprove, Src: StatusReviewing, Dst: StatusApproved},
	{Event: EventApprove, Src: StatusLocked, Dst: StatusApproved},

	{Event: EventReject, Src: StatusInReview, Dst: StatusRejected},
	{Event: EventReject, Src: StatusReviewing, Dst: StatusRejected},
	{Event: EventReject, Src: StatusLocked, Dst: StatusRejected},
	{Event: EventResubmit, Src: StatusRejected, Dst: StatusInReview},

	{Event: EventPublish, Src: StatusInReview, Dst: StatusOnline},
	{Event: EventPublish, Src: StatusReviewing, Dst: StatusOnline},
	{Event: EventPublish, Src: StatusLocked, Dst: StatusOnline},
	{Event: EventPublish, Src: StatusApproved, Dst: StatusOnline},
	{Event: EventPublish, Src: StatusOffline, Dst: StatusOnline},

	{Event: EventUnpublish, Src: StatusOnline, Dst: StatusOffline},
	{Event: EventExpire, Src: StatusOnline, Dst: StatusApproved},

	{Event: EventArchive, Src: StatusDraft, Dst: StatusArchived},
	{Event: EventArchive, Src: StatusInReview, Dst: StatusArchived},
	{Event: EventArchive, Src: StatusReviewing, Dst: StatusArchived},
	{Event: EventArchive, Src: StatusLocked, Dst: StatusArchived},
	{Event: EventArchive, Src: StatusApproved, Dst: StatusArchived},
	{Event: EventArchive, Src: StatusRejected, Dst: StatusArchived},
	{Event: EventArchive, Src: StatusOnline, Dst: StatusArchived},
	{Event: EventArchive, Src: StatusOffline, Dst: StatusArchived},
}

// events converts Transitions into looplab/fsm EventDesc format, grouping
// transitions with the same event and destination into one EventDesc with
// multiple source states.
var events = buildEvents()

func buildEvents() []loopfsm.EventDesc {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range Transitions {
		k := key{event: string(t.Event), dst: string(t.Dst)}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], string(t.Src))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{
			Name: k.event,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return out
}

// SourcesFor returns the statuses an event may fire from, in declaration order.
func SourcesFor(event Event) []string {
	var out []string
	for _, t := range Transitions {
		if t.Event == event {
			out = append(out, string(t.Src))
		}
	}
	return out
}

// NextStatus checks whether event is valid from the current status and
// returns the destination status. A disallowed transition yields an
// INVALID_STATE_TRANSITION error naming the actual and expected statuses.
//
// looplab/fsm tracks the current state internally, so a short-lived machine
// is created per call, seeded with the listing's current status.
func NextStatus(ctx context.Context, current Status, event Event) (Status, error) {
	machine := loopfsm.NewFSM(string(current), events, nil)

	if err := machine.Event(ctx, string(event)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &noTransition) {
			return "", common.NewInvalidStateTransitionError(string(current), SourcesFor(event)...)
		}
		return "", err
	}

	return Status(machine.Current()), nil
}
