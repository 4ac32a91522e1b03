package model

import (
	"fmt"
	"strings"
	"time"
)

// Kind names a membership collection. The values double as the persisted
// collection names.
type Kind string

const (
	KindParticipant     Kind = "participants"
	KindJoinRequest     Kind = "joinRequests"
	KindWaitlist        Kind = "waitlist"
	KindWithdrawal      Kind = "withdrawals"
	KindPlusOne         Kind = "plusOnes"
	KindPlusOneWaitlist Kind = "plusOneWaitlist"
)

// Kinds lists every collection in roster order.
var Kinds = []Kind{
	KindParticipant,
	KindJoinRequest,
	KindWaitlist,
	KindWithdrawal,
	KindPlusOne,
	KindPlusOneWaitlist,
}

// Valid reports whether k is a known collection.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsPlusOne reports whether records of this kind are keyed by a generated id.
func (k Kind) IsPlusOne() bool {
	return k == KindPlusOne || k == KindPlusOneWaitlist
}

// PlusOneKind returns the plus-one collection selected by the waitlist flag.
func PlusOneKind(isWaitlist bool) Kind {
	if isWaitlist {
		return KindPlusOneWaitlist
	}
	return KindPlusOne
}

// State is a user's position in an event's membership state machine.
type State string

const (
	StateNone              State = "none"
	StateRequested         State = "requested"
	StateWaitlisted        State = "waitlisted"
	StateParticipant       State = "participant"
	StateWithdrawRequested State = "withdraw_requested"
	StatePending           State = "pending"
)

// Member is the shared shape of JoinRequest, Participant, WaitlistEntry and
// WithdrawalRequest records. At is requestedAt or joinedAt depending on kind.
type Member struct {
	UserID          string    `json:"user_id"`
	UserName        string    `json:"user_name"`
	Gender          string    `json:"gender"`
	Age             int       `json:"age"`
	ProfileImageURL string    `json:"profile_image_url"`
	At              time.Time `json:"timestamp"`
}

// PlusOneRequest is a companion slot requested on behalf of a friend.
type PlusOneRequest struct {
	ID                    string    `json:"id"`
	RequesterID           string    `json:"requester_id"`
	RequesterName         string    `json:"requester_name"`
	RequesterProfileImage string    `json:"requester_profile_image"`
	FriendName            string    `json:"friend_name"`
	EventID               string    `json:"event_id"`
	Timestamp             time.Time `json:"timestamp"`
}

// ParticipantID is the synthetic participant id an approved plus-one gets.
func (p PlusOneRequest) ParticipantID() string {
	return p.RequesterID + plusOneMarker + p.ID
}

const (
	plusOneMarker     = "_plusOne_"
	hostPlusOnePrefix = "host" + plusOneMarker
)

// HostPlusOneID returns the participant id for a plus-one added by the host.
func HostPlusOneID(generated string) string {
	return hostPlusOnePrefix + generated
}

// IsSynthetic reports whether a participant id belongs to a plus-one, which
// has no account of its own.
func IsSynthetic(userID string) bool {
	return strings.Contains(userID, plusOneMarker)
}

// Record is one membership document. Exactly one of Member and PlusOne is set,
// matching Kind.
type Record struct {
	Kind    Kind            `json:"kind"`
	Member  *Member         `json:"member,omitempty"`
	PlusOne *PlusOneRequest `json:"plus_one,omitempty"`
}

// NewMemberRecord wraps m as a record of the given user-keyed kind.
func NewMemberRecord(kind Kind, m Member) Record {
	return Record{Kind: kind, Member: &m}
}

// NewPlusOneRecord wraps p as a record of the given plus-one kind.
func NewPlusOneRecord(kind Kind, p PlusOneRequest) Record {
	return Record{Kind: kind, PlusOne: &p}
}

// Key returns the document key: the user id, or the generated plus-one id.
func (r Record) Key() string {
	if r.PlusOne != nil {
		return r.PlusOne.ID
	}
	if r.Member != nil {
		return r.Member.UserID
	}
	return ""
}

// Validate checks that the payload matches the kind.
func (r Record) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("unknown record kind %q", r.Kind)
	}
	if r.Kind.IsPlusOne() {
		if r.PlusOne == nil || r.Member != nil {
			return fmt.Errorf("%s record needs a plus-one payload", r.Kind)
		}
	} else if r.Member == nil || r.PlusOne != nil {
		return fmt.Errorf("%s record needs a member payload", r.Kind)
	}
	if r.Key() == "" {
		return fmt.Errorf("%s record has an empty key", r.Kind)
	}
	return nil
}

// State maps the primary record kinds onto the state machine.
func (r Record) State() State {
	switch r.Kind {
	case KindJoinRequest:
		return StateRequested
	case KindWaitlist:
		return StateWaitlisted
	case KindParticipant:
		return StateParticipant
	case KindWithdrawal:
		return StateWithdrawRequested
	case KindPlusOne:
		return StatePending
	case KindPlusOneWaitlist:
		return StateWaitlisted
	}
	return StateNone
}

// ChangeOp is the mutation kind carried by a Change.
type ChangeOp string

const (
	OpPut    ChangeOp = "put"
	OpDelete ChangeOp = "delete"
)

// Change describes one committed membership mutation.
type Change struct {
	EventID string   `json:"event_id"`
	Kind    Kind     `json:"kind"`
	Key     string   `json:"key"`
	Op      ChangeOp `json:"op"`
}

// Status is the per-user view of an event's membership.
type Status struct {
	State                State `json:"state"`
	HasRequested         bool  `json:"has_requested"`
	HasJoined            bool  `json:"has_joined"`
	HasWithdrawRequested bool  `json:"has_withdraw_requested"`
	IsWaitlisted         bool  `json:"is_waitlisted"`
}

// Roster is every membership collection of one event in insertion order.
type Roster struct {
	EventID         string           `json:"event_id"`
	Capacity        int              `json:"capacity"`
	Participants    []Member         `json:"participants"`
	JoinRequests    []Member         `json:"join_requests"`
	Waitlist        []Member         `json:"waitlist"`
	Withdrawals     []Member         `json:"withdrawals"`
	PlusOnes        []PlusOneRequest `json:"plus_ones"`
	PlusOneWaitlist []PlusOneRequest `json:"plus_one_waitlist"`
}

// Result is what a successful reconciler operation reports back.
type Result struct {
	Message string
	State   State
}
