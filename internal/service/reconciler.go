package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/HanZheTing7/ReservelyGithub/internal/model"
	"github.com/HanZheTing7/ReservelyGithub/internal/store"
)

// Messages shown to callers.
const (
	msgJoinCancelled      = "Join request cancelled."
	msgWaitlistCancelled  = "Waitlist cancelled."
	msgWaitlisted         = "Event is full. You've been added to the waitlist."
	msgJoinSent           = "Join request sent."
	msgWithdrawalSent     = "Withdrawal request sent."
	msgWithdrawalCancel   = "Withdrawal cancelled."
	msgAccepted           = "Accepted."
	msgJoinRemoved        = "Join request removed."
	msgWaitlistRemoved    = "Waitlist entry removed."
	msgWithdrawAccepted   = "Withdraw accepted."
	msgWithdrawRejected   = "Withdrawal rejected."
	msgWaitlistAccepted   = "Waitlisted user accepted."
	msgPlusOneWaitlisted  = "Event is full. Your +1 has been added to the waitlist."
	msgPlusOneSent        = "Your +1 request has been sent to the host."
	msgPlusOneApproved    = "+1 request approved."
	msgPlusOneRejected    = "+1 request rejected."
	msgHostPlusOneAdded   = "+1 added successfully."
	msgParticipantRemoved = "Participant removed."

	msgFullAcceptWaitlist = "Event is full. Cannot accept more participants."
	msgFullApprovePlusOne = "Event is full. Cannot approve +1."
	msgFullHostPlusOne    = "Event is currently full."

	msgEventNotFound   = "Event not found."
	msgNotParticipant  = "You are not a participant of this event."
	msgAlreadyJoined   = "You are already a participant of this event."
	msgHostOnly        = "Only the host can manage this event."
	msgFriendRequired  = "Friend name is required."
	anonymousRequester = "Anonymous"
)

// SideEffects receives the external calls implied by a committed mutation.
// Calls must not block and cannot fail the mutation.
type SideEffects interface {
	Notify(in model.NotificationInput)
	AddChatMember(eventID, userID string)
	RemoveChatMember(eventID, userID string)
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithStrictCapacity runs capacity-gated operations under the event's
// exclusive lock, so the count check and the write cannot interleave with
// another gated operation.
func WithStrictCapacity(strict bool) ReconcilerOption {
	return func(r *Reconciler) { r.strict = strict }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// WithIDGenerator overrides the plus-one id generator.
func WithIDGenerator(newID func() string) ReconcilerOption {
	return func(r *Reconciler) { r.newID = newID }
}

// Reconciler runs the membership state machine of an event: join requests,
// waitlist, withdrawals, plus-ones and host overrides.
type Reconciler struct {
	members  store.Membership
	events   store.Events
	profiles store.Profiles
	effects  SideEffects
	log      zerolog.Logger

	strict bool
	now    func() time.Time
	newID  func() string
}

// NewReconciler constructs a Reconciler.
func NewReconciler(
	members store.Membership,
	events store.Events,
	profiles store.Profiles,
	effects SideEffects,
	log zerolog.Logger,
	opts ...ReconcilerOption,
) *Reconciler {
	r := &Reconciler{
		members:  members,
		events:   events,
		profiles: profiles,
		effects:  effects,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ─── User operations ──────────────────────────────────────────────────────────

// ToggleJoinRequest cancels the user's pending join request or waitlist entry,
// or creates one. When the event is full the user lands on the waitlist and
// the host is not notified. userName is used when the user has no profile.
func (r *Reconciler) ToggleJoinRequest(ctx context.Context, eventID, userID, userName string) (model.Result, error) {
	const fallback = "Failed to send join request."

	event, err := r.event(ctx, eventID)
	if err != nil {
		return model.Result{}, err
	}

	var (
		res    model.Result
		member model.Member
	)
	err = r.gate(ctx, eventID, func(m store.Membership) error {
		current, err := m.Get(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if current != nil {
			switch current.Kind {
			case model.KindJoinRequest:
				if err := m.Delete(ctx, eventID, model.KindJoinRequest, userID); err != nil {
					return err
				}
				res = model.Result{Message: msgJoinCancelled, State: model.StateNone}
				return nil
			case model.KindWaitlist:
				if err := m.Delete(ctx, eventID, model.KindWaitlist, userID); err != nil {
					return err
				}
				res = model.Result{Message: msgWaitlistCancelled, State: model.StateNone}
				return nil
			default:
				return model.Fail(model.ErrInvalidArgument, msgAlreadyJoined)
			}
		}

		count, err := m.Count(ctx, eventID, model.KindParticipant)
		if err != nil {
			return err
		}
		profile, err := r.profile(ctx, userID)
		if err != nil {
			return err
		}
		member = memberFrom(profile, model.Member{UserID: userID, UserName: userName}, r.now())

		if event.IsFull(count) {
			if err := m.Put(ctx, eventID, model.NewMemberRecord(model.KindWaitlist, member)); err != nil {
				return err
			}
			res = model.Result{Message: msgWaitlisted, State: model.StateWaitlisted}
			return nil
		}
		if err := m.Put(ctx, eventID, model.NewMemberRecord(model.KindJoinRequest, member)); err != nil {
			return err
		}
		res = model.Result{Message: msgJoinSent, State: model.StateRequested}
		return nil
	})
	if err != nil {
		return model.Result{}, model.Failed(err, fallback)
	}

	r.logged("toggle_join", eventID, userID, res.State)
	if res.State == model.StateRequested {
		r.effects.Notify(model.NotificationInput{
			ToUserID: event.HostID,
			Title:    "Join Request",
			Message:  fmt.Sprintf("%s requested to join your event '%s'", member.UserName, event.Title),
			Type:     model.NotifyJoinRequest,
			EventID:  eventID,
		})
	}
	return res, nil
}

// RequestWithdrawal asks the host to release a participant.
func (r *Reconciler) RequestWithdrawal(ctx context.Context, eventID, userID string) (model.Result, error) {
	const fallback = "Failed to request withdrawal."

	event, err := r.event(ctx, eventID)
	if err != nil {
		return model.Result{}, err
	}

	participant, err := r.members.Lookup(ctx, eventID, model.KindParticipant, userID)
	if err != nil {
		return model.Result{}, model.Failed(err, fallback)
	}
	if participant == nil {
		return model.Result{}, model.Fail(model.ErrNotFound, msgNotParticipant)
	}

	profile, err := r.profile(ctx, userID)
	if err != nil {
		return model.Result{}, model.Failed(err, fallback)
	}
	withdrawal := memberFrom(profile, model.Member{UserID: userID}, r.now())
	if err := r.members.Put(ctx, eventID, model.NewMemberRecord(model.KindWithdrawal, withdrawal)); err != nil {
		return model.Result{}, model.Failed(err, fallback)
	}

	r.logged("request_withdrawal", eventID, userID, model.StateWithdrawRequested)
	r.effects.Notify(model.NotificationInput{
		ToUserID: event.HostID,
		Title:    "Withdrawal Request",
		Message:  fmt.Sprintf("%s requested to withdraw from '%s'", withdrawal.UserName, event.Title),
		Type:     model.NotifyWithdrawRequest,
		EventID:  eventID,
	})
	return model.Result{Message: msgWithdrawalSent, State: model.StateWithdrawRequested}, nil
}

// CancelWithdrawal deletes the user's withdrawal request, if any.
func (r *Reconciler) CancelWithdrawal(ctx context.Context, eventID, userID string) (model.Result, error) {
	if err := r.members.Delete(ctx, eventID, model.KindWithdrawal, userID); err != nil {
		return model.Result{}, model.Failed(err, "Failed to cancel withdrawal.")
	}
	r.logged("cancel_withdrawal", eventID, userID, "")
	return model.Result{Message: msgWithdrawalCancel}, nil
}

// SubmitPlusOneRequest asks for a companion slot for friendName. The request
// goes to the pending list and notifies the host, or to the plus-one waitlist
// when the event is full.
func (r *Reconciler) SubmitPlusOneRequest(ctx context.Context, eventID, userID, friendName string) (model.Result, error) {
	const fallback = "Failed to submit +1 request."

	if friendName == "" {
		return model.Result{}, model.Fail(model.ErrInvalidArgument, msgFriendRequired)
	}
	event, err := r.event(ctx, eventID)
	if err != nil {
		return model.Result{}, err
	}

	var (
		res     model.Result
		request model.PlusOneRequest
	)
	err = r.gate(ctx, eventID, func(m store.Membership) error {
		count, err := m.Count(ctx, eventID, model.KindParticipant)
		if err != nil {
			return err
		}
		full := event.IsFull(count)

		profile, err := r.profile(ctx, userID)
		if err != nil {
			return err
		}
		requesterName, requesterImage := anonymousRequester, ""
		if profile != nil {
			if profile.Name != "" {
				requesterName = profile.Name
			}
			requesterImage = profile.ProfileImageURL
		}

		// Both ids are drawn up front; only the one for the chosen list is kept.
		pendingID, waitlistID := r.newID(), r.newID()
		request = model.PlusOneRequest{
			ID:                    pendingID,
			RequesterID:           userID,
			RequesterName:         requesterName,
			RequesterProfileImage: requesterImage,
			FriendName:            friendName,
			EventID:               eventID,
			Timestamp:             r.now(),
		}
		if full {
			request.ID = waitlistID
		}

		kind := model.PlusOneKind(full)
		if err := m.Put(ctx, eventID, model.NewPlusOneRecord(kind, request)); err != nil {
			return err
		}
		if full {
			res = model.Result{Message: msgPlusOneWaitlisted, State: model.StateWaitlisted}
		} else {
			res = model.Result{Message: msgPlusOneSent, State: model.StatePending}
		}
		return nil
	})
	if err != nil {
		return model.Result{}, model.Failed(err, fallback)
	}

	r.logged("submit_plus_one", eventID, userID, res.State)
	if res.State == model.StatePending {
		r.effects.Notify(model.NotificationInput{
			ToUserID: event.HostID,
			Title:    "+1 Request",
			Message:  fmt.Sprintf("%s requested to add '%s' as +1 in '%s'", request.RequesterName, friendName, event.Title),
			Type:     model.NotifyPlusOneRequest,
			EventID:  eventID,
		})
	}
	return res, nil
}

// ─── Host operations ──────────────────────────────────────────────────────────

// AcceptJoinRequest promotes a join request to a participant. Capacity is not
// re-checked: the host decides whom to let in.
func (r *Reconciler) AcceptJoinRequest(ctx context.Context, hostID, eventID, userID string) (model.Result, error) {
	event, err := r.hostEvent(ctx, hostID, eventID)
	if err != nil {
		return model.Result{}, err
	}
	if err := r.promote(ctx, r.members, eventID, userID, model.KindJoinRequest, "Failed to accept join request."); err != nil {
		return model.Result{}, err
	}

	r.logged("accept_join", eventID, userID, model.StateParticipant)
	r.welcome(event, userID)
	return model.Result{Message: msgAccepted, State: model.StateParticipant}, nil
}

// RemoveJoinRequest deletes a pending join request.
func (r *Reconciler) RemoveJoinRequest(ctx context.Context, hostID, eventID, userID string) (model.Result, error) {
	if _, err := r.hostEvent(ctx, hostID, eventID); err != nil {
		return model.Result{}, err
	}
	if err := r.members.Delete(ctx, eventID, model.KindJoinRequest, userID); err != nil {
		return model.Result{}, model.Failed(err, "Failed to remove join request.")
	}
	r.logged("remove_join", eventID, userID, model.StateNone)
	return model.Result{Message: msgJoinRemoved, State: model.StateNone}, nil
}

// RejectWaitlist deletes a waitlist entry.
func (r *Reconciler) RejectWaitlist(ctx context.Context, hostID, eventID, userID string) (model.Result, error) {
	if _, err := r.hostEvent(ctx, hostID, eventID); err != nil {
		return model.Result{}, err
	}
	if err := r.members.Delete(ctx, eventID, model.KindWaitlist, userID); err != nil {
		return model.Result{}, model.Failed(err, "Failed to remove waitlist entry.")
	}
	r.logged("reject_waitlist", eventID, userID, model.StateNone)
	return model.Result{Message: msgWaitlistRemoved, State: model.StateNone}, nil
}

// AcceptWaitlistRequest promotes a waitlisted user if there is room.
func (r *Reconciler) AcceptWaitlistRequest(ctx context.Context, hostID, eventID, userID string) (model.Result, error) {
	const fallback = "Error accepting waitlisted user."

	event, err := r.hostEvent(ctx, hostID, eventID)
	if err != nil {
		return model.Result{}, err
	}

	err = r.gate(ctx, eventID, func(m store.Membership) error {
		count, err := m.Count(ctx, eventID, model.KindParticipant)
		if err != nil {
			return model.Failed(err, fallback)
		}
		if event.IsFull(count) {
			return model.Fail(model.ErrEventFull, msgFullAcceptWaitlist)
		}
		return r.promote(ctx, m, eventID, userID, model.KindWaitlist, fallback)
	})
	if err != nil {
		return model.Result{}, model.Failed(err, fallback)
	}

	r.logged("accept_waitlist", eventID, userID, model.StateParticipant)
	r.welcome(event, userID)
	return model.Result{Message: msgWaitlistAccepted, State: model.StateParticipant}, nil
}

// AcceptWithdrawalRequest removes the participant and the withdrawal request.
// A participant that is already gone is not an error.
func (r *Reconciler) AcceptWithdrawalRequest(ctx context.Context, hostID, eventID, userID string) (model.Result, error) {
	const fallback = "Failed to accept withdrawal."

	event, err := r.hostEvent(ctx, hostID, eventID)
	if err != nil {
		return model.Result{}, err
	}
	if err := r.members.Delete(ctx, eventID, model.KindParticipant, userID); err != nil {
		return model.Result{}, model.Failed(err, fallback)
	}
	if err := r.members.Delete(ctx, eventID, model.KindWithdrawal, userID); err != nil {
		return model.Result{}, model.Failed(err, fallback)
	}

	r.logged("accept_withdrawal", eventID, userID, model.StateNone)
	r.effects.RemoveChatMember(eventID, userID)
	r.effects.Notify(model.NotificationInput{
		ToUserID: userID,
		Title:    "Withdrawal Accepted",
		Message:  fmt.Sprintf("You have been withdrawn from '%s'.", event.Title),
		Type:     model.NotifyWithdrawAccepted,
		EventID:  eventID,
	})
	return model.Result{Message: msgWithdrawAccepted, State: model.StateNone}, nil
}

// RejectWithdrawalRequest deletes the withdrawal request; the user stays a
// participant.
func (r *Reconciler) RejectWithdrawalRequest(ctx context.Context, hostID, eventID, userID string) (model.Result, error) {
	event, err := r.hostEvent(ctx, hostID, eventID)
	if err != nil {
		return model.Result{}, err
	}
	if err := r.members.Delete(ctx, eventID, model.KindWithdrawal, userID); err != nil {
		return model.Result{}, model.Failed(err, "Failed to reject withdrawal.")
	}

	r.logged("reject_withdrawal", eventID, userID, model.StateParticipant)
	r.effects.Notify(model.NotificationInput{
		ToUserID: userID,
		Title:    "Withdrawal Rejected",
		Message:  fmt.Sprintf("Your request to withdraw from '%s' was rejected.", event.Title),
		Type:     model.NotifyWithdrawRejected,
		EventID:  eventID,
	})
	return model.Result{Message: msgWithdrawRejected, State: model.StateParticipant}, nil
}

// ApprovePlusOneRequest turns a plus-one request into a synthetic participant
// if there is room. isWaitlist selects the list the request is taken from.
func (r *Reconciler) ApprovePlusOneRequest(ctx context.Context, hostID, eventID, requestID string, isWaitlist bool) (model.Result, error) {
	const fallback = "Error approving +1."

	event, err := r.hostEvent(ctx, hostID, eventID)
	if err != nil {
		return model.Result{}, err
	}

	kind := model.PlusOneKind(isWaitlist)
	var request model.PlusOneRequest
	err = r.gate(ctx, eventID, func(m store.Membership) error {
		count, err := m.Count(ctx, eventID, model.KindParticipant)
		if err != nil {
			return err
		}
		if event.IsFull(count) {
			return model.Fail(model.ErrEventFull, msgFullApprovePlusOne)
		}

		rec, err := m.Lookup(ctx, eventID, kind, requestID)
		if err != nil {
			return err
		}
		if rec == nil {
			return model.Fail(model.ErrNotFound, "+1 request not found.")
		}
		request = *rec.PlusOne

		image, err := r.profileImage(ctx, request.RequesterID)
		if err != nil {
			return err
		}
		participant := model.Member{
			UserID:          request.ParticipantID(),
			UserName:        fmt.Sprintf("%s (+1 of %s)", request.FriendName, request.RequesterName),
			ProfileImageURL: image,
			At:              r.now(),
		}
		if err := m.Put(ctx, eventID, model.NewMemberRecord(model.KindParticipant, participant)); err != nil {
			return err
		}
		return m.Delete(ctx, eventID, kind, requestID)
	})
	if err != nil {
		return model.Result{}, model.Failed(err, fallback)
	}

	r.logged("approve_plus_one", eventID, request.RequesterID, model.StateParticipant)
	r.effects.Notify(model.NotificationInput{
		ToUserID: request.RequesterID,
		Title:    "+1 Approved",
		Message:  fmt.Sprintf("Your +1 request for '%s' has been approved.", request.FriendName),
		Type:     model.NotifyPlusOneApproved,
		EventID:  eventID,
	})
	return model.Result{Message: msgPlusOneApproved, State: model.StateParticipant}, nil
}

// RejectPlusOneRequest deletes a plus-one request and tells the requester.
// Rejecting a request that no longer exists succeeds without notifying.
func (r *Reconciler) RejectPlusOneRequest(ctx context.Context, hostID, eventID, requestID string, isWaitlist bool) (model.Result, error) {
	const fallback = "Failed to reject +1 request."

	if _, err := r.hostEvent(ctx, hostID, eventID); err != nil {
		return model.Result{}, err
	}

	kind := model.PlusOneKind(isWaitlist)
	rec, err := r.members.Lookup(ctx, eventID, kind, requestID)
	if err != nil {
		return model.Result{}, model.Failed(err, fallback)
	}
	if err := r.members.Delete(ctx, eventID, kind, requestID); err != nil {
		return model.Result{}, model.Failed(err, fallback)
	}
	if rec == nil {
		return model.Result{Message: msgPlusOneRejected, State: model.StateNone}, nil
	}

	r.logged("reject_plus_one", eventID, rec.PlusOne.RequesterID, model.StateNone)
	r.effects.Notify(model.NotificationInput{
		ToUserID: rec.PlusOne.RequesterID,
		Title:    "+1 Rejected",
		Message:  fmt.Sprintf("Your +1 request for '%s' was rejected.", rec.PlusOne.FriendName),
		Type:     model.NotifyPlusOneRejected,
		EventID:  eventID,
	})
	return model.Result{Message: msgPlusOneRejected, State: model.StateNone}, nil
}

// AddHostPlusOne adds a friend of the host straight in as a participant.
// There is no chat add and no notification.
func (r *Reconciler) AddHostPlusOne(ctx context.Context, hostID, eventID, friendName string) (model.Result, error) {
	const fallback = "Failed to add +1."

	if friendName == "" {
		return model.Result{}, model.Fail(model.ErrInvalidArgument, msgFriendRequired)
	}
	event, err := r.hostEvent(ctx, hostID, eventID)
	if err != nil {
		return model.Result{}, err
	}

	var participantID string
	err = r.gate(ctx, eventID, func(m store.Membership) error {
		count, err := m.Count(ctx, eventID, model.KindParticipant)
		if err != nil {
			return err
		}
		if event.IsFull(count) {
			return model.Fail(model.ErrEventFull, msgFullHostPlusOne)
		}

		image, err := r.profileImage(ctx, event.HostID)
		if err != nil {
			return err
		}
		participantID = model.HostPlusOneID(r.newID())
		return m.Put(ctx, eventID, model.NewMemberRecord(model.KindParticipant, model.Member{
			UserID:          participantID,
			UserName:        fmt.Sprintf("%s (+1 of Host)", friendName),
			ProfileImageURL: image,
			At:              r.now(),
		}))
	})
	if err != nil {
		return model.Result{}, model.Failed(err, fallback)
	}

	r.logged("host_plus_one", eventID, participantID, model.StateParticipant)
	return model.Result{Message: msgHostPlusOneAdded, State: model.StateParticipant}, nil
}

// KickParticipant removes a participant along with any pending withdrawal
// request. The host is never removed from the chat, and synthetic plus-one
// participants have neither a chat membership nor an inbox. Kicking someone
// who is already gone is a no-op success.
func (r *Reconciler) KickParticipant(ctx context.Context, hostID, eventID, userID string) (model.Result, error) {
	event, err := r.hostEvent(ctx, hostID, eventID)
	if err != nil {
		return model.Result{}, err
	}

	existing, err := r.members.Lookup(ctx, eventID, model.KindParticipant, userID)
	if err != nil {
		return model.Result{}, model.Failed(err, "Failed to remove participant.")
	}
	if err := r.members.Delete(ctx, eventID, model.KindParticipant, userID); err != nil {
		return model.Result{}, model.Failed(err, "Failed to remove participant.")
	}
	// A pending withdrawal cannot outlive the participant it belongs to.
	if err := r.members.Delete(ctx, eventID, model.KindWithdrawal, userID); err != nil {
		return model.Result{}, model.Failed(err, "Failed to remove participant.")
	}
	res := model.Result{Message: msgParticipantRemoved, State: model.StateNone}
	if existing == nil {
		return res, nil
	}

	r.logged("kick", eventID, userID, model.StateNone)
	if model.IsSynthetic(userID) {
		return res, nil
	}
	if userID != event.HostID {
		r.effects.RemoveChatMember(eventID, userID)
	}
	r.effects.Notify(model.NotificationInput{
		ToUserID: userID,
		Title:    "Removed from Event",
		Message:  fmt.Sprintf("You have been removed from '%s'.", event.Title),
		Type:     model.NotifyKicked,
		EventID:  eventID,
	})
	return res, nil
}

// ─── Queries ──────────────────────────────────────────────────────────────────

// Status reports where userID stands in the event.
func (r *Reconciler) Status(ctx context.Context, eventID, userID string) (model.Status, error) {
	if _, err := r.event(ctx, eventID); err != nil {
		return model.Status{}, err
	}

	var st model.Status
	found := make(map[model.Kind]*model.Record, 4)
	for kind, flag := range map[model.Kind]*bool{
		model.KindJoinRequest: &st.HasRequested,
		model.KindParticipant: &st.HasJoined,
		model.KindWithdrawal:  &st.HasWithdrawRequested,
		model.KindWaitlist:    &st.IsWaitlisted,
	} {
		rec, err := r.members.Lookup(ctx, eventID, kind, userID)
		if err != nil {
			return model.Status{}, model.Failed(err, "Failed to load membership status.")
		}
		found[kind] = rec
		*flag = rec != nil
	}

	st.State = model.StateNone
	for _, kind := range []model.Kind{model.KindParticipant, model.KindJoinRequest, model.KindWaitlist} {
		if rec := found[kind]; rec != nil {
			st.State = rec.State()
			break
		}
	}
	// A withdrawal request only counts while the participant record exists.
	if st.HasJoined && st.HasWithdrawRequested {
		st.State = found[model.KindWithdrawal].State()
	}
	return st, nil
}

// Roster returns every membership list of the event.
func (r *Reconciler) Roster(ctx context.Context, eventID string) (*model.Roster, error) {
	event, err := r.event(ctx, eventID)
	if err != nil {
		return nil, err
	}

	roster := &model.Roster{
		EventID:         eventID,
		Capacity:        event.MaxPeople,
		Participants:    []model.Member{},
		JoinRequests:    []model.Member{},
		Waitlist:        []model.Member{},
		Withdrawals:     []model.Member{},
		PlusOnes:        []model.PlusOneRequest{},
		PlusOneWaitlist: []model.PlusOneRequest{},
	}
	members := map[model.Kind]*[]model.Member{
		model.KindParticipant: &roster.Participants,
		model.KindJoinRequest: &roster.JoinRequests,
		model.KindWaitlist:    &roster.Waitlist,
		model.KindWithdrawal:  &roster.Withdrawals,
	}
	plusOnes := map[model.Kind]*[]model.PlusOneRequest{
		model.KindPlusOne:         &roster.PlusOnes,
		model.KindPlusOneWaitlist: &roster.PlusOneWaitlist,
	}

	for _, kind := range model.Kinds {
		recs, err := r.members.List(ctx, eventID, kind)
		if err != nil {
			return nil, model.Failed(err, "Failed to load participants.")
		}
		for _, rec := range recs {
			if kind.IsPlusOne() {
				*plusOnes[kind] = append(*plusOnes[kind], *rec.PlusOne)
			} else {
				*members[kind] = append(*members[kind], *rec.Member)
			}
		}
	}
	return roster, nil
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

// promote writes a participant built from the user's profile and the source
// record, then deletes the source record.
func (r *Reconciler) promote(ctx context.Context, m store.Membership, eventID, userID string, from model.Kind, fallback string) error {
	src, err := m.Lookup(ctx, eventID, from, userID)
	if err != nil {
		return model.Failed(err, fallback)
	}
	if src == nil {
		return model.Fail(model.ErrNotFound, "Request not found.")
	}
	profile, err := r.profile(ctx, userID)
	if err != nil {
		return model.Failed(err, fallback)
	}

	participant := memberFrom(profile, *src.Member, r.now())
	if err := m.Put(ctx, eventID, model.NewMemberRecord(model.KindParticipant, participant)); err != nil {
		return model.Failed(err, fallback)
	}
	if err := m.Delete(ctx, eventID, from, userID); err != nil {
		return model.Failed(err, fallback)
	}
	return nil
}

// welcome emits the side effects of a user becoming a participant.
func (r *Reconciler) welcome(event *model.Event, userID string) {
	r.effects.AddChatMember(event.ID, userID)
	r.effects.Notify(model.NotificationInput{
		ToUserID: userID,
		Title:    "Request Accepted",
		Message:  fmt.Sprintf("Your request to join '%s' has been accepted.", event.Title),
		Type:     model.NotifyJoinAccepted,
		EventID:  event.ID,
	})
}

// gate runs a capacity-gated step, under the event lock in strict mode.
func (r *Reconciler) gate(ctx context.Context, eventID string, fn func(store.Membership) error) error {
	if !r.strict {
		return fn(r.members)
	}
	return r.members.Atomically(ctx, eventID, fn)
}

func (r *Reconciler) event(ctx context.Context, eventID string) (*model.Event, error) {
	event, err := r.events.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.Fail(model.ErrNotFound, msgEventNotFound)
		}
		return nil, model.Failed(err, "Failed to load event.")
	}
	return event, nil
}

// hostEvent loads the event and checks that callerID is its host.
func (r *Reconciler) hostEvent(ctx context.Context, callerID, eventID string) (*model.Event, error) {
	event, err := r.event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.HostID != callerID {
		return nil, model.Fail(model.ErrForbidden, msgHostOnly)
	}
	return event, nil
}

// profile returns the user's profile, or nil if the user has none.
func (r *Reconciler) profile(ctx context.Context, userID string) (*model.UserProfile, error) {
	p, err := r.profiles.GetProfile(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", userID, err)
	}
	return p, nil
}

func (r *Reconciler) profileImage(ctx context.Context, userID string) (string, error) {
	p, err := r.profile(ctx, userID)
	if err != nil || p == nil {
		return "", err
	}
	return p.ProfileImageURL, nil
}

func (r *Reconciler) logged(op, eventID, userID string, state model.State) {
	r.log.Info().
		Str("op", op).
		Str("event_id", eventID).
		Str("user_id", userID).
		Str("state", string(state)).
		Msg("membership updated")
}

// memberFrom fills a membership record from the profile, falling back to the
// values in base for anything the profile leaves empty.
func memberFrom(p *model.UserProfile, base model.Member, at time.Time) model.Member {
	m := base
	m.At = at
	if p == nil {
		return m
	}
	if p.Name != "" {
		m.UserName = p.Name
	}
	if p.Gender != "" {
		m.Gender = p.Gender
	}
	if p.Age != 0 {
		m.Age = p.Age
	}
	if p.ProfileImageURL != "" {
		m.ProfileImageURL = p.ProfileImageURL
	}
	return m
}
