package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HanZheTing7/ReservelyGithub/internal/memstore"
	"github.com/HanZheTing7/ReservelyGithub/internal/model"
)

const (
	eventID = "evt-1"
	hostID  = "host-1"
)

var fixedNow = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

// recorder is a synchronous SideEffects sink.
type recorder struct {
	mu      sync.Mutex
	notes   []model.NotificationInput
	added   []string
	removed []string
}

func (r *recorder) Notify(in model.NotificationInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, in)
}

func (r *recorder) AddChatMember(_, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, userID)
}

func (r *recorder) RemoveChatMember(_, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, userID)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes, r.added, r.removed = nil, nil, nil
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *memstore.Store
	effects *recorder
	rec     *Reconciler
	ids     []string
}

func newFixture(t *testing.T, capacity int, opts ...ReconcilerOption) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		store:   memstore.New(),
		effects: &recorder{},
	}
	require.NoError(t, f.store.CreateEvent(f.ctx, &model.Event{
		ID:        eventID,
		Title:     "Board Games Night",
		HostID:    hostID,
		MaxPeople: capacity,
		StartAt:   fixedNow,
		CreatedAt: fixedNow,
	}))

	seq := 0
	opts = append([]ReconcilerOption{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			seq++
			id := fmt.Sprintf("id%d", seq)
			f.ids = append(f.ids, id)
			return id
		}),
	}, opts...)
	f.rec = NewReconciler(f.store, f.store, f.store, f.effects, zerolog.Nop(), opts...)
	return f
}

func (f *fixture) profile(userID, name string) {
	f.t.Helper()
	require.NoError(f.t, f.store.UpsertProfile(f.ctx, &model.UserProfile{
		ID: userID, Name: name, Gender: "female", Age: 29, ProfileImageURL: "https://img/" + userID,
	}))
}

func (f *fixture) put(kind model.Kind, userID string) {
	f.t.Helper()
	require.NoError(f.t, f.store.Put(f.ctx, eventID, model.NewMemberRecord(kind, model.Member{
		UserID: userID, UserName: userID, At: fixedNow,
	})))
}

func (f *fixture) putPlusOne(kind model.Kind, id, requesterID, friend string) {
	f.t.Helper()
	require.NoError(f.t, f.store.Put(f.ctx, eventID, model.NewPlusOneRecord(kind, model.PlusOneRequest{
		ID: id, RequesterID: requesterID, RequesterName: requesterID, FriendName: friend, EventID: eventID,
	})))
}

func (f *fixture) has(kind model.Kind, key string) bool {
	f.t.Helper()
	rec, err := f.store.Lookup(f.ctx, eventID, kind, key)
	require.NoError(f.t, err)
	return rec != nil
}

func (f *fixture) count(kind model.Kind) int {
	f.t.Helper()
	n, err := f.store.Count(f.ctx, eventID, kind)
	require.NoError(f.t, err)
	return n
}

func (f *fixture) participants() int { return f.count(model.KindParticipant) }

func TestScenarioA_RequestThenAccept(t *testing.T) {
	f := newFixture(t, 2)
	f.profile("user-a", "Alice")

	res, err := f.rec.ToggleJoinRequest(f.ctx, eventID, "user-a", "")
	require.NoError(t, err)
	assert.Equal(t, msgJoinSent, res.Message)
	assert.Equal(t, model.StateRequested, res.State)
	assert.True(t, f.has(model.KindJoinRequest, "user-a"))

	require.Len(t, f.effects.notes, 1)
	assert.Equal(t, model.NotificationInput{
		ToUserID: hostID,
		Title:    "Join Request",
		Message:  "Alice requested to join your event 'Board Games Night'",
		Type:     model.NotifyJoinRequest,
		EventID:  eventID,
	}, f.effects.notes[0])
	f.effects.reset()

	res, err = f.rec.AcceptJoinRequest(f.ctx, hostID, eventID, "user-a")
	require.NoError(t, err)
	assert.Equal(t, model.StateParticipant, res.State)
	assert.True(t, f.has(model.KindParticipant, "user-a"))
	assert.False(t, f.has(model.KindJoinRequest, "user-a"))

	assert.Equal(t, []string{"user-a"}, f.effects.added)
	require.Len(t, f.effects.notes, 1)
	assert.Equal(t, "user-a", f.effects.notes[0].ToUserID)
	assert.Equal(t, "Request Accepted", f.effects.notes[0].Title)
	assert.Equal(t, model.NotifyJoinAccepted, f.effects.notes[0].Type)

	rec, err := f.store.Lookup(f.ctx, eventID, model.KindParticipant, "user-a")
	require.NoError(t, err)
	assert.Equal(t, "Alice", rec.Member.UserName)
	assert.Equal(t, "female", rec.Member.Gender)
	assert.Equal(t, 29, rec.Member.Age)
}

func TestScenarioB_WaitlistWhenFull(t *testing.T) {
	f := newFixture(t, 1)
	f.put(model.KindParticipant, "user-x")

	res, err := f.rec.ToggleJoinRequest(f.ctx, eventID, "user-y", "Yara")
	require.NoError(t, err)
	assert.Equal(t, msgWaitlisted, res.Message)
	assert.Equal(t, model.StateWaitlisted, res.State)
	assert.True(t, f.has(model.KindWaitlist, "user-y"))
	assert.False(t, f.has(model.KindJoinRequest, "user-y"))
	assert.Empty(t, f.effects.notes, "host is not notified about waitlist entries")

	_, err = f.rec.AcceptWaitlistRequest(f.ctx, hostID, eventID, "user-y")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrEventFull)
	assert.EqualError(t, err, msgFullAcceptWaitlist)
	assert.True(t, f.has(model.KindWaitlist, "user-y"), "waitlist entry must be untouched")
	assert.False(t, f.has(model.KindParticipant, "user-y"))
	assert.Empty(t, f.effects.added)
}

func TestAcceptWaitlistRequest_WithRoom(t *testing.T) {
	f := newFixture(t, 2)
	f.put(model.KindParticipant, "user-x")
	f.put(model.KindWaitlist, "user-y")

	res, err := f.rec.AcceptWaitlistRequest(f.ctx, hostID, eventID, "user-y")
	require.NoError(t, err)
	assert.Equal(t, msgWaitlistAccepted, res.Message)
	assert.True(t, f.has(model.KindParticipant, "user-y"))
	assert.False(t, f.has(model.KindWaitlist, "user-y"))
	assert.Equal(t, []string{"user-y"}, f.effects.added)
	require.Len(t, f.effects.notes, 1)
	assert.Equal(t, model.NotifyJoinAccepted, f.effects.notes[0].Type)
}

func TestScenarioC_PlusOneApproved(t *testing.T) {
	f := newFixture(t, 2)
	f.profile("user-r", "Rita")
	f.put(model.KindParticipant, "user-r")

	res, err := f.rec.SubmitPlusOneRequest(f.ctx, eventID, "user-r", "Bob")
	require.NoError(t, err)
	assert.Equal(t, msgPlusOneSent, res.Message)
	assert.Equal(t, model.StatePending, res.State)

	require.Len(t, f.ids, 2, "both ids are drawn before the fullness check")
	requestID := f.ids[0]
	assert.True(t, f.has(model.KindPlusOne, requestID))
	assert.Zero(t, f.count(model.KindPlusOneWaitlist))

	require.Len(t, f.effects.notes, 1)
	assert.Equal(t, hostID, f.effects.notes[0].ToUserID)
	assert.Equal(t, "Rita requested to add 'Bob' as +1 in 'Board Games Night'", f.effects.notes[0].Message)
	f.effects.reset()

	_, err = f.rec.ApprovePlusOneRequest(f.ctx, hostID, eventID, requestID, false)
	require.NoError(t, err)

	participantID := "user-r_plusOne_" + requestID
	rec, err := f.store.Lookup(f.ctx, eventID, model.KindParticipant, participantID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Bob (+1 of Rita)", rec.Member.UserName)
	assert.Equal(t, "https://img/user-r", rec.Member.ProfileImageURL)
	assert.False(t, f.has(model.KindPlusOne, requestID))

	require.Len(t, f.effects.notes, 1)
	assert.Equal(t, "user-r", f.effects.notes[0].ToUserID)
	assert.Equal(t, model.NotifyPlusOneApproved, f.effects.notes[0].Type)
	assert.Empty(t, f.effects.added, "synthetic participants have no chat account")
}

func TestSubmitPlusOneRequest_FullGoesToWaitlist(t *testing.T) {
	f := newFixture(t, 1)
	f.put(model.KindParticipant, "user-r")

	res, err := f.rec.SubmitPlusOneRequest(f.ctx, eventID, "user-r", "Bob")
	require.NoError(t, err)
	assert.Equal(t, msgPlusOneWaitlisted, res.Message)
	assert.Equal(t, model.StateWaitlisted, res.State)

	require.Len(t, f.ids, 2)
	assert.True(t, f.has(model.KindPlusOneWaitlist, f.ids[1]))
	assert.Zero(t, f.count(model.KindPlusOne))
	assert.Empty(t, f.effects.notes)

	recs, err := f.store.List(f.ctx, eventID, model.KindPlusOneWaitlist)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, anonymousRequester, recs[0].PlusOne.RequesterName)
}

func TestSubmitPlusOneRequest_RequiresFriendName(t *testing.T) {
	f := newFixture(t, 3)
	_, err := f.rec.SubmitPlusOneRequest(f.ctx, eventID, "user-r", "")
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	assert.Zero(t, f.count(model.KindPlusOne))
}

func TestApprovePlusOneRequest_FromWaitlist(t *testing.T) {
	f := newFixture(t, 2)
	f.put(model.KindParticipant, "user-r")
	f.putPlusOne(model.KindPlusOneWaitlist, "p1", "user-r", "Bob")

	_, err := f.rec.ApprovePlusOneRequest(f.ctx, hostID, eventID, "p1", false)
	assert.ErrorIs(t, err, model.ErrNotFound, "the pending list does not hold the request")

	_, err = f.rec.ApprovePlusOneRequest(f.ctx, hostID, eventID, "p1", true)
	require.NoError(t, err)
	assert.True(t, f.has(model.KindParticipant, "user-r_plusOne_p1"))
	assert.False(t, f.has(model.KindPlusOneWaitlist, "p1"))
}

func TestApprovePlusOneRequest_Full(t *testing.T) {
	f := newFixture(t, 1)
	f.put(model.KindParticipant, "user-r")
	f.putPlusOne(model.KindPlusOneWaitlist, "p1", "user-r", "Bob")

	_, err := f.rec.ApprovePlusOneRequest(f.ctx, hostID, eventID, "p1", true)
	assert.ErrorIs(t, err, model.ErrEventFull)
	assert.EqualError(t, err, msgFullApprovePlusOne)
	assert.True(t, f.has(model.KindPlusOneWaitlist, "p1"))
	assert.Equal(t, 1, f.participants())
	assert.Empty(t, f.effects.notes)
}

func TestScenarioD_Kick(t *testing.T) {
	f := newFixture(t, 3)
	f.put(model.KindParticipant, "user-k")

	res, err := f.rec.KickParticipant(f.ctx, hostID, eventID, "user-k")
	require.NoError(t, err)
	assert.Equal(t, msgParticipantRemoved, res.Message)
	assert.False(t, f.has(model.KindParticipant, "user-k"))
	assert.Equal(t, []string{"user-k"}, f.effects.removed)
	require.Len(t, f.effects.notes, 1)
	assert.Equal(t, model.NotifyKicked, f.effects.notes[0].Type)
	assert.Equal(t, "You have been removed from 'Board Games Night'.", f.effects.notes[0].Message)
	f.effects.reset()

	res, err = f.rec.KickParticipant(f.ctx, hostID, eventID, "user-k")
	require.NoError(t, err)
	assert.Equal(t, msgParticipantRemoved, res.Message)
	assert.Empty(t, f.effects.removed)
	assert.Empty(t, f.effects.notes)
}

func TestKickParticipant_HostStaysInChat(t *testing.T) {
	f := newFixture(t, 3)
	f.put(model.KindParticipant, hostID)

	_, err := f.rec.KickParticipant(f.ctx, hostID, eventID, hostID)
	require.NoError(t, err)
	assert.Empty(t, f.effects.removed)
	assert.Len(t, f.effects.notes, 1)
}

func TestKickParticipant_SyntheticHasNoSideEffects(t *testing.T) {
	f := newFixture(t, 3)
	_, err := f.rec.AddHostPlusOne(f.ctx, hostID, eventID, "Carol")
	require.NoError(t, err)

	roster, err := f.rec.Roster(f.ctx, eventID)
	require.NoError(t, err)
	require.Len(t, roster.Participants, 1)
	id := roster.Participants[0].UserID

	_, err = f.rec.KickParticipant(f.ctx, hostID, eventID, id)
	require.NoError(t, err)
	assert.Zero(t, f.participants())
	assert.Empty(t, f.effects.removed)
	assert.Empty(t, f.effects.notes)
}

func TestAddHostPlusOne(t *testing.T) {
	f := newFixture(t, 2)
	f.profile(hostID, "Hana")
	f.put(model.KindParticipant, "user-x")

	res, err := f.rec.AddHostPlusOne(f.ctx, hostID, eventID, "Carol")
	require.NoError(t, err)
	assert.Equal(t, msgHostPlusOneAdded, res.Message)

	roster, err := f.rec.Roster(f.ctx, eventID)
	require.NoError(t, err)
	require.Len(t, roster.Participants, 2)
	added := roster.Participants[1]
	assert.Equal(t, "host_plusOne_id1", added.UserID)
	assert.Equal(t, "Carol (+1 of Host)", added.UserName)
	assert.Equal(t, "https://img/"+hostID, added.ProfileImageURL)
	assert.Empty(t, f.effects.notes)
	assert.Empty(t, f.effects.added)

	_, err = f.rec.AddHostPlusOne(f.ctx, hostID, eventID, "Dan")
	assert.ErrorIs(t, err, model.ErrEventFull)
	assert.EqualError(t, err, msgFullHostPlusOne)
	assert.Equal(t, 2, f.participants())
}

func TestToggleJoinRequest_RoundTrip(t *testing.T) {
	f := newFixture(t, 5)

	res, err := f.rec.ToggleJoinRequest(f.ctx, eventID, "user-a", "Alice")
	require.NoError(t, err)
	assert.Equal(t, model.StateRequested, res.State)

	res, err = f.rec.ToggleJoinRequest(f.ctx, eventID, "user-a", "Alice")
	require.NoError(t, err)
	assert.Equal(t, msgJoinCancelled, res.Message)
	assert.Equal(t, model.StateNone, res.State)

	st, err := f.rec.Status(f.ctx, eventID, "user-a")
	require.NoError(t, err)
	assert.Equal(t, model.StateNone, st.State)
}

func TestToggleJoinRequest_CancelsWaitlist(t *testing.T) {
	f := newFixture(t, 1)
	f.put(model.KindParticipant, "user-x")
	f.put(model.KindWaitlist, "user-y")

	res, err := f.rec.ToggleJoinRequest(f.ctx, eventID, "user-y", "")
	require.NoError(t, err)
	assert.Equal(t, msgWaitlistCancelled, res.Message)
	assert.False(t, f.has(model.KindWaitlist, "user-y"))
}

func TestToggleJoinRequest_UsesFallbackName(t *testing.T) {
	f := newFixture(t, 5)

	_, err := f.rec.ToggleJoinRequest(f.ctx, eventID, "user-a", "Alice From Token")
	require.NoError(t, err)

	rec, err := f.store.Lookup(f.ctx, eventID, model.KindJoinRequest, "user-a")
	require.NoError(t, err)
	assert.Equal(t, "Alice From Token", rec.Member.UserName)
	assert.Equal(t, fixedNow, rec.Member.At)
}

func TestToggleJoinRequest_ParticipantIsRejected(t *testing.T) {
	f := newFixture(t, 5)
	f.put(model.KindParticipant, "user-a")

	_, err := f.rec.ToggleJoinRequest(f.ctx, eventID, "user-a", "")
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	assert.False(t, f.has(model.KindJoinRequest, "user-a"))
	assert.True(t, f.has(model.KindParticipant, "user-a"))
}

func TestToggleJoinRequest_StoreFailure(t *testing.T) {
	tests := []struct {
		method string
	}{
		{"Get"},
		{"Count"},
		{"GetProfile"},
		{"Put"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			f := newFixture(t, 5)
			f.store.FailNext(tt.method, errors.New("backend unavailable"))

			_, err := f.rec.ToggleJoinRequest(f.ctx, eventID, "user-a", "Alice")
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrOperationFailed)
			assert.Contains(t, err.Error(), "backend unavailable")
			assert.False(t, f.has(model.KindJoinRequest, "user-a"))
			assert.False(t, f.has(model.KindWaitlist, "user-a"))
			assert.Empty(t, f.effects.notes)
		})
	}
}

func TestRequestWithdrawal(t *testing.T) {
	f := newFixture(t, 5)
	f.profile("user-a", "Alice")
	f.put(model.KindParticipant, "user-a")

	res, err := f.rec.RequestWithdrawal(f.ctx, eventID, "user-a")
	require.NoError(t, err)
	assert.Equal(t, model.StateWithdrawRequested, res.State)
	assert.True(t, f.has(model.KindWithdrawal, "user-a"))
	assert.True(t, f.has(model.KindParticipant, "user-a"))

	require.Len(t, f.effects.notes, 1)
	assert.Equal(t, hostID, f.effects.notes[0].ToUserID)
	assert.Equal(t, "Alice requested to withdraw from 'Board Games Night'", f.effects.notes[0].Message)

	st, err := f.rec.Status(f.ctx, eventID, "user-a")
	require.NoError(t, err)
	assert.Equal(t, model.StateWithdrawRequested, st.State)
	assert.True(t, st.HasJoined)
	assert.True(t, st.HasWithdrawRequested)
}

func TestRequestWithdrawal_NotParticipant(t *testing.T) {
	f := newFixture(t, 5)
	f.put(model.KindJoinRequest, "user-a")

	_, err := f.rec.RequestWithdrawal(f.ctx, eventID, "user-a")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.EqualError(t, err, msgNotParticipant)
	assert.False(t, f.has(model.KindWithdrawal, "user-a"))
	assert.Empty(t, f.effects.notes)
}

func TestAcceptWithdrawalRequest(t *testing.T) {
	f := newFixture(t, 5)
	f.put(model.KindParticipant, "user-a")
	f.put(model.KindWithdrawal, "user-a")

	res, err := f.rec.AcceptWithdrawalRequest(f.ctx, hostID, eventID, "user-a")
	require.NoError(t, err)
	assert.Equal(t, msgWithdrawAccepted, res.Message)
	assert.False(t, f.has(model.KindParticipant, "user-a"))
	assert.False(t, f.has(model.KindWithdrawal, "user-a"))
	assert.Equal(t, []string{"user-a"}, f.effects.removed)
	require.Len(t, f.effects.notes, 1)
	assert.Equal(t, model.NotifyWithdrawAccepted, f.effects.notes[0].Type)
}

func TestAcceptWithdrawalRequest_ParticipantAlreadyGone(t *testing.T) {
	f := newFixture(t, 5)
	f.put(model.KindWithdrawal, "user-a")

	_, err := f.rec.AcceptWithdrawalRequest(f.ctx, hostID, eventID, "user-a")
	require.NoError(t, err)
	assert.False(t, f.has(model.KindWithdrawal, "user-a"))
}

func TestRejectWithdrawalRequest(t *testing.T) {
	f := newFixture(t, 5)
	f.put(model.KindParticipant, "user-a")
	f.put(model.KindWithdrawal, "user-a")

	_, err := f.rec.RejectWithdrawalRequest(f.ctx, hostID, eventID, "user-a")
	require.NoError(t, err)
	assert.True(t, f.has(model.KindParticipant, "user-a"))
	assert.False(t, f.has(model.KindWithdrawal, "user-a"))
	assert.Empty(t, f.effects.removed)
	require.Len(t, f.effects.notes, 1)
	assert.Equal(t, "Withdrawal Rejected", f.effects.notes[0].Title)
}

func TestIdempotentDeletes(t *testing.T) {
	f := newFixture(t, 5)
	f.put(model.KindParticipant, "user-a")
	f.put(model.KindWithdrawal, "user-a")
	f.put(model.KindJoinRequest, "user-b")
	f.put(model.KindWaitlist, "user-c")
	f.putPlusOne(model.KindPlusOne, "p1", "user-a", "Bob")

	ops := []struct {
		name string
		run  func() (model.Result, error)
	}{
		{"cancel withdrawal", func() (model.Result, error) { return f.rec.CancelWithdrawal(f.ctx, eventID, "user-a") }},
		{"remove join request", func() (model.Result, error) { return f.rec.RemoveJoinRequest(f.ctx, hostID, eventID, "user-b") }},
		{"reject waitlist", func() (model.Result, error) { return f.rec.RejectWaitlist(f.ctx, hostID, eventID, "user-c") }},
		{"reject plus-one", func() (model.Result, error) { return f.rec.RejectPlusOneRequest(f.ctx, hostID, eventID, "p1", false) }},
	}
	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			first, err := op.run()
			require.NoError(t, err)
			f.effects.reset()
			second, err := op.run()
			require.NoError(t, err)
			assert.Equal(t, first, second)
			assert.Empty(t, f.effects.notes, "repeated call emits nothing")
		})
	}

	assert.False(t, f.has(model.KindWithdrawal, "user-a"))
	assert.True(t, f.has(model.KindParticipant, "user-a"))
	assert.False(t, f.has(model.KindJoinRequest, "user-b"))
	assert.False(t, f.has(model.KindWaitlist, "user-c"))
	assert.False(t, f.has(model.KindPlusOne, "p1"))
}

func TestRejectPlusOneRequest_NotifiesRequester(t *testing.T) {
	f := newFixture(t, 5)
	f.putPlusOne(model.KindPlusOneWaitlist, "p1", "user-a", "Bob")

	_, err := f.rec.RejectPlusOneRequest(f.ctx, hostID, eventID, "p1", true)
	require.NoError(t, err)
	require.Len(t, f.effects.notes, 1)
	assert.Equal(t, "user-a", f.effects.notes[0].ToUserID)
	assert.Equal(t, "Your +1 request for 'Bob' was rejected.", f.effects.notes[0].Message)
}

func TestHostOperations_RequireHost(t *testing.T) {
	f := newFixture(t, 5)
	f.put(model.KindJoinRequest, "user-a")
	f.put(model.KindParticipant, "user-b")

	ops := map[string]func() (model.Result, error){
		"accept join":   func() (model.Result, error) { return f.rec.AcceptJoinRequest(f.ctx, "user-b", eventID, "user-a") },
		"remove join":   func() (model.Result, error) { return f.rec.RemoveJoinRequest(f.ctx, "user-b", eventID, "user-a") },
		"kick":          func() (model.Result, error) { return f.rec.KickParticipant(f.ctx, "user-b", eventID, "user-b") },
		"host plus-one": func() (model.Result, error) { return f.rec.AddHostPlusOne(f.ctx, "user-b", eventID, "Eve") },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			_, err := op()
			assert.ErrorIs(t, err, model.ErrForbidden)
		})
	}
	assert.True(t, f.has(model.KindJoinRequest, "user-a"))
	assert.True(t, f.has(model.KindParticipant, "user-b"))
	assert.Equal(t, 1, f.participants())
}

func TestUnknownEvent(t *testing.T) {
	f := newFixture(t, 5)

	_, err := f.rec.ToggleJoinRequest(f.ctx, "missing", "user-a", "")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.rec.AcceptJoinRequest(f.ctx, hostID, "missing", "user-a")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.rec.Roster(f.ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAcceptJoinRequest_MissingRequest(t *testing.T) {
	f := newFixture(t, 5)

	_, err := f.rec.AcceptJoinRequest(f.ctx, hostID, eventID, "ghost")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Zero(t, f.participants())
	assert.Empty(t, f.effects.added)
}

func TestRoster_InsertionOrder(t *testing.T) {
	f := newFixture(t, 5)
	for _, id := range []string{"u3", "u1", "u2"} {
		f.put(model.KindParticipant, id)
	}
	f.put(model.KindJoinRequest, "u4")
	f.putPlusOne(model.KindPlusOne, "p9", "u1", "Bob")

	roster, err := f.rec.Roster(f.ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 5, roster.Capacity)

	ids := make([]string, 0, len(roster.Participants))
	for _, p := range roster.Participants {
		ids = append(ids, p.UserID)
	}
	assert.Equal(t, []string{"u3", "u1", "u2"}, ids)
	assert.Len(t, roster.JoinRequests, 1)
	assert.Len(t, roster.PlusOnes, 1)
	assert.Empty(t, roster.Waitlist)
	assert.NotNil(t, roster.PlusOneWaitlist)
}

// TestInvariants drives random operation sequences and checks after each step
// that a user holds at most one primary record and that capacity-gated
// operations never push the participant count past capacity.
func TestInvariants(t *testing.T) {
	users := []string{"u1", "u2", "u3", "u4", "u5"}

	for seed := int64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			rnd := rand.New(rand.NewSource(seed))
			f := newFixture(t, 2)

			for step := 0; step < 60; step++ {
				user := users[rnd.Intn(len(users))]
				before := f.participants()
				gated := false

				switch rnd.Intn(9) {
				case 0, 1:
					_, _ = f.rec.ToggleJoinRequest(f.ctx, eventID, user, user)
				case 2:
					_, _ = f.rec.AcceptJoinRequest(f.ctx, hostID, eventID, user)
				case 3:
					gated = true
					_, _ = f.rec.AcceptWaitlistRequest(f.ctx, hostID, eventID, user)
				case 4:
					_, _ = f.rec.RequestWithdrawal(f.ctx, eventID, user)
				case 5:
					_, _ = f.rec.AcceptWithdrawalRequest(f.ctx, hostID, eventID, user)
				case 6:
					_, _ = f.rec.KickParticipant(f.ctx, hostID, eventID, user)
				case 7:
					gated = true
					_, _ = f.rec.AddHostPlusOne(f.ctx, hostID, eventID, "friend")
				case 8:
					_, _ = f.rec.SubmitPlusOneRequest(f.ctx, eventID, user, "friend")
					recs, err := f.store.List(f.ctx, eventID, model.KindPlusOneWaitlist)
					require.NoError(t, err)
					if len(recs) > 0 {
						gated = true
						_, _ = f.rec.ApprovePlusOneRequest(f.ctx, hostID, eventID, recs[0].Key(), true)
					}
				}

				if gated {
					assert.LessOrEqual(t, f.participants(), max(before, 2), "step %d", step)
				}
				for _, u := range users {
					primary := 0
					for _, kind := range []model.Kind{model.KindJoinRequest, model.KindParticipant, model.KindWaitlist} {
						if f.has(kind, u) {
							primary++
						}
					}
					require.LessOrEqual(t, primary, 1, "user %s at step %d", u, step)
					if f.has(model.KindWithdrawal, u) {
						require.True(t, f.has(model.KindParticipant, u),
							"withdrawal without participant for %s at step %d", u, step)
					}
				}
			}
		})
	}
}

func TestStrictCapacity_ConcurrentAccepts(t *testing.T) {
	f := newFixture(t, 1, WithStrictCapacity(true))
	waiting := []string{"w1", "w2", "w3", "w4", "w5", "w6", "w7", "w8"}
	for _, u := range waiting {
		f.put(model.KindWaitlist, u)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		full     int
	)
	for _, u := range waiting {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := f.rec.AcceptWaitlistRequest(f.ctx, hostID, eventID, userID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, model.ErrEventFull):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, len(waiting)-1, full)
	assert.Equal(t, 1, f.participants())
}

func TestStrictCapacity_FailedPromotionWritesNothing(t *testing.T) {
	f := newFixture(t, 2, WithStrictCapacity(true))
	f.put(model.KindWaitlist, "w1")

	f.store.FailNext("Delete", errors.New("boom"))
	_, err := f.rec.AcceptWaitlistRequest(f.ctx, hostID, eventID, "w1")
	require.ErrorIs(t, err, model.ErrOperationFailed)

	assert.False(t, f.has(model.KindParticipant, "w1"))
	assert.True(t, f.has(model.KindWaitlist, "w1"))
	assert.Empty(t, f.effects.added)

	res, err := f.rec.AcceptWaitlistRequest(f.ctx, hostID, eventID, "w1")
	require.NoError(t, err)
	assert.Equal(t, model.StateParticipant, res.State)
	assert.True(t, f.has(model.KindParticipant, "w1"))
	assert.False(t, f.has(model.KindWaitlist, "w1"))
}

func TestStatus_States(t *testing.T) {
	tests := []struct {
		name  string
		kinds []model.Kind
		want  model.State
	}{
		{"nothing", nil, model.StateNone},
		{"join request", []model.Kind{model.KindJoinRequest}, model.StateRequested},
		{"waitlisted", []model.Kind{model.KindWaitlist}, model.StateWaitlisted},
		{"participant", []model.Kind{model.KindParticipant}, model.StateParticipant},
		{"withdrawing", []model.Kind{model.KindParticipant, model.KindWithdrawal}, model.StateWithdrawRequested},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 5)
			for _, kind := range tt.kinds {
				f.put(kind, "user-a")
			}
			st, err := f.rec.Status(f.ctx, eventID, "user-a")
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.State)
		})
	}
}
