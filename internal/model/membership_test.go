package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecord_State(t *testing.T) {
	tests := []struct {
		kind Kind
		want State
	}{
		{KindJoinRequest, StateRequested},
		{KindWaitlist, StateWaitlisted},
		{KindParticipant, StateParticipant},
		{KindWithdrawal, StateWithdrawRequested},
		{KindPlusOne, StatePending},
		{KindPlusOneWaitlist, StateWaitlisted},
		{Kind("bogus"), StateNone},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, Record{Kind: tt.kind}.State())
		})
	}
}

func TestRecord_Validate(t *testing.T) {
	member := NewMemberRecord(KindParticipant, Member{UserID: "u1"})
	assert.NoError(t, member.Validate())
	assert.Equal(t, "u1", member.Key())

	plusOne := NewPlusOneRecord(KindPlusOne, PlusOneRequest{ID: "p1", RequesterID: "u1"})
	assert.NoError(t, plusOne.Validate())
	assert.Equal(t, "p1", plusOne.Key())
	assert.Equal(t, "u1_plusOne_p1", plusOne.PlusOne.ParticipantID())
	assert.True(t, IsSynthetic(plusOne.PlusOne.ParticipantID()))

	assert.Error(t, Record{Kind: KindPlusOne, Member: &Member{UserID: "u1"}}.Validate())
	assert.Error(t, NewMemberRecord(KindJoinRequest, Member{}).Validate())
	assert.Error(t, Record{Kind: "bogus"}.Validate())
}
