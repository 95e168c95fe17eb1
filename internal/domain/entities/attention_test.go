package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttentionState_CanTransitionTo(t *testing.T) {
	states := []AttentionState{AttentionStateWaiting, AttentionStateInConsultation, AttentionStateFinalized}
	allowed := map[[2]AttentionState]bool{
		{AttentionStateWaiting, AttentionStateInConsultation}:   true,
		{AttentionStateInConsultation, AttentionStateFinalized}: true,
	}

	for _, from := range states {
		for _, to := range states {
			want := allowed[[2]AttentionState{from, to}]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestAttentionState_Valid(t *testing.T) {
	assert.True(t, AttentionStateWaiting.Valid())
	assert.True(t, AttentionStateFinalized.Valid())
	assert.False(t, AttentionState("CANCELADO").Valid())
	assert.False(t, AttentionState("").Valid())
}

func TestActingUser_IsDoctor(t *testing.T) {
	doctorID := int64(7)

	doctor := ActingUser{UserID: 1, Role: RoleDoctor, DoctorID: &doctorID}
	assert.True(t, doctor.IsDoctor(7))
	assert.False(t, doctor.IsDoctor(8))

	unresolved := ActingUser{UserID: 2, Role: RoleDoctor}
	assert.False(t, unresolved.ActsAsDoctor())

	admin := ActingUser{UserID: 3, Role: RoleAdmin, DoctorID: &doctorID}
	assert.False(t, admin.IsDoctor(7))
	assert.True(t, admin.IsAdmin())
}
