package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscrowAccount_Balanced(t *testing.T) {
	e := &EscrowAccount{AmountCents: 100000, CommissionCents: 10000, EnablerPayoutCents: 90000}
	assert.True(t, e.Balanced())

	e.EnablerPayoutCents = 89999
	assert.False(t, e.Balanced())
}

func TestUser_IsAdmin(t *testing.T) {
	var nilUser *User
	assert.False(t, nilUser.IsAdmin())
	assert.False(t, (&User{Role: RoleUser}).IsAdmin())
	assert.True(t, (&User{Role: RoleAdmin}).IsAdmin())
}

func TestChecklistItem_JSON(t *testing.T) {
	enabler := ChecklistItem{Task: "Pack speakers", Required: true, Category: "equipment", TracksProof: true}
	data, err := json.Marshal(enabler)
	require.NoError(t, err)
	assert.JSONEq(t, `{"task":"Pack speakers","required":true,"category":"equipment","completed":false,"completed_at":null,"proof_url":null}`, string(data))

	var decoded ChecklistItem
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.TracksProof)
	assert.Nil(t, decoded.ProofURL)

	host := ChecklistItem{Task: "Share gate code", Category: "venue_access"}
	data, err = json.Marshal(host)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "proof_url")

	decoded = ChecklistItem{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.False(t, decoded.TracksProof)
}
