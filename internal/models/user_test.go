package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUser_UpdateFromIdentity(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	t.Run("Updates all fields correctly", func(t *testing.T) {
		user := &User{}
		email := "ana@uvg.edu.gt"
		name := "Ana Lopez"

		user.UpdateFromIdentity("sub-123", &email, &name, "Ana", "Lopez", true, now)

		assert.Equal(t, "sub-123", user.OIDCUserID)
		assert.Equal(t, &email, user.Email)
		assert.Equal(t, "Ana", user.FirstName)
		assert.Equal(t, "Lopez", user.LastName)
		assert.Equal(t, "Ana Lopez", user.FullName)
		assert.Equal(t, "Ana Lopez", user.DisplayName)
		assert.True(t, user.ProfileVerified)
		assert.Equal(t, now, *user.LastLoginAt)
	})

	t.Run("Falls back to full name for display name", func(t *testing.T) {
		user := &User{DisplayName: "old"}

		user.UpdateFromIdentity("", nil, nil, "Luis", "", false, now)

		assert.Equal(t, "Luis", user.FullName)
		assert.Equal(t, "Luis", user.DisplayName)
		assert.False(t, user.ProfileVerified)
	})

	t.Run("Keeps existing values when claims are empty", func(t *testing.T) {
		email := "keep@uvg.edu.gt"
		user := &User{OIDCUserID: "sub-1", Email: &email, DisplayName: "Keep"}
		empty := ""

		user.UpdateFromIdentity("", &empty, &empty, "", "", true, now)

		assert.Equal(t, "sub-1", user.OIDCUserID)
		assert.Equal(t, &email, user.Email)
		assert.Equal(t, "Keep", user.DisplayName)
		assert.False(t, user.ProfileVerified)
	})
}

func TestUser_BeforeCreate(t *testing.T) {
	user := &User{FirstName: "Maria", LastName: "Perez"}

	assert.NoError(t, user.BeforeCreate(nil))
	assert.Equal(t, "Maria Perez", user.FullName)
	assert.Equal(t, "Maria Perez", user.DisplayName)
}

func TestUser_ToProfile(t *testing.T) {
	email := "x@uvg.edu.gt"
	user := &User{FirstName: "X", DisplayName: "Xavi", Email: &email, IsAdmin: true}

	profile := user.ToProfile()

	assert.Equal(t, user.ID.String(), profile.ID)
	assert.Equal(t, "Xavi", profile.DisplayName)
	assert.True(t, profile.IsAdmin)
	assert.Equal(t, &email, profile.Email)
}
