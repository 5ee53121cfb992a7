package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkmeet/moderation-worker/internal/models"
)

func TestReconcile_CorrectsStaleDerivedFields(t *testing.T) {
	db := openTestDB(t)
	main := "photos/a.png"
	user := &models.User{
		Email: "reconcile@example.com",
		Photos: []models.UserPhoto{
			{Path: "photos/a.png", SortOrder: 0, IsRejected: true},
			{Path: "photos/b.png", SortOrder: 1},
		},
		MainPhoto:   &main,
		NumOfPhotos: 2,
	}
	require.NoError(t, db.Create(user).Error)

	require.NoError(t, NewReconciler(db).Reconcile(user.ID))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", user.ID).Error)
	require.NotNil(t, reloaded.MainPhoto)
	assert.Equal(t, "photos/b.png", *reloaded.MainPhoto)
	assert.Equal(t, 1, reloaded.NumOfPhotos)
}

func TestReconcile_AllPhotosRejectedClearsMain(t *testing.T) {
	db := openTestDB(t)
	main := "photos/a.png"
	user := &models.User{
		Email: "cleared@example.com",
		Photos: []models.UserPhoto{
			{Path: "photos/a.png", IsRejected: true},
		},
		MainPhoto:   &main,
		NumOfPhotos: 1,
	}
	require.NoError(t, db.Create(user).Error)

	require.NoError(t, NewReconciler(db).Reconcile(user.ID))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", user.ID).Error)
	assert.Nil(t, reloaded.MainPhoto)
	assert.Zero(t, reloaded.NumOfPhotos)
}

func TestReconcile_ConsistentStateIsNoOp(t *testing.T) {
	db := openTestDB(t)
	main := "photos/a.png"
	user := &models.User{
		Email:       "consistent@example.com",
		Photos:      []models.UserPhoto{{Path: "photos/a.png"}},
		MainPhoto:   &main,
		NumOfPhotos: 1,
	}
	require.NoError(t, db.Create(user).Error)

	before := user.UpdatedAt
	require.NoError(t, NewReconciler(db).Reconcile(user.ID))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", user.ID).Error)
	assert.Equal(t, before.Unix(), reloaded.UpdatedAt.Unix())
}

func TestReconcile_UserNotFound(t *testing.T) {
	db := openTestDB(t)

	err := NewReconciler(db).Reconcile(uuid.New())

	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestActivePhotos_SortedAndFiltered(t *testing.T) {
	user := &models.User{Photos: []models.UserPhoto{
		{Path: "c", SortOrder: 2},
		{Path: "rejected", SortOrder: 0, IsRejected: true},
		{Path: "a", SortOrder: 1},
	}}

	active := user.ActivePhotos()

	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].Path)
	assert.Equal(t, "c", active[1].Path)
}
