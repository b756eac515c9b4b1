package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/scanmarket-backend/pkg/db/dbtest"
	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
)

func TestGetOrCreate(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, Identity{Email: " Seller@Example.com ", Name: "Sam", Provider: enums.AuthProviderDev})
	require.NoError(t, err)
	assert.Equal(t, "seller@example.com", first.Email)
	assert.Nil(t, first.AvatarURL)

	avatar := "https://example.com/a.png"
	again, err := repo.GetOrCreate(ctx, Identity{Email: "seller@example.com", Name: "Other", Provider: enums.AuthProviderGoogle, AvatarURL: &avatar})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Sam", again.Name, "existing name is kept")
	require.NotNil(t, again.AvatarURL)
	assert.Equal(t, avatar, *again.AvatarURL)

	anon, err := repo.GetOrCreate(ctx, Identity{Email: "nobody@example.com", Provider: enums.AuthProviderDev})
	require.NoError(t, err)
	assert.Equal(t, "nobody", anon.Name)
}

func TestUpdateProfileAndLookup(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	user, err := repo.GetOrCreate(ctx, Identity{Email: "a@example.com", Name: "A", Provider: enums.AuthProviderDev})
	require.NoError(t, err)

	name := "Alex"
	location := "Brooklyn"
	loc := &location
	require.NoError(t, repo.UpdateProfile(ctx, user.ID, ProfilePatch{Name: &name, LocationName: &loc}))

	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alex", got.Name)
	require.NotNil(t, got.LocationName)
	assert.Equal(t, "Brooklyn", *got.LocationName)

	var cleared *string
	require.NoError(t, repo.UpdateProfile(ctx, user.ID, ProfilePatch{LocationName: &cleared}))
	got, err = repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LocationName)

	byIDs, err := repo.FindByIDs(ctx, []uuid.UUID{user.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, byIDs, 1)
}
