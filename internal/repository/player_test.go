package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishaltelangre/tic-tac-toe/internal/entity"
	"github.com/vishaltelangre/tic-tac-toe/testing/suite"
)

func TestPlayerRepository_CreateOrUpdate(t *testing.T) {
	ctx, st := suite.New(t)

	playerRepo := NewPlayerRepository(st.Storage)

	// Given: a player with ID
	player := &entity.Player{
		ID: "123",
	}

	// When: CreateOrUpdate is called
	err := playerRepo.CreateOrUpdate(ctx, player)

	// Then: no error should be returned, and player is stored
	require.NoError(t, err)
}

func TestPlayerRepository_GetByID(t *testing.T) {
	t.Run("GetByID_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		playerRepo := NewPlayerRepository(st.Storage)

		// Given: a player seated in a game with a mark
		player := &entity.Player{
			ID:     "123",
			Mark:   entity.PlayerX,
			GameID: "game-1",
		}

		err := playerRepo.CreateOrUpdate(ctx, player)
		require.NoError(t, err)

		// When: GetByID is called with existing ID
		retrievedPlayer, err := playerRepo.GetByID(ctx, player.ID)

		// Then: the retrieved player should match the saved player
		require.NoError(t, err)
		require.Equal(t, player.ID, retrievedPlayer.ID)
		assert.Equal(t, player.Mark, retrievedPlayer.Mark)
		assert.Equal(t, player.GameID, retrievedPlayer.GameID)
	})

	t.Run("GetByID_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		playerRepo := NewPlayerRepository(st.Storage)

		nonExistentPlayerID := "9999999"

		// When: GetByID is called with non-existent ID
		retrievedPlayer, err := playerRepo.GetByID(ctx, nonExistentPlayerID)

		// Then: an ErrPlayerNotFound error should be returned
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPlayerNotFound)
		assert.Empty(t, retrievedPlayer.ID)
	})

	t.Run("Update_Overwrites", func(t *testing.T) {
		ctx, st := suite.New(t)

		playerRepo := NewPlayerRepository(st.Storage)

		// Given: a stored player
		player := &entity.Player{ID: "123", Mark: entity.PlayerX, GameID: "game-1"}
		require.NoError(t, playerRepo.CreateOrUpdate(ctx, player))

		// When: the player leaves the game and is saved again
		player.Mark = ""
		player.GameID = ""
		require.NoError(t, playerRepo.CreateOrUpdate(ctx, player))

		// Then: the stored player reflects the update
		retrievedPlayer, err := playerRepo.GetByID(ctx, player.ID)
		require.NoError(t, err)
		assert.Empty(t, retrievedPlayer.Mark)
		assert.Empty(t, retrievedPlayer.GameID)
	})
}
