package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishaltelangre/tic-tac-toe/internal/apperror"
	"github.com/vishaltelangre/tic-tac-toe/internal/entity"
)

// memoryPlayerRepo and memoryGameRepo stand in for the redis-backed
// repositories. They deep-copy through JSON the same way the real ones do,
// so tests catch code that mutates a shared instance instead of persisting.
type memoryPlayerRepo struct {
	players map[string]string
}

func newMemoryPlayerRepo() *memoryPlayerRepo {
	return &memoryPlayerRepo{players: make(map[string]string)}
}

func (that *memoryPlayerRepo) CreateOrUpdate(_ context.Context, player *entity.Player) error {
	raw, err := json.Marshal(player)
	if err != nil {
		return err
	}

	that.players[player.ID] = string(raw)

	return nil
}

func (that *memoryPlayerRepo) GetByID(_ context.Context, id string) (*entity.Player, error) {
	raw, ok := that.players[id]
	if !ok {
		return nil, errors.New("player not found")
	}

	var player entity.Player
	if err := json.Unmarshal([]byte(raw), &player); err != nil {
		return nil, err
	}

	return &player, nil
}

type memoryGameRepo struct {
	games map[string]string
}

func newMemoryGameRepo() *memoryGameRepo {
	return &memoryGameRepo{games: make(map[string]string)}
}

func (that *memoryGameRepo) CreateOrUpdate(_ context.Context, game *entity.Game) error {
	raw, err := json.Marshal(game)
	if err != nil {
		return err
	}

	that.games[game.ID] = string(raw)

	return nil
}

func (that *memoryGameRepo) GetByID(_ context.Context, id string) (*entity.Game, error) {
	raw, ok := that.games[id]
	if !ok {
		return nil, errors.New("game not found")
	}

	var game entity.Game
	if err := json.Unmarshal([]byte(raw), &game); err != nil {
		return nil, err
	}

	return &game, nil
}

func (that *memoryGameRepo) GetWaitingPublicGame(ctx context.Context) (*entity.Game, error) {
	for id := range that.games {
		game, err := that.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if game.IsPublic() && game.IsWaiting() {
			return game, nil
		}
	}

	return nil, apperror.ErrNoActiveGames
}

func (that *memoryGameRepo) DeleteByID(_ context.Context, id string) error {
	delete(that.games, id)

	return nil
}

type gamePlayFixture struct {
	gamePlay   GamePlayService
	players    PlayerService
	games      GameService
	playerRepo *memoryPlayerRepo
	gameRepo   *memoryGameRepo
}

func newGamePlayFixture(t *testing.T, delayMin, delayMax time.Duration) *gamePlayFixture {
	t.Helper()

	playerRepo := newMemoryPlayerRepo()
	gameRepo := newMemoryGameRepo()

	playerService := NewPlayerService(playerRepo)
	gameService := NewGameService(gameRepo)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &gamePlayFixture{
		gamePlay:   NewGamePlayService(logger, playerService, gameService, NewBotService(), delayMin, delayMax),
		players:    playerService,
		games:      gameService,
		playerRepo: playerRepo,
		gameRepo:   gameRepo,
	}
}

func (that *gamePlayFixture) seedPlayer(t *testing.T, player *entity.Player) {
	t.Helper()
	require.NoError(t, that.playerRepo.CreateOrUpdate(context.Background(), player))
}

func (that *gamePlayFixture) seedGame(t *testing.T, game *entity.Game) {
	t.Helper()
	require.NoError(t, that.gameRepo.CreateOrUpdate(context.Background(), game))
}

// seedTwoPlayerGame stores an ongoing private game between p1 (X) and
// p2 (O) with the given mark to move.
func (that *gamePlayFixture) seedTwoPlayerGame(t *testing.T, turn string) *entity.Game {
	t.Helper()

	p1 := &entity.Player{ID: "p1", Mark: entity.PlayerX, GameID: "g1"}
	p2 := &entity.Player{ID: "p2", Mark: entity.PlayerO, GameID: "g1"}

	game := entity.NewGame("g1", entity.PrivateType)
	game.Status = entity.StatusOngoing
	game.Turn = turn
	game.Players = []*entity.Player{p1, p2}

	that.seedPlayer(t, p1)
	that.seedPlayer(t, p2)
	that.seedGame(t, game)

	return game
}

func TestGamePlayService_GetOrCreateGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Creating a bot game seats both sides and starts at once", func(t *testing.T) {
		// Given: a player without a game
		fixture := newGamePlayFixture(t, time.Millisecond, 2*time.Millisecond)
		fixture.seedPlayer(t, &entity.Player{ID: "p1"})

		// When: creating a game against the computer
		game, err := fixture.gamePlay.GetOrCreateGame(ctx, "p1", entity.WithBotType)
		require.NoError(t, err)

		// Then: the game is ongoing with a human and a bot holding opposite marks
		assert.Equal(t, entity.StatusOngoing, game.Status)
		require.Len(t, game.Players, 2)
		require.NotNil(t, game.BotPlayer())
		assert.NotEqual(t, game.Players[0].Mark, game.Players[1].Mark)
		assert.Contains(t, []string{entity.PlayerX, entity.PlayerO}, game.Players[0].Mark)
	})

	t.Run("Returns the current game while it is still running", func(t *testing.T) {
		// Given: a player seated in an ongoing game
		fixture := newGamePlayFixture(t, time.Millisecond, 2*time.Millisecond)
		fixture.seedTwoPlayerGame(t, entity.PlayerX)

		// When: asking for a game again
		game, err := fixture.gamePlay.GetOrCreateGame(ctx, "p1", entity.PrivateType)
		require.NoError(t, err)

		// Then: the same game comes back
		assert.Equal(t, "g1", game.ID)
	})

	t.Run("A finished game is cleaned up and replaced", func(t *testing.T) {
		// Given: a player whose game already finished
		fixture := newGamePlayFixture(t, time.Millisecond, 2*time.Millisecond)
		oldGame := fixture.seedTwoPlayerGame(t, entity.EmptyCell)
		oldGame.Status = entity.StatusFinished
		oldGame.Winner = entity.PlayerX
		fixture.seedGame(t, oldGame)

		// When: the player starts again
		game, err := fixture.gamePlay.GetOrCreateGame(ctx, "p1", entity.PrivateType)
		require.NoError(t, err)

		// Then: a fresh game replaces the finished one, which is deleted
		assert.NotEqual(t, oldGame.ID, game.ID)
		assert.Equal(t, entity.StatusWaiting, game.Status)

		_, err = fixture.games.GetGameByID(ctx, oldGame.ID)
		assert.Error(t, err)
	})
}

func TestGamePlayService_JoinGameByID(t *testing.T) {
	ctx := context.Background()

	t.Run("Second player joins and the game starts", func(t *testing.T) {
		// Given: a waiting game created by p1 and a free player p2
		fixture := newGamePlayFixture(t, time.Millisecond, 2*time.Millisecond)
		fixture.seedPlayer(t, &entity.Player{ID: "p1"})
		fixture.seedPlayer(t, &entity.Player{ID: "p2"})

		game, err := fixture.gamePlay.GetOrCreateGame(ctx, "p1", entity.PrivateType)
		require.NoError(t, err)

		// When: p2 joins by game ID
		joined, err := fixture.gamePlay.JoinGameByID(ctx, game.ID, "p2")
		require.NoError(t, err)

		// Then: the game is ongoing with p2 seated as O
		assert.Equal(t, entity.StatusOngoing, joined.Status)
		require.Len(t, joined.Players, 2)
		assert.Equal(t, entity.PlayerO, joined.Players[1].Mark)
	})

	t.Run("Rejoining your own game is a no-op", func(t *testing.T) {
		// Given: p1 seated in an ongoing game
		fixture := newGamePlayFixture(t, time.Millisecond, 2*time.Millisecond)
		fixture.seedTwoPlayerGame(t, entity.PlayerX)

		// When: p1 joins the same game again
		game, err := fixture.gamePlay.JoinGameByID(ctx, "g1", "p1")
		require.NoError(t, err)

		// Then: the game still has two seats
		assert.Len(t, game.Players, 2)
	})

	t.Run("Error when the game already has two players", func(t *testing.T) {
		// Given: a full game and a third player
		fixture := newGamePlayFixture(t, time.Millisecond, 2*time.Millisecond)
		fixture.seedTwoPlayerGame(t, entity.PlayerX)
		fixture.seedPlayer(t, &entity.Player{ID: "p3"})

		// When: p3 tries to join
		_, err := fixture.gamePlay.JoinGameByID(ctx, "g1", "p3")

		// Then: ErrGameIsFull is returned
		assert.ErrorIs(t, err, apperror.ErrGameIsFull)
	})
}

func TestGamePlayService_CreateOrJoinPublicGame(t *testing.T) {
	ctx := context.Background()

	t.Run("First player opens a public game, second one fills it", func(t *testing.T) {
		// Given: two players looking for a public game
		fixture := newGamePlayFixture(t, time.Millisecond, 2*time.Millisecond)
		fixture.seedPlayer(t, &entity.Player{ID: "p1"})
		fixture.seedPlayer(t, &entity.Player{ID: "p2"})

		// When: p1 asks for a public game with nobody waiting
		first, err := fixture.gamePlay.CreateOrJoinPublicGame(ctx, "p1")
		require.NoError(t, err)

		// Then: a new public game waits for an opponent
		assert.Equal(t, entity.PublicType, first.Type)
		assert.Equal(t, entity.StatusWaiting, first.Status)

		// When: p2 asks for a public game
		second, err := fixture.gamePlay.CreateOrJoinPublicGame(ctx, "p2")
		require.NoError(t, err)

		// Then: p2 is matched into p1's game and it starts
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, entity.StatusOngoing, second.Status)
		assert.Len(t, second.Players, 2)
	})
}

func TestGamePlayService_MakeTurn(t *testing.T) {
	ctx := context.Background()

	t.Run("Successful move is persisted", func(t *testing.T) {
		// Given: an ongoing game with X to move
		fixture := newGamePlayFixture(t, time.Millisecond, 2*time.Millisecond)
		fixture.seedTwoPlayerGame(t, entity.PlayerX)

		// When: p1 plays cell 4
		game, err := fixture.gamePlay.MakeTurn(ctx, "p1", 4)
		require.NoError(t, err)

		// Then: the move is on the board, persisted, and the turn flipped
		assert.Equal(t, entity.PlayerX, game.Board[4])
		assert.Equal(t, entity.PlayerO, game.Turn)

		stored, err := fixture.games.GetGameByID(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerX, stored.Board[4])
	})

	t.Run("Occupied cell is rejected with the state unchanged", func(t *testing.T) {
		// Given: a game where cell 4 is taken
		fixture := newGamePlayFixture(t, time.Millisecond, 2*time.Millisecond)
		fixture.seedTwoPlayerGame(t, entity.PlayerX)
		_, err := fixture.gamePlay.MakeTurn(ctx, "p1", 4)
		require.NoError(t, err)

		// When: p2 plays the same cell
		game, err := fixture.gamePlay.MakeTurn(ctx, "p2", 4)

		// Then: the sentinel comes back along with the untouched game
		require.ErrorIs(t, err, apperror.ErrCellOccupied)
		require.NotNil(t, game)
		assert.Equal(t, entity.PlayerX, game.Board[4])
		assert.Equal(t, entity.PlayerO, game.Turn)
	})

	t.Run("Moving out of turn is rejected", func(t *testing.T) {
		// Given: an ongoing game with X to move
		fixture := newGamePlayFixture(t, time.Millisecond, 2*time.Millisecond)
		fixture.seedTwoPlayerGame(t, entity.PlayerX)

		// When: p2 (playing O) moves first
		game, err := fixture.gamePlay.MakeTurn(ctx, "p2", 0)

		// Then: the move is rejected and nothing landed on the board
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
		require.NotNil(t, game)
		assert.Equal(t, entity.EmptyCell, game.Board[0])
	})

	t.Run("Human move during the bot's thinking turn is rejected", func(t *testing.T) {
		// Given: a bot game with the bot to move
		fixture := newGamePlayFixture(t, time.Millisecond, 2*time.Millisecond)
		human := &entity.Player{ID: "p1", Mark: entity.PlayerX, GameID: "g1"}
		game := entity.NewGame("g1", entity.WithBotType)
		game.Status = entity.StatusOngoing
		game.Turn = entity.PlayerO
		game.Players = []*entity.Player{human, entity.NewBotPlayer("g1", entity.PlayerO)}
		fixture.seedPlayer(t, human)
		fixture.seedGame(t, game)

		// When: the human tries to sneak in a move
		_, err := fixture.gamePlay.MakeTurn(ctx, "p1", 0)

		// Then: the move is rejected
		assert.ErrorIs(t, err, apperror.ErrNotYourTurn)
	})
}

func TestGamePlayService_ScheduleBotTurn(t *testing.T) {
	ctx := context.Background()

	newBotGameFixture := func(t *testing.T, turn string) (*gamePlayFixture, *entity.Game) {
		t.Helper()

		fixture := newGamePlayFixture(t, time.Millisecond, 2*time.Millisecond)

		human := &entity.Player{ID: "p1", Mark: entity.PlayerX, GameID: "g1"}
		game := entity.NewGame("g1", entity.WithBotType)
		game.Status = entity.StatusOngoing
		game.Turn = turn
		game.Players = []*entity.Player{human, entity.NewBotPlayer("g1", entity.PlayerO)}

		fixture.seedPlayer(t, human)
		fixture.seedGame(t, game)

		return fixture, game
	}

	t.Run("Applies the bot move after the delay and persists it", func(t *testing.T) {
		// Given: a bot game with the bot to move
		fixture, _ := newBotGameFixture(t, entity.PlayerO)

		// When: the scheduled bot turn fires
		game, err := fixture.gamePlay.ScheduleBotTurn(ctx, "g1")
		require.NoError(t, err)

		// Then: an O landed on the board, the human is up, and the move stuck
		assert.Equal(t, entity.PlayerX, game.Turn)

		stored, err := fixture.games.GetGameByID(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, game.Board, stored.Board)
	})

	t.Run("Stale when the game vanished while the bot was thinking", func(t *testing.T) {
		// Given: a scheduled bot turn for a game that gets deleted
		fixture, _ := newBotGameFixture(t, entity.PlayerO)
		require.NoError(t, fixture.games.DeleteGame(ctx, "g1"))

		// When: the delay fires
		_, err := fixture.gamePlay.ScheduleBotTurn(ctx, "g1")

		// Then: the pending move is discarded
		assert.ErrorIs(t, err, apperror.ErrStaleBotTurn)
	})

	t.Run("Stale when the turn moved on to the human", func(t *testing.T) {
		// Given: a bot game where it is the human's turn by fire time
		fixture, seeded := newBotGameFixture(t, entity.PlayerX)

		// When: the delay fires
		game, err := fixture.gamePlay.ScheduleBotTurn(ctx, "g1")

		// Then: the move is discarded and the board is untouched
		require.ErrorIs(t, err, apperror.ErrStaleBotTurn)
		require.NotNil(t, game)
		assert.Equal(t, seeded.Board, game.Board)
	})

	t.Run("Stale once the game finished", func(t *testing.T) {
		// Given: a bot game that finished before the delay fired
		fixture, seeded := newBotGameFixture(t, entity.PlayerO)
		seeded.Status = entity.StatusFinished
		seeded.Winner = entity.PlayerX
		seeded.Turn = entity.EmptyCell
		fixture.seedGame(t, seeded)

		// When: the delay fires
		_, err := fixture.gamePlay.ScheduleBotTurn(ctx, "g1")

		// Then: the move is discarded
		assert.ErrorIs(t, err, apperror.ErrStaleBotTurn)
	})

	t.Run("Canceled context abandons the pending move", func(t *testing.T) {
		// Given: a bot game and an already-canceled context
		fixture, _ := newBotGameFixture(t, entity.PlayerO)

		canceledCtx, cancel := context.WithCancel(ctx)
		cancel()

		// When: scheduling the bot turn
		_, err := fixture.gamePlay.ScheduleBotTurn(canceledCtx, "g1")

		// Then: the move never lands
		require.ErrorIs(t, err, context.Canceled)

		stored, getErr := fixture.games.GetGameByID(ctx, "g1")
		require.NoError(t, getErr)
		for _, cell := range stored.Board {
			assert.Equal(t, entity.EmptyCell, cell)
		}
	})
}

func TestGamePlayService_CleanupGame(t *testing.T) {
	ctx := context.Background()

	// Given: an ongoing game between two humans
	fixture := newGamePlayFixture(t, time.Millisecond, 2*time.Millisecond)
	game := fixture.seedTwoPlayerGame(t, entity.PlayerX)

	// When: cleaning the game up
	fixture.gamePlay.CleanupGame(ctx, game)

	// Then: the game is gone and both humans are unseated
	_, err := fixture.games.GetGameByID(ctx, "g1")
	assert.Error(t, err)

	for _, id := range []string{"p1", "p2"} {
		player, err := fixture.players.GetPlayerByID(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, player.GameID)
		assert.Empty(t, player.Mark)
	}
}
