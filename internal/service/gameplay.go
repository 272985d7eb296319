package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/vishaltelangre/tic-tac-toe/internal/apperror"
	"github.com/vishaltelangre/tic-tac-toe/internal/entity"
	"github.com/vishaltelangre/tic-tac-toe/internal/tictactoe"
)

type GamePlayService interface {
	GetOrCreatePlayer(ctx context.Context, id string) (*entity.Player, error)

	GetOrCreateGame(ctx context.Context, playerID, gameType string) (*entity.Game, error)
	JoinGameByID(ctx context.Context, gameID, playerID string) (*entity.Game, error)
	CreateOrJoinPublicGame(ctx context.Context, playerID string) (*entity.Game, error)

	MakeTurn(ctx context.Context, playerID string, cell int) (*entity.Game, error)
	ScheduleBotTurn(ctx context.Context, gameID string) (*entity.Game, error)

	GetGameByPlayerID(ctx context.Context, playerID string) (*entity.Game, error)
	CleanupGame(ctx context.Context, game *entity.Game)
}

type gamePlayService struct {
	logger *slog.Logger

	playerService PlayerService
	gameService   GameService
	botService    BotService

	thinkingDelayMin time.Duration
	thinkingDelayMax time.Duration
}

func NewGamePlayService(
	logger *slog.Logger,
	playerService PlayerService,
	gameService GameService,
	botService BotService,
	thinkingDelayMin, thinkingDelayMax time.Duration,
) GamePlayService {
	return &gamePlayService{
		logger:        logger,
		playerService: playerService,
		gameService:   gameService,
		botService:    botService,

		thinkingDelayMin: thinkingDelayMin,
		thinkingDelayMax: thinkingDelayMax,
	}
}

func (that *gamePlayService) GetOrCreatePlayer(ctx context.Context, id string) (*entity.Player, error) {
	player, err := that.playerService.GetOrCreatePlayer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create player: %w", err)
	}

	return player, nil
}

// GetOrCreateGame - returns the player's current game or starts a fresh
// one. A finished game is cleaned up first, so starting a new game replaces
// the old session and orphans any bot turn still pending for it.
func (that *gamePlayService) GetOrCreateGame(ctx context.Context, playerID, gameType string) (*entity.Game, error) {
	player, err := that.playerService.GetPlayerByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player by id: %w", err)
	}

	if player.GameID != "" {
		game, err := that.gameService.GetGameByID(ctx, player.GameID)
		if err == nil && !game.IsFinished() {
			return game, nil
		}

		if err == nil {
			that.CleanupGame(ctx, game)
		}

		player.GameID = ""
		player.Mark = ""
	}

	game, err := that.createGame(ctx, player, gameType)
	if err != nil {
		return nil, fmt.Errorf("failed to create new game: %w", err)
	}

	return game, nil
}

func (that *gamePlayService) createGame(ctx context.Context, player *entity.Player, gameType string) (*entity.Game, error) {
	game, updatedPlayer, err := that.gameService.CreateGame(ctx, player, gameType)
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	if err = that.playerService.UpdatePlayer(ctx, updatedPlayer); err != nil {
		return nil, fmt.Errorf("failed to update player: %w", err)
	}

	if game.IsWithBot() {
		if err = that.addBotToGame(ctx, game); err != nil {
			return nil, fmt.Errorf("failed to add bot to game: %w", err)
		}
	}

	return game, nil
}

// addBotToGame - seats the bot, deals the marks at random and starts the
// game. The bot's opening move, if it is the bot's turn, is scheduled by
// the transport so the thinking delay applies to it too.
func (that *gamePlayService) addBotToGame(ctx context.Context, game *entity.Game) error {
	playerMark, botMark := game.GetRandomMarks()

	botPlayer := entity.NewBotPlayer(game.ID, botMark)

	game.Players = append(game.Players, botPlayer)
	game.Status = entity.StatusOngoing

	for _, player := range game.Players {
		if player.IsBot() {
			continue
		}

		player.Mark = playerMark
		if err := that.playerService.UpdatePlayer(ctx, player); err != nil {
			return fmt.Errorf("failed to update player: %w", err)
		}
	}

	if err := that.playerService.UpdatePlayer(ctx, botPlayer); err != nil {
		return fmt.Errorf("failed to update bot player: %w", err)
	}

	if err := that.gameService.UpdateGame(ctx, game); err != nil {
		return fmt.Errorf("failed to update game with bot: %w", err)
	}

	return nil
}

func (that *gamePlayService) JoinGameByID(ctx context.Context, gameID, playerID string) (*entity.Game, error) {
	game, err := that.gameService.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	return that.joinGame(ctx, game, playerID)
}

// CreateOrJoinPublicGame - seats the player in the public game waiting for
// an opponent, or opens a new one when nobody is waiting.
func (that *gamePlayService) CreateOrJoinPublicGame(ctx context.Context, playerID string) (*entity.Game, error) {
	game, err := that.gameService.GetWaitingPublicGame(ctx)

	if errors.Is(err, apperror.ErrNoActiveGames) {
		return that.GetOrCreateGame(ctx, playerID, entity.PublicType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get waiting public game: %w", err)
	}

	return that.joinGame(ctx, game, playerID)
}

func (that *gamePlayService) joinGame(ctx context.Context, game *entity.Game, playerID string) (*entity.Game, error) {
	player, err := that.playerService.GetPlayerByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player by id: %w", err)
	}

	if player.GameID == game.ID {
		return game, nil
	}

	if len(game.Players) >= 2 {
		return nil, fmt.Errorf("%w: game id %s", apperror.ErrGameIsFull, game.ID)
	}

	player.GameID = game.ID
	player.Mark = entity.PlayerO
	if err = that.playerService.UpdatePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to update player: %w", err)
	}

	game.Status = entity.StatusOngoing
	game.Players = append(game.Players, player)
	if err = that.gameService.UpdateGame(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to update game: %w", err)
	}

	return game, nil
}

// MakeTurn - applies a human move. Rejected moves (occupied cell, out of
// turn, game not ongoing) come back with the untouched game and the
// rejection sentinel: the caller still has the current state to render. A
// request landing on a computer-controlled player's turn is rejected by the
// same turn check.
func (that *gamePlayService) MakeTurn(ctx context.Context, playerID string, cell int) (*entity.Game, error) {
	log := that.logger.With("method", "MakeTurn", "playerID", playerID)

	player, err := that.playerService.GetPlayerByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player by id: %w", err)
	}

	game, err := that.gameService.GetGameByID(ctx, player.GameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	if err = tictactoe.MakeTurn(game, player.Mark, cell); err != nil {
		if isRejectedTurn(err) {
			log.Debug("turn rejected", "cell", cell, "reason", err)
			return game, err
		}

		return nil, fmt.Errorf("failed to make turn: %w", err)
	}

	if err = that.gameService.UpdateGame(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to update game: %w", err)
	}

	return game, nil
}

// ScheduleBotTurn - waits out the bot's thinking delay, then re-reads the
// game and applies the bot's move. The pending move is tagged with the game
// ID: if the game is gone, finished or no longer on the bot by the time the
// delay fires, the move is discarded as stale.
func (that *gamePlayService) ScheduleBotTurn(ctx context.Context, gameID string) (*entity.Game, error) {
	log := that.logger.With("method", "ScheduleBotTurn", "gameID", gameID)

	timer := time.NewTimer(that.thinkingDelay())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("bot turn canceled: %w", ctx.Err())
	case <-timer.C:
	}

	game, err := that.gameService.GetGameByID(ctx, gameID)
	if err != nil {
		log.Debug("game vanished while bot was thinking", "error", err)
		return nil, apperror.ErrStaleBotTurn
	}

	if !game.IsBotTurn() {
		log.Debug("not the bot's turn anymore")
		return game, apperror.ErrStaleBotTurn
	}

	if err = that.botService.MakeTurn(game); err != nil {
		return nil, fmt.Errorf("bot failed to make turn: %w", err)
	}

	if err = that.gameService.UpdateGame(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to update game: %w", err)
	}

	return game, nil
}

// thinkingDelay - draws a uniform delay from the configured bounds.
func (that *gamePlayService) thinkingDelay() time.Duration {
	if that.thinkingDelayMax <= that.thinkingDelayMin {
		return that.thinkingDelayMin
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint: gosec // it's ok

	return that.thinkingDelayMin + time.Duration(rnd.Int63n(int64(that.thinkingDelayMax-that.thinkingDelayMin)))
}

func (that *gamePlayService) GetGameByPlayerID(ctx context.Context, playerID string) (*entity.Game, error) {
	player, err := that.playerService.GetPlayerByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player by id: %w", err)
	}

	game, err := that.gameService.GetGameByID(ctx, player.GameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	return game, nil
}

func (that *gamePlayService) CleanupGame(ctx context.Context, game *entity.Game) {
	log := that.logger.With("method", "CleanupGame", "gameID", game.ID)

	if err := that.gameService.DeleteGame(ctx, game.ID); err != nil {
		log.Error("failed to delete game", "error", err)
	}

	for _, player := range game.Players {
		if player.IsBot() {
			continue
		}

		player.GameID = ""
		player.Mark = ""
		if err := that.playerService.UpdatePlayer(ctx, player); err != nil {
			log.Error("failed to update player", "player", player.ID, "error", err)
		}
	}
}

// isRejectedTurn - tells a defensively ignored move apart from a real
// failure.
func isRejectedTurn(err error) bool {
	return errors.Is(err, apperror.ErrCellOccupied) ||
		errors.Is(err, apperror.ErrNotYourTurn) ||
		errors.Is(err, apperror.ErrInvalidCell) ||
		errors.Is(err, apperror.ErrGameFinished) ||
		errors.Is(err, apperror.ErrGameIsNotStarted)
}
