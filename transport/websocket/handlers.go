package websocket

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vishaltelangre/tic-tac-toe/internal/apperror"
	"github.com/vishaltelangre/tic-tac-toe/internal/entity"
)

const gameStatusLeave = "leave"

func (that *Server) handleConnect(ctx context.Context, msg *Message, bufrw *bufio.ReadWriter) error {
	log := that.logger.With("method", "handleConnect")

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	playerID := ""
	if payloadReq.Player != nil {
		playerID = payloadReq.Player.ID
	}

	player, err := that.gamePlay.GetOrCreatePlayer(ctx, playerID)
	if err != nil {
		log.Error("failed to get or create player", "error", err)
		return that.sendErrorResponse(bufrw, msg.Action, "failed to create a new player")
	}

	that.registerConnection(player.ID, bufrw)

	if err = that.sendMessage(bufrw, msg.Action, Payload{Player: player}); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	log.Info("player connected", "playerID", player.ID)

	return nil
}

func (that *Server) handleNewGame(ctx context.Context, msg *Message, bufrw *bufio.ReadWriter) error {
	log := that.logger.With("method", "handleNewGame")

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payloadReq.Player == nil {
		return that.sendErrorResponse(bufrw, msg.Action, "player is required")
	}

	if payloadReq.Game == nil {
		return that.sendErrorResponse(bufrw, msg.Action, "game is required")
	}

	that.registerConnection(payloadReq.Player.ID, bufrw)

	var game *entity.Game

	// Public games are matched with whoever is waiting; private and bot
	// games go through GetOrCreateGame.
	if payloadReq.Game.IsPublic() {
		game, err = that.gamePlay.CreateOrJoinPublicGame(ctx, payloadReq.Player.ID)
	} else {
		game, err = that.gamePlay.GetOrCreateGame(ctx, payloadReq.Player.ID, payloadReq.Game.Type)
	}

	if err != nil {
		log.Error("failed to create or join game", "type", payloadReq.Game.Type, "error", err)
		return that.sendErrorResponse(bufrw, msg.Action, "failed to create a new game")
	}

	that.broadcastGame(msg.Action, game)

	that.maybeScheduleBotTurn(ctx, game)

	log.Info("game ready", "gameID", game.ID, "type", game.Type)

	return nil
}

func (that *Server) handleJoinGame(ctx context.Context, msg *Message, bufrw *bufio.ReadWriter) error {
	log := that.logger.With("method", "handleJoinGame")

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payloadReq.Player == nil {
		return that.sendErrorResponse(bufrw, msg.Action, "player is required")
	}

	if payloadReq.Game == nil || payloadReq.Game.ID == "" {
		return that.sendErrorResponse(bufrw, msg.Action, "game id is required")
	}

	that.registerConnection(payloadReq.Player.ID, bufrw)

	game, err := that.gamePlay.JoinGameByID(ctx, payloadReq.Game.ID, payloadReq.Player.ID)
	if err != nil {
		log.Error("failed to join game", "gameID", payloadReq.Game.ID, "error", err)
		return that.sendErrorResponse(bufrw, msg.Action, fmt.Sprintf("game %s: %v", payloadReq.Game.ID, err))
	}

	that.broadcastGame(msg.Action, game)

	log.Info("player joined game", "playerID", payloadReq.Player.ID, "gameID", game.ID)

	return nil
}

func (that *Server) handleGameTurn(ctx context.Context, msg *Message, bufrw *bufio.ReadWriter) error {
	log := that.logger.With("method", "handleGameTurn")

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payloadReq.Player == nil {
		return that.sendErrorResponse(bufrw, msg.Action, "player is required")
	}

	if payloadReq.Cell == nil {
		return that.sendErrorResponse(bufrw, msg.Action, "cell is required")
	}

	that.registerConnection(payloadReq.Player.ID, bufrw)

	game, err := that.gamePlay.MakeTurn(ctx, payloadReq.Player.ID, *payloadReq.Cell)
	if err != nil && game != nil {
		// Rejected move: the game is untouched, echo the current state
		// back so the client can re-render it.
		log.Debug("turn rejected", "cell", *payloadReq.Cell, "reason", err)
		return that.sendMessage(bufrw, msg.Action, Payload{Game: game, Error: err.Error()})
	}

	if err != nil {
		log.Error("failed to make turn", "error", err)
		return that.sendErrorResponse(bufrw, msg.Action, fmt.Sprintf("failed to make turn: %v", err))
	}

	that.broadcastGame(msg.Action, game)

	that.maybeScheduleBotTurn(ctx, game)

	log.Info("player made a turn", "playerID", payloadReq.Player.ID, "gameID", game.ID, "cell", *payloadReq.Cell)

	return nil
}

func (that *Server) handleGameLeave(ctx context.Context, msg *Message, bufrw *bufio.ReadWriter) error {
	log := that.logger.With("method", "handleGameLeave")

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payloadReq.Player == nil {
		return that.sendErrorResponse(bufrw, msg.Action, "player is required")
	}

	game, err := that.gamePlay.GetGameByPlayerID(ctx, payloadReq.Player.ID)
	if err != nil {
		log.Error("failed to find game", "error", err)
		return that.sendErrorResponse(bufrw, msg.Action, "game doesn't exist")
	}

	that.gamePlay.CleanupGame(ctx, game)

	game.Status = gameStatusLeave
	that.broadcastGame(msg.Action, game)

	log.Info("player left game", "playerID", payloadReq.Player.ID, "gameID", game.ID)

	return nil
}

// maybeScheduleBotTurn - kicks off the bot's delayed move when the game is
// waiting on it, and pushes the result to the human players. A stale move
// (game replaced or finished while the bot was thinking) is dropped.
func (that *Server) maybeScheduleBotTurn(ctx context.Context, game *entity.Game) {
	if !game.IsWithBot() || !game.IsBotTurn() {
		return
	}

	log := that.logger.With("method", "maybeScheduleBotTurn", "gameID", game.ID)

	go func() {
		updatedGame, err := that.gamePlay.ScheduleBotTurn(ctx, game.ID)
		if errors.Is(err, apperror.ErrStaleBotTurn) {
			log.Debug("stale bot turn discarded")
			return
		}

		if err != nil {
			log.Error("bot turn failed", "error", err)
			return
		}

		that.broadcastGame(actionGameUpdate, updatedGame)
	}()
}

// broadcastGame - sends the game state to every connected human player.
func (that *Server) broadcastGame(action string, game *entity.Game) {
	log := that.logger.With("method", "broadcastGame", "gameID", game.ID)

	for _, player := range game.Players {
		if player.IsBot() {
			continue
		}

		conn, ok := that.connectionFor(player.ID)
		if !ok {
			log.Warn("connection not found for player", "playerID", player.ID)
			continue
		}

		payloadResp := Payload{
			Player: player,
			Game:   game,
		}

		if err := that.sendMessage(conn, action, payloadResp); err != nil {
			log.Error("failed to send game update", "playerID", player.ID, "error", err)
		}
	}
}

func decodePayload(msg *Message) (*Payload, error) {
	var payload Payload

	if len(msg.Payload) == 0 {
		return &payload, nil
	}

	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return &payload, nil
}
