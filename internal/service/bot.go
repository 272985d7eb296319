package service

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/vishaltelangre/tic-tac-toe/internal/entity"
	"github.com/vishaltelangre/tic-tac-toe/internal/tictactoe"
)

// The bot plays minimax-optimally only when at most `threshold` cells are
// open; the threshold is redrawn uniformly from this range on every turn.
const (
	minSmartThreshold = 3
	maxSmartThreshold = 7
)

var (
	ErrBotNotFound      = errors.New("bot player not found")
	ErrNoAvailableMoves = errors.New("no available moves")
)

type BotService interface {
	MakeTurn(game *entity.Game) error
}

type botService struct{}

func NewBotService() BotService {
	return &botService{}
}

// MakeTurn - picks and applies a move for the bot player. The threshold is
// drawn from a fresh source on every call rather than once per game, so the
// same game can get both smart and random moves out of the bot.
func (that *botService) MakeTurn(game *entity.Game) error {
	botPlayer := game.BotPlayer()
	if botPlayer == nil {
		return ErrBotNotFound
	}

	availableCells := tictactoe.EmptyCells(game.Board)
	if len(availableCells) == 0 {
		return ErrNoAvailableMoves
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint: gosec // it's ok

	chosenCell := availableCells[rnd.Intn(len(availableCells))]

	threshold := minSmartThreshold + rnd.Intn(maxSmartThreshold-minSmartThreshold+1)
	if len(availableCells) <= threshold {
		chosenCell = tictactoe.BestCell(game.Board, botPlayer.Mark)
	}

	if err := tictactoe.MakeTurn(game, botPlayer.Mark, chosenCell); err != nil {
		return fmt.Errorf("bot failed to make turn: %w", err)
	}

	return nil
}
