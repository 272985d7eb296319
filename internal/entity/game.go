package entity

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/vishaltelangre/tic-tac-toe/internal/apperror"
)

const (
	StatusFinished = "finished"
	StatusOngoing  = "ongoing"
	StatusWaiting  = "waiting"

	PlayerX   = "X"
	PlayerO   = "O"
	PlayerTie = "-"

	EmptyCell = ""
)

const (
	PublicType  = "public"
	PrivateType = "private"
	WithBotType = "bot"
)

var ErrUnknownGameStatus = errors.New("unknown game status")

type Game struct {
	ID          string    `json:"id"`
	Board       [9]string `json:"board"`
	Winner      string    `json:"winner,omitempty"`
	WinningLine *[3]int   `json:"winning_line,omitempty"`
	Status      string    `json:"status"`
	Turn        string    `json:"player_turn"`
	Players     []*Player `json:"players,omitempty"`
	Type        string    `json:"type,omitempty"`
}

// NewGame - creates a waiting game; the opening mark is drawn uniformly,
// so either side may start.
func NewGame(id, gameType string) *Game {
	return &Game{
		ID:     id,
		Board:  [9]string{},
		Turn:   RandomMark(),
		Status: StatusWaiting,
		Type:   gameType,
	}
}

// RandomMark - returns PlayerX or PlayerO with equal probability.
func RandomMark() string {
	if rand.Intn(2) == 0 { //nolint: gosec // it's ok
		return PlayerX
	}
	return PlayerO
}

// GetRandomMarks - deals the two marks in random order.
func (that *Game) GetRandomMarks() (string, string) {
	if rand.Intn(2) == 0 { //nolint: gosec // it's ok
		return PlayerX, PlayerO
	}
	return PlayerO, PlayerX
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Game) IsOngoing() bool {
	return that.Status == StatusOngoing
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Game) ConfirmOngoingState() error {
	switch {
	case that.IsWaiting():
		return apperror.ErrGameIsNotStarted
	case that.IsFinished():
		return apperror.ErrGameFinished
	case that.IsOngoing():
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownGameStatus, that.Status)
	}
}

func (that *Game) IsPublic() bool {
	return that.Type == PublicType
}

func (that *Game) IsWithBot() bool {
	return that.Type == WithBotType
}

// BotPlayer - returns the computer-controlled seat, or nil.
func (that *Game) BotPlayer() *Player {
	for _, player := range that.Players {
		if player.IsBot() {
			return player
		}
	}
	return nil
}

// IsBotTurn - reports whether the game is waiting on the bot to move.
func (that *Game) IsBotTurn() bool {
	botPlayer := that.BotPlayer()
	return botPlayer != nil && that.IsOngoing() && that.Turn == botPlayer.Mark
}
