package tictactoe

import (
	"fmt"

	"github.com/vishaltelangre/tic-tac-toe/internal/apperror"
	"github.com/vishaltelangre/tic-tac-toe/internal/entity"
)

// WinCombos are the 8 fixed winning lines: 3 rows, 3 columns, 2 diagonals.
var WinCombos = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// MakeTurn - applies one move for the given mark and re-evaluates the game.
// A rejected move leaves the game untouched.
func MakeTurn(gameInstance *entity.Game, mark string, cell int) error {
	if err := gameInstance.ConfirmOngoingState(); err != nil {
		return err
	}

	if err := validateMove(gameInstance, mark, cell); err != nil {
		return fmt.Errorf("invalid turn: %w", err)
	}

	gameInstance.Board[cell] = mark
	updateGameStatus(gameInstance, mark)

	return nil
}

// validateMove - checks if the move is valid.
func validateMove(gameInstance *entity.Game, mark string, cell int) error {
	if cell < 0 || cell >= len(gameInstance.Board) {
		return apperror.ErrInvalidCell
	}

	if gameInstance.Turn != mark {
		return apperror.ErrNotYourTurn
	}

	if gameInstance.Board[cell] != entity.EmptyCell {
		return apperror.ErrCellOccupied
	}

	return nil
}

// updateGameStatus - recomputes the game status after a move.
func updateGameStatus(gameInstance *entity.Game, lastMover string) {
	winner, line, full := Evaluate(gameInstance.Board, lastMover)

	switch {
	case winner != entity.EmptyCell:
		gameInstance.Winner = winner
		gameInstance.WinningLine = line
		gameInstance.Status = entity.StatusFinished
		gameInstance.Turn = entity.EmptyCell
	case full:
		gameInstance.Winner = entity.PlayerTie
		gameInstance.Status = entity.StatusFinished
		gameInstance.Turn = entity.EmptyCell
	default:
		gameInstance.Turn = ToggleMark(lastMover)
	}
}

// Evaluate - scans the 8 winning lines and reports the winner, the matched
// line and whether the board is full. The last mover's lines are checked
// before the opponent's: in correct play only one side can have a line, but
// callers may hand in hand-built boards where both do.
func Evaluate(board [9]string, lastMover string) (string, *[3]int, bool) {
	if lastMover == entity.EmptyCell {
		lastMover = entity.PlayerX
	}

	full := len(EmptyCells(board)) == 0

	if line, ok := winningLine(board, lastMover); ok {
		return lastMover, line, full
	}

	if line, ok := winningLine(board, ToggleMark(lastMover)); ok {
		return ToggleMark(lastMover), line, full
	}

	return entity.EmptyCell, nil, full
}

// winningLine - returns the first combo fully owned by mark.
func winningLine(board [9]string, mark string) (*[3]int, bool) {
	for _, combo := range WinCombos {
		if board[combo[0]] == mark && board[combo[1]] == mark && board[combo[2]] == mark {
			matched := combo
			return &matched, true
		}
	}

	return nil, false
}

// EmptyCells - lists the open cell indices in ascending order.
func EmptyCells(board [9]string) []int {
	cells := make([]int, 0, len(board))
	for i, cell := range board {
		if cell == entity.EmptyCell {
			cells = append(cells, i)
		}
	}

	return cells
}

func ToggleMark(mark string) string {
	if mark == entity.PlayerX {
		return entity.PlayerO
	}
	return entity.PlayerX
}
