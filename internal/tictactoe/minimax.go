package tictactoe

import "github.com/vishaltelangre/tic-tac-toe/internal/entity"

// Scores sit in [-1, 1], so these bound any reachable value.
const (
	belowWorstScore = -2
	aboveBestScore  = 2
)

// BestCell - picks the optimal cell for mark by exhaustive minimax. The
// tree is at most 9 plies deep, so no pruning or depth limit is needed.
// Candidates are tried in ascending cell order and only a strictly better
// score replaces the incumbent, so ties resolve to the lowest index.
func BestCell(board [9]string, mark string) int {
	bestCell := -1
	bestScore := belowWorstScore

	for _, cell := range EmptyCells(board) {
		board[cell] = mark
		score := minimax(board, ToggleMark(mark), mark)
		board[cell] = entity.EmptyCell

		if score > bestScore {
			bestScore = score
			bestCell = cell
		}
	}

	return bestCell
}

// minimax - scores the board from perspective's point of view with
// playerToMove to act: +1 when perspective has won, -1 when its opponent
// has, 0 for a draw.
func minimax(board [9]string, playerToMove, perspective string) int {
	winner, _, full := Evaluate(board, ToggleMark(playerToMove))

	switch {
	case winner == perspective:
		return 1
	case winner != entity.EmptyCell:
		return -1
	case full:
		return 0
	}

	maximizing := playerToMove == perspective

	best := belowWorstScore
	if !maximizing {
		best = aboveBestScore
	}

	for _, cell := range EmptyCells(board) {
		board[cell] = playerToMove
		score := minimax(board, ToggleMark(playerToMove), perspective)
		board[cell] = entity.EmptyCell

		if maximizing && score > best {
			best = score
		}

		if !maximizing && score < best {
			best = score
		}
	}

	return best
}
