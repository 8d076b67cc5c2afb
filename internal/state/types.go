package state

import (
	"cipherarena/internal/fhe"
	"cipherarena/internal/identity"
)

// TotalRounds is both the hand size and the number of rounds in a game.
const TotalRounds = 5

type Game struct {
	ID           uint64           `json:"gameId"`
	Host         identity.Address `json:"host"`
	Opponent     identity.Address `json:"opponent"`
	Started      bool             `json:"started"`
	CurrentRound uint8            `json:"currentRound"`
}

func (g *Game) HasOpponent() bool {
	return !g.Opponent.IsZero()
}

func (g *Game) Completed() bool {
	return g.CurrentRound >= TotalRounds
}

func (g *Game) IsParticipant(a identity.Address) bool {
	if a.IsZero() {
		return false
	}
	return a == g.Host || a == g.Opponent
}

// Status is the human label used in listings.
func (g *Game) Status() string {
	switch {
	case !g.HasOpponent():
		return "Waiting opponent"
	case !g.Started:
		return "Ready to start"
	case g.Completed():
		return "Completed"
	default:
		return "In progress"
	}
}

// Hand is one player's dealt cards. Cards never change once dealt; Used
// flags flip false to true exactly once.
type Hand struct {
	Cards [TotalRounds]fhe.Handle `json:"cards"`
	Used  [TotalRounds]bool       `json:"used"`
}

func (h *Hand) CardsPlayed() int {
	n := 0
	for _, u := range h.Used {
		if u {
			n++
		}
	}
	return n
}

// Round holds the two round slots and, once both are filled, the outcome.
type Round struct {
	HostCard       fhe.Handle `json:"hostCard"`
	OpponentCard   fhe.Handle `json:"opponentCard"`
	HostPlayed     bool       `json:"hostPlayed"`
	OpponentPlayed bool       `json:"opponentPlayed"`
	Outcome        fhe.Handle `json:"outcome"`
	Resolved       bool       `json:"resolved"`
}

// Outcome codes carried (encrypted) by Round.Outcome.
const (
	OutcomeTie         = 0
	OutcomeHostWins    = 1
	OutcomeOpponentWin = 2
)

func OutcomeLabel(code uint64) string {
	switch code {
	case OutcomeTie:
		return "Tie"
	case OutcomeHostWins:
		return "Host wins"
	case OutcomeOpponentWin:
		return "Opponent wins"
	default:
		return "Unknown"
	}
}
