package scoring

import (
	"sort"

	"live-quiz-service/internal/domain"
)

// Rank re-sorts players by score descending and reassigns ranks.
// The sort is stable, so tied players keep their previous relative order. Each player's
// current rank is preserved in PreviousRank before being overwritten.
func Rank(players []*domain.Player) {
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})
	for i, p := range players {
		p.PreviousRank = p.Rank
		p.Rank = i + 1
	}
}

// Streak counts the trailing correct answers in history.
func Streak(history []domain.AnswerRecord) int {
	streak := 0
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].Correct {
			break
		}
		streak++
	}
	return streak
}

// Entries converts the first limit ranked players into leaderboard rows. limit <= 0 means all.
func Entries(players []*domain.Player, limit int) []domain.LeaderboardEntry {
	n := len(players)
	if limit > 0 && limit < n {
		n = limit
	}
	entries := make([]domain.LeaderboardEntry, 0, n)
	for _, p := range players[:n] {
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID:     p.ID,
			Nickname:     p.Nickname,
			Score:        p.Score,
			Rank:         p.Rank,
			PreviousRank: p.PreviousRank,
			Streak:       p.Streak,
			LastCorrect:  p.LastCorrect,
			Accuracy:     p.Accuracy(),
			Online:       p.Online,
		})
	}
	return entries
}
