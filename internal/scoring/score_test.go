package scoring_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/scoring"
)

var start = time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)

func question() domain.Question {
	return domain.Question{
		ID:           "q1",
		Text:         "What is 2 + 2?",
		Options:      []string{"3", "4", "5"},
		CorrectIndex: 1,
		TimeLimit:    30,
		Points:       1000,
	}
}

func submit(option int, after time.Duration) domain.Submission {
	return domain.Submission{PlayerID: "p", Option: option, ArrivedAt: start.Add(after)}
}

func TestScore_TimeBonus(t *testing.T) {
	tests := []struct {
		name string
		sub  domain.Submission
		want int
	}{
		{name: "instant answer earns full bonus", sub: submit(1, 0), want: 1500},
		{name: "answer at the limit earns base only", sub: submit(1, 30*time.Second), want: 1000},
		{name: "half the time earns half the bonus", sub: submit(1, 15*time.Second), want: 1250},
		{name: "clock skew clamps to zero elapsed", sub: submit(1, -2*time.Second), want: 1500},
		{name: "late delivery clamps to the limit", sub: submit(1, 45*time.Second), want: 1000},
		{name: "wrong answer earns nothing", sub: submit(0, 0), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoring.Score(question(), tt.sub, start, []domain.Submission{tt.sub})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScore_DifficultyBonus(t *testing.T) {
	q := question()
	current := submit(1, 0)

	t.Run("below threshold", func(t *testing.T) {
		soFar := []domain.Submission{submit(0, 0), submit(0, 0), submit(2, 0), current}
		assert.Equal(t, 1500, scoring.Score(q, current, start, soFar))
	})

	t.Run("self inclusive ratio at threshold", func(t *testing.T) {
		// 2 of 5 correct including the scored submission: round(1000*0.2*0.6) = 120.
		soFar := []domain.Submission{submit(0, 0), submit(1, 0), submit(2, 0), submit(0, 0), current}
		assert.Equal(t, 1620, scoring.Score(q, current, start, soFar))
	})

	t.Run("everyone correct earns no bonus", func(t *testing.T) {
		soFar := []domain.Submission{submit(1, 0), submit(1, 0), submit(1, 0), submit(1, 0), current}
		assert.Equal(t, 1500, scoring.Score(q, current, start, soFar))
	})

	t.Run("wrong answers never earn the bonus", func(t *testing.T) {
		wrong := submit(2, 0)
		soFar := []domain.Submission{submit(0, 0), submit(0, 0), submit(0, 0), submit(0, 0), wrong}
		assert.Zero(t, scoring.Score(q, wrong, start, soFar))
	})
}

func TestRank_StableDescending(t *testing.T) {
	a := &domain.Player{ID: "a", Rank: 1}
	b := &domain.Player{ID: "b", Rank: 2}
	c := &domain.Player{ID: "c", Rank: 3}
	players := []*domain.Player{a, b, c}

	b.Score = 10
	scoring.Rank(players)

	require.Equal(t, []string{"b", "a", "c"}, ids(players))
	assert.Equal(t, 1, b.Rank)
	assert.Equal(t, 2, b.PreviousRank)
	assert.Equal(t, 2, a.Rank)
	assert.Equal(t, 1, a.PreviousRank)

	// a catches up to b: the tie keeps b ahead because it got there first.
	a.Score = 10
	scoring.Rank(players)
	assert.Equal(t, []string{"b", "a", "c"}, ids(players))
}

func TestStreak(t *testing.T) {
	history := []domain.AnswerRecord{{Correct: true}, {Correct: false}, {Correct: true}, {Correct: true}}
	assert.Equal(t, 2, scoring.Streak(history))
	assert.Zero(t, scoring.Streak(nil))
	assert.Zero(t, scoring.Streak(history[:2]))
}

func TestDistribution(t *testing.T) {
	subs := []domain.Submission{submit(0, 0), submit(0, 0), submit(1, 0)}
	stats := scoring.Distribution(question(), subs)

	require.Len(t, stats, 3)
	assert.Equal(t, 2, stats[0].Count)
	assert.Equal(t, 67, stats[0].Percentage)
	assert.Equal(t, 33, stats[1].Percentage)
	assert.True(t, stats[1].Correct)
	assert.Zero(t, stats[2].Percentage)
}

func TestEntriesLimit(t *testing.T) {
	players := []*domain.Player{{ID: "a", Rank: 1}, {ID: "b", Rank: 2}, {ID: "c", Rank: 3}}
	assert.Len(t, scoring.Entries(players, 2), 2)
	assert.Len(t, scoring.Entries(players, 0), 3)
}

func TestEntriesAccuracy(t *testing.T) {
	players := []*domain.Player{
		{ID: "a", Rank: 1, CorrectAnswers: 2, TotalAnswers: 3},
		{ID: "b", Rank: 2},
	}
	entries := scoring.Entries(players, 0)
	assert.InDelta(t, 66.7, entries[0].Accuracy, 0.001)
	assert.Zero(t, entries[1].Accuracy)
}

func TestElapsedClampsToTimeLimit(t *testing.T) {
	q := question()

	assert.Equal(t, float64(q.TimeLimit), scoring.Elapsed(q, submit(1, q.TimeLimitDuration()+5*time.Second), start))
	assert.Zero(t, scoring.Elapsed(q, submit(1, -time.Second), start))
	assert.InDelta(t, 2.5, scoring.Elapsed(q, submit(1, 2500*time.Millisecond), start), 0.0001)
}

func ids(players []*domain.Player) []string {
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.ID
	}
	return out
}
