// Package scoring holds the pure point, ranking and distribution computations used by the session engine.
package scoring

import (
	"math"
	"time"

	"live-quiz-service/internal/domain"
)

const (
	// TimeBonusShare is the fraction of base points available as speed bonus.
	TimeBonusShare = 0.5
	// DifficultyBonusShare is the fraction of base points available as difficulty bonus.
	DifficultyBonusShare = 0.2
	// DifficultyThreshold is the number of submissions required before the difficulty bonus applies.
	DifficultyThreshold = 5
)

// Elapsed returns the response time of a submission in seconds, clamped to [0, timeLimit].
func Elapsed(question domain.Question, submission domain.Submission, questionStart time.Time) float64 {
	elapsed := submission.ArrivedAt.Sub(questionStart)
	if elapsed < 0 {
		return 0
	}
	if limit := question.TimeLimitDuration(); elapsed > limit {
		elapsed = limit
	}
	return elapsed.Seconds()
}

// Score returns the points awarded for submission.
//
// soFar holds every submission recorded for the question up to and including this one; the
// difficulty bonus ratio is therefore self-inclusive. A correct answer always earns the base
// points, plus up to 50% for speed and up to 20% when most of the room got it wrong.
func Score(question domain.Question, submission domain.Submission, questionStart time.Time, soFar []domain.Submission) int {
	if submission.Option != question.CorrectIndex {
		return 0
	}

	base := float64(question.Points)
	limit := float64(question.TimeLimit)
	elapsed := Elapsed(question, submission, questionStart)

	fraction := math.Max(0, (limit-elapsed)/limit)
	timeBonus := int(math.Round(base * TimeBonusShare * fraction))

	difficultyBonus := 0
	if total := len(soFar); total >= DifficultyThreshold {
		correct := 0
		for _, s := range soFar {
			if s.Option == question.CorrectIndex {
				correct++
			}
		}
		difficultyBonus = int(math.Round(base * DifficultyBonusShare * (1 - float64(correct)/float64(total))))
	}

	return question.Points + timeBonus + difficultyBonus
}

// Percent returns part/total as a rounded integer percentage, 0 when total is 0.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// Distribution counts how many submissions picked each option of question.
func Distribution(question domain.Question, submissions []domain.Submission) []domain.OptionStat {
	counts := make([]int, len(question.Options))
	for _, s := range submissions {
		if s.Option >= 0 && s.Option < len(counts) {
			counts[s.Option]++
		}
	}
	stats := make([]domain.OptionStat, len(question.Options))
	for i, text := range question.Options {
		stats[i] = domain.OptionStat{
			OptionIndex: i,
			OptionText:  text,
			Count:       counts[i],
			Percentage:  Percent(counts[i], len(submissions)),
			Correct:     i == question.CorrectIndex,
		}
	}
	return stats
}
