package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/postgres"
	redisinfra "live-quiz-service/internal/infra/redis"
)

// NewSeedCmd loads quizzes from a JSON file into Postgres and drops their cached copies from Redis.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert or replace quizzes from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			quizzes, err := readQuizzes(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := runMigrationsWithConfig(ctx, cfg); err != nil {
				return err
			}
			db, err := openBun(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			var cache *redisinfra.QuizRepository
			if client := newRedisClient(cfg); client != nil {
				defer client.Close()
				cache = redisinfra.NewQuizRepository(client, nil, 0)
			}

			store := postgres.NewQuizStore(db)
			for _, quiz := range quizzes {
				if err := store.Upsert(ctx, quiz); err != nil {
					return err
				}
				if cache != nil {
					if err := cache.Invalidate(ctx, quiz.ID); err != nil {
						log.Warn().Err(err).Str("quiz_id", quiz.ID).Msg("drop cached quiz failed")
					}
				}
				log.Info().Str("quiz_id", quiz.ID).Int("questions", len(quiz.Questions)).Msg("quiz seeded")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "quizzes.json", "JSON file holding a quiz or an array of quizzes")
	return cmd
}

// readQuizzes accepts either a single quiz object or an array of them.
func readQuizzes(path string) ([]domain.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var many []domain.Quiz
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}
	var one domain.Quiz
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return []domain.Quiz{one}, nil
}
