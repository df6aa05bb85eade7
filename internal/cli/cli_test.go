package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/memory"
	redisinfra "live-quiz-service/internal/infra/redis"
)

func TestSampleQuizzesAreValid(t *testing.T) {
	for id, quiz := range sampleQuizzes() {
		assert.Equal(t, id, quiz.ID)
		require.NoError(t, quiz.Validate())
	}
}

func TestRegistryConfigFromSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Session.Retention = "30m"
	cfg.Session.MaxPlayers = 12
	cfg.Session.ResultsDelay = "5s"

	rc := registryConfig(cfg)
	assert.Equal(t, 30*time.Minute, rc.Retention)
	assert.Equal(t, time.Minute, rc.SweepInterval)
	assert.Equal(t, 12, rc.Engine.MaxPlayers)
	assert.Equal(t, 5*time.Second, rc.Engine.ResultsDelay)
}

func TestSnapshotStoreFallsBackToMemory(t *testing.T) {
	cfg := config.Default()
	assert.IsType(t, &memory.SessionStore{}, snapshotStore(cfg, nil))

	assert.Nil(t, newRedisClient(cfg))

	cfg.Redis.Addr = "127.0.0.1:0"
	client := newRedisClient(cfg)
	require.NotNil(t, client)
	defer client.Close()
	assert.IsType(t, &redisinfra.SessionStore{}, snapshotStore(cfg, client))
}

func TestReadQuizzes(t *testing.T) {
	dir := t.TempDir()

	single := filepath.Join(dir, "one.json")
	require.NoError(t, os.WriteFile(single, []byte(`{"id":"a","questions":[{"text":"?","options":["x","y"],"correctIndex":0,"timeLimit":10,"points":100}]}`), 0o600))
	quizzes, err := readQuizzes(single)
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.Equal(t, "a", quizzes[0].ID)

	many := filepath.Join(dir, "many.json")
	require.NoError(t, os.WriteFile(many, []byte(`[{"id":"a"},{"id":"b"}]`), 0o600))
	quizzes, err = readQuizzes(many)
	require.NoError(t, err)
	assert.Len(t, quizzes, 2)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`nope`), 0o600))
	_, err = readQuizzes(bad)
	assert.Error(t, err)
}

func TestRootCommandWiring(t *testing.T) {
	cmd := newRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["start"])
	assert.True(t, names["migrate"])
	assert.True(t, names["seed"])
}
