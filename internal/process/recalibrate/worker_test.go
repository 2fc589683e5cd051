package recalibrate

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmuse/aesthete/internal/core/domain"
	"github.com/openmuse/aesthete/internal/platform/config"
	"github.com/openmuse/aesthete/internal/rank"
	db "github.com/openmuse/aesthete/internal/storage"
)

const (
	testRaterA = "c3a9f1e4-5b6d-47c8-90ab-cdef12345678"
	testRaterB = "f1e2d3c4-b5a6-4978-8102-334455667788"
)

type reliabilityUpdate struct {
	reliability float64
	samples     int
}

type mockRepo struct {
	lockHeld bool
	lockErr  error
	released bool

	due              []string
	dueCalls         int
	gotUpdatedBefore time.Time
	gotSettledBefore time.Time
	gotMinVotes      int
	gotBatchLimit    int

	raters   map[string]*domain.Rater
	raterErr map[string]error

	votes        map[string][]db.SettledVote
	gotVoteLimit int

	updates map[string]reliabilityUpdate
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		raters:   map[string]*domain.Rater{},
		raterErr: map[string]error{},
		votes:    map[string][]db.SettledVote{},
		updates:  map[string]reliabilityUpdate{},
	}
}

func (m *mockRepo) TryAdvisoryLock(_ context.Context, _ int64) (func(), bool, error) {
	if m.lockErr != nil {
		return nil, false, m.lockErr
	}

	if m.lockHeld {
		return nil, false, nil
	}

	return func() { m.released = true }, true, nil
}

func (m *mockRepo) RatersDueRecalibration(_ context.Context, updatedBefore, settledBefore time.Time, minVotes, limit int) ([]string, error) {
	m.dueCalls++
	m.gotUpdatedBefore = updatedBefore
	m.gotSettledBefore = settledBefore
	m.gotMinVotes = minVotes
	m.gotBatchLimit = limit

	return m.due, nil
}

func (m *mockRepo) SettledVotes(_ context.Context, raterID string, _ time.Time, limit int) ([]db.SettledVote, error) {
	m.gotVoteLimit = limit

	return m.votes[raterID], nil
}

func (m *mockRepo) GetRater(_ context.Context, raterID string) (*domain.Rater, error) {
	if err := m.raterErr[raterID]; err != nil {
		return nil, err
	}

	return m.raters[raterID], nil
}

func (m *mockRepo) UpdateRaterReliability(_ context.Context, raterID string, reliability float64, samples int) error {
	m.updates[raterID] = reliabilityUpdate{reliability: reliability, samples: samples}

	return nil
}

func newTestWorker(repo *mockRepo) *Worker {
	logger := zerolog.Nop()
	cfg := &config.Config{
		RecalibrateInterval:     6 * time.Hour,
		RecalibrateSettleWindow: 72 * time.Hour,
		RecalibrateBatch:        200,
		RecalibrateVoteSample:   150,
	}

	w := NewWorker(cfg, repo, &logger)
	w.scoring = rank.DefaultConfig()

	return w
}

func settledVotes(agree, disagree, ties int) []db.SettledVote {
	votes := make([]db.SettledVote, 0, agree+disagree+ties)

	for i := 0; i < agree; i++ {
		votes = append(votes, db.SettledVote{WinnerMean: 1300, LoserMean: 1100})
	}

	for i := 0; i < disagree; i++ {
		votes = append(votes, db.SettledVote{WinnerMean: 1100, LoserMean: 1300})
	}

	for i := 0; i < ties; i++ {
		votes = append(votes, db.SettledVote{WinnerMean: 1200, LoserMean: 1200})
	}

	return votes
}

func TestSweep_NudgesReliabilityTowardAgreement(t *testing.T) {
	repo := newMockRepo()
	repo.due = []string{testRaterA}
	repo.raters[testRaterA] = &domain.Rater{ID: testRaterA, Reliability: 1.0}
	repo.votes[testRaterA] = settledVotes(15, 5, 0)
	w := newTestWorker(repo)

	w.sweep(context.Background())

	// Agreement 0.75 targets reliability 1.5; one step of 0.25 covers a
	// quarter of the gap.
	update, ok := repo.updates[testRaterA]
	require.True(t, ok)
	assert.InDelta(t, 1.125, update.reliability, 1e-9)
	assert.Equal(t, 20, update.samples)
	assert.True(t, repo.released)
}

func TestSweep_DisagreementLowersReliability(t *testing.T) {
	repo := newMockRepo()
	repo.due = []string{testRaterA}
	repo.raters[testRaterA] = &domain.Rater{ID: testRaterA, Reliability: 1.0}
	repo.votes[testRaterA] = settledVotes(5, 15, 0)
	w := newTestWorker(repo)

	w.sweep(context.Background())

	update, ok := repo.updates[testRaterA]
	require.True(t, ok)
	assert.InDelta(t, 0.875, update.reliability, 1e-9)
}

func TestSweep_TiesCountAsDisagreement(t *testing.T) {
	repo := newMockRepo()
	repo.due = []string{testRaterA}
	repo.raters[testRaterA] = &domain.Rater{ID: testRaterA, Reliability: 1.0}
	repo.votes[testRaterA] = settledVotes(0, 0, 10)
	w := newTestWorker(repo)

	w.sweep(context.Background())

	// Agreement 0 targets the reliability floor 0.1.
	update, ok := repo.updates[testRaterA]
	require.True(t, ok)
	assert.InDelta(t, 0.775, update.reliability, 1e-9)
}

func TestSweep_SkipsWhenLockHeld(t *testing.T) {
	repo := newMockRepo()
	repo.lockHeld = true
	repo.due = []string{testRaterA}
	w := newTestWorker(repo)

	w.sweep(context.Background())

	assert.Equal(t, 0, repo.dueCalls)
	assert.Empty(t, repo.updates)
}

func TestSweep_LockErrorAborts(t *testing.T) {
	repo := newMockRepo()
	repo.lockErr = assert.AnError
	w := newTestWorker(repo)

	w.sweep(context.Background())

	assert.Equal(t, 0, repo.dueCalls)
}

func TestSweep_TooFewSettledVotesLeavesRaterAlone(t *testing.T) {
	repo := newMockRepo()
	repo.due = []string{testRaterA}
	repo.raters[testRaterA] = &domain.Rater{ID: testRaterA, Reliability: 1.0}
	repo.votes[testRaterA] = settledVotes(9, 0, 0)
	w := newTestWorker(repo)

	w.sweep(context.Background())

	assert.Empty(t, repo.updates)
	assert.True(t, repo.released)
}

func TestSweep_MissingRaterSkipped(t *testing.T) {
	repo := newMockRepo()
	repo.due = []string{testRaterA}
	w := newTestWorker(repo)

	w.sweep(context.Background())

	assert.Empty(t, repo.updates)
}

func TestSweep_RaterErrorDoesNotAbortSweep(t *testing.T) {
	repo := newMockRepo()
	repo.due = []string{testRaterA, testRaterB}
	repo.raterErr[testRaterA] = assert.AnError
	repo.raters[testRaterB] = &domain.Rater{ID: testRaterB, Reliability: 1.0}
	repo.votes[testRaterB] = settledVotes(10, 10, 0)
	w := newTestWorker(repo)

	w.sweep(context.Background())

	// Agreement 0.5 is chance level, the nudge holds at neutral.
	update, ok := repo.updates[testRaterB]
	require.True(t, ok)
	assert.InDelta(t, 1.0, update.reliability, 1e-9)
}

func TestSweep_PassesWindowsAndLimits(t *testing.T) {
	repo := newMockRepo()
	repo.due = []string{testRaterA}
	repo.raters[testRaterA] = &domain.Rater{ID: testRaterA, Reliability: 1.0}
	repo.votes[testRaterA] = settledVotes(10, 0, 0)
	w := newTestWorker(repo)

	before := time.Now()
	w.sweep(context.Background())

	assert.WithinDuration(t, before.Add(-6*time.Hour), repo.gotUpdatedBefore, time.Second)
	assert.WithinDuration(t, before.Add(-72*time.Hour), repo.gotSettledBefore, time.Second)
	assert.Equal(t, 10, repo.gotMinVotes)
	assert.Equal(t, 200, repo.gotBatchLimit)
	assert.Equal(t, 150, repo.gotVoteLimit)
}
