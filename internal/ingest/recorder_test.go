package ingest

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmuse/aesthete/internal/core/domain"
	apperrors "github.com/openmuse/aesthete/internal/core/errors"
)

const (
	testRater = "9f8b1c2d-3e4f-4a5b-8c6d-7e8f9a0b1c2d"
	testItemA = "11111111-1111-1111-1111-111111111111"
	testItemB = "22222222-2222-2222-2222-222222222222"
	testItemC = "33333333-3333-3333-3333-333333333333"
)

type mockRepo struct {
	nextID int64
	err    error

	pairwise []domain.PairwiseEvent
	ratings  []domain.RatingEvent
	favs     []domain.FavoriteEvent

	lastPriority int16
}

func (m *mockRepo) AppendPairwise(_ context.Context, ev domain.PairwiseEvent, priority int16) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}

	m.pairwise = append(m.pairwise, ev)
	m.lastPriority = priority
	m.nextID++

	return m.nextID, nil
}

func (m *mockRepo) AppendRating(_ context.Context, ev domain.RatingEvent, priority int16) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}

	m.ratings = append(m.ratings, ev)
	m.lastPriority = priority
	m.nextID++

	return m.nextID, nil
}

func (m *mockRepo) AppendFavorite(_ context.Context, ev domain.FavoriteEvent, priority int16) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}

	m.favs = append(m.favs, ev)
	m.lastPriority = priority
	m.nextID++

	return m.nextID, nil
}

func newTestRecorder(repo *mockRepo) *Recorder {
	logger := zerolog.Nop()

	return NewRecorder(repo, &logger)
}

func validPairwise() PairwiseVote {
	return PairwiseVote{
		RaterID:     testRater,
		ItemA:       testItemA,
		ItemB:       testItemB,
		Winner:      testItemA,
		ItemARating: 1200,
		ItemBRating: 1250,
		Class:       domain.WeightClassNormal,
	}
}

func TestRecordPairwise_Valid(t *testing.T) {
	repo := &mockRepo{}
	rec := newTestRecorder(repo)

	id, err := rec.RecordPairwise(context.Background(), validPairwise())
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	require.Len(t, repo.pairwise, 1)
	ev := repo.pairwise[0]
	assert.Equal(t, testItemA, ev.Winner)
	assert.Equal(t, 1250.0, ev.ItemBRating)
	assert.Equal(t, domain.WeightClassNormal, ev.Class)
	assert.Equal(t, int16(1), repo.lastPriority)
}

func TestRecordPairwise_EmptyClassDefaultsToNormal(t *testing.T) {
	repo := &mockRepo{}
	rec := newTestRecorder(repo)

	vote := validPairwise()
	vote.Class = ""

	_, err := rec.RecordPairwise(context.Background(), vote)
	require.NoError(t, err)
	assert.Equal(t, domain.WeightClassNormal, repo.pairwise[0].Class)
}

func TestRecordPairwise_BoostedPriority(t *testing.T) {
	repo := &mockRepo{}
	rec := newTestRecorder(repo)

	vote := validPairwise()
	vote.Class = domain.WeightClassBoosted

	_, err := rec.RecordPairwise(context.Background(), vote)
	require.NoError(t, err)
	assert.Equal(t, int16(3), repo.lastPriority)
}

func TestRecordPairwise_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PairwiseVote)
		wantErr error
	}{
		{
			name:    "self comparison",
			mutate:  func(v *PairwiseVote) { v.ItemB = v.ItemA; v.Winner = v.ItemA },
			wantErr: apperrors.ErrSelfComparison,
		},
		{
			name:    "winner outside pair",
			mutate:  func(v *PairwiseVote) { v.Winner = testItemC },
			wantErr: apperrors.ErrWinnerNotInPair,
		},
		{
			name:    "bad rater id",
			mutate:  func(v *PairwiseVote) { v.RaterID = "not-a-uuid" },
			wantErr: apperrors.ErrInvalidID,
		},
		{
			name:    "bad item id",
			mutate:  func(v *PairwiseVote) { v.ItemB = "42" },
			wantErr: apperrors.ErrInvalidID,
		},
		{
			name:    "NaN snapshot",
			mutate:  func(v *PairwiseVote) { v.ItemARating = math.NaN() },
			wantErr: apperrors.ErrSnapshotNotFinite,
		},
		{
			name:    "infinite snapshot",
			mutate:  func(v *PairwiseVote) { v.ItemBRating = math.Inf(1) },
			wantErr: apperrors.ErrSnapshotNotFinite,
		},
		{
			name:    "unknown weight class",
			mutate:  func(v *PairwiseVote) { v.Class = "mega" },
			wantErr: apperrors.ErrUnknownWeightClass,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{}
			rec := newTestRecorder(repo)

			vote := validPairwise()
			tt.mutate(&vote)

			_, err := rec.RecordPairwise(context.Background(), vote)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, repo.pairwise, "nothing should be written on validation failure")
		})
	}
}

func TestRecordRating_Valid(t *testing.T) {
	repo := &mockRepo{}
	rec := newTestRecorder(repo)

	id, err := rec.RecordRating(context.Background(), RatingVote{
		RaterID:  testRater,
		ItemID:   testItemA,
		RawScore: 73,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	require.Len(t, repo.ratings, 1)
	assert.Equal(t, 73.0, repo.ratings[0].RawScore)
	assert.Equal(t, int16(2), repo.lastPriority)
}

func TestRecordRating_ScoreOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		score float64
	}{
		{name: "negative", score: -0.5},
		{name: "above 100", score: 100.5},
		{name: "NaN", score: math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{}
			rec := newTestRecorder(repo)

			_, err := rec.RecordRating(context.Background(), RatingVote{
				RaterID:  testRater,
				ItemID:   testItemA,
				RawScore: tt.score,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrScoreOutOfRange)
			assert.Empty(t, repo.ratings)
		})
	}
}

func TestRecordRating_BoundaryScores(t *testing.T) {
	repo := &mockRepo{}
	rec := newTestRecorder(repo)

	for _, score := range []float64{0, 100} {
		_, err := rec.RecordRating(context.Background(), RatingVote{
			RaterID:  testRater,
			ItemID:   testItemA,
			RawScore: score,
		})
		require.NoError(t, err, "score %v should be accepted", score)
	}
}

func TestRecordFavorite_Valid(t *testing.T) {
	repo := &mockRepo{}
	rec := newTestRecorder(repo)

	id, err := rec.RecordFavorite(context.Background(), FavoriteVote{
		RaterID: testRater,
		ItemID:  testItemA,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, int16(4), repo.lastPriority)
}

func TestRecord_RepoErrorPropagates(t *testing.T) {
	repo := &mockRepo{err: errors.New("connection reset")}
	rec := newTestRecorder(repo)

	_, err := rec.RecordPairwise(context.Background(), validPairwise())
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection reset")
}
