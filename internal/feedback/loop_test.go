package feedback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/trendgym/internal/exercise"
	"github.com/skalibog/trendgym/internal/model"
	"github.com/skalibog/trendgym/internal/storage"
	"github.com/skalibog/trendgym/internal/storage/memory"
	"github.com/skalibog/trendgym/pkg/models"
)

func intp(v int) *int { return &v }

func window(n int, slope float64) models.Candles {
	out := make(models.Candles, n)
	start := time.Date(2023, time.November, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = models.Candle{
			OpenTime: start.Add(time.Duration(i) * 15 * time.Minute),
			Close:    100 + slope*float64(i),
		}
	}
	return out
}

func testPool(t *testing.T) *exercise.Pool {
	t.Helper()
	pool, err := exercise.NewPool([]models.Exercise{
		{ID: "up", Symbol: "AUSDT", Interval: "15m", Candles: window(40, 1), Trend: models.TrendUp},
		{ID: "down", Symbol: "BUSDT", Interval: "15m", Candles: window(40, -1), Trend: models.TrendDown},
		{ID: "flat", Symbol: "CUSDT", Interval: "15m", Candles: window(40, 0), Trend: models.TrendRange},
	})
	require.NoError(t, err)
	return pool
}

func newLoop(t *testing.T, users storage.UserStore, archive storage.CandleArchive) *Loop {
	t.Helper()
	return NewLoop(testPool(t), users, model.NewNetworkCodec(8, 8, 0.05, 1), archive)
}

func TestSubmitAnswer_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		answer Answer
		field  string
	}{
		{"no user", Answer{ExerciseIndex: intp(0), Choice: intp(1)}, "user_id"},
		{"no choice", Answer{UserID: "u", ExerciseIndex: intp(0)}, "choice"},
		{"choice out of range", Answer{UserID: "u", ExerciseIndex: intp(0), Choice: intp(2)}, "choice"},
		{"no exercise", Answer{UserID: "u", Choice: intp(0)}, "exercise"},
		{"index out of pool", Answer{UserID: "u", ExerciseIndex: intp(3), Choice: intp(0)}, "exercise_index"},
		{"negative index", Answer{UserID: "u", ExerciseIndex: intp(-1), Choice: intp(0)}, "exercise_index"},
		{"unknown id", Answer{UserID: "u", ExerciseID: "nope", Choice: intp(0)}, "exercise_id"},
		{"id and index disagree", Answer{UserID: "u", ExerciseID: "up", ExerciseIndex: intp(1), Choice: intp(0)}, "exercise_index"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := memory.NewUserStore()
			loop := newLoop(t, users, nil)

			result, err := loop.SubmitAnswer(context.Background(), tt.answer)
			require.ErrorIs(t, err, ErrMalformedAnswer)
			assert.Nil(t, result)

			var malformedErr *MalformedAnswerError
			require.ErrorAs(t, err, &malformedErr)
			assert.Equal(t, tt.field, malformedErr.Field)

			assert.Equal(t, 0, users.Writes(), "некорректный ответ ничего не сохраняет")
			_, err = users.LoadStats(context.Background(), "u")
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestSubmitAnswer_AccumulatesStats(t *testing.T) {
	users := memory.NewUserStore()
	loop := newLoop(t, users, nil)
	ctx := context.Background()

	const k = 12
	for i := 0; i < k; i++ {
		result, err := loop.SubmitAnswer(ctx, Answer{
			UserID:        "alice",
			ExerciseIndex: intp(i % 3),
			Choice:        intp(i%3 - 1),
		})
		require.NoError(t, err)
		assert.Equal(t, i+1, result.Attempts)
		assert.LessOrEqual(t, result.Matches, result.Attempts)
		assert.GreaterOrEqual(t, result.MatchPercentage, 0.0)
		assert.LessOrEqual(t, result.MatchPercentage, 100.0)
		assert.GreaterOrEqual(t, result.HistoricAccuracy, 0.0)
		assert.LessOrEqual(t, result.HistoricAccuracy, 100.0)
		assert.Greater(t, result.Loss, 0.0)
	}

	stats, err := users.LoadStats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, k, stats.Attempts)
	assert.Len(t, stats.History, k)
	require.NoError(t, stats.Validate())
	assert.Equal(t, "up", stats.History[1].ExerciseID)
	assert.Equal(t, 1, stats.History[1].Index)
	assert.Equal(t, k, users.Writes(), "одна запись на ответ")

	_, err = users.LoadModel(ctx, "alice")
	assert.NoError(t, err)
}

func TestSubmitAnswer_MatchAgainstTrueTrend(t *testing.T) {
	loop := newLoop(t, memory.NewUserStore(), nil)
	ctx := context.Background()

	result, err := loop.SubmitAnswer(ctx, Answer{UserID: "bob", ExerciseID: "down", Choice: intp(-1)})
	require.NoError(t, err)
	assert.True(t, result.Match)
	assert.Equal(t, models.TrendDown, result.TrueTrend)
	assert.Equal(t, models.TrendDown, result.UserTrend)

	result, err = loop.SubmitAnswer(ctx, Answer{UserID: "bob", ExerciseID: "down", Choice: intp(1)})
	require.NoError(t, err)
	assert.False(t, result.Match)
	assert.Equal(t, 2, result.Attempts)
}

func TestSubmitAnswer_UserLearnsConsistentAnswers(t *testing.T) {
	loop := newLoop(t, memory.NewUserStore(), nil)
	ctx := context.Background()

	var last *models.FeedbackResult
	for i := 0; i < 150; i++ {
		index := i % 3
		var err error
		// пользователь всегда выбирает боковик
		last, err = loop.SubmitAnswer(ctx, Answer{UserID: "carol", ExerciseIndex: intp(index), Choice: intp(0)})
		require.NoError(t, err)
	}
	assert.Equal(t, 100.0, last.HistoricAccuracy)
	assert.Greater(t, last.Matches, 100)
}

func TestSubmitAnswer_ConcurrentSameUser(t *testing.T) {
	users := memory.NewUserStore()
	loop := newLoop(t, users, nil)
	ctx := context.Background()

	const n = 24
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := loop.SubmitAnswer(ctx, Answer{UserID: "dave", ExerciseIndex: intp(i % 3), Choice: intp(1)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stats, err := users.LoadStats(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, n, stats.Attempts, "ответы одного пользователя не теряются")
	assert.Len(t, stats.History, n)
	assert.Equal(t, 0, loop.locks.size())
}

func TestSubmitAnswer_UsersAreIndependent(t *testing.T) {
	users := memory.NewUserStore()
	loop := newLoop(t, users, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for u := 0; u < 5; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			for i := 0; i < 4; i++ {
				_, err := loop.SubmitAnswer(ctx, Answer{UserID: fmt.Sprintf("user-%d", u), ExerciseIndex: intp(i % 3), Choice: intp(0)})
				assert.NoError(t, err)
			}
		}(u)
	}
	wg.Wait()

	for u := 0; u < 5; u++ {
		stats, err := users.LoadStats(ctx, fmt.Sprintf("user-%d", u))
		require.NoError(t, err)
		assert.Equal(t, 4, stats.Attempts)
	}
}

// failingStore отказывает при сохранении
type failingStore struct {
	*memory.UserStore
	err error
}

func (s *failingStore) SaveUserState(context.Context, string, []byte, *models.UserStats) error {
	return s.err
}

func TestSubmitAnswer_SaveFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewUserStore()
	loop := newLoop(t, inner, nil)

	_, err := loop.SubmitAnswer(ctx, Answer{UserID: "erin", ExerciseIndex: intp(0), Choice: intp(1)})
	require.NoError(t, err)
	modelBefore, err := inner.LoadModel(ctx, "erin")
	require.NoError(t, err)

	boom := errors.New("disk full")
	archive := memory.NewArchive()
	failing := NewLoop(testPool(t), &failingStore{UserStore: inner, err: boom}, model.NewNetworkCodec(8, 8, 0.05, 1), archive)

	_, err = failing.SubmitAnswer(ctx, Answer{UserID: "erin", ExerciseIndex: intp(1), Choice: intp(-1)})
	require.ErrorIs(t, err, boom)

	stats, err := inner.LoadStats(ctx, "erin")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Attempts)
	modelAfter, err := inner.LoadModel(ctx, "erin")
	require.NoError(t, err)
	assert.Equal(t, modelBefore, modelAfter)
	assert.Empty(t, archive.Answers(), "ответ не архивируется без сохранения")
}

func TestSubmitAnswer_CorruptModel(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserStore()
	require.NoError(t, users.SaveUserState(ctx, "frank", []byte("garbage"), &models.UserStats{}))
	loop := newLoop(t, users, nil)

	_, err := loop.SubmitAnswer(ctx, Answer{UserID: "frank", ExerciseIndex: intp(0), Choice: intp(1)})
	require.ErrorIs(t, err, model.ErrInvalidModel)
	assert.Equal(t, 1, users.Writes())
}

func TestSubmitAnswer_HistoryOutsidePool(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserStore()
	codec := model.NewNetworkCodec(8, 8, 0.05, 1)
	blob, err := codec.Encode(codec.New())
	require.NoError(t, err)

	stats := &models.UserStats{
		Attempts: 1,
		Matches:  1,
		History:  []models.AnswerRecord{{ExerciseID: "expired", Index: 99, Choice: models.TrendUp}},
	}
	require.NoError(t, users.SaveUserState(ctx, "gina", blob, stats))

	archive := memory.NewArchive()
	loop := NewLoop(testPool(t), users, codec, archive)
	result, err := loop.SubmitAnswer(ctx, Answer{UserID: "gina", ExerciseID: "flat", Choice: intp(0)})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempts)
	assert.Contains(t, []float64{0, 100}, result.HistoricAccuracy, "оценка только по одной записи в пуле")

	answers := archive.Answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "flat", answers[0].ExerciseID)
	assert.True(t, answers[0].Match)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 66.67, percentage(2.0/3.0))
	assert.Equal(t, 100.0, percentage(1))
	assert.Equal(t, 0.0, percentage(0))
}
