package storage

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/skalibog/trendgym/internal/config"
	"github.com/skalibog/trendgym/pkg/models"
)

// Измерения архива
const (
	measurementCandles = "exercise_candles"
	measurementAnswers = "answers"
)

// InfluxArchive пишет окна упражнений и ответы пользователей в InfluxDB
type InfluxArchive struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	now      func() time.Time
}

// NewInfluxArchive подключается к InfluxDB и проверяет его состояние
func NewInfluxArchive(ctx context.Context, cfg config.InfluxConfig) (*InfluxArchive, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	return &InfluxArchive{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Organization, cfg.Bucket),
		now:      time.Now,
	}, nil
}

// Close закрывает соединение с базой данных
func (a *InfluxArchive) Close() {
	a.client.Close()
}

// ArchiveExercise сохраняет все свечи окна одной записью
func (a *InfluxArchive) ArchiveExercise(ctx context.Context, exercise models.Exercise) error {
	points := make([]*write.Point, 0, len(exercise.Candles))
	for _, candle := range exercise.Candles {
		points = append(points, influxdb2.NewPoint(
			measurementCandles,
			map[string]string{
				"exercise_id": exercise.ID,
				"symbol":      exercise.Symbol,
				"interval":    exercise.Interval,
				"trend":       exercise.Trend.String(),
			},
			map[string]interface{}{
				"open":   candle.Open,
				"high":   candle.High,
				"low":    candle.Low,
				"close":  candle.Close,
				"volume": candle.Volume,
			},
			candle.OpenTime,
		))
	}
	if len(points) == 0 {
		return nil
	}

	if err := a.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("ошибка записи окна %s: %w", exercise.ID, err)
	}
	return nil
}

// RecordAnswer сохраняет ответ пользователя
func (a *InfluxArchive) RecordAnswer(ctx context.Context, userID string, exercise models.Exercise, choice models.Trend, match bool) error {
	point := influxdb2.NewPoint(
		measurementAnswers,
		map[string]string{
			"user":        userID,
			"exercise_id": exercise.ID,
			"symbol":      exercise.Symbol,
		},
		map[string]interface{}{
			"choice":     int64(choice),
			"true_trend": int64(exercise.Trend),
			"match":      match,
		},
		a.now(),
	)

	if err := a.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("ошибка записи ответа: %w", err)
	}
	return nil
}
