// Package api HTTP интерфейс выдачи упражнений и приема ответов
package api

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/skalibog/trendgym/internal/exercise"
	"github.com/skalibog/trendgym/internal/feedback"
	"github.com/skalibog/trendgym/internal/observability"
	"github.com/skalibog/trendgym/pkg/logger"
	"github.com/skalibog/trendgym/pkg/models"
)

// Submitter обработчик ответов
type Submitter interface {
	SubmitAnswer(ctx context.Context, answer feedback.Answer) (*models.FeedbackResult, error)
}

// Options параметры HTTP сервера
type Options struct {
	Addr string
	Mode string
	Seed int64
}

// Server gin сервер поверх пула и цикла обратной связи
type Server struct {
	pool      *exercise.Pool
	submitter Submitter
	engine    *gin.Engine
	http      *http.Server

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewServer настраивает маршруты
func NewServer(pool *exercise.Pool, submitter Submitter, opts Options) *Server {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Server{
		pool:      pool,
		submitter: submitter,
		engine:    gin.New(),
		rng:       rand.New(rand.NewSource(seed)),
	}
	s.engine.Use(gin.Recovery(), requestLogger())

	s.engine.GET("/exercise", s.getExercise)
	s.engine.POST("/respond", s.respond)
	s.engine.GET("/healthz", s.healthz)
	s.engine.GET("/metrics", gin.WrapH(observability.Handler()))

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler для тестов и встраивания
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run блокируется до остановки сервера
func (s *Server) Run() error {
	logger.Info("HTTP сервер запущен", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown дожидается завершения активных запросов
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Остановка HTTP сервера")
	return s.http.Shutdown(ctx)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "pool_size": s.pool.Len()})
}

func (s *Server) randomExercise() (models.Exercise, int, error) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.pool.Random(s.rng)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("HTTP запрос", fields...)
			return
		}
		logger.Debug("HTTP запрос", fields...)
	}
}
