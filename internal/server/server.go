// Package server поднимает HTTP API для наблюдения за прогоном:
// статистика очереди, состояние окон, ручная пауза.
package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"genAgent/internal/config"
	"genAgent/internal/database"
	"genAgent/internal/logger"
	"genAgent/internal/tasks"
	"genAgent/internal/windows"
)

type Server struct {
	cfg  *config.Cfg
	log  *logger.Zap
	repo *database.Repository

	mu      sync.RWMutex
	queue   *tasks.Queue
	manager *windows.Manager
}

func New(cfg *config.Cfg, log *logger.Zap, repo *database.Repository) *Server {
	return &Server{
		cfg:  cfg,
		log:  log.Named("server"),
		repo: repo,
	}
}

// Attach подключает текущий прогон: его очередь и менеджер окон.
func (s *Server) Attach(queue *tasks.Queue, manager *windows.Manager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = queue
	s.manager = manager
}

// Current возвращает очередь и менеджер текущего прогона.
func (s *Server) Current() (*tasks.Queue, *windows.Manager) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue, s.manager
}

func (s *Server) Run() error {
	gin.SetMode(gin.ReleaseMode)
	r := s.Router()

	addr := fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
	s.log.Info("Сервер запущен", zap.String("addr", addr))
	return r.Run(addr)
}

// Router собирает маршруты. Вынесено отдельно ради httptest.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// Простейший лог-мидлвар
	r.Use(func(c *gin.Context) {
		s.log.Info("HTTP",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Статистика очереди текущего прогона
	r.GET("/api/stats", func(c *gin.Context) {
		queue, _ := s.Current()
		if queue == nil {
			c.JSON(http.StatusOK, gin.H{"active": false})
			return
		}
		stats := queue.Stats()
		c.JSON(http.StatusOK, gin.H{
			"active":    true,
			"pending":   stats.Pending,
			"completed": stats.Completed,
			"failed":    stats.Failed,
		})
	})

	// Состояние окон
	r.GET("/api/windows", func(c *gin.Context) {
		_, manager := s.Current()
		if manager == nil {
			c.JSON(http.StatusOK, []windows.Snapshot{})
			return
		}
		c.JSON(http.StatusOK, manager.Snapshots())
	})

	// Ручная пауза окна
	r.POST("/api/windows/:id/pause", func(c *gin.Context) {
		if w, ok := s.findWindow(c); ok {
			w.Pause()
			c.JSON(http.StatusOK, w.Snapshot())
		}
	})

	r.POST("/api/windows/:id/resume", func(c *gin.Context) {
		if w, ok := s.findWindow(c); ok {
			w.Resume()
			c.JSON(http.StatusOK, w.Snapshot())
		}
	})

	// История прогонов из БД
	r.GET("/api/runs", func(c *gin.Context) {
		if s.repo == nil {
			c.JSON(http.StatusOK, []database.GenerationRun{})
			return
		}
		runs, err := s.repo.ListRuns(50, 0)
		if err != nil {
			s.log.Error("db list runs", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		c.JSON(http.StatusOK, runs)
	})

	return r
}

func (s *Server) findWindow(c *gin.Context) (*windows.Window, bool) {
	_, manager := s.Current()
	if manager == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "прогон не запущен"})
		return nil, false
	}
	w := manager.Window(c.Param("id"))
	if w == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "окно не найдено"})
		return nil, false
	}
	return w, true
}
