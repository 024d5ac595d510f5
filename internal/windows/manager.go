package windows

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"genAgent/internal/config"
	"genAgent/internal/logger"
	"genAgent/internal/tasks"
)

// Manager запускает окна со сдвигом по времени и ждет, пока очередь
// не будет разобрана либо все окна не умрут.
type Manager struct {
	windows []*Window
	queue   *tasks.Queue
	cfg     config.Windows
	log     *logger.Zap
}

func NewManager(windows []*Window, queue *tasks.Queue, cfg config.Windows, log *logger.Zap) *Manager {
	for i, w := range windows {
		w.SetPriority(i)
	}
	return &Manager{
		windows: windows,
		queue:   queue,
		cfg:     cfg,
		log:     log.Named("manager"),
	}
}

// Snapshots возвращает состояние всех окон.
func (m *Manager) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(m.windows))
	for _, w := range m.windows {
		out = append(out, w.Snapshot())
	}
	return out
}

// Window находит окно по ID профиля.
func (m *Manager) Window(id string) *Window {
	for _, w := range m.windows {
		if w.ID() == id {
			return w
		}
	}
	return nil
}

// Run обрабатывает очередь и возвращает итоговую статистику.
func (m *Manager) Run(ctx context.Context) (tasks.Stats, error) {
	if len(m.windows) == 0 {
		return m.queue.Stats(), fmt.Errorf("не настроено ни одного окна")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, runCtx := errgroup.WithContext(runCtx)

	for i, w := range m.windows {
		w := w
		delay := time.Duration(i) * m.cfg.WorkerStagger
		g.Go(func() error {
			if !sleepCtx(runCtx, delay) {
				return nil
			}
			m.log.Info("Запуск окна", zap.String("window", w.ID()))
			w.Run(runCtx)
			return nil
		})
	}

	g.Go(func() error {
		return m.watch(runCtx, cancel)
	})

	err := g.Wait()
	stats := m.queue.Stats()

	m.log.Info("Обработка завершена",
		zap.Int("completed", stats.Completed),
		zap.Int("failed", stats.Failed),
		zap.Int("pending", stats.Pending),
	)
	for _, outcome := range m.queue.Failed() {
		m.log.Warn("Невыполненное задание",
			zap.String("sheet", outcome.Task.SheetName),
			zap.Int("row", outcome.Task.RowNumber),
			zap.String("reason", outcome.Err),
		)
	}
	return stats, err
}

// watch следит за прогрессом и решает, когда работа окончена:
// очередь пуста и никто не работает, либо все окна выведены из строя.
func (m *Manager) watch(ctx context.Context, cancel context.CancelFunc) error {
	progress := time.NewTicker(m.progressInterval())
	defer progress.Stop()

	poll := time.NewTicker(2 * time.Second)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-progress.C:
			m.logProgress()

		case <-poll.C:
			alive, busy := m.census()
			if alive == 0 {
				cancel()
				return fmt.Errorf("все окна выведены из работы")
			}

			stats := m.queue.Stats()
			if stats.Pending == 0 && busy == 0 && stats.Processed > 0 {
				m.log.Info("Очередь разобрана, останавливаемся")
				cancel()
				return nil
			}
		}
	}
}

// census возвращает количество живых и занятых окон.
func (m *Manager) census() (alive, busy int) {
	for _, w := range m.windows {
		if w.Status() != StatusStopped {
			alive++
		}
		if w.busy() {
			busy++
		}
	}
	return alive, busy
}

func (m *Manager) logProgress() {
	stats := m.queue.Stats()
	fields := []zap.Field{
		zap.Int("pending", stats.Pending),
		zap.Int("completed", stats.Completed),
		zap.Int("failed", stats.Failed),
	}
	for _, s := range m.Snapshots() {
		fields = append(fields, zap.String("window_"+s.ID, string(s.Status)))
	}
	m.log.Info("Прогресс", fields...)
}

func (m *Manager) progressInterval() time.Duration {
	if m.cfg.ProgressInterval > 0 {
		return m.cfg.ProgressInterval
	}
	return 30 * time.Second
}
