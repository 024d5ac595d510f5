package windows

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"genAgent/internal/config"
	"genAgent/internal/database"
	"genAgent/internal/logger"
	"genAgent/internal/operator"
	"genAgent/internal/points"
	"genAgent/internal/tasks"
)

// Window — одно окно браузера со своим воркером.
type Window struct {
	id       string
	name     string
	priority int // Порядковый номер запуска, меньше — раньше
	sess     Sessioner
	queue    *tasks.Queue
	gate     *points.Gate
	marker   SheetMarker
	rec      Recorder
	breaker  *CircuitBreaker
	log      *logger.Zap

	cfg       config.Windows
	pointsCfg config.Points

	mu           sync.Mutex
	status       Status
	completed    int
	failed       int
	errors       int // Подряд идущих ошибок
	balance      int
	lastError    string
	lastActivity time.Time
	manualPause  bool
	inFlight     bool // Задание взято из очереди, но еще не доведено до исхода
	sessionID    uint
}

func NewWindow(id, name string, sess Sessioner, queue *tasks.Queue, gate *points.Gate,
	marker SheetMarker, rec Recorder, cfg config.Windows, pointsCfg config.Points, log *logger.Zap) *Window {
	if name == "" {
		name = id
	}
	return &Window{
		id:        id,
		name:      name,
		sess:      sess,
		queue:     queue,
		gate:      gate,
		marker:    marker,
		rec:       rec,
		breaker:   NewCircuitBreaker(cfg.SetupRetries, 2*cfg.RestartDelay),
		log:       log.Named("window").With(zap.String("window", name)),
		cfg:       cfg,
		pointsCfg: pointsCfg,
		status:    StatusStopped,
		balance:   -1,
	}
}

func (w *Window) ID() string   { return w.id }
func (w *Window) Name() string { return w.name }

// SetPriority задает порядок запуска окна (используется менеджером).
func (w *Window) SetPriority(p int) { w.priority = p }

func (w *Window) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// busy — окно занято: выполняет задание, держит его на руках
// или переподключается.
func (w *Window) busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight || w.status == StatusWorking || w.status == StatusError
}

func (w *Window) setStatus(s Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = s
	w.lastActivity = time.Now()
}

// setIdle переводит окно в ожидание, не перетирая ручную паузу.
func (w *Window) setIdle() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.manualPause {
		w.status = StatusPaused
		return
	}
	w.status = StatusIdle
}

// Pause останавливает окно вручную: автоматика его не разбудит.
func (w *Window) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status == StatusStopped {
		return
	}
	w.manualPause = true
	w.status = StatusPaused
}

// Resume снимает ручную паузу.
func (w *Window) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.manualPause = false
	if w.status == StatusPaused {
		w.status = StatusIdle
	}
}

// Snapshot возвращает текущее состояние окна.
func (w *Window) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		ID:           w.id,
		Name:         w.name,
		Priority:     w.priority,
		Status:       w.status,
		Completed:    w.completed,
		Failed:       w.failed,
		Errors:       w.errors,
		Balance:      w.balance,
		LastError:    w.lastError,
		LastActivity: w.lastActivity,
	}
}

// Run — жизненный цикл окна: подключение, разбор очереди,
// переподключение после сбоев. Возвращается при отмене контекста
// или когда окно выведено из работы.
func (w *Window) Run(ctx context.Context) {
	defer w.teardown()

	if err := w.setup(ctx); err != nil {
		w.log.Error("Окно не удалось запустить", zap.Error(err))
		w.recordError(err)
		w.setStatus(StatusStopped)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch w.Status() {
		case StatusError:
			if err := w.restart(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				w.log.Error("Окно выведено из работы", zap.Error(err))
				w.setStatus(StatusStopped)
				return
			}
		case StatusPaused:
			w.waitWhilePaused(ctx)
		case StatusStopped:
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *Window) setup(ctx context.Context) error {
	err := retryWithBackoff(ctx, w.cfg.SetupRetries, w.cfg.RestartDelay, func() error {
		return w.breaker.Call(func() error {
			return w.sess.Open(ctx)
		})
	})
	if err != nil {
		return err
	}

	if err := w.sess.EnsureReady(); err != nil {
		w.log.Warn("Страница генерации не открылась при старте", zap.Error(err))
	}

	// Странице нужно время прогрузить баланс и ленту
	if !sleepCtx(ctx, w.cfg.StartupDelay) {
		return ctx.Err()
	}

	if w.rec != nil {
		if s, err := w.rec.StartSession(w.id); err != nil {
			w.log.Warn("Сессия окна не записана в БД", zap.Error(err))
		} else {
			w.mu.Lock()
			w.sessionID = s.ID
			w.mu.Unlock()
		}
	}

	w.setStatus(StatusIdle)
	w.log.Info("Окно готово к работе")
	return nil
}

func (w *Window) teardown() {
	w.sess.Stop()

	w.mu.Lock()
	sessionID := w.sessionID
	completed, failed := w.completed, w.failed
	lastError := w.lastError
	w.mu.Unlock()

	if w.rec != nil && sessionID != 0 {
		if err := w.rec.FinishSession(sessionID, completed, failed, lastError); err != nil {
			w.log.Warn("Итог сессии не записан в БД", zap.Error(err))
		}
	}
}

func (w *Window) restart(ctx context.Context) error {
	w.log.Info("Переподключение окна")
	w.sess.Close()
	if w.gate != nil {
		w.gate.Forget(w.id)
	}

	if !sleepCtx(ctx, w.cfg.RestartDelay) {
		return ctx.Err()
	}

	err := retryWithBackoff(ctx, w.cfg.SetupRetries, w.cfg.RestartDelay, func() error {
		return w.breaker.Call(func() error {
			return w.sess.Open(ctx)
		})
	})
	if err != nil {
		return err
	}

	if err := w.sess.EnsureReady(); err != nil {
		w.log.Warn("Страница генерации не открылась после переподключения", zap.Error(err))
	}

	w.mu.Lock()
	w.errors = 0
	w.status = StatusIdle
	w.mu.Unlock()

	w.log.Info("Окно переподключено")
	return nil
}

// waitWhilePaused перепроверяет баланс после паузы. Ручная пауза
// снимается только через Resume.
func (w *Window) waitWhilePaused(ctx context.Context) {
	if !sleepCtx(ctx, w.cfg.ErrorCooldown) {
		return
	}

	w.mu.Lock()
	manual := w.manualPause
	w.mu.Unlock()
	if manual {
		return
	}

	if w.gate == nil || !w.pointsCfg.Enabled {
		w.setStatus(StatusIdle)
		return
	}

	w.gate.Forget(w.id)
	allowed, balance, err := w.gate.Allow(w.id, w.sess.Page())
	w.rememberBalance(balance)
	if err != nil {
		w.log.Warn("Баланс не перепроверился", zap.Error(err))
	}
	if allowed {
		w.log.Info("Баланс восстановлен, окно продолжает работу", zap.Int("balance", balance))
		w.setStatus(StatusIdle)
	}
}

// processNext берет задание из очереди и выполняет его.
func (w *Window) processNext(ctx context.Context) {
	task := w.queue.Get(w.cfg.QueuePollTimeout)
	if task == nil {
		w.setIdle()
		return
	}

	// Задание на руках: менеджер не должен посчитать окно свободным
	// до того, как статус сменится на working
	w.mu.Lock()
	w.inFlight = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.inFlight = false
		w.mu.Unlock()
	}()

	// Соединение могло умереть, пока окно простаивало
	if !w.sess.Alive() {
		w.log.Warn("Соединение с окном потеряно, задание возвращено в очередь")
		w.queue.Requeue(task)
		w.setStatus(StatusError)
		return
	}

	if w.pointsCfg.Enabled && w.gate != nil {
		allowed, balance, err := w.gate.Allow(w.id, w.sess.Page())
		w.rememberBalance(balance)
		if err != nil {
			w.log.Warn("Баланс не прочитался, работаем вслепую", zap.Error(err))
		}
		if !allowed {
			w.log.Warn("Баланс ниже порога, окно на паузе",
				zap.Int("balance", balance), zap.Int("threshold", w.gate.Threshold()))
			w.queue.Requeue(task)
			w.setStatus(StatusPaused)
			return
		}
	}

	w.setStatus(StatusWorking)
	w.log.Info("Выполнение задания",
		zap.String("task", task.ID),
		zap.String("sheet", task.SheetName),
		zap.Int("row", task.RowNumber),
	)

	images, err := w.sess.Generate(task)
	switch {
	case errors.Is(err, operator.ErrPromptRejected):
		w.log.Warn("Промпт отклонен площадкой", zap.String("task", task.ID))
		w.finishTask(task, nil, err, "rejected")

	case errors.Is(err, operator.ErrInsufficientPoints):
		w.log.Warn("Кредиты закончились посреди генерации")
		w.queue.Requeue(task)
		if w.gate != nil {
			w.gate.Forget(w.id)
		}
		w.setStatus(StatusPaused)
		return

	case err != nil:
		w.handleFailure(ctx, task, err)

	default:
		w.log.Info("Задание выполнено",
			zap.String("task", task.ID), zap.Int("images", len(images)))
		w.finishTask(task, images, nil, "completed")
		w.reportConsumption()
	}

	if w.Status() == StatusWorking {
		w.setIdle()
	}
	sleepCtx(ctx, w.cfg.TaskInterval)
}

func (w *Window) handleFailure(ctx context.Context, task *tasks.Task, err error) {
	w.log.Error("Задание провалено", zap.String("task", task.ID), zap.Error(err))
	w.finishTask(task, nil, err, "failed")

	w.mu.Lock()
	w.errors++
	w.lastError = err.Error()
	tooMany := w.errors >= w.cfg.MaxErrors
	w.mu.Unlock()

	if isConnectionError(err) || tooMany {
		w.setStatus(StatusError)
		return
	}
	sleepCtx(ctx, w.cfg.ErrorCooldown)
}

// finishTask фиксирует исход задания в очереди, таблице и БД.
func (w *Window) finishTask(task *tasks.Task, images []string, err error, status string) {
	rejected := status == "rejected"

	w.mu.Lock()
	if status == "completed" {
		w.completed++
		w.errors = 0
	} else {
		w.failed++
	}
	w.mu.Unlock()

	if status == "completed" {
		w.queue.MarkCompleted(task, w.id, images)
	} else {
		w.queue.MarkFailed(task, w.id, err.Error())
	}

	// Проваленные строки остаются без отметки и попадут в следующий прогон
	if w.marker != nil && status != "failed" {
		if markErr := w.marker.MarkProcessed(task, rejected); markErr != nil {
			w.log.Warn("Строка таблицы не отметилась", zap.Error(markErr))
		}
	}

	if w.rec != nil {
		run := &database.GenerationRun{
			Prompt:      task.Prompt,
			SheetName:   task.SheetName,
			RowNumber:   task.RowNumber,
			WindowID:    w.id,
			Status:      status,
			ImagesCount: len(images),
		}
		if err != nil {
			run.ErrorText = err.Error()
		}
		if recErr := w.rec.CreateRun(run); recErr != nil {
			w.log.Warn("Исход не записан в БД", zap.Error(recErr))
		}
	}
}

// reportConsumption перечитывает баланс после удачной генерации
// и пишет в лог фактическое списание кредитов.
func (w *Window) reportConsumption() {
	if !w.pointsCfg.Enabled || w.gate == nil {
		return
	}

	w.mu.Lock()
	before := w.balance
	w.mu.Unlock()

	w.gate.Forget(w.id)
	_, after, err := w.gate.Allow(w.id, w.sess.Page())
	if err != nil || after < 0 {
		return
	}
	w.rememberBalance(after)

	if before > after {
		w.log.Info("Списание кредитов за генерацию",
			zap.Int("spent", before-after), zap.Int("balance", after))
	}
}

func (w *Window) rememberBalance(balance int) {
	if balance < 0 {
		return
	}
	w.mu.Lock()
	w.balance = balance
	w.mu.Unlock()
}

func (w *Window) recordError(err error) {
	w.mu.Lock()
	w.lastError = err.Error()
	w.mu.Unlock()
}

// sleepCtx ждет d или отмену контекста; false — контекст отменен.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
