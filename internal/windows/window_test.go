package windows

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genAgent/internal/config"
	"genAgent/internal/database"
	"genAgent/internal/logger"
	"genAgent/internal/operator"
	"genAgent/internal/points"
	"genAgent/internal/tasks"
)

type fakePage struct {
	mu   sync.Mutex
	text string
}

func (p *fakePage) setText(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.text = text
}

func (p *fakePage) ElementTexts(string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return []string{p.text}, nil
}

func (p *fakePage) BodyText() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.text, nil
}

type fakeSession struct {
	mu       sync.Mutex
	opens    int
	closes   int
	stops    int
	dead     bool
	openErrs []error // Ошибки первых Open по порядку
	generate func(task *tasks.Task) ([]string, error)
	page     *fakePage
}

func (s *fakeSession) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if len(s.openErrs) > 0 {
		err := s.openErrs[0]
		s.openErrs = s.openErrs[1:]
		return err
	}
	s.dead = false
	return nil
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
}

func (s *fakeSession) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
}

func (s *fakeSession) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func (s *fakeSession) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.dead
}

func (s *fakeSession) kill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dead = true
}

func (s *fakeSession) EnsureReady() error      { return nil }
func (s *fakeSession) Page() points.PageReader { return s.page }

func (s *fakeSession) Generate(task *tasks.Task) ([]string, error) {
	return s.generate(task)
}

func (s *fakeSession) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

type fakeMarker struct {
	mu    sync.Mutex
	calls []bool // rejected-флаги по порядку вызовов
}

func (m *fakeMarker) MarkProcessed(_ *tasks.Task, rejected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, rejected)
	return nil
}

func (m *fakeMarker) marks() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bool, len(m.calls))
	copy(out, m.calls)
	return out
}

type fakeRecorder struct {
	mu       sync.Mutex
	runs     []*database.GenerationRun
	sessions int
	finished int
}

func (r *fakeRecorder) CreateRun(run *database.GenerationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

func (r *fakeRecorder) StartSession(string) (*database.WindowSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions++
	return &database.WindowSession{ID: uint(r.sessions)}, nil
}

func (r *fakeRecorder) FinishSession(uint, int, int, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
	return nil
}

func testWindowConfig() config.Windows {
	return config.Windows{
		TaskInterval:     time.Millisecond,
		StartupDelay:     time.Millisecond,
		WorkerStagger:    0,
		RestartDelay:     time.Millisecond,
		SetupRetries:     3,
		MaxErrors:        3,
		ErrorCooldown:    5 * time.Millisecond,
		QueuePollTimeout: 10 * time.Millisecond,
		ProgressInterval: time.Minute,
	}
}

func testGate(threshold int) *points.Gate {
	monitor := points.NewMonitor([]string{"#points"}, 20*time.Millisecond)
	return points.NewGate(monitor, threshold)
}

func newTestWindow(t *testing.T, sess *fakeSession, queue *tasks.Queue, gate *points.Gate,
	marker *fakeMarker, rec *fakeRecorder) *Window {
	t.Helper()
	log, err := logger.New("dev", "error")
	require.NoError(t, err)

	pointsCfg := config.Points{Enabled: gate != nil, MinThreshold: 4, CostPerRun: 2}
	var recorder Recorder
	if rec != nil {
		recorder = rec
	}
	var sheetMarker SheetMarker
	if marker != nil {
		sheetMarker = marker
	}
	return NewWindow("w1", "w1", sess, queue, gate, sheetMarker, recorder, testWindowConfig(), pointsCfg, log)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("условие не выполнилось за отведенное время")
}

func TestWindowProcessesQueue(t *testing.T) {
	queue := tasks.NewQueue(10)
	queue.Push(tasks.NewTask("кот", "cats", "cats.csv", 2, "cats", t.TempDir()))
	queue.Push(tasks.NewTask("пес", "cats", "cats.csv", 3, "cats", t.TempDir()))

	page := &fakePage{text: "积分: 100"}
	sess := &fakeSession{
		page: page,
		generate: func(*tasks.Task) ([]string, error) {
			return []string{"a.jpg", "b.jpg"}, nil
		},
	}
	marker := &fakeMarker{}
	rec := &fakeRecorder{}
	w := newTestWindow(t, sess, queue, testGate(4), marker, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	waitFor(t, 2*time.Second, func() bool { return queue.Stats().Completed == 2 })
	cancel()
	<-done

	snap := w.Snapshot()
	assert.Equal(t, 2, snap.Completed)
	assert.Equal(t, 0, snap.Failed)
	assert.Equal(t, 100, snap.Balance)
	assert.Equal(t, []bool{false, false}, marker.marks())

	// сессия останавливается ровно один раз, при выходе воркера
	assert.Equal(t, 1, sess.stopCount())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.runs, 2)
	assert.Equal(t, "completed", rec.runs[0].Status)
	assert.Equal(t, 1, rec.finished)
}

func TestWindowRejectedPrompt(t *testing.T) {
	queue := tasks.NewQueue(10)
	queue.Push(tasks.NewTask("запрещенный", "s", "s.csv", 2, "s", t.TempDir()))

	page := &fakePage{text: "积分: 100"}
	sess := &fakeSession{
		page: page,
		generate: func(*tasks.Task) ([]string, error) {
			return nil, operator.ErrPromptRejected
		},
	}
	marker := &fakeMarker{}
	w := newTestWindow(t, sess, queue, testGate(4), marker, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	waitFor(t, 2*time.Second, func() bool { return queue.Stats().Failed == 1 })
	cancel()
	<-done

	// отклоненная строка помечается в таблице как rejected
	assert.Equal(t, []bool{true}, marker.marks())
	// и не возвращается в очередь
	assert.Equal(t, 0, queue.Stats().Pending)
}

func TestWindowPausesOnLowBalance(t *testing.T) {
	queue := tasks.NewQueue(10)
	queue.Push(tasks.NewTask("кот", "s", "s.csv", 2, "s", t.TempDir()))

	page := &fakePage{text: "积分: 2"}
	generated := make(chan struct{}, 1)
	sess := &fakeSession{
		page: page,
		generate: func(*tasks.Task) ([]string, error) {
			generated <- struct{}{}
			return []string{"a.jpg"}, nil
		},
	}
	w := newTestWindow(t, sess, queue, testGate(4), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	// баланс ниже порога: задание вернулось в очередь, окно на паузе
	waitFor(t, 2*time.Second, func() bool { return w.Status() == StatusPaused })
	assert.Equal(t, 1, queue.Stats().Pending)

	// после пополнения окно просыпается и доделывает работу
	page.setText("积分: 50")
	select {
	case <-generated:
	case <-time.After(2 * time.Second):
		t.Fatal("окно не возобновило работу после пополнения баланса")
	}

	cancel()
	<-done
}

func TestWindowRestartsOnConnectionError(t *testing.T) {
	queue := tasks.NewQueue(10)
	queue.Push(tasks.NewTask("кот", "s", "s.csv", 2, "s", t.TempDir()))
	queue.Push(tasks.NewTask("пес", "s", "s.csv", 3, "s", t.TempDir()))

	page := &fakePage{text: "积分: 100"}
	var calls int
	var mu sync.Mutex
	sess := &fakeSession{page: page}
	sess.generate = func(*tasks.Task) ([]string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("websocket: connection closed")
		}
		return []string{"a.jpg"}, nil
	}
	w := newTestWindow(t, sess, queue, testGate(4), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	waitFor(t, 2*time.Second, func() bool { return queue.Stats().Completed == 1 })
	cancel()
	<-done

	// после ошибки соединения окно переподключилось
	assert.GreaterOrEqual(t, sess.openCount(), 2)
	assert.Equal(t, 1, queue.Stats().Failed)

	// переподключение рвет соединение через Close, драйвер гасится
	// только финальной остановкой
	assert.GreaterOrEqual(t, sess.closeCount(), 1)
	assert.Equal(t, 1, sess.stopCount())
}

func TestWindowRequeuesWhenConnectionLost(t *testing.T) {
	queue := tasks.NewQueue(10)

	page := &fakePage{text: "积分: 100"}
	sess := &fakeSession{page: page}
	sess.generate = func(*tasks.Task) ([]string, error) {
		return []string{"a.jpg"}, nil
	}

	w := newTestWindow(t, sess, queue, testGate(4), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	// ждем подключения, рвем соединение и только потом даем задачу
	waitFor(t, 2*time.Second, func() bool { return sess.openCount() == 1 })
	sess.kill()
	queue.Push(tasks.NewTask("кот", "s", "s.csv", 2, "s", t.TempDir()))

	waitFor(t, 2*time.Second, func() bool { return queue.Stats().Completed == 1 })
	cancel()
	<-done

	// задача вернулась в очередь, окно переподключилось и доделало ее
	assert.GreaterOrEqual(t, sess.openCount(), 2)
	assert.Equal(t, 0, queue.Stats().Failed)
}

func TestWindowStopsWhenSetupNeverSucceeds(t *testing.T) {
	queue := tasks.NewQueue(1)
	sess := &fakeSession{
		page: &fakePage{},
		openErrs: []error{
			errors.New("connection refused"),
			errors.New("connection refused"),
			errors.New("connection refused"),
		},
	}
	w := newTestWindow(t, sess, queue, nil, nil, nil)

	done := make(chan struct{})
	go func() { w.Run(context.Background()); close(done) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("окно не остановилось после провала настройки")
	}
	assert.Equal(t, StatusStopped, w.Status())
	assert.Equal(t, 3, sess.openCount())
}

func TestManualPauseResume(t *testing.T) {
	queue := tasks.NewQueue(10)
	page := &fakePage{text: "积分: 100"}
	sess := &fakeSession{
		page:     page,
		generate: func(*tasks.Task) ([]string, error) { return []string{"a.jpg"}, nil },
	}
	w := newTestWindow(t, sess, queue, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	waitFor(t, 2*time.Second, func() bool { return w.Status() == StatusIdle })

	w.Pause()
	assert.Equal(t, StatusPaused, w.Status())

	// ручная пауза не снимается автоматикой
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StatusPaused, w.Status())

	w.Resume()
	queue.Push(tasks.NewTask("кот", "s", "s.csv", 2, "s", t.TempDir()))
	waitFor(t, 2*time.Second, func() bool { return queue.Stats().Completed == 1 })

	cancel()
	<-done
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, ErrorTypeRetryable, classifyError(errors.New("websocket: connection closed")))
	assert.Equal(t, ErrorTypeRetryable, classifyError(errors.New("Timeout 30000ms exceeded")))
	assert.Equal(t, ErrorTypeTemporary, classifyError(errors.New("кнопка генерации не найдена")))
	assert.Equal(t, ErrorTypeTemporary, classifyError(errors.New("рендер не завершился за 10m")))
	assert.Equal(t, ErrorTypeCritical, classifyError(errors.New("что-то совсем сломалось")))
}

func TestRetryWithBackoffStopsOnCritical(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return errors.New("фатальная ошибка")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCircuitBreakerOpens(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Hour)
	fail := func() error { return errors.New("boom") }

	assert.Error(t, cb.Call(fail))
	assert.Error(t, cb.Call(fail))
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Call(func() error { return nil })
	assert.EqualError(t, err, "circuit breaker is open")

	cb.Reset()
	assert.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}
