// Package tasks содержит очередь заданий на генерацию, общую для всех окон.
package tasks

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task — одна строка промпта из таблицы проекта.
type Task struct {
	ID         string
	Prompt     string
	SheetName  string // Имя исходной таблицы без расширения
	SheetPath  string // Полный путь к CSV-файлу
	RowNumber  int    // Номер строки (с единицы)
	FolderName string
	SavePath   string // Каталог, куда сохраняются картинки
}

// NewTask создает задание с уникальным ID.
func NewTask(prompt, sheetName, sheetPath string, row int, folderName, savePath string) *Task {
	return &Task{
		ID:         uuid.NewString(),
		Prompt:     prompt,
		SheetName:  sheetName,
		SheetPath:  sheetPath,
		RowNumber:  row,
		FolderName: folderName,
		SavePath:   savePath,
	}
}

// Outcome фиксирует результат обработки задания.
type Outcome struct {
	Task       *Task
	Window     string
	Images     []string
	Err        string
	FinishedAt time.Time
}

// Stats — моментальный снимок состояния очереди.
type Stats struct {
	Pending   int
	Completed int
	Failed    int
	Processed int
}

// Queue — потокобезопасная очередь с учетом исходов.
// Возврат задания в очередь (Requeue) не засчитывается ни в один исход.
type Queue struct {
	ch chan *Task

	mu        sync.Mutex
	completed []Outcome
	failed    []Outcome
}

// NewQueue создает очередь вместимостью capacity заданий.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan *Task, capacity)}
}

// Push добавляет задание; false если очередь переполнена.
func (q *Queue) Push(t *Task) bool {
	select {
	case q.ch <- t:
		return true
	default:
		return false
	}
}

// Requeue возвращает задание в очередь (пауза по балансу, переподключение).
func (q *Queue) Requeue(t *Task) bool {
	return q.Push(t)
}

// Get ждет задание не дольше timeout; nil — очередь пуста.
func (q *Queue) Get(timeout time.Duration) *Task {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case t := <-q.ch:
		return t
	case <-timer.C:
		return nil
	}
}

// MarkCompleted фиксирует успешный исход.
func (q *Queue) MarkCompleted(t *Task, window string, images []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, Outcome{
		Task:       t,
		Window:     window,
		Images:     images,
		FinishedAt: time.Now(),
	})
}

// MarkFailed фиксирует неудачный исход.
func (q *Queue) MarkFailed(t *Task, window, reason string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, Outcome{
		Task:       t,
		Window:     window,
		Err:        reason,
		FinishedAt: time.Now(),
	})
}

// Stats возвращает снимок состояния.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:   len(q.ch),
		Completed: len(q.completed),
		Failed:    len(q.failed),
		Processed: len(q.completed) + len(q.failed),
	}
}

// Failed возвращает копию списка неудачных исходов.
func (q *Queue) Failed() []Outcome {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Outcome, len(q.failed))
	copy(out, q.failed)
	return out
}

// Completed возвращает копию списка успешных исходов.
func (q *Queue) Completed() []Outcome {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Outcome, len(q.completed))
	copy(out, q.completed)
	return out
}
