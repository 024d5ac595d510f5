// Package windows управляет окнами антидетект-браузера: каждое окно
// получает свою браузерную сессию и воркер, который разбирает общую
// очередь заданий, следит за балансом и переподключается после сбоев.
package windows

import (
	"context"
	"time"

	"genAgent/internal/database"
	"genAgent/internal/points"
	"genAgent/internal/tasks"
)

// Status — состояние окна.
type Status string

const (
	StatusIdle    Status = "idle"    // Подключено, ждет задание
	StatusWorking Status = "working" // Выполняет генерацию
	StatusPaused  Status = "paused"  // Остановлено по балансу или вручную
	StatusError   Status = "error"   // Сбой, требуется переподключение
	StatusStopped Status = "stopped" // Выведено из работы
)

// Sessioner управляет браузерной сессией одного окна.
// Close рвет соединение, но оставляет драйвер для переподключения;
// Stop — окончательная остановка вместе с драйвером.
// В тестах подменяется фейком.
type Sessioner interface {
	Open(ctx context.Context) error
	Close()
	Stop()
	Alive() bool
	Page() points.PageReader
	EnsureReady() error
	Generate(task *tasks.Task) ([]string, error)
}

// SheetMarker отмечает строку таблицы обработанной.
type SheetMarker interface {
	MarkProcessed(task *tasks.Task, rejected bool) error
}

// Recorder сохраняет итоги работы в БД.
type Recorder interface {
	CreateRun(run *database.GenerationRun) error
	StartSession(profileID string) (*database.WindowSession, error)
	FinishSession(id uint, completed, failed int, lastError string) error
}

// Snapshot — моментальное состояние окна для отчетов и API.
type Snapshot struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Priority     int       `json:"priority"`
	Status       Status    `json:"status"`
	Completed    int       `json:"completed"`
	Failed       int       `json:"failed"`
	Errors       int       `json:"consecutive_errors"`
	Balance      int       `json:"balance"`
	LastError    string    `json:"last_error,omitempty"`
	LastActivity time.Time `json:"last_activity"`
}
