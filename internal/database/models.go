// Package database предоставляет модели данных и репозиторий для работы с PostgreSQL.
// Использует GORM ORM с prepared statements для защиты от SQL injection.
package database

import "time"

// GenerationRun представляет одну обработанную строку промпта.
// Статусы: completed, failed, rejected.
type GenerationRun struct {
	ID uint `gorm:"primaryKey"`
	// Текст промпта и его адрес в исходной таблице
	Prompt    string `gorm:"type:text;not null"`
	SheetName string `gorm:"type:varchar(128);index"`
	RowNumber int    `gorm:"not null"`
	// Профиль окна-исполнителя
	WindowID    string `gorm:"type:varchar(64);index"`
	Status      string `gorm:"type:varchar(32);not null"`
	ImagesCount int
	// Причина неудачи, если есть
	ErrorText string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Account представляет учетную запись на площадке генерации.
// Статусы: created, registered, logged_out.
type Account struct {
	ID       uint   `gorm:"primaryKey"`
	Username string `gorm:"type:varchar(64);not null"`
	Email    string `gorm:"type:varchar(128);uniqueIndex;not null"`
	Password string `gorm:"type:varchar(128);not null"`
	// Профиль браузера, в котором создан аккаунт
	ProfileID string    `gorm:"type:varchar(64);index"`
	Status    string    `gorm:"type:varchar(32);not null;default:'created'"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// WindowSession представляет один жизненный цикл окна: от подключения
// до остановки, с итоговыми счетчиками задач.
type WindowSession struct {
	ID        uint   `gorm:"primaryKey"`
	ProfileID string `gorm:"type:varchar(64);index;not null"`
	Completed int
	Failed    int
	// Последняя ошибка окна за сессию
	LastError string    `gorm:"type:text"`
	StartedAt time.Time `gorm:"autoCreateTime"`
	StoppedAt *time.Time
}
