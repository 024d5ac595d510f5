package database

import (
	"time"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateRun(run *GenerationRun) error {
	return r.db.Create(run).Error
}

func (r *Repository) ListRuns(limit, offset int) ([]GenerationRun, error) {
	var runs []GenerationRun
	if err := r.db.Order("id DESC").Limit(limit).Offset(offset).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *Repository) RunsByStatus(status string) ([]GenerationRun, error) {
	var runs []GenerationRun
	if err := r.db.Where("status = ?", status).Order("id DESC").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *Repository) CreateAccount(a *Account) error {
	return r.db.Create(a).Error
}

func (r *Repository) AccountByEmail(email string) (*Account, error) {
	var acc Account
	if err := r.db.Where("email = ?", email).First(&acc).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *Repository) UpdateAccountStatus(id uint, status string) error {
	return r.db.Model(&Account{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *Repository) StartSession(profileID string) (*WindowSession, error) {
	s := &WindowSession{ProfileID: profileID}
	if err := r.db.Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repository) FinishSession(id uint, completed, failed int, lastError string) error {
	now := time.Now()
	return r.db.Model(&WindowSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"completed":  completed,
			"failed":     failed,
			"last_error": lastError,
			"stopped_at": &now,
		}).Error
}
