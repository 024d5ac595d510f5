// Package migrations применяет SQL-миграции перед стартом приложения.
package migrations

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"genAgent/internal/config"
	"genAgent/internal/logger"
)

// Run накатывает все недостающие миграции. Отсутствие изменений не ошибка.
func Run(cfg *config.Cfg, log *logger.Zap) error {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.User, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Name,
	)

	m, err := migrate.New(cfg.Migrations.Path, dsn)
	if err != nil {
		return fmt.Errorf("инициализация миграций: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("Миграции не требуются")
			return nil
		}
		return fmt.Errorf("применение миграций: %w", err)
	}

	log.Info("Миграции применены", zap.String("source", cfg.Migrations.Path))
	return nil
}
