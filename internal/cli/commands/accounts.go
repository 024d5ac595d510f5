package commands

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"genAgent/internal/accounts"
	"genAgent/internal/bitbrowser"
	"genAgent/internal/browser"
	"genAgent/internal/cli/ui"
	"genAgent/internal/config"
	"genAgent/internal/database"
	"genAgent/internal/humanize"
	"genAgent/internal/logger"
	"genAgent/internal/points"
	"genAgent/internal/selectors"
)

// AccountsHandler регистрирует аккаунты и управляет сессиями в окнах.
type AccountsHandler struct {
	cfg   *config.Cfg
	reg   *selectors.Registry
	api   *bitbrowser.Client
	repo  *database.Repository
	codes accounts.CodeProvider
	log   *logger.Zap
}

func NewAccountsHandler(cfg *config.Cfg, reg *selectors.Registry, api *bitbrowser.Client,
	repo *database.Repository, codes accounts.CodeProvider, log *logger.Zap) *AccountsHandler {
	return &AccountsHandler{cfg: cfg, reg: reg, api: api, repo: repo, codes: codes, log: log}
}

// connect открывает профиль и возвращает подключенный драйвер.
func (h *AccountsHandler) connect(ctx context.Context, profileID string) (browser.Driver, error) {
	ep, err := h.api.Open(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("открытие профиля %s: %w", profileID, err)
	}

	drv := browser.New(browser.Config{})
	if err := drv.Connect(ep.DebugAddress()); err != nil {
		return nil, fmt.Errorf("подключение к окну %s: %w", profileID, err)
	}
	return drv, nil
}

// Register создает новый аккаунт в окне profileID.
func (h *AccountsHandler) Register(ctx context.Context, profileID string) {
	drv, err := h.connect(ctx, profileID)
	if err != nil {
		fmt.Println(ui.ColorRed + ui.IconCross + " " + err.Error() + ui.ColorReset)
		return
	}
	defer drv.Close()

	human := humanize.New(h.cfg.Humanize.MinDelay, h.cfg.Humanize.MaxDelay)
	registrar := accounts.NewRegistrar(drv, h.reg, human, h.codes, h.log)

	creds := accounts.NewCredentials(h.cfg.Accounts.MailDomain)
	fmt.Printf("%s%s Регистрируем %s%s\n", ui.ColorCyan, ui.IconLoop, creds.Email, ui.ColorReset)

	if err := registrar.Register(ctx, creds); err != nil {
		fmt.Println(ui.ColorRed + ui.IconCross + " " + err.Error() + ui.ColorReset)
		return
	}

	if h.repo != nil {
		acc := &database.Account{
			Username:  creds.Username,
			Email:     creds.Email,
			Password:  creds.Password,
			ProfileID: profileID,
			Status:    "registered",
		}
		if err := h.repo.CreateAccount(acc); err != nil {
			h.log.Warn("Аккаунт не сохранился в БД", zap.Error(err))
		}
	}

	fmt.Printf("%s%s Аккаунт создан: %s / %s%s\n",
		ui.ColorGreen, ui.IconCheckmark, creds.Email, creds.Password, ui.ColorReset)
}

// Logout выходит из аккаунта в окне profileID.
func (h *AccountsHandler) Logout(ctx context.Context, profileID string) {
	drv, err := h.connect(ctx, profileID)
	if err != nil {
		fmt.Println(ui.ColorRed + ui.IconCross + " " + err.Error() + ui.ColorReset)
		return
	}
	defer drv.Close()

	human := humanize.New(h.cfg.Humanize.MinDelay, h.cfg.Humanize.MaxDelay)
	registrar := accounts.NewRegistrar(drv, h.reg, human, h.codes, h.log)

	if err := registrar.Logout(); err != nil {
		fmt.Println(ui.ColorRed + ui.IconCross + " " + err.Error() + ui.ColorReset)
		return
	}
	fmt.Println(ui.ColorGreen + ui.IconCheckmark + " Выход выполнен" + ui.ColorReset)
}

// Points проверяет баланс во всех настроенных окнах.
func (h *AccountsHandler) Points(ctx context.Context) {
	if len(h.cfg.Windows.ProfileIDs) == 0 {
		fmt.Println(ui.ColorRed + ui.IconCross + " Не настроены профили окон (BROWSER_PROFILE_IDS)" + ui.ColorReset)
		return
	}

	monitor := points.NewMonitor(h.reg.ElementList("points", "balance"), time.Second)

	for _, profileID := range h.cfg.Windows.ProfileIDs {
		drv, err := h.connect(ctx, profileID)
		if err != nil {
			fmt.Printf("  %s%s %s: %s%s\n", ui.ColorRed, ui.IconCross, profileID, err, ui.ColorReset)
			continue
		}

		genURL := h.reg.URL("generate")
		if genURL != "" {
			if err := drv.Navigate(genURL); err != nil {
				h.log.Warn("Страница генерации не открылась", zap.Error(err))
			}
		}

		balance, err := monitor.Check(drv)
		if err != nil {
			fmt.Printf("  %s%s %s: баланс не найден%s\n", ui.ColorYellow, ui.IconCross, profileID, ui.ColorReset)
		} else {
			remaining := points.EstimateRemaining(balance, h.cfg.Points.CostPerRun)
			fmt.Printf("  %s%s %s: %d кредитов (~%d генераций)%s\n",
				ui.ColorGreen, ui.IconCoin, profileID, balance, remaining, ui.ColorReset)
		}
		drv.Close()
	}
}
