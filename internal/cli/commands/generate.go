package commands

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"genAgent/internal/bitbrowser"
	"genAgent/internal/browser"
	"genAgent/internal/cli/ui"
	"genAgent/internal/config"
	"genAgent/internal/database"
	"genAgent/internal/humanize"
	"genAgent/internal/logger"
	"genAgent/internal/operator"
	"genAgent/internal/points"
	"genAgent/internal/selectors"
	"genAgent/internal/server"
	"genAgent/internal/sheets"
	"genAgent/internal/tasks"
	"genAgent/internal/windows"
)

// GenerateHandler собирает прогон: таблицы → очередь → окна → менеджер.
type GenerateHandler struct {
	cfg  *config.Cfg
	reg  *selectors.Registry
	api  *bitbrowser.Client
	repo *database.Repository
	srv  *server.Server
	log  *logger.Zap
}

func NewGenerateHandler(cfg *config.Cfg, reg *selectors.Registry, api *bitbrowser.Client,
	repo *database.Repository, srv *server.Server, log *logger.Zap) *GenerateHandler {
	return &GenerateHandler{cfg: cfg, reg: reg, api: api, repo: repo, srv: srv, log: log}
}

// Run обрабатывает все необработанные строки таблиц из папки dir.
func (h *GenerateHandler) Run(ctx context.Context, dir string) {
	if len(h.cfg.Windows.ProfileIDs) == 0 {
		fmt.Println(ui.ColorRed + ui.IconCross + " Не настроены профили окон (BROWSER_PROFILE_IDS)" + ui.ColorReset)
		return
	}

	src := sheets.NewSource(dir, sheets.Options{
		PromptColumn: h.cfg.Sheets.PromptColumn,
		StatusColumn: h.cfg.Sheets.StatusColumn,
		StartRow:     h.cfg.Sheets.StartRow,
		StatusText:   h.cfg.Sheets.StatusText,
		RejectedText: h.cfg.Sheets.RejectedText,
	})

	list, err := src.LoadUnprocessed()
	if err != nil {
		fmt.Println(ui.ColorRed + ui.IconCross + " " + err.Error() + ui.ColorReset)
		return
	}
	if len(list) == 0 {
		fmt.Println(ui.ColorYellow + ui.IconCheckmark + " Необработанных строк нет" + ui.ColorReset)
		return
	}

	fmt.Printf("%s%s Заданий: %d, окон: %d%s\n",
		ui.ColorCyan, ui.IconList, len(list), len(h.cfg.Windows.ProfileIDs), ui.ColorReset)

	queue := tasks.NewQueue(len(list) + len(h.cfg.Windows.ProfileIDs))
	for _, task := range list {
		if !queue.Push(task) {
			h.log.Warn("Очередь переполнена", zap.String("task", task.ID))
		}
	}

	manager := h.buildManager(queue, src)
	h.srv.Attach(queue, manager)

	start := time.Now()
	stats, err := manager.Run(ctx)
	if err != nil {
		fmt.Println(ui.ColorRed + ui.IconCross + " " + err.Error() + ui.ColorReset)
	}

	fmt.Printf("\n%s%s Итог за %s:%s\n", ui.ColorBold, ui.IconChart,
		time.Since(start).Round(time.Second), ui.ColorReset)
	fmt.Printf("  %s%s выполнено: %d%s\n", ui.ColorGreen, ui.IconCheckmark, stats.Completed, ui.ColorReset)
	fmt.Printf("  %s%s провалено: %d%s\n", ui.ColorRed, ui.IconCross, stats.Failed, ui.ColorReset)
	if stats.Pending > 0 {
		fmt.Printf("  %s%s осталось в очереди: %d%s\n", ui.ColorYellow, ui.IconClock, stats.Pending, ui.ColorReset)
	}

	for _, outcome := range queue.Failed() {
		icon, color, _ := ui.FormatOutcome("failed")
		fmt.Printf("  %s%s %s, строка %d: %s%s\n",
			color, icon, outcome.Task.SheetName, outcome.Task.RowNumber, outcome.Err, ui.ColorReset)
	}
}

func (h *GenerateHandler) buildManager(queue *tasks.Queue, src *sheets.Source) *windows.Manager {
	monitor := points.NewMonitor(
		h.reg.ElementList("points", "balance"),
		h.cfg.Points.CacheTTL,
	)
	gate := points.NewGate(monitor, h.cfg.Points.MinThreshold)

	human := humanize.New(h.cfg.Humanize.MinDelay, h.cfg.Humanize.MaxDelay)
	dl := operator.NewDownloader(60*time.Second, h.log)
	browserCfg := browser.Config{}

	var rec windows.Recorder
	if h.repo != nil {
		rec = h.repo
	}

	list := make([]*windows.Window, 0, len(h.cfg.Windows.ProfileIDs))
	for i, profileID := range h.cfg.Windows.ProfileIDs {
		sess := windows.NewSession(profileID, h.api, h.reg, human, dl, browserCfg, h.log)
		name := fmt.Sprintf("окно-%d", i+1)
		w := windows.NewWindow(profileID, name, sess, queue, gate, src, rec,
			h.cfg.Windows, h.cfg.Points, h.log)
		list = append(list, w)
	}

	return windows.NewManager(list, queue, h.cfg.Windows, h.log)
}
