package commands

import (
	"fmt"

	"genAgent/internal/cli/ui"
	"genAgent/internal/database"
	"genAgent/internal/server"
	"genAgent/internal/tasks"
	"genAgent/internal/windows"
)

// StatusHandler показывает статистику прогона и историю из БД.
type StatusHandler struct {
	repo    *database.Repository
	current func() (*tasks.Queue, *windows.Manager)
}

func NewStatusHandler(repo *database.Repository, srv *server.Server) *StatusHandler {
	return &StatusHandler{repo: repo, current: srv.Current}
}

// Stats печатает состояние очереди текущего прогона.
func (h *StatusHandler) Stats() {
	queue, _ := h.current()
	if queue == nil {
		fmt.Println(ui.ColorGray + "Прогон не запущен" + ui.ColorReset)
		return
	}

	stats := queue.Stats()
	fmt.Printf("%s%s Очередь:%s в работе %d, выполнено %d, провалено %d\n",
		ui.ColorBold, ui.IconChart, ui.ColorReset,
		stats.Pending, stats.Completed, stats.Failed)
}

// Windows печатает состояние каждого окна.
func (h *StatusHandler) Windows() {
	_, manager := h.current()
	if manager == nil {
		fmt.Println(ui.ColorGray + "Прогон не запущен" + ui.ColorReset)
		return
	}

	for _, s := range manager.Snapshots() {
		icon, color, text := ui.FormatStatus(string(s.Status))
		fmt.Printf("  %s%s %s%s — %s, выполнено %d, провалено %d",
			color, icon, ui.IconWindow, s.ID, text, s.Completed, s.Failed)
		if s.Balance >= 0 {
			fmt.Printf(", баланс %d", s.Balance)
		}
		if s.LastError != "" {
			fmt.Printf(" (%s)", s.LastError)
		}
		fmt.Println(ui.ColorReset)
	}
}

// Pause ставит окно на паузу вручную.
func (h *StatusHandler) Pause(id string) {
	if w := h.window(id); w != nil {
		w.Pause()
		fmt.Println(ui.ColorYellow + ui.IconPause + " Окно " + id + " на паузе" + ui.ColorReset)
	}
}

// Resume снимает окно с паузы.
func (h *StatusHandler) Resume(id string) {
	if w := h.window(id); w != nil {
		w.Resume()
		fmt.Println(ui.ColorGreen + ui.IconPlay + " Окно " + id + " продолжает работу" + ui.ColorReset)
	}
}

func (h *StatusHandler) window(id string) *windows.Window {
	_, manager := h.current()
	if manager == nil {
		fmt.Println(ui.ColorGray + "Прогон не запущен" + ui.ColorReset)
		return nil
	}
	w := manager.Window(id)
	if w == nil {
		fmt.Println(ui.ColorRed + ui.IconCross + " Окно " + id + " не найдено" + ui.ColorReset)
	}
	return w
}

// Runs печатает последние прогоны из БД.
func (h *StatusHandler) Runs() {
	if h.repo == nil {
		fmt.Println(ui.ColorGray + "БД не подключена" + ui.ColorReset)
		return
	}

	runs, err := h.repo.ListRuns(20, 0)
	if err != nil {
		fmt.Println(ui.ColorRed + ui.IconCross + " " + err.Error() + ui.ColorReset)
		return
	}
	if len(runs) == 0 {
		fmt.Println(ui.ColorGray + "История пуста" + ui.ColorReset)
		return
	}

	for _, run := range runs {
		icon, color, text := ui.FormatOutcome(run.Status)
		fmt.Printf("  %s%s [%s, строка %d] %s — %s, изображений: %d%s\n",
			color, icon, run.SheetName, run.RowNumber,
			truncate(run.Prompt, 50), text, run.ImagesCount, ui.ColorReset)
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
