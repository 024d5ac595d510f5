// Package operator выполняет полный цикл генерации изображений на странице:
// ввод промпта, запуск, ожидание очереди и рендера, сбор и скачивание
// результатов. Все селекторы берутся из внешнего реестра.
package operator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"genAgent/internal/browser"
	"genAgent/internal/humanize"
	"genAgent/internal/logger"
	"genAgent/internal/selectors"
	"genAgent/internal/tasks"
)

// ErrPromptRejected — площадка отклонила промпт (фильтр контента).
// Задание помечается в таблице как rejected и не повторяется.
var ErrPromptRejected = errors.New("промпт отклонен площадкой")

// ErrInsufficientPoints — на аккаунте кончились кредиты.
var ErrInsufficientPoints = errors.New("недостаточно кредитов")

const expectedImages = 4

// Operator привязан к одному окну и крутит генерации последовательно.
type Operator struct {
	drv    browser.Driver
	reg    *selectors.Registry
	human  *humanize.Behavior
	dl     *Downloader
	log    *logger.Zap
	window string

	configured bool // Соотношение сторон выбирается один раз на окно
}

func New(drv browser.Driver, reg *selectors.Registry, human *humanize.Behavior, dl *Downloader, log *logger.Zap, window string) *Operator {
	return &Operator{
		drv:    drv,
		reg:    reg,
		human:  human,
		dl:     dl,
		log:    log.Named("operator").With(zap.String("window", window)),
		window: window,
	}
}

// EnsureReady приводит окно на страницу генерации.
func (o *Operator) EnsureReady() error {
	genURL := o.reg.URL("generate")
	if genURL == "" {
		return fmt.Errorf("в реестре селекторов не задан urls.generate")
	}

	if strings.Contains(o.drv.URL(), strings.TrimPrefix(genURL, "https://")) {
		return nil
	}

	o.log.Info("Переход на страницу генерации", zap.String("url", genURL))
	if err := o.drv.Navigate(genURL); err != nil {
		return err
	}
	humanize.Sleep(3*time.Second, 6*time.Second)
	o.human.WarmUp(o.drv.Page())
	return nil
}

// Generate выполняет одно задание и возвращает пути скачанных изображений.
func (o *Operator) Generate(task *tasks.Task) ([]string, error) {
	if err := o.EnsureReady(); err != nil {
		return nil, fmt.Errorf("подготовка страницы: %w", err)
	}

	if !o.configured {
		if err := o.configureGeneration(); err != nil {
			o.log.Warn("Не удалось настроить параметры генерации, продолжаем с текущими", zap.Error(err))
		}
		o.configured = true
	}

	if err := o.enterPrompt(task.Prompt); err != nil {
		return nil, fmt.Errorf("ввод промпта: %w", err)
	}
	o.human.Pause()

	if err := o.clickGenerate(); err != nil {
		return nil, fmt.Errorf("запуск генерации: %w", err)
	}

	if err := o.checkRejection(); err != nil {
		return nil, err
	}

	if err := o.waitQueue(); err != nil {
		return nil, err
	}
	if err := o.waitGeneration(); err != nil {
		return nil, err
	}

	urls, err := o.collectImageURLs()
	if err != nil {
		return nil, fmt.Errorf("сбор результатов: %w", err)
	}
	o.log.Info("Генерация завершена", zap.Int("images", len(urls)))

	saved, err := o.dl.DownloadAll(urls, task.SavePath, task.RowNumber, o.drv.URL())
	if err != nil {
		return saved, fmt.Errorf("скачивание изображений: %w", err)
	}
	return saved, nil
}

// configureGeneration выбирает модель и соотношение сторон.
// Делается один раз: площадка запоминает выбор в рамках сессии.
func (o *Operator) configureGeneration() error {
	page := o.drv.Page()

	if sel := o.reg.Element("generation", "model_button"); sel != "" {
		loc := o.drv.Locator(sel)
		if visible, _ := loc.First().IsVisible(); visible {
			if err := o.human.Click(page, loc.First()); err != nil {
				return fmt.Errorf("открытие выбора модели: %w", err)
			}
			o.human.ShortPause()
			if opt := o.reg.Element("generation", "model_option"); opt != "" {
				if err := o.human.Click(page, o.drv.Locator(opt).First()); err != nil {
					return fmt.Errorf("выбор модели: %w", err)
				}
				o.human.ShortPause()
			}
		}
	}

	sel := o.reg.Element("generation", "aspect_ratio_button")
	if sel == "" {
		return nil
	}
	loc := o.drv.Locator(sel)
	if visible, _ := loc.First().IsVisible(); !visible {
		return nil
	}
	if err := o.human.Click(page, loc.First()); err != nil {
		return fmt.Errorf("открытие выбора пропорций: %w", err)
	}
	o.human.ShortPause()

	if opt := o.reg.Element("generation", "aspect_ratio_option"); opt != "" {
		if err := o.human.Click(page, o.drv.Locator(opt).First()); err != nil {
			return fmt.Errorf("выбор пропорций: %w", err)
		}
		o.human.ShortPause()
	}

	o.log.Info("Параметры генерации настроены")
	return nil
}

func (o *Operator) enterPrompt(prompt string) error {
	var lastErr error
	for _, sel := range o.reg.ElementList("generation", "prompt_input") {
		loc := o.drv.Locator(sel).First()
		if visible, err := loc.IsVisible(); err != nil || !visible {
			continue
		}
		if err := o.human.Type(o.drv.Page(), loc, prompt); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("поле ввода промпта не найдено")
}

func (o *Operator) clickGenerate() error {
	for _, sel := range o.reg.ElementList("generation", "generate_button") {
		loc := o.drv.Locator(sel).First()
		visible, err := loc.IsVisible()
		if err != nil || !visible {
			continue
		}
		if enabled, err := loc.IsEnabled(); err == nil && !enabled {
			return ErrInsufficientPoints
		}
		return o.human.Click(o.drv.Page(), loc)
	}
	return fmt.Errorf("кнопка генерации не найдена")
}

// checkRejection смотрит, не выкинула ли площадка предупреждение о
// недопустимом промпте сразу после запуска.
func (o *Operator) checkRejection() error {
	humanize.Sleep(2*time.Second, 4*time.Second)

	for _, sel := range o.reg.ElementList("generation", "prompt_rejected") {
		count, err := o.drv.Count(sel)
		if err == nil && count > 0 {
			return ErrPromptRejected
		}
	}

	body, err := o.drv.BodyText()
	if err != nil {
		return nil
	}
	for _, marker := range o.reg.ElementList("markers", "prompt_rejected") {
		if strings.Contains(body, marker) {
			return ErrPromptRejected
		}
	}
	for _, marker := range o.reg.ElementList("markers", "insufficient_points") {
		if strings.Contains(body, marker) {
			return ErrInsufficientPoints
		}
	}
	return nil
}

// waitQueue ждет, пока задание покинет очередь площадки.
func (o *Operator) waitQueue() error {
	timeout := o.reg.WaitTime("queueing")
	deadline := time.Now().Add(timeout)
	sels := o.reg.ElementList("generation", "queueing_indicator")

	for time.Now().Before(deadline) {
		inQueue := false
		for _, sel := range sels {
			if count, err := o.drv.Count(sel); err == nil && count > 0 {
				inQueue = true
				break
			}
		}
		if !inQueue {
			return nil
		}
		o.log.Debug("Задание в очереди площадки")
		humanize.Sleep(4*time.Second, 7*time.Second)
	}
	return fmt.Errorf("задание не вышло из очереди за %v", timeout)
}

// waitGeneration ждет завершения рендера, периодически прокручивая
// страницу, чтобы результат подгрузился в ленту.
func (o *Operator) waitGeneration() error {
	timeout := o.reg.WaitTime("generating")
	deadline := time.Now().Add(timeout)
	generating := o.reg.ElementList("generation", "generating_indicator")
	done := o.reg.ElementList("generation", "completion_container")
	scrolls := 0

	for time.Now().Before(deadline) {
		for _, sel := range done {
			if count, err := o.drv.Count(sel); err == nil && count > 0 {
				return nil
			}
		}

		busy := false
		for _, sel := range generating {
			if count, err := o.drv.Count(sel); err == nil && count > 0 {
				busy = true
				break
			}
		}
		if !busy {
			// Индикатор пропал, но контейнер еще не нашелся: даем ленте
			// прогрузиться перед следующей проверкой
			humanize.Sleep(2*time.Second, 4*time.Second)
		}

		if scrolls%3 == 0 {
			if err := o.drv.ScrollWheel(1, 200); err != nil {
				o.log.Debug("Прокрутка не удалась", zap.Error(err))
			}
		}
		scrolls++
		humanize.Sleep(5*time.Second, 8*time.Second)
	}
	return fmt.Errorf("рендер не завершился за %v", timeout)
}

// collectImageURLs собирает адреса готовых изображений из контейнера
// результата. Берутся только CDN-ссылки полного размера.
func (o *Operator) collectImageURLs() ([]string, error) {
	if err := o.drv.ScrollToTop(); err != nil {
		o.log.Debug("Прокрутка наверх не удалась", zap.Error(err))
	}
	humanize.Sleep(time.Second, 2*time.Second)

	var collected []string
	for _, sel := range o.reg.ElementList("generation", "result_images") {
		srcs, err := o.drv.CollectAttributes(sel, "src")
		if err != nil {
			continue
		}
		for _, src := range srcs {
			if !IsResultImage(src) {
				continue
			}
			if contains(collected, src) {
				continue
			}
			collected = append(collected, src)
			if len(collected) == expectedImages {
				return collected, nil
			}
		}
	}

	if len(collected) == 0 {
		return nil, fmt.Errorf("изображения результата не найдены")
	}
	o.log.Warn("Собрано меньше изображений, чем ожидалось",
		zap.Int("got", len(collected)), zap.Int("want", expectedImages))
	return collected, nil
}

// IsResultImage отличает полноценные результаты от превью и иконок.
func IsResultImage(src string) bool {
	return strings.HasPrefix(src, "https://") && strings.Contains(src, "tplv-")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
