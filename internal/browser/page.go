package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

func (d *CDPDriver) Navigate(url string) error {
	page := d.getPage()
	if page == nil {
		return fmt.Errorf("окно не подключено")
	}

	// Goto у playwright может зависнуть на тяжелой странице, поэтому
	// результат ждем через канал с собственным таймаутом.
	errChan := make(chan error, 1)
	go func() {
		_, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(d.cfg.NavigateTimeout.Milliseconds())),
		})
		errChan <- err
	}()

	select {
	case <-time.After(d.cfg.NavigateTimeout + 5*time.Second):
		return fmt.Errorf("навигация на %s не завершилась за %v", url, d.cfg.NavigateTimeout)
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("навигация на %s: %w", url, err)
		}
	}

	// Сетевое затишье желательно, но не обязательно
	_ = d.WaitForLoad("networkidle", 10*time.Second)
	return nil
}

func (d *CDPDriver) Reload() error {
	page := d.getPage()
	if page == nil {
		return fmt.Errorf("окно не подключено")
	}
	_, err := page.Reload(playwright.PageReloadOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(d.cfg.NavigateTimeout.Milliseconds())),
	})
	return err
}

func (d *CDPDriver) Title() (string, error) {
	page := d.getPage()
	if page == nil {
		return "", fmt.Errorf("окно не подключено")
	}
	return page.Title()
}

func (d *CDPDriver) URL() string {
	page := d.getPage()
	if page == nil {
		return ""
	}
	return page.URL()
}

func (d *CDPDriver) WaitForLoad(state string, timeout time.Duration) error {
	page := d.getPage()
	if page == nil {
		return fmt.Errorf("окно не подключено")
	}

	var loadState *playwright.LoadState
	switch strings.ToLower(state) {
	case "domcontentloaded":
		loadState = playwright.LoadStateDomcontentloaded
	case "networkidle":
		loadState = playwright.LoadStateNetworkidle
	default:
		loadState = playwright.LoadStateLoad
	}

	return page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   loadState,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (d *CDPDriver) WaitForSelector(selector string, timeout time.Duration) error {
	page := d.getPage()
	if page == nil {
		return fmt.Errorf("окно не подключено")
	}

	_, err := page.WaitForSelector(AsLocator(selector), playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return err
}

// Count возвращает число элементов по селектору.
func (d *CDPDriver) Count(selector string) (int, error) {
	page := d.getPage()
	if page == nil {
		return 0, fmt.Errorf("окно не подключено")
	}
	return page.Locator(AsLocator(selector)).Count()
}

// ElementTexts возвращает тексты всех видимых элементов по селектору.
func (d *CDPDriver) ElementTexts(selector string) ([]string, error) {
	page := d.getPage()
	if page == nil {
		return nil, fmt.Errorf("окно не подключено")
	}

	elements, err := page.Locator(AsLocator(selector)).All()
	if err != nil {
		return nil, err
	}

	var texts []string
	for _, el := range elements {
		visible, err := el.IsVisible()
		if err != nil || !visible {
			continue
		}
		text, err := el.TextContent()
		if err != nil {
			continue
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// BodyText возвращает текст всей страницы.
func (d *CDPDriver) BodyText() (string, error) {
	page := d.getPage()
	if page == nil {
		return "", fmt.Errorf("окно не подключено")
	}
	return page.Locator("body").TextContent()
}

// CollectAttributes собирает значения атрибута у видимых элементов.
func (d *CDPDriver) CollectAttributes(selector, attr string) ([]string, error) {
	page := d.getPage()
	if page == nil {
		return nil, fmt.Errorf("окно не подключено")
	}

	elements, err := page.Locator(AsLocator(selector)).All()
	if err != nil {
		return nil, err
	}

	var values []string
	for _, el := range elements {
		visible, err := el.IsVisible()
		if err != nil || !visible {
			continue
		}
		value, err := el.GetAttribute(attr)
		if err != nil || value == "" {
			continue
		}
		values = append(values, value)
	}
	return values, nil
}

func (d *CDPDriver) ScrollToTop() error {
	page := d.getPage()
	if page == nil {
		return fmt.Errorf("окно не подключено")
	}

	_, err := page.Evaluate(`() => { window.scrollTo(0, 0); }`)
	if err != nil {
		return fmt.Errorf("прокрутка наверх: %w", err)
	}
	time.Sleep(300 * time.Millisecond)
	return nil
}

// ScrollWheel крутит колесо мыши у правого края страницы, чтобы не
// зацепить элементы интерфейса по центру.
func (d *CDPDriver) ScrollWheel(times int, deltaY float64) error {
	page := d.getPage()
	if page == nil {
		return fmt.Errorf("окно не подключено")
	}

	size, err := page.Evaluate(`() => ({ width: window.innerWidth, height: window.innerHeight })`)
	if err != nil {
		return err
	}

	width, height := 1920.0, 1080.0
	if m, ok := size.(map[string]interface{}); ok {
		if w, ok := m["width"].(float64); ok {
			width = w
		}
		if h, ok := m["height"].(float64); ok {
			height = h
		}
	}

	if err := page.Mouse().Move(width*0.85, height/2); err != nil {
		return err
	}
	time.Sleep(500 * time.Millisecond)

	for i := 0; i < times; i++ {
		if err := page.Mouse().Wheel(0, deltaY); err != nil {
			return err
		}
		time.Sleep(time.Second)
	}
	return nil
}
