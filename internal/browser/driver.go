package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

func New(cfg Config) *CDPDriver {
	if cfg.NavigateTimeout == 0 {
		cfg.NavigateTimeout = 60 * time.Second
	}
	if cfg.ActionTimeout == 0 {
		cfg.ActionTimeout = 10 * time.Second
	}
	if len(cfg.ProtectedURLs) == 0 {
		cfg.ProtectedURLs = defaultProtectedURLs
	}

	return &CDPDriver{cfg: cfg}
}

// getPage безопасно возвращает текущую страницу с read lock
func (d *CDPDriver) getPage() playwright.Page {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.page
}

// setPage безопасно устанавливает страницу с write lock
func (d *CDPDriver) setPage(page playwright.Page) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.page = page
}

// Connect подключается по CDP к уже открытому окну браузера.
// Берется первый контекст браузера и первая живая вкладка; если
// вкладок нет, создается новая.
func (d *CDPDriver) Connect(debugAddress string) error {
	if debugAddress == "" {
		return fmt.Errorf("пустой отладочный адрес")
	}

	if d.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return fmt.Errorf("запуск драйвера: %w", err)
		}
		d.pw = pw
	}

	browser, err := d.pw.Chromium.ConnectOverCDP(debugAddress)
	if err != nil {
		return fmt.Errorf("подключение по CDP к %s: %w", debugAddress, err)
	}

	contexts := browser.Contexts()
	if len(contexts) == 0 {
		browser.Close()
		return fmt.Errorf("в браузере нет ни одного контекста")
	}

	d.mu.Lock()
	d.browser = browser
	d.context = contexts[0]
	d.mu.Unlock()

	page, err := d.adoptPage()
	if err != nil {
		browser.Close()
		return err
	}

	d.setPage(page)
	page.SetDefaultTimeout(float64(d.cfg.ActionTimeout.Milliseconds()))

	if err := page.SetViewportSize(1920, 1080); err != nil {
		// Не фатально: окно может не поддерживать смену вьюпорта
		return nil
	}
	return nil
}

func (d *CDPDriver) adoptPage() (playwright.Page, error) {
	d.mu.RLock()
	ctx := d.context
	d.mu.RUnlock()

	for _, p := range ctx.Pages() {
		if !p.IsClosed() {
			return p, nil
		}
	}

	page, err := ctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("создание вкладки: %w", err)
	}
	return page, nil
}

// Alive проверяет, что соединение со страницей живо.
func (d *CDPDriver) Alive() bool {
	page := d.getPage()
	if page == nil || page.IsClosed() {
		return false
	}
	_, err := page.Title()
	return err == nil
}

// CloseStrayTabs закрывает все посторонние вкладки, кроме рабочей и
// защищенных адресов. Возвращает число закрытых вкладок.
func (d *CDPDriver) CloseStrayTabs(keepURL string) int {
	d.mu.RLock()
	ctx := d.context
	page := d.page
	d.mu.RUnlock()

	if ctx == nil {
		return 0
	}

	closed := 0
	for _, p := range ctx.Pages() {
		if p == page || p.IsClosed() {
			continue
		}
		url := strings.ToLower(p.URL())
		if keepURL != "" && strings.Contains(url, strings.ToLower(keepURL)) {
			continue
		}
		if d.isProtected(url) {
			continue
		}
		if err := p.Close(); err == nil {
			closed++
			time.Sleep(200 * time.Millisecond)
		}
	}
	return closed
}

func (d *CDPDriver) isProtected(url string) bool {
	for _, pattern := range d.cfg.ProtectedURLs {
		if strings.Contains(url, pattern) {
			return true
		}
	}
	return false
}

// Page возвращает текущую страницу для низкоуровневых операций.
func (d *CDPDriver) Page() playwright.Page {
	return d.getPage()
}

// Locator строит локатор по селектору (XPath распознается автоматически).
func (d *CDPDriver) Locator(selector string) playwright.Locator {
	page := d.getPage()
	if page == nil {
		return nil
	}
	return page.Locator(AsLocator(selector))
}

// Close отключается от окна и гасит драйвер. Само окно браузера
// закрывается через API профилей, не здесь.
func (d *CDPDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.page != nil && !d.page.IsClosed() {
		_ = d.page.Close()
	}
	d.page = nil
	d.context = nil

	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			return err
		}
		d.browser = nil
	}
	if d.pw != nil {
		err := d.pw.Stop()
		d.pw = nil
		return err
	}
	return nil
}

// Disconnect рвет CDP-соединение, но оставляет драйвер живым,
// чтобы окно могло переподключиться без повторного playwright.Run().
func (d *CDPDriver) Disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.page != nil && !d.page.IsClosed() {
		_ = d.page.Close()
	}
	d.page = nil
	d.context = nil

	if d.browser != nil {
		_ = d.browser.Close()
		d.browser = nil
	}
}
