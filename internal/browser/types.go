// Package browser оборачивает playwright-go для работы с окнами,
// подключенными по CDP к удаленному антидетект-браузеру.
// Каждое окно держит собственный экземпляр драйвера: хэндлы playwright
// нельзя разделять между горутинами.
package browser

import (
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Driver — операции над одной привязанной к окну страницей.
type Driver interface {
	Connect(debugAddress string) error
	Navigate(url string) error
	Reload() error
	Title() (string, error)
	URL() string
	Alive() bool
	CloseStrayTabs(keepURL string) int
	WaitForLoad(state string, timeout time.Duration) error
	WaitForSelector(selector string, timeout time.Duration) error
	Count(selector string) (int, error)
	ElementTexts(selector string) ([]string, error)
	BodyText() (string, error)
	CollectAttributes(selector, attr string) ([]string, error)
	Locator(selector string) playwright.Locator
	Page() playwright.Page
	ScrollToTop() error
	ScrollWheel(times int, deltaY float64) error
	Close() error
	Disconnect()
}

// CDPDriver реализует Driver поверх playwright-go.
type CDPDriver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	cfg     Config
	mu      sync.RWMutex
}

// Config — таймауты и защищенные адреса драйвера.
type Config struct {
	NavigateTimeout time.Duration
	ActionTimeout   time.Duration
	// Вкладки с этими подстроками в URL не закрываются при зачистке:
	// консоль антидетект-браузера живет в том же окне.
	ProtectedURLs []string
}

var defaultProtectedURLs = []string{
	"console.bitbrowser.net",
	"localhost:54345",
	"127.0.0.1:54345",
	"about:blank",
}
