// Package points следит за балансом кредитов на странице генерации.
// Баланс соскребается со страницы настроенными селекторами, недавние
// значения кэшируются, а воркеры через Gate останавливаются, когда
// остаток падает ниже порога.
package points

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Верхняя граница правдоподобного баланса: все, что больше,
// считается мусором из чужого элемента страницы.
const maxPlausible = 10000

// PageReader — минимальный доступ к странице, нужный монитору.
// Реализуется браузерным драйвером, в тестах подменяется фейком.
type PageReader interface {
	// ElementTexts возвращает тексты видимых элементов по селектору.
	ElementTexts(selector string) ([]string, error)
	// BodyText возвращает текст всей страницы.
	BodyText() (string, error)
}

var balancePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)积分[：:]\s*(\d+)`),
	regexp.MustCompile(`(?i)剩余积分[：:]\s*(\d+)`),
	regexp.MustCompile(`(?i)余额[：:]\s*(\d+)`),
	regexp.MustCompile(`(?i)points[：:]\s*(\d+)`),
	regexp.MustCompile(`(?i)remaining\s+points[：:]\s*(\d+)`),
	regexp.MustCompile(`(?i)balance[：:]\s*(\d+)`),
	regexp.MustCompile(`(?i)(\d+)\s*积分`),
	regexp.MustCompile(`(?i)(\d+)\s*points`),
}

var insufficientMarkers = []string{
	"积分不足",
	"余额不足",
	"insufficient points",
	"not enough points",
	"insufficient balance",
	"余额为0",
	"积分为0",
}

type reading struct {
	balance int
	at      time.Time
}

// Monitor соскребает и кэширует баланс.
type Monitor struct {
	selectors []string

	mu    sync.RWMutex
	cache map[string]reading
	ttl   time.Duration
}

// NewMonitor создает монитор. Первый селектор считается основным,
// остальные — запасными.
func NewMonitor(selectors []string, ttl time.Duration) *Monitor {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Monitor{
		selectors: selectors,
		cache:     make(map[string]reading),
		ttl:       ttl,
	}
}

// Check читает актуальный баланс со страницы.
// Порядок: настроенные элементы → маркеры "недостаточно" → текст страницы.
func (m *Monitor) Check(page PageReader) (int, error) {
	for _, sel := range m.selectors {
		texts, err := page.ElementTexts(sel)
		if err != nil {
			continue
		}
		for _, text := range texts {
			if balance, ok := ParseBalance(text); ok {
				return balance, nil
			}
		}
	}

	body, err := page.BodyText()
	if err != nil {
		return 0, fmt.Errorf("не удалось прочитать текст страницы: %w", err)
	}

	for _, marker := range insufficientMarkers {
		if strings.Contains(body, marker) {
			return 0, nil
		}
	}

	if balance, ok := ParseBalance(body); ok {
		return balance, nil
	}

	return 0, fmt.Errorf("баланс на странице не найден")
}

// CheckCached возвращает баланс для окна, пользуясь кэшем внутри TTL.
func (m *Monitor) CheckCached(window string, page PageReader) (int, error) {
	if balance, ok := m.Cached(window); ok {
		return balance, nil
	}

	balance, err := m.Check(page)
	if err != nil {
		return 0, err
	}
	m.Remember(window, balance)
	return balance, nil
}

// Cached возвращает свежее закэшированное значение, если оно есть.
func (m *Monitor) Cached(window string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.cache[window]
	if !ok || time.Since(r.at) > m.ttl {
		return 0, false
	}
	return r.balance, true
}

// Remember кладет значение в кэш окна.
func (m *Monitor) Remember(window string, balance int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[window] = reading{balance: balance, at: time.Now()}
}

// Forget сбрасывает кэш окна (например, после рестарта).
func (m *Monitor) Forget(window string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, window)
}

// ParseBalance извлекает числовой баланс из текста элемента.
func ParseBalance(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}

	if n, err := strconv.Atoi(text); err == nil {
		if n >= 0 && n <= maxPlausible {
			return n, true
		}
		return 0, false
	}

	for _, re := range balancePatterns {
		if match := re.FindStringSubmatch(text); match != nil {
			n, err := strconv.Atoi(match[1])
			if err != nil {
				continue
			}
			if n >= 0 && n <= maxPlausible {
				return n, true
			}
		}
	}

	return 0, false
}

// EstimateRemaining оценивает, сколько генераций еще доступно.
func EstimateRemaining(balance, costPerRun int) int {
	if balance <= 0 || costPerRun <= 0 {
		return 0
	}
	return balance / costPerRun
}

// Gate решает, можно ли окну брать следующее задание.
type Gate struct {
	monitor   *Monitor
	threshold int
}

// NewGate создает гейт с порогом threshold.
func NewGate(monitor *Monitor, threshold int) *Gate {
	return &Gate{monitor: monitor, threshold: threshold}
}

// Allow проверяет баланс окна: true — работать можно.
// Ошибка скрейпа трактуется в пользу работы: баланс неизвестен,
// страница сама откажет, если кредиты кончились.
func (g *Gate) Allow(window string, page PageReader) (bool, int, error) {
	balance, err := g.monitor.CheckCached(window, page)
	if err != nil {
		return true, -1, err
	}
	return balance >= g.threshold, balance, nil
}

// Forget сбрасывает кэш окна перед принудительной перепроверкой.
func (g *Gate) Forget(window string) {
	g.monitor.Forget(window)
}

// Threshold возвращает настроенный порог.
func (g *Gate) Threshold() int {
	return g.threshold
}
