// Package humanize добавляет задержки и траектории мыши, имитирующие
// живого пользователя: площадки с антибот-защитой реагируют на мгновенные
// клики и ввод без пауз.
package humanize

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Behavior хранит настроенный диапазон пауз между действиями.
type Behavior struct {
	minDelay time.Duration
	maxDelay time.Duration
}

func New(minDelay, maxDelay time.Duration) *Behavior {
	if minDelay <= 0 {
		minDelay = 2 * time.Second
	}
	if maxDelay < minDelay {
		maxDelay = minDelay + 3*time.Second
	}
	return &Behavior{minDelay: minDelay, maxDelay: maxDelay}
}

// Pause ждет случайное время из настроенного диапазона.
func (b *Behavior) Pause() {
	Sleep(b.minDelay, b.maxDelay)
}

// ShortPause ждет короткое время между мелкими действиями на странице.
func (b *Behavior) ShortPause() {
	Sleep(300*time.Millisecond, 900*time.Millisecond)
}

// Sleep ждет случайное время в диапазоне [min, max].
func Sleep(min, max time.Duration) {
	if max <= min {
		time.Sleep(min)
		return
	}
	time.Sleep(min + time.Duration(rand.Int63n(int64(max-min))))
}

// Click подводит курсор к элементу по ступенчатой траектории и кликает
// в случайную точку внутри него. При любой ошибке откатывается на
// штатный клик playwright.
func (b *Behavior) Click(page playwright.Page, locator playwright.Locator) error {
	if err := locator.ScrollIntoViewIfNeeded(); err == nil {
		b.ShortPause()
	}

	box, err := locator.BoundingBox()
	if err != nil || box == nil || box.Width <= 0 || box.Height <= 0 {
		return locator.Click()
	}

	// Точка клика смещена от центра, но не ближе 20% к краям
	x := box.X + box.Width*(0.3+rand.Float64()*0.4)
	y := box.Y + box.Height*(0.3+rand.Float64()*0.4)

	if err := page.Mouse().Move(x, y, playwright.MouseMoveOptions{
		Steps: playwright.Int(10 + rand.Intn(15)),
	}); err != nil {
		return locator.Click()
	}
	Sleep(100*time.Millisecond, 400*time.Millisecond)

	if err := page.Mouse().Click(x, y); err != nil {
		return locator.Click()
	}
	return nil
}

// Type вводит текст в поле: contenteditable заполняется через клик и
// посимвольный ввод, обычные input/textarea через Fill с проверкой
// результата.
func (b *Behavior) Type(page playwright.Page, locator playwright.Locator, text string) error {
	if err := b.Click(page, locator); err != nil {
		return fmt.Errorf("фокус на поле ввода: %w", err)
	}
	b.ShortPause()

	editable, _ := locator.GetAttribute("contenteditable")
	if editable == "true" {
		if err := clearEditable(page); err != nil {
			return err
		}
		if err := page.Keyboard().Type(text, playwright.KeyboardTypeOptions{
			Delay: playwright.Float(float64(30 + rand.Intn(60))),
		}); err != nil {
			return fmt.Errorf("посимвольный ввод: %w", err)
		}
		return nil
	}

	if err := locator.Fill(text); err != nil {
		return fmt.Errorf("заполнение поля: %w", err)
	}

	// Сайты с управляемыми полями иногда сбрасывают значение
	got, err := locator.InputValue()
	if err == nil && !strings.Contains(got, text) {
		if err := locator.Fill(text); err != nil {
			return fmt.Errorf("повторное заполнение поля: %w", err)
		}
	}
	return nil
}

func clearEditable(page playwright.Page) error {
	if err := page.Keyboard().Press("Control+a"); err != nil {
		return err
	}
	Sleep(50*time.Millisecond, 150*time.Millisecond)
	return page.Keyboard().Press("Delete")
}

// WarmUp делает пару случайных движений мыши по странице, чтобы сессия
// не выглядела как скрипт, ударивший сразу по кнопке генерации.
func (b *Behavior) WarmUp(page playwright.Page) {
	for i := 0; i < 2+rand.Intn(2); i++ {
		x := 200 + rand.Float64()*1200
		y := 150 + rand.Float64()*600
		_ = page.Mouse().Move(x, y, playwright.MouseMoveOptions{
			Steps: playwright.Int(5 + rand.Intn(10)),
		})
		Sleep(200*time.Millisecond, 600*time.Millisecond)
	}
}
