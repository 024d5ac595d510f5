package accounts

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"genAgent/internal/browser"
	"genAgent/internal/humanize"
	"genAgent/internal/logger"
	"genAgent/internal/selectors"
)

// Registrar проводит регистрацию и выход из аккаунта в одном окне.
type Registrar struct {
	drv   browser.Driver
	reg   *selectors.Registry
	human *humanize.Behavior
	codes CodeProvider
	log   *logger.Zap
}

func NewRegistrar(drv browser.Driver, reg *selectors.Registry, human *humanize.Behavior, codes CodeProvider, log *logger.Zap) *Registrar {
	return &Registrar{
		drv:   drv,
		reg:   reg,
		human: human,
		codes: codes,
		log:   log.Named("accounts"),
	}
}

// IsLoggedIn определяет, выполнен ли вход: ищет аватар пользователя.
func (r *Registrar) IsLoggedIn() bool {
	for _, sel := range r.reg.ElementList("auth", "avatar") {
		if count, err := r.drv.Count(sel); err == nil && count > 0 {
			return true
		}
	}
	return false
}

// Register создает учетную запись creds. Код подтверждения с почты
// запрашивается у CodeProvider.
func (r *Registrar) Register(ctx context.Context, creds Credentials) error {
	home := r.reg.URL("home")
	if home == "" {
		return fmt.Errorf("в реестре селекторов не задан urls.home")
	}
	if err := r.drv.Navigate(home); err != nil {
		return fmt.Errorf("переход на главную: %w", err)
	}
	humanize.Sleep(3*time.Second, 5*time.Second)

	if r.IsLoggedIn() {
		return fmt.Errorf("в окне уже выполнен вход, сперва выйдите из аккаунта")
	}

	r.log.Info("Регистрация аккаунта", zap.String("email", creds.Email))

	if err := r.clickFirst("auth", "login_button"); err != nil {
		return fmt.Errorf("открытие формы входа: %w", err)
	}
	r.human.Pause()

	// Кнопка входа по почте есть не во всех вариантах формы
	if err := r.clickFirst("auth", "signup_with_email"); err != nil {
		r.log.Debug("Вариант входа по почте не найден, продолжаем", zap.Error(err))
	}
	r.human.ShortPause()

	if err := r.fillFirst("auth", "email_input", creds.Email); err != nil {
		return fmt.Errorf("ввод почты: %w", err)
	}
	r.human.ShortPause()

	if err := r.fillFirst("auth", "password_input", creds.Password); err != nil {
		return fmt.Errorf("ввод пароля: %w", err)
	}
	r.human.Pause()

	if err := r.clickFirst("auth", "continue_button"); err != nil {
		return fmt.Errorf("отправка формы: %w", err)
	}

	code, err := r.codes.Code(ctx, creds.Email)
	if err != nil {
		return fmt.Errorf("получение кода подтверждения: %w", err)
	}

	if err := r.enterCode(code); err != nil {
		return fmt.Errorf("ввод кода подтверждения: %w", err)
	}
	r.human.Pause()

	// После кода площадка иногда просит дату рождения
	if err := r.fillBirthday(); err != nil {
		r.log.Debug("Шаг с датой рождения пропущен", zap.Error(err))
	}

	if err := r.waitLoggedIn(r.reg.WaitTime("login")); err != nil {
		return err
	}

	r.log.Info("Аккаунт зарегистрирован", zap.String("email", creds.Email))
	return nil
}

// Logout выходит из текущего аккаунта через меню профиля.
func (r *Registrar) Logout() error {
	if !r.IsLoggedIn() {
		return nil
	}

	if err := r.clickFirst("auth", "avatar"); err != nil {
		return fmt.Errorf("открытие меню профиля: %w", err)
	}
	r.human.ShortPause()

	if err := r.clickFirst("auth", "logout_button"); err != nil {
		return fmt.Errorf("кнопка выхода: %w", err)
	}
	r.human.ShortPause()

	// Подтверждение показывается не всегда
	if err := r.clickFirst("auth", "logout_confirm"); err != nil {
		r.log.Debug("Подтверждение выхода не показано", zap.Error(err))
	}
	humanize.Sleep(2*time.Second, 4*time.Second)

	if r.IsLoggedIn() {
		return fmt.Errorf("выход из аккаунта не подтвердился")
	}
	r.log.Info("Выход из аккаунта выполнен")
	return nil
}

// enterCode вводит код подтверждения: либо посимвольно в ячейки,
// либо целиком в одно поле.
func (r *Registrar) enterCode(code string) error {
	cells := r.reg.Element("auth", "code_cells")
	if cells != "" {
		count, err := r.drv.Count(cells)
		if err == nil && count >= len(code) {
			loc := r.drv.Locator(cells)
			for i, ch := range code {
				if err := loc.Nth(i).Fill(string(ch)); err != nil {
					return err
				}
				humanize.Sleep(150*time.Millisecond, 400*time.Millisecond)
			}
			return nil
		}
	}

	if err := r.fillFirst("auth", "code_input", code); err != nil {
		return err
	}
	return r.clickFirst("auth", "code_confirm")
}

// fillBirthday заполняет необязательный шаг с датой рождения:
// случайный взрослый возраст, затем подтверждение.
func (r *Registrar) fillBirthday() error {
	input := r.reg.Element("auth", "birthday_input")
	if input == "" {
		return fmt.Errorf("в реестре селекторов не задан auth.birthday_input")
	}
	loc := r.drv.Locator(input).First()
	if visible, err := loc.IsVisible(); err != nil || !visible {
		return fmt.Errorf("поле даты рождения не показано")
	}

	year := time.Now().Year() - 20 - rand.Intn(15)
	date := fmt.Sprintf("%04d-%02d-%02d", year, 1+rand.Intn(12), 1+rand.Intn(28))
	if err := loc.Fill(date); err != nil {
		return fmt.Errorf("ввод даты рождения: %w", err)
	}
	r.human.ShortPause()
	return r.clickFirst("auth", "birthday_confirm")
}

func (r *Registrar) waitLoggedIn(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if r.IsLoggedIn() {
			return nil
		}
		humanize.Sleep(time.Second, 2*time.Second)
	}
	return fmt.Errorf("вход не подтвердился за %v", timeout)
}

func (r *Registrar) clickFirst(category, key string) error {
	for _, sel := range r.reg.ElementList(category, key) {
		loc := r.drv.Locator(sel).First()
		if visible, err := loc.IsVisible(); err != nil || !visible {
			continue
		}
		return r.human.Click(r.drv.Page(), loc)
	}
	return fmt.Errorf("элемент %s.%s не найден", category, key)
}

func (r *Registrar) fillFirst(category, key, value string) error {
	for _, sel := range r.reg.ElementList(category, key) {
		loc := r.drv.Locator(sel).First()
		if visible, err := loc.IsVisible(); err != nil || !visible {
			continue
		}
		return r.human.Type(r.drv.Page(), loc, value)
	}
	return fmt.Errorf("поле %s.%s не найдено", category, key)
}
