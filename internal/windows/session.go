package windows

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"genAgent/internal/bitbrowser"
	"genAgent/internal/browser"
	"genAgent/internal/humanize"
	"genAgent/internal/logger"
	"genAgent/internal/operator"
	"genAgent/internal/points"
	"genAgent/internal/selectors"
	"genAgent/internal/tasks"
)

// Session — прод-реализация Sessioner: открывает профиль через REST API
// антидетект-браузера, цепляется к нему по CDP и отдает оператора.
type Session struct {
	profileID  string
	api        *bitbrowser.Client
	reg        *selectors.Registry
	human      *humanize.Behavior
	dl         *operator.Downloader
	browserCfg browser.Config
	log        *logger.Zap

	drv browser.Driver
	op  *operator.Operator
}

func NewSession(profileID string, api *bitbrowser.Client, reg *selectors.Registry,
	human *humanize.Behavior, dl *operator.Downloader, browserCfg browser.Config, log *logger.Zap) *Session {
	return &Session{
		profileID:  profileID,
		api:        api,
		reg:        reg,
		human:      human,
		dl:         dl,
		browserCfg: browserCfg,
		log:        log.Named("session").With(zap.String("window", profileID)),
	}
}

// Open запускает профиль и подключается к нему по CDP. Драйвер
// создается один раз на сессию и переживает переподключения.
func (s *Session) Open(ctx context.Context) error {
	ep, err := s.api.Open(ctx, s.profileID)
	if err != nil {
		return fmt.Errorf("открытие профиля %s: %w", s.profileID, err)
	}

	addr := ep.DebugAddress()
	if addr == "" {
		return fmt.Errorf("профиль %s не вернул адрес отладки", s.profileID)
	}
	s.log.Info("Профиль открыт", zap.String("debug", addr))

	if s.drv == nil {
		s.drv = browser.New(s.browserCfg)
	}
	if err := s.drv.Connect(addr); err != nil {
		return fmt.Errorf("подключение к окну %s: %w", s.profileID, err)
	}

	if closed := s.drv.CloseStrayTabs(s.reg.URL("generate")); closed > 0 {
		s.log.Info("Закрыты лишние вкладки", zap.Int("count", closed))
	}

	s.op = operator.New(s.drv, s.reg, s.human, s.dl, s.log, s.profileID)
	return nil
}

// Close разрывает CDP-соединение и просит антидетект-браузер закрыть
// окно профиля. Драйвер остается живым, чтобы Open мог переподключиться
// без повторного запуска playwright.
func (s *Session) Close() {
	if s.op == nil && s.drv == nil {
		return
	}
	s.op = nil
	if s.drv != nil {
		s.drv.Disconnect()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.api.Close(ctx, s.profileID); err != nil {
		s.log.Warn("Профиль не закрылся через API", zap.Error(err))
	}
}

// Stop — окончательная остановка: закрывает соединение и профиль,
// затем гасит процесс драйвера.
func (s *Session) Stop() {
	s.Close()
	if s.drv == nil {
		return
	}
	if err := s.drv.Close(); err != nil {
		s.log.Warn("Драйвер не остановился", zap.Error(err))
	}
	s.drv = nil
}

func (s *Session) Alive() bool {
	return s.drv != nil && s.drv.Alive()
}

func (s *Session) Page() points.PageReader {
	return s.drv
}

func (s *Session) EnsureReady() error {
	if s.op == nil {
		return fmt.Errorf("сессия окна %s не открыта", s.profileID)
	}
	return s.op.EnsureReady()
}

func (s *Session) Generate(task *tasks.Task) ([]string, error) {
	if s.op == nil {
		return nil, fmt.Errorf("сессия окна %s не открыта", s.profileID)
	}
	return s.op.Generate(task)
}
