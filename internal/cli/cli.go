package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"genAgent/internal/accounts"
	"genAgent/internal/bitbrowser"
	"genAgent/internal/cli/commands"
	"genAgent/internal/cli/ui"
	"genAgent/internal/config"
	"genAgent/internal/database"
	"genAgent/internal/logger"
	"genAgent/internal/selectors"
	"genAgent/internal/server"
)

type CLI struct {
	log *logger.Zap
	rl  *readline.Instance

	generateHandler *commands.GenerateHandler
	accountsHandler *commands.AccountsHandler
	statusHandler   *commands.StatusHandler
}

func New(cfg *config.Cfg, reg *selectors.Registry, repo *database.Repository,
	srv *server.Server, log *logger.Zap) *CLI {
	api := bitbrowser.New(cfg.BitBrowser.BaseURL, cfg.BitBrowser.Timeout)
	codes := accounts.NewStdinCodeProvider()

	cli := &CLI{
		log:             log,
		generateHandler: commands.NewGenerateHandler(cfg, reg, api, repo, srv, log),
		accountsHandler: commands.NewAccountsHandler(cfg, reg, api, repo, codes, log),
		statusHandler:   commands.NewStatusHandler(repo, srv),
	}

	// Инициализация readline
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     ".gen-agent-history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		log.Warn("Не удалось инициализировать readline, будет использован fallback режим")
	} else {
		cli.rl = rl
	}

	return cli
}

func (c *CLI) readLine() (string, error) {
	if c.rl != nil {
		return c.rl.Readline()
	}
	// Fallback для работы без readline
	reader := bufio.NewReader(os.Stdin)
	println(ui.ColorCyan + "> " + ui.ColorReset)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *CLI) closeReadline() {
	if c.rl != nil {
		c.rl.Close()
	}
}

func (c *CLI) Run(ctx context.Context) {
	ui.PrintWelcome()
	defer c.closeReadline()

	for {
		// Проверка отмены контекста
		select {
		case <-ctx.Done():
			println("\n" + ui.ColorCyan + ui.IconWave + " Получен сигнал завершения..." + ui.ColorReset)
			return
		default:
		}

		line, err := c.readLine()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			} else {
				continue
			}
		} else if err == io.EOF {
			break
		}

		line = strings.TrimSpace(line)

		if line == "" {
			continue
		}

		c.handleCommand(ctx, line)
	}
}

func (c *CLI) handleCommand(ctx context.Context, line string) {
	switch {
	case line == "exit":
		println(ui.ColorCyan + ui.IconWave + " До свидания!" + ui.ColorReset)
		os.Exit(0)

	case line == "clear":
		ui.ClearScreen()

	case strings.HasPrefix(line, "generate "):
		dir := strings.TrimSpace(strings.TrimPrefix(line, "generate "))
		c.generateHandler.Run(ctx, dir)

	case line == "stats":
		c.statusHandler.Stats()

	case line == "windows":
		c.statusHandler.Windows()

	case strings.HasPrefix(line, "pause "):
		c.statusHandler.Pause(strings.TrimSpace(strings.TrimPrefix(line, "pause ")))

	case strings.HasPrefix(line, "resume "):
		c.statusHandler.Resume(strings.TrimSpace(strings.TrimPrefix(line, "resume ")))

	case line == "points":
		c.accountsHandler.Points(ctx)

	case strings.HasPrefix(line, "register "):
		c.accountsHandler.Register(ctx, strings.TrimSpace(strings.TrimPrefix(line, "register ")))

	case strings.HasPrefix(line, "logout "):
		c.accountsHandler.Logout(ctx, strings.TrimSpace(strings.TrimPrefix(line, "logout ")))

	case line == "runs":
		c.statusHandler.Runs()

	default:
		ui.PrintHelp()
	}
}
