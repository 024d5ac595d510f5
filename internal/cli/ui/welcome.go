package ui

import (
	"fmt"
	"os"
)

// PrintWelcome выводит приветствие и лого
func PrintWelcome() {
	logoBytes, err := os.ReadFile("logo.txt")
	if err == nil {
		fmt.Println(ColorCyan + string(logoBytes) + ColorReset)
	}
	fmt.Println(ColorBold + IconPicture + " Gen-Agent v0.1.0" + ColorReset)
	fmt.Println(ColorGray + "Многооконная генерация изображений через антидетект-браузер" + ColorReset)
	fmt.Println()
	PrintHelp()
	fmt.Println(ColorCyan + IconBulb + " Совет:" + ColorReset + " Положите CSV с промптами в подпапки рабочей папки и запустите " + ColorYellow + "generate <папка>" + ColorReset)
	fmt.Println()
	fmt.Println(ColorGray + "⬆️ ⬇️" + ColorReset + " Используйте стрелки для навигации по истории команд")
	fmt.Println()
}

// PrintHelp выводит список доступных команд
func PrintHelp() {
	fmt.Println(ColorYellow + IconList + " Доступные команды:" + ColorReset)
	fmt.Println("  " + ColorGreen + "generate" + ColorReset + " <папка>      - Обработать все таблицы из папки")
	fmt.Println("  " + ColorGreen + "stats" + ColorReset + "                 - Статистика текущего прогона")
	fmt.Println("  " + ColorGreen + "windows" + ColorReset + "               - Состояние окон")
	fmt.Println("  " + ColorGreen + "pause" + ColorReset + " <окно>          - Поставить окно на паузу")
	fmt.Println("  " + ColorGreen + "resume" + ColorReset + " <окно>         - Снять окно с паузы")
	fmt.Println("  " + ColorGreen + "points" + ColorReset + "                - Проверить баланс в окнах")
	fmt.Println("  " + ColorGreen + "register" + ColorReset + " <окно>       - Зарегистрировать аккаунт в окне")
	fmt.Println("  " + ColorGreen + "logout" + ColorReset + " <окно>         - Выйти из аккаунта в окне")
	fmt.Println("  " + ColorGreen + "runs" + ColorReset + "                  - Последние прогоны из БД")
	fmt.Println("  " + ColorGreen + "clear" + ColorReset + "                 - Очистить экран")
	fmt.Println("  " + ColorGreen + "exit" + ColorReset + "                  - Выход")
	fmt.Println()
}
