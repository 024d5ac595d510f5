package ui

import "fmt"

// FormatStatus возвращает иконку, цвет и текст для статуса окна
func FormatStatus(status string) (icon, color, text string) {
	switch status {
	case "idle":
		return IconClock, ColorGreen, "ожидает"
	case "working":
		return IconPlay, ColorCyan, "работает"
	case "paused":
		return IconPause, ColorYellow, "на паузе"
	case "error":
		return IconCross, ColorRed, "сбой"
	case "stopped":
		return IconCross, ColorGray, "остановлено"
	default:
		return IconClock, ColorYellow, status
	}
}

// FormatOutcome возвращает иконку и цвет для исхода задания
func FormatOutcome(status string) (icon, color, text string) {
	switch status {
	case "completed":
		return IconCheckmark, ColorGreen, "выполнено"
	case "rejected":
		return IconCross, ColorYellow, "отклонено"
	case "failed":
		return IconCross, ColorRed, "провалено"
	default:
		return IconClock, ColorYellow, status
	}
}

// ClearScreen очищает терминал
func ClearScreen() {
	fmt.Print("\033[H\033[2J")
}
