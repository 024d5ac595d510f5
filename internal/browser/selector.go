package browser

import "strings"

// AsLocator приводит сырые XPath-выражения к синтаксису локаторов
// playwright. CSS-селекторы и уже готовые локаторы возвращаются как есть.
func AsLocator(selector string) string {
	s := strings.TrimSpace(selector)
	if s == "" {
		return s
	}

	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "xpath=") ||
		strings.HasPrefix(lower, "css=") ||
		strings.HasPrefix(lower, "text=") {
		return s
	}

	if strings.HasPrefix(s, "//") ||
		strings.HasPrefix(s, "(") ||
		strings.HasPrefix(s, ".//") {
		return "xpath=" + s
	}

	return s
}
