// Package accounts создает учетные записи на площадке генерации:
// придумывает правдоподобные логины и пароли, проходит регистрацию
// и выходит из аккаунта, когда кредиты исчерпаны.
package accounts

import (
	"fmt"
	"math/rand"
	"strings"
)

// Credentials — данные одной новой учетной записи.
type Credentials struct {
	Username string
	Email    string
	Password string
}

var usernamePrefixes = []string{
	"art", "pixel", "dream", "neo", "sky", "luna", "nova", "echo", "iris", "vega",
}

var usernameSuffixes = []string{
	"studio", "works", "lab", "craft", "wave", "mind", "forge",
}

const (
	lowerChars = "abcdefghijkmnopqrstuvwxyz"
	upperChars = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitChars = "23456789"
	punctChars = "!@#$%"
)

// NewCredentials генерирует логин, почтовый адрес в заданном домене
// и пароль, проходящий типовые требования форм регистрации.
func NewCredentials(mailDomain string) Credentials {
	username := fmt.Sprintf("%s%s%d",
		usernamePrefixes[rand.Intn(len(usernamePrefixes))],
		usernameSuffixes[rand.Intn(len(usernameSuffixes))],
		100+rand.Intn(9900),
	)

	return Credentials{
		Username: username,
		Email:    username + "@" + strings.TrimPrefix(mailDomain, "@"),
		Password: newPassword(12),
	}
}

// newPassword собирает пароль, в котором гарантированно есть строчная,
// заглавная буква, цифра и спецсимвол.
func newPassword(length int) string {
	if length < 8 {
		length = 8
	}

	classes := []string{lowerChars, upperChars, digitChars, punctChars}
	all := lowerChars + upperChars + digitChars + punctChars

	chars := make([]byte, 0, length)
	for _, class := range classes {
		chars = append(chars, class[rand.Intn(len(class))])
	}
	for len(chars) < length {
		chars = append(chars, all[rand.Intn(len(all))])
	}

	rand.Shuffle(len(chars), func(i, j int) {
		chars[i], chars[j] = chars[j], chars[i]
	})
	return string(chars)
}
