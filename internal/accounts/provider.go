package accounts

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// CodeProvider отдает код подтверждения, присланный на почту аккаунта.
// Источник кода — внешний: оператор читает его из почтового ящика сам.
type CodeProvider interface {
	Code(ctx context.Context, email string) (string, error)
}

type stdinCodeProvider struct {
	reader *bufio.Reader
}

// NewStdinCodeProvider запрашивает код у оператора в консоли.
func NewStdinCodeProvider() CodeProvider {
	return &stdinCodeProvider{reader: bufio.NewReader(os.Stdin)}
}

func (p *stdinCodeProvider) Code(ctx context.Context, email string) (string, error) {
	fmt.Printf("\n[Регистрация] Введите код подтверждения для %s\n", email)
	fmt.Print("Код: ")

	answerChan := make(chan string, 1)
	errChan := make(chan error, 1)

	go func() {
		answer, err := p.reader.ReadString('\n')
		if err != nil {
			errChan <- err
			return
		}
		answerChan <- strings.TrimSpace(answer)
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errChan:
		return "", err
	case answer := <-answerChan:
		if answer == "" {
			return "", fmt.Errorf("пустой код подтверждения")
		}
		return answer, nil
	}
}
