// Package bitbrowser — клиент локального REST API антидетект-браузера.
// API поднимает и гасит профили; каждый открытый профиль отдает адрес
// удаленной отладки, к которому затем подключается драйвер.
package bitbrowser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError — ошибка уровня API (HTTP дошел, но success=false).
type APIError struct {
	Op  string
	Msg string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bitbrowser %s: %s", e.Op, e.Msg)
}

// Endpoints — отладочные адреса открытого профиля.
type Endpoints struct {
	HTTP string `json:"http"`
	WS   string `json:"ws"`
	// Некоторые версии API кладут адрес в webDriver
	WebDriver string `json:"webDriver"`
}

// DebugAddress возвращает нормализованный http-адрес отладки.
// Если http-поля пусты, хост достается из ws-адреса.
func (e *Endpoints) DebugAddress() string {
	addr := e.HTTP
	if addr == "" {
		addr = e.WebDriver
	}
	if addr == "" && e.WS != "" {
		// ws://127.0.0.1:9222/devtools/... -> 127.0.0.1:9222
		parts := strings.Split(e.WS, "/")
		if len(parts) > 2 && strings.Contains(parts[2], ":") {
			addr = parts[2]
		}
	}
	if addr == "" {
		return ""
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return addr
}

type apiResponse struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// Client ходит в локальный API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New создает клиент для baseURL (обычно http://127.0.0.1:54345).
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Open поднимает профиль и возвращает отладочные адреса.
func (c *Client) Open(ctx context.Context, profileID string) (*Endpoints, error) {
	payload := map[string]any{
		"id":   profileID,
		"args": []string{"--enable-automation"},
	}

	data, err := c.post(ctx, "/browser/open", payload)
	if err != nil {
		return nil, err
	}

	var ep Endpoints
	if err := json.Unmarshal(data, &ep); err != nil {
		return nil, fmt.Errorf("разбор ответа /browser/open: %w", err)
	}
	if ep.DebugAddress() == "" {
		return nil, &APIError{Op: "open", Msg: "профиль открыт, но отладочный адрес не получен"}
	}
	return &ep, nil
}

// Close гасит профиль. Ошибка не фатальна для вызывающего кода,
// но возвращается для логирования.
func (c *Client) Close(ctx context.Context, profileID string) error {
	_, err := c.post(ctx, "/browser/close", map[string]any{"id": profileID})
	return err
}

// Delete удаляет профиль.
func (c *Client) Delete(ctx context.Context, profileID string) error {
	_, err := c.post(ctx, "/browser/delete", map[string]any{"id": profileID})
	return err
}

func (c *Client) post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("чтение ответа %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Op: path, Msg: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(raw))}
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("разбор ответа %s: %w", path, err)
	}
	if !parsed.Success {
		msg := parsed.Msg
		if msg == "" {
			msg = "неизвестная ошибка"
		}
		return nil, &APIError{Op: path, Msg: msg}
	}
	return parsed.Data, nil
}
