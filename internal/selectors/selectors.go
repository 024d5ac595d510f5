// Package selectors загружает внешнюю конфигурацию селекторов страницы.
// Все XPath/CSS строки живут в YAML-файле, код оперирует только логическими
// именами вида (категория, ключ).
package selectors

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Registry хранит URL-адреса, селекторы по категориям и таймауты ожидания.
type Registry struct {
	URLs      map[string]string               `yaml:"urls"`
	Elements  map[string]map[string]yaml.Node `yaml:"elements"`
	WaitTimes map[string]int                  `yaml:"wait_times"`
}

// Load читает реестр из YAML-файла.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение файла селекторов: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML-содержимое реестра.
func Parse(data []byte) (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("разбор файла селекторов: %w", err)
	}
	return &r, nil
}

// URL возвращает адрес по ключу, пустую строку если не настроен.
func (r *Registry) URL(key string) string {
	return r.URLs[key]
}

// Element возвращает селектор по категории и ключу.
// Если в YAML записан список, возвращается первый элемент.
func (r *Registry) Element(category, key string) string {
	list := r.ElementList(category, key)
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

// ElementList возвращает список селекторов: скалярное значение становится
// списком из одного элемента.
func (r *Registry) ElementList(category, key string) []string {
	cat, ok := r.Elements[category]
	if !ok {
		return nil
	}
	node, ok := cat[key]
	if !ok {
		return nil
	}

	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil || s == "" {
			return nil
		}
		return []string{s}
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return nil
		}
		out := list[:0]
		for _, s := range list {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// WaitTime возвращает настроенный таймаут; по умолчанию 10 секунд,
// как и в исходной конфигурации.
func (r *Registry) WaitTime(key string) time.Duration {
	if sec, ok := r.WaitTimes[key]; ok && sec > 0 {
		return time.Duration(sec) * time.Second
	}
	return 10 * time.Second
}

// Format подставляет именованные параметры вида {name} в селектор.
func (r *Registry) Format(category, key string, args map[string]string) string {
	sel := r.Element(category, key)
	return expand(sel, args)
}

// FormatList подставляет параметры в каждый селектор списка.
func (r *Registry) FormatList(category, key string, args map[string]string) []string {
	list := r.ElementList(category, key)
	out := make([]string, len(list))
	for i, sel := range list {
		out[i] = expand(sel, args)
	}
	return out
}

func expand(sel string, args map[string]string) string {
	if sel == "" || len(args) == 0 {
		return sel
	}
	for name, value := range args {
		sel = strings.ReplaceAll(sel, "{"+name+"}", value)
	}
	return sel
}
