// Package sheets читает промпты из CSV-таблиц и отмечает обработанные
// строки. Каждая таблица лежит в подпапке проекта, туда же складываются
// готовые изображения.
package sheets

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"genAgent/internal/tasks"
)

// Options задает раскладку таблицы: в какой колонке промпт, в какой
// статус и с какой строки начинаются данные.
type Options struct {
	PromptColumn int    // колонка с промптом, с единицы
	StatusColumn int    // колонка со статусом, с единицы
	StartRow     int    // первая строка данных, с единицы
	StatusText   string // значение статуса для готовых строк
	RejectedText string // значение статуса для отклоненных промптов
}

func (o *Options) normalize() {
	if o.PromptColumn < 1 {
		o.PromptColumn = 2
	}
	if o.StatusColumn < 1 {
		o.StatusColumn = 3
	}
	if o.StartRow < 1 {
		o.StartRow = 2
	}
	if o.StatusText == "" {
		o.StatusText = "done"
	}
	if o.RejectedText == "" {
		o.RejectedText = "rejected"
	}
}

// Source находит таблицы в рабочей папке и строит из них задачи.
// Отметки пишут все окна сразу, поэтому цикл чтение-запись файла
// держится под мьютексом.
type Source struct {
	root string
	opts Options
	mu   sync.Mutex
}

func NewSource(root string, opts Options) *Source {
	opts.normalize()
	return &Source{root: root, opts: opts}
}

// FindSheets возвращает пути всех CSV-файлов в подпапках рабочей папки.
// Таблицы в корне тоже учитываются, их изображения кладутся рядом.
func (s *Source) FindSheets() ([]string, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, fmt.Errorf("рабочая папка %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s не является папкой", s.root)
	}

	var sheets []string
	err = filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, "~") || strings.HasPrefix(name, ".") {
			return nil
		}
		if strings.EqualFold(filepath.Ext(name), ".csv") {
			sheets = append(sheets, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("обход папки %s: %w", s.root, err)
	}
	return sheets, nil
}

// LoadUnprocessed читает все таблицы и возвращает задачи по строкам без
// статуса. Повторяющиеся промпты между таблицами отбрасываются, как и
// строки, для которых изображения уже скачаны.
func (s *Source) LoadUnprocessed() ([]*tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheets, err := s.FindSheets()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []*tasks.Task

	for _, sheet := range sheets {
		rows, err := readAll(sheet)
		if err != nil {
			return nil, err
		}

		folder := filepath.Dir(sheet)
		sheetName := strings.TrimSuffix(filepath.Base(sheet), filepath.Ext(sheet))

		for i := s.opts.StartRow - 1; i < len(rows); i++ {
			row := rows[i]
			prompt := strings.TrimSpace(cell(row, s.opts.PromptColumn))
			if prompt == "" {
				continue
			}
			status := strings.TrimSpace(cell(row, s.opts.StatusColumn))
			if status != "" {
				continue
			}
			if seen[prompt] {
				continue
			}

			task := tasks.NewTask(prompt, sheetName, sheet, i+1, filepath.Base(folder), folder)
			if hasImages(folder, task.RowNumber) {
				continue
			}

			seen[prompt] = true
			out = append(out, task)
		}
	}
	return out, nil
}

// MarkProcessed записывает статус в строку таблицы и сохраняет файл.
func (s *Source) MarkProcessed(task *tasks.Task, rejected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := readAll(task.SheetPath)
	if err != nil {
		return err
	}
	if task.RowNumber < 1 || task.RowNumber > len(rows) {
		return fmt.Errorf("строка %d вне диапазона таблицы %s", task.RowNumber, task.SheetPath)
	}

	status := s.opts.StatusText
	if rejected {
		status = s.opts.RejectedText
	}

	row := rows[task.RowNumber-1]
	for len(row) < s.opts.StatusColumn {
		row = append(row, "")
	}
	row[s.opts.StatusColumn-1] = status
	rows[task.RowNumber-1] = row

	return writeAll(task.SheetPath, rows)
}

func readAll(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("открытие таблицы %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("чтение таблицы %s: %w", path, err)
	}
	return rows, nil
}

func writeAll(path string, rows [][]string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("запись таблицы %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("запись таблицы %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func cell(row []string, column int) string {
	if column < 1 || column > len(row) {
		return ""
	}
	return row[column-1]
}

// hasImages проверяет, не скачаны ли уже изображения для строки:
// файлы именуются row<N>_img<K>.<ext>.
func hasImages(folder string, rowNumber int) bool {
	pattern := filepath.Join(folder, fmt.Sprintf("row%d_img*", rowNumber))
	matches, err := filepath.Glob(pattern)
	return err == nil && len(matches) > 0
}
