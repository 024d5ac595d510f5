package operator

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"genAgent/internal/logger"
)

// Downloader скачивает готовые изображения по CDN-ссылкам.
// CDN площадки отдает картинку только с Referer исходной страницы.
type Downloader struct {
	client *http.Client
	log    *logger.Zap
}

func NewDownloader(timeout time.Duration, log *logger.Zap) *Downloader {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Downloader{
		client: &http.Client{Timeout: timeout},
		log:    log.Named("downloader"),
	}
}

// DownloadAll сохраняет изображения в папку задания как row<N>_img<K>.<ext>.
// Ошибка одной картинки не прерывает остальные; ошибка возвращается,
// только если не удалось скачать ничего.
func (d *Downloader) DownloadAll(urls []string, dir string, row int, referer string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("создание папки %s: %w", dir, err)
	}

	var saved []string
	var lastErr error
	for i, u := range urls {
		path, err := d.download(u, dir, row, i+1, referer)
		if err != nil {
			d.log.Warn("Изображение не скачалось",
				zap.String("url", u), zap.Error(err))
			lastErr = err
			continue
		}
		saved = append(saved, path)
	}

	if len(saved) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return saved, nil
}

func (d *Downloader) download(rawURL, dir string, row, index int, referer string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Referer", referer)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("статус %d для %s", resp.StatusCode, rawURL)
	}

	ext := ImageExt(rawURL, resp.Header.Get("Content-Type"))
	path := filepath.Join(dir, fmt.Sprintf("row%d_img%d%s", row, index, ext))

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// ImageExt выбирает расширение файла: сперва из пути URL, затем из
// Content-Type, по умолчанию .jpg.
func ImageExt(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		ext := strings.ToLower(filepath.Ext(u.Path))
		switch ext {
		case ".jpg", ".jpeg", ".png", ".webp", ".gif":
			return ext
		}
	}

	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			switch mt {
			case "image/png":
				return ".png"
			case "image/webp":
				return ".webp"
			case "image/gif":
				return ".gif"
			case "image/jpeg":
				return ".jpg"
			}
		}
	}
	return ".jpg"
}
