package operator

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genAgent/internal/humanize"
	"genAgent/internal/logger"
	"genAgent/internal/selectors"
)

func TestIsResultImage(t *testing.T) {
	assert.True(t, IsResultImage("https://cdn.example.com/img/tplv-abc123.jpeg"))
	assert.False(t, IsResultImage("http://cdn.example.com/img/tplv-abc123.jpeg"))
	assert.False(t, IsResultImage("https://cdn.example.com/avatar.png"))
	assert.False(t, IsResultImage("data:image/png;base64,AAAA"))
}

func TestImageExt(t *testing.T) {
	assert.Equal(t, ".png", ImageExt("https://cdn.example.com/a/tplv-x.png?x=1", ""))
	assert.Equal(t, ".webp", ImageExt("https://cdn.example.com/a/tplv-x", "image/webp"))
	assert.Equal(t, ".jpg", ImageExt("https://cdn.example.com/a/tplv-x", "application/octet-stream"))
	assert.Equal(t, ".jpg", ImageExt("://broken", ""))
}

func TestDownloadAll(t *testing.T) {
	var gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprint(w, "jpegdata")
	}))
	defer srv.Close()

	log, err := logger.New("dev", "error")
	require.NoError(t, err)

	dir := t.TempDir()
	d := NewDownloader(5*time.Second, log)

	saved, err := d.DownloadAll(
		[]string{srv.URL + "/tplv-a", srv.URL + "/bad", srv.URL + "/tplv-b"},
		dir, 7, "https://dreamina.example.com/generate",
	)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "https://dreamina.example.com/generate", gotReferer)

	assert.Equal(t, filepath.Join(dir, "row7_img1.jpg"), saved[0])
	data, err := os.ReadFile(saved[0])
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(data))
	// вторая удачная ссылка сохраняет свой порядковый номер
	assert.Equal(t, filepath.Join(dir, "row7_img3.jpg"), saved[1])
}

func TestDownloadAllFailsWhenNothingSaved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	log, err := logger.New("dev", "error")
	require.NoError(t, err)

	d := NewDownloader(5*time.Second, log)
	_, err = d.DownloadAll([]string{srv.URL + "/tplv-a"}, t.TempDir(), 1, "")
	assert.Error(t, err)
}

const (
	queueSel  = "//div[contains(@class,'queue-badge')]"
	loadSel   = "//div[contains(@class,'loading-card')]"
	doneSel   = "//div[contains(@class,'record-card')]"
	rejectSel = "//div[contains(@class,'reject-banner')]"
	imagesSel = "//img[contains(@class,'result')]"
)

// fakeDriver подменяет страницу в проверках циклов ожидания: счетчики
// элементов, текст тела и атрибуты задаются напрямую.
type fakeDriver struct {
	mu      sync.Mutex
	counts  map[string]int
	body    string
	attrs   []string
	scrolls int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{counts: map[string]int{}}
}

func (d *fakeDriver) setCount(sel string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts[sel] = n
}

func (d *fakeDriver) scrollCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrolls
}

func (d *fakeDriver) Count(sel string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[sel], nil
}

func (d *fakeDriver) BodyText() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.body, nil
}

func (d *fakeDriver) ScrollWheel(int, float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scrolls++
	return nil
}

func (d *fakeDriver) CollectAttributes(string, string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attrs, nil
}

func (d *fakeDriver) Connect(string) error                        { return nil }
func (d *fakeDriver) Navigate(string) error                       { return nil }
func (d *fakeDriver) Reload() error                               { return nil }
func (d *fakeDriver) Title() (string, error)                      { return "", nil }
func (d *fakeDriver) URL() string                                 { return "" }
func (d *fakeDriver) Alive() bool                                 { return true }
func (d *fakeDriver) CloseStrayTabs(string) int                   { return 0 }
func (d *fakeDriver) WaitForLoad(string, time.Duration) error     { return nil }
func (d *fakeDriver) WaitForSelector(string, time.Duration) error { return nil }
func (d *fakeDriver) ElementTexts(string) ([]string, error)       { return nil, nil }
func (d *fakeDriver) Locator(string) playwright.Locator           { return nil }
func (d *fakeDriver) Page() playwright.Page                       { return nil }
func (d *fakeDriver) ScrollToTop() error                          { return nil }
func (d *fakeDriver) Close() error                                { return nil }
func (d *fakeDriver) Disconnect()                                 {}

// newTestOperator собирает оператора над фейковой страницей;
// queueSec и genSec задают таймауты ожидания (0 — значение по умолчанию).
func newTestOperator(t *testing.T, drv *fakeDriver, queueSec, genSec int) *Operator {
	t.Helper()

	yaml := fmt.Sprintf(`
urls:
  generate: https://dreamina.capcut.com/ai-tool/generate
elements:
  generation:
    queueing_indicator: "%s"
    generating_indicator: "%s"
    completion_container: "%s"
    prompt_rejected: "%s"
    result_images: "%s"
  markers:
    prompt_rejected:
      - "This prompt may violate"
    insufficient_points:
      - "Insufficient credits"
wait_times:
  queueing: %d
  generating: %d
`, queueSel, loadSel, doneSel, rejectSel, imagesSel, queueSec, genSec)

	reg, err := selectors.Parse([]byte(yaml))
	require.NoError(t, err)
	log, err := logger.New("dev", "error")
	require.NoError(t, err)

	human := humanize.New(time.Millisecond, 2*time.Millisecond)
	return New(drv, reg, human, NewDownloader(time.Second, log), log, "w1")
}

func TestWaitQueueReturnsWhenBadgeAbsent(t *testing.T) {
	drv := newFakeDriver()
	op := newTestOperator(t, drv, 1, 1)
	assert.NoError(t, op.waitQueue())
}

func TestWaitQueuePollsUntilBadgeGone(t *testing.T) {
	drv := newFakeDriver()
	drv.setCount(queueSel, 1)
	op := newTestOperator(t, drv, 0, 0) // дефолтные 10 секунд

	go func() {
		time.Sleep(300 * time.Millisecond)
		drv.setCount(queueSel, 0)
	}()
	assert.NoError(t, op.waitQueue())
}

func TestWaitQueueTimesOut(t *testing.T) {
	drv := newFakeDriver()
	drv.setCount(queueSel, 1)
	op := newTestOperator(t, drv, 1, 1)

	err := op.waitQueue()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "не вышло из очереди")
}

func TestWaitGenerationReturnsOnCompletionContainer(t *testing.T) {
	drv := newFakeDriver()
	drv.setCount(doneSel, 1)
	op := newTestOperator(t, drv, 1, 1)
	assert.NoError(t, op.waitGeneration())
}

func TestWaitGenerationPollsUntilDone(t *testing.T) {
	drv := newFakeDriver()
	drv.setCount(loadSel, 2)
	op := newTestOperator(t, drv, 0, 0)

	go func() {
		time.Sleep(300 * time.Millisecond)
		drv.setCount(doneSel, 1)
	}()
	require.NoError(t, op.waitGeneration())
	// во время ожидания лента прокручивалась
	assert.GreaterOrEqual(t, drv.scrollCount(), 1)
}

func TestWaitGenerationTimesOut(t *testing.T) {
	drv := newFakeDriver()
	drv.setCount(loadSel, 2)
	op := newTestOperator(t, drv, 1, 1)

	err := op.waitGeneration()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "не завершился")
}

func TestCheckRejection(t *testing.T) {
	cases := []struct {
		name   string
		banner int
		body   string
		want   error
	}{
		{"баннер отклонения", 1, "", ErrPromptRejected},
		{"маркер отклонения в тексте", 0, "Sorry. This prompt may violate our policy.", ErrPromptRejected},
		{"маркер нехватки кредитов", 0, "Insufficient credits, top up to continue", ErrInsufficientPoints},
		{"чистая страница", 0, "4 images are on the way", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			drv := newFakeDriver()
			drv.setCount(rejectSel, tc.banner)
			drv.body = tc.body
			op := newTestOperator(t, drv, 1, 1)

			err := op.checkRejection()
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestCollectImageURLsFiltersAndDedupes(t *testing.T) {
	drv := newFakeDriver()
	drv.attrs = []string{
		"https://cdn.example.com/a/tplv-one.jpeg",
		"https://cdn.example.com/a/tplv-one.jpeg", // дубликат
		"https://cdn.example.com/avatar.png",      // не результат
		"data:image/png;base64,AAAA",
		"https://cdn.example.com/a/tplv-two.jpeg",
		"https://cdn.example.com/a/tplv-three.jpeg",
		"https://cdn.example.com/a/tplv-four.jpeg",
		"https://cdn.example.com/a/tplv-five.jpeg",
	}
	op := newTestOperator(t, drv, 1, 1)

	urls, err := op.collectImageURLs()
	require.NoError(t, err)
	require.Len(t, urls, expectedImages)
	assert.Equal(t, "https://cdn.example.com/a/tplv-one.jpeg", urls[0])
	assert.Equal(t, "https://cdn.example.com/a/tplv-four.jpeg", urls[3])
}

func TestCollectImageURLsEmpty(t *testing.T) {
	drv := newFakeDriver()
	drv.attrs = []string{"https://cdn.example.com/avatar.png"}
	op := newTestOperator(t, drv, 1, 1)

	_, err := op.collectImageURLs()
	assert.Error(t, err)
}
