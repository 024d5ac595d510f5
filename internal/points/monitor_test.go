package points

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePage struct {
	texts map[string][]string
	body  string
	err   error

	elementCalls int
	bodyCalls    int
}

func (f *fakePage) ElementTexts(selector string) ([]string, error) {
	f.elementCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.texts[selector], nil
}

func (f *fakePage) BodyText() (string, error) {
	f.bodyCalls++
	if f.err != nil {
		return "", f.err
	}
	return f.body, nil
}

func TestParseBalance(t *testing.T) {
	cases := []struct {
		text string
		want int
		ok   bool
	}{
		{"126", 126, true},
		{" 42 ", 42, true},
		{"积分: 88", 88, true},
		{"剩余积分：12", 12, true},
		{"余额: 0", 0, true},
		{"Points: 300", 300, true},
		{"balance: 64", 64, true},
		{"120 积分", 120, true},
		{"5 points", 5, true},
		{"99999", 0, false}, // за пределами правдоподобия
		{"", 0, false},
		{"сегодня хорошая погода", 0, false},
	}

	for _, c := range cases {
		got, ok := ParseBalance(c.text)
		assert.Equal(t, c.ok, ok, "text=%q", c.text)
		if c.ok {
			assert.Equal(t, c.want, got, "text=%q", c.text)
		}
	}
}

func TestCheckPrefersConfiguredSelectors(t *testing.T) {
	page := &fakePage{
		texts: map[string][]string{
			"//span[@class='credit']": {"мусор", "126 积分"},
		},
		body: "balance: 7",
	}
	m := NewMonitor([]string{"//span[@class='credit']"}, time.Minute)

	balance, err := m.Check(page)
	require.NoError(t, err)
	assert.Equal(t, 126, balance)
	assert.Zero(t, page.bodyCalls)
}

func TestCheckFallsBackToBodyText(t *testing.T) {
	page := &fakePage{body: "У вас осталось 48 积分 на сегодня"}
	m := NewMonitor([]string{"//span[@class='credit']"}, time.Minute)

	balance, err := m.Check(page)
	require.NoError(t, err)
	assert.Equal(t, 48, balance)
}

func TestCheckInsufficientMarkerMeansZero(t *testing.T) {
	page := &fakePage{body: "операция невозможна: 积分不足"}
	m := NewMonitor(nil, time.Minute)

	balance, err := m.Check(page)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestCheckNothingFound(t *testing.T) {
	page := &fakePage{body: "просто страница без цифр"}
	m := NewMonitor(nil, time.Minute)

	_, err := m.Check(page)
	assert.Error(t, err)
}

func TestCacheWithinTTL(t *testing.T) {
	page := &fakePage{body: "积分: 30"}
	m := NewMonitor(nil, time.Minute)

	first, err := m.CheckCached("окно1", page)
	require.NoError(t, err)
	assert.Equal(t, 30, first)

	// Второе чтение обслуживается кэшем, страница не трогается
	page.body = "积分: 10"
	second, err := m.CheckCached("окно1", page)
	require.NoError(t, err)
	assert.Equal(t, 30, second)
	assert.Equal(t, 1, page.bodyCalls)
}

func TestCacheExpiryAndForget(t *testing.T) {
	page := &fakePage{body: "积分: 30"}
	m := NewMonitor(nil, 10*time.Millisecond)

	_, err := m.CheckCached("окно1", page)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_, ok := m.Cached("окно1")
	assert.False(t, ok)

	m.Remember("окно2", 55)
	m.Forget("окно2")
	_, ok = m.Cached("окно2")
	assert.False(t, ok)
}

func TestGateAllow(t *testing.T) {
	m := NewMonitor(nil, time.Minute)
	g := NewGate(m, 4)

	m.Remember("окно1", 10)
	ok, balance, err := g.Allow("окно1", &fakePage{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10, balance)

	m.Remember("окно1", 3)
	ok, balance, err = g.Allow("окно1", &fakePage{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, balance)
}

func TestGateAllowsOnScrapeError(t *testing.T) {
	m := NewMonitor(nil, time.Minute)
	g := NewGate(m, 4)

	ok, balance, err := g.Allow("окно1", &fakePage{err: errors.New("страница закрыта")})
	assert.Error(t, err)
	assert.True(t, ok)
	assert.Equal(t, -1, balance)
}

func TestEstimateRemaining(t *testing.T) {
	assert.Equal(t, 5, EstimateRemaining(10, 2))
	assert.Equal(t, 0, EstimateRemaining(1, 2))
	assert.Equal(t, 0, EstimateRemaining(10, 0))
	assert.Equal(t, 0, EstimateRemaining(-5, 2))
}
