package windows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genAgent/internal/config"
	"genAgent/internal/logger"
	"genAgent/internal/tasks"
)

func TestManagerDrainsQueue(t *testing.T) {
	queue := tasks.NewQueue(20)
	for i := 0; i < 6; i++ {
		queue.Push(tasks.NewTask("промпт", "s", "s.csv", i+2, "s", t.TempDir()))
	}

	log, err := logger.New("dev", "error")
	require.NoError(t, err)

	makeWindow := func(id string) *Window {
		sess := &fakeSession{
			page:     &fakePage{text: "积分: 100"},
			generate: func(*tasks.Task) ([]string, error) { return []string{"a.jpg"}, nil },
		}
		return NewWindow(id, id, sess, queue, nil, nil, nil, testWindowConfig(), config.Points{}, log)
	}

	m := NewManager([]*Window{makeWindow("w1"), makeWindow("w2")}, queue, testWindowConfig(), log)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	stats, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Completed)
	assert.Equal(t, 0, stats.Pending)
}

func TestCensusCountsWindowWithTaskInHand(t *testing.T) {
	queue := tasks.NewQueue(5)
	log, err := logger.New("dev", "error")
	require.NoError(t, err)

	w := NewWindow("w1", "w1", &fakeSession{page: &fakePage{}}, queue, nil, nil, nil,
		testWindowConfig(), config.Points{}, log)
	m := NewManager([]*Window{w}, queue, testWindowConfig(), log)

	// окно уже забрало задание, но статус working еще не выставлен
	w.setStatus(StatusIdle)
	w.mu.Lock()
	w.inFlight = true
	w.mu.Unlock()

	alive, busy := m.census()
	assert.Equal(t, 1, alive)
	assert.Equal(t, 1, busy)

	w.mu.Lock()
	w.inFlight = false
	w.mu.Unlock()

	_, busy = m.census()
	assert.Equal(t, 0, busy)
}

func TestManagerFailsWhenAllWindowsDead(t *testing.T) {
	queue := tasks.NewQueue(5)
	queue.Push(tasks.NewTask("промпт", "s", "s.csv", 2, "s", t.TempDir()))

	log, err := logger.New("dev", "error")
	require.NoError(t, err)

	sess := &fakeSession{
		page: &fakePage{},
		openErrs: []error{
			errors.New("connection refused"),
			errors.New("connection refused"),
			errors.New("connection refused"),
		},
	}
	w := NewWindow("w1", "w1", sess, queue, nil, nil, nil, testWindowConfig(), config.Points{}, log)
	m := NewManager([]*Window{w}, queue, testWindowConfig(), log)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err = m.Run(ctx)
	assert.Error(t, err)
}

func TestManagerWithoutWindows(t *testing.T) {
	log, err := logger.New("dev", "error")
	require.NoError(t, err)

	m := NewManager(nil, tasks.NewQueue(1), testWindowConfig(), log)
	_, err = m.Run(context.Background())
	assert.Error(t, err)
}

func TestManagerSnapshotsAndLookup(t *testing.T) {
	log, err := logger.New("dev", "error")
	require.NoError(t, err)

	queue := tasks.NewQueue(1)
	w1 := NewWindow("w1", "w1", &fakeSession{page: &fakePage{}}, queue, nil, nil, nil, testWindowConfig(), config.Points{}, log)
	w2 := NewWindow("w2", "w2", &fakeSession{page: &fakePage{}}, queue, nil, nil, nil, testWindowConfig(), config.Points{}, log)
	m := NewManager([]*Window{w1, w2}, queue, testWindowConfig(), log)

	snaps := m.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "w1", snaps[0].ID)
	assert.Equal(t, StatusStopped, snaps[0].Status)

	assert.Same(t, w2, m.Window("w2"))
	assert.Nil(t, m.Window("нет такого"))
}
