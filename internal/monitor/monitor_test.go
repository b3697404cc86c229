package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Softhook/elite-sub000/internal/config"
	"github.com/Softhook/elite-sub000/internal/dispatcher"
	"github.com/Softhook/elite-sub000/internal/logging"
	"github.com/Softhook/elite-sub000/internal/session"
	"github.com/Softhook/elite-sub000/internal/storage/memory"
	"github.com/Softhook/elite-sub000/internal/stream"
	"github.com/Softhook/elite-sub000/internal/worker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_StreamOnly(t *testing.T) {
	s := NewService(Dependencies{})
	s.Update(stream.Stats{Tick: 12, Descriptors: 30, Active: 4, Destroyed: 1, Activations: 6, Deactivations: 2, Destructions: 1})

	st := s.Status()
	assert.Equal(t, uint64(12), st.Tick)
	assert.Equal(t, 30, st.Descriptors)
	assert.Equal(t, 4, st.Active)
	assert.Equal(t, 1, st.Destroyed)
	assert.Equal(t, uint64(6), st.Activations)
	assert.Nil(t, st.Queues)
	assert.Zero(t, st.Recorded)
	assert.Empty(t, st.Session)
}

func TestStatus_WithRecording(t *testing.T) {
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer d.Close()

	sc := session.NewContext()
	wm := worker.NewManager(worker.Dependencies{SessionContext: sc}, memory.New(config.MemoryConfig{}))
	wm.RegisterHandlers(d)
	sess := session.New("monitor", 3, "test", time.Now())
	sc.Set(sess, nil)

	s := NewService(Dependencies{SessionContext: sc, Dispatcher: d, WorkerManager: wm})
	st := s.Status()
	assert.Equal(t, sess.UUID, st.Session)
	require.Len(t, st.Queues, 4)
	assert.Zero(t, st.Queues["activated"])
	assert.Equal(t, map[string]uint64{"tick": 0}, st.Dropped)
	assert.Zero(t, st.LastWriteMs)
}

func TestJSON(t *testing.T) {
	s := NewService(Dependencies{})
	s.Update(stream.Stats{Tick: 3, Active: 2})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(s.JSON()), &decoded))
	assert.EqualValues(t, 3, decoded["tick"])
	assert.EqualValues(t, 2, decoded["active"])
	assert.NotContains(t, decoded, "queues")
}

func TestStartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	s := NewService(Dependencies{StatusFile: path, Interval: 5 * time.Millisecond})
	s.Update(stream.Stats{Tick: 77})

	require.NoError(t, s.Start())
	// second Start is a no-op
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tick": 77`)
}
