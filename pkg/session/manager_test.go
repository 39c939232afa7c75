package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forgeline/sitesmith/pkg/registry"
	"github.com/forgeline/sitesmith/pkg/types"
)

func newTestManager(t *testing.T, opts ManagerOptions) *Manager {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return NewManager(testRegistry(t), opts)
}

func activate(t *testing.T, tr *Transport) {
	t.Helper()
	resp := decode(t, tr.HandleRequest(context.Background(), request(t, types.MethodInitialize, nil)))
	require.Nil(t, resp.Error)
}

func TestManager_ResolveEmptyCreates(t *testing.T) {
	m := newTestManager(t, ManagerOptions{})

	t1, err := m.Resolve("")
	require.NoError(t, err)
	t2, err := m.Resolve("")
	require.NoError(t, err)

	assert.NotEqual(t, t1.ID(), t2.ID())
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, StatePending, t1.State())
}

func TestManager_ResolveActiveReturnsSameTransport(t *testing.T) {
	m := newTestManager(t, ManagerOptions{})

	created, err := m.Resolve("")
	require.NoError(t, err)
	activate(t, created)

	for i := 0; i < 5; i++ {
		got, err := m.Resolve(created.ID())
		require.NoError(t, err)
		assert.Same(t, created, got)
	}
}

func TestManager_ResolveUnknownFails(t *testing.T) {
	m := newTestManager(t, ManagerOptions{})

	_, err := m.Resolve("never-issued")
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.CodeUnknownSession))
}

func TestManager_ResolvePendingIsNotReusable(t *testing.T) {
	m := newTestManager(t, ManagerOptions{})

	created, err := m.Resolve("")
	require.NoError(t, err)

	// The id is only handed to clients after initialization; a pending
	// session cannot be resumed by id.
	_, err = m.Resolve(created.ID())
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.CodeUnknownSession))
}

func TestManager_SessionsNeverResurrect(t *testing.T) {
	m := newTestManager(t, ManagerOptions{})

	created, err := m.Resolve("")
	require.NoError(t, err)
	activate(t, created)
	id := created.ID()

	m.Close(id)
	require.NoError(t, created.Handle().AwaitClosed(context.Background()))
	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)

	_, err = m.Resolve(id)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.CodeUnknownSession))
}

func TestManager_CloseUnknownIsNoOp(t *testing.T) {
	m := newTestManager(t, ManagerOptions{})
	m.Close("never-existed") // must not panic or error
	assert.Equal(t, 0, m.Len())
}

func TestManager_ConcurrentCreatesAreUnique(t *testing.T) {
	m := newTestManager(t, ManagerOptions{})

	const n = 50
	var mu sync.Mutex
	ids := make(map[string]bool, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr, err := m.Resolve("")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[tr.ID()] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, n, "generated ids must be unique")
	assert.Equal(t, n, m.Len(), "no table entries lost")
}

// A close racing an in-flight request must let the request finish and
// deliver its response before the table entry disappears.
func TestManager_EvictionWaitsForInFlightRequest(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	reg := registry.New()
	require.NoError(t, reg.Register(registry.Tool{
		Name: "slow",
		Handler: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
			close(entered)
			<-release
			return map[string]interface{}{"done": true}, nil
		},
	}))
	m := NewManager(reg, ManagerOptions{Logger: zap.NewNop()})

	tr, err := m.Resolve("")
	require.NoError(t, err)
	activate(t, tr)

	responses := make(chan *types.Response, 1)
	go func() {
		responses <- decode(t, tr.HandleRequest(context.Background(), request(t, types.MethodCallTool, types.CallToolRequest{
			Name: "slow",
		})))
	}()
	<-entered

	m.Close(tr.ID())
	require.NoError(t, tr.Handle().AwaitClosed(context.Background()))

	// Entry must still be present while the handler runs.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, m.Len(), "eviction must wait for the in-flight call")

	close(release)
	resp := <-responses
	require.Nil(t, resp.Error, "in-flight response must still be delivered")

	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestManager_MaxSessions(t *testing.T) {
	m := newTestManager(t, ManagerOptions{MaxSessions: 2})

	_, err := m.Resolve("")
	require.NoError(t, err)
	_, err = m.Resolve("")
	require.NoError(t, err)

	_, err = m.Resolve("")
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.CodeSessionLimit))
}

func TestManager_CloseAll(t *testing.T) {
	m := newTestManager(t, ManagerOptions{})

	for i := 0; i < 3; i++ {
		tr, err := m.Resolve("")
		require.NoError(t, err)
		activate(t, tr)
	}
	require.Equal(t, 3, m.Len())

	m.CloseAll()
	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestManager_IdleSweep(t *testing.T) {
	m := newTestManager(t, ManagerOptions{IdleTTL: 30 * time.Millisecond})

	tr, err := m.Resolve("")
	require.NoError(t, err)
	activate(t, tr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	require.Eventually(t, func() bool { return m.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateClosed, tr.State())
}
