package toolchain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/snapmatrix/internal/testutil"
	"github.com/leapstack-labs/snapmatrix/pkg/core"
)

// fakeInstaller records installs and can be made slow or failing.
type fakeInstaller struct {
	mu        sync.Mutex
	installed map[string]bool
	installs  map[string]int
	delay     time.Duration
	err       error
}

func newFakeInstaller(installed ...string) *fakeInstaller {
	f := &fakeInstaller{installed: make(map[string]bool), installs: make(map[string]int)}
	for _, v := range installed {
		f.installed[v] = true
	}
	return f
}

func (f *fakeInstaller) IsInstalled(version string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installed[version], nil
}

func (f *fakeInstaller) Install(_ context.Context, version string) error {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installs[version]++
	if f.err != nil {
		return f.err
	}
	f.installed[version] = true
	return nil
}

func (f *fakeInstaller) BinaryPath(version string) string {
	return "/opt/solc/solc-" + version
}

func (f *fakeInstaller) count(version string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installs[version]
}

func TestManager_EnsureInstalled(t *testing.T) {
	inst := newFakeInstaller("0.7.6")
	m := NewManager(inst, testutil.NewTestLogger(t))

	h, err := m.Ensure(context.Background(), "0.7.6")
	require.NoError(t, err)

	assert.Equal(t, "0.7.6", h.Version)
	assert.Equal(t, "/opt/solc/solc-0.7.6", h.Binary)
	assert.Equal(t, 0, inst.count("0.7.6"))
	assert.Equal(t, int64(0), m.Installs())
}

func TestManager_EnsureInstallsMissing(t *testing.T) {
	inst := newFakeInstaller()
	m := NewManager(inst, testutil.NewTestLogger(t))

	_, err := m.Ensure(context.Background(), "0.4.25")
	require.NoError(t, err)
	_, err = m.Ensure(context.Background(), "0.4.25")
	require.NoError(t, err)

	assert.Equal(t, 1, inst.count("0.4.25"))
}

func TestManager_ConcurrentEnsureInstallsOnce(t *testing.T) {
	inst := newFakeInstaller()
	inst.delay = 20 * time.Millisecond
	m := NewManager(inst, testutil.NewTestLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Ensure(context.Background(), "0.5.16")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inst.count("0.5.16"))
}

func TestManager_InstallFailure(t *testing.T) {
	inst := newFakeInstaller()
	inst.err = errors.New("network unreachable")
	m := NewManager(inst, testutil.NewTestLogger(t))

	_, err := m.Ensure(context.Background(), "0.6.11")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrToolchainInstall)
	assert.Contains(t, err.Error(), "network unreachable")
}

func TestManager_InvalidVersion(t *testing.T) {
	m := NewManager(newFakeInstaller(), nil)

	_, err := m.Ensure(context.Background(), "latest")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrToolchainInstall)
}

func TestManager_Installed(t *testing.T) {
	m := NewManager(newFakeInstaller("0.4.25"), nil)

	statuses, err := m.Installed([]string{"0.4.25", "0.8.20"})
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Installed)
	assert.False(t, statuses[1].Installed)
	assert.Equal(t, "/opt/solc/solc-0.8.20", statuses[1].Binary)
}

func TestHandle_Env(t *testing.T) {
	h := &Handle{Version: "0.7.6"}
	base := []string{"PATH=/usr/bin", "SOLC_VERSION=0.4.25", "HOME=/root"}

	env := h.Env(base)

	assert.Equal(t, []string{"PATH=/usr/bin", "HOME=/root", "SOLC_VERSION=0.7.6"}, env)
	assert.Equal(t, "SOLC_VERSION=0.4.25", base[1], "base must not be modified")
}

func TestHandle_EnvIsolatedPerHandle(t *testing.T) {
	a := (&Handle{Version: "0.4.25"}).Env(nil)
	b := (&Handle{Version: "0.8.20"}).Env(nil)

	assert.Equal(t, []string{"SOLC_VERSION=0.4.25"}, a)
	assert.Equal(t, []string{"SOLC_VERSION=0.8.20"}, b)
}
