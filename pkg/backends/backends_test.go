package backends

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unipkg/internal/config"
	"unipkg/internal/executor"
	"unipkg/pkg/manager"
)

type recordingRunner struct {
	cmds []executor.Command
}

func (r *recordingRunner) Run(ctx context.Context, c executor.Command) (*executor.Outcome, error) {
	r.cmds = append(r.cmds, c)
	return &executor.Outcome{}, nil
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"apt", "dnf", "pacman", "paru", "yay"}, Names())
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New("zypper", nil, Options{})
	assert.ErrorIs(t, err, manager.ErrInvalidRequest)
}

func TestNewAppliesManagerConfig(t *testing.T) {
	noSudo := false
	cfg := config.Default()
	cfg.General.Timeout = config.Duration{Duration: 30 * time.Second}
	cfg.Managers["paru"] = config.ManagerConfig{
		Binary:             "/opt/bin/paru",
		Sudo:               &noSudo,
		DisabledOperations: []string{"upgrade"},
	}
	r := &recordingRunner{}

	b, err := New("paru", cfg, Options{Runner: r})
	require.NoError(t, err)

	assert.Equal(t, "/opt/bin/paru", b.Binary())
	assert.False(t, b.NeedsSudo())
	assert.False(t, b.Supports(manager.OpUpdate))
	assert.True(t, b.Supports(manager.OpInstall))

	_, err = b.Update(context.Background(), manager.Packages("foo"), manager.Options{})
	assert.ErrorIs(t, err, manager.ErrUnsupportedOperation)
	assert.Empty(t, r.cmds)

	_, err = b.Query(context.Background(), nil, manager.Options{})
	require.NoError(t, err)
	require.Len(t, r.cmds, 1)
	assert.Equal(t, "/opt/bin/paru", r.cmds[0].Name)
	assert.Equal(t, 30*time.Second, r.cmds[0].Timeout)
}

func TestNewRejectsUnknownDisabledOperation(t *testing.T) {
	cfg := config.Default()
	cfg.Managers["apt"] = config.ManagerConfig{DisabledOperations: []string{"purge"}}

	_, err := New("apt", cfg, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "managers.apt.disabled_operations")
}

func TestNewRegistry(t *testing.T) {
	registry, err := NewRegistry(nil, Options{Runner: &recordingRunner{}})
	require.NoError(t, err)

	registry.SetLookPath(func(bin string) (string, error) {
		if bin == "pacman" || bin == "yay" {
			return "/usr/bin/" + bin, nil
		}
		return "", assert.AnError
	})

	mgr, err := registry.Create(nil)
	require.NoError(t, err)
	assert.Equal(t, "pacman", mgr.Name())

	mgr, err = registry.Create([]string{"aur"})
	require.NoError(t, err)
	assert.Equal(t, "yay", mgr.Name())
	assert.Equal(t, manager.TypeAUR, mgr.Type())

	_, err = registry.Create([]string{"apt", "dnf"})
	assert.ErrorIs(t, err, manager.ErrBackendNotFound)
}
