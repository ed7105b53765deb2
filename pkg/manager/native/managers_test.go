package native

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unipkg/pkg/manager"
)

var yes = manager.Options{AssumeYes: true, NoConfirm: true}

// TestManagerInterface verifies all managers implement the Manager interface
func TestManagerInterface(t *testing.T) {
	managers := []manager.Manager{
		NewAPT(),
		NewDNF(),
		NewPacman(),
	}

	for _, mgr := range managers {
		t.Run(mgr.Name(), func(t *testing.T) {
			assert.NotEmpty(t, mgr.Name())
			assert.NotEmpty(t, mgr.DisplayName())
			assert.NotEmpty(t, mgr.Binary())
			assert.Equal(t, manager.TypeNative, mgr.Type())
			assert.True(t, mgr.NeedsSudo())
			for _, op := range manager.AllOperations {
				assert.True(t, mgr.Supports(op), "%s should support %s by default", mgr.Name(), op)
			}
			_ = mgr.IsAvailable()
		})
	}
}

func newTestPacman(r *fakeRunner) *Pacman {
	p := NewPacman()
	p.SetRunner(r)
	return p
}

func TestPacmanInstallMixedBatch(t *testing.T) {
	r := newFakeRunner().
		on("pacman -Q git doesnotexist123", reply{exit: 1, lines: []executorLine{
			out("git 2.43.0-1"),
			errl("error: package 'doesnotexist123' was not found"),
		}}).
		on("pacman -S ", reply{exit: 1, lines: []executorLine{
			errl("error: target not found: doesnotexist123"),
		}})

	res, err := newTestPacman(r).Install(context.Background(), manager.Packages("git", "doesnotexist123"), yes)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "pacman", res.Backend)
	assert.Equal(t, 1, res.ExitCode)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, manager.PackageOutcome{Name: "git", Status: manager.StatusAlreadyPresent, Version: "2.43.0-1"}, res.Outcomes[0])
	assert.Equal(t, "doesnotexist123", res.Outcomes[1].Name)
	assert.Equal(t, manager.StatusNotFound, res.Outcomes[1].Status)

	cmds := r.commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "pacman -S --needed --noconfirm doesnotexist123", cmds[1])
}

func TestPacmanInstallAbortedTransactionSkipsOthers(t *testing.T) {
	r := newFakeRunner().
		on("pacman -Q", reply{exit: 1}).
		on("pacman -S ", reply{exit: 1, lines: []executorLine{
			errl("error: target not found: bogus"),
		}})

	res, err := newTestPacman(r).Install(context.Background(), manager.Packages("git", "bogus"), yes)
	require.NoError(t, err)

	git, _ := res.Outcome("git")
	bogus, _ := res.Outcome("bogus")
	assert.Equal(t, manager.StatusSkipped, git.Status)
	assert.Equal(t, msgAborted, git.Message)
	assert.Equal(t, manager.StatusNotFound, bogus.Status)
	assert.False(t, res.Success)
}

func TestPacmanInstallConstrainedTargetNotFound(t *testing.T) {
	r := newFakeRunner().
		on("pacman -Q", reply{exit: 1, lines: []executorLine{
			errl("error: package 'git' was not found"),
		}}).
		on("pacman -S ", reply{exit: 1, lines: []executorLine{
			errl("error: target not found: git>=9.0"),
		}})

	specs, err := manager.ParsePackageSpecs([]string{"git>=9.0"})
	require.NoError(t, err)

	res, err := newTestPacman(r).Install(context.Background(), specs, yes)
	require.NoError(t, err)

	git, ok := res.Outcome("git")
	require.True(t, ok)
	assert.Equal(t, manager.StatusNotFound, git.Status)
	cmds := r.commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "pacman -S --needed --noconfirm git>=9.0", cmds[1])
}

func TestPacmanInstallMarkers(t *testing.T) {
	r := newFakeRunner().
		on("pacman -Q", reply{exit: 1}).
		on("pacman -S ", reply{lines: []executorLine{
			out("resolving dependencies..."),
			out("looking for conflicting packages..."),
			out(":: Processing package changes..."),
			out("(1/2) installing perl-error                         [######] 100%"),
			out("(2/2) installing git                                [######] 100%"),
		}})

	res, err := newTestPacman(r).Install(context.Background(), manager.Packages("git"), yes)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, manager.StatusInstalled, res.Outcomes[0].Status)
}

func TestPacmanInstallPostCheck(t *testing.T) {
	r := newFakeRunner().
		on("pacman -Q", reply{exit: 1}, reply{lines: []executorLine{out("ripgrep 14.1.0-1")}}).
		on("pacman -S ", reply{})

	res, err := newTestPacman(r).Install(context.Background(), manager.Packages("ripgrep"), yes)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, manager.PackageOutcome{Name: "ripgrep", Status: manager.StatusInstalled, Version: "14.1.0-1"}, res.Outcomes[0])
}

func TestPacmanUndeterminedOutcome(t *testing.T) {
	r := newFakeRunner().
		on("pacman -Q", reply{exit: 1}).
		on("pacman -S ", reply{lines: []executorLine{out("something unexpected")}})

	res, err := newTestPacman(r).Install(context.Background(), manager.Packages("htop"), yes)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, manager.StatusFailed, res.Outcomes[0].Status)
	assert.Equal(t, msgUndetermined, res.Outcomes[0].Message)
}

func TestPacmanPermissionDenied(t *testing.T) {
	r := newFakeRunner().
		on("pacman -Q", reply{exit: 1}).
		on("pacman -S ", reply{exit: 1, lines: []executorLine{
			errl("error: you cannot perform this operation unless you are root."),
		}})

	res, err := newTestPacman(r).Install(context.Background(), manager.Packages("git", "vim"), yes)
	require.NoError(t, err)
	for _, o := range res.Outcomes {
		assert.Equal(t, manager.StatusPermissionDenied, o.Status, o.Name)
	}
}

func TestPacmanDatabaseLocked(t *testing.T) {
	r := newFakeRunner().
		on("pacman -Q", reply{exit: 1}).
		on("pacman -S ", reply{exit: 1, lines: []executorLine{
			errl("error: failed to init transaction (unable to lock database)"),
			errl("error: could not lock database: File exists"),
		}})

	res, err := newTestPacman(r).Install(context.Background(), manager.Packages("git"), yes)
	require.NoError(t, err)
	assert.Equal(t, manager.StatusFailed, res.Outcomes[0].Status)
	assert.Contains(t, res.Outcomes[0].Message, "locked")
}

func TestPacmanConcurrentCallsOneHitsLock(t *testing.T) {
	r := newFakeRunner().
		on("pacman -Q", reply{exit: 1}, reply{exit: 1}, reply{lines: []executorLine{out("git 2.43.0-1")}}).
		on("pacman -S ",
			reply{lines: []executorLine{out("(1/1) installing git")}},
			reply{exit: 1, lines: []executorLine{errl("error: failed to init transaction (unable to lock database)")}},
		)
	p := newTestPacman(r)

	var wg sync.WaitGroup
	results := make([]*manager.OperationResult, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Install(context.Background(), manager.Packages("git"), yes)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i, res := range results {
		require.NoError(t, errs[i])
		require.NotNil(t, res)
		if res.Success {
			succeeded++
			continue
		}
		assert.Equal(t, manager.StatusFailed, res.Outcomes[0].Status)
		assert.Contains(t, res.Outcomes[0].Message, "locked")
	}
	assert.Equal(t, 1, succeeded)
}

func TestPacmanDependencyConflict(t *testing.T) {
	r := newFakeRunner().
		on("pacman -Q", reply{exit: 1}).
		on("pacman -S ", reply{exit: 1, lines: []executorLine{
			out("resolving dependencies..."),
			out("looking for conflicting packages..."),
			errl("error: failed to prepare transaction (could not satisfy dependencies)"),
			errl(":: installing gst-plugins-base-libs (1.26.10-3) breaks dependency 'gst-plugins-base-libs=1.26.10-1' required by gst-plugins-bad-libs"),
		}})

	res, err := newTestPacman(r).Install(context.Background(), manager.Packages("gst-plugins-base-libs", "htop"), yes)
	require.NoError(t, err)

	gst, _ := res.Outcome("gst-plugins-base-libs")
	htop, _ := res.Outcome("htop")
	assert.Equal(t, manager.StatusFailed, gst.Status)
	assert.Contains(t, gst.Message, "dependency conflict")
	assert.Equal(t, manager.StatusSkipped, htop.Status)
}

func TestPacmanRemove(t *testing.T) {
	r := newFakeRunner().
		on("pacman -Q git nano", reply{exit: 1, lines: []executorLine{
			out("git 2.43.0-1"),
			errl("error: package 'nano' was not found"),
		}}).
		on("pacman -R ", reply{lines: []executorLine{
			out("checking dependencies..."),
			out("(1/1) removing git                                  [######] 100%"),
		}})

	res, err := newTestPacman(r).Remove(context.Background(), manager.Packages("git", "nano"), yes)
	require.NoError(t, err)

	git, _ := res.Outcome("git")
	nano, _ := res.Outcome("nano")
	assert.Equal(t, manager.StatusRemoved, git.Status)
	assert.Equal(t, manager.StatusNotFound, nano.Status)
	assert.Equal(t, "pacman -R --noconfirm git", r.commands()[1])
}

func TestPacmanUpdateNotInstalledSkipsSubprocess(t *testing.T) {
	r := newFakeRunner().on("pacman -Q", reply{exit: 1})

	res, err := newTestPacman(r).Update(context.Background(), manager.Packages("neovim"), yes)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, manager.StatusNotFound, res.Outcomes[0].Status)
	assert.Equal(t, 1, r.count())
}

func TestPacmanUpdateUpToDate(t *testing.T) {
	r := newFakeRunner().
		on("pacman -Q", reply{lines: []executorLine{out("git 2.43.0-1")}}).
		on("pacman -S ", reply{lines: []executorLine{
			errl("warning: git-2.43.0-1 is up to date -- skipping"),
			out(" there is nothing to do"),
		}})

	res, err := newTestPacman(r).Update(context.Background(), manager.Packages("git"), yes)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, manager.PackageOutcome{
		Name:    "git",
		Status:  manager.StatusAlreadyPresent,
		Version: "2.43.0-1",
		Message: "warning: git-2.43.0-1 is up to date -- skipping",
	}, res.Outcomes[0])
	assert.Equal(t, []string{"pacman -Q git", "pacman -S --needed --noconfirm git"}, r.commands())
}

func TestUnsupportedOperationFailsFast(t *testing.T) {
	r := newFakeRunner()
	p := newTestPacman(r)
	p.SetSupported(manager.NewOperationSet(manager.AllOperations...).Without(manager.OpUpdate))

	res, err := p.Update(context.Background(), manager.Packages("git"), yes)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, manager.ErrUnsupportedOperation))

	var unsupported *manager.UnsupportedOperationError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "pacman", unsupported.Backend)
	assert.Equal(t, manager.OpUpdate, unsupported.Operation)
	assert.Zero(t, r.count())
}

func TestTimeoutYieldsNoResult(t *testing.T) {
	timeout := &manager.TimeoutError{Command: "pacman -S git", Timeout: time.Second, Elapsed: time.Second}
	r := newFakeRunner().
		on("pacman -Q", reply{exit: 1}).
		on("pacman -S ", reply{err: timeout})

	res, err := newTestPacman(r).Install(context.Background(), manager.Packages("git"), yes)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, manager.ErrTimeout)
}

func TestCommandExecutionErrorPropagates(t *testing.T) {
	r := newFakeRunner().on("pacman -Q", reply{err: &manager.CommandExecutionError{Command: "pacman -Q", Err: errors.New("not found")}})

	res, err := newTestPacman(r).Query(context.Background(), manager.Packages("git"), yes)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, manager.ErrCommandExecution)
}

func TestSignaledProcessIsBackendError(t *testing.T) {
	r := newFakeRunner().
		on("pacman -Q", reply{exit: 1}).
		on("pacman -S ", reply{exit: -1, signaled: true})

	res, err := newTestPacman(r).Install(context.Background(), manager.Packages("git"), yes)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, manager.ErrBackendFailure)
}

func TestInvalidRequests(t *testing.T) {
	p := newTestPacman(newFakeRunner())
	ctx := context.Background()

	_, err := p.Install(ctx, nil, yes)
	assert.ErrorIs(t, err, manager.ErrInvalidRequest)

	_, err = p.Remove(ctx, manager.Packages("git", "git"), yes)
	assert.ErrorIs(t, err, manager.ErrInvalidRequest)
}

func TestPacmanQuery(t *testing.T) {
	r := newFakeRunner().
		on("pacman -Q git vim", reply{exit: 1, lines: []executorLine{
			out("git 2.43.0-1"),
			errl("error: package 'vim' was not found"),
		}})

	res, err := newTestPacman(r).Query(context.Background(), manager.Packages("git", "vim"), manager.Options{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, manager.PackageOutcome{Name: "git", Status: manager.StatusInstalled, Version: "2.43.0-1"}, res.Outcomes[0])
	assert.Equal(t, manager.StatusNotFound, res.Outcomes[1].Status)

	for _, c := range r.calls {
		assert.False(t, c.Sudo, "queries never escalate")
	}
}

func TestPacmanQueryAll(t *testing.T) {
	r := newFakeRunner().on("pacman -Q", reply{lines: []executorLine{
		out("zlib 1:1.3.1-1"),
		out("bash 5.2.026-2"),
	}})

	res, err := newTestPacman(r).Query(context.Background(), nil, manager.Options{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "bash", res.Outcomes[0].Name)
	assert.Equal(t, "zlib", res.Outcomes[1].Name)
	assert.Equal(t, "1:1.3.1-1", res.Outcomes[1].Version)
}

func TestPacmanQueryConstraint(t *testing.T) {
	r := newFakeRunner().on("pacman -Q", reply{lines: []executorLine{out("git 2.43.0-1")}})
	p := newTestPacman(r)

	newer, err := manager.ParsePackageSpecs([]string{"git>=3.0"})
	require.NoError(t, err)
	res, err := p.Query(context.Background(), newer, manager.Options{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, manager.StatusFailed, res.Outcomes[0].Status)
	assert.Contains(t, res.Outcomes[0].Message, "does not satisfy >=3.0")

	older, err := manager.ParsePackageSpecs([]string{"git>=2.40"})
	require.NoError(t, err)
	res, err = p.Query(context.Background(), older, manager.Options{})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestIsInstalled(t *testing.T) {
	r := newFakeRunner().
		on("pacman -Q git", reply{lines: []executorLine{out("git 2.43.0-1")}}).
		on("pacman -Q vim", reply{exit: 1, lines: []executorLine{errl("error: package 'vim' was not found")}})
	p := newTestPacman(r)

	ok, err := p.IsInstalled(context.Background(), "git")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.IsInstalled(context.Background(), "vim")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsInstalledRejectsInvalidName(t *testing.T) {
	r := newFakeRunner()
	p := newTestPacman(r)

	for _, name := range []string{"-Syu", "", "git vim"} {
		ok, err := p.IsInstalled(context.Background(), name)
		assert.False(t, ok)
		assert.ErrorIs(t, err, manager.ErrInvalidRequest, name)
	}
	assert.Zero(t, r.count())
}

func TestPacmanTaskIDTagsLogger(t *testing.T) {
	r := newFakeRunner().on("pacman -Q", reply{})
	p := newTestPacman(r)

	_, err := p.Query(context.Background(), nil, manager.Options{TaskID: "job-7"})
	require.NoError(t, err)
	require.Len(t, r.calls, 1)
	assert.NotNil(t, r.calls[0].Logger)
	assert.False(t, r.calls[0].Sudo)
}

func TestPacmanInstallTargets(t *testing.T) {
	r := newFakeRunner().on("pacman -Q", reply{exit: 1}).on("pacman -S ", reply{})
	p := newTestPacman(r)

	specs, err := manager.ParsePackageSpecs([]string{"git>=2.40", "vim"})
	require.NoError(t, err)
	_, err = p.Install(context.Background(), specs, manager.Options{Reinstall: true})
	require.NoError(t, err)

	cmds := r.commands()
	assert.Equal(t, "pacman -S git>=2.40 vim", cmds[1])
	assert.True(t, r.calls[1].Sudo)
}
