package native

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unipkg/internal/executor"
	"unipkg/pkg/manager"
)

func TestMatchName(t *testing.T) {
	names := []string{"git", "git-lfs", "python3", "lib32-glibc"}

	tests := []struct {
		token string
		want  string
		ok    bool
	}{
		{"git", "git", true},
		{"'git'", "git", true},
		{"git:amd64", "git", true},
		{"git-2.43.0-1", "git", true},
		{"git-2.43.0-1.fc39.x86_64", "git", true},
		{"git-0:2.43.0-1.fc39.x86_64", "git", true},
		{"git-lfs-3.4.0-1", "git-lfs", true},
		{"git-man", "", false},
		{"lib32-glibc-2.39-1", "lib32-glibc", true},
		{"git>=9.0", "git", true},
		{"git=2.43", "git", true},
		{"git-lfs<3", "git-lfs", true},
		{">=9.0", "", false},
		{"python3.", "python3", true},
		{"vim", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, ok := matchName(tt.token, names)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterpretLaterLinesOverride(t *testing.T) {
	out := &executor.Outcome{
		ExitCode: 1,
		Lines: []executor.Line{
			{Text: "(1/1) installing foo"},
			{Stream: executor.Stderr, Text: "error: failed retrieving file 'foo-1.0-1-x86_64.pkg.tar.zst' from mirror"},
		},
	}

	sc, err := pacmanRules.interpret("pacman", manager.OpInstall, []string{"foo"}, out)
	require.NoError(t, err)
	assert.Equal(t, manager.StatusFailed, sc.verdicts["foo"].status)
	assert.Equal(t, "download failed", sc.verdicts["foo"].message)
}

func TestInterpretFatalOnlyOnFailure(t *testing.T) {
	lines := []executor.Line{{Stream: executor.Stderr, Text: "error: failed to initialize alpm library"}}

	_, err := pacmanRules.interpret("pacman", manager.OpInstall, []string{"foo"}, &executor.Outcome{ExitCode: 1, Lines: lines})
	assert.ErrorIs(t, err, manager.ErrBackendFailure)

	_, err = pacmanRules.interpret("pacman", manager.OpInstall, []string{"foo"}, &executor.Outcome{Lines: lines})
	assert.NoError(t, err)
}

func TestInterpretOperationScopedRules(t *testing.T) {
	out := &executor.Outcome{Lines: []executor.Line{{Text: "(1/1) removing foo"}}}

	sc, err := pacmanRules.interpret("pacman", manager.OpInstall, []string{"foo"}, out)
	require.NoError(t, err)
	assert.Empty(t, sc.verdicts)

	sc, err = pacmanRules.interpret("pacman", manager.OpRemove, []string{"foo"}, out)
	require.NoError(t, err)
	assert.Equal(t, manager.StatusRemoved, sc.verdicts["foo"].status)
}

func TestInterpretYayNotFound(t *testing.T) {
	out := &executor.Outcome{ExitCode: 1, Lines: []executor.Line{
		{Text: " -> No AUR package found for spotify-nope"},
		{Text: " -> could not find all required packages:"},
		{Text: "\tspotify-nope (Target)"},
	}}

	sc, err := pacmanRules.interpret("yay", manager.OpInstall, []string{"spotify-nope"}, out)
	require.NoError(t, err)
	assert.Equal(t, manager.StatusNotFound, sc.verdicts["spotify-nope"].status)
}
