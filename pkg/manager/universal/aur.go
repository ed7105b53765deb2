// Package universal provides the Arch User Repository helpers.
package universal

import (
	"unipkg/pkg/manager"
	"unipkg/pkg/manager/native"
)

// AUR is an Arch User Repository helper (yay, paru). Helpers accept the
// pacman command line and print pacman's messages, so they share its
// backend; they escalate on their own and refuse to run as root.
type AUR struct {
	*native.Pacman
	helper string
}

// Known helpers and the flags that keep them from prompting for reviews.
var helperFlags = map[string][]string{
	"yay":  {"--noconfirm", "--answerdiff", "None", "--answerclean", "None", "--answeredit", "None"},
	"paru": {"--noconfirm", "--skipreview"},
}

// NewAUR creates a manager for the named helper.
func NewAUR(helper string) *AUR {
	displayName := "AUR"
	switch helper {
	case "yay":
		displayName = "Yay (AUR)"
	case "paru":
		displayName = "Paru (AUR)"
	}

	p := native.NewPacmanFamily(helper, displayName, helper, false)
	p.SetType(manager.TypeAUR)
	if flags, ok := helperFlags[helper]; ok {
		p.SetConfirmFlags(flags...)
	}

	return &AUR{Pacman: p, helper: helper}
}

// NewYay creates the yay backend.
func NewYay() *AUR {
	return NewAUR("yay")
}

// NewParu creates the paru backend.
func NewParu() *AUR {
	return NewAUR("paru")
}

// Helper returns the helper name.
func (a *AUR) Helper() string {
	return a.helper
}

// Helpers lists the supported AUR helpers.
func Helpers() []string {
	return []string{"yay", "paru"}
}
