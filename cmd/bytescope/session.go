package main

import (
	"os"

	"github.com/bytescope/bytescope/internal/project"
	"github.com/bytescope/bytescope/internal/rio"
	"github.com/bytescope/bytescope/internal/rio/plugins"
)

// openSession builds an engine with every known plugin registered and
// loads the saved project into it, if one exists. A fresh session (no
// saved project yet) starts out empty rather than erroring.
func openSession() (*rio.Engine, error) {
	eng := rio.NewEngine(
		plugins.File{},
		plugins.Malloc{},
		plugins.B64{},
		plugins.Gz{},
		plugins.Cpio{},
		plugins.Srec{},
		plugins.Ihex{},
		plugins.Squashfs{},
	)
	if _, err := os.Stat(*projectPath); err != nil {
		if os.IsNotExist(err) {
			return eng, nil
		}
		return nil, err
	}
	if err := project.Load(eng, *projectPath); err != nil {
		return nil, err
	}
	return eng, nil
}

// saveSession persists eng's state back to the project file so the next
// invocation of bytescope picks up where this one left off.
func saveSession(eng *rio.Engine) error {
	return project.Save(eng, *projectPath)
}
