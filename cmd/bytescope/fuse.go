package main

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/bytescope/bytescope/internal/rio"
	"github.com/bytescope/bytescope/internal/vfs"
)

func cmdFuse(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return xerrors.New("syntax: fuse <mountpoint>")
	}
	eng, err := openSession()
	if err != nil {
		return err
	}
	guarded := rio.NewGuarded(eng)
	unmount, err := vfs.Mount(ctx, guarded, args[0])
	if err != nil {
		return xerrors.Errorf("vfs.Mount: %w", err)
	}
	<-ctx.Done()
	if err := unmount(); err != nil {
		return err
	}
	return saveSession(eng)
}
