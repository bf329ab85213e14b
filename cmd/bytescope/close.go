package main

import (
	"context"
	"strconv"

	"golang.org/x/xerrors"
)

func cmdClose(ctx context.Context, args []string) error {
	eng, err := openSession()
	if err != nil {
		return err
	}
	if len(args) == 1 && args[0] == "-all" {
		eng.CloseAll()
		return saveSession(eng)
	}
	if len(args) != 1 {
		return xerrors.New("syntax: close <handle> | close -all")
	}
	h, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return xerrors.Errorf("parsing handle: %w", err)
	}
	if err := eng.Close(h); err != nil {
		return err
	}
	return saveSession(eng)
}
