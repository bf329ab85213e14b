package main

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/xerrors"

	"github.com/bytescope/bytescope/internal/rio"
)

// parsePerm turns "r", "rw", "rwc", "cow" etc. into a Permission bitset.
// An empty string defaults to read-write, the common case for scratch and
// on-disk sources alike.
func parsePerm(s string) rio.Permission {
	if s == "" {
		return rio.Read | rio.Write
	}
	var p rio.Permission
	for _, c := range strings.ToLower(s) {
		switch c {
		case 'r':
			p |= rio.Read
		case 'w':
			p |= rio.Write
		case 'c':
			p |= rio.Cow
		}
	}
	return p
}

func cmdOpen(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return xerrors.New("syntax: open <uri> [perm]")
	}
	perm := ""
	if len(args) > 1 {
		perm = args[1]
	}
	eng, err := openSession()
	if err != nil {
		return err
	}
	h, err := eng.Open(args[0], parsePerm(perm))
	if err != nil {
		return err
	}
	fmt.Printf("%d\n", h)
	return saveSession(eng)
}
