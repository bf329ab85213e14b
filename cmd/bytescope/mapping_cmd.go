package main

import (
	"context"
	"strconv"

	"golang.org/x/xerrors"
)

func parseAddr(s string) (uint64, error) { return strconv.ParseUint(s, 0, 64) }

func cmdMap(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return xerrors.New("syntax: map <paddr> <vaddr> <size>")
	}
	paddr, err := parseAddr(args[0])
	if err != nil {
		return xerrors.Errorf("parsing paddr: %w", err)
	}
	vaddr, err := parseAddr(args[1])
	if err != nil {
		return xerrors.Errorf("parsing vaddr: %w", err)
	}
	size, err := parseAddr(args[2])
	if err != nil {
		return xerrors.Errorf("parsing size: %w", err)
	}
	eng, err := openSession()
	if err != nil {
		return err
	}
	if err := eng.Map(paddr, vaddr, size); err != nil {
		return err
	}
	return saveSession(eng)
}

func cmdUnmap(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return xerrors.New("syntax: unmap <vaddr> <size>")
	}
	vaddr, err := parseAddr(args[0])
	if err != nil {
		return xerrors.Errorf("parsing vaddr: %w", err)
	}
	size, err := parseAddr(args[1])
	if err != nil {
		return xerrors.Errorf("parsing size: %w", err)
	}
	eng, err := openSession()
	if err != nil {
		return err
	}
	if err := eng.Unmap(vaddr, size); err != nil {
		return err
	}
	return saveSession(eng)
}
