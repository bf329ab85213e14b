package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"golang.org/x/xerrors"
)

func cmdPread(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return xerrors.New("syntax: pread <paddr> <size>")
	}
	paddr, err := parseAddr(args[0])
	if err != nil {
		return xerrors.Errorf("parsing paddr: %w", err)
	}
	size, err := parseAddr(args[1])
	if err != nil {
		return xerrors.Errorf("parsing size: %w", err)
	}
	eng, err := openSession()
	if err != nil {
		return err
	}
	buf := make([]byte, size)
	if _, err := eng.Pread(paddr, buf); err != nil {
		return err
	}
	fmt.Print(hex.Dump(buf))
	return nil
}

func cmdPwrite(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return xerrors.New("syntax: pwrite <paddr> <hex-bytes>")
	}
	paddr, err := parseAddr(args[0])
	if err != nil {
		return xerrors.Errorf("parsing paddr: %w", err)
	}
	data, err := hex.DecodeString(args[1])
	if err != nil {
		return xerrors.Errorf("parsing hex-bytes: %w", err)
	}
	eng, err := openSession()
	if err != nil {
		return err
	}
	if _, err := eng.Pwrite(paddr, data); err != nil {
		return err
	}
	return saveSession(eng)
}

func cmdVread(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return xerrors.New("syntax: vread <vaddr> <size>")
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
	buf := make([]byte, size)
	if _, err := eng.Vread(vaddr, buf); err != nil {
		return err
	}
	fmt.Print(hex.Dump(buf))
	return nil
}

func cmdVwrite(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return xerrors.New("syntax: vwrite <vaddr> <hex-bytes>")
	}
	vaddr, err := parseAddr(args[0])
	if err != nil {
		return xerrors.Errorf("parsing vaddr: %w", err)
	}
	data, err := hex.DecodeString(args[1])
	if err != nil {
		return xerrors.Errorf("parsing hex-bytes: %w", err)
	}
	eng, err := openSession()
	if err != nil {
		return err
	}
	if _, err := eng.Vwrite(vaddr, data); err != nil {
		return err
	}
	return saveSession(eng)
}
