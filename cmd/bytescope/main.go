// Command bytescope is a thin verb-dispatch client driving the addressing
// engine end to end: open/close, map/unmap, physical and virtual
// read/write, save/load, and an optional FUSE mount. It carries none of
// the help/color/history surface of a full REPL.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	bytescope "github.com/bytescope/bytescope"
	"golang.org/x/xerrors"

	internaltrace "github.com/bytescope/bytescope/internal/trace"
)

var (
	debug      = flag.Bool("debug", false, "enable debug mode: format error messages with additional detail")
	projectPath = flag.String("project", ".bytescope.proj", "path to the session's saved project state")
	ctracefile = flag.String("ctracefile", "", "path to store a chrome trace event file at (load in chrome://tracing)")
)

type cmd struct {
	fn   func(ctx context.Context, args []string) error
	help string
}

func verbs() map[string]cmd {
	return map[string]cmd{
		"open":   {cmdOpen, "open a byte source: open <uri> [perm]"},
		"close":  {cmdClose, "close a descriptor: close <handle> | close -all"},
		"map":    {cmdMap, "create a virtual mapping: map <paddr> <vaddr> <size>"},
		"unmap":  {cmdUnmap, "remove a virtual mapping: unmap <vaddr> <size>"},
		"pread":  {cmdPread, "read physical memory: pread <paddr> <size>"},
		"pwrite": {cmdPwrite, "write physical memory: pwrite <paddr> <hex-bytes>"},
		"vread":  {cmdVread, "read virtual memory: vread <vaddr> <size>"},
		"vwrite": {cmdVwrite, "write virtual memory: vwrite <vaddr> <hex-bytes>"},
		"files":  {cmdFiles, "list open descriptors"},
		"maps":   {cmdMaps, "list virtual mappings"},
		"fuse":   {cmdFuse, "mount the physical address space: fuse <mountpoint>"},
	}
}

func funcmain() error {
	flag.Parse()

	if *ctracefile != "" {
		f, err := os.Create(*ctracefile)
		if err != nil {
			return err
		}
		internaltrace.Sink(f)
	}

	args := flag.Args()
	if len(args) == 0 {
		return xerrors.New("syntax: bytescope <command> [options]")
	}
	verb, rest := args[0], args[1:]

	ctx, canc := bytescope.InterruptibleContext()
	defer canc()

	v, ok := verbs()[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintf(os.Stderr, "syntax: bytescope <command> [options]\n")
		os.Exit(2)
	}
	if err := v.fn(ctx, rest); err != nil {
		if *debug {
			return xerrors.Errorf("%s: %+v", verb, err)
		}
		return fmt.Errorf("%s: %v", verb, err)
	}
	return bytescope.RunAtExit()
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
