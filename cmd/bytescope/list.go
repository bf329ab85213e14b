package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/bytescope/bytescope/internal/rio"
)

func cmdFiles(ctx context.Context, args []string) error {
	eng, err := openSession()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "HANDLE\tPADDR\tSIZE\tPERM\tURI")
	for _, d := range eng.Descriptors() {
		fmt.Fprintf(tw, "%d\t0x%x\t0x%x\t%s\t%s\n", d.Handle, d.Paddr, d.Size, permString(d.Perm), d.URI)
	}
	return tw.Flush()
}

func cmdMaps(ctx context.Context, args []string) error {
	eng, err := openSession()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "VADDR\tPADDR\tSIZE")
	forward, _ := eng.RegistryEntries()
	for _, e := range forward {
		for _, m := range e.Values {
			fmt.Fprintf(tw, "0x%x\t0x%x\t0x%x\n", m.Vaddr, m.Paddr, m.Size)
		}
	}
	return tw.Flush()
}

func permString(p rio.Permission) string {
	s := ""
	if p.Has(rio.Read) {
		s += "r"
	}
	if p.Has(rio.Write) {
		s += "w"
	}
	if p.Has(rio.Cow) {
		s += "c"
	}
	if s == "" {
		return "-"
	}
	return s
}
