package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tchin/transit-timing-variation/internal/propagation"
	"github.com/tchin/transit-timing-variation/internal/system"
)

func newSystemsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "systems",
		Short: "List the preset and catalog systems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, _, err := a.loadSystems(cmd.Context())
			if err != nil {
				return err
			}

			g := propagation.SI.G()
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SYSTEM\tSTAR\tPLANETS\tWATCHED\tPERIOD (d)\tTRANSIT (h)")
			for _, sys := range store.All() {
				w := sys.Watched()
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.3f\t%.2f\n",
					sys.Name, sys.Star.Name, len(sys.Planets), w.Name,
					system.OrbitalPeriod(g, sys.Star, w)/86400,
					system.TransitDuration(g, sys.Star, w)/3600,
				)
			}
			return tw.Flush()
		},
	}
}
