package main

import "github.com/spf13/cobra"

// pipelineFlags carries the §6.3 flag set common to every subcommand.
type pipelineFlags struct {
	jsonPath string
	writeOut string
	bitOut   string
	seed     int64
	top      string

	prePack   string
	prePlace  string
	postRoute string

	device      string
	pkg         string
	speedGrade  string
	constraints string

	chipDB  string
	stats   bool
	verbose bool
}

func addPipelineFlags(cmd *cobra.Command, f *pipelineFlags) {
	cmd.Flags().StringVar(&f.jsonPath, "json", "", "synthesized netlist JSON to read")
	cmd.Flags().StringVar(&f.writeOut, "write", "", "placed-and-routed netlist JSON to write")
	cmd.Flags().StringVar(&f.bitOut, "bit", "", "JSON bitstream file to write")
	cmd.Flags().Int64Var(&f.seed, "seed", 1, "deterministic RNG seed")
	cmd.Flags().StringVar(&f.top, "top", "", "override top module name")

	cmd.Flags().StringVar(&f.prePack, "pre-pack", "", "hook file run before packing")
	cmd.Flags().StringVar(&f.prePlace, "pre-place", "", "hook file run before placing")
	cmd.Flags().StringVar(&f.postRoute, "post-route", "", "hook file run after routing")

	cmd.Flags().StringVar(&f.device, "device", "", "target device name")
	cmd.Flags().StringVar(&f.pkg, "package", "", "target package name")
	cmd.Flags().StringVar(&f.speedGrade, "speed-grade", "", "target speed grade")
	cmd.Flags().StringVar(&f.constraints, "constraints", "", "I/O constraints CSV")

	cmd.Flags().StringVar(&f.chipDB, "chipdb", "", "chip database file (chipdb.Save format)")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "report host CPU/memory stats alongside progress")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "print a post-route statistics table")
}
