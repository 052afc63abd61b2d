package main

import "github.com/spf13/cobra"

func newPackCommand() *cobra.Command {
	var f pipelineFlags
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "import and pack a netlist, stopping before placement",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(&f, stagePack)
		},
	}
	addPipelineFlags(cmd, &f)
	return cmd
}

func newPlaceCommand() *cobra.Command {
	var f pipelineFlags
	cmd := &cobra.Command{
		Use:   "place",
		Short: "pack and place a netlist, stopping before routing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(&f, stagePlace)
		},
	}
	addPipelineFlags(cmd, &f)
	return cmd
}

func newRouteCommand() *cobra.Command {
	var f pipelineFlags
	cmd := &cobra.Command{
		Use:   "route",
		Short: "pack, place and route a netlist, stopping before post-route rewrites",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(&f, stageRoute)
		},
	}
	addPipelineFlags(cmd, &f)
	return cmd
}
