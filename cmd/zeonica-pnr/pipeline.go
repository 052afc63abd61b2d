package main

import (
	"fmt"

	"github.com/rs/xid"

	"github.com/sarchlab/zeonica-pnr/chipdb"
	"github.com/sarchlab/zeonica-pnr/diag"
	"github.com/sarchlab/zeonica-pnr/frontend"
	jsonio "github.com/sarchlab/zeonica-pnr/ioformat/json"
	"github.com/sarchlab/zeonica-pnr/ioformat/scripthook"
	"github.com/sarchlab/zeonica-pnr/pack"
	"github.com/sarchlab/zeonica-pnr/place"
	"github.com/sarchlab/zeonica-pnr/pnrctx"
	"github.com/sarchlab/zeonica-pnr/pnrerr"
	"github.com/sarchlab/zeonica-pnr/postroute"
	"github.com/sarchlab/zeonica-pnr/route"
)

// stage names the pipeline phase a run stops after: the pack, place and
// route subcommands stop early, and the bare root command runs through
// post-route.
type stage int

const (
	stagePack stage = iota
	stagePlace
	stageRoute
	stagePostRoute
)

// runPipeline implements the full p&r flow: load the chip database,
// import the netlist, run hooks at each phase boundary, and drive
// pack/place/route/postroute up to through.
func runPipeline(f *pipelineFlags, through stage) error {
	sessionID := xid.New()
	diag.Infof("session %s starting", sessionID.String())

	if f.chipDB == "" {
		return pnrerr.New(pnrerr.InputError, "--chipdb is required")
	}
	db, err := chipdb.Load(f.chipDB)
	if err != nil {
		return err
	}

	if f.stats {
		reportHostStats()
	}

	tbl := newTable()
	ctx := pnrctx.New(db, tbl)

	if f.constraints != "" {
		if _, err := loadConstraints(f.constraints); err != nil {
			return err
		}
	}

	if f.jsonPath == "" {
		return pnrerr.New(pnrerr.InputError, "--json is required")
	}
	reader, err := jsonio.LoadFile(f.jsonPath)
	if err != nil {
		return err
	}
	if err := frontend.Import(ctx, reader, f.top); err != nil {
		return err
	}

	archCap := defaultArchCapability(f.device)

	if f.prePack != "" {
		if err := scripthook.Run(ctx, scripthook.PrePack, f.prePack); err != nil {
			return err
		}
	}

	packer := pack.New(ctx, pack.Config{Arch: archCap})
	if err := packer.Run(); err != nil {
		return err
	}
	diag.Infof("packed %d cells", len(ctx.Cells()))
	if through == stagePack {
		return finish(f, ctx)
	}

	if f.prePlace != "" {
		if err := scripthook.Run(ctx, scripthook.PrePlace, f.prePlace); err != nil {
			return err
		}
	}

	placer := place.NewBuilder().
		WithContext(ctx).
		WithConfig(place.Config{Arch: archCap, Seed: f.seed}).
		Build("placer")
	if err := placer.PlaceAll(); err != nil {
		return err
	}
	diag.Infof("placed, cost %.2f", placer.Cost())
	if through == stagePlace {
		return finish(f, ctx)
	}

	router := route.NewBuilder().
		WithContext(ctx).
		WithConfig(route.Config{Arch: archCap}).
		Build("router")
	if err := router.RouteAll(); err != nil {
		return err
	}
	diag.Infof("routed")
	if through == stageRoute {
		return finish(f, ctx)
	}

	rewriter := postroute.New(ctx, postroute.Config{Arch: archCap})
	if err := rewriter.Run(); err != nil {
		return err
	}
	if f.verbose {
		fmt.Println(rewriter.Table())
	}

	if f.postRoute != "" {
		if err := scripthook.Run(ctx, scripthook.PostRoute, f.postRoute); err != nil {
			return err
		}
	}

	return finish(f, ctx)
}

// finish writes the requested outputs for whichever stage the pipeline
// stopped at.
func finish(f *pipelineFlags, ctx *pnrctx.Context) error {
	if f.writeOut != "" {
		if err := writeNetlist(f.writeOut, ctx); err != nil {
			return err
		}
	}
	if f.bitOut != "" {
		setup := jsonio.Setup{Variant: f.device, IOBanks: map[string]string{}}
		if err := jsonio.WriteBitstreamFile(f.bitOut, ctx, setup); err != nil {
			return err
		}
	}
	return nil
}
