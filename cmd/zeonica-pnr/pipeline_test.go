package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zeonica-pnr/chipdb"
	"github.com/sarchlab/zeonica-pnr/ident"
	"github.com/sarchlab/zeonica-pnr/pnrerr"
)

// chainDb builds a three-tile chip (IBUF pad, LUT4 logic, OBUF pad)
// wired the way route_test.go's two-tile fixture wires a driver to a
// consumer, extended by one more hop so a whole pack/place/route run has
// something to chain together end to end.
func chainDb(tbl *ident.Table) *chipdb.ChipDb {
	ibufType := tbl.Intern("IBUF")
	lutType := tbl.Intern("LUT4")
	obufType := tbl.Intern("OBUF")
	oPort := tbl.Intern("O")
	iPort := tbl.Intern("I")
	i0Port := tbl.Intern("I0")

	return &chipdb.ChipDb{
		Width: 3, Height: 1,
		TileTypes: []chipdb.TileType{
			{ // tile type 0: IBUF pad
				Name: tbl.Intern("PADIN"),
				Bels: []chipdb.Bel{{
					Type: ibufType,
					Pins: []chipdb.BelPin{{Port: oPort, Direction: chipdb.DirOut, WireIndex: 0}},
				}},
				Wires: []chipdb.Wire{{Name: tbl.Intern("F0")}},
			},
			{ // tile type 1: LUT4 logic
				Name: tbl.Intern("LOGIC"),
				Bels: []chipdb.Bel{{
					Type: lutType,
					Pins: []chipdb.BelPin{
						{Port: i0Port, Direction: chipdb.DirIn, WireIndex: 1},
						{Port: oPort, Direction: chipdb.DirOut, WireIndex: 2},
					},
				}},
				Wires: []chipdb.Wire{
					{Name: tbl.Intern("IN_NODE"), PipsDownhill: []int32{0}},
					{Name: tbl.Intern("I0W")},
					{Name: tbl.Intern("OUT_NODE")},
				},
				Pips: []chipdb.Pip{{SrcWire: 0, DstWire: 1, Kind: chipdb.PipRegular}},
			},
			{ // tile type 2: OBUF pad
				Name: tbl.Intern("PADOUT"),
				Bels: []chipdb.Bel{{
					Type: obufType,
					Pins: []chipdb.BelPin{{Port: iPort, Direction: chipdb.DirIn, WireIndex: 1}},
				}},
				Wires: []chipdb.Wire{
					{Name: tbl.Intern("OUT_NODE"), PipsDownhill: []int32{0}},
					{Name: tbl.Intern("I0W")},
				},
				Pips: []chipdb.Pip{{SrcWire: 0, DstWire: 1, Kind: chipdb.PipRegular}},
			},
		},
		Tiles: []chipdb.Tile{
			{TypeIndex: 0, X: 0, Y: 0},
			{TypeIndex: 1, X: 1, Y: 0},
			{TypeIndex: 2, X: 2, Y: 0},
		},
		TileWireToNode: [][]int32{
			{0},
			{0, -1, 1},
			{1, -1},
		},
		Nodes: []chipdb.Node{
			{Wires: []chipdb.WireLoc{{Tile: 0, Index: 0}, {Tile: 1, Index: 0}}},
			{Wires: []chipdb.WireLoc{{Tile: 1, Index: 2}, {Tile: 2, Index: 0}}},
		},
	}
}

const inverterNetlist = `{
  "modules": {
    "top": {
      "ports": {
        "a": {"direction": "input", "bits": [2], "offset": 0, "upto": 0},
        "y": {"direction": "output", "bits": [3], "offset": 0, "upto": 0}
      },
      "cells": {
        "lut0": {
          "type": "LUT4",
          "port_directions": {"I0": "input", "O": "output"},
          "connections": {"I0": [2], "O": [3]},
          "attributes": {},
          "parameters": {}
        }
      },
      "netnames": {}
    }
  }
}`

func writeFixtures(dir string) (jsonPath, chipPath string) {
	jsonPath = filepath.Join(dir, "inverter.json")
	Expect(os.WriteFile(jsonPath, []byte(inverterNetlist), 0o644)).To(Succeed())

	chipPath = filepath.Join(dir, "chip.bin")
	tbl := ident.NewTable()
	Expect(chipdb.Save(chipPath, chainDb(tbl))).To(Succeed())
	return jsonPath, chipPath
}

type physnetDoc struct {
	Cells []struct {
		Name string
		Site string
	}
	Nets []struct {
		Name    string
		Sources []string
	}
}

type bitstreamDoc struct {
	Instances map[string]struct {
		Type string `json:"type"`
		Tile int32  `json:"tile"`
		Bel  int32  `json:"bel"`
	} `json:"instances"`
	Nets map[string][]string `json:"nets"`
}

var _ = Describe("runPipeline", func() {
	It("rejects a run missing --chipdb with an input-error exit code", func() {
		f := pipelineFlags{jsonPath: "whatever.json"}
		err := runPipeline(&f, stagePostRoute)
		Expect(err).To(HaveOccurred())
		pe, ok := err.(*pnrerr.Error)
		Expect(ok).To(BeTrue())
		Expect(pe.Kind).To(Equal(pnrerr.InputError))
		Expect(pe.Kind.ExitCode()).To(Equal(1))
	})

	It("rejects a run missing --json with an input-error exit code", func() {
		dir := GinkgoT().TempDir()
		_, chipPath := writeFixtures(dir)

		f := pipelineFlags{chipDB: chipPath}
		err := runPipeline(&f, stagePostRoute)
		Expect(err).To(HaveOccurred())
		pe, ok := err.(*pnrerr.Error)
		Expect(ok).To(BeTrue())
		Expect(pe.Kind).To(Equal(pnrerr.InputError))
	})

	It("fails the chip load with a database-missing input-error for a bad --chipdb path", func() {
		f := pipelineFlags{chipDB: "/nonexistent/chip.bin", jsonPath: "x.json"}
		err := runPipeline(&f, stagePostRoute)
		Expect(err).To(HaveOccurred())
		pe, ok := err.(*pnrerr.Error)
		Expect(ok).To(BeTrue())
		Expect(pe.Kind).To(Equal(pnrerr.InputError))
	})

	It("runs the inverter scenario end to end and writes both output files", func() {
		dir := GinkgoT().TempDir()
		jsonPath, chipPath := writeFixtures(dir)
		writeOut := filepath.Join(dir, "out.netlist.json")
		bitOut := filepath.Join(dir, "out.bit.json")

		f := pipelineFlags{
			jsonPath: jsonPath,
			chipDB:   chipPath,
			writeOut: writeOut,
			bitOut:   bitOut,
			device:   "tiny",
		}
		Expect(runPipeline(&f, stagePostRoute)).To(Succeed())

		raw, err := os.ReadFile(writeOut)
		Expect(err).NotTo(HaveOccurred())
		var doc physnetDoc
		Expect(json.Unmarshal(raw, &doc)).To(Succeed())
		Expect(doc.Cells).To(HaveLen(3))
		Expect(doc.Nets).To(HaveLen(2))

		rawBit, err := os.ReadFile(bitOut)
		Expect(err).NotTo(HaveOccurred())
		var bit bitstreamDoc
		Expect(json.Unmarshal(rawBit, &bit)).To(Succeed())
		Expect(bit.Instances).To(HaveLen(3))
		Expect(bit.Nets).To(HaveLen(2))
	})

	It("stops after packing when asked for the pack stage only", func() {
		dir := GinkgoT().TempDir()
		jsonPath, chipPath := writeFixtures(dir)
		writeOut := filepath.Join(dir, "packed.json")

		f := pipelineFlags{jsonPath: jsonPath, chipDB: chipPath, writeOut: writeOut}
		Expect(runPipeline(&f, stagePack)).To(Succeed())

		raw, err := os.ReadFile(writeOut)
		Expect(err).NotTo(HaveOccurred())
		var doc physnetDoc
		Expect(json.Unmarshal(raw, &doc)).To(Succeed())
		// nothing is bound to a site yet at the pack stage.
		Expect(doc.Cells).To(HaveLen(0))
	})

	It("rejects an LVDS pad whose drive is not Undefined via --constraints", func() {
		dir := GinkgoT().TempDir()
		jsonPath, chipPath := writeFixtures(dir)

		csv := "IOB_X0Y0,padA,LVDS,4mA,Fast,None,None,False,None,None,None,Off,Rising,8,False\n"
		csvPath := filepath.Join(dir, "bad.csv")
		Expect(os.WriteFile(csvPath, []byte(csv), 0o644)).To(Succeed())

		f := pipelineFlags{jsonPath: jsonPath, chipDB: chipPath, constraints: csvPath}
		err := runPipeline(&f, stagePostRoute)
		Expect(err).To(HaveOccurred())
		pe, ok := err.(*pnrerr.Error)
		Expect(ok).To(BeTrue())
		Expect(pe.Kind).To(Equal(pnrerr.InputError))
		Expect(pe.Error()).To(ContainSubstring("LVDS requires drive = Undefined"))
	})
})
