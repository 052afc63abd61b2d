// Package json binds the generic frontend.ModuleReader capability to the
// synthesis JSON schema described in spec §6.1: a top-level
// {"modules": {name: {"ports":…, "cells":…, "netnames":…}}} document
// whose bit vectors mix signal numbers and constant strings. It is
// grounded on the teacher's program package's lazy, name-keyed
// registration style (here: decode once into plain maps, let frontend
// drive the walk) and on nextpnr's json_frontend.cc (read via
// original_source/) for the exact bit/constant encoding.
package json

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sarchlab/zeonica-pnr/frontend"
	"github.com/sarchlab/zeonica-pnr/pnrerr"
)

// rawBit is one entry of a "bits" array: either a JSON number (a signal)
// or a JSON string ("0", "1", "x", "z").
type rawBit struct {
	isConst bool
	c       frontend.BitConst
	signal  int
}

func (b *rawBit) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v, convErr := n.Int64()
		if convErr != nil {
			return fmt.Errorf("bit value %q is not an integer signal", n.String())
		}
		b.signal = int(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("bit value is neither a number nor a string")
	}
	switch s {
	case "0":
		b.isConst, b.c = true, frontend.Bit0
	case "1":
		b.isConst, b.c = true, frontend.Bit1
	case "x":
		b.isConst, b.c = true, frontend.BitX
	case "z":
		b.isConst, b.c = true, frontend.BitZ
	default:
		return fmt.Errorf("unrecognized constant bit %q", s)
	}
	return nil
}

// bitVector implements frontend.BitVector over a decoded []rawBit.
type bitVector []rawBit

func (v bitVector) Length() int                { return len(v) }
func (v bitVector) IsBitConstant(i int) bool    { return v[i].isConst }
func (v bitVector) BitConstVal(i int) frontend.BitConst { return v[i].c }
func (v bitVector) BitSignal(i int) int        { return v[i].signal }

type rawPort struct {
	Direction string   `json:"direction"`
	Bits      bitVector `json:"bits"`
	Offset    int      `json:"offset"`
	Upto      int      `json:"upto"`
}

type rawCell struct {
	Type         string              `json:"type"`
	PortDir      map[string]string   `json:"port_directions"`
	Connections  map[string]bitVector `json:"connections"`
	Attributes   map[string]json.RawMessage `json:"attributes"`
	Parameters   map[string]json.RawMessage `json:"parameters"`
}

type rawNetname struct {
	Bits  bitVector          `json:"bits"`
	Attrs map[string]json.RawMessage `json:"attributes"`
}

type rawModule struct {
	Attrs    map[string]json.RawMessage `json:"attributes"`
	Ports    map[string]rawPort    `json:"ports"`
	Cells    map[string]rawCell    `json:"cells"`
	Netnames map[string]rawNetname `json:"netnames"`
}

type rawDoc struct {
	Modules map[string]rawModule `json:"modules"`
}

// scalarString renders an attribute/parameter JSON value to the string
// form the design model stores, per §6.1 "integer parameter values must
// be round-trippable to string; non-round-trippable fractional numbers
// are fatal".
func scalarString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		return "", fmt.Errorf("value %q does not round-trip through an integer", n.String())
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return "1", nil
		}
		return "0", nil
	}
	return "", fmt.Errorf("unsupported attribute/parameter encoding")
}

// module adapts a rawModule to frontend.Module.
type module struct {
	name string
	raw  rawModule
	top  bool
}

func (m *module) ForEachPort(f func(name string, port frontend.PortInfo)) {
	for name, p := range m.raw.Ports {
		dir := frontend.DirInput
		switch p.Direction {
		case "output":
			dir = frontend.DirOutput
		case "inout":
			dir = frontend.DirInout
		}
		f(name, frontend.PortInfo{
			Direction: dir,
			Bits:      p.Bits,
			Offset:    p.Offset,
			Upto:      p.Upto != 0,
		})
	}
}

func (m *module) ForEachCell(f func(instName string, cell frontend.CellInfo)) {
	for name, c := range m.raw.Cells {
		dirs := make(map[string]frontend.PortDir, len(c.PortDir))
		for p, d := range c.PortDir {
			switch d {
			case "output":
				dirs[p] = frontend.DirOutput
			case "inout":
				dirs[p] = frontend.DirInout
			default:
				dirs[p] = frontend.DirInput
			}
		}
		conns := make(map[string]frontend.BitVector, len(c.Connections))
		for p, bv := range c.Connections {
			conns[p] = bv
		}
		attrs := stringMap(c.Attributes)
		params := stringMap(c.Parameters)
		f(name, frontend.CellInfo{
			Type:     c.Type,
			PortDir:  dirs,
			PortConn: conns,
			Attrs:    attrs,
			Params:   params,
		})
	}
}

func (m *module) ForEachNetname(f func(name string, net frontend.NetInfo)) {
	for name, n := range m.raw.Netnames {
		f(name, frontend.NetInfo{Bits: n.Bits, Attrs: stringMap(n.Attrs)})
	}
}

func (m *module) IsBox() bool { return len(m.raw.Cells) == 0 && len(m.raw.Ports) == 0 }
func (m *module) IsTop() bool { return m.top }

func stringMap(raw map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, err := scalarString(v); err == nil {
			out[k] = s
		}
	}
	return out
}

// Reader implements frontend.ModuleReader over a decoded rawDoc.
type Reader struct {
	doc rawDoc
}

// Load decodes a synthesis JSON document from r.
func Load(r io.Reader) (*Reader, error) {
	var doc rawDoc
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, pnrerr.Newf(pnrerr.InputError, "", "", "malformed netlist JSON: %v", err)
	}
	return &Reader{doc: doc}, nil
}

// LoadFile opens path and decodes it as a synthesis JSON document.
func LoadFile(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pnrerr.Newf(pnrerr.InputError, path, "", "could not open netlist JSON: %v", err)
	}
	defer f.Close()
	return Load(f)
}

func (r *Reader) ForEachModule(f func(name string, mod frontend.Module)) {
	for name, raw := range r.doc.Modules {
		top := false
		if v, ok := raw.Attrs["top"]; ok {
			if s, err := scalarString(v); err == nil && s != "0" && s != "" {
				top = true
			}
		}
		f(name, &module{name: name, raw: raw, top: top})
	}
}

// PostSynthesis always reports false for the synthesis JSON binding: this
// schema never carries pre-placed pads.
func (r *Reader) PostSynthesis() bool { return false }
