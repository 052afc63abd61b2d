package frontend_test

import "github.com/sarchlab/zeonica-pnr/frontend"

// fakeBits is a minimal frontend.BitVector over a fixed slice of signal
// numbers, with -1 meaning "constant zero" and -2 meaning "constant one"
// for test convenience.
type fakeBits []int

func (b fakeBits) Length() int { return len(b) }
func (b fakeBits) IsBitConstant(i int) bool { return b[i] < 0 }
func (b fakeBits) BitConstVal(i int) frontend.BitConst {
	if b[i] == -1 {
		return frontend.Bit0
	}
	return frontend.Bit1
}
func (b fakeBits) BitSignal(i int) int { return b[i] }

type fakePort struct {
	dir    frontend.PortDir
	bits   fakeBits
	offset int
	upto   bool
}

type fakeCell struct {
	typ    string
	dirs   map[string]frontend.PortDir
	conns  map[string]fakeBits
	attrs  map[string]string
	params map[string]string
}

type fakeModule struct {
	ports    map[string]fakePort
	portsOrd []string
	cells    map[string]fakeCell
	cellsOrd []string
	nets     map[string]fakeBits
	isBox    bool
	isTop    bool
}

func newFakeModule() *fakeModule {
	return &fakeModule{
		ports: map[string]fakePort{},
		cells: map[string]fakeCell{},
		nets:  map[string]fakeBits{},
	}
}

func (m *fakeModule) addPort(name string, dir frontend.PortDir, bits fakeBits) {
	m.ports[name] = fakePort{dir: dir, bits: bits}
	m.portsOrd = append(m.portsOrd, name)
}

func (m *fakeModule) addCell(inst string, c fakeCell) {
	m.cells[inst] = c
	m.cellsOrd = append(m.cellsOrd, inst)
}

func (m *fakeModule) ForEachPort(f func(name string, port frontend.PortInfo)) {
	for _, name := range m.portsOrd {
		p := m.ports[name]
		f(name, frontend.PortInfo{Direction: p.dir, Bits: p.bits, Offset: p.offset, Upto: p.upto})
	}
}

func (m *fakeModule) ForEachCell(f func(instName string, cell frontend.CellInfo)) {
	for _, inst := range m.cellsOrd {
		c := m.cells[inst]
		conn := map[string]frontend.BitVector{}
		for k, v := range c.conns {
			conn[k] = v
		}
		f(inst, frontend.CellInfo{Type: c.typ, PortDir: c.dirs, PortConn: conn, Attrs: c.attrs, Params: c.params})
	}
}

func (m *fakeModule) ForEachNetname(f func(name string, net frontend.NetInfo)) {
	for name, bits := range m.nets {
		f(name, frontend.NetInfo{Bits: bits})
	}
}

func (m *fakeModule) IsBox() bool { return m.isBox }
func (m *fakeModule) IsTop() bool { return m.isTop }

type fakeReader struct {
	modules     map[string]*fakeModule
	order       []string
	postSynth   bool
}

func newFakeReader() *fakeReader {
	return &fakeReader{modules: map[string]*fakeModule{}}
}

func (r *fakeReader) add(name string, m *fakeModule) {
	r.modules[name] = m
	r.order = append(r.order, name)
}

func (r *fakeReader) ForEachModule(f func(name string, mod frontend.Module)) {
	for _, name := range r.order {
		f(name, r.modules[name])
	}
}

func (r *fakeReader) PostSynthesis() bool { return r.postSynth }
