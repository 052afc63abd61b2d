package interchange

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sarchlab/zeonica-pnr/chipdb"
)

// tileDump is the JSON shape served by the debug endpoint below.
type tileDump struct {
	X, Y  int32
	Type  string
	Bels  []string
	Wires []string
}

// DebugHandler registers the "/debug/chipdb/{x}/{y}" endpoint on r,
// serving a JSON dump of one tile for interactive inspection. Matches
// the teacher's monitoring/web-facing pattern (akita's monitoring.Monitor
// HTTP surface) promoted here to a concrete, chipdb-specific debug view
// per SPEC_FULL §2.
func DebugHandler(r *mux.Router, db *chipdb.ChipDb, strOf func(uint32) string) {
	r.HandleFunc("/debug/chipdb/{x}/{y}", func(w http.ResponseWriter, req *http.Request) {
		vars := mux.Vars(req)
		x, y := atoi(vars["x"]), atoi(vars["y"])

		tile := db.TileAt(x, y)
		if tile == nil {
			http.NotFound(w, req)
			return
		}
		tt := &db.TileTypes[tile.TypeIndex]
		dump := tileDump{X: x, Y: y}
		if tt != nil {
			dump.Type = strOf(uint32(tt.Name))
			for _, b := range tt.Bels {
				dump.Bels = append(dump.Bels, strOf(uint32(b.Type)))
			}
			for _, wr := range tt.Wires {
				dump.Wires = append(dump.Wires, strOf(uint32(wr.Name)))
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(dump)
	}).Methods(http.MethodGet)
}

func atoi(s string) int32 {
	var n int32
	neg := false
	for i, c := range s {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int32(c-'0')
	}
	if neg {
		n = -n
	}
	return n
}
