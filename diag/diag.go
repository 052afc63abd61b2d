// Package diag provides the single structured diagnostic line used for
// every fatal path in the engine, grounded on the teacher's mutex-guarded
// package-level registries (cgra.sideNames/sideNamesMu) rather than on a
// third-party logging library: nothing in the retrieval pack's complete
// repos imports one.
package diag

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sarchlab/zeonica-pnr/pnrerr"
)

var (
	mu     sync.Mutex
	stdout = os.Stdout
	stderr = os.Stderr
	now    = time.Now
)

// SetOutputs redirects diag output, used by tests.
func SetOutputs(out, err *os.File) {
	mu.Lock()
	defer mu.Unlock()
	stdout, stderr = out, err
}

// Infof writes a progress line. Non-fatal.
func Infof(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(stdout, "[info] "+format+"\n", args...)
}

// Warnf writes a warning line. Non-fatal.
func Warnf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(stderr, "[warn] "+format+"\n", args...)
}

// Fatal writes the single structured diagnostic line required by the error
// handling design (category, short description, primary object, optional
// secondary object) and terminates with the category's exit code. It never
// returns.
func Fatal(err *pnrerr.Error) {
	line(stderr, err)
	os.Exit(err.Kind.ExitCode())
}

// Report writes the structured diagnostic line without exiting, for
// non-fatal categories (e.g. cancellation) or tests that want to assert on
// the formatted text.
func Report(err *pnrerr.Error) string {
	return line(stderr, err)
}

func line(w *os.File, err *pnrerr.Error) string {
	mu.Lock()
	defer mu.Unlock()
	msg := fmt.Sprintf("%s [%s] %s", now().Format(time.RFC3339), err.Kind, err.Message)
	if err.Primary != "" {
		msg += " primary=" + err.Primary
	}
	if err.Secondary != "" {
		msg += " secondary=" + err.Secondary
	}
	fmt.Fprintln(w, msg)
	return msg
}
