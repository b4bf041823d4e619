// Package logctx sets up structured logging for every component below
// the CLI boundary. The CLI layer itself keeps a direct
// fmt.Fprintf-to-stderr + progress-callback style for user-facing
// output; logctx is for component construction, retries, circuit
// breaker transitions, and queue flushes.
package logctx

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Configure sets the package-wide log level and output writer. Call
// once during startup, before any component logger is created.
func Configure(verbose bool, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	root.SetOutput(w)
	root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		root.SetLevel(logrus.DebugLevel)
	} else {
		root.SetLevel(logrus.InfoLevel)
	}
}

var root = logrus.New()

// For returns a logger scoped to the given component name, e.g.
// logctx.For("resilience.breaker").
func For(component string) *logrus.Entry {
	return root.WithField("component", component)
}
