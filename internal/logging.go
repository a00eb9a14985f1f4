// Package internal holds small process-level helpers shared by the
// binaries.
package internal

import (
	"log"
	"os"
)

// InitLogging routes the standard logger to stdout with microsecond
// timestamps so interleaved component logs stay ordered.
func InitLogging() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if os.Getenv("RAILOPT_LOG_UTC") != "" {
		log.SetFlags(log.Flags() | log.LUTC)
	}
}
