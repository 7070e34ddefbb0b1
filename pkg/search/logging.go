package search

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// init configures the package's default zerolog writer the way the risk-
// agent reference's engine/local.go and searcher/mcts.go rely on the
// global github.com/rs/zerolog/log logger: no package-level *mutable
// search state* lives here (spec.md §9 forbids that), only the logger
// sink itself, which zerolog always expects to be process-global.
func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})
}

// SetLogLevel adjusts the global zerolog level; exposed so embedding
// applications (e.g. cmd/searchdemo) can quiet the library down.
func SetLogLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}
