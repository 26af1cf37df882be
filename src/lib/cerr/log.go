package cerr

import (
	"errors"

	"github.com/apex/log"
)

// Log emits err at error level, attaching the structured fields of the
// nearest ContextualError in the chain to the log entry.
func Log(err error) {
	var ctxErr ContextualError
	if !errors.As(err, &ctxErr) {
		log.Error(err.Error())
		return
	}

	log.WithFields(log.Fields(ctxErr.Context.ContextFields)).Error(err.Error())
}
