package cli

import (
	"encoding/json"
	"os"

	"github.com/m-mizutani/goerr/v2"
)

// printJSON writes a command result to stdout. Logs go to the configured
// log output, results go here, so one-shot commands stay pipeable.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to encode result")
	}
	return nil
}
