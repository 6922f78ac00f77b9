package output

import (
	"encoding/json"
	"os"
)

// JSONPrinter renders results as indented JSON on stdout.
type JSONPrinter struct{}

// Print writes the value as a JSON document.
func (JSONPrinter) Print(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
