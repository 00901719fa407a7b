package main

import (
	"encoding/json"
	"fmt"
	"io"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return fmt.Sprintf("%q", value)
	}
	return fmt.Sprint(v)
}
