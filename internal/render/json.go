package render

import (
	"encoding/json"
	"io"

	"github.com/obsidianstack/diskhealth/internal/model"
)

// JSON writes the report as indented JSON.
func JSON(w io.Writer, rep *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
