package history

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Export formats: json, yaml, markdown.
const (
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
)

// Export renders records in the requested format, newest first as given.
func Export(records []Record, format string) (string, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		out, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return "", fmt.Errorf("export history as json: %w", err)
		}
		return string(out) + "\n", nil
	case FormatYAML:
		out, err := yaml.Marshal(records)
		if err != nil {
			return "", fmt.Errorf("export history as yaml: %w", err)
		}
		return string(out), nil
	case FormatMarkdown:
		return exportMarkdown(records), nil
	default:
		return "", fmt.Errorf("unknown export format %q (want json, yaml or markdown)", format)
	}
}

func exportMarkdown(records []Record) string {
	var b strings.Builder

	b.WriteString("# Query History\n")
	for _, rec := range records {
		fmt.Fprintf(&b, "\n## %s\n\n", rec.Question)
		fmt.Fprintf(&b, "- ID: `%s`\n", rec.ID)
		fmt.Fprintf(&b, "- Target: %s\n", rec.Target)
		fmt.Fprintf(&b, "- When: %s\n", rec.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "- Duration: %dms, cached: %t, pooled: %t\n", rec.DurationMs, rec.CacheHit, rec.Pooled)
		if !rec.Success {
			fmt.Fprintf(&b, "- Failed: %s\n", rec.ErrorKind)
			continue
		}
		fmt.Fprintf(&b, "\n%s\n", rec.Answer)
	}
	return b.String()
}
