package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// writeEnvTemplate emits a .env.template next to the missing .env file,
// enumerating every catalog variable grouped by category. One-time
// convenience: failure to write is reported but never fails a load.
func (m *Manager) writeEnvTemplate() error {
	if m.envPath == "" {
		return nil
	}
	templatePath := filepath.Join(filepath.Dir(m.envPath), ".env.template")
	if _, err := os.Stat(templatePath); err == nil {
		return nil // already emitted
	}

	var b strings.Builder
	b.WriteString("# Garimpo configuration template\n")
	b.WriteString("# Copy to .env and fill in values. Secrets are masked.\n")

	var lastCategory Category
	for _, v := range Catalog {
		if v.Category != lastCategory {
			fmt.Fprintf(&b, "\n# --- %s ---\n", v.Category)
			lastCategory = v.Category
		}
		if v.Description != "" {
			fmt.Fprintf(&b, "# %s", v.Description)
			if v.Required {
				b.WriteString(" (required)")
			}
			b.WriteString("\n")
		}
		placeholder := v.Default
		if v.Secret {
			placeholder = "********"
		}
		fmt.Fprintf(&b, "%s=%s\n", v.Name, placeholder)
	}

	if err := os.WriteFile(templatePath, []byte(b.String()), 0644); err != nil {
		return err
	}
	m.logger.Info().Str("path", templatePath).Msg("Wrote .env.template")
	return nil
}
