package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/codegen/pkg/models"
)

func formatSummary(rows []models.UsageSummary) string {
	if len(rows) == 0 {
		return "No usage data found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %-25s %8s %10s %10s %10s\n",
		"Key", "Model", "Requests", "Prompt", "Completion", "Total")
	b.WriteString(strings.Repeat("-", 84) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-16s %-25s %8d %10d %10d %10d\n",
			r.Fingerprint, r.Model, r.RequestCount, r.TotalPrompt, r.TotalCompletion, r.TotalTokens)
	}
	return b.String()
}

func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics (%s)\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Backend, stats.Entries, stats.Hits, stats.Misses, hitRate)
}

func formatHistory(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No history entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-10s %6s %-40s\n", "Time", "Result", "Cached", "Prompt")
	b.WriteString(strings.Repeat("-", 80) + "\n")
	for _, e := range entries {
		result := "ok"
		if e.ErrorKind != "" {
			result = e.ErrorKind
		}
		prompt := strings.Join(strings.Fields(e.Prompt), " ")
		if len(prompt) > 40 {
			prompt = prompt[:37] + "..."
		}
		fmt.Fprintf(&b, "%-20s %-10s %6t %-40s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), result, e.Cached, prompt)
	}
	return b.String()
}
