package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Swap Engine Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Window: %d .. %d (ms)\n\n", r.WindowStart, r.WindowEnd))

	// Revenue Summary
	sb.WriteString("## Revenue Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Revenue | %.2f |\n", r.RevenueSummary.TotalRevenue))
	sb.WriteString(fmt.Sprintf("| Swaps | %d |\n", r.RevenueSummary.SwapCount))
	sb.WriteString("\n")

	if len(r.RevenueSummary.ByBucket) > 0 {
		sb.WriteString("### Revenue by Bucket\n\n")
		sb.WriteString("| Bucket | Revenue |\n")
		sb.WriteString("|--------|--------|\n")
		for _, b := range r.RevenueSummary.ByBucket {
			sb.WriteString(fmt.Sprintf("| %s | %.2f |\n", b.Bucket, b.Revenue))
		}
		sb.WriteString("\n")
	}

	// Revenue by Tier
	sb.WriteString("## Revenue by Tier\n\n")
	if len(r.RevenueByTier) > 0 {
		sb.WriteString("| Tier | Revenue | Swaps |\n")
		sb.WriteString("|------|---------|-------|\n")
		for _, t := range r.RevenueByTier {
			sb.WriteString(fmt.Sprintf("| %s | %.2f | %d |\n", t.Tier, t.Revenue, t.SwapCount))
		}
	} else {
		sb.WriteString("No revenue recorded in window.\n")
	}
	sb.WriteString("\n")

	// Provider Performance
	sb.WriteString("## Provider Performance\n\n")
	if len(r.Providers) > 0 {
		sb.WriteString("| Provider | Checks | Executes | Failures | SuccessRate | AvgLatency(ms) |\n")
		sb.WriteString("|----------|--------|----------|----------|-------------|----------------|\n")
		for _, p := range r.Providers {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.4f | %.1f |\n",
				p.Provider, p.Checks, p.Executes, p.Failures, p.SuccessRate, p.AvgLatencyMs))
		}
	} else {
		sb.WriteString("No provider attempts recorded in window.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
