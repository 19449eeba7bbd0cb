package reporting

import (
	"fmt"
	"strings"
)

// RenderProvidersCSV renders provider performance rows as CSV string.
func RenderProvidersCSV(rows []ProviderPerformanceRow) string {
	var sb strings.Builder

	sb.WriteString("provider,checks,executes,failures,success_rate,avg_latency_ms\n")
	for _, p := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%d,%.6f,%.1f\n",
			p.Provider, p.Checks, p.Executes, p.Failures, p.SuccessRate, p.AvgLatencyMs))
	}

	return sb.String()
}

// RenderRevenueCSV renders tier revenue rows as CSV string.
func RenderRevenueCSV(rows []TierRevenueRow) string {
	var sb strings.Builder

	sb.WriteString("tier,revenue,swap_count\n")
	for _, t := range rows {
		sb.WriteString(fmt.Sprintf("%s,%.6f,%d\n", t.Tier, t.Revenue, t.SwapCount))
	}

	return sb.String()
}
