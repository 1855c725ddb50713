package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/internal/flow"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const (
	ruleHeavy = "═══════════════════════════════════════════════════════════"
	ruleLight = "───────────────────────────────────────────────────────────"
)

// PrintFlowHeader prints a formatted flow header
func PrintFlowHeader(title, flowID string, lines map[string]string) {
	fmt.Println()
	fmt.Println(ruleHeavy)
	fmt.Printf("  %s\n", title)
	fmt.Println(ruleLight)
	fmt.Printf("  Flow ID   : %s\n", flowID)
	for _, k := range []string{"Source", "Symbols", "Date", "Market", "Scoring"} {
		if v, ok := lines[k]; ok && v != "" {
			fmt.Printf("  %-10s: %s\n", k, v)
		}
	}
	fmt.Println(ruleLight)
}

// PrintFlowStatus prints a flow and its job breakdown
func PrintFlowStatus(f *contracts.FlowExecution) {
	view := flow.NewStatusView(f)

	fmt.Printf("%s  %s  %s  %d/%d jobs (%d%%)\n",
		stateIcon(f.State), f.ID, f.State, f.CompletedJobs, f.TotalJobs, view.ProgressPct)
	if f.Error != "" {
		fmt.Printf("   error: %s\n", f.Error)
	}

	if len(f.Jobs) == 0 {
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "   JOB\tSTATE\tDURATION\tSUMMARY")
	for _, j := range f.Jobs {
		fmt.Fprintf(tw, "   %s\t%s\t%s\t%s\n", j.Name, j.State, jobDuration(j), jobSummary(j))
	}
	tw.Flush()
}

// PrintFlowCompletion prints the final line for a finished flow
func PrintFlowCompletion(f *contracts.FlowExecution, started time.Time) {
	fmt.Println()
	switch f.State {
	case contracts.FlowCompleted:
		fmt.Printf("✅ Flow %s completed in %.2fs\n", f.ID, time.Since(started).Seconds())
	case contracts.FlowCancelled:
		fmt.Printf("⏹  Flow %s cancelled\n", f.ID)
	default:
		fmt.Printf("❌ Flow %s %s: %s\n", f.ID, f.State, f.Error)
	}
}

func stateIcon(s contracts.FlowState) string {
	switch s {
	case contracts.FlowCompleted:
		return "✅"
	case contracts.FlowFailed:
		return "❌"
	case contracts.FlowCancelled:
		return "⏹ "
	case contracts.FlowRunning:
		return "⏳"
	default:
		return "• "
	}
}

func jobDuration(j *contracts.JobExecution) string {
	if !j.StartedAt.Valid || !j.CompletedAt.Valid {
		return "-"
	}
	return j.CompletedAt.Time.Sub(j.StartedAt.Time).Round(time.Millisecond).String()
}

// jobSummary renders the numeric fields of a job result payload
func jobSummary(j *contracts.JobExecution) string {
	if j.Error != "" {
		return j.Error
	}
	if len(j.Result) == 0 {
		return ""
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(j.Result, &fields); err != nil {
		return ""
	}

	var parts []string
	for _, k := range []string{"processed", "succeeded", "failed", "total", "updated", "error_count"} {
		if v, ok := fields[k].(float64); ok {
			parts = append(parts, fmt.Sprintf("%s=%d", k, int(v)))
		}
	}
	return strings.Join(parts, " ")
}
