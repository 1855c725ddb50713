package flow

import "github.com/wonny/canslim-screener/internal/contracts"

// StatusView is a flow with a derived progress percentage, as pushed to pollers
type StatusView struct {
	*contracts.FlowExecution
	ProgressPct int  `json:"progress_pct"`
	Terminal    bool `json:"terminal"`
}

// NewStatusView wraps a flow read by Service.Status
func NewStatusView(f *contracts.FlowExecution) StatusView {
	v := StatusView{FlowExecution: f, Terminal: f.State.IsTerminal()}
	if f.TotalJobs > 0 {
		v.ProgressPct = f.CompletedJobs * 100 / f.TotalJobs
	}
	if f.State == contracts.FlowCompleted {
		v.ProgressPct = 100
	}
	return v
}
