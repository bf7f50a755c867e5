package agent

func humanizeReason(s State) string {
	switch s {
	case StateCompleted:
		return "model reported the objective as done"
	case StateStopped:
		return "stopped on request"
	case StateFailed:
		return "iteration limit reached without completion"
	default:
		return s.String()
	}
}
