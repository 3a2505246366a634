package orchestrator

// State is a phase of a launcher run. Runs move strictly forward.
type State int

const (
	Idle State = iota
	HelpersStarting
	MainStarting
	MainRunning
	Teardown
	FollowUp
	ShuttingDown
	Terminal
)

var stateNames = [...]string{
	Idle:            "idle",
	HelpersStarting: "helpers_starting",
	MainStarting:    "main_starting",
	MainRunning:     "main_running",
	Teardown:        "teardown",
	FollowUp:        "followup",
	ShuttingDown:    "shutting_down",
	Terminal:        "terminal",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
