package judge

import "strconv"

// StatusID is the numeric status reported by a Judge0-compatible server.
type StatusID int

const (
	StatusInQueue             StatusID = 1
	StatusProcessing          StatusID = 2
	StatusAccepted            StatusID = 3
	StatusWrongAnswer         StatusID = 4
	StatusTimeLimitExceeded   StatusID = 5
	StatusCompilationError    StatusID = 6
	StatusRuntimeError        StatusID = 7
	StatusMemoryLimitExceeded StatusID = 8
	StatusOutputLimitExceeded StatusID = 9
	StatusInternalError       StatusID = 10
)

var statusDescriptions = map[StatusID]string{
	StatusInQueue:             "In Queue",
	StatusProcessing:          "Processing",
	StatusAccepted:            "Accepted",
	StatusWrongAnswer:         "Wrong Answer",
	StatusTimeLimitExceeded:   "Time Limit Exceeded",
	StatusCompilationError:    "Compilation Error",
	StatusRuntimeError:        "Runtime Error",
	StatusMemoryLimitExceeded: "Memory Limit Exceeded",
	StatusOutputLimitExceeded: "Output Limit Exceeded",
	StatusInternalError:       "Internal Error",
}

// Pending statuses mean the judge has not finished; keep polling.
func (s StatusID) Pending() bool {
	return s == StatusInQueue || s == StatusProcessing
}

// Terminal is true for Accepted and every failure status. Ids above the known
// vocabulary are treated as failures too.
func (s StatusID) Terminal() bool {
	return s >= StatusAccepted
}

func (s StatusID) Description() string {
	if d, ok := statusDescriptions[s]; ok {
		return d
	}
	return "Status " + strconv.Itoa(int(s))
}
