package models

// State is the tagged form of a job's status. The concrete types carry exactly
// the fields that exist in that status.
type State interface {
	Status() Status
	isState()
}

type Queued struct{}

type Processing struct{}

type Completed struct {
	ResultURL  string
	ResultPath string
}

type Failed struct {
	ErrorMessage string
}

func (Queued) Status() Status     { return StatusQueued }
func (Processing) Status() Status { return StatusProcessing }
func (Completed) Status() Status  { return StatusCompleted }
func (Failed) Status() Status     { return StatusFailed }

func (Queued) isState()     {}
func (Processing) isState() {}
func (Completed) isState()  {}
func (Failed) isState()     {}

// State converts the job into its tagged variant. A job whose fields violate the
// status invariants yields a *ContractViolation alongside the closest usable state:
// a completed job without a result degrades to Failed, a failed job without a
// message keeps an empty ErrorMessage.
func (j Job) State() (State, error) {
	verr := j.Validate()
	switch j.Status {
	case StatusQueued:
		return Queued{}, verr
	case StatusProcessing:
		return Processing{}, verr
	case StatusCompleted:
		if !present(j.ResultURL) {
			return Failed{}, verr
		}
		st := Completed{ResultURL: *j.ResultURL}
		if j.ResultPath != nil {
			st.ResultPath = *j.ResultPath
		}
		return st, verr
	case StatusFailed:
		st := Failed{}
		if j.ErrorMessage != nil {
			st.ErrorMessage = *j.ErrorMessage
		}
		return st, verr
	}
	return Failed{}, verr
}
