package conversation

// State is where the controller is in handling a submission.
type State string

const (
	StateIdle                 State = "Idle"
	StateCheckingConnectivity State = "CheckingConnectivity"
	StateDraining             State = "Draining"
	StateProcessingNew        State = "ProcessingNew"
	StatePersisted            State = "Persisted"
)

func (s State) String() string {
	return string(s)
}
