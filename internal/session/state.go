package session

// State is the controller state.
type State int32

const (
	Idle State = iota
	Recording
	Transcribing
	Injecting
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Injecting:
		return "injecting"
	case Error:
		return "error"
	}
	return "unknown"
}

type eventKind int

const (
	evToggle eventKind = iota
	evCancel
	evTranscribed
	evInjected
	evResetError
)
