package meetings

// stageOrder positions each status along the pipeline. Failed sits outside
// the ordering; it is reachable from anywhere and leaves only via retry.
var stageOrder = map[Status]int{
	StatusRecording:    0,
	StatusUploading:    1,
	StatusQueued:       2,
	StatusConverting:   3,
	StatusTranscribing: 4,
	StatusReady:        5,
}

// CanTransition reports whether a meeting may move from one status to
// another. Forward moves (including skips, e.g. uploading straight to ready
// when no user is available for diarization) and jumps to failed are legal;
// the only backward edge is the explicit failed -> queued retry.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if to == StatusFailed {
		return from != StatusFailed
	}
	if from == StatusFailed {
		return to == StatusQueued
	}

	fromOrder, ok := stageOrder[from]
	if !ok {
		return false
	}
	toOrder, ok := stageOrder[to]
	if !ok {
		return false
	}
	return toOrder > fromOrder
}

// IsTerminal reports whether a status ends the pipeline for this run.
func IsTerminal(s Status) bool {
	return s == StatusReady || s == StatusFailed
}

// AllStatuses lists every reachable meeting status.
func AllStatuses() []Status {
	return []Status{
		StatusRecording,
		StatusUploading,
		StatusQueued,
		StatusConverting,
		StatusTranscribing,
		StatusReady,
		StatusFailed,
	}
}
