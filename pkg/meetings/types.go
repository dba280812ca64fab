// Package meetings holds the persisted domain model for recorded
// consultations: the meeting record and its lifecycle state machine, the
// authoritative transcript segments, the processing job tracker, and the
// structured AI output.
package meetings

import (
	"time"

	"github.com/google/uuid"
)

// Status is the authoritative lifecycle state on a meeting record.
// It only ever moves forward through the pipeline or jumps to failed;
// a failed meeting may be retried, which re-enters at queued.
type Status string

const (
	StatusRecording    Status = "recording"
	StatusUploading    Status = "uploading"
	StatusQueued       Status = "queued"
	StatusConverting   Status = "converting"
	StatusTranscribing Status = "transcribing"
	StatusReady        Status = "ready"
	StatusFailed       Status = "failed"
)

// SpeakerLabel is the attributed role of a transcript segment.
type SpeakerLabel string

const (
	SpeakerLawyer  SpeakerLabel = "LAWYER"
	SpeakerClient  SpeakerLabel = "CLIENT"
	SpeakerOther   SpeakerLabel = "OTHER"
	SpeakerUnknown SpeakerLabel = "UNKNOWN"
)

// Certainty tags an extracted item as stated outright or inferred.
type Certainty string

const (
	CertaintyExplicit Certainty = "explicit"
	CertaintyUnclear  Certainty = "unclear"
)

// Meeting is one recorded conversation.
type Meeting struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Title            string
	Status           Status
	DurationSeconds  int
	ExpectedSpeakers int
	RawAudioPath     *string
	RawAudioFormat   *string
	MP3AudioPath     *string
	StreamingUsed    bool
	ErrorMessage     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TranscriptSegment is an authoritative, speaker-attributed slice of the
// full transcript, produced by the batch pipeline.
type TranscriptSegment struct {
	ID                int64
	MeetingID         uuid.UUID
	SpeakerLabel      SpeakerLabel
	SpeakerName       *string
	Text              string
	StartMs           int64
	EndMs             int64
	Confidence        float64
	IsStreamingResult bool
}

// JobStatus tracks pipeline execution independently of the meeting status.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// ProcessingJob is the per-meeting pipeline tracker.
type ProcessingJob struct {
	MeetingID uuid.UUID
	Status    JobStatus
	Step      string
	Attempts  int
	LastError *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AttributedItem is one extracted statement tagged with the role it came from.
type AttributedItem struct {
	Text      string       `json:"text"`
	Role      SpeakerLabel `json:"role"`
	Certainty Certainty    `json:"certainty"`
}

// Overview is the one-sentence summary plus participants and topics.
type Overview struct {
	Summary      string   `json:"summary"`
	Participants []string `json:"participants"`
	Topics       []string `json:"topics"`
}

// AIOutput is the structured extraction produced by the summarize stage,
// one record per meeting.
type AIOutput struct {
	MeetingID     uuid.UUID        `json:"meeting_id"`
	Overview      Overview         `json:"overview"`
	KeyFacts      []AttributedItem `json:"key_facts"`
	LegalIssues   []AttributedItem `json:"legal_issues"`
	Decisions     []AttributedItem `json:"decisions"`
	Risks         []AttributedItem `json:"risks"`
	FollowUps     []AttributedItem `json:"follow_ups"`
	OpenQuestions []AttributedItem `json:"open_questions"`
}

// TaskPriority ranks an extracted actionable task.
type TaskPriority string

const (
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityLow    TaskPriority = "low"
)

// Task is one actionable item extracted by the summarize stage.
type Task struct {
	ID        int64
	MeetingID uuid.UUID
	Title     string
	Priority  TaskPriority
	OwnerRole SpeakerLabel
	Deadline  *time.Time
}

// ParseSpeakerLabel normalizes a free-form role string, defaulting to UNKNOWN.
func ParseSpeakerLabel(s string) SpeakerLabel {
	switch SpeakerLabel(s) {
	case SpeakerLawyer, SpeakerClient, SpeakerOther, SpeakerUnknown:
		return SpeakerLabel(s)
	default:
		return SpeakerUnknown
	}
}
