package entities

import (
	"strings"
	"time"
)

type QuestType string

const (
	QuestSinglePhoto     QuestType = "single_photo"
	QuestTwoPhotoChange  QuestType = "two_photo_change"
	QuestCheckInIdentity QuestType = "check_in_identity"
)

type SubmissionStatus string

const (
	SubmissionStatusPending     SubmissionStatus = "pending"
	SubmissionStatusNeedsReview SubmissionStatus = "needs_human_review"
	SubmissionStatusRejected    SubmissionStatus = "rejected"
	SubmissionStatusApproved    SubmissionStatus = "approved"
)

// Terminal reports whether the status is absorbing. Approved and rejected
// submissions never transition again.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionStatusApproved || s == SubmissionStatusRejected
}

type GeoPoint struct {
	Lat float64
	Lng float64
}

type Photo struct {
	URL     string
	GPS     *GeoPoint
	TakenAt time.Time
}

type TraceKind string

const (
	TraceKindGeofence     TraceKind = "geofence"
	TraceKindTiming       TraceKind = "timing"
	TraceKindContentScore TraceKind = "content_score"
	TraceKindDecision     TraceKind = "decision"
	TraceKindJury         TraceKind = "jury"
)

// TraceStep is one entry of the append-only verification trace. Steps are
// never rewritten once appended.
type TraceStep struct {
	Kind       TraceKind `json:"kind"`
	Name       string    `json:"name"`
	Passed     bool      `json:"passed"`
	Detail     string    `json:"detail"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Submission struct {
	SubmissionID string
	CampaignID   string
	CheckpointID string
	OwnerID      string
	QuestType    QuestType
	Photos       []Photo
	BeforeAt     time.Time
	AfterAt      time.Time
	Status       SubmissionStatus
	Confidence   *int
	Trace        []TraceStep
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s *Submission) AppendTrace(steps ...TraceStep) {
	s.Trace = append(s.Trace, steps...)
}

func (s Submission) ValidateCreate() bool {
	if strings.TrimSpace(s.CampaignID) == "" ||
		strings.TrimSpace(s.OwnerID) == "" {
		return false
	}
	if len(s.Photos) != RequiredPhotoCount(s.QuestType) {
		return false
	}
	for _, photo := range s.Photos {
		if strings.TrimSpace(photo.URL) == "" {
			return false
		}
	}
	return true
}

// RequiredPhotoCount returns the photo cardinality a quest type demands.
func RequiredPhotoCount(quest QuestType) int {
	if quest == QuestTwoPhotoChange {
		return 2
	}
	return 1
}

func IsValidQuestType(quest QuestType) bool {
	switch quest {
	case QuestSinglePhoto, QuestTwoPhotoChange, QuestCheckInIdentity:
		return true
	default:
		return false
	}
}

// Checkpoint is the geofence anchor a submission is validated against.
// Owned by campaign management; read-only inside the verification core.
type Checkpoint struct {
	CheckpointID string
	CampaignID   string
	Name         string
	Lat          float64
	Lng          float64
	RadiusMeters float64
}
