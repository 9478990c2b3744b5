package internal_session

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Session status constants. Transitions are monotonic:
// recording → ended → completed, with failed as a terminal branch off ended.
const (
	StatusRecording = "recording" // Live: turns and audio refs are being appended
	StatusEnded     = "ended"     // Client ended the conversation, mix pending
	StatusCompleted = "completed" // Mixed artifact published
	StatusFailed    = "failed"    // Mixing failed terminally
)

// statusRank orders the lifecycle so regressions can be rejected.
var statusRank = map[string]int{
	StatusRecording: 0,
	StatusEnded:     1,
	StatusCompleted: 2,
	StatusFailed:    2,
}

// User audio format tags. The client reports the container it recorded with at
// session start; the tag is immutable afterwards. mp4 (iOS Safari / mobile
// recorders) cannot be fed to the mixer directly and is transcoded first.
const (
	FormatWav  = "wav"
	FormatWebm = "webm"
	FormatMp4  = "mp4"
)

// Track names inside a session's AudioUrls map.
const (
	TrackUser  = "user"
	TrackBot   = "bot"
	TrackMixed = "mixed"
)

// Turn is one conversational exchange entry: who spoke, what was said, when.
type Turn struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Turns is the append-only turn sequence, persisted as a JSONB column.
type Turns []Turn

func (t Turns) Value() (driver.Value, error) {
	return json.Marshal(t)
}

func (t *Turns) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	case nil:
		*t = nil
		return nil
	}
	return fmt.Errorf("unsupported turns column type %T", value)
}

// AudioUrls maps track name (user, bot, mixed) to its blob reference.
type AudioUrls map[string]string

func (a AudioUrls) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *AudioUrls) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	case nil:
		*a = nil
		return nil
	}
	return fmt.Errorf("unsupported audio urls column type %T", value)
}

// Session is one recorded tutoring conversation, identified jointly by
// (sessionId, userId). Created by the recorder, completed by the mixer.
// Rows are never deleted by this service.
type Session struct {
	Id              uint64    `json:"id" gorm:"type:bigint;primaryKey;autoIncrement;<-:create"`
	SessionID       string    `json:"sessionId" gorm:"column:session_id;type:varchar(36);not null;uniqueIndex:idx_sessions_session_user"`
	UserID          string    `json:"userId" gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:idx_sessions_session_user"`
	Status          string    `json:"status" gorm:"column:status;type:varchar(20);not null;default:recording"`
	Level           string    `json:"level" gorm:"column:level;type:varchar(10);not null;default:''"`
	UserAudioFormat string    `json:"userAudioFormat" gorm:"column:user_audio_format;type:varchar(10);not null;default:wav;<-:create"`
	AudioUrls       AudioUrls `json:"audioUrls" gorm:"column:audio_urls;type:jsonb"`
	Turns           Turns     `json:"turns" gorm:"column:turns;type:jsonb"`
	CreatedDate     time.Time `json:"createdDate" gorm:"type:timestamp;not null;<-:create"`
	UpdatedDate     time.Time `json:"updatedDate" gorm:"type:timestamp;default:null"`
}

func (Session) TableName() string {
	return "conversation_sessions"
}

func (s *Session) BeforeCreate(tx *gorm.DB) (err error) {
	if s.CreatedDate.IsZero() {
		s.CreatedDate = time.Now()
	}
	return nil
}

// CanTransition reports whether moving to the given status keeps the
// lifecycle monotonic.
func (s *Session) CanTransition(to string) bool {
	from, ok := statusRank[s.Status]
	if !ok {
		return false
	}
	target, ok := statusRank[to]
	if !ok {
		return false
	}
	return target > from
}

// IsRecording reports whether the session still accepts appends.
func (s *Session) IsRecording() bool {
	return s.Status == StatusRecording
}

// UserTrackBlob is the blob name of the raw user audio, extension carrying
// the format the client recorded with.
func (s *Session) UserTrackBlob() string {
	return fmt.Sprintf("%s/%s/user_audio.%s", s.UserID, s.SessionID, s.UserAudioFormat)
}

// BotTrackBlob is the blob name of the synthesized bot audio (canonical wav).
func (s *Session) BotTrackBlob() string {
	return fmt.Sprintf("%s/%s/bot_audio.wav", s.UserID, s.SessionID)
}

// MixedBlob is the blob name of the combined output (canonical mp3).
func (s *Session) MixedBlob() string {
	return fmt.Sprintf("%s/%s/mixed_audio.mp3", s.UserID, s.SessionID)
}
