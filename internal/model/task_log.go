package model

import (
	"time"

	"gorm.io/datatypes"
)

// PhaseTimings is the per-phase breakdown of one HTTP fetch, in milliseconds.
type PhaseTimings struct {
	DNS       int64 `json:"dns"`
	TCP       int64 `json:"tcp"`
	TLS       int64 `json:"tls"`
	Wait      int64 `json:"wait"`
	Request   int64 `json:"request"`
	FirstByte int64 `json:"first_byte"`
	Download  int64 `json:"download"`
	Total     int64 `json:"total"`
}

// TaskLog records one execution of a task. Created only by the fetch
// pipeline, immutable afterwards.
type TaskLog struct {
	ID           uint                             `gorm:"primaryKey"`
	TaskID       string                           `gorm:"type:uuid;not null;index"`
	Method       string                           `gorm:"type:varchar(10);not null"`
	URL          string                           `gorm:"type:text;not null"`
	StatusCode   int                              `gorm:"default:0"`
	DurationMs   int64                            `gorm:"default:0"`
	ResponseSize int64                            `gorm:"default:0"`
	ScheduledAt  time.Time
	ExecutedAt   time.Time
	Timings      datatypes.JSONType[PhaseTimings] `gorm:"type:jsonb"`
	RequestBody  string                           `gorm:"type:text"`
	ResponseBody string                           `gorm:"type:text"`
	WorkerID     string                           `gorm:"type:varchar(255)"`
	ErrorMessage string                           `gorm:"type:text"`
	CreatedAt    time.Time                        `gorm:"autoCreateTime"`
}

func (TaskLog) TableName() string {
	return "task_logs"
}

// Jitter is the delay between the schedule fire time and the actual
// execution time.
func (l *TaskLog) Jitter() time.Duration {
	return l.ExecutedAt.Sub(l.ScheduledAt)
}
