package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	NotifyChannelTelegram = "telegram"
	NotifyChannelDiscord  = "discord"
)

type Task struct {
	ID                string                                `gorm:"type:uuid;primaryKey"`
	UserID            string                                `gorm:"type:uuid;not null;index"`
	Name              string                                `gorm:"type:varchar(255);not null"`
	Method            string                                `gorm:"type:varchar(10);not null"`
	URL               string                                `gorm:"type:text;not null"`
	Headers           datatypes.JSONType[map[string]string] `gorm:"type:jsonb"`
	Body              string                                `gorm:"type:text"`
	Cron              string                                `gorm:"type:varchar(100);not null"`
	Timezone          string                                `gorm:"type:varchar(64)"`
	IsEnable          bool                                  `gorm:"default:true"`
	CronHistory       datatypes.JSONSlice[string]           `gorm:"type:jsonb"`
	StopAfterFailures int                                   `gorm:"default:0"`
	NotifyChannels    datatypes.JSONSlice[string]           `gorm:"type:jsonb"`
	DeletedAt         gorm.DeletedAt                        `gorm:"index"`
	CreatedAt         time.Time                             `gorm:"autoCreateTime"`
	UpdatedAt         time.Time                             `gorm:"autoUpdateTime"`
}

func (Task) TableName() string {
	return "tasks"
}

func (t *Task) IsDeleted() bool {
	return t.DeletedAt.Valid
}

// AllCronPatterns returns the current cron expression plus every previously
// active one, deduplicated. Stale queue entries may still exist for any of
// them after a reschedule.
func (t *Task) AllCronPatterns() []string {
	seen := make(map[string]struct{}, len(t.CronHistory)+1)
	patterns := make([]string, 0, len(t.CronHistory)+1)
	for _, p := range append([]string{t.Cron}, t.CronHistory...) {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		patterns = append(patterns, p)
	}
	return patterns
}

// ScheduleFieldsChanged reports whether any field that is baked into the
// queued job payload differs between the two snapshots. Any such change
// forces a full stop+start cycle so the entry payload stays fresh.
func (t *Task) ScheduleFieldsChanged(other *Task) bool {
	if t.IsEnable != other.IsEnable ||
		t.URL != other.URL ||
		t.Method != other.Method ||
		t.Cron != other.Cron ||
		t.Body != other.Body ||
		t.Timezone != other.Timezone {
		return true
	}
	return !headersEqual(t.Headers.Data(), other.Headers.Data())
}

func headersEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

type GetTaskParam struct {
	UserID        *string
	IsEnable      *bool
	Name          *string
	Cursor        string
	Limit         int
	DeletedBefore *time.Time
}
