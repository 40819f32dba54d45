package dto

import (
	"cronfetch/internal/model"

	"gorm.io/datatypes"
)

type CreateTaskRequest struct {
	Name              string            `json:"name" validate:"required,max=255"`
	Method            string            `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD"`
	URL               string            `json:"url" validate:"required,url"`
	Headers           map[string]string `json:"headers"`
	Body              string            `json:"body"`
	Cron              string            `json:"cron" validate:"required"`
	Timezone          string            `json:"timezone"`
	IsEnable          *bool             `json:"is_enable"`
	StopAfterFailures int               `json:"stop_after_failures" validate:"min=0"`
	NotifyChannels    []string          `json:"notify_channels" validate:"dive,oneof=telegram discord"`
}

func (r *CreateTaskRequest) ToModel(userID string) *model.Task {
	enabled := true
	if r.IsEnable != nil {
		enabled = *r.IsEnable
	}
	return &model.Task{
		UserID:            userID,
		Name:              r.Name,
		Method:            r.Method,
		URL:               r.URL,
		Headers:           datatypes.NewJSONType(r.Headers),
		Body:              r.Body,
		Cron:              r.Cron,
		Timezone:          r.Timezone,
		IsEnable:          enabled,
		StopAfterFailures: r.StopAfterFailures,
		NotifyChannels:    datatypes.NewJSONSlice(r.NotifyChannels),
	}
}

type UpdateTaskRequest struct {
	Name              string            `json:"name" validate:"required,max=255"`
	Method            string            `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD"`
	URL               string            `json:"url" validate:"required,url"`
	Headers           map[string]string `json:"headers"`
	Body              string            `json:"body"`
	Cron              string            `json:"cron" validate:"required"`
	Timezone          string            `json:"timezone"`
	IsEnable          bool              `json:"is_enable"`
	StopAfterFailures int               `json:"stop_after_failures" validate:"min=0"`
	NotifyChannels    []string          `json:"notify_channels" validate:"dive,oneof=telegram discord"`
}

func (r *UpdateTaskRequest) ToModel(id string) *model.Task {
	return &model.Task{
		ID:                id,
		Name:              r.Name,
		Method:            r.Method,
		URL:               r.URL,
		Headers:           datatypes.NewJSONType(r.Headers),
		Body:              r.Body,
		Cron:              r.Cron,
		Timezone:          r.Timezone,
		IsEnable:          r.IsEnable,
		StopAfterFailures: r.StopAfterFailures,
		NotifyChannels:    datatypes.NewJSONSlice(r.NotifyChannels),
	}
}

type ListTasksResponse struct {
	Tasks      []model.Task `json:"tasks"`
	NextCursor string       `json:"next_cursor,omitempty"`
}
