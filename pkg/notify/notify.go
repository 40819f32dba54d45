package notify

import (
	"context"
	"errors"
	"fmt"

	"cronfetch/internal/model"
	"cronfetch/pkg/logger"
)

// Notification describes why a task owner is being contacted.
type Notification struct {
	TaskID       string
	TaskName     string
	UserID       string
	URL          string
	FailureCount int
	Reason       string
}

// Sender delivers a notification over one channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, n Notification) error
}

// Notifier fans a notification out to the channels a task opted into.
type Notifier struct {
	log     *logger.Logger
	senders map[string]Sender
}

func NewNotifier(log *logger.Logger, senders ...Sender) *Notifier {
	byChannel := make(map[string]Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &Notifier{log: log, senders: byChannel}
}

// NotifyDisabled tells the owner their task was auto-disabled. Each channel
// is attempted independently; a failing channel never blocks the others.
func (n *Notifier) NotifyDisabled(ctx context.Context, task *model.Task, failureCount int) error {
	notification := Notification{
		TaskID:       task.ID,
		TaskName:     task.Name,
		UserID:       task.UserID,
		URL:          task.URL,
		FailureCount: failureCount,
		Reason:       fmt.Sprintf("disabled after %d consecutive failed executions", failureCount),
	}

	var errs []error
	for _, channel := range task.NotifyChannels {
		sender, ok := n.senders[channel]
		if !ok {
			n.log.WarnContext(ctx, "Unknown notification channel",
				logger.StringField("channel", channel),
				logger.StringField("task_id", task.ID),
			)
			continue
		}
		if err := sender.Send(ctx, notification); err != nil {
			n.log.ErrorContext(ctx, "Failed to send notification",
				logger.ErrorField(err),
				logger.StringField("channel", channel),
				logger.StringField("task_id", task.ID),
			)
			errs = append(errs, fmt.Errorf("channel %s: %w", channel, err))
		}
	}
	return errors.Join(errs...)
}

func formatMessage(n Notification) string {
	return fmt.Sprintf(
		"Task %q (%s) was automatically disabled after %d consecutive failed executions.\nEndpoint: %s\nRe-enable it once the endpoint is healthy again.",
		n.TaskName, n.TaskID, n.FailureCount, n.URL,
	)
}
