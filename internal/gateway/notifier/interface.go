package notifier

import "crossguard/internal/logger"

// TextNotifier sends one rendered message. Implementations must be safe for concurrent use.
type TextNotifier interface {
	SendText(text string) error
}

// LogNotifier writes messages to the process log; used when no chat is configured.
type LogNotifier struct{}

func (LogNotifier) SendText(text string) error {
	logger.Infof("[notify]\n%s", text)
	return nil
}
