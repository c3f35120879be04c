// Package notifier sends desktop notifications when a pipeline finishes
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/leyden/aotctl/pkg/logger"
	"github.com/leyden/aotctl/pkg/types"
)

// SendFunc delivers a notification
type SendFunc func(title, message string) error

// Notifier reports pipeline outcomes
type Notifier struct {
	enabled bool
	send    SendFunc
	logger  logger.Logger
}

// Config represents notification configuration
type Config struct {
	Enabled bool
}

// New creates a notifier backed by beeep
func New(config Config, log logger.Logger) *Notifier {
	return NewWithSender(config, log, func(title, message string) error {
		return beeep.Notify(title, message, "")
	})
}

// NewWithSender creates a notifier with a custom delivery function
func NewWithSender(config Config, log logger.Logger, send SendFunc) *Notifier {
	if log == nil {
		log = logger.Discard()
	}
	return &Notifier{
		enabled: config.Enabled,
		send:    send,
		logger:  log,
	}
}

// NotifySuccess reports that the pipeline reached target
func (n *Notifier) NotifySuccess(target types.StageName, duration time.Duration) {
	n.notify("✅ AOT "+string(target)+" succeeded", fmt.Sprintf("Finished in %s", formatDuration(duration)))
}

// NotifyFailure reports the stage that stopped the pipeline
func (n *Notifier) NotifyFailure(stage types.StageName, err error) {
	n.notify("❌ AOT "+string(stage)+" failed", err.Error())
}

// NotifyBenchmark reports a finished benchmark
func (n *Notifier) NotifyBenchmark(duration time.Duration, classesLoaded int) {
	n.notify("⏱ Startup benchmark", fmt.Sprintf("%s, %d classes loaded", formatDuration(duration), classesLoaded))
}

func (n *Notifier) notify(title, message string) {
	if n == nil || !n.enabled || n.send == nil {
		return
	}
	if err := n.send(title, message); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
