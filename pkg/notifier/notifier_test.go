package notifier_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leyden/aotctl/pkg/notifier"
	"github.com/leyden/aotctl/pkg/types"
)

type captured struct {
	titles   []string
	messages []string
}

func (c *captured) send(title, message string) error {
	c.titles = append(c.titles, title)
	c.messages = append(c.messages, message)
	return nil
}

func TestNotifier_Success(t *testing.T) {
	c := &captured{}
	n := notifier.NewWithSender(notifier.Config{Enabled: true}, nil, c.send)

	n.NotifySuccess(types.StageRun, 1500*time.Millisecond)

	if len(c.titles) != 1 {
		t.Fatalf("expected one notification, got %d", len(c.titles))
	}
	if !strings.Contains(c.titles[0], "run succeeded") {
		t.Errorf("unexpected title %q", c.titles[0])
	}
	if c.messages[0] != "Finished in 1.5s" {
		t.Errorf("unexpected message %q", c.messages[0])
	}
}

func TestNotifier_Failure(t *testing.T) {
	c := &captured{}
	n := notifier.NewWithSender(notifier.Config{Enabled: true}, nil, c.send)

	n.NotifyFailure(types.StageAssemble, errors.New("exit code 1"))

	if len(c.titles) != 1 || !strings.Contains(c.titles[0], "assemble failed") {
		t.Fatalf("unexpected notifications %v", c.titles)
	}
	if c.messages[0] != "exit code 1" {
		t.Errorf("unexpected message %q", c.messages[0])
	}
}

func TestNotifier_Disabled(t *testing.T) {
	c := &captured{}
	n := notifier.NewWithSender(notifier.Config{Enabled: false}, nil, c.send)

	n.NotifySuccess(types.StageRun, time.Second)
	n.NotifyFailure(types.StageRecord, errors.New("boom"))
	n.NotifyBenchmark(time.Second, 10)

	if len(c.titles) != 0 {
		t.Errorf("disabled notifier sent %d notifications", len(c.titles))
	}
}

func TestNotifier_SendErrorIsSwallowed(t *testing.T) {
	n := notifier.NewWithSender(notifier.Config{Enabled: true}, nil, func(string, string) error {
		return errors.New("no notification daemon")
	})
	n.NotifyBenchmark(2*time.Minute+5*time.Second, 8123)
}

func TestNotifier_Nil(t *testing.T) {
	var n *notifier.Notifier
	n.NotifySuccess(types.StageRun, time.Second)
}
