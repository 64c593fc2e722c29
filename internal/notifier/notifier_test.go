package notifier

import (
	"context"
	"errors"
	"testing"

	"firewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeNotifier 记录调用并按接收人返回预设错误
type fakeNotifier struct {
	calls   []string
	failFor map[string]error
}

func (f *fakeNotifier) Notify(_ context.Context, recipient *models.Firefighter, _ *models.Alert, _ bool) error {
	f.calls = append(f.calls, recipient.FirefighterID)
	if f.failFor != nil {
		return f.failFor[recipient.FirefighterID]
	}
	return nil
}

func testRecipients(ids ...string) []*models.Firefighter {
	recipients := make([]*models.Firefighter, 0, len(ids))
	for _, id := range ids {
		recipients = append(recipients, &models.Firefighter{FirefighterID: id})
	}
	return recipients
}

func TestDispatch_AllSucceed(t *testing.T) {
	fake := &fakeNotifier{}
	d := NewDispatcher(zap.NewNop(), fake)
	alert := &models.Alert{AlertID: "alert-1", Type: models.AlertFallDetected}

	results, err := d.Dispatch(context.Background(), testRecipients("a", "b", "c"), alert, false)

	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
	assert.Equal(t, []string{"a", "b", "c"}, fake.calls)
}

func TestDispatch_FailureIsolatedPerRecipient(t *testing.T) {
	// b 发送失败不影响 a、c
	fake := &fakeNotifier{failFor: map[string]error{"b": errors.New("smtp timeout")}}
	d := NewDispatcher(zap.NewNop(), fake)
	alert := &models.Alert{AlertID: "alert-1", Type: models.AlertFallDetected}

	results, err := d.Dispatch(context.Background(), testRecipients("a", "b", "c"), alert, false)

	require.Error(t, err)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, []string{"a", "b", "c"}, fake.calls)
}

func TestDispatch_MultipleChannels(t *testing.T) {
	// 两个渠道都向每名接收人发送；单渠道失败时合并到该接收人的结果中
	ok := &fakeNotifier{}
	failing := &fakeNotifier{failFor: map[string]error{"a": errors.New("broker down")}}
	d := NewDispatcher(zap.NewNop(), ok, failing)
	alert := &models.Alert{AlertID: "alert-1", Type: models.AlertFallDetected}

	results, err := d.Dispatch(context.Background(), testRecipients("a", "b"), alert, true)

	require.Error(t, err)
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, []string{"a", "b"}, ok.calls)
}

func TestDispatch_NoRecipients(t *testing.T) {
	fake := &fakeNotifier{}
	d := NewDispatcher(zap.NewNop(), fake)
	alert := &models.Alert{AlertID: "alert-1", Type: models.AlertFallDetected}

	results, err := d.Dispatch(context.Background(), nil, alert, false)

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, fake.calls)
}

func TestShoutrrrNotifier_SkipsEmptyURL(t *testing.T) {
	n := NewShoutrrrNotifier(zap.NewNop())
	alert := &models.Alert{AlertID: "alert-1", Title: "Fall detected"}

	err := n.Notify(context.Background(), &models.Firefighter{FirefighterID: "ff-001"}, alert, false)
	assert.NoError(t, err)
}

func TestFormatAlertMessage(t *testing.T) {
	alert := &models.Alert{
		FirefighterID:   "ff-001",
		Severity:        models.SeverityCritical,
		Title:           "Fall detected",
		Message:         "Impact of 25.5g detected",
		EscalationLevel: 2,
	}

	msg := formatAlertMessage(alert, false)
	assert.Contains(t, msg, "[ALERT]")
	assert.Contains(t, msg, "Fall detected")
	assert.Contains(t, msg, "ff-001")

	escalated := formatAlertMessage(alert, true)
	assert.Contains(t, escalated, "ESCALATED (level 2)")
}

// fakePublisher 内存版 MQTT 发布器
type fakePublisher struct {
	topics    []string
	payloads  [][]byte
	connected bool
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *fakePublisher) IsConnected() bool { return p.connected }

func TestMQTTNotifier_PublishesPerRecipientTopic(t *testing.T) {
	pub := &fakePublisher{connected: true}
	n := NewMQTTNotifier(pub, zap.NewNop())
	alert := &models.Alert{
		AlertID:       "alert-1",
		FirefighterID: "ff-001",
		Type:          models.AlertFallDetected,
		Severity:      models.SeverityCritical,
		Priority:      9,
		Title:         "Fall detected",
	}

	err := n.Notify(context.Background(), &models.Firefighter{FirefighterID: "cmd-1"}, alert, false)

	require.NoError(t, err)
	require.Len(t, pub.topics, 1)
	assert.Equal(t, "firewatch/notify/cmd-1", pub.topics[0])
	assert.Contains(t, string(pub.payloads[0]), `"alert_id":"alert-1"`)
}

func TestMQTTNotifier_Disconnected(t *testing.T) {
	pub := &fakePublisher{connected: false}
	n := NewMQTTNotifier(pub, zap.NewNop())
	alert := &models.Alert{AlertID: "alert-1"}

	err := n.Notify(context.Background(), &models.Firefighter{FirefighterID: "cmd-1"}, alert, false)
	assert.Error(t, err)
	assert.Empty(t, pub.topics)
}
