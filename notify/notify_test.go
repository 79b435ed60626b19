package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadwatch/config"
)

func testConfig(t *testing.T, doc string) *config.Config {
	t.Helper()
	t.Setenv("PUSHPLUS_TOKEN", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	cfg, err := config.LoadConfigFromBytes([]byte(doc))
	require.NoError(t, err)
	return cfg
}

func TestPushPlusSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"code":200,"msg":"ok"}`))
	}))
	defer srv.Close()

	n, err := NewPushPlusNotifier(testConfig(t, "notifications: {pushplus: {token: abc}}"))
	require.NoError(t, err)
	n.url = srv.URL

	require.NoError(t, n.Send(context.Background(), "🚨 title", "line1\nline2"))
	assert.Equal(t, "abc", got["token"])
	assert.Equal(t, "html", got["template"])
	assert.Equal(t, "wechat", got["channel"])
	assert.Equal(t, "line1<br/>line2", got["content"])
}

func TestPushPlusBusinessError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":903,"msg":"invalid token"}`))
	}))
	defer srv.Close()

	n, err := NewPushPlusNotifier(testConfig(t, "notifications: {pushplus: {token: abc}}"))
	require.NoError(t, err)
	n.url = srv.URL

	err = n.Send(context.Background(), "t", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "903")

	_, err = NewPushPlusNotifier(testConfig(t, "{}"))
	assert.Error(t, err)
}

func TestTelegramSend(t *testing.T) {
	var path string
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n, err := NewTelegramNotifier(testConfig(t, "notifications: {telegram: {bot_token: tok, chat_id: '42'}}"))
	require.NoError(t, err)
	n.apiBase = srv.URL

	require.NoError(t, n.Send(context.Background(), "title", "body"))
	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "title\n\nbody", got["text"])
}

func TestWebhookStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(testConfig(t, "notifications: {webhook: {url: '"+srv.URL+"'}}"))
	require.NoError(t, err)
	err = n.Send(context.Background(), "t", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaSend(t *testing.T) {
	w := &fakeWriter{}
	n := &KafkaNotifier{writer: w, topic: "alerts"}

	require.NoError(t, n.Send(context.Background(), "title", "body"))
	require.Len(t, w.msgs, 1)
	var payload alertPayload
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &payload))
	assert.Equal(t, "title", payload.Title)
	assert.Equal(t, "body", payload.Content)

	_, err := NewKafkaNotifier(testConfig(t, "{}"))
	assert.Error(t, err)
}

type stubNotifier struct {
	name  string
	err   error
	calls atomic.Int32
}

func (s *stubNotifier) Send(context.Context, string, string) error {
	s.calls.Add(1)
	return s.err
}

func (s *stubNotifier) Name() string { return s.name }

func TestServiceIsolatesFailures(t *testing.T) {
	ok := &stubNotifier{name: "ok"}
	bad := &stubNotifier{name: "bad", err: errors.New("down")}
	ns := NewNotificationServiceWith(bad, ok)

	err := ns.Send(context.Background(), "t", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Equal(t, int32(1), ok.calls.Load())
	assert.Equal(t, int32(1), bad.calls.Load())

	assert.NoError(t, NewNotificationServiceWith().Send(context.Background(), "t", "b"))
}

func TestServiceFromConfig(t *testing.T) {
	cfg := testConfig(t, `
notifications:
  enabled: true
  pushplus: {enabled: true, token: abc}
  telegram: {enabled: true}
  webhook: {enabled: true, url: "http://localhost:9/hook"}
`)
	ns := NewNotificationService(cfg)
	// Telegram 缺少 token 被跳过
	assert.Equal(t, 2, ns.Len())
	assert.NoError(t, ns.Close())

	cfg.Notifications.Enabled = false
	assert.Equal(t, 0, NewNotificationService(cfg).Len())
}

func TestServiceReload(t *testing.T) {
	cfg := testConfig(t, `
notifications:
  enabled: true
  pushplus: {enabled: true, token: abc}
`)
	ns := NewNotificationService(cfg)
	require.Equal(t, 1, ns.Len())

	cfg.Notifications.Webhook.Enabled = true
	cfg.Notifications.Webhook.URL = "http://localhost:9/hook"
	ns.Reload(cfg)
	assert.Equal(t, 2, ns.Len())

	cfg.Notifications.Enabled = false
	ns.Reload(cfg)
	assert.Equal(t, 0, ns.Len())
}
