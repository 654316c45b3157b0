package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/ml-job-radar/internal/jobs"
	"github.com/spigell/ml-job-radar/internal/storage"
)

func sampleDigest() Digest {
	return Digest{
		RunID:     "run-1",
		Persisted: 2,
		Jobs: []jobs.Posting{
			{Title: "Data Scientist", Company: "Beta", Location: "Berlin", Link: "https://jobs.example/2",
				Source: "Jobicy", RelevanceScore: 7, MatchScore: 4, CombinedScore: 5.2},
			{Title: "ML Engineer <Senior>", Company: "Acme & Co", Location: "Remote", Link: "https://jobs.example/1",
				Source: "RemoteOK", RelevanceScore: 9, MatchScore: 8, CombinedScore: 8.4,
				MatchingSkills: []string{"python", "pytorch", "sql", "docker", "aws"}, MissingSkills: []string{"kubernetes"}},
		},
		Stats: storage.Stats{
			TotalJobs: 40,
			Sources:   map[string]int{"RemoteOK": 30, "Jobicy": 10},
		},
		GeneratedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}
}

func TestDigestTopOrdersByCombinedScore(t *testing.T) {
	t.Parallel()

	d := sampleDigest()
	top := d.Top(1)
	require.Len(t, top, 1)
	assert.Equal(t, "ML Engineer <Senior>", top[0].Title)
	assert.Equal(t, "Data Scientist", d.Jobs[0].Title, "digest order is untouched")
	assert.Equal(t, 6.0, d.AvgMatch())
	assert.Equal(t, 8.4, d.TopScore())
	assert.Zero(t, Digest{}.AvgMatch())
}

func TestNewEmailRequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := NewEmail(EmailConfig{Host: "smtp.gmail.com"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sender address is not set")
	assert.Contains(t, err.Error(), "sender password is not set")

	e, err := NewEmail(EmailConfig{Address: "me@example.com", Password: "secret", Host: "smtp.gmail.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", e.cfg.To)
	assert.Equal(t, 587, e.cfg.Port)
}

func TestEmailNotify(t *testing.T) {
	t.Parallel()

	e, err := NewEmail(EmailConfig{Address: "me@example.com", Password: "secret", To: "you@example.com", Host: "smtp.example.com", Port: 587}, nil)
	require.NoError(t, err)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	e.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, e.Notify(context.Background(), sampleDigest()))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "me@example.com", gotFrom)
	assert.Equal(t, []string{"you@example.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "To: you@example.com\r\n")
	assert.Contains(t, msg, "multipart/alternative")
	assert.Contains(t, msg, "ML Engineer &lt;Senior&gt;", "html part escapes titles")
	assert.Contains(t, msg, "1. ML Engineer <Senior>", "text part ranks by score")
	assert.Contains(t, msg, "python, pytorch, sql, docker")
	assert.NotContains(t, msg, "docker, aws")
	assert.Contains(t, msg, "RemoteOK: 30 &bull; Jobicy: 10")
	assert.Less(t, strings.Index(msg, "1. ML Engineer"), strings.Index(msg, "2. Data Scientist"))
}

func TestEmailNotifyEmptyDigest(t *testing.T) {
	t.Parallel()

	e, err := NewEmail(EmailConfig{Address: "me@example.com", Password: "secret", Host: "smtp.example.com"}, nil)
	require.NoError(t, err)

	msg, err := e.Message(Digest{GeneratedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Contains(t, string(msg), "No matching jobs found today.")
}

func TestEmailNotifyWrapsSendError(t *testing.T) {
	t.Parallel()

	e, err := NewEmail(EmailConfig{Address: "me@example.com", Password: "secret", Host: "smtp.example.com"}, nil)
	require.NoError(t, err)
	e.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("535 auth failed") }

	err = e.Notify(context.Background(), sampleDigest())
	assert.ErrorContains(t, err, "send email: 535 auth failed")
}

func TestSubject(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "AI/ML Jobs: 2 Matches Found (2026-10-19)", Subject(sampleDigest()))
}

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestTelegramNotify(t *testing.T) {
	t.Parallel()

	bot := &fakeBot{}
	tg := &Telegram{bot: bot, chatID: 42, logger: zap.NewNop()}

	require.NoError(t, tg.Notify(context.Background(), sampleDigest()))
	require.Len(t, bot.sent, 1)

	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "1. <b>ML Engineer &lt;Senior&gt;</b>")
	assert.Contains(t, msg.Text, "Acme &amp; Co")
}

func TestTelegramTextBounded(t *testing.T) {
	t.Parallel()

	d := Digest{}
	for i := 0; i < 10; i++ {
		d.Jobs = append(d.Jobs, jobs.Posting{Title: strings.Repeat("x", 2000), Company: "Acme"})
	}
	assert.LessOrEqual(t, len(TelegramText(d)), telegramMaxLength)
	assert.Contains(t, TelegramText(Digest{}), "No matching jobs found today.")
}

type stubNotifier struct {
	name  string
	err   error
	calls int
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Notify(context.Context, Digest) error {
	s.calls++
	return s.err
}

func TestMultiCallsEveryNotifier(t *testing.T) {
	t.Parallel()

	failing := &stubNotifier{name: "email", err: errors.New("smtp down")}
	ok := &stubNotifier{name: "telegram"}

	err := NewMulti(nil, failing, ok).Notify(context.Background(), sampleDigest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email: smtp down")
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, NewLog(zap.New(core)).Notify(context.Background(), sampleDigest()))

	assert.Equal(t, 1, logs.FilterMessage("run digest").Len())
	assert.Equal(t, 2, logs.FilterMessage("qualified posting").Len())
}
