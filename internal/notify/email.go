package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	_ "embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/jobs"
	"github.com/spigell/ml-job-radar/internal/logger"
)

const implicitTLSPort = 465

var (
	//go:embed digest.html.tmpl
	htmlDigest string
	//go:embed digest.txt.tmpl
	textDigest string

	templateFuncs = map[string]any{
		"limit": func(items []string, n int) []string {
			if len(items) > n {
				return items[:n]
			}
			return items
		},
		"join": func(items []string) string { return strings.Join(items, ", ") },
		"inc":  func(i int) int { return i + 1 },
	}

	htmlTemplate = htmltemplate.Must(htmltemplate.New("digest.html").Funcs(templateFuncs).Parse(htmlDigest))
	textTemplate = texttemplate.Must(texttemplate.New("digest.txt").Funcs(templateFuncs).Parse(textDigest))
)

// EmailConfig holds the SMTP account used to send the digest.
type EmailConfig struct {
	Address  string
	Password string
	To       string
	Host     string
	Port     int
}

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Email sends the digest as a multipart HTML and plain text message.
type Email struct {
	cfg    EmailConfig
	send   sendFunc
	logger *zap.Logger
}

// NewEmail validates the account. Missing credentials are a configuration error.
func NewEmail(cfg EmailConfig, log *zap.Logger) (*Email, error) {
	var errs []error
	if strings.TrimSpace(cfg.Address) == "" {
		errs = append(errs, errors.New("sender address is not set"))
	}
	if strings.TrimSpace(cfg.Password) == "" {
		errs = append(errs, errors.New("sender password is not set"))
	}
	if cfg.Host == "" {
		errs = append(errs, errors.New("smtp host is not set"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("email notifier: %w", err)
	}
	if cfg.To == "" {
		cfg.To = cfg.Address
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}

	e := &Email{cfg: cfg, logger: logger.OrNop(log)}
	e.send = e.sendMail
	return e, nil
}

func (e *Email) Name() string { return "email" }

func (e *Email) Notify(_ context.Context, d Digest) error {
	msg, err := e.Message(d)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	auth := smtp.PlainAuth("", e.cfg.Address, e.cfg.Password, e.cfg.Host)
	if err := e.send(addr, auth, e.cfg.Address, []string{e.cfg.To}, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	e.logger.Info("email sent", zap.String("to", e.cfg.To), zap.Int("jobs", len(d.Jobs)))
	return nil
}

// Subject names the qualified count and the run date.
func Subject(d Digest) string {
	return fmt.Sprintf("AI/ML Jobs: %d Matches Found (%s)", len(d.Jobs), generatedAt(d).Format(jobs.DateLayout))
}

// Message renders the complete MIME message.
func (e *Email) Message(d Digest) ([]byte, error) {
	view := newDigestView(d)

	var html, text bytes.Buffer
	if err := htmlTemplate.Execute(&html, view); err != nil {
		return nil, fmt.Errorf("render html digest: %w", err)
	}
	if err := textTemplate.Execute(&text, view); err != nil {
		return nil, fmt.Errorf("render text digest: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct {
		contentType string
		content     []byte
	}{
		{"text/plain; charset=UTF-8", text.Bytes()},
		{"text/html; charset=UTF-8", html.Bytes()},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(part.content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", e.cfg.Address)
	fmt.Fprintf(&msg, "To: %s\r\n", e.cfg.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", Subject(d)))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())

	return msg.Bytes(), nil
}

// sendMail uses implicit TLS on port 465 and STARTTLS otherwise.
func (e *Email) sendMail(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	if e.cfg.Port != implicitTLSPort {
		return smtp.SendMail(addr, auth, from, to, msg)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: e.cfg.Host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, e.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

type sourceCount struct {
	Name  string
	Count int
}

type digestView struct {
	Date      string
	Generated string
	RunID     string
	Persisted int
	Qualified int
	AvgMatch  float64
	TopScore  float64
	TotalJobs int
	Jobs      []jobs.Posting
	Sources   []sourceCount
}

func newDigestView(d Digest) digestView {
	at := generatedAt(d)

	sources := make([]sourceCount, 0, len(d.Stats.Sources))
	for name, count := range d.Stats.Sources {
		sources = append(sources, sourceCount{Name: name, Count: count})
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Count != sources[j].Count {
			return sources[i].Count > sources[j].Count
		}
		return sources[i].Name < sources[j].Name
	})
	if len(sources) > 5 {
		sources = sources[:5]
	}

	return digestView{
		Date:      at.Format("January 02, 2006"),
		Generated: at.Format("2006-01-02 15:04:05"),
		RunID:     d.RunID,
		Persisted: d.Persisted,
		Qualified: len(d.Jobs),
		AvgMatch:  d.AvgMatch(),
		TopScore:  d.TopScore(),
		TotalJobs: d.Stats.TotalJobs,
		Jobs:      d.Top(TopJobs),
		Sources:   sources,
	}
}

func generatedAt(d Digest) time.Time {
	if d.GeneratedAt.IsZero() {
		return time.Now()
	}
	return d.GeneratedAt
}
