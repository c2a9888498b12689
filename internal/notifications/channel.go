package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"splitsheet/internal/config"
	"splitsheet/internal/logging"
)

const userAgent = "splitsheet/0.1.0"

// Message is one outbound notification.
type Message struct {
	To      string
	Subject string
	Body    string
	Tags    []string
}

// Channel delivers messages. Implementations must be safe for concurrent use.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// NewChannel builds the channel selected by [notifications].channel.
func NewChannel(cfg *config.Config, logger *slog.Logger) (Channel, error) {
	if cfg == nil {
		return noopChannel{}, nil
	}
	n := cfg.Notifications
	timeout := time.Duration(n.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	switch n.Channel {
	case "", "none":
		return noopChannel{}, nil
	case "log":
		return &logChannel{logger: logging.NewComponentLogger(logger, "notify-log")}, nil
	case "ntfy":
		if strings.TrimSpace(n.NtfyTopic) == "" {
			return noopChannel{}, nil
		}
		return NewNtfy(n.NtfyServer, n.NtfyTopic, &http.Client{Timeout: timeout}), nil
	case "smtp":
		return &smtpChannel{
			addr:    n.SMTPHost + ":" + strconv.Itoa(n.SMTPPort),
			host:    n.SMTPHost,
			from:    n.From,
			user:    n.SMTPUsername,
			pass:    n.SMTPPassword,
			timeout: timeout,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported notification channel %q", n.Channel)
	}
}

// Ntfy publishes to an ntfy topic and asks the server to forward each message
// to the recipient by e-mail.
type Ntfy struct {
	endpoint string
	client   *http.Client
}

// NewNtfy returns an ntfy channel. topic may be a full URL.
func NewNtfy(server, topic string, client *http.Client) *Ntfy {
	endpoint := strings.TrimSpace(topic)
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = strings.TrimRight(server, "/") + "/" + strings.TrimLeft(endpoint, "/")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Ntfy{endpoint: endpoint, client: client}
}

func (n *Ntfy) Name() string { return "ntfy" }

func (n *Ntfy) Send(ctx context.Context, msg Message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.Subject != "" {
		req.Header.Set("Title", msg.Subject)
	}
	if msg.To != "" {
		req.Header.Set("Email", msg.To)
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type smtpChannel struct {
	addr    string
	host    string
	from    string
	user    string
	pass    string
	timeout time.Duration
}

func (s *smtpChannel) Name() string { return "smtp" }

func (s *smtpChannel) Send(ctx context.Context, msg Message) error {
	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}
	raw := buildMIME(s.from, msg)
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(s.addr, auth, s.from, []string{msg.To}, raw)
	}()
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", msg.To, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("send mail to %s: timed out after %s", msg.To, s.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMIME(from string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// logChannel writes messages to the log instead of delivering them. Useful
// for local runs where operators copy signing links by hand.
type logChannel struct {
	logger *slog.Logger
}

func (l *logChannel) Name() string { return "log" }

func (l *logChannel) Send(_ context.Context, msg Message) error {
	l.logger.Info("notification",
		logging.String("to", msg.To),
		logging.String("subject", msg.Subject),
		logging.String("body", msg.Body),
	)
	return nil
}

type noopChannel struct{}

func (noopChannel) Name() string                        { return "none" }
func (noopChannel) Send(context.Context, Message) error { return nil }
