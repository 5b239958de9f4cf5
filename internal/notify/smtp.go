package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPNotifier sends plain-text mail through a single SMTP relay
// (mailtrap-style sandbox in dev). No third-party mail client is involved;
// the relay handles queuing and retries.
type SMTPNotifier struct {
	Addr     string // host:port
	Username string
	Password string
	From     string
	Book     AddressBook

	// send is swappable in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(addr, username, password, from string, book AddressBook) *SMTPNotifier {
	return &SMTPNotifier{Addr: addr, Username: username, Password: password, From: from, Book: book, send: smtp.SendMail}
}

func (n *SMTPNotifier) Notify(ctx context.Context, userID, subject, body string) error {
	to, err := n.Book.EmailFor(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve recipient %s: %w", userID, err)
	}
	msg := []byte("From: " + n.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" + body + "\r\n")
	var auth smtp.Auth
	if n.Username != "" {
		host, _, _ := strings.Cut(n.Addr, ":")
		auth = smtp.PlainAuth("", n.Username, n.Password, host)
	}
	if err := n.send(n.Addr, auth, n.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
