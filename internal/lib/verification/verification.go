package verification

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"account_service/internal/models"

	"github.com/google/uuid"
)

const Subject = "Verify Your Email"

var emailTmpl = template.Must(template.New("verify").Parse(
	`<p>Verify your email address to complete the signup and login into your account.</p>` +
		`<p>This link <b>expires in {{.TTL}}</b>.</p>` +
		`<p>Press <a href="{{.Link}}">here</a> to proceed.</p>`,
))

// NewSecret returns the plaintext verification secret for accountID: a
// random component followed by the account id.
func NewSecret(accountID string) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + accountID
}

// Link builds the address a user follows to verify accountID.
func Link(baseURL, accountID, secret string) string {
	return fmt.Sprintf("%s/user/verify/%s/%s",
		strings.TrimSuffix(baseURL, "/"),
		url.PathEscape(accountID),
		url.PathEscape(secret),
	)
}

// NewMessage renders the verification email for link.
func NewMessage(email, link string, ttl time.Duration) (models.Message, error) {
	const op = "verification.NewMessage"

	var body bytes.Buffer

	err := emailTmpl.Execute(&body, struct {
		Link string
		TTL  string
	}{
		Link: link,
		TTL:  humanizeTTL(ttl),
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.Message{
		Email:   email,
		Subject: Subject,
		HTML:    body.String(),
		Link:    link,
		Purpose: models.PurposeEmailVerification,
	}, nil
}

func humanizeTTL(ttl time.Duration) string {
	switch {
	case ttl >= time.Hour && ttl%time.Hour == 0:
		return plural(int(ttl/time.Hour), "hour")
	case ttl >= time.Minute && ttl%time.Minute == 0:
		return plural(int(ttl/time.Minute), "min")
	default:
		return ttl.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
