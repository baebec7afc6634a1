package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

func TestConsoleFormat(t *testing.T) {
	svc := consoleService{conf: core.NewTestConfig(), subjPrefix: "[Shule] "}

	tests := []struct {
		name     string
		from     *mail.Address
		wantFrom string
	}{
		{name: "default sender", wantFrom: `From: "Shule" <noreply@localhost>`},
		{name: "school sender", from: &mail.Address{Name: "Oak", Address: "oak@ex.org"}, wantFrom: `From: "Oak" <oak@ex.org>`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body, err := svc.format(core.EmailMessage{
				From:        tc.from,
				To:          []mail.Address{{Address: "alice@oak.edu"}},
				Subject:     "Hello",
				TextContent: "Hi there",
			})
			require.NoError(t, err)
			assert.Contains(t, body, tc.wantFrom+"\r\n")
			assert.Contains(t, body, "Subject: [Shule] Hello\r\n")
			assert.Contains(t, body, "To: <alice@oak.edu>\r\n")
			assert.Contains(t, body, "Hi there")
		})
	}
}
