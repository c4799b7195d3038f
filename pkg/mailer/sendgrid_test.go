package mailer

import (
	"context"
	"encoding/json"
	"testing"

	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareBuildsPersonalization(t *testing.T) {
	s := NewSendGrid("key", "Tutor Program", "noreply@winthrop.edu", nil)

	m := s.prepare(Message{
		To:      "ana@winthrop.edu",
		ToName:  "Ana",
		CC:      []string{"sam@winthrop.edu", "", "ana@winthrop.edu", "lee@hospital.org"},
		Subject: "Your tutor assignment",
		Body:    "Dear Ana,",
	})

	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "Your tutor assignment", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "ana@winthrop.edu", p.To[0].Address)
	assert.Equal(t, "Ana", p.To[0].Name)

	// empty entries and the recipient's own address are dropped from CC
	require.Len(t, p.CC, 2)
	assert.Equal(t, "sam@winthrop.edu", p.CC[0].Address)
	assert.Equal(t, "lee@hospital.org", p.CC[1].Address)

	assert.Equal(t, "noreply@winthrop.edu", m.From.Address)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "Dear Ana,", m.Content[0].Value)
}

func TestPrepareSerializesForMailAPI(t *testing.T) {
	s := NewSendGrid("key", "Tutor Program", "noreply@winthrop.edu", nil)

	body := sgmail.GetRequestBody(s.prepare(Message{
		To:      "ana@winthrop.edu",
		Subject: "hi",
		Body:    "hello",
	}))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Contains(t, payload, "personalizations")
	assert.Contains(t, payload, "content")
}

func TestSendHonorsCancelledContext(t *testing.T) {
	s := NewSendGrid("key", "Tutor Program", "noreply@winthrop.edu", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Send(ctx, Message{To: "ana@winthrop.edu"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
