package email

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/vip-booking/pkg/logger"
)

func TestBuildMessage(t *testing.T) {
	m, err := buildMessage("agency@example.com", Message{
		To:       "client@example.com",
		Subject:  "Appointment confirmed",
		Body:     "See you on Friday.",
		HTMLBody: "<p>See you on Friday.</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"agency@example.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"client@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Appointment confirmed"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "See you on Friday.")
	assert.Contains(t, buf.String(), "text/html")
}

func TestBuildMessage_RequiresRecipient(t *testing.T) {
	_, err := buildMessage("agency@example.com", Message{Subject: "x"})
	assert.Error(t, err)
}

func TestSMTPService_CancelledContext(t *testing.T) {
	svc := NewSMTPService(SMTPConfig{Host: "localhost", Port: 2525, From: "agency@example.com"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Send(ctx, Message{To: "client@example.com"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogService(t *testing.T) {
	var buf bytes.Buffer
	svc := NewLogService(logger.NewLogger(&logger.Config{Level: logger.InfoLevel, Output: &buf}))

	require.NoError(t, svc.Send(context.Background(), Message{To: "client@example.com", Subject: "Hello"}))
	assert.Contains(t, buf.String(), "email suppressed")
	assert.Contains(t, buf.String(), "client@example.com")
}
