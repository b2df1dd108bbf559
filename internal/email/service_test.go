package email

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type mockSender struct {
	DialAndSendFunc func(m ...*gomail.Message) error
	sent            []*gomail.Message
}

func (s *mockSender) DialAndSend(m ...*gomail.Message) error {
	s.sent = append(s.sent, m...)
	if s.DialAndSendFunc != nil {
		return s.DialAndSendFunc(m...)
	}
	return nil
}

func TestSendWithAttachment(t *testing.T) {
	sender := &mockSender{}
	svc := NewService("no-reply@clinic.local", sender, nil)

	err := svc.SendWithAttachment(context.Background(), "dr@clinic.fr", "Patient export", "See attached.", Attachment{
		Name:        "patients.xlsx",
		ContentType: "application/octet-stream",
		Data:        []byte("PK-data"),
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	m := sender.sent[0]
	assert.Equal(t, []string{"dr@clinic.fr"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Patient export"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `filename="patients.xlsx"`)
}

func TestSendAccountActivated_Error(t *testing.T) {
	sender := &mockSender{DialAndSendFunc: func(...*gomail.Message) error { return errors.New("dial tcp: refused") }}
	svc := NewService("no-reply@clinic.local", sender, nil)

	err := svc.SendAccountActivated(context.Background(), "dr@clinic.fr", "Dr. Martin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send email")
}

func TestLogService(t *testing.T) {
	svc := NewLogService(nil)
	assert.NoError(t, svc.SendAccountActivated(context.Background(), "dr@clinic.fr", "Dr. Martin"))
	assert.NoError(t, svc.SendWithAttachment(context.Background(), "dr@clinic.fr", "s", "b", Attachment{Name: "a.csv"}))
}
