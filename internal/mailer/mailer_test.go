package mailer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/uaifestas/festas-go/internal/config"
)

func TestBuildMessage_EmbedsQRCode(t *testing.T) {
	m := buildMessage("ingressos@uaifestas.com.br", Message{
		To:      "ana@example.com",
		Subject: "Seu Ingresso",
		HTML:    `<img src="cid:qrcode.png">`,
		QRCode:  []byte{0x89, 'P', 'N', 'G'},
	})

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "To: ana@example.com")
	assert.Contains(t, raw, "Subject: Seu Ingresso")
	assert.Contains(t, raw, "Content-ID: <qrcode.png>")
}

func TestLogMailer_LogsSummary(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewLogMailer(zap.New(core))

	err := m.Send(context.Background(), Message{To: "ana@example.com", Subject: "Oi", QRCode: []byte{1, 2, 3}})
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "ana@example.com", fields["to"])
	assert.EqualValues(t, 3, fields["qr_bytes"])
}

func TestNew_FallsBackToLogMailer(t *testing.T) {
	m := New(&config.Config{}, zap.NewNop())
	assert.IsType(t, &LogMailer{}, m)

	m = New(&config.Config{MailServer: "smtp.example.com", MailPort: 587}, zap.NewNop())
	assert.IsType(t, &SMTPMailer{}, m)
}
