package core

import (
	"bytes"
	"encoding/base64"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailMessage_Render(t *testing.T) {
	ParseEmailTemplates(NewTestConfig(), NopLogger{})

	msg := &EmailMessage{
		To:           []mail.Address{{Name: "Thandi", Address: "thandi@test.za"}},
		Subject:      "Welcome",
		TemplateName: "welcome",
		TemplateData: struct{ Name string }{Name: "Thandi"},
	}
	require.NoError(t, msg.Render())
	assert.Contains(t, msg.TextContent, "Hi Thandi,")
	assert.Contains(t, msg.TextContent, "http://localhost:3000/#/student/dashboard")
	assert.Contains(t, msg.HTMLContent, "<p>Hi Thandi,</p>")
	assert.True(t, msg.HasContent())

	plain := &EmailMessage{BodyStr: "plain body"}
	require.NoError(t, plain.Render())
	assert.Equal(t, "plain body", plain.TextContent)
	assert.Empty(t, plain.HTMLContent)
}

func TestEmailMessage_Attach(t *testing.T) {
	content := []byte("\x89PNG\r\n\x1a\nfake")
	msg := new(EmailMessage)

	require.NoError(t, msg.Attach(bytes.NewReader(content), "Certificate - Nails.png"))
	require.True(t, msg.HasAttachments())

	at := msg.Attachments[0]
	assert.Equal(t, "Certificate - Nails.png", at.Filename)
	assert.Equal(t, "image/png", at.ContentType)

	decoded, err := base64.StdEncoding.DecodeString(at.Content.String())
	require.NoError(t, err)
	assert.Equal(t, content, decoded)
}
