package emailsvc

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trezcool/darasa/core"
	appfs "github.com/trezcool/darasa/fs"
	logsvc "github.com/trezcool/darasa/services/logger"
)

func testConfig() *core.Config {
	conf := &core.Config{AppName: "Darasa", FrontendBaseURL: "http://front.test"}
	conf.SetDefaultFromEmail("Darasa <noreply@darasa.test>")
	return conf
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	logger := logsvc.NewZapLogger(zap.NewNop())
	core.ParseEmailTemplates(appfs.FS, logger, true)
	svc := NewConsoleServiceMock(testConfig(), logger)

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Jane", Address: "jane@example.com"}},
			Subject:      "Welcome",
			TemplateName: "welcome",
			TemplateData: map[string]string{"Name": "Jane", "Username": "jane", "Role": "teacher"},
		},
		&core.EmailMessage{Subject: "no recipient", BodyStr: "dropped"},
		&core.EmailMessage{To: []mail.Address{{Address: "x@example.com"}}, Subject: "empty"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, `Your teacher account "jane" is ready.`)
	assert.Contains(t, sent[0].TextContent, "http://front.test/login")
	assert.NotEmpty(t, sent[0].HTMLContent)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestConsoleService_send(t *testing.T) {
	logger := logsvc.NewZapLogger(zap.NewNop())
	svc := NewConsoleService(testConfig(), logger).(*consoleService)
	out := new(bytes.Buffer)
	svc.out = out

	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: "Jane", Address: "jane@example.com"}},
		Cc:      []mail.Address{{Address: "cc@example.com"}},
		Subject: "Report",
		BodyStr: "see attached",
	}
	require.NoError(t, msg.Attach(strings.NewReader("a,b\n1,2\n"), "report.csv", "text/csv"))
	require.True(t, svc.sendMessage(msg))

	printed := out.String()
	assert.Contains(t, printed, `From: "Darasa" <noreply@darasa.test>`)
	assert.Contains(t, printed, "Subject: [Darasa] Report")
	assert.Contains(t, printed, `To: "Jane" <jane@example.com>`)
	assert.Contains(t, printed, "CC: <cc@example.com>")
	assert.NotContains(t, printed, "BCC:")
	assert.Contains(t, printed, "multipart/mixed")
	assert.Contains(t, printed, "see attached")
	assert.Contains(t, printed, "attachment; filename=report.csv")
}

func TestNewService(t *testing.T) {
	logger := logsvc.NewZapLogger(zap.NewNop())
	conf := testConfig()

	tests := []struct {
		backend string
		want    interface{}
	}{
		{backend: "", want: &consoleService{}},
		{backend: BackendConsole, want: &consoleService{}},
		{backend: BackendSendgrid, want: &sendgridService{}},
		{backend: BackendMailgun, want: &mailgunService{}},
		{backend: "carrier-pigeon", want: &consoleService{}},
	}
	for _, tc := range tests {
		t.Run(tc.backend, func(t *testing.T) {
			conf.Email.Backend = tc.backend
			assert.IsType(t, tc.want, NewService(conf, logger))
		})
	}
}
