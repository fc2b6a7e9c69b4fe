// Package emailsvc provides the core.EmailService backends.
package emailsvc

import (
	"github.com/trezcool/darasa/core"
)

// Backends
const (
	BackendConsole  = "console"
	BackendSendgrid = "sendgrid"
	BackendMailgun  = "mailgun"
)

// NewService returns the backend selected by `conf.Email.Backend`, falling back to the console.
func NewService(conf *core.Config, logger core.Logger) core.EmailService {
	switch conf.Email.Backend {
	case BackendSendgrid:
		return NewSendgridService(conf, logger)
	case BackendMailgun:
		return NewMailgunService(conf, logger)
	case BackendConsole, "":
	default:
		logger.Warn("unknown email backend " + conf.Email.Backend + ", falling back to the console")
	}
	return NewConsoleService(conf, logger)
}
