package core

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

// Email template extensions
const (
	emailTextExt = ".txt"
	emailHTMLExt = ".gohtml"
)

var emailTemplates = &emailTemplateSet{}

type (
	EmailMessage struct {
		To      []mail.Address
		ReplyTo *mail.Address
		Subject string

		// TemplateName names the `<name>.txt` and optional `<name>.gohtml` templates of the body.
		TemplateName string
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// EmailContext is what the email templates receive. Data is the message's TemplateData.
	EmailContext struct {
		AppName string
		BaseURL string
		Data    interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}

	emailTemplate struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}

	emailTemplateSet struct {
		mu      sync.RWMutex
		byName  map[string]*emailTemplate
		appName string
		baseURL string
	}
)

// Render fills TextContent and HTMLContent from the message templates.
func (m *EmailMessage) Render() error {
	return emailTemplates.render(m)
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.TextContent != "" || m.HTMLContent != "" }

func (set *emailTemplateSet) render(m *EmailMessage) error {
	set.mu.RLock()
	defer set.mu.RUnlock()

	tmpl, ok := set.byName[m.TemplateName]
	if !ok {
		return errors.Errorf("email template %q not found", m.TemplateName)
	}
	data := EmailContext{AppName: set.appName, BaseURL: set.baseURL, Data: m.TemplateData}

	var buf bytes.Buffer
	if tmpl.text != nil {
		if err := tmpl.text.Execute(&buf, data); err != nil {
			return errors.Wrapf(err, "rendering %s%s", m.TemplateName, emailTextExt)
		}
		m.TextContent = buf.String()
		buf.Reset()
	}
	if tmpl.html != nil {
		if err := tmpl.html.Execute(&buf, data); err != nil {
			return errors.Wrapf(err, "rendering %s%s", m.TemplateName, emailHTMLExt)
		}
		m.HTMLContent = buf.String()
	}
	return nil
}

// ParseEmailTemplates parses the `<name>.txt` and `<name>.gohtml` templates found in `dir` of `fsys`.
// Files starting with "_" are base layouts and are parsed with every template of the same extension.
// Failures are logged and leave the template out.
func ParseEmailTemplates(fsys fs.FS, dir string, conf *Config, logger Logger) {
	byName := make(map[string]*emailTemplate)
	strict := conf.Debug || conf.TestMode

	fps, err := fs.Glob(fsys, path.Join(dir, "*"))
	if err != nil {
		logger.Error(fmt.Sprintf("core.ParseEmailTemplates: %v", err), err)
	}
	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == emailTextExt || ext == emailHTMLExt) {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		tmpl, ok := byName[name]
		if !ok {
			tmpl = new(emailTemplate)
			byName[name] = tmpl
		}
		if err = tmpl.parse(fsys, dir, fp, strict); err != nil {
			logger.Error(fmt.Sprintf("core.ParseEmailTemplates(%s): %v", fname, err), err)
		}
	}

	emailTemplates.mu.Lock()
	defer emailTemplates.mu.Unlock()
	emailTemplates.byName = byName
	emailTemplates.appName = conf.AppName
	emailTemplates.baseURL = conf.BaseURL
}

func (tmpl *emailTemplate) parse(fsys fs.FS, dir, fp string, strict bool) error {
	opt := "missingkey=default"
	if strict {
		opt = "missingkey=error"
	}

	if path.Ext(fp) == emailTextExt {
		t, err := texttmpl.ParseFS(fsys, path.Join(dir, "_base"+emailTextExt), fp)
		if err != nil {
			return err
		}
		tmpl.text = t.Option(opt)
		return nil
	}
	t, err := htmltmpl.ParseFS(fsys, path.Join(dir, "_base"+emailHTMLExt), fp)
	if err != nil {
		return err
	}
	tmpl.html = t.Option(opt)
	return nil
}
