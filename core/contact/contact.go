// Package contact stores the messages sent through the public contact form.
package contact

import (
	"context"
	"net/mail"
	"sort"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/hoaportal/core"
	"github.com/trezcool/hoaportal/core/document"
)

// Collection is the document collection holding the messages.
const Collection = "messages"

var ErrNotFound = errors.New("message not found")

type (
	Message struct {
		ID        string    `json:"-"`
		Name      string    `json:"name"`
		Email     string    `json:"email"`
		Subject   string    `json:"subject"`
		Body      string    `json:"body"`
		CreatedAt time.Time `json:"-"`
	}

	NewMessage struct {
		Name    string `form:"name" validate:"required,notblank,max=100"`
		Email   string `form:"email" validate:"required,email"`
		Subject string `form:"subject" validate:"max=150"`
		Body    string `form:"body" validate:"required,notblank,max=5000"`
	}
)

type Service struct {
	store      document.Store
	mail       core.EmailService
	board      []mail.Address
	validate   *validator.Validate
	translator ut.Translator
}

// NewService returns the contact service. Every message is forwarded by email to board.
func NewService(store document.Store, mailSvc core.EmailService, board []string, validate *validator.Validate, translator ut.Translator) *Service {
	to := make([]mail.Address, 0, len(board))
	for _, email := range board {
		to = append(to, mail.Address{Address: email})
	}
	return &Service{store: store, mail: mailSvc, board: to, validate: validate, translator: translator}
}

func (svc *Service) Send(ctx context.Context, nm NewMessage) (Message, error) {
	if err := svc.validate.Struct(nm); err != nil {
		return Message{}, core.TranslateValidationError(err, svc.translator)
	}

	msg := Message{
		Name:    core.CleanString(nm.Name),
		Email:   core.CleanString(nm.Email, true),
		Subject: core.CleanString(nm.Subject),
		Body:    core.CleanString(nm.Body),
	}
	flds, err := document.Encode(msg)
	if err != nil {
		return Message{}, errors.Wrap(err, "encoding message")
	}
	if msg.ID, err = svc.store.Add(ctx, Collection, flds); err != nil {
		return Message{}, errors.Wrap(err, "adding message")
	}

	if len(svc.board) > 0 {
		subject := "New contact message"
		if msg.Subject != "" {
			subject += ": " + msg.Subject
		}
		svc.mail.SendMessages(&core.EmailMessage{
			To:           svc.board,
			ReplyTo:      &mail.Address{Name: msg.Name, Address: msg.Email},
			Subject:      subject,
			TemplateName: "contact_received",
			TemplateData: map[string]interface{}{"Name": msg.Name, "Email": msg.Email, "Body": msg.Body},
		})
	}
	return msg, nil
}

// List returns the messages, newest first.
func (svc *Service) List(ctx context.Context) ([]Message, error) {
	docs, err := svc.store.ReadAll(ctx, Collection)
	if err != nil {
		return nil, errors.Wrap(err, "reading messages")
	}
	msgs := make([]Message, 0, len(docs))
	for _, doc := range docs {
		var m Message
		if err = doc.Decode(&m); err != nil {
			return nil, errors.Wrapf(err, "decoding message %s", doc.ID)
		}
		m.ID = doc.ID
		m.CreatedAt = doc.CreatedAt
		msgs = append(msgs, m)
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.After(msgs[j].CreatedAt) })
	return msgs, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.store.Delete(ctx, Collection, id); err != nil {
		if errors.Is(err, document.ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "deleting message")
	}
	return nil
}
