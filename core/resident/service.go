// Package resident manages the homeowners registered on the portal and their
// approval by the board.
package resident

import (
	"context"
	"net/mail"
	"sort"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hoaportal/core"
	"github.com/trezcool/hoaportal/core/document"
)

var ErrNotFound = errors.New("resident not found")

type Service struct {
	store      document.Store
	mail       core.EmailService
	validate   *validator.Validate
	translator ut.Translator
	nowFunc    func() time.Time
}

func NewService(store document.Store, mailSvc core.EmailService, validate *validator.Validate, translator ut.Translator) *Service {
	RegisterValidators(validate, translator)
	return &Service{
		store:      store,
		mail:       mailSvc,
		validate:   validate,
		translator: translator,
		nowFunc:    func() time.Time { return time.Now().UTC() },
	}
}

// Validate checks the signup form, password policy included.
func (svc *Service) Validate(nr NewResident) error {
	if err := svc.validate.Struct(nr); err != nil {
		return core.TranslateValidationError(err, svc.translator)
	}
	return nil
}

// ValidatePassword checks a new password against the password policy.
func (svc *Service) ValidatePassword(np NewPassword) error {
	if err := svc.validate.Struct(np); err != nil {
		return core.TranslateValidationError(err, svc.translator)
	}
	return nil
}

func (svc *Service) trapNotFound(err error, msg string) error {
	if errors.Is(err, document.ErrNotFound) {
		return ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// Register stores the profile of the identity uid, pending approval, and sends the welcome email.
func (svc *Service) Register(ctx context.Context, uid string, nr NewResident) (Resident, error) {
	if err := svc.Validate(nr); err != nil {
		return Resident{}, err
	}

	phone := core.CleanString(nr.Phone)
	r := Resident{
		Name:   core.CleanString(nr.Name),
		Email:  core.CleanString(nr.Email, true),
		Unit:   strings.ToUpper(core.CleanString(nr.Unit)),
		Phone:  null.NewString(phone, phone != ""),
		Status: StatusPending,
	}
	flds, err := document.Encode(r)
	if err != nil {
		return Resident{}, errors.Wrap(err, "encoding resident")
	}
	if err = svc.store.Set(ctx, Collection, uid, flds); err != nil {
		return Resident{}, errors.Wrap(err, "storing resident")
	}

	r, err = svc.Get(ctx, uid)
	if err != nil {
		return Resident{}, err
	}
	svc.sendEmail(r, "Welcome", "welcome")
	return r, nil
}

func (svc *Service) Get(ctx context.Context, uid string) (Resident, error) {
	doc, err := svc.store.Get(ctx, Collection, uid)
	if err != nil {
		return Resident{}, svc.trapNotFound(err, "getting resident")
	}
	return fromDocument(doc)
}

// List returns the residents matching filter, newest first.
func (svc *Service) List(ctx context.Context, filter Filter) ([]Resident, error) {
	docs, err := svc.store.ReadAll(ctx, Collection)
	if err != nil {
		return nil, errors.Wrap(err, "reading residents")
	}

	status := core.CleanString(filter.Status, true)
	search := core.CleanString(filter.Search, true)
	residents := make([]Resident, 0, len(docs))
	for _, doc := range docs {
		r, err := fromDocument(doc)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding resident %s", doc.ID)
		}
		if status != "" && r.Status != status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(r.Name), search) &&
			!strings.Contains(r.Email, search) &&
			!strings.Contains(strings.ToLower(r.Unit), search) {
			continue
		}
		residents = append(residents, r)
	}

	sort.SliceStable(residents, func(i, j int) bool { return residents[i].CreatedAt.After(residents[j].CreatedAt) })
	return residents, nil
}

// Approve marks the resident approved and notifies them. Approving twice is a no-op.
func (svc *Service) Approve(ctx context.Context, uid string) (Resident, error) {
	r, err := svc.Get(ctx, uid)
	if err != nil {
		return Resident{}, err
	}
	if r.IsApproved() {
		return r, nil
	}

	flds := document.Fields{
		"status":     StatusApproved,
		"approvedAt": svc.nowFunc().Format(time.RFC3339),
	}
	if err = svc.store.Update(ctx, Collection, uid, flds); err != nil {
		return Resident{}, svc.trapNotFound(err, "approving resident")
	}

	if r, err = svc.Get(ctx, uid); err != nil {
		return Resident{}, err
	}
	svc.sendEmail(r, "Your account has been approved", "resident_approved")
	return r, nil
}

// Delete removes the resident profile. The identity itself is kept by the provider.
func (svc *Service) Delete(ctx context.Context, uid string) error {
	if err := svc.store.Delete(ctx, Collection, uid); err != nil {
		return svc.trapNotFound(err, "deleting resident")
	}
	return nil
}

func (svc *Service) sendEmail(r Resident, subject, tmpl string) {
	svc.mail.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: r.Name, Address: r.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: map[string]interface{}{"Name": r.Name, "Unit": r.Unit},
	})
}
