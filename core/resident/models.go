package resident

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hoaportal/core/document"
)

// Collection is the document collection holding the residents, keyed by identity uid.
const Collection = "residents"

// Statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

type (
	Resident struct {
		UID        string      `json:"-"`
		Name       string      `json:"name"`
		Email      string      `json:"email"`
		Unit       string      `json:"unit"`
		Phone      null.String `json:"phone"`
		Status     string      `json:"status"`
		ApprovedAt null.Time   `json:"approvedAt"`
		CreatedAt  time.Time   `json:"-"`
		UpdatedAt  time.Time   `json:"-"`
	}

	// NewResident is the signup form.
	NewResident struct {
		Name            string `form:"name" validate:"required,notblank,max=100"`
		Email           string `form:"email" validate:"required,email"`
		Unit            string `form:"unit" validate:"required,unit,max=20"`
		Phone           string `form:"phone" validate:"omitempty,phone"`
		Password        string `form:"password" validate:"required"`
		PasswordConfirm string `form:"passwordConfirm" validate:"required,eqfield=Password"`
	}

	// NewPassword is the form choosing a new password from a reset link.
	// The account attributes feed the similarity rule of the password policy.
	NewPassword struct {
		Name            string `form:"-"`
		Email           string `form:"-"`
		Unit            string `form:"-"`
		Password        string `form:"password" validate:"required"`
		PasswordConfirm string `form:"passwordConfirm" validate:"required,eqfield=Password"`
	}

	// Filter selects residents; empty fields match everything.
	Filter struct {
		Status string `query:"status"`
		Search string `query:"q"` // case-insensitive match on name, email or unit
	}
)

func (r Resident) IsApproved() bool { return r.Status == StatusApproved }

func fromDocument(doc document.Document) (Resident, error) {
	var r Resident
	if err := doc.Decode(&r); err != nil {
		return Resident{}, err
	}
	r.UID = doc.ID
	r.CreatedAt = doc.CreatedAt
	r.UpdatedAt = doc.UpdatedAt
	return r, nil
}
