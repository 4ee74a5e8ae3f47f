package domain

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Party validation errors.
var (
	ErrEmptyCustomerID = errors.New("customer ID cannot be empty")
	ErrEmptyProviderID = errors.New("provider ID cannot be empty")
	ErrSelfRequest     = errors.New("customer cannot request their own provider profile")
)

// payloadValidator reports field errors under their JSON names so a
// ValidationError can name e.g. "contactPhone" directly.
var payloadValidator = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// RequestPayload is the customer-supplied part of a request. The lifecycle
// logic never interprets these values; they only have to be present.
type RequestPayload struct {
	ServiceDescription string `json:"serviceDescription" validate:"required"`
	VehicleCategory    string `json:"vehicleCategory"    validate:"required"`
	ContactName        string `json:"contactName"        validate:"required"`
	ContactPhone       string `json:"contactPhone"       validate:"required"`
	ContactEmail       string `json:"contactEmail"       validate:"required"`
	PreferredDate      string `json:"preferredDate"      validate:"required"`
	PreferredTime      string `json:"preferredTime"      validate:"required"`
}

// Normalize trims surrounding whitespace so blank values fail validation.
func (p RequestPayload) Normalize() RequestPayload {
	return RequestPayload{
		ServiceDescription: strings.TrimSpace(p.ServiceDescription),
		VehicleCategory:    strings.TrimSpace(p.VehicleCategory),
		ContactName:        strings.TrimSpace(p.ContactName),
		ContactPhone:       strings.TrimSpace(p.ContactPhone),
		ContactEmail:       strings.TrimSpace(p.ContactEmail),
		PreferredDate:      strings.TrimSpace(p.PreferredDate),
		PreferredTime:      strings.TrimSpace(p.PreferredTime),
	}
}

// Validate returns a ValidationError naming the first missing field, in declaration order.
func (p RequestPayload) Validate() error {
	err := payloadValidator.Struct(p.Normalize())
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return NewValidationError(fieldErrs[0].Field(), "is required", ErrValidation)
	}
	return NewValidationError("payload", "is invalid", err)
}

// Request is a single service solicitation from a customer to a provider.
// ID is assigned by the document store on insert; CreatedAt is the only ordering key.
type Request struct {
	ID                  string `json:"id"`
	CustomerID          string `json:"customerId"`
	ProviderID          string `json:"providerId"`
	ProviderDisplayName string `json:"providerDisplayName"`
	RequestPayload
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// NewRequest creates a pending Request. The provider display name is a snapshot
// taken now and is never refreshed afterwards.
func NewRequest(
	customerID, providerID, providerDisplayName string,
	payload RequestPayload,
	now time.Time,
) (*Request, error) {
	req := &Request{
		CustomerID:          strings.TrimSpace(customerID),
		ProviderID:          strings.TrimSpace(providerID),
		ProviderDisplayName: providerDisplayName,
		RequestPayload:      payload.Normalize(),
		Status:              StatusPending,
		CreatedAt:           now.UTC(),
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	return req, nil
}

// Validate checks parties, payload and status. ID is not checked because it
// is only known after insert.
func (r *Request) Validate() error {
	if r.CustomerID == "" {
		return NewValidationError("customerId", "is required", ErrEmptyCustomerID)
	}

	if r.ProviderID == "" {
		return NewValidationError("providerId", "is required", ErrEmptyProviderID)
	}

	if r.CustomerID == r.ProviderID {
		return NewValidationError("providerId", "must differ from the customer", ErrSelfRequest)
	}

	if err := r.RequestPayload.Validate(); err != nil {
		return err
	}

	if !r.Status.Valid() {
		return NewValidationError("status", "is invalid", ErrInvalidStatus)
	}

	if r.CreatedAt.IsZero() {
		return NewValidationError("createdAt", "is required", ErrValidation)
	}

	return nil
}

// VisibleTo reports whether identity is one of the two parties.
func (r *Request) VisibleTo(identity string) bool {
	return identity != "" && (identity == r.CustomerID || identity == r.ProviderID)
}

// ActingRole derives the role identity acts under when moving r to target.
// ok is false when identity is not a party.
func (r *Request) ActingRole(identity string, target RequestStatus) (Role, bool) {
	isCustomer := identity != "" && identity == r.CustomerID
	isProvider := identity != "" && identity == r.ProviderID

	switch {
	case isCustomer && isProvider:
		// Only reachable for records written outside NewRequest.
		role, ok := RoleForTarget(target)
		if !ok {
			return RoleCustomer, true
		}
		return role, true
	case isCustomer:
		return RoleCustomer, true
	case isProvider:
		return RoleProvider, true
	default:
		return "", false
	}
}

// Clone returns an independent copy of r.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
