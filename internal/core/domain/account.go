package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountID is an opaque, validated account identifier. It is constructed
// once at the system boundary; malformed ids are rejected there instead of
// being coerced deeper in the stack.
type AccountID struct {
	id uuid.UUID
}

// NewAccountID generates a fresh account id.
func NewAccountID() AccountID {
	return AccountID{id: uuid.New()}
}

// ParseAccountID validates and converts a raw string into an AccountID.
func ParseAccountID(raw string) (AccountID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return AccountID{}, err
	}
	return AccountID{id: id}, nil
}

// AccountIDFromUUID wraps an already-validated UUID.
func AccountIDFromUUID(id uuid.UUID) AccountID {
	return AccountID{id: id}
}

func (a AccountID) String() string { return a.id.String() }

// UUID exposes the underlying value for storage adapters.
func (a AccountID) UUID() uuid.UUID { return a.id }

func (a AccountID) IsZero() bool { return a.id == uuid.Nil }

// Less defines the canonical ordering used when locking multiple accounts.
func (a AccountID) Less(b AccountID) bool { return a.id.String() < b.id.String() }

func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.id.String()), nil
}

func (a *AccountID) UnmarshalText(text []byte) error {
	id, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	a.id = id
	return nil
}

// AccountRole identifies which marketplace party owns the account.
type AccountRole string

const (
	RoleCustomer AccountRole = "customer"
	RoleVendor   AccountRole = "vendor"
	RoleDoctor   AccountRole = "doctor"
	RoleSupplier AccountRole = "supplier"
)

// Account holds one party's wallet balance. Balance is derived exclusively
// from completed ledger entries; it is stored here only as the serialized
// running total maintained inside the same transaction as each entry.
type Account struct {
	ID         AccountID   `json:"id"`
	OwnerName  string      `json:"owner_name"`
	Role       AccountRole `json:"role"`
	Balance    int64       `json:"balance"` // Smallest currency unit, never negative
	ReferredBy *AccountID  `json:"referred_by,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
