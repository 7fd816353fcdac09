package partner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/storeops/backend/internal/domain/shared"
)

// Customer is the slice of the customer base the agent engine works with:
// contact details and which product categories the customer has bought from
// or asked about. The researcher agent matches new arrivals against these
// affinities.
type Customer struct {
	shared.TenantAggregateRoot
	Name               string `gorm:"type:varchar(200);not null"`
	Email              string `gorm:"type:varchar(200);index"`
	Phone              string `gorm:"type:varchar(50)"`
	CategoryAffinities string `gorm:"type:jsonb;not null;default:'[]'"`
	NotifyOptIn        bool   `gorm:"not null;default:false"`
	LastPurchaseAt     *time.Time
}

// TableName returns the table name for GORM
func (Customer) TableName() string {
	return "customers"
}

// NewCustomer creates a customer record
func NewCustomer(tenantID uuid.UUID, name, email string) (*Customer, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Customer name cannot be empty")
	}
	return &Customer{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Email:               email,
		CategoryAffinities:  "[]",
	}, nil
}

// Affinities parses the stored category affinity list
func (c *Customer) Affinities() []uuid.UUID {
	var raw []string
	if err := json.Unmarshal([]byte(c.CategoryAffinities), &raw); err != nil {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// AddAffinity records interest in a category
func (c *Customer) AddAffinity(categoryID uuid.UUID) {
	for _, existing := range c.Affinities() {
		if existing == categoryID {
			return
		}
	}
	raw := append(c.affinityStrings(), categoryID.String())
	encoded, err := json.Marshal(raw)
	if err != nil {
		return
	}
	c.CategoryAffinities = string(encoded)
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
}

// SetNotifyOptIn sets whether the customer accepts stock notifications
func (c *Customer) SetNotifyOptIn(optIn bool) {
	c.NotifyOptIn = optIn
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
}

func (c *Customer) affinityStrings() []string {
	var raw []string
	_ = json.Unmarshal([]byte(c.CategoryAffinities), &raw)
	return raw
}

// CustomerRepository defines the persistence port for customers
type CustomerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Customer, error)
	// FindWithAffinity returns opted-in customers interested in the category,
	// most recent purchasers first, bounded
	FindWithAffinity(ctx context.Context, tenantID, categoryID uuid.UUID, limit int) ([]Customer, error)
	Save(ctx context.Context, customer *Customer) error
}
