package offers

import (
	"context"
	"time"

	"github.com/bookcircle/backend/internal/apperr"
	"github.com/google/uuid"
)

// Info is the ownership/availability/display data a transaction needs
// about the resource it references.
type Info struct {
	OwnerID        uuid.UUID `json:"owner_id"`
	IsAvailable    bool      `json:"is_available"`
	Title          string    `json:"title"`
	ThumbnailURL   *string   `json:"thumbnail_url,omitempty"`
	Condition      *string   `json:"condition,omitempty"`
	DisplayAddress string    `json:"display_address"`
}

// Resource is one exchangeable offer variant (book copies today),
// addressed by its offer_type key.
type Resource interface {
	Type() string
	GetInfo(ctx context.Context, id uuid.UUID) (*Info, error)
	Reserve(ctx context.Context, id, userID uuid.UUID, until time.Time) error
	Release(ctx context.Context, id uuid.UUID) error
	// MarkUnavailable is idempotent; marking an already-unavailable
	// offer is a no-op.
	MarkUnavailable(ctx context.Context, id uuid.UUID) error
}

// Registry resolves the polymorphic (offer_type, offer_id) reference to
// a registered variant.
type Registry struct {
	variants map[string]Resource
}

func NewRegistry(variants ...Resource) *Registry {
	r := &Registry{variants: make(map[string]Resource, len(variants))}
	for _, v := range variants {
		r.variants[v.Type()] = v
	}
	return r
}

func (r *Registry) resolve(offerType string) (Resource, error) {
	v, ok := r.variants[offerType]
	if !ok {
		return nil, apperr.Newf(apperr.CodeValidation, "unknown offer type %q", offerType)
	}
	return v, nil
}

func (r *Registry) GetOfferInfo(ctx context.Context, offerType string, id uuid.UUID) (*Info, error) {
	v, err := r.resolve(offerType)
	if err != nil {
		return nil, err
	}
	return v.GetInfo(ctx, id)
}

func (r *Registry) Reserve(ctx context.Context, offerType string, id, userID uuid.UUID, until time.Time) error {
	v, err := r.resolve(offerType)
	if err != nil {
		return err
	}
	return v.Reserve(ctx, id, userID, until)
}

func (r *Registry) Release(ctx context.Context, offerType string, id uuid.UUID) error {
	v, err := r.resolve(offerType)
	if err != nil {
		return err
	}
	return v.Release(ctx, id)
}

func (r *Registry) MarkUnavailable(ctx context.Context, offerType string, id uuid.UUID) error {
	v, err := r.resolve(offerType)
	if err != nil {
		return err
	}
	return v.MarkUnavailable(ctx, id)
}
