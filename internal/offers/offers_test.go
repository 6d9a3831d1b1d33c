package offers

import (
	"context"
	"testing"
	"time"

	"github.com/bookcircle/backend/internal/apperr"
	"github.com/google/uuid"
)

type stubResource struct {
	typ         string
	infoCalls   int
	unavailable map[uuid.UUID]bool
}

func (s *stubResource) Type() string { return s.typ }

func (s *stubResource) GetInfo(ctx context.Context, id uuid.UUID) (*Info, error) {
	s.infoCalls++
	return &Info{OwnerID: id, IsAvailable: !s.unavailable[id], Title: "stub"}, nil
}

func (s *stubResource) Reserve(ctx context.Context, id, userID uuid.UUID, until time.Time) error {
	return nil
}

func (s *stubResource) Release(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubResource) MarkUnavailable(ctx context.Context, id uuid.UUID) error {
	s.unavailable[id] = true
	return nil
}

func TestRegistryResolvesByTypeKey(t *testing.T) {
	books := &stubResource{typ: "book_offer", unavailable: map[uuid.UUID]bool{}}
	reg := NewRegistry(books)

	id := uuid.New()
	info, err := reg.GetOfferInfo(context.Background(), "book_offer", id)
	if err != nil {
		t.Fatalf("GetOfferInfo: %v", err)
	}
	if info.OwnerID != id || books.infoCalls != 1 {
		t.Errorf("variant was not dispatched, calls=%d", books.infoCalls)
	}
}

func TestRegistryUnknownType(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.GetOfferInfo(context.Background(), "vinyl_offer", uuid.New())
	if err == nil {
		t.Fatal("expected error for unknown offer type")
	}
	if apperr.CodeOf(err) != apperr.CodeValidation {
		t.Errorf("code = %s, want %s", apperr.CodeOf(err), apperr.CodeValidation)
	}
}

func TestRegistryMarkUnavailableIdempotent(t *testing.T) {
	books := &stubResource{typ: "book_offer", unavailable: map[uuid.UUID]bool{}}
	reg := NewRegistry(books)

	id := uuid.New()
	ctx := context.Background()
	if err := reg.MarkUnavailable(ctx, "book_offer", id); err != nil {
		t.Fatalf("first MarkUnavailable: %v", err)
	}
	if err := reg.MarkUnavailable(ctx, "book_offer", id); err != nil {
		t.Fatalf("second MarkUnavailable should be a no-op: %v", err)
	}

	info, _ := reg.GetOfferInfo(ctx, "book_offer", id)
	if info.IsAvailable {
		t.Error("offer should stay unavailable")
	}
}
