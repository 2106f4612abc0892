//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/firestore/firestoretest"
	"github.com/Roohan-gm/shopblizz-backend/internal/repositories"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(firestoretest.Start(t))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func testOrder(id, orderNo, name string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:             id,
		OrderNo:        orderNo,
		Status:         domain.OrderStatusPending,
		Customer:       domain.Customer{FullName: name, Email: "buyer@example.com", Phone: "+923001234567", Address: "Lahore"},
		PaymentMethod:  domain.PaymentMethodCashOnDelivery,
		ShippingMethod: domain.ShippingMethodStandard,
		ShippingCost:   100,
		TotalAmount:    600,
		Items:          []domain.OrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: 500}},
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestOrderRepositoryInsertRejectsTakenNumber(t *testing.T) {
	repo := newTestRegistry(t).Orders()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.Insert(ctx, testOrder("o1", "ORD-20240101-0000000A", "Ayesha", now)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := repo.Insert(ctx, testOrder("o2", "ORD-20240101-0000000A", "Bilal", now))
	if !errors.Is(err, repositories.ErrOrderNumberTaken) {
		t.Fatalf("expected order number taken, got %v", err)
	}
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict classification, got %v", err)
	}
	if _, err := repo.FindByID(ctx, "o2"); err == nil {
		t.Fatal("rejected order must not be persisted")
	}
}

func TestOrderRepositoryFullNameScanPaginates(t *testing.T) {
	repo := newTestRegistry(t).Orders()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		name := "Ayesha Khan"
		if i%2 == 0 {
			name = "Bilal Ahmed"
		}
		if err := repo.Insert(ctx, testOrder(fmt.Sprintf("o%02d", i), fmt.Sprintf("ORD-20240501-%08X", i), name, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	page, err := repo.List(ctx, repositories.OrderListFilter{FullName: "KHAN", Page: domain.PageRequest{Page: 2, Limit: 4}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Info.TotalItems != 6 || page.Info.TotalPages != 2 || page.Info.HasNextPage || !page.Info.HasPrevPage {
		t.Fatalf("unexpected page info %+v", page.Info)
	}
	if len(page.Items) != 2 || page.Items[0].ID != "o03" {
		t.Fatalf("unexpected items %+v", page.Items)
	}
}

func TestProductRepositoryNameReservationFollowsLifecycle(t *testing.T) {
	repo := newTestRegistry(t).Products()
	ctx := context.Background()
	now := time.Now().UTC()

	first := domain.Product{ID: "p1", Name: "18+/energy drink", Category: "18+", IsAvailable: true, CreatedAt: now, UpdatedAt: now}
	if err := repo.Insert(ctx, first); err != nil {
		t.Fatalf("insert: %v", err)
	}
	second := first
	second.ID = "p2"
	if err := repo.Insert(ctx, second); !errors.Is(err, repositories.ErrProductNameTaken) {
		t.Fatalf("expected name taken, got %v", err)
	}

	if _, err := repo.Mutate(ctx, "p1", func(p *domain.Product) error {
		p.IsDeleted = true
		p.DeletedAt = &now
		return nil
	}); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if err := repo.Insert(ctx, second); err != nil {
		t.Fatalf("insert after soft delete: %v", err)
	}
	if _, err := repo.Mutate(ctx, "p1", func(p *domain.Product) error {
		p.IsDeleted = false
		p.DeletedAt = nil
		return nil
	}); !errors.Is(err, repositories.ErrProductNameTaken) {
		t.Fatalf("expected restore conflict, got %v", err)
	}

	renamed, err := repo.Mutate(ctx, "p2", func(p *domain.Product) error {
		p.Name = "energy drink"
		return nil
	})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Name != "energy drink" {
		t.Fatalf("unexpected name %q", renamed.Name)
	}
	if _, err := repo.Mutate(ctx, "p1", func(p *domain.Product) error {
		p.IsDeleted = false
		p.DeletedAt = nil
		return nil
	}); err != nil {
		t.Fatalf("restore after rename freed the name: %v", err)
	}
}

func TestProductRepositoryPurgeAndDelete(t *testing.T) {
	repo := newTestRegistry(t).Products()
	ctx := context.Background()
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	old := now.Add(-31 * 24 * time.Hour)
	recent := now.Add(-10 * 24 * time.Hour)

	for _, p := range []domain.Product{
		{ID: "old", Name: "old", IsDeleted: true, DeletedAt: &old, CreatedAt: old},
		{ID: "recent", Name: "recent", IsDeleted: true, DeletedAt: &recent, CreatedAt: recent},
	} {
		if err := repo.Insert(ctx, p); err != nil {
			t.Fatalf("insert %s: %v", p.ID, err)
		}
	}

	purgeable, err := repo.ListPurgeable(ctx, now.Add(-30*24*time.Hour), 10)
	if err != nil {
		t.Fatalf("list purgeable: %v", err)
	}
	if len(purgeable) != 1 || purgeable[0].ID != "old" {
		t.Fatalf("unexpected purgeable set %+v", purgeable)
	}
	cutoff := now.Add(-30 * 24 * time.Hour)
	var repoErr repositories.RepositoryError
	if err := repo.Delete(ctx, "recent", cutoff); !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected a recently deleted product to be kept, got %v", err)
	}
	if err := repo.Delete(ctx, "old", cutoff); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = repo.Delete(ctx, "old", cutoff)
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestProductRepositoryFindByIDsSkipsMissing(t *testing.T) {
	repo := newTestRegistry(t).Products()
	ctx := context.Background()
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	for _, id := range []string{"p1", "p2"} {
		if err := repo.Insert(ctx, domain.Product{ID: id, Name: "item " + id, Price: 100, IsAvailable: true, CreatedAt: now, UpdatedAt: now}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	found, err := repo.FindByIDs(ctx, []string{"p2", "missing", " ", "p1"})
	if err != nil {
		t.Fatalf("find by ids: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected two products, got %+v", found)
	}
	if empty, err := repo.FindByIDs(ctx, nil); err != nil || len(empty) != 0 {
		t.Fatalf("expected empty lookup, got %v %v", empty, err)
	}
}

func TestUserRepositoryHandleReservations(t *testing.T) {
	repo := newTestRegistry(t).Users()
	ctx := context.Background()
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	profile := func(uid, username, email string) domain.UserProfile {
		return domain.UserProfile{UID: uid, Username: username, Email: email, Role: domain.UserRoleUser, CreatedAt: now, UpdatedAt: now}
	}

	if err := repo.Insert(ctx, profile("uid-1", "ayesha", "ayesha@example.com")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, profile("uid-2", "ayesha", "other@example.com")); !errors.Is(err, repositories.ErrUserExists) {
		t.Fatalf("expected username clash, got %v", err)
	}
	if err := repo.Insert(ctx, profile("uid-1", "someone", "someone@example.com")); !errors.Is(err, repositories.ErrUserExists) {
		t.Fatalf("expected uid clash, got %v", err)
	}

	if _, err := repo.Mutate(ctx, "uid-1", func(p *domain.UserProfile) error {
		p.Username = "ayesha_k"
		return nil
	}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	// the old username is free again
	if err := repo.Insert(ctx, profile("uid-2", "ayesha", "other@example.com")); err != nil {
		t.Fatalf("insert after rename: %v", err)
	}
	if _, err := repo.Mutate(ctx, "uid-2", func(p *domain.UserProfile) error {
		p.Email = "ayesha@example.com"
		return nil
	}); !errors.Is(err, repositories.ErrUserExists) {
		t.Fatalf("expected email clash, got %v", err)
	}

	found, err := repo.FindByUID(ctx, "uid-1")
	if err != nil || found.Username != "ayesha_k" {
		t.Fatalf("unexpected profile %+v %v", found, err)
	}
}
