package domain

import "testing"

func TestNewPageInfoMiddlePage(t *testing.T) {
	info := NewPageInfo(PageRequest{Page: 2, Limit: 10}, 25)
	if info.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %d", info.TotalPages)
	}
	if !info.HasNextPage || !info.HasPrevPage {
		t.Fatalf("expected next and prev pages, got %#v", info)
	}
	if info.CurrentPage != 2 || info.TotalItems != 25 || info.Limit != 10 {
		t.Fatalf("unexpected info %#v", info)
	}
}

func TestNewPageInfoEmpty(t *testing.T) {
	info := NewPageInfo(PageRequest{}, 0)
	if info.CurrentPage != 1 || info.TotalPages != 0 {
		t.Fatalf("unexpected info %#v", info)
	}
	if info.HasNextPage || info.HasPrevPage {
		t.Fatalf("empty result must not paginate: %#v", info)
	}
}

func TestPageRequestNormalize(t *testing.T) {
	req := PageRequest{Page: -4, Limit: 1000}.Normalize()
	if req.Page != 1 || req.Limit != MaxPageLimit {
		t.Fatalf("unexpected normalised request %#v", req)
	}
	if got := (PageRequest{Page: 3, Limit: 20}).Offset(); got != 40 {
		t.Fatalf("expected offset 40, got %d", got)
	}
}
