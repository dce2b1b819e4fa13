package store

import (
	"context"
	"testing"

	"github.com/roach88/rumscope/internal/rum"
)

func TestListDocuments_FilterAndOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	sink := NewSink(s, nil)

	writeInBatch(sink,
		createTestView("view-1", 1, true),
		createTestError("view-1", "first"),
		createTestView("view-2", 1, true),
		createTestError("view-2", "second"),
		createTestView("view-1", 2, false),
	)

	all, err := s.ListDocuments(ctx, DocumentFilter{})
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("len(all) = %d, want 5", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Seq <= all[i-1].Seq {
			t.Errorf("rows not in write order: seq %d after %d", all[i].Seq, all[i-1].Seq)
		}
	}

	view1, err := s.ListDocuments(ctx, DocumentFilter{ViewID: "view-1"})
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(view1) != 3 {
		t.Errorf("len(view-1) = %d, want 3", len(view1))
	}

	errs, err := s.ListDocuments(ctx, DocumentFilter{Kind: rum.KindError})
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(errs) != 2 {
		t.Errorf("len(errors) = %d, want 2", len(errs))
	}

	both, err := s.ListDocuments(ctx, DocumentFilter{ViewID: "view-2", Kind: rum.KindError})
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(both) != 1 {
		t.Errorf("len(view-2 errors) = %d, want 1", len(both))
	}

	limited, err := s.ListDocuments(ctx, DocumentFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len(limited) = %d, want 2", len(limited))
	}
}

func TestListDocuments_Empty(t *testing.T) {
	s := createTestStore(t)

	rows, err := s.ListDocuments(context.Background(), DocumentFilter{ViewID: "nope"})
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("len(rows) = %d, want 0", len(rows))
	}
}

func TestCountByKind(t *testing.T) {
	s := createTestStore(t)
	sink := NewSink(s, nil)

	writeInBatch(sink,
		createTestView("view-1", 1, true),
		createTestView("view-1", 2, true),
		createTestError("view-1", "boom"),
	)

	counts, err := s.CountByKind(context.Background())
	if err != nil {
		t.Fatalf("CountByKind failed: %v", err)
	}
	if counts[rum.KindView] != 2 {
		t.Errorf("view count = %d, want 2", counts[rum.KindView])
	}
	if counts[rum.KindError] != 1 {
		t.Errorf("error count = %d, want 1", counts[rum.KindError])
	}
	if _, ok := counts[rum.KindResource]; ok {
		t.Error("resource kind should be absent")
	}
}

func TestLatestViews(t *testing.T) {
	s := createTestStore(t)
	sink := NewSink(s, nil)

	writeInBatch(sink,
		createTestView("view-b", 1, true),
		createTestView("view-a", 1, true),
		createTestView("view-b", 2, true),
		createTestView("view-a", 2, true),
		createTestView("view-a", 3, false),
	)

	latest, err := s.LatestViews(context.Background())
	if err != nil {
		t.Fatalf("LatestViews failed: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("len(latest) = %d, want 2", len(latest))
	}

	if latest[0].ViewID != "view-a" || latest[0].Version != 3 {
		t.Errorf("latest[0] = %s v%d, want view-a v3", latest[0].ViewID, latest[0].Version)
	}
	if latest[1].ViewID != "view-b" || latest[1].Version != 2 {
		t.Errorf("latest[1] = %s v%d, want view-b v2", latest[1].ViewID, latest[1].Version)
	}

	tree, err := latest[0].Row.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	detail := tree["view_detail"].(map[string]any)
	if detail["is_active"] != false {
		t.Errorf("view-a is_active = %v, want false", detail["is_active"])
	}
}
