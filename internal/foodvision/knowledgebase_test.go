package foodvision

import (
	"context"
	"testing"
)

func TestKnowledgeBaseExactMatch(t *testing.T) {
	kb := NewStaticKnowledgeBase()
	info, found, err := kb.Lookup(context.Background(), "pizza")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("pizza should be found")
	}
	if info.MatchedName != "pizza" {
		t.Errorf("matched %q, want pizza", info.MatchedName)
	}
	if info.DensityGPerML <= 0 || info.CaloriesPer100G <= 0 {
		t.Errorf("implausible figures: %+v", info)
	}
}

func TestKnowledgeBasePrefersLongerMatch(t *testing.T) {
	kb := NewStaticKnowledgeBase()
	info, found, _ := kb.Lookup(context.Background(), "french fries")
	if !found {
		t.Fatal("french fries should be found")
	}
	if info.MatchedName != "french fries" {
		t.Errorf("matched %q, want french fries over fries", info.MatchedName)
	}
}

func TestKnowledgeBaseTokenOverlap(t *testing.T) {
	kb := NewStaticKnowledgeBase()
	info, found, _ := kb.Lookup(context.Background(), "a grilled chicken breast")
	if !found {
		t.Fatal("grilled chicken should resolve")
	}
	if info.MatchedName != "chicken" {
		t.Errorf("matched %q, want chicken", info.MatchedName)
	}
}

func TestKnowledgeBaseMiss(t *testing.T) {
	kb := NewStaticKnowledgeBase()
	_, found, _ := kb.Lookup(context.Background(), "xylophone")
	if found {
		t.Error("nonsense query should not match")
	}
	_, found, _ = kb.Lookup(context.Background(), "")
	if found {
		t.Error("empty query should not match")
	}
}
