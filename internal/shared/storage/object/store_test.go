package object

import (
	"strings"
	"testing"
)

func TestKeyForNamespacesByUser(t *testing.T) {
	a, err := KeyFor("7", "성적표.pdf")
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	b, _ := KeyFor("7", "성적표.pdf")
	if a == b {
		t.Fatalf("expected unique keys per call")
	}
	if !strings.HasPrefix(a, "transcripts/") || !strings.HasSuffix(a, "-성적표.pdf") {
		t.Fatalf("unexpected key %s", a)
	}
	if _, err := KeyFor("7", "../x"); err == nil {
		t.Fatalf("expected traversal rejected")
	}
}

func TestOwnedBy(t *testing.T) {
	key, err := KeyFor("7", "a.pdf")
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if !OwnedBy(key, "7") {
		t.Fatalf("expected %s owned by 7", key)
	}
	if OwnedBy(key, "8") {
		t.Fatalf("expected %s not owned by 8", key)
	}
	if OwnedBy("transcripts/a.pdf", "7") {
		t.Fatalf("expected bare key rejected")
	}
}
