package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/OireachtasAI/oireachtas-mvp/engine/debates"
	"github.com/OireachtasAI/oireachtas-mvp/engine/domain"
)

func TestSplitHouses(t *testing.T) {
	got := splitHouses("dail, seanad ,,")
	want := []string{"dail", "seanad"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitHouses = %v, want %v", got, want)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")

	if got := loadCursor(path); len(got) != 0 {
		t.Fatalf("missing file should start fresh, got %v", got)
	}

	cursor := map[string]string{"dail": "2024-03-21", "seanad": "2024-03-20"}
	if err := saveCursor(path, cursor); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := loadCursor(path); !reflect.DeepEqual(got, cursor) {
		t.Fatalf("round trip = %v, want %v", got, cursor)
	}
}

func TestLoadCursor_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	os.WriteFile(path, []byte("{broken"), 0o644)
	if got := loadCursor(path); len(got) != 0 {
		t.Fatalf("corrupt file should start fresh, got %v", got)
	}
}

func TestDumpMembers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/members" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"results":[{"member":{"fullName":"Mary Lou McDonald","memberships":[{"membership":{"house":{"houseCode":"dail"},"parties":[{"party":{"showAs":"Sinn Féin"}}],"represents":[{"represent":{"showAs":"Dublin Central"}}]}}]}}]}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "members.json")
	f := debates.NewFetcher(srv.URL)
	if err := dumpMembers(context.Background(), f, []string{"dail"}, path); err != nil {
		t.Fatalf("dumpMembers: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var members []domain.Member
	if err := json.Unmarshal(data, &members); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(members))
	}
	m := members[0]
	if m.Name != "Mary Lou McDonald" || m.Party != "Sinn Féin" || m.Constituency != "Dublin Central" {
		t.Fatalf("wrong member: %+v", m)
	}
}
