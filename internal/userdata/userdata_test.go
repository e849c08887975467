package userdata

import (
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"

	cerrors "github.com/fayinlab/bodhicanon/core/errors"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "userdata.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "userdata.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store in nested directory: %v", err)
	}
	s.Close()
}

func TestFavorites(t *testing.T) {
	s := openStore(t)

	if err := s.AddFavorite(Favorite{WorkID: "T0235", Title: "金剛般若波羅蜜經", Author: "姚秦 鳩摩羅什譯"}); err != nil {
		t.Fatalf("failed to add favorite: %v", err)
	}
	if err := s.AddFavorite(Favorite{WorkID: "T0251", Title: "般若波羅蜜多心經"}); err != nil {
		t.Fatalf("failed to add favorite: %v", err)
	}

	favs, err := s.Favorites()
	if err != nil {
		t.Fatalf("failed to list favorites: %v", err)
	}
	if len(favs) != 2 {
		t.Fatalf("expected 2 favorites, got %d", len(favs))
	}
	if favs[0].WorkID != "T0235" || favs[1].WorkID != "T0251" {
		t.Errorf("unexpected shelf order: %s, %s", favs[0].WorkID, favs[1].WorkID)
	}
	if favs[0].AddedAt.IsZero() {
		t.Error("added_at should be filled in")
	}

	// Re-adding refreshes metadata but keeps the shelf slot.
	if err := s.AddFavorite(Favorite{WorkID: "T0235", Title: "金剛經"}); err != nil {
		t.Fatalf("failed to re-add favorite: %v", err)
	}
	favs, err = s.Favorites()
	if err != nil {
		t.Fatal(err)
	}
	if len(favs) != 2 {
		t.Fatalf("re-add should not grow the shelf: %d", len(favs))
	}
	if favs[0].WorkID != "T0235" || favs[0].Title != "金剛經" {
		t.Errorf("re-add should refresh title in place: %+v", favs[0])
	}

	if err := s.RemoveFavorite("T0235"); err != nil {
		t.Fatalf("failed to remove favorite: %v", err)
	}
	if err := s.RemoveFavorite("T0235"); !cerrors.Is(err, cerrors.ErrNotFound) {
		t.Errorf("removing a missing favorite should report not found, got %v", err)
	}
}

func TestReplaceFavorites(t *testing.T) {
	s := openStore(t)

	if err := s.AddFavorite(Favorite{WorkID: "T0001", Title: "長阿含經"}); err != nil {
		t.Fatal(err)
	}

	replacement := []Favorite{
		{WorkID: "T0262", Title: "妙法蓮華經"},
		{WorkID: "T0235", Title: "金剛般若波羅蜜經"},
		{WorkID: "T0360", Title: "佛說無量壽經"},
	}
	if err := s.ReplaceFavorites(replacement); err != nil {
		t.Fatalf("failed to replace favorites: %v", err)
	}

	favs, err := s.Favorites()
	if err != nil {
		t.Fatal(err)
	}
	if len(favs) != 3 {
		t.Fatalf("expected 3 favorites, got %d", len(favs))
	}
	for i, want := range []string{"T0262", "T0235", "T0360"} {
		if favs[i].WorkID != want {
			t.Errorf("shelf[%d] = %s, want %s", i, favs[i].WorkID, want)
		}
	}

	if err := s.ReplaceFavorites(nil); err != nil {
		t.Fatalf("failed to clear favorites: %v", err)
	}
	favs, err = s.Favorites()
	if err != nil {
		t.Fatal(err)
	}
	if len(favs) != 0 {
		t.Errorf("expected empty shelf, got %d entries", len(favs))
	}
}

func TestPositions(t *testing.T) {
	s := openStore(t)

	if _, err := s.Position("T0235"); !cerrors.Is(err, cerrors.ErrNotFound) {
		t.Errorf("missing position should report not found, got %v", err)
	}

	if err := s.SavePosition(Position{WorkID: "T0235", Scroll: 1, Fragment: "0749a12"}); err != nil {
		t.Fatalf("failed to save position: %v", err)
	}
	p, err := s.Position("T0235")
	if err != nil {
		t.Fatalf("failed to read position: %v", err)
	}
	if p.Scroll != 1 || p.Fragment != "0749a12" {
		t.Errorf("unexpected position: %+v", p)
	}
	if p.UpdatedAt.IsZero() {
		t.Error("updated_at should be filled in")
	}

	// Upsert moves the bookmark.
	if err := s.SavePosition(Position{WorkID: "T0235", Scroll: 2}); err != nil {
		t.Fatal(err)
	}
	p, err = s.Position("T0235")
	if err != nil {
		t.Fatal(err)
	}
	if p.Scroll != 2 || p.Fragment != "" {
		t.Errorf("upsert should replace scroll and fragment: %+v", p)
	}

	if err := s.SavePosition(Position{WorkID: "", Scroll: 1}); !cerrors.Is(err, cerrors.ErrInvalidInput) {
		t.Errorf("empty work id should be rejected, got %v", err)
	}
	if err := s.SavePosition(Position{WorkID: "T0235", Scroll: 0}); !cerrors.Is(err, cerrors.ErrInvalidInput) {
		t.Errorf("scroll 0 should be rejected, got %v", err)
	}

	if err := s.SavePosition(Position{WorkID: "T0251", Scroll: 1}); err != nil {
		t.Fatal(err)
	}
	all, err := s.Positions()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(all))
	}
}

func TestNotes(t *testing.T) {
	s := openStore(t)

	first, err := s.AddNote(Note{WorkID: "T0235", Scroll: 1, Quote: "凡所有相，皆是虛妄", Content: "初讀"})
	if err != nil {
		t.Fatalf("failed to add note: %v", err)
	}
	if first.ID == "" {
		t.Error("note id should be generated")
	}
	if first.CreatedAt.IsZero() {
		t.Error("created_at should be filled in")
	}

	second, err := s.AddNote(Note{WorkID: "T0235", Scroll: 1, Content: "再讀"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddNote(Note{WorkID: "T0251", Scroll: 1, Content: "他經筆記"}); err != nil {
		t.Fatal(err)
	}

	notes, err := s.Notes("T0235")
	if err != nil {
		t.Fatalf("failed to list notes: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes for T0235, got %d", len(notes))
	}
	if notes[0].ID != second.ID {
		t.Errorf("notes should list newest first, got %s", notes[0].Content)
	}
	if notes[1].Quote != "凡所有相，皆是虛妄" {
		t.Errorf("unexpected quote: %s", notes[1].Quote)
	}

	all, err := s.Notes("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 notes in total, got %d", len(all))
	}

	if _, err := s.AddNote(Note{WorkID: "T0235", Content: ""}); !cerrors.Is(err, cerrors.ErrInvalidInput) {
		t.Errorf("empty content should be rejected, got %v", err)
	}

	if err := s.DeleteNote(first.ID); err != nil {
		t.Fatalf("failed to delete note: %v", err)
	}
	if err := s.DeleteNote(first.ID); !cerrors.Is(err, cerrors.ErrNotFound) {
		t.Errorf("deleting a missing note should report not found, got %v", err)
	}
}

func TestPreferences(t *testing.T) {
	s := openStore(t)

	body, err := s.Preferences()
	if err != nil {
		t.Fatalf("failed to read preferences: %v", err)
	}
	if string(body) != "{}" {
		t.Errorf("fresh store should report an empty object, got %s", body)
	}

	if err := s.SavePreferences([]byte(`{"theme":"dark","font_size":18}`)); err != nil {
		t.Fatalf("failed to save preferences: %v", err)
	}
	body, err = s.Preferences()
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("stored preferences are not valid JSON: %v", err)
	}
	if doc["theme"] != "dark" {
		t.Errorf("unexpected theme: %v", doc["theme"])
	}

	if err := s.SavePreferences([]byte(`["not","an","object"]`)); !cerrors.Is(err, cerrors.ErrInvalidInput) {
		t.Errorf("non-object preferences should be rejected, got %v", err)
	}

	merged, err := s.MergePreferences([]byte(`{"theme":"light","compare":{"enabled":true}}`))
	if err != nil {
		t.Fatalf("failed to merge preferences: %v", err)
	}
	doc = nil
	if err := json.Unmarshal(merged, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["theme"] != "light" {
		t.Errorf("merge should overwrite theme, got %v", doc["theme"])
	}
	if doc["font_size"] != float64(18) {
		t.Errorf("merge should keep untouched keys, got %v", doc["font_size"])
	}
	if _, ok := doc["compare"]; !ok {
		t.Error("merge should add new keys")
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "userdata.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AddFavorite(Favorite{WorkID: "T0235", Title: "金剛般若波羅蜜經"}); err != nil {
		t.Fatal(err)
	}
	note, err := s.AddNote(Note{WorkID: "T0235", Scroll: 1, Content: "留存"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	favs, err := s.Favorites()
	if err != nil {
		t.Fatal(err)
	}
	if len(favs) != 1 || favs[0].WorkID != "T0235" {
		t.Errorf("favorites should survive reopen: %+v", favs)
	}
	notes, err := s.Notes("T0235")
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].ID != note.ID {
		t.Errorf("notes should survive reopen: %+v", notes)
	}
}

func TestDriverType(t *testing.T) {
	dt := DriverType()
	if dt != "purego" && dt != "cgo" {
		t.Errorf("unexpected driver type %q", dt)
	}
}
