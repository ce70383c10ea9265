package contacts

import (
	"context"
	"fmt"
	"testing"

	"github.com/nexusmail/nexusmail/internal/testutil"
)

func TestAddNewContact(t *testing.T) {
	db := testutil.NewTestStore(t)
	svc := New(db)
	ctx := context.Background()

	if err := svc.Add(ctx, "Alice Wong", "alice@example.com"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	c, err := db.GetContact(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if c == nil {
		t.Fatal("contact not saved")
	}
	if c.Name != "Alice Wong" {
		t.Errorf("Name: got %q", c.Name)
	}
	if c.Frequency != 1 {
		t.Errorf("Frequency: got %d, want 1", c.Frequency)
	}
	if c.Avatar != "AL" {
		t.Errorf("Avatar: got %q, want AL", c.Avatar)
	}
	if c.LastUsed.IsZero() {
		t.Error("LastUsed should be set")
	}
}

func TestAddWithoutEmail(t *testing.T) {
	svc := New(testutil.NewTestStore(t))

	if err := svc.Add(context.Background(), "No Address", ""); err == nil {
		t.Error("Add without an email should fail")
	}
}

func TestAddBumpsFrequency(t *testing.T) {
	db := testutil.NewTestStore(t)
	svc := New(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.Add(ctx, "Bob", "bob@example.com"); err != nil {
			t.Fatalf("Add #%d: %v", i+1, err)
		}
	}

	c, err := db.GetContact(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if c.Frequency != 3 {
		t.Errorf("Frequency: got %d, want 3", c.Frequency)
	}
}

func TestAddRefreshesName(t *testing.T) {
	db := testutil.NewTestStore(t)
	svc := New(db)
	ctx := context.Background()

	if err := svc.Add(ctx, "", "carol@example.com"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := svc.Add(ctx, "Carol Danvers", "carol@example.com"); err != nil {
		t.Fatalf("Add with name: %v", err)
	}

	c, err := db.GetContact(ctx, "carol@example.com")
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if c.Name != "Carol Danvers" {
		t.Errorf("Name should be refreshed, got %q", c.Name)
	}
	if c.Frequency != 2 {
		t.Errorf("Frequency: got %d, want 2", c.Frequency)
	}
}

func TestSearchSubstringAndFuzzy(t *testing.T) {
	db := testutil.NewTestStore(t)
	svc := New(db)
	ctx := context.Background()

	seed := []struct{ name, email string }{
		{"Alice Wong", "alice@example.com"},
		{"Bob Marley", "bob@music.example"},
		{"Charlotte", "charlotte@example.com"},
	}
	for _, s := range seed {
		if err := svc.Add(ctx, s.name, s.email); err != nil {
			t.Fatalf("Add(%s): %v", s.email, err)
		}
	}

	results, err := svc.Search(ctx, "alice")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Email != "alice@example.com" {
		t.Errorf("substring search: got %+v", results)
	}

	// Case-insensitive on names.
	results, err = svc.Search(ctx, "MARLEY")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Email != "bob@music.example" {
		t.Errorf("case-insensitive search: got %+v", results)
	}

	// Fuzzy: skipped characters still match.
	results, err = svc.Search(ctx, "chrltte")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	found := false
	for _, c := range results {
		if c.Email == "charlotte@example.com" {
			found = true
		}
	}
	if !found {
		t.Errorf("fuzzy search missed charlotte, got %+v", results)
	}
}

func TestSearchPinyin(t *testing.T) {
	db := testutil.NewTestStore(t)
	svc := New(db)
	ctx := context.Background()

	if err := svc.Add(ctx, "张伟", "zhangwei@example.com"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := svc.Search(ctx, "zhangwei")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Email != "zhangwei@example.com" {
		t.Errorf("pinyin search: got %+v", results)
	}
}

func TestSearchRankedByFrequencyAndCapped(t *testing.T) {
	db := testutil.NewTestStore(t)
	svc := New(db)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		email := fmt.Sprintf("user%02d@example.com", i)
		for j := 0; j <= i; j++ {
			if err := svc.Add(ctx, fmt.Sprintf("User %02d", i), email); err != nil {
				t.Fatalf("Add(%s): %v", email, err)
			}
		}
	}

	results, err := svc.Search(ctx, "user")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("results should be capped at 10, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Frequency > results[i-1].Frequency {
			t.Errorf("results not frequency-descending at %d: %d after %d",
				i, results[i].Frequency, results[i-1].Frequency)
		}
	}
	if results[0].Email != "user14@example.com" {
		t.Errorf("most frequent contact should rank first, got %q", results[0].Email)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	svc := New(testutil.NewTestStore(t))

	results, err := svc.Search(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("blank query should return nothing, got %+v", results)
	}
}

func TestToPinyinMixedScript(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"Alice", "alice"},
		{"张伟", "zhangwei"},
		{"李Anna", "lianna"},
	}
	for _, tc := range cases {
		if got := toPinyin(tc.in); got != tc.want {
			t.Errorf("toPinyin(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestInitials(t *testing.T) {
	cases := []struct{ in, want string }{
		{"alice", "AL"},
		{"b", "B"},
		{"  carol  ", "CA"},
		{"张伟", "张伟"},
	}
	for _, tc := range cases {
		if got := initials(tc.in); got != tc.want {
			t.Errorf("initials(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}
