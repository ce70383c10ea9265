// Package contacts maintains the address book: add-or-update with
// usage frequency tracking, and fuzzy plus phonetic (pinyin) search.
package contacts

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/mozillazg/go-pinyin"
	"github.com/sahilm/fuzzy"

	"github.com/nexusmail/nexusmail/internal/store"
)

// maxResults caps a search response.
const maxResults = 10

// Service implements address book operations on top of the store.
type Service struct {
	store store.Store
}

// New creates a contacts service.
func New(s store.Store) *Service {
	return &Service{store: s}
}

// Add records a contact use. A known email has its frequency bumped
// and, if a name is supplied, its name and pinyin refreshed; an
// unknown email becomes a new entry with an initials avatar.
func (s *Service) Add(ctx context.Context, name, email string) error {
	if email == "" {
		return fmt.Errorf("contact email is required")
	}

	existing, err := s.store.GetContact(ctx, email)
	if err != nil {
		return err
	}

	now := time.Now()
	if existing != nil {
		if name != "" && name != existing.Name {
			existing.Name = name
			existing.Pinyin = toPinyin(name)
		}
		existing.Frequency++
		existing.LastUsed = now
		return s.store.SaveContact(ctx, *existing)
	}

	display := name
	if display == "" {
		display = email
	}
	return s.store.SaveContact(ctx, store.Contact{
		Email:     email,
		Name:      name,
		Avatar:    initials(display),
		Pinyin:    toPinyin(name),
		Frequency: 1,
		LastUsed:  now,
	})
}

// Search matches the query against contact names, emails, and pinyin
// transliterations, both as substrings and fuzzily, and returns up to
// maxResults entries ranked by usage frequency.
func (s *Service) Search(ctx context.Context, query string) ([]store.Contact, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	all, err := s.store.GetContacts(ctx)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(query)
	matched := make(map[string]bool)

	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Name), lower) ||
			strings.Contains(strings.ToLower(c.Email), lower) ||
			(c.Pinyin != "" && strings.Contains(c.Pinyin, lower)) {
			matched[c.Email] = true
		}
	}

	// Fuzzy pass catches typos and skipped characters the substring
	// pass misses.
	for _, m := range fuzzy.FindFrom(lower, contactSource(all)) {
		matched[all[m.Index].Email] = true
	}

	// The store returns contacts frequency-descending already; keep
	// that order.
	var results []store.Contact
	for _, c := range all {
		if !matched[c.Email] {
			continue
		}
		results = append(results, c)
		if len(results) == maxResults {
			break
		}
	}

	return results, nil
}

// contactSource adapts a contact slice for fuzzy matching over the
// combined name, email, and pinyin text.
type contactSource []store.Contact

func (s contactSource) String(i int) string {
	c := s[i]
	return strings.ToLower(c.Name + " " + c.Email + " " + c.Pinyin)
}

func (s contactSource) Len() int { return len(s) }

// pinyinArgs is the shared transliteration configuration.
var pinyinArgs = pinyin.NewArgs()

// toPinyin transliterates Han characters to lowercase pinyin and
// passes other runes through lowercased, so mixed-script names stay
// searchable.
func toPinyin(name string) string {
	if name == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		if unicode.Is(unicode.Han, r) {
			if p := pinyin.LazyPinyin(string(r), pinyinArgs); len(p) > 0 {
				b.WriteString(p[0])
				continue
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// initials derives a two-character avatar from a display name.
func initials(display string) string {
	runes := []rune(strings.TrimSpace(display))
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return strings.ToUpper(string(runes))
}
