package identification

import (
	"sync"
	"time"

	"github.com/kdimtricp/breedid/internal/catalog"
)

// Entry is an optional hand-off.
type Entry struct {
	handoff *Handoff
}

func Some(h Handoff) Entry { return Entry{handoff: &h} }
func None() Entry          { return Entry{} }

func (e Entry) Get() (Handoff, bool) {
	if e.handoff == nil {
		return Handoff{}, false
	}
	return *e.handoff, true
}

// Mailbox holds hand-offs until the result surface collects them. Each
// hand-off can be taken exactly once.
type Mailbox struct {
	mu      sync.Mutex
	entries map[string]Handoff
}

func NewMailbox() *Mailbox {
	return &Mailbox{entries: make(map[string]Handoff)}
}

func (m *Mailbox) Put(h Handoff) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[h.ID] = h
}

// Take removes and returns the hand-off for id.
func (m *Mailbox) Take(id string) Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.entries[id]
	if !ok {
		return None()
	}
	delete(m.entries, id)
	return Some(h)
}

func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Prune drops hand-offs completed more than ttl ago and returns how many
// were dropped.
func (m *Mailbox) Prune(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, h := range m.entries {
		if h.CompletedAt.Before(cutoff) {
			delete(m.entries, id)
			n++
		}
	}
	return n
}

// HomePath is where the result surface sends users who arrive without a
// hand-off.
const HomePath = "/"

// ResultView is everything the result surface renders.
type ResultView struct {
	ID           string
	ImageURL     string
	Breed        string
	Confidence   int
	Features     []string
	Tier         Tier
	Presentation Presentation
	LearnMoreURL string
	CompletedAt  time.Time
}

// Resolution is either a view to render or a redirect.
type Resolution struct {
	View     *ResultView
	Redirect string
}

// ResolveEntry turns a possibly empty entry into what the result surface
// should do.
func ResolveEntry(e Entry) Resolution {
	h, ok := e.Get()
	if !ok {
		return Resolution{Redirect: HomePath}
	}

	tier := h.Result.Tier()
	view := &ResultView{
		ID:           h.ID,
		Breed:        h.Result.Breed,
		Confidence:   h.Result.Confidence,
		Features:     h.Result.Features,
		Tier:         tier,
		Presentation: tier.Presentation(),
		LearnMoreURL: "/breeds/" + catalog.Slug(h.Result.Breed),
		CompletedAt:  h.CompletedAt,
	}
	if h.Image != nil {
		view.ImageURL = h.Image.DataURL()
	}
	return Resolution{View: view}
}
