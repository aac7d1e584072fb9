// Package state – Coordinator
//
// The Coordinator wraps the contact and import services with an in-memory
// mirror of the full contact list plus the UI-driven filter inputs, and hands
// the presentation layer the derived view. Every mutating operation follows
// the same pattern: perform the service call, then unconditionally reload the
// whole mirror from the store. Optimistic local patching is never used, so
// the mirror always reflects the store's true state after every confirmed
// write, at the cost of one extra read per write.
package state

import (
	"context"
	"sync"

	"github.com/tbourn/go-contacts-backend/internal/domain"
	"github.com/tbourn/go-contacts-backend/internal/services"
)

// View is an immutable snapshot handed to the presentation layer. Contacts
// already has both filters applied.
type View struct {
	Contacts     []domain.Contact `json:"contacts"`
	SearchText   string           `json:"search_text"`
	FavoriteOnly bool             `json:"favorite_only"`
	Loading      bool             `json:"loading"`
	Importing    bool             `json:"importing"`
}

// Coordinator owns the transient, always-replaceable mirror of the stored
// contacts and the active filter state. It is safe for concurrent use; a
// single mutex serializes state access, which keeps the original model of
// one logical operation at a time.
type Coordinator struct {
	contacts *services.ContactService
	importer *services.ImportService

	mu           sync.Mutex
	all          []domain.Contact
	searchText   string
	favoriteOnly bool
	loading      bool
	importing    bool
}

// NewCoordinator constructs a Coordinator over the given services. The
// coordinator starts in the loading state until the first Refresh completes.
func NewCoordinator(contacts *services.ContactService, importer *services.ImportService) *Coordinator {
	return &Coordinator{
		contacts: contacts,
		importer: importer,
		loading:  true,
	}
}

// Refresh replaces the in-memory mirror wholesale from the store and clears
// the loading flag. It is called once at startup and after every mutation.
func (co *Coordinator) Refresh(ctx context.Context) error {
	all, err := co.contacts.List(ctx)
	if err != nil {
		return err
	}
	co.mu.Lock()
	co.all = all
	co.loading = false
	co.mu.Unlock()
	return nil
}

// SetSearch updates the free-text filter input.
func (co *Coordinator) SetSearch(text string) {
	co.mu.Lock()
	co.searchText = text
	co.mu.Unlock()
}

// SetFavoriteOnly updates the favorite-only filter input.
func (co *Coordinator) SetFavoriteOnly(on bool) {
	co.mu.Lock()
	co.favoriteOnly = on
	co.mu.Unlock()
}

// Snapshot derives the current filtered view. Derivation is recomputed on
// every call from the mirror and the filter inputs; it performs no storage
// access.
func (co *Coordinator) Snapshot() View {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.deriveLocked()
}

// SnapshotWith records the given filter inputs and derives the view from
// them under a single lock acquisition. A caller carrying its own inputs
// (one HTTP request) must use this instead of SetSearch + SetFavoriteOnly +
// Snapshot: the three-call sequence can interleave with a concurrent caller
// and return a view filtered by the other caller's inputs.
func (co *Coordinator) SnapshotWith(searchText string, favoriteOnly bool) View {
	co.mu.Lock()
	defer co.mu.Unlock()
	co.searchText = searchText
	co.favoriteOnly = favoriteOnly
	return co.deriveLocked()
}

// deriveLocked builds a View from current state. Callers hold co.mu.
func (co *Coordinator) deriveLocked() View {
	return View{
		Contacts:     DeriveView(co.all, co.searchText, co.favoriteOnly),
		SearchText:   co.searchText,
		FavoriteOnly: co.favoriteOnly,
		Loading:      co.loading,
		Importing:    co.importing,
	}
}

// Add creates a contact and reloads the mirror.
func (co *Coordinator) Add(ctx context.Context, name, phone, email string) (*domain.Contact, error) {
	c, err := co.contacts.Add(ctx, name, phone, email)
	if err != nil {
		return nil, err
	}
	return c, co.Refresh(ctx)
}

// Edit overwrites a contact's fields and reloads the mirror. Editing a
// missing id succeeds without effect.
func (co *Coordinator) Edit(ctx context.Context, id int64, name, phone, email string) error {
	if err := co.contacts.Edit(ctx, id, name, phone, email); err != nil {
		return err
	}
	return co.Refresh(ctx)
}

// Remove deletes a contact and reloads the mirror. Removing a missing id
// succeeds without effect.
func (co *Coordinator) Remove(ctx context.Context, id int64) error {
	if err := co.contacts.Remove(ctx, id); err != nil {
		return err
	}
	return co.Refresh(ctx)
}

// SetFavorite writes an absolute favorite value and reloads the mirror.
func (co *Coordinator) SetFavorite(ctx context.Context, id int64, value int) error {
	if err := co.contacts.SetFavorite(ctx, id, value); err != nil {
		return err
	}
	return co.Refresh(ctx)
}

// ToggleFavorite flips the favorite flag and reloads the mirror. It returns
// the new value.
func (co *Coordinator) ToggleFavorite(ctx context.Context, id int64) (int, error) {
	next, err := co.contacts.ToggleFavorite(ctx, id)
	if err != nil {
		return 0, err
	}
	return next, co.Refresh(ctx)
}

// Import runs the reconciler against the remote source, holding the importing
// flag for the duration, then reloads the mirror exactly once, not once per
// inserted record. The returned counts are those of services.ImportService.
func (co *Coordinator) Import(ctx context.Context) (services.ImportResult, error) {
	co.mu.Lock()
	co.importing = true
	co.mu.Unlock()
	defer func() {
		co.mu.Lock()
		co.importing = false
		co.mu.Unlock()
	}()

	res, err := co.importer.Import(ctx)
	if err != nil {
		return res, err
	}
	return res, co.Refresh(ctx)
}
