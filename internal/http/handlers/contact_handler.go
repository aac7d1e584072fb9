// Contact HTTP handlers.
//
// This file exposes the REST surface of the contact manager:
//   - GET    /contacts               (filtered list, ETag support)
//   - POST   /contacts               (create)
//   - PUT    /contacts/{id}          (edit name/phone/email)
//   - DELETE /contacts/{id}          (delete)
//   - PUT    /contacts/{id}/favorite (set or toggle the favorite flag)
//   - POST   /contacts/import        (bulk import from the remote source)
//
// Handlers are transport-thin: they validate input, call the view-state
// coordinator, and translate results into HTTP responses. Edits and deletes
// of a missing id deliberately succeed (the store treats them as zero-row
// no-ops), so those routes never return 404.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-contacts-backend/internal/domain"
	"github.com/tbourn/go-contacts-backend/internal/http/middleware"
	"github.com/tbourn/go-contacts-backend/internal/repo"
	"github.com/tbourn/go-contacts-backend/internal/services"
	"github.com/tbourn/go-contacts-backend/internal/state"
	"github.com/tbourn/go-contacts-backend/internal/utils"
)

//
// Coordinator contract
//

// ContactView is the view-state coordinator contract consumed by the HTTP
// layer. It is the entire surface the presentation side is allowed to depend
// on: the derived filtered list plus the mutating operations.
//
// Implementations must be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ContactView interface {
	// SnapshotWith records the request's filter inputs and returns the view
	// derived from them, atomically with respect to concurrent requests.
	SnapshotWith(searchText string, favoriteOnly bool) state.View
	// Add creates a contact and refreshes the mirror.
	Add(ctx context.Context, name, phone, email string) (*domain.Contact, error)
	// Edit overwrites a contact's fields; a missing id is a silent success.
	Edit(ctx context.Context, id int64, name, phone, email string) error
	// Remove deletes a contact; a missing id is a silent success.
	Remove(ctx context.Context, id int64) error
	// SetFavorite writes an absolute favorite value (0 or 1).
	SetFavorite(ctx context.Context, id int64, value int) error
	// ToggleFavorite flips the flag and returns the new value.
	ToggleFavorite(ctx context.Context, id int64) (int, error)
	// Import runs the reconciler against the remote contact source.
	Import(ctx context.Context) (services.ImportResult, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the contact API. The optional DB
// handle is used for cheap aggregate queries (ETag generation) and for
// idempotency records; everything else goes through the coordinator.
type Handlers struct {
	view           ContactView
	db             *gorm.DB
	idempotencyTTL time.Duration
}

// New constructs a Handlers instance bound to the given coordinator and DB
// handle. ttl governs how long recorded Idempotency-Key outcomes stay
// replayable.
func New(view ContactView, db *gorm.DB, ttl time.Duration) *Handlers {
	return &Handlers{view: view, db: db, idempotencyTTL: ttl}
}

// userID extracts the authenticated user id from Gin context (set by
// upstream middleware). If absent, it falls back to the "X-User-ID" header,
// and finally to "demo-user".
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// ContactRequest is the JSON payload for creating or editing a contact.
type ContactRequest struct {
	// Name is the display name (required, non-blank after trimming).
	Name string `json:"name" binding:"required" example:"Anna Nguyen"`
	// Phone is optional; empty values are stored as NULL.
	Phone string `json:"phone" example:"0901234567"`
	// Email is optional; a non-empty value must contain '@'.
	Email string `json:"email" example:"anna@example.com"`
}

// FavoriteRequest is the JSON payload for the favorite endpoint. When the
// body is omitted entirely the flag is toggled instead.
type FavoriteRequest struct {
	// Favorite must be 0 or 1.
	Favorite int `json:"favorite" example:"1"`
}

// FavoriteResponse reports the favorite flag after a set or toggle.
type FavoriteResponse struct {
	ID       int64 `json:"id"`
	Favorite int   `json:"favorite"`
}

// ListContactsResponse wraps the derived contact view.
type ListContactsResponse struct {
	Contacts     []domain.Contact `json:"contacts"`
	Total        int              `json:"total"`
	SearchText   string           `json:"search_text"`
	FavoriteOnly bool             `json:"favorite_only"`
	Loading      bool             `json:"loading"`
	Importing    bool             `json:"importing"`
}

// ImportResponse reports the outcome of a bulk import run.
type ImportResponse struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

//
// Handlers
//

// ListContacts godoc
// @ID          listContacts
// @Summary     List contacts (filtered)
// @Description Returns the derived contact view: newest first, intersected with the favorite-only and free-text filters. Supports weak ETag via If-None-Match.
// @Tags        Contacts
// @Produce     json
//
// @Param       q              query   string  false "Case-insensitive substring matched against name or phone"
// @Param       favorite_only  query   bool    false "Keep only favorite contacts"
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.ListContactsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contacts [get]
func (h *Handlers) ListContacts(c *gin.Context) {
	q := c.Query("q")
	favOnly := utils.BoolDefault(c.Query("favorite_only"), false)

	// ETag pre-check (best effort). The pair (count, max updated_at) changes
	// whenever stored content changes, edits and favorite flips included; the
	// request's filters are folded in (with the same Unicode folding the
	// matcher uses) because they change the derived result without touching
	// storage.
	if h.db != nil {
		count, maxTS, err := repo.ContactsStats(c.Request.Context(), h.db)
		if err == nil {
			etag := fmt.Sprintf(`W/"contacts:%d:%d:%s:%t"`, count, maxTS, state.Fold(q), favOnly)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	v := h.view.SnapshotWith(q, favOnly)
	ok(c, http.StatusOK, ListContactsResponse{
		Contacts:     v.Contacts,
		Total:        len(v.Contacts),
		SearchText:   v.SearchText,
		FavoriteOnly: v.FavoriteOnly,
		Loading:      v.Loading,
		Importing:    v.Importing,
	})
}

// CreateContact godoc
// @ID          createContact
// @Summary     Create a new contact
// @Description Creates a contact and returns the stored record with its assigned id.
// @Tags        Contacts
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Safe-retry key"
// @Param       body             body    handlers.ContactRequest  true  "Contact payload"
//
// @Success     201  {object}  domain.Contact
// @Success     200  {object}  domain.Contact "Replayed from a previous identical request"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /contacts [post]
func (h *Handlers) CreateContact(c *gin.Context) {
	if h.serveReplay(c) {
		return
	}

	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	contact, err := h.view.Add(c.Request.Context(), req.Name, req.Phone, req.Email)
	if err != nil {
		if errors.Is(err, services.ErrEmptyName) || errors.Is(err, services.ErrInvalidEmail) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}

	h.recordOutcome(c, contact, http.StatusCreated)
	ok(c, http.StatusCreated, contact)
}

// UpdateContact godoc
// @ID          updateContact
// @Summary     Edit a contact
// @Description Overwrites name, phone, and email of a contact. Editing an id that no longer exists succeeds without effect.
// @Tags        Contacts
// @Accept      json
// @Produce     json
//
// @Param       id    path  integer  true  "Contact ID"
// @Param       body  body  handlers.ContactRequest  true  "New field values"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contacts/{id} [put]
func (h *Handlers) UpdateContact(c *gin.Context) {
	id, valid := contactID(c)
	if !valid {
		return
	}

	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	if err := h.view.Edit(c.Request.Context(), id, req.Name, req.Phone, req.Email); err != nil {
		if errors.Is(err, services.ErrEmptyName) || errors.Is(err, services.ErrInvalidEmail) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
		return
	}
	noContent(c)
}

// DeleteContact godoc
// @ID          deleteContact
// @Summary     Delete a contact
// @Description Removes a contact. Deleting an id that no longer exists succeeds without effect.
// @Tags        Contacts
// @Produce     json
//
// @Param       id  path  integer  true  "Contact ID"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contacts/{id} [delete]
func (h *Handlers) DeleteContact(c *gin.Context) {
	id, valid := contactID(c)
	if !valid {
		return
	}

	if err := h.view.Remove(c.Request.Context(), id); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, err.Error())
		return
	}
	noContent(c)
}

// SetFavorite godoc
// @ID          setFavorite
// @Summary     Set or toggle the favorite flag
// @Description With a JSON body the flag is set to the given absolute value (0 or 1); with an empty body it is toggled. Toggling requires the contact to exist.
// @Tags        Contacts
// @Accept      json
// @Produce     json
//
// @Param       id    path  integer  true   "Contact ID"
// @Param       body  body  handlers.FavoriteRequest  false  "Absolute value; omit to toggle"
//
// @Success     200  {object} handlers.FavoriteResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Contact not found (toggle only)"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contacts/{id}/favorite [put]
func (h *Handlers) SetFavorite(c *gin.Context) {
	id, valid := contactID(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()

	// Empty body means toggle; anything else must parse as FavoriteRequest.
	if c.Request.ContentLength == 0 {
		next, err := h.view.ToggleFavorite(ctx, id)
		if err != nil {
			if errors.Is(err, services.ErrContactNotFound) {
				fail(c, http.StatusNotFound, ErrCodeNotFound, "contact not found")
				return
			}
			fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
			return
		}
		ok(c, http.StatusOK, FavoriteResponse{ID: id, Favorite: next})
		return
	}

	var req FavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.view.SetFavorite(ctx, id, req.Favorite); err != nil {
		if errors.Is(err, services.ErrInvalidFavorite) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, FavoriteResponse{ID: id, Favorite: req.Favorite})
}

// ImportContacts godoc
// @ID          importContacts
// @Summary     Import contacts from the remote source
// @Description Fetches the configured remote list and inserts every record whose phone number is not already known, reporting imported and skipped counts. Supports Idempotency-Key replay.
// @Tags        Contacts
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Safe-retry key"
//
// @Success     200  {object} handlers.ImportResponse
// @Failure     502  {object} handlers.ErrorResponse "Remote source unavailable"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contacts/import [post]
func (h *Handlers) ImportContacts(c *gin.Context) {
	if h.serveReplay(c) {
		return
	}

	res, err := h.view.Import(c.Request.Context())
	if err != nil {
		middleware.ObserveImport(0, 0, true)
		if errors.Is(err, services.ErrImportFetch) {
			fail(c, http.StatusBadGateway, ErrCodeImportFailed, "could not fetch remote contacts")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeImportFailed, err.Error())
		return
	}

	middleware.ObserveImport(res.Imported, res.Skipped, false)
	out := ImportResponse{Imported: res.Imported, Skipped: res.Skipped}
	h.recordOutcome(c, out, http.StatusOK)
	ok(c, http.StatusOK, out)
}

//
// Helpers
//

// contactID parses the :id path parameter, failing the request with 400 on
// anything that is not a positive integer.
func contactID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "contact id must be a positive integer")
		return 0, false
	}
	return id, true
}

// serveReplay answers a request whose Idempotency-Key matches a stored,
// unexpired outcome. It returns true when the response has been written and
// the handler should stop.
func (h *Handlers) serveReplay(c *gin.Context) bool {
	if !middleware.IsReplay(c) || h.db == nil {
		return false
	}
	key, okKey := middleware.GetIdempotencyKey(c)
	if !okKey {
		return false
	}
	scope := c.FullPath()
	rec, err := repo.GetIdempotency(c.Request.Context(), h.db, userID(c), scope, key, time.Now().UTC())
	if err != nil || rec == nil {
		return false
	}
	c.Data(rec.Status, "application/json; charset=utf-8", []byte(rec.Outcome))
	return true
}

// recordOutcome persists the response body for the request's Idempotency-Key
// so a retry can be replayed. Best effort: storage failures are logged, not
// surfaced.
func (h *Handlers) recordOutcome(c *gin.Context, body any, status int) {
	if h.db == nil {
		return
	}
	key, okKey := middleware.GetIdempotencyKey(c)
	if !okKey {
		return
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return
	}
	scope := c.FullPath()
	if _, err := repo.CreateIdempotency(c.Request.Context(), h.db, userID(c), scope, key, string(buf), status, h.idempotencyTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
	}
}
