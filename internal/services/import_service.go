// Package services – ImportService
//
// This file implements the ImportService, which merges an externally fetched
// contact list into the local store without duplicating entries. The remote
// source is an HTTP endpoint returning a JSON array of records with optional
// name/phone/email string fields. Deduplication is by phone number: a fetched
// record whose phone already exists locally (or earlier in the same batch)
// is skipped rather than inserted.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"gorm.io/gorm"
)

// remoteRecord mirrors the wire shape of one element of the remote list.
// All fields may be absent or null.
type remoteRecord struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Email *string `json:"email"`
}

// ImportResult reports the outcome of a completed import run. The counts are
// advisory: they are not a transactional guarantee, and rows inserted before
// an interruption remain committed.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ImportService fetches the remote contact list and reconciles it into the
// repository.
type ImportService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the contact repository used for reads and inserts.
	Repo ContactRepo
	// Client issues the remote GET. When nil, http.DefaultClient is used;
	// the composition root injects a client with the configured timeout.
	Client *http.Client
	// URL is the remote contact source endpoint.
	URL string
}

// Import fetches the remote list and inserts every record whose phone number
// is not already present, reporting how many records it imported and skipped.
//
// Semantics:
//   - A transport failure, a non-2xx status, or a JSON decode failure aborts
//     the whole run before anything is written; the returned error wraps
//     ErrImportFetch.
//   - The seen-phone set is built once from the current store (non-null,
//     non-empty phones) and then updated in memory after each insert, so two
//     fetched records sharing a phone are deduplicated against each other as
//     well; only the first is kept. The set is deliberately not re-derived
//     from storage between inserts; a concurrent writer could interleave
//     between the re-read and the insert.
//   - Records are processed strictly in the order received.
//   - A missing name is treated as "" rather than rejecting the record.
//   - Missing or empty phone/email values are stored as NULL, the same shape
//     manually added contacts get.
//   - A failed insert aborts the remaining batch; rows inserted before the
//     failure stay committed and are counted in the returned result.
func (s *ImportService) Import(ctx context.Context) (ImportResult, error) {
	var res ImportResult

	records, err := s.fetch(ctx)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrImportFetch, err)
	}

	existing, err := s.Repo.ListContacts(ctx, s.DB)
	if err != nil {
		return res, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		if p := c.PhoneValue(); p != "" {
			seen[p] = struct{}{}
		}
	}

	for _, rec := range records {
		name := ""
		if rec.Name != nil {
			name = *rec.Name
		}
		phone := ""
		if rec.Phone != nil {
			phone = *rec.Phone
		}
		email := ""
		if rec.Email != nil {
			email = *rec.Email
		}

		if phone != "" {
			if _, dup := seen[phone]; dup {
				res.Skipped++
				continue
			}
		}

		// Empty strings persist as NULL, same shape as manual adds.
		if _, err := s.Repo.CreateContact(ctx, s.DB, name, optional(phone), optional(email)); err != nil {
			return res, err
		}
		res.Imported++
		if phone != "" {
			seen[phone] = struct{}{}
		}
	}

	return res, nil
}

// fetch GETs the remote list and decodes it. Any failure here means nothing
// has been written yet.
func (s *ImportService) fetch(ctx context.Context) ([]remoteRecord, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused, then report the status.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var records []remoteRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}
