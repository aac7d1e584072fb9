// Package domain defines the persistence models for the contact manager.
// These types are mapped with GORM and form the core data layer of the
// application.
package domain

// Contact represents a single address-book entry. Contacts are created either
// manually through the API or as a side effect of importing from the remote
// contact source.
//
// Fields:
//   - ID: integer surrogate key assigned by SQLite on insert (autoincrement),
//     immutable thereafter.
//   - Name: display name; never empty once past service-level validation.
//   - Phone: optional phone number. During import it acts as the natural
//     deduplication key, but uniqueness is NOT enforced at the schema level,
//     so manually entered duplicates remain possible.
//   - Email: optional e-mail address; validated ('@' present) by the service
//     layer, stored as-is here.
//   - Favorite: 0 or 1 (DB check constraint); defaults to 0 on creation.
//   - CreatedAt: creation instant in Unix milliseconds; the sole sort key
//     for listing (descending, newest first).
//   - UpdatedAt: last write instant in Unix milliseconds. Equal to CreatedAt
//     until the first edit, bumped by every field or favorite write; the
//     conditional-response layer derives freshness from it, so any content
//     change must move it.
type Contact struct {
	ID        int64   `json:"id"         gorm:"primaryKey;autoIncrement"`
	Name      string  `json:"name"       gorm:"type:TEXT;not null"`
	Phone     *string `json:"phone"      gorm:"type:TEXT"`
	Email     *string `json:"email"      gorm:"type:TEXT"`
	Favorite  int     `json:"favorite"   gorm:"type:INTEGER;not null;default:0;check:favorite IN (0,1)"`
	CreatedAt int64   `json:"created_at" gorm:"type:INTEGER;autoCreateTime:milli;index:idx_contacts_created"`
	UpdatedAt int64   `json:"updated_at" gorm:"type:INTEGER;autoUpdateTime:milli"`
}

// TableName returns the database table name for Contact.
func (Contact) TableName() string { return "contacts" }

// IsFavorite reports whether the contact is flagged as a favorite.
func (c Contact) IsFavorite() bool { return c.Favorite == 1 }

// PhoneValue returns the phone number, or "" when absent.
func (c Contact) PhoneValue() string {
	if c.Phone == nil {
		return ""
	}
	return *c.Phone
}
