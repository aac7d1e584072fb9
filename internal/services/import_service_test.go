package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-contacts-backend/internal/domain"
)

// importRepo records inserts and serves a canned local contact list.
type importRepo struct {
	fakeContactRepo

	existing []domain.Contact
	inserted []domain.Contact
	failAt   int // 1-based insert index that fails; 0 disables
}

func (r *importRepo) ListContacts(ctx context.Context, db *gorm.DB) ([]domain.Contact, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.existing, nil
}

func (r *importRepo) CreateContact(ctx context.Context, db *gorm.DB, name string, phone, email *string) (*domain.Contact, error) {
	if r.failAt > 0 && len(r.inserted)+1 == r.failAt {
		return nil, errors.New("insert failed")
	}
	c := domain.Contact{ID: int64(len(r.inserted) + 1), Name: name, Phone: phone, Email: email}
	r.inserted = append(r.inserted, c)
	return &c, nil
}

func importServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("remote fetch must be GET, got %s", r.Method)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestImport_InsertsNewAndSkipsKnownPhones(t *testing.T) {
	srv := importServer(t, http.StatusOK, `[
		{"name":"New One","phone":"111","email":"one@example.com"},
		{"name":"Already Local","phone":"0901234567"},
		{"name":"New Two","phone":"222"}
	]`)

	phone := "0901234567"
	fr := &importRepo{existing: []domain.Contact{{ID: 1, Name: "Local", Phone: &phone}}}
	svc := &ImportService{Repo: fr, URL: srv.URL}

	res, err := svc.Import(context.Background())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Imported != 2 || res.Skipped != 1 {
		t.Fatalf("want 2 imported / 1 skipped, got %+v", res)
	}
	if len(fr.inserted) != 2 || fr.inserted[0].Name != "New One" || fr.inserted[1].Name != "New Two" {
		t.Fatalf("wrong inserts: %+v", fr.inserted)
	}
}

func TestImport_DeduplicatesWithinBatch(t *testing.T) {
	srv := importServer(t, http.StatusOK, `[
		{"name":"First","phone":"555"},
		{"name":"Second Same Phone","phone":"555"}
	]`)

	fr := &importRepo{}
	svc := &ImportService{Repo: fr, URL: srv.URL}

	res, err := svc.Import(context.Background())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Imported != 1 || res.Skipped != 1 {
		t.Fatalf("want 1 imported / 1 skipped, got %+v", res)
	}
	if len(fr.inserted) != 1 || fr.inserted[0].Name != "First" {
		t.Fatalf("only the first record may be kept: %+v", fr.inserted)
	}
}

func TestImport_MissingPhoneNeverDeduplicates(t *testing.T) {
	srv := importServer(t, http.StatusOK, `[
		{"name":"No Phone A"},
		{"name":"No Phone B","phone":null},
		{"name":"No Phone C","phone":""}
	]`)

	fr := &importRepo{}
	svc := &ImportService{Repo: fr, URL: srv.URL}

	res, err := svc.Import(context.Background())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Imported != 3 || res.Skipped != 0 {
		t.Fatalf("phoneless records must all be inserted, got %+v", res)
	}
}

func TestImport_EmptyOptionalFieldsStoredAsNull(t *testing.T) {
	srv := importServer(t, http.StatusOK, `[
		{"name":"Blank Strings","phone":"","email":""},
		{"name":"Absent Fields"},
		{"name":"Full","phone":"444","email":"full@example.com"}
	]`)

	fr := &importRepo{}
	svc := &ImportService{Repo: fr, URL: srv.URL}

	if _, err := svc.Import(context.Background()); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(fr.inserted) != 3 {
		t.Fatalf("want 3 inserts, got %+v", fr.inserted)
	}
	// Empty and absent values must land as NULL, like manual adds.
	for _, c := range fr.inserted[:2] {
		if c.Phone != nil || c.Email != nil {
			t.Fatalf("empty optionals must be nil: %+v", c)
		}
	}
	if fr.inserted[2].PhoneValue() != "444" || fr.inserted[2].Email == nil || *fr.inserted[2].Email != "full@example.com" {
		t.Fatalf("populated optionals must survive: %+v", fr.inserted[2])
	}
}

func TestImport_MissingNameBecomesEmptyString(t *testing.T) {
	srv := importServer(t, http.StatusOK, `[{"phone":"999"}]`)

	fr := &importRepo{}
	svc := &ImportService{Repo: fr, URL: srv.URL}

	if _, err := svc.Import(context.Background()); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(fr.inserted) != 1 || fr.inserted[0].Name != "" {
		t.Fatalf("nameless record must be stored with empty name: %+v", fr.inserted)
	}
}

func TestImport_RemoteErrorAbortsBeforeAnyWrite(t *testing.T) {
	srv := importServer(t, http.StatusInternalServerError, "boom")

	fr := &importRepo{}
	svc := &ImportService{Repo: fr, URL: srv.URL}

	_, err := svc.Import(context.Background())
	if !errors.Is(err, ErrImportFetch) {
		t.Fatalf("want ErrImportFetch, got %v", err)
	}
	if len(fr.inserted) != 0 {
		t.Fatalf("nothing may be written on a failed fetch: %+v", fr.inserted)
	}
}

func TestImport_MalformedJSONAbortsBeforeAnyWrite(t *testing.T) {
	srv := importServer(t, http.StatusOK, `{"not":"an array"`)

	fr := &importRepo{}
	svc := &ImportService{Repo: fr, URL: srv.URL}

	if _, err := svc.Import(context.Background()); !errors.Is(err, ErrImportFetch) {
		t.Fatalf("want ErrImportFetch, got %v", err)
	}
	if len(fr.inserted) != 0 {
		t.Fatalf("nothing may be written on a decode failure: %+v", fr.inserted)
	}
}

func TestImport_UnreachableHost(t *testing.T) {
	svc := &ImportService{Repo: &importRepo{}, URL: "http://127.0.0.1:0/contacts"}
	if _, err := svc.Import(context.Background()); !errors.Is(err, ErrImportFetch) {
		t.Fatalf("want ErrImportFetch, got %v", err)
	}
}

func TestImport_InsertFailureAbortsRemainingBatch(t *testing.T) {
	srv := importServer(t, http.StatusOK, `[
		{"name":"Ok","phone":"1"},
		{"name":"Fails","phone":"2"},
		{"name":"Never Reached","phone":"3"}
	]`)

	fr := &importRepo{failAt: 2}
	svc := &ImportService{Repo: fr, URL: srv.URL}

	res, err := svc.Import(context.Background())
	if err == nil {
		t.Fatal("expected insert error")
	}
	if errors.Is(err, ErrImportFetch) {
		t.Fatalf("a storage failure is not a fetch failure: %v", err)
	}
	// The row inserted before the failure stays committed and counted.
	if res.Imported != 1 || len(fr.inserted) != 1 {
		t.Fatalf("want exactly the first row kept, got res=%+v inserted=%+v", res, fr.inserted)
	}
}

func TestImport_EmptyRemoteList(t *testing.T) {
	srv := importServer(t, http.StatusOK, `[]`)

	fr := &importRepo{}
	svc := &ImportService{Repo: fr, URL: srv.URL}

	res, err := svc.Import(context.Background())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Imported != 0 || res.Skipped != 0 {
		t.Fatalf("want zero counts, got %+v", res)
	}
}

func TestImport_ListErrorPropagates(t *testing.T) {
	srv := importServer(t, http.StatusOK, `[{"name":"X","phone":"1"}]`)

	boom := errors.New("db gone")
	fr := &importRepo{}
	fr.listErr = boom
	svc := &ImportService{Repo: fr, URL: srv.URL}

	if _, err := svc.Import(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("want list error, got %v", err)
	}
}
