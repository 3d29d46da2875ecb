package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"clothdonate/internal/adapter/memstore"
	"clothdonate/internal/domain"
	"clothdonate/internal/http/handlers"
	"clothdonate/internal/lifecycle"
	"clothdonate/internal/middleware"
	"clothdonate/internal/notify/render"
)

const (
	testSecret = "test-secret"
	testIssuer = "clothdonate-test"
)

type apiFixture struct {
	t       *testing.T
	handler http.Handler
	store   *memstore.Store
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	catalog, err := render.Default("en")
	if err != nil {
		t.Fatalf("render.Default: %v", err)
	}
	store := memstore.New()
	var seq atomic.Int64
	engine, err := lifecycle.NewEngine(lifecycle.Options{
		Store:    store,
		Renderer: catalog,
		Logger:   zerolog.Nop(),
		NewID:    func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) },
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	store.SeedUser(domain.User{ID: "admin", Email: "admin@example.org", Name: "Admin", Role: domain.UserRoleAdmin})
	store.SeedUser(domain.User{ID: "D1", Email: "donor@example.org", Name: "Dina", Role: domain.UserRoleUser})
	store.SeedUser(domain.User{ID: "U7", Email: "shelter@example.org", Name: "Sam", Locale: "id", Role: domain.UserRoleUser})
	store.SeedOrganization(domain.Organization{ID: "Org7", UserID: "U7", Name: "Shelter Seven", BusinessNumber: "777", Status: domain.OrganStatusApproved})

	h := NewRouter(handlers.NewApp(engine, zerolog.Nop()), Options{
		Logger:        zerolog.Nop(),
		JWTSecret:     testSecret,
		JWTIssuer:     testIssuer,
		DefaultLocale: "en",
		MatchLocale:   catalog.Match,
	})
	return &apiFixture{t: t, handler: h, store: store}
}

func (f *apiFixture) token(userID string, role domain.UserRole) string {
	f.t.Helper()
	tok, err := middleware.SignToken(testSecret, testIssuer, middleware.Principal{UserID: userID, Role: role}, time.Hour, time.Now())
	if err != nil {
		f.t.Fatalf("SignToken: %v", err)
	}
	return tok
}

func (f *apiFixture) do(method, path, userID string, role domain.UserRole, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			f.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+f.token(userID, role))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func TestHealthIsPublic(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/v1/healthz", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/v1/donations", "", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDonationLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/v1/donations", "D1", domain.UserRoleUser, map[string]string{"item_description": "winter coats"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body)
	}
	var donation struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeInto(t, rec, &donation)
	if donation.Status != "PENDING" {
		t.Fatalf("status = %q", donation.Status)
	}

	rec = f.do(http.MethodPost, "/v1/donations/"+donation.ID+"/match", "D1", domain.UserRoleUser, map[string]string{"organization_id": "Org7"})
	if rec.Code != http.StatusOK {
		t.Fatalf("match status = %d body=%s", rec.Code, rec.Body)
	}
	var matched struct {
		Donation struct {
			Status    string `json:"status"`
			MatchType string `json:"match_type"`
		} `json:"donation"`
		Delivery struct {
			ID       string `json:"id"`
			Status   string `json:"status"`
			Receiver struct {
				Email string `json:"email"`
			} `json:"receiver"`
		} `json:"delivery"`
	}
	decodeInto(t, rec, &matched)
	if matched.Donation.Status != "IN_PROGRESS" || matched.Donation.MatchType != "DIRECT" {
		t.Fatalf("donation = %+v", matched.Donation)
	}
	if matched.Delivery.Status != "PENDING" || matched.Delivery.Receiver.Email != "shelter@example.org" {
		t.Fatalf("delivery = %+v", matched.Delivery)
	}

	rec = f.do(http.MethodPost, "/v1/donations/"+donation.ID+"/match", "admin", domain.UserRoleAdmin, map[string]string{"organization_id": "Org7"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second match status = %d", rec.Code)
	}

	deliveryPath := "/v1/deliveries/" + matched.Delivery.ID
	rec = f.do(http.MethodPost, deliveryPath+"/in-transit", "U7", domain.UserRoleUser, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("skipping PREPARING status = %d", rec.Code)
	}
	rec = f.do(http.MethodPost, deliveryPath+"/shipment", "D1", domain.UserRoleUser, map[string]string{"carrier": "JNE"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("donor shipment status = %d", rec.Code)
	}
	for _, step := range []string{"/shipment", "/in-transit", "/delivered"} {
		rec = f.do(http.MethodPost, deliveryPath+step, "U7", domain.UserRoleUser, map[string]string{})
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d body=%s", step, rec.Code, rec.Body)
		}
	}
	var final struct {
		Delivery struct {
			Status string `json:"status"`
		} `json:"delivery"`
		Donation struct {
			Status string `json:"status"`
		} `json:"donation"`
	}
	decodeInto(t, rec, &final)
	if final.Delivery.Status != "DELIVERED" || final.Donation.Status != "COMPLETED" {
		t.Fatalf("final = %+v", final)
	}

	rec = f.do(http.MethodGet, "/v1/notifications/unread-count", "D1", domain.UserRoleUser, nil)
	var unread struct {
		Unread int `json:"unread"`
	}
	decodeInto(t, rec, &unread)
	if unread.Unread == 0 {
		t.Fatal("donor has no notifications")
	}
	rec = f.do(http.MethodPost, "/v1/notifications/read-all", "D1", domain.UserRoleUser, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("read-all status = %d", rec.Code)
	}
	rec = f.do(http.MethodGet, "/v1/notifications/unread-count", "D1", domain.UserRoleUser, nil)
	decodeInto(t, rec, &unread)
	if unread.Unread != 0 {
		t.Fatalf("unread after read-all = %d", unread.Unread)
	}
}

func TestErrorEnvelope(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/v1/donations", "D1", domain.UserRoleUser, map[string]string{"item_description": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty description status = %d", rec.Code)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeInto(t, rec, &envelope)
	if envelope.Error.Code != "invalid_input" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}

	rec = f.do(http.MethodGet, "/v1/donations/missing", "D1", domain.UserRoleUser, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing donation status = %d", rec.Code)
	}

	rec = f.do(http.MethodGet, "/v1/organizations/pending", "D1", domain.UserRoleUser, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin pending list status = %d", rec.Code)
	}

	rec = f.do(http.MethodPost, "/v1/donations", "D1", domain.UserRoleUser, map[string]string{"unknown": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", rec.Code)
	}
}

func TestOrganizationSignupAndApproval(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPut, "/v1/me", "U20", domain.UserRoleUser, map[string]string{"email": "new@example.org", "name": "Nia"})
	if rec.Code != http.StatusOK {
		t.Fatalf("sync me status = %d body=%s", rec.Code, rec.Body)
	}
	rec = f.do(http.MethodPost, "/v1/organizations", "U20", domain.UserRoleUser, map[string]string{"name": "Nia's Closet", "business_number": "123-45"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d body=%s", rec.Code, rec.Body)
	}
	var org struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeInto(t, rec, &org)
	if org.Status != "PENDING" {
		t.Fatalf("status = %q", org.Status)
	}

	rec = f.do(http.MethodPost, "/v1/organizations", "U20", domain.UserRoleUser, map[string]string{"name": "Second", "business_number": "999"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second org status = %d", rec.Code)
	}

	rec = f.do(http.MethodPost, "/v1/donations", "D1", domain.UserRoleUser, map[string]string{"item_description": "shoes", "requested_organization_id": org.ID})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("request to pending org status = %d", rec.Code)
	}

	rec = f.do(http.MethodPost, "/v1/organizations/"+org.ID+"/approve", "admin", domain.UserRoleAdmin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d body=%s", rec.Code, rec.Body)
	}
	rec = f.do(http.MethodPost, "/v1/organizations/"+org.ID+"/reject", "admin", domain.UserRoleAdmin, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("reject after approve status = %d", rec.Code)
	}

	rec = f.do(http.MethodGet, "/v1/organizations/approved", "D1", domain.UserRoleUser, nil)
	var list struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	decodeInto(t, rec, &list)
	if len(list.Items) != 2 {
		t.Fatalf("approved = %+v", list.Items)
	}
}
