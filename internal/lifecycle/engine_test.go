package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"clothdonate/internal/adapter/memstore"
	"clothdonate/internal/domain"
	"clothdonate/internal/notify/render"
)

var (
	admin    = Actor{UserID: "admin", Role: domain.UserRoleAdmin}
	donor    = Actor{UserID: "D1", Role: domain.UserRoleUser}
	orgOwner = Actor{UserID: "U7", Role: domain.UserRoleUser}
	stranger = Actor{UserID: "U9", Role: domain.UserRoleUser}
)

type fixture struct {
	store  *memstore.Store
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := render.Default("en")
	if err != nil {
		t.Fatalf("render.Default: %v", err)
	}
	store := memstore.New()
	var seq atomic.Int64
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	engine, err := NewEngine(Options{
		Store:    store,
		Renderer: catalog,
		Logger:   zerolog.Nop(),
		Clock: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		},
		NewID: func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) },
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	store.SeedUser(domain.User{ID: "admin", Email: "admin@example.org", Name: "Admin", Role: domain.UserRoleAdmin})
	store.SeedUser(domain.User{ID: "D1", Email: "donor@example.org", Name: "Dina", Locale: "en", Role: domain.UserRoleUser})
	store.SeedUser(domain.User{ID: "U7", Email: "shelter@example.org", Name: "Sam", Locale: "id", Role: domain.UserRoleUser})
	store.SeedUser(domain.User{ID: "U8", Email: "pending@example.org", Name: "Pat", Role: domain.UserRoleUser})
	store.SeedUser(domain.User{ID: "U9", Email: "stranger@example.org", Name: "Sol", Role: domain.UserRoleUser})
	store.SeedOrganization(domain.Organization{ID: "Org7", UserID: "U7", Name: "Shelter Seven", BusinessNumber: "777", Status: domain.OrganStatusApproved})
	store.SeedOrganization(domain.Organization{ID: "Org8", UserID: "U8", Name: "Pending House", BusinessNumber: "888", Status: domain.OrganStatusPending})
	return &fixture{store: store, engine: engine}
}

func (f *fixture) donate(t *testing.T) *domain.Donation {
	t.Helper()
	d, err := f.engine.CreateDonation(context.Background(), donor, CreateDonationInput{ItemDescription: "winter coats"})
	if err != nil {
		t.Fatalf("CreateDonation: %v", err)
	}
	return d
}

func (f *fixture) donation(t *testing.T, id string) *domain.Donation {
	t.Helper()
	d, err := f.store.Repos().Donations.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load donation: %v", err)
	}
	return d
}

func (f *fixture) delivery(t *testing.T, id string) *domain.Delivery {
	t.Helper()
	dl, err := f.store.Repos().Deliveries.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load delivery: %v", err)
	}
	return dl
}

func (f *fixture) inbox(t *testing.T, userID string) []domain.Notification {
	t.Helper()
	list, err := f.engine.Notifications().List(context.Background(), userID, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	return list
}

func notificationTypes(list []domain.Notification) []domain.NotificationType {
	out := make([]domain.NotificationType, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i].Type)
	}
	return out
}

func TestIndirectMatchThroughDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.donate(t)

	m, err := f.engine.MatchIndirect(ctx, admin, d.ID, "Org7")
	if err != nil {
		t.Fatalf("MatchIndirect: %v", err)
	}
	if m.Donation.Status != domain.DonationStatusInProgress || m.Donation.MatchType != domain.MatchTypeIndirect {
		t.Fatalf("matched donation = %+v", m.Donation)
	}
	if m.Delivery.Status != domain.DeliveryStatusPending || m.Delivery.DonationID != d.ID {
		t.Fatalf("delivery = %+v", m.Delivery)
	}
	if m.Delivery.Receiver.Name != "Shelter Seven" || m.Delivery.Sender.Email != "donor@example.org" {
		t.Fatalf("contacts = %+v / %+v", m.Delivery.Sender, m.Delivery.Receiver)
	}

	dlID := m.Delivery.ID
	res, err := f.engine.RecordShipment(ctx, orgOwner, dlID, ShipmentInput{TrackingNumber: "1Z999", Carrier: "DHL"})
	if err != nil {
		t.Fatalf("RecordShipment: %v", err)
	}
	if res.Delivery.Status != domain.DeliveryStatusPreparing || res.Donation.Status != domain.DonationStatusInProgress {
		t.Fatalf("after shipment: %s / %s", res.Delivery.Status, res.Donation.Status)
	}
	if dl := f.delivery(t, dlID); dl.TrackingNumber == nil || *dl.TrackingNumber != "1Z999" || *dl.Carrier != "DHL" {
		t.Fatalf("tracking = %+v", dl)
	}

	if _, err := f.engine.MarkInTransit(ctx, orgOwner, dlID); err != nil {
		t.Fatalf("MarkInTransit: %v", err)
	}
	if got := f.donation(t, d.ID).Status; got != domain.DonationStatusShipped {
		t.Fatalf("donation after in-transit = %s", got)
	}

	if _, err := f.engine.MarkDelivered(ctx, orgOwner, dlID); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if got := f.donation(t, d.ID).Status; got != domain.DonationStatusCompleted {
		t.Fatalf("donation after delivered = %s", got)
	}
	if got := f.delivery(t, dlID).Status; got != domain.DeliveryStatusDelivered {
		t.Fatalf("delivery after delivered = %s", got)
	}

	want := []domain.NotificationType{
		domain.NotificationDonationMatched,
		domain.NotificationDeliveryStatusChanged,
		domain.NotificationDeliveryStatusChanged,
		domain.NotificationDeliveryStatusChanged,
	}
	inbox := f.inbox(t, "D1")
	if diff := cmp.Diff(want, notificationTypes(inbox)); diff != "" {
		t.Fatalf("donor inbox (-want +got):\n%s", diff)
	}
	if inbox[0].Title != "Donation delivered" {
		t.Fatalf("latest title = %q", inbox[0].Title)
	}
	if inbox[0].Related == nil || inbox[0].Related.Kind != domain.EntityDelivery || inbox[0].Related.ID != dlID {
		t.Fatalf("related = %+v", inbox[0].Related)
	}

	// Terminal states reject further steps.
	if _, err := f.engine.CancelDelivery(ctx, admin, dlID); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("cancel after delivered = %v", err)
	}
}

func TestMatchTwiceFailsWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.donate(t)
	if _, err := f.engine.MatchDirect(ctx, donor, d.ID, "Org7"); err != nil {
		t.Fatalf("MatchDirect: %v", err)
	}
	before := f.donation(t, d.ID)
	inboxBefore := len(f.inbox(t, "D1"))

	_, err := f.engine.MatchIndirect(ctx, admin, d.ID, "Org7")
	if !errors.Is(err, domain.ErrAlreadyMatched) {
		t.Fatalf("second match error = %v", err)
	}
	if diff := cmp.Diff(before, f.donation(t, d.ID)); diff != "" {
		t.Fatalf("donation changed (-before +after):\n%s", diff)
	}
	if got := len(f.inbox(t, "D1")); got != inboxBefore {
		t.Fatalf("inbox grew from %d to %d", inboxBefore, got)
	}
}

func TestConcurrentMatchesHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	d := f.donate(t)

	const callers = 8
	var wins, lost atomic.Int32
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, err := f.engine.MatchIndirect(context.Background(), admin, d.ID, "Org7")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, domain.ErrAlreadyMatched):
				lost.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wins.Load() != 1 || lost.Load() != callers-1 {
		t.Fatalf("wins=%d lost=%d", wins.Load(), lost.Load())
	}
	if got := len(f.inbox(t, "D1")); got != 1 {
		t.Fatalf("donor notifications = %d, want 1", got)
	}
}

func TestMatchRequiresApprovedOrganization(t *testing.T) {
	f := newFixture(t)
	d := f.donate(t)
	_, err := f.engine.MatchIndirect(context.Background(), admin, d.ID, "Org8")
	if !errors.Is(err, domain.ErrOrganizationNotEligible) {
		t.Fatalf("match to pending org = %v", err)
	}
	if got := f.donation(t, d.ID); got.Status != domain.DonationStatusPending || got.OrganizationID != nil {
		t.Fatalf("donation = %+v", got)
	}
	if _, err := f.store.Repos().Deliveries.GetByDonationID(context.Background(), d.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("delivery created for failed match: %v", err)
	}
}

func TestMatchAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.donate(t)
	if _, err := f.engine.MatchIndirect(ctx, donor, d.ID, "Org7"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("donor indirect match = %v", err)
	}
	if _, err := f.engine.MatchDirect(ctx, stranger, d.ID, "Org7"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger direct match = %v", err)
	}
	// The requested organization may accept the donor's request.
	req, err := f.engine.CreateDonation(ctx, donor, CreateDonationInput{ItemDescription: "shoes", RequestedOrganizationID: "Org7"})
	if err != nil {
		t.Fatalf("CreateDonation: %v", err)
	}
	if _, err := f.engine.MatchDirect(ctx, orgOwner, req.ID, "Org7"); err != nil {
		t.Fatalf("requested org accepts: %v", err)
	}
}

// A freshly created donation is matchable without any approval step.
func TestPendingDonationIsImmediatelyMatchable(t *testing.T) {
	f := newFixture(t)
	d := f.donate(t)
	if d.Status != domain.DonationStatusPending {
		t.Fatalf("new donation status = %s", d.Status)
	}
	if _, err := f.engine.MatchDirect(context.Background(), donor, d.ID, "Org7"); err != nil {
		t.Fatalf("MatchDirect on new donation: %v", err)
	}
}

func TestDeliveryCannotSkipSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.donate(t)
	m, err := f.engine.MatchDirect(ctx, donor, d.ID, "Org7")
	if err != nil {
		t.Fatalf("MatchDirect: %v", err)
	}
	_, err = f.engine.MarkInTransit(ctx, orgOwner, m.Delivery.ID)
	var te *domain.TransitionError
	if !errors.As(err, &te) || te.From != string(domain.DeliveryStatusPending) {
		t.Fatalf("skip to in-transit = %v", err)
	}
	if got := f.delivery(t, m.Delivery.ID).Status; got != domain.DeliveryStatusPending {
		t.Fatalf("delivery status = %s", got)
	}
	if got := f.donation(t, d.ID).Status; got != domain.DonationStatusInProgress {
		t.Fatalf("donation status = %s", got)
	}
	if _, err := f.engine.RecordShipment(ctx, donor, m.Delivery.ID, ShipmentInput{}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("donor records shipment = %v", err)
	}
}

func TestCancelFromEachNonTerminalState(t *testing.T) {
	steps := []struct {
		name         string
		advance      func(f *fixture, dlID string) error
		wantDelivery domain.DeliveryStatus
	}{
		{name: "pending unmatched"},
		{name: "in progress", advance: func(*fixture, string) error { return nil }, wantDelivery: domain.DeliveryStatusCancelled},
		{name: "shipped", advance: func(f *fixture, dlID string) error {
			ctx := context.Background()
			if _, err := f.engine.RecordShipment(ctx, orgOwner, dlID, ShipmentInput{}); err != nil {
				return err
			}
			_, err := f.engine.MarkInTransit(ctx, orgOwner, dlID)
			return err
		}, wantDelivery: domain.DeliveryStatusCancelled},
	}
	for _, tc := range steps {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			d := f.donate(t)
			actor := donor
			var dlID string
			if tc.advance != nil {
				m, err := f.engine.MatchDirect(ctx, donor, d.ID, "Org7")
				if err != nil {
					t.Fatalf("MatchDirect: %v", err)
				}
				dlID = m.Delivery.ID
				if err := tc.advance(f, dlID); err != nil {
					t.Fatalf("advance: %v", err)
				}
				actor = orgOwner
			}

			got, err := f.engine.CancelDonation(ctx, actor, d.ID)
			if err != nil {
				t.Fatalf("CancelDonation: %v", err)
			}
			if got.Status != domain.DonationStatusCancelled {
				t.Fatalf("status = %s", got.Status)
			}
			if dlID != "" {
				if s := f.delivery(t, dlID).Status; s != tc.wantDelivery {
					t.Fatalf("delivery status = %s, want %s", s, tc.wantDelivery)
				}
				if n := f.inbox(t, "U7"); len(n) == 0 || n[0].Type != domain.NotificationGeneral {
					t.Fatalf("org user not told about cancel: %+v", n)
				}
			}

			if _, err := f.engine.CancelDonation(ctx, admin, d.ID); !errors.Is(err, domain.ErrInvalidStateTransition) {
				t.Fatalf("second cancel = %v", err)
			}
		})
	}
}

func TestCancelAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.donate(t)
	if _, err := f.engine.CancelDonation(ctx, stranger, d.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger cancel = %v", err)
	}
	if _, err := f.engine.MatchDirect(ctx, donor, d.ID, "Org7"); err != nil {
		t.Fatalf("MatchDirect: %v", err)
	}
	// Once matched, the donor hands control to the organization.
	if _, err := f.engine.CancelDonation(ctx, donor, d.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("donor cancel after match = %v", err)
	}
}

func TestCancelDeliveryCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.donate(t)
	m, err := f.engine.MatchDirect(ctx, donor, d.ID, "Org7")
	if err != nil {
		t.Fatalf("MatchDirect: %v", err)
	}
	res, err := f.engine.CancelDelivery(ctx, orgOwner, m.Delivery.ID)
	if err != nil {
		t.Fatalf("CancelDelivery: %v", err)
	}
	if res.Delivery.Status != domain.DeliveryStatusCancelled || res.Donation.Status != domain.DonationStatusCancelled {
		t.Fatalf("result = %s / %s", res.Delivery.Status, res.Donation.Status)
	}
	if got := f.delivery(t, m.Delivery.ID).Status; got != domain.DeliveryStatusCancelled {
		t.Fatalf("stored delivery = %s", got)
	}
}

func TestApprovalGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Approve(ctx, orgOwner, "Org8"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("non-admin approve = %v", err)
	}
	org, err := f.engine.Approve(ctx, admin, "Org8")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if org.Status != domain.OrganStatusApproved {
		t.Fatalf("status = %s", org.Status)
	}
	if _, err := f.engine.Reject(ctx, admin, "Org8"); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("reject approved org = %v", err)
	}
	inbox := f.inbox(t, "U8")
	if len(inbox) != 1 || inbox[0].Type != domain.NotificationOrganApproved {
		t.Fatalf("org inbox = %+v", inbox)
	}
	pending, err := f.engine.ListPendingOrganizations(ctx, admin, 0)
	if err != nil || len(pending) != 0 {
		t.Fatalf("pending = %+v, %v", pending, err)
	}
}

func TestRegisterOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, err := f.engine.RegisterOrganization(ctx, stranger, RegisterOrganizationInput{Name: "New Hope", BusinessNumber: "12-34 56"})
	if err != nil {
		t.Fatalf("RegisterOrganization: %v", err)
	}
	if org.Status != domain.OrganStatusPending || org.BusinessNumber != "123456" {
		t.Fatalf("org = %+v", org)
	}
	if _, err := f.engine.RegisterOrganization(ctx, stranger, RegisterOrganizationInput{Name: "Again", BusinessNumber: "999"}); !errors.Is(err, domain.ErrDuplicateOperation) {
		t.Fatalf("second org for user = %v", err)
	}
	if _, err := f.engine.RegisterOrganization(ctx, donor, RegisterOrganizationInput{Name: "Copy", BusinessNumber: "123-456"}); !errors.Is(err, domain.ErrDuplicateOperation) {
		t.Fatalf("duplicate business number = %v", err)
	}
	if _, err := f.engine.RegisterOrganization(ctx, donor, RegisterOrganizationInput{Name: " "}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("blank input = %v", err)
	}

	// Pending organizations are hidden from other users.
	if _, err := f.engine.GetOrganization(ctx, donor, org.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("donor reads pending org = %v", err)
	}
	if _, err := f.engine.GetOrganization(ctx, donor, "Org7"); err != nil {
		t.Fatalf("donor reads approved org = %v", err)
	}
}

func TestRequestAndDecline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.CreateDonation(ctx, donor, CreateDonationInput{ItemDescription: "hats", RequestedOrganizationID: "Org8"}); !errors.Is(err, domain.ErrOrganizationNotEligible) {
		t.Fatalf("request to pending org = %v", err)
	}
	d, err := f.engine.CreateDonation(ctx, donor, CreateDonationInput{ItemDescription: "hats", RequestedOrganizationID: "Org7"})
	if err != nil {
		t.Fatalf("CreateDonation: %v", err)
	}
	orgInbox := f.inbox(t, "U7")
	if len(orgInbox) != 1 || orgInbox[0].Type != domain.NotificationDonationRequested {
		t.Fatalf("org inbox = %+v", orgInbox)
	}
	// U7 stores locale "id".
	if orgInbox[0].Title != "Permintaan donasi baru" {
		t.Fatalf("localized title = %q", orgInbox[0].Title)
	}

	if _, err := f.engine.DeclineRequest(ctx, stranger, d.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger decline = %v", err)
	}
	declined, err := f.engine.DeclineRequest(ctx, orgOwner, d.ID)
	if err != nil {
		t.Fatalf("DeclineRequest: %v", err)
	}
	if declined.Status != domain.DonationStatusPending || declined.RequestedOrganizationID != nil {
		t.Fatalf("declined = %+v", declined)
	}
	donorInbox := f.inbox(t, "D1")
	if len(donorInbox) != 1 || donorInbox[0].Type != domain.NotificationDonationRejected {
		t.Fatalf("donor inbox = %+v", donorInbox)
	}
	// With the request gone the organization no longer has a say.
	if _, err := f.engine.DeclineRequest(ctx, orgOwner, d.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("second decline by org = %v", err)
	}
	if _, err := f.engine.DeclineRequest(ctx, admin, d.ID); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("second decline by admin = %v", err)
	}
	// Still matchable elsewhere.
	if _, err := f.engine.MatchIndirect(ctx, admin, d.ID, "Org7"); err != nil {
		t.Fatalf("match after decline: %v", err)
	}
}

func TestDonationVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.donate(t)
	if _, err := f.engine.GetDonation(ctx, stranger, d.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger view = %v", err)
	}
	if _, err := f.engine.GetDonation(ctx, orgOwner, d.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("org view before match = %v", err)
	}
	if _, err := f.engine.MatchDirect(ctx, donor, d.ID, "Org7"); err != nil {
		t.Fatalf("MatchDirect: %v", err)
	}
	if _, err := f.engine.GetDonation(ctx, orgOwner, d.ID); err != nil {
		t.Fatalf("org view after match = %v", err)
	}
	if _, err := f.engine.GetDeliveryForDonation(ctx, donor, d.ID); err != nil {
		t.Fatalf("donor delivery view = %v", err)
	}
	list, err := f.engine.ListOrganizationDonations(ctx, orgOwner, 10)
	if err != nil || len(list) != 1 || list[0].ID != d.ID {
		t.Fatalf("org donations = %+v, %v", list, err)
	}
}

func TestReadState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.donate(t)
	m, err := f.engine.MatchDirect(ctx, donor, d.ID, "Org7")
	if err != nil {
		t.Fatalf("MatchDirect: %v", err)
	}
	if _, err := f.engine.RecordShipment(ctx, orgOwner, m.Delivery.ID, ShipmentInput{}); err != nil {
		t.Fatalf("RecordShipment: %v", err)
	}
	n := f.engine.Notifications()
	if got, _ := n.UnreadCount(ctx, "D1"); got != 2 {
		t.Fatalf("unread = %d, want 2", got)
	}
	inbox := f.inbox(t, "D1")
	if err := n.MarkRead(ctx, "U7", inbox[0].ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("foreign MarkRead = %v", err)
	}
	if err := n.MarkRead(ctx, "D1", inbox[0].ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := n.MarkRead(ctx, "D1", inbox[0].ID); err != nil {
		t.Fatalf("MarkRead again: %v", err)
	}
	if got, _ := n.UnreadCount(ctx, "D1"); got != 1 {
		t.Fatalf("unread = %d, want 1", got)
	}
	for i := 0; i < 2; i++ {
		if _, err := n.MarkAllRead(ctx, "D1"); err != nil {
			t.Fatalf("MarkAllRead: %v", err)
		}
		if got, _ := n.UnreadCount(ctx, "D1"); got != 0 {
			t.Fatalf("unread after MarkAllRead #%d = %d", i+1, got)
		}
	}
}

func TestNotifyDedupesWithinKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := NotifyInput{UserID: "D1", Type: domain.NotificationGeneral, Title: "Hello", DedupeKey: "donation:x:matched"}
	var first, second *domain.Notification
	err := f.store.InTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		if first, err = f.engine.Notifications().Notify(ctx, repos, in); err != nil {
			return err
		}
		second, err = f.engine.Notifications().Notify(ctx, repos, in)
		return err
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("dedupe ids = %s, %s", first.ID, second.ID)
	}
	if got := len(f.inbox(t, "D1")); got != 1 {
		t.Fatalf("inbox = %d", got)
	}
	_, err = f.engine.Notifications().Notify(ctx, f.store.Repos(), NotifyInput{UserID: "D1", Type: "BOGUS", Title: "x"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("bad type = %v", err)
	}
}

// failingRenderer breaks the notification step after the state change was staged.
type failingRenderer struct{ Renderer }

func (failingRenderer) Render(string, string, map[string]string) (string, string) {
	return "", ""
}

func TestFailedNotificationRollsBackTransition(t *testing.T) {
	f := newFixture(t)
	engine, err := NewEngine(Options{Store: f.store, Renderer: failingRenderer{}, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	d := f.donate(t)
	if _, err := engine.MatchDirect(context.Background(), donor, d.ID, "Org7"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("match with empty title = %v", err)
	}
	if got := f.donation(t, d.ID); got.Status != domain.DonationStatusPending || got.OrganizationID != nil {
		t.Fatalf("donation = %+v", got)
	}
	if _, err := f.store.Repos().Deliveries.GetByDonationID(context.Background(), d.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("delivery survived rollback: %v", err)
	}
	if got := len(f.inbox(t, "D1")); got != 0 {
		t.Fatalf("notifications survived rollback: %d", got)
	}
}

func TestEnsureUserCreatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	newcomer := Actor{UserID: "U10", Role: domain.UserRoleUser, Locale: "id"}

	u, err := f.engine.EnsureUser(ctx, newcomer, ProfileInput{Email: "new@example.org", Name: " Nia "})
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if u.Name != "Nia" || u.Locale != "id" || u.Role != domain.UserRoleUser {
		t.Fatalf("user = %+v", u)
	}
	again, err := f.engine.EnsureUser(ctx, newcomer, ProfileInput{Email: "other@example.org"})
	if err != nil {
		t.Fatalf("EnsureUser again: %v", err)
	}
	if again.Email != "new@example.org" {
		t.Fatalf("existing user overwritten: %+v", again)
	}
	if _, err := f.engine.EnsureUser(ctx, newcomer, ProfileInput{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("missing email = %v", err)
	}
	if _, err := f.engine.EnsureUser(ctx, Actor{}, ProfileInput{Email: "x@example.org"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("anonymous = %v", err)
	}
}

func TestUpdateTracking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.donate(t)
	m, err := f.engine.MatchDirect(ctx, donor, d.ID, "Org7")
	if err != nil {
		t.Fatalf("MatchDirect: %v", err)
	}
	dlID := m.Delivery.ID

	if _, err := f.engine.UpdateTracking(ctx, orgOwner, dlID, ShipmentInput{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty tracking = %v", err)
	}
	if _, err := f.engine.UpdateTracking(ctx, stranger, dlID, ShipmentInput{Carrier: "JNE"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger tracking = %v", err)
	}
	if _, err := f.engine.UpdateTracking(ctx, orgOwner, dlID, ShipmentInput{Carrier: "JNE"}); err != nil {
		t.Fatalf("set carrier: %v", err)
	}
	dl, err := f.engine.UpdateTracking(ctx, orgOwner, dlID, ShipmentInput{TrackingNumber: " JN-1 "})
	if err != nil {
		t.Fatalf("set tracking: %v", err)
	}
	if dl.Status != domain.DeliveryStatusPending || *dl.TrackingNumber != "JN-1" || *dl.Carrier != "JNE" {
		t.Fatalf("delivery = %+v", dl)
	}
	if stored := f.delivery(t, dlID); stored.Carrier == nil || *stored.Carrier != "JNE" {
		t.Fatalf("stored carrier = %v", stored.Carrier)
	}

	if _, err := f.engine.CancelDelivery(ctx, admin, dlID); err != nil {
		t.Fatalf("CancelDelivery: %v", err)
	}
	if _, err := f.engine.UpdateTracking(ctx, orgOwner, dlID, ShipmentInput{Carrier: "DHL"}); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("tracking on cancelled delivery = %v", err)
	}
}

func TestEnsureUserRejectsEmailOfAnotherUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.engine.EnsureUser(ctx, Actor{UserID: "U42", Role: domain.UserRoleUser}, ProfileInput{Email: "donor@example.org"})
	if !errors.Is(err, domain.ErrDuplicateOperation) {
		t.Fatalf("EnsureUser = %+v, %v; want duplicate", u, err)
	}
	if _, err := f.store.Repos().Users.GetByID(ctx, "U42"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("user U42 stored despite conflict: %v", err)
	}
}

func TestOutsiderGetsUnauthorizedWhateverTheState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	matched := f.donate(t)
	m, err := f.engine.MatchDirect(ctx, donor, matched.ID, "Org7")
	if err != nil {
		t.Fatalf("MatchDirect: %v", err)
	}
	if _, err := f.engine.MatchDirect(ctx, stranger, matched.ID, "Org7"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger match on matched donation = %v", err)
	}
	if _, err := f.engine.MarkInTransit(ctx, stranger, m.Delivery.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger in-transit on pending delivery = %v", err)
	}
	if _, err := f.engine.MatchDirect(ctx, donor, matched.ID, "Org7"); !errors.Is(err, domain.ErrAlreadyMatched) {
		t.Fatalf("donor second match = %v", err)
	}

	cancelled := f.donate(t)
	if _, err := f.engine.CancelDonation(ctx, donor, cancelled.ID); err != nil {
		t.Fatalf("CancelDonation: %v", err)
	}
	if _, err := f.engine.CancelDonation(ctx, stranger, cancelled.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger cancel on cancelled donation = %v", err)
	}
	if _, err := f.engine.CancelDonation(ctx, donor, cancelled.ID); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("donor second cancel = %v", err)
	}

	if _, err := f.engine.CancelDelivery(ctx, orgOwner, m.Delivery.ID); err != nil {
		t.Fatalf("CancelDelivery: %v", err)
	}
	if _, err := f.engine.UpdateTracking(ctx, stranger, m.Delivery.ID, ShipmentInput{Carrier: "JNE"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger tracking on cancelled delivery = %v", err)
	}
}
