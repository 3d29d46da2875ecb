package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"clothdonate/internal/domain"
)

func (t *tx) user(id string) (domain.User, bool) {
	if u, ok := t.users[id]; ok {
		return u, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	u, ok := t.s.users[id]
	return u, ok
}

// emailTaken reports whether another user, committed or buffered in t, holds email.
func (t *tx) emailTaken(email, exceptID string) bool {
	for id, u := range t.users {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for id, u := range t.s.users {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

func (t *tx) donation(id string) (domain.Donation, bool) {
	if d, ok := t.donations[id]; ok {
		return d, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	d, ok := t.s.donations[id]
	return d, ok
}

func (t *tx) organization(id string) (domain.Organization, bool) {
	if o, ok := t.organizations[id]; ok {
		return o, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	o, ok := t.s.organizations[id]
	return o, ok
}

func (t *tx) delivery(id string) (domain.Delivery, bool) {
	if dl, ok := t.deliveries[id]; ok {
		return dl, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	dl, ok := t.s.deliveries[id]
	return dl, ok
}

func (t *tx) notification(id string) (domain.Notification, bool) {
	if n, ok := t.notifications[id]; ok {
		return n, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	n, ok := t.s.notifications[id]
	return n, ok
}

func (t *tx) allDonations() []domain.Donation {
	t.s.mu.RLock()
	merged := make(map[string]domain.Donation, len(t.s.donations)+len(t.donations))
	for id, d := range t.s.donations {
		merged[id] = d
	}
	t.s.mu.RUnlock()
	for id, d := range t.donations {
		merged[id] = d
	}
	out := make([]domain.Donation, 0, len(merged))
	for _, d := range merged {
		out = append(out, d)
	}
	return out
}

func (t *tx) allOrganizations() []domain.Organization {
	t.s.mu.RLock()
	merged := make(map[string]domain.Organization, len(t.s.organizations)+len(t.organizations))
	for id, o := range t.s.organizations {
		merged[id] = o
	}
	t.s.mu.RUnlock()
	for id, o := range t.organizations {
		merged[id] = o
	}
	out := make([]domain.Organization, 0, len(merged))
	for _, o := range merged {
		out = append(out, o)
	}
	return out
}

func (t *tx) allDeliveries() []domain.Delivery {
	t.s.mu.RLock()
	merged := make(map[string]domain.Delivery, len(t.s.deliveries)+len(t.deliveries))
	for id, dl := range t.s.deliveries {
		merged[id] = dl
	}
	t.s.mu.RUnlock()
	for id, dl := range t.deliveries {
		merged[id] = dl
	}
	out := make([]domain.Delivery, 0, len(merged))
	for _, dl := range merged {
		out = append(out, dl)
	}
	return out
}

func (t *tx) allNotifications() []domain.Notification {
	t.s.mu.RLock()
	merged := make(map[string]domain.Notification, len(t.s.notifications)+len(t.notifications))
	for id, n := range t.s.notifications {
		merged[id] = n
	}
	t.s.mu.RUnlock()
	for id, n := range t.notifications {
		merged[id] = n
	}
	out := make([]domain.Notification, 0, len(merged))
	for _, n := range merged {
		out = append(out, n)
	}
	return out
}

func (t *tx) stamp() time.Time {
	return t.s.now().UTC()
}

type userRepo struct{ t *tx }

func (r userRepo) Create(ctx context.Context, u *domain.User) error {
	return r.t.run(func(t *tx) error {
		if _, ok := t.user(u.ID); ok {
			return fmt.Errorf("%w: user %s exists", domain.ErrDuplicateOperation, u.ID)
		}
		if t.emailTaken(u.Email, u.ID) {
			return fmt.Errorf("%w: email %s already registered", domain.ErrDuplicateOperation, u.Email)
		}
		t.users[u.ID] = *u
		return nil
	})
}

func (r userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := r.t.user(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

type donationRepo struct{ t *tx }

func (r donationRepo) Create(ctx context.Context, d *domain.Donation) error {
	return r.t.run(func(t *tx) error {
		if _, ok := t.donation(d.ID); ok {
			return fmt.Errorf("%w: donation %s exists", domain.ErrDuplicateOperation, d.ID)
		}
		t.donations[d.ID] = *d
		return nil
	})
}

func (r donationRepo) GetByID(ctx context.Context, id string) (*domain.Donation, error) {
	d, ok := r.t.donation(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &d, nil
}

func (r donationRepo) GetForUpdate(ctx context.Context, id string) (*domain.Donation, error) {
	if r.t.auto {
		return r.GetByID(ctx, id)
	}
	if err := r.t.lock(ctx, "donation", id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r donationRepo) UpdateStatus(ctx context.Context, id string, from, to domain.DonationStatus) error {
	return r.t.run(func(t *tx) error {
		d, ok := t.donation(id)
		if !ok || d.Status != from {
			return domain.ErrStaleState
		}
		d.Status = to
		d.UpdatedAt = t.stamp()
		t.donations[id] = d
		return nil
	})
}

func (r donationRepo) AssignOrganization(ctx context.Context, id, organizationID string, matchType domain.MatchType) error {
	return r.t.run(func(t *tx) error {
		d, ok := t.donation(id)
		if !ok || d.Status != domain.DonationStatusPending || d.OrganizationID != nil {
			return domain.ErrStaleState
		}
		org := organizationID
		d.OrganizationID = &org
		d.MatchType = matchType
		d.Status = domain.DonationStatusInProgress
		d.UpdatedAt = t.stamp()
		t.donations[id] = d
		return nil
	})
}

func (r donationRepo) SetRequestedOrganization(ctx context.Context, id string, organizationID *string, matchType domain.MatchType) error {
	return r.t.run(func(t *tx) error {
		d, ok := t.donation(id)
		if !ok || d.Status != domain.DonationStatusPending {
			return domain.ErrStaleState
		}
		d.RequestedOrganizationID = organizationID
		d.MatchType = matchType
		d.UpdatedAt = t.stamp()
		t.donations[id] = d
		return nil
	})
}

func (r donationRepo) ListByDonor(ctx context.Context, donorID string, limit int) ([]domain.Donation, error) {
	var out []domain.Donation
	for _, d := range r.t.allDonations() {
		if d.DonorID == donorID {
			out = append(out, d)
		}
	}
	return newestDonations(out, limit), nil
}

func (r donationRepo) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]domain.Donation, error) {
	var out []domain.Donation
	for _, d := range r.t.allDonations() {
		if (d.OrganizationID != nil && *d.OrganizationID == organizationID) ||
			(d.RequestedOrganizationID != nil && *d.RequestedOrganizationID == organizationID) {
			out = append(out, d)
		}
	}
	return newestDonations(out, limit), nil
}

func newestDonations(items []domain.Donation, limit int) []domain.Donation {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

type organizationRepo struct{ t *tx }

func (r organizationRepo) Create(ctx context.Context, o *domain.Organization) error {
	return r.t.run(func(t *tx) error {
		for _, other := range t.allOrganizations() {
			switch {
			case other.ID == o.ID:
				return fmt.Errorf("%w: organization %s exists", domain.ErrDuplicateOperation, o.ID)
			case other.BusinessNumber == o.BusinessNumber:
				return fmt.Errorf("%w: business number %s already registered", domain.ErrDuplicateOperation, o.BusinessNumber)
			case other.UserID == o.UserID:
				return fmt.Errorf("%w: user %s already owns an organization", domain.ErrDuplicateOperation, o.UserID)
			}
		}
		t.organizations[o.ID] = *o
		return nil
	})
}

func (r organizationRepo) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	o, ok := r.t.organization(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (r organizationRepo) GetByUserID(ctx context.Context, userID string) (*domain.Organization, error) {
	for _, o := range r.t.allOrganizations() {
		if o.UserID == userID {
			return &o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r organizationRepo) GetForUpdate(ctx context.Context, id string) (*domain.Organization, error) {
	if !r.t.auto {
		if err := r.t.lock(ctx, "organization", id); err != nil {
			return nil, err
		}
	}
	return r.GetByID(ctx, id)
}

func (r organizationRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrganStatus) error {
	return r.t.run(func(t *tx) error {
		o, ok := t.organization(id)
		if !ok || o.Status != from {
			return domain.ErrStaleState
		}
		o.Status = to
		o.UpdatedAt = t.stamp()
		t.organizations[id] = o
		return nil
	})
}

func (r organizationRepo) ListByStatus(ctx context.Context, status domain.OrganStatus, limit int) ([]domain.Organization, error) {
	var out []domain.Organization
	for _, o := range r.t.allOrganizations() {
		if o.Status == status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type deliveryRepo struct{ t *tx }

func (r deliveryRepo) Create(ctx context.Context, dl *domain.Delivery) error {
	return r.t.run(func(t *tx) error {
		for _, other := range t.allDeliveries() {
			if other.ID == dl.ID || other.DonationID == dl.DonationID {
				return fmt.Errorf("%w: donation %s already has a delivery", domain.ErrDuplicateOperation, dl.DonationID)
			}
		}
		t.deliveries[dl.ID] = *dl
		return nil
	})
}

func (r deliveryRepo) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	dl, ok := r.t.delivery(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &dl, nil
}

func (r deliveryRepo) GetByDonationID(ctx context.Context, donationID string) (*domain.Delivery, error) {
	for _, dl := range r.t.allDeliveries() {
		if dl.DonationID == donationID {
			return &dl, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r deliveryRepo) GetForUpdate(ctx context.Context, id string) (*domain.Delivery, error) {
	if !r.t.auto {
		if err := r.t.lock(ctx, "delivery", id); err != nil {
			return nil, err
		}
	}
	return r.GetByID(ctx, id)
}

func (r deliveryRepo) UpdateStatus(ctx context.Context, id string, from, to domain.DeliveryStatus) error {
	return r.t.run(func(t *tx) error {
		dl, ok := t.delivery(id)
		if !ok || dl.Status != from {
			return domain.ErrStaleState
		}
		dl.Status = to
		dl.UpdatedAt = t.stamp()
		t.deliveries[id] = dl
		return nil
	})
}

func (r deliveryRepo) SetTracking(ctx context.Context, id string, trackingNumber, carrier *string) error {
	return r.t.run(func(t *tx) error {
		dl, ok := t.delivery(id)
		if !ok {
			return domain.ErrNotFound
		}
		dl.TrackingNumber = trackingNumber
		dl.Carrier = carrier
		dl.UpdatedAt = t.stamp()
		t.deliveries[id] = dl
		return nil
	})
}

type notificationRepo struct{ t *tx }

func (r notificationRepo) Insert(ctx context.Context, n *domain.Notification) (*domain.Notification, bool, error) {
	var stored domain.Notification
	created := false
	err := r.t.run(func(t *tx) error {
		for _, other := range t.allNotifications() {
			if other.UserID == n.UserID && other.DedupeKey == n.DedupeKey {
				stored = other
				return nil
			}
		}
		stored = *n
		created = true
		t.notifications[n.ID] = stored
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &stored, created, nil
}

func (r notificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	n, ok := r.t.notification(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &n, nil
}

func (r notificationRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range r.t.allNotifications() {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r notificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	count := 0
	for _, n := range r.t.allNotifications() {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r notificationRepo) MarkRead(ctx context.Context, id string, at time.Time) error {
	return r.t.run(func(t *tx) error {
		n, ok := t.notification(id)
		if !ok {
			return domain.ErrNotFound
		}
		if n.IsRead {
			return nil
		}
		n.IsRead = true
		n.ReadAt = &at
		t.notifications[id] = n
		return nil
	})
}

func (r notificationRepo) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	var changed int64
	err := r.t.run(func(t *tx) error {
		for _, n := range t.allNotifications() {
			if n.UserID != userID || n.IsRead {
				continue
			}
			readAt := at
			n.IsRead = true
			n.ReadAt = &readAt
			t.notifications[n.ID] = n
			changed++
		}
		return nil
	})
	return changed, err
}
