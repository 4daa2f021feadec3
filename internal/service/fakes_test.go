package service

import (
	"context"
	"time"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/partnerclient"
	"go.uber.org/zap"
)

// In-memory fakes for the store interfaces the services consume. They keep
// the semantics the repositories promise: not-found is (nil, nil), guarded
// saves check the stored status, lookups hand out copies.

type fakeAuditStore struct {
	entries   []*model.AuditEntry
	insertErr error
}

func (f *fakeAuditStore) Insert(e *model.AuditEntry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	e.ID = uint(len(f.entries) + 1)
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeAuditStore) Query(filter model.AuditFilter) ([]model.AuditEntry, error) {
	var out []model.AuditEntry
	for _, e := range f.entries {
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.Level != "" && e.Level != filter.Level {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeAuditStore) Stats(since time.Time) (*model.AuditStats, error) {
	return &model.AuditStats{Total: int64(len(f.entries))}, nil
}

func (f *fakeAuditStore) DeleteOlderThan(cutoff time.Time) (int64, error) { return 0, nil }

func (f *fakeAuditStore) actions() []string {
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

func (f *fakeAuditStore) last() *model.AuditEntry {
	if len(f.entries) == 0 {
		return nil
	}
	return f.entries[len(f.entries)-1]
}

type fakeFeatureStore struct {
	sc        model.SystemControls
	features  map[uint]map[string]bool
	whitelist map[uint]bool
}

func newFakeFeatureStore() *fakeFeatureStore {
	return &fakeFeatureStore{
		features:  map[uint]map[string]bool{},
		whitelist: map[uint]bool{},
	}
}

func (f *fakeFeatureStore) SystemControls() (*model.SystemControls, error) {
	sc := f.sc
	return &sc, nil
}

func (f *fakeFeatureStore) SaveSystemControls(sc *model.SystemControls) error {
	f.sc = *sc
	return nil
}

func (f *fakeFeatureStore) TenantFeature(tenantID uint, key string) (bool, bool, error) {
	row, ok := f.features[tenantID]
	if !ok {
		return false, false, nil
	}
	enabled, found := row[key]
	return enabled, found, nil
}

func (f *fakeFeatureStore) SetTenantFeature(tenantID uint, key string, enabled bool, updatedBy *uint) error {
	if f.features[tenantID] == nil {
		f.features[tenantID] = map[string]bool{}
	}
	f.features[tenantID][key] = enabled
	return nil
}

func (f *fakeFeatureStore) TenantFeatures(tenantID uint) ([]model.TenantFeature, error) {
	var out []model.TenantFeature
	for k, v := range f.features[tenantID] {
		out = append(out, model.TenantFeature{TenantID: tenantID, Key: k, Enabled: v})
	}
	return out, nil
}

func (f *fakeFeatureStore) IsWhitelisted(tenantID uint) (bool, error) {
	return f.whitelist[tenantID], nil
}

func (f *fakeFeatureStore) AddToWhitelist(entry *model.WhitelistEntry) error {
	f.whitelist[entry.TenantID] = true
	return nil
}

func (f *fakeFeatureStore) RemoveFromWhitelist(tenantID uint) error {
	delete(f.whitelist, tenantID)
	return nil
}

func (f *fakeFeatureStore) Whitelist() ([]model.WhitelistEntry, error) {
	var out []model.WhitelistEntry
	for id := range f.whitelist {
		out = append(out, model.WhitelistEntry{TenantID: id})
	}
	return out, nil
}

type fakePartnershipStore struct {
	rows   map[uint]*model.Partnership
	nextID uint
}

func newFakePartnershipStore() *fakePartnershipStore {
	return &fakePartnershipStore{rows: map[uint]*model.Partnership{}}
}

func (f *fakePartnershipStore) Create(p *model.Partnership) error {
	f.nextID++
	p.ID = f.nextID
	stored := *p
	f.rows[p.ID] = &stored
	return nil
}

func (f *fakePartnershipStore) ByID(id uint) (*model.Partnership, error) {
	stored, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	p := *stored
	return &p, nil
}

func (f *fakePartnershipStore) ByPair(tenantA, tenantB uint) (*model.Partnership, error) {
	a, b := model.CanonicalPair(tenantA, tenantB)
	for _, stored := range f.rows {
		if stored.TenantA == a && stored.TenantB == b {
			p := *stored
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakePartnershipStore) Save(p *model.Partnership) error {
	stored := *p
	f.rows[p.ID] = &stored
	return nil
}

func (f *fakePartnershipStore) SaveIfStatus(p *model.Partnership, expected string) (bool, error) {
	stored, ok := f.rows[p.ID]
	if !ok || stored.Status != expected {
		return false, nil
	}
	copied := *p
	f.rows[p.ID] = &copied
	return true, nil
}

func (f *fakePartnershipStore) ListByTenant(tenantID uint, status string) ([]model.Partnership, error) {
	var out []model.Partnership
	for _, p := range f.rows {
		if p.Involves(tenantID) && (status == "" || p.Status == status) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePartnershipStore) ListPendingIncoming(tenantID uint) ([]model.Partnership, error) {
	var out []model.Partnership
	for _, p := range f.rows {
		if p.Involves(tenantID) && p.Status == model.PartnershipPending &&
			p.RequestedByTenant != tenantID && p.CounterProposedAt == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePartnershipStore) ListOutgoing(tenantID uint) ([]model.Partnership, error) {
	var out []model.Partnership
	for _, p := range f.rows {
		if p.Status == model.PartnershipPending && p.RequestedByTenant == tenantID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePartnershipStore) ListCounterProposals(tenantID uint) ([]model.Partnership, error) {
	var out []model.Partnership
	for _, p := range f.rows {
		if p.Status == model.PartnershipPending && p.RequestedByTenant == tenantID && p.CounterProposedAt != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePartnershipStore) ListAll(status string, limit int) ([]model.Partnership, error) {
	var out []model.Partnership
	for _, p := range f.rows {
		if status == "" || p.Status == status {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePartnershipStore) Stats() (*model.PartnershipStats, error) {
	stats := &model.PartnershipStats{}
	for _, p := range f.rows {
		stats.Total++
		switch p.Status {
		case model.PartnershipActive:
			stats.Active++
		case model.PartnershipPending:
			stats.Pending++
		case model.PartnershipSuspended:
			stats.Suspended++
		case model.PartnershipTerminated:
			stats.Terminated++
		}
	}
	return stats, nil
}

func (f *fakePartnershipStore) ActivePartnersWith(tenantID uint, cap model.Capability) ([]uint, error) {
	var out []uint
	for _, p := range f.rows {
		if p.Involves(tenantID) && p.Status == model.PartnershipActive && p.Permissions().Has(cap) {
			out = append(out, p.PartnerOf(tenantID))
		}
	}
	return out, nil
}

type fakeSettingsStore struct {
	rows map[uint]*model.UserFederationSettings
}

func newFakeSettingsStore() *fakeSettingsStore {
	return &fakeSettingsStore{rows: map[uint]*model.UserFederationSettings{}}
}

func (f *fakeSettingsStore) ByUser(userID uint) (*model.UserFederationSettings, error) {
	stored, ok := f.rows[userID]
	if !ok {
		return nil, nil
	}
	s := *stored
	return &s, nil
}

func (f *fakeSettingsStore) Save(s *model.UserFederationSettings) error {
	copied := *s
	f.rows[s.UserID] = &copied
	return nil
}

func (f *fakeSettingsStore) OptedInUsers(tenantID uint) ([]uint, error) {
	var out []uint
	for _, s := range f.rows {
		if s.TenantID == tenantID && s.FederationOptin {
			out = append(out, s.UserID)
		}
	}
	return out, nil
}

type fakeDispatcher struct {
	newMessages  []*model.FederatedMessage
	readReceipts []*model.FederatedMessage
	transactions []*model.FederatedTransaction
}

func (f *fakeDispatcher) BroadcastNewMessage(ctx context.Context, msg *model.FederatedMessage, unreadCount int64) bool {
	f.newMessages = append(f.newMessages, msg)
	return true
}

func (f *fakeDispatcher) BroadcastMessageRead(ctx context.Context, msg *model.FederatedMessage) bool {
	f.readReceipts = append(f.readReceipts, msg)
	return true
}

func (f *fakeDispatcher) BroadcastTransaction(ctx context.Context, t *model.FederatedTransaction) bool {
	f.transactions = append(f.transactions, t)
	return true
}

type fakeRelay struct {
	sent   []*model.FederatedMessage
	result partnerclient.Result
}

func (f *fakeRelay) SendMessage(ctx context.Context, partner *model.ExternalPartner, msg *model.FederatedMessage) partnerclient.Result {
	f.sent = append(f.sent, msg)
	return f.result
}

// testEnv wires the service graph over fakes with federation fully enabled
// for the given tenants.
type testEnv struct {
	auditStore       *fakeAuditStore
	featureStore     *fakeFeatureStore
	partnershipStore *fakePartnershipStore
	settingsStore    *fakeSettingsStore

	audit        *AuditService
	features     *FeatureService
	partnerships *PartnershipService
	users        *UserService
	gateway      *Gateway
}

func newTestEnv(tenants ...uint) *testEnv {
	e := &testEnv{
		auditStore:       &fakeAuditStore{},
		featureStore:     newFakeFeatureStore(),
		partnershipStore: newFakePartnershipStore(),
		settingsStore:    newFakeSettingsStore(),
	}
	e.featureStore.sc = model.SystemControls{
		ID:                  1,
		FederationEnabled:   true,
		MaxFederationLevel:  model.LevelIntegrated,
		ProfilesEnabled:     true,
		MessagingEnabled:    true,
		TransactionsEnabled: true,
		ListingsEnabled:     true,
		EventsEnabled:       true,
		GroupsEnabled:       true,
	}
	for _, t := range tenants {
		e.featureStore.features[t] = map[string]bool{model.TenantFederationEnabled: true}
	}

	log := zap.NewNop()
	e.audit = NewAuditService(e.auditStore, log)
	e.features = NewFeatureService(e.featureStore, e.audit, log)
	e.partnerships = NewPartnershipService(e.partnershipStore, e.features, e.audit, log)
	e.users = NewUserService(e.settingsStore, e.audit, log)
	e.gateway = NewGateway(e.features, e.partnerships, e.users, log)
	return e
}

// activePartnership stores an already-active partnership between two tenants
func (e *testEnv) activePartnership(tenantA, tenantB uint, level int) *model.Partnership {
	p := &model.Partnership{
		Status:            model.PartnershipActive,
		Level:             level,
		RequestedByTenant: tenantA,
		StatusChangedAt:   time.Now(),
	}
	p.TenantA, p.TenantB = model.CanonicalPair(tenantA, tenantB)
	p.SetPermissions(model.DefaultPermissions(level))
	_ = e.partnershipStore.Create(p)
	return p
}

// optedInUser stores settings for a fully sharing user
func (e *testEnv) optedInUser(userID, tenantID uint) {
	now := time.Now()
	_ = e.settingsStore.Save(&model.UserFederationSettings{
		UserID:                       userID,
		TenantID:                     tenantID,
		FederationOptin:              true,
		ProfileVisibleFederated:      true,
		MessagingEnabledFederated:    true,
		TransactionsEnabledFederated: true,
		AppearInFederatedSearch:      true,
		ServiceReach:                 model.ReachLocalOnly,
		OptedInAt:                    &now,
	})
}
