package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/partnerclient"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/pkg/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMessageStore struct {
	rows   map[uint]*model.FederatedMessage
	nextID uint
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{rows: map[uint]*model.FederatedMessage{}}
}

func (f *fakeMessageStore) Create(m *model.FederatedMessage) error {
	f.nextID++
	m.ID = f.nextID
	stored := *m
	f.rows[m.ID] = &stored
	return nil
}

func (f *fakeMessageStore) ByID(id uint) (*model.FederatedMessage, error) {
	stored, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	m := *stored
	return &m, nil
}

func (f *fakeMessageStore) ByExternalID(partnerID uint, externalID string) (*model.FederatedMessage, error) {
	for _, stored := range f.rows {
		if stored.ExternalPartnerID != nil && *stored.ExternalPartnerID == partnerID &&
			stored.ExternalMessageID == externalID {
			m := *stored
			return &m, nil
		}
	}
	return nil, nil
}

func (f *fakeMessageStore) Inbox(userID, tenantID uint, limit, offset int) ([]model.FederatedMessage, error) {
	var out []model.FederatedMessage
	for _, m := range f.rows {
		if m.ReceiverUserID == userID && m.ReceiverTenantID == tenantID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) Thread(userA, tenantA, userB, tenantB uint, limit int) ([]model.FederatedMessage, error) {
	var out []model.FederatedMessage
	for _, m := range f.rows {
		forward := m.SenderUserID == userA && m.SenderTenantID == tenantA &&
			m.ReceiverUserID == userB && m.ReceiverTenantID == tenantB
		backward := m.SenderUserID == userB && m.SenderTenantID == tenantB &&
			m.ReceiverUserID == userA && m.ReceiverTenantID == tenantA
		if forward || backward {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) MarkRead(messageID, userID, tenantID uint) (bool, error) {
	stored, ok := f.rows[messageID]
	if !ok || stored.ReceiverUserID != userID || stored.ReceiverTenantID != tenantID ||
		stored.Status == model.MessageRead {
		return false, nil
	}
	stored.Status = model.MessageRead
	return true, nil
}

func (f *fakeMessageStore) MarkThreadRead(userID, tenantID, otherUserID, otherTenantID uint) (int64, error) {
	var n int64
	for _, m := range f.rows {
		if m.ReceiverUserID == userID && m.ReceiverTenantID == tenantID &&
			m.SenderUserID == otherUserID && m.SenderTenantID == otherTenantID &&
			m.Status == model.MessageUnread {
			m.Status = model.MessageRead
			n++
		}
	}
	return n, nil
}

func (f *fakeMessageStore) UnreadCount(userID, tenantID uint) (int64, error) {
	var n int64
	for _, m := range f.rows {
		if m.ReceiverUserID == userID && m.ReceiverTenantID == tenantID && m.Status == model.MessageUnread {
			n++
		}
	}
	return n, nil
}

type fakePartnerStore struct {
	rows map[uint]*model.ExternalPartner
}

func (f *fakePartnerStore) Create(p *model.ExternalPartner) error {
	p.ID = uint(len(f.rows) + 1)
	if p.PlatformID == "" {
		p.PlatformID = fmt.Sprintf("ptn_test_%d", p.ID)
	}
	stored := *p
	f.rows[p.ID] = &stored
	return nil
}

func (f *fakePartnerStore) Save(p *model.ExternalPartner) error {
	stored := *p
	f.rows[p.ID] = &stored
	return nil
}

func (f *fakePartnerStore) ByID(id uint) (*model.ExternalPartner, error) {
	stored, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	p := *stored
	return &p, nil
}

func (f *fakePartnerStore) ByPlatformID(platformID string) (*model.ExternalPartner, error) {
	for _, stored := range f.rows {
		if stored.PlatformID == platformID {
			p := *stored
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakePartnerStore) ByAPIKeyHash(hash string) (*model.ExternalPartner, error) {
	for _, stored := range f.rows {
		if stored.APIKeyLookupHash == hash {
			p := *stored
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakePartnerStore) ListByTenant(tenantID uint) ([]model.ExternalPartner, error) {
	var out []model.ExternalPartner
	for _, p := range f.rows {
		if p.TenantID == tenantID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePartnerStore) Touch(id uint) error { return nil }

func (f *fakePartnerStore) Delete(id uint) error {
	delete(f.rows, id)
	return nil
}

type messageFixture struct {
	env      *testEnv
	store    *fakeMessageStore
	realtime *fakeDispatcher
	relay    *fakeRelay
	partners *fakePartnerStore
	svc      *MessageService
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()
	env := newTestEnv(1, 2)
	env.activePartnership(1, 2, model.LevelSocial)
	env.optedInUser(10, 1)
	env.optedInUser(20, 2)

	store := newFakeMessageStore()
	rt := &fakeDispatcher{}
	relay := &fakeRelay{result: partnerclient.Result{Success: true, StatusCode: 200}}

	partnerStore := &fakePartnerStore{rows: map[uint]*model.ExternalPartner{
		7: {ID: 7, TenantID: 1, Name: "Remote", PlatformID: "ptn_remote", Status: model.PartnerActive},
	}}
	box, err := secrets.NewBox("6368616e676520746869732070617373776f726420746f206120736563726574")
	require.NoError(t, err)
	partnerAdmin := NewPartnerAdminService(partnerStore, nil, box, env.audit, zap.NewNop())

	svc := NewMessageService(store, env.gateway, rt, relay, partnerAdmin, env.audit, zap.NewNop())
	return &messageFixture{env: env, store: store, realtime: rt, relay: relay, partners: partnerStore, svc: svc}
}

func TestSendDeliversAndBroadcasts(t *testing.T) {
	fx := newMessageFixture(t)

	msg, err := fx.svc.Send(context.Background(), 10, 1, 20, 2, "Hi", "  hello there  ")
	require.NoError(t, err)

	assert.Equal(t, "hello there", msg.Body)
	assert.Equal(t, model.MessageUnread, msg.Status)
	require.Len(t, fx.realtime.newMessages, 1)
	assert.Contains(t, fx.env.auditStore.actions(), "message_sent")
}

func TestSendRejectsEmptyBody(t *testing.T) {
	fx := newMessageFixture(t)

	_, err := fx.svc.Send(context.Background(), 10, 1, 20, 2, "Hi", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessageBody)
	assert.Empty(t, fx.store.rows)

	_, err = fx.svc.SendExternal(context.Background(), 10, 1, 7, 55, "Hi", "   ", "Alice")
	assert.ErrorIs(t, err, ErrEmptyMessageBody)
	assert.Empty(t, fx.store.rows)
}

func TestSendRequiresGatewayApproval(t *testing.T) {
	fx := newMessageFixture(t)

	// user 20 turns messaging off
	s, _ := fx.env.settingsStore.ByUser(20)
	s.MessagingEnabledFederated = false
	_ = fx.env.settingsStore.Save(s)

	_, err := fx.svc.Send(context.Background(), 10, 1, 20, 2, "", "hello")
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Empty(t, fx.store.rows)
	assert.Empty(t, fx.realtime.newMessages)
}

func TestSendExternalStoresBeforeRelay(t *testing.T) {
	fx := newMessageFixture(t)

	msg, err := fx.svc.SendExternal(context.Background(), 10, 1, 7, 55, "Hi", "hello remote", "Alice")
	require.NoError(t, err)

	assert.Equal(t, model.MessageDelivered, msg.Status)
	require.NotNil(t, msg.ExternalPartnerID)
	assert.Equal(t, uint(7), *msg.ExternalPartnerID)
	require.Len(t, fx.relay.sent, 1)
	assert.Contains(t, fx.env.auditStore.actions(), "external_message_sent")
}

func TestSendExternalKeepsRowOnRelayFailure(t *testing.T) {
	fx := newMessageFixture(t)
	fx.relay.result = partnerclient.Result{Success: false, StatusCode: 503, Error: "unreachable"}

	msg, err := fx.svc.SendExternal(context.Background(), 10, 1, 7, 55, "Hi", "hello remote", "Alice")
	require.NoError(t, err)

	// the local row stays unread so the failure is visible and retryable
	assert.Equal(t, model.MessageUnread, msg.Status)
	assert.Len(t, fx.store.rows, 1)
}

func TestSendExternalRejectsForeignPartner(t *testing.T) {
	fx := newMessageFixture(t)

	// partner 7 belongs to tenant 1, not tenant 2
	_, err := fx.svc.SendExternal(context.Background(), 20, 2, 7, 55, "", "hello", "Bob")
	assert.ErrorIs(t, err, ErrPartnerNotFound)
}

func TestIngestStoresAndBroadcasts(t *testing.T) {
	fx := newMessageFixture(t)
	partner := &model.ExternalPartner{ID: 7, TenantID: 1, PlatformID: "ptn_remote"}

	msg, err := fx.svc.Ingest(context.Background(), partner, "msg_ext_1", "Remote Bob", 10, "Hi", "hello from afar")
	require.NoError(t, err)

	assert.Equal(t, uint(1), msg.ReceiverTenantID)
	assert.Equal(t, "Remote Bob", msg.ExternalSenderName)
	require.Len(t, fx.realtime.newMessages, 1)
	assert.Contains(t, fx.env.auditStore.actions(), "external_message_received")
}

func TestMessageIngestIsIdempotent(t *testing.T) {
	fx := newMessageFixture(t)
	partner := &model.ExternalPartner{ID: 7, TenantID: 1, PlatformID: "ptn_remote"}

	first, err := fx.svc.Ingest(context.Background(), partner, "msg_ext_1", "Remote Bob", 10, "Hi", "hello")
	require.NoError(t, err)

	second, err := fx.svc.Ingest(context.Background(), partner, "msg_ext_1", "Remote Bob", 10, "Hi", "hello")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, fx.store.rows, 1)
}

func TestMarkReadNotifiesSender(t *testing.T) {
	fx := newMessageFixture(t)
	msg, err := fx.svc.Send(context.Background(), 10, 1, 20, 2, "", "hello")
	require.NoError(t, err)

	require.NoError(t, fx.svc.MarkRead(context.Background(), msg.ID, 20, 2))
	assert.Len(t, fx.realtime.readReceipts, 1)

	// only the receiver may mark a message read
	err = fx.svc.MarkRead(context.Background(), msg.ID, 10, 1)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	fx := newMessageFixture(t)
	msg, err := fx.svc.Send(context.Background(), 10, 1, 20, 2, "", "hello")
	require.NoError(t, err)

	require.NoError(t, fx.svc.MarkRead(context.Background(), msg.ID, 20, 2))
	require.NoError(t, fx.svc.MarkRead(context.Background(), msg.ID, 20, 2))

	// the read receipt fires once, on the transition
	assert.Len(t, fx.realtime.readReceipts, 1)
}

func TestMarkReadSkipsReceiptForExternalMessages(t *testing.T) {
	fx := newMessageFixture(t)
	partner := &model.ExternalPartner{ID: 7, TenantID: 1, PlatformID: "ptn_remote"}
	msg, err := fx.svc.Ingest(context.Background(), partner, "msg_ext_1", "Remote Bob", 10, "", "hello")
	require.NoError(t, err)

	require.NoError(t, fx.svc.MarkRead(context.Background(), msg.ID, 10, 1))
	assert.Empty(t, fx.realtime.readReceipts)
}

func TestMarkThreadRead(t *testing.T) {
	fx := newMessageFixture(t)
	_, err := fx.svc.Send(context.Background(), 10, 1, 20, 2, "", "one")
	require.NoError(t, err)
	_, err = fx.svc.Send(context.Background(), 10, 1, 20, 2, "", "two")
	require.NoError(t, err)

	n, err := fx.svc.MarkThreadRead(20, 2, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	unread, err := fx.svc.UnreadCount(20, 2)
	require.NoError(t, err)
	assert.Zero(t, unread)
}
