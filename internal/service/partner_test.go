package service

import (
	"context"
	"testing"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/model"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/partnerclient"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/pkg/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeProber struct {
	result partnerclient.Result
	probed []string
}

func (f *fakeProber) TestConnection(ctx context.Context, partner *model.ExternalPartner) partnerclient.Result {
	f.probed = append(f.probed, partner.PlatformID)
	return f.result
}

type partnerFixture struct {
	store  *fakePartnerStore
	box    *secrets.Box
	prober *fakeProber
	audit  *fakeAuditStore
	svc    *PartnerAdminService
}

func newPartnerFixture(t *testing.T) *partnerFixture {
	t.Helper()
	box, err := secrets.NewBox("6368616e676520746869732070617373776f726420746f206120736563726574")
	require.NoError(t, err)

	store := &fakePartnerStore{rows: map[uint]*model.ExternalPartner{}}
	prober := &fakeProber{result: partnerclient.Result{Success: true, StatusCode: 200}}
	auditStore := &fakeAuditStore{}
	svc := NewPartnerAdminService(store, prober, box, NewAuditService(auditStore, zap.NewNop()), zap.NewNop())
	return &partnerFixture{store: store, box: box, prober: prober, audit: auditStore, svc: svc}
}

func TestRegisterMintsCredentialsOnce(t *testing.T) {
	fx := newPartnerFixture(t)

	p, creds, err := fx.svc.Register(RegisterPartnerInput{
		TenantID:      1,
		Name:          "  Remote Timebank  ",
		BaseURL:       "https://remote.example.org/",
		Scopes:        "members:read messages:write",
		SigningSecret: "shared-hmac-secret",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Remote Timebank", p.Name)
	assert.Equal(t, "https://remote.example.org", p.BaseURL)
	assert.Equal(t, model.AuthAPIKey, p.AuthMethod)
	assert.Equal(t, model.PartnerActive, p.Status)

	require.NotNil(t, creds)
	assert.Equal(t, p.PlatformID, creds.PlatformID)
	assert.NotEmpty(t, creds.APIKey)
	assert.NotEmpty(t, creds.ClientSecret)

	// the row never carries plaintext
	stored, _ := fx.store.ByID(p.ID)
	assert.NotContains(t, stored.APIKeyEncrypted, creds.APIKey)
	assert.NotEqual(t, creds.ClientSecret, stored.SecretBcryptHash)

	decrypted, err := fx.box.Decrypt(stored.APIKeyEncrypted)
	require.NoError(t, err)
	assert.Equal(t, creds.APIKey, decrypted)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.SecretBcryptHash), []byte(creds.ClientSecret)))

	secret, err := fx.svc.SigningSecret(stored)
	require.NoError(t, err)
	assert.Equal(t, "shared-hmac-secret", secret)
}

func TestAuthenticateAPIKey(t *testing.T) {
	fx := newPartnerFixture(t)
	p, creds, err := fx.svc.Register(RegisterPartnerInput{TenantID: 1, Name: "Remote", BaseURL: "https://r.example.org"}, nil)
	require.NoError(t, err)

	found, err := fx.svc.AuthenticateAPIKey(creds.APIKey)
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)

	_, err = fx.svc.AuthenticateAPIKey("fk_not_a_real_key")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = fx.svc.AuthenticateAPIKey("")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateRejectsDisabledPartner(t *testing.T) {
	fx := newPartnerFixture(t)
	p, creds, err := fx.svc.Register(RegisterPartnerInput{TenantID: 1, Name: "Remote", BaseURL: "https://r.example.org"}, nil)
	require.NoError(t, err)

	require.NoError(t, fx.svc.SetStatus(p.ID, 1, model.PartnerDisabled, nil))

	_, err = fx.svc.AuthenticateAPIKey(creds.APIKey)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRotateInvalidatesOldKey(t *testing.T) {
	fx := newPartnerFixture(t)
	p, creds, err := fx.svc.Register(RegisterPartnerInput{TenantID: 1, Name: "Remote", BaseURL: "https://r.example.org"}, nil)
	require.NoError(t, err)

	fresh, err := fx.svc.RotateCredentials(p.ID, 1, nil)
	require.NoError(t, err)
	assert.NotEqual(t, creds.APIKey, fresh.APIKey)

	_, err = fx.svc.AuthenticateAPIKey(creds.APIKey)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	found, err := fx.svc.AuthenticateAPIKey(fresh.APIKey)
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
	assert.Contains(t, fx.audit.actions(), "external_partner_credentials_rotated")
}

func TestPartnerTenantOwnership(t *testing.T) {
	fx := newPartnerFixture(t)
	p, _, err := fx.svc.Register(RegisterPartnerInput{TenantID: 1, Name: "Remote", BaseURL: "https://r.example.org"}, nil)
	require.NoError(t, err)

	_, err = fx.svc.Get(p.ID, 2)
	assert.ErrorIs(t, err, ErrPartnerNotFound)

	_, err = fx.svc.RotateCredentials(p.ID, 2, nil)
	assert.ErrorIs(t, err, ErrPartnerNotFound)

	err = fx.svc.Remove(p.ID, 2, nil)
	assert.ErrorIs(t, err, ErrPartnerNotFound)
}

func TestSetStatusValidatesValue(t *testing.T) {
	fx := newPartnerFixture(t)
	p, _, err := fx.svc.Register(RegisterPartnerInput{TenantID: 1, Name: "Remote", BaseURL: "https://r.example.org"}, nil)
	require.NoError(t, err)

	err = fx.svc.SetStatus(p.ID, 1, "hibernating", nil)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTestConnectionProbes(t *testing.T) {
	fx := newPartnerFixture(t)
	p, _, err := fx.svc.Register(RegisterPartnerInput{TenantID: 1, Name: "Remote", BaseURL: "https://r.example.org"}, nil)
	require.NoError(t, err)

	res := fx.svc.TestConnection(context.Background(), p.ID, 1)
	assert.True(t, res.Success)
	assert.Equal(t, []string{p.PlatformID}, fx.prober.probed)

	res = fx.svc.TestConnection(context.Background(), 999, 1)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestRemoveDeletesRegistration(t *testing.T) {
	fx := newPartnerFixture(t)
	p, _, err := fx.svc.Register(RegisterPartnerInput{TenantID: 1, Name: "Remote", BaseURL: "https://r.example.org"}, nil)
	require.NoError(t, err)

	require.NoError(t, fx.svc.Remove(p.ID, 1, nil))
	_, err = fx.svc.Get(p.ID, 1)
	assert.ErrorIs(t, err, ErrPartnerNotFound)
}
