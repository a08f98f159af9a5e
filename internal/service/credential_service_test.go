package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"
	"merchant-trust-gateway/internal/core/ports/mocks"
	"merchant-trust-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type credentialTestDeps struct {
	svc          *CredentialServiceImpl
	merchantRepo *mocks.MockMerchantRepository
	transactor   *mocks.MockDBTransactor
	encSvc       *mocks.MockEncryptionService
}

func setupCredentialService(t *testing.T) *credentialTestDeps {
	ctrl := gomock.NewController(t)
	d := &credentialTestDeps{
		merchantRepo: mocks.NewMockMerchantRepository(ctrl),
		transactor:   mocks.NewMockDBTransactor(ctrl),
		encSvc:       mocks.NewMockEncryptionService(ctrl),
	}
	d.svc = NewCredentialService(d.merchantRepo, d.transactor, d.encSvc, zerolog.Nop())
	return d
}

func TestCredentialService_RegisterMerchant_Success(t *testing.T) {
	d := setupCredentialService(t)
	ctx := context.Background()
	tx := &mockTx{}

	var stored *domain.Merchant
	d.merchantRepo.EXPECT().GetByEmail(ctx, "shop@example.com").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.encSvc.EXPECT().Encrypt(gomock.Any()).DoAndReturn(func(s string) (string, error) {
		return "enc:" + s, nil
	})
	d.merchantRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, m *domain.Merchant) error {
			stored = m
			return nil
		})

	cred, err := d.svc.RegisterMerchant(ctx, ports.MerchantRegistration{Name: "Shop", Email: " Shop@Example.com "})
	require.NoError(t, err)
	require.NotNil(t, stored)

	assert.True(t, tx.committed)
	assert.True(t, strings.HasPrefix(cred.APIKey, "ak_"))
	assert.True(t, strings.HasPrefix(cred.Secret, "sk_"))
	assert.Len(t, cred.Secret, len("sk_")+2*32, "secret carries 256 bits")
	assert.Equal(t, stored.ID, cred.MerchantID)
	assert.Equal(t, cred.APIKey, stored.APIKey)
	assert.Equal(t, "enc:"+cred.Secret, stored.SecretEnc, "only ciphertext is persisted")
	assert.Equal(t, "shop@example.com", stored.Email)
	assert.Equal(t, domain.MerchantStatusActive, stored.Status)
}

func TestCredentialService_RegisterMerchant_EmailTaken(t *testing.T) {
	d := setupCredentialService(t)
	ctx := context.Background()

	d.merchantRepo.EXPECT().GetByEmail(ctx, "a@b.co").Return(&domain.Merchant{ID: uuid.New()}, nil)

	_, err := d.svc.RegisterMerchant(ctx, ports.MerchantRegistration{Name: "x", Email: "a@b.co"})
	assert.True(t, apperror.Is(err, "AUTH_002"))
}

func TestCredentialService_RegisterMerchant_UniqueRace(t *testing.T) {
	d := setupCredentialService(t)
	ctx := context.Background()
	tx := &mockTx{}

	d.merchantRepo.EXPECT().GetByEmail(ctx, "a@b.co").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.encSvc.EXPECT().Encrypt(gomock.Any()).Return("enc", nil)
	d.merchantRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(ports.ErrUniqueViolation)

	_, err := d.svc.RegisterMerchant(ctx, ports.MerchantRegistration{Name: "x", Email: "a@b.co"})
	assert.True(t, apperror.Is(err, "AUTH_002"))
	assert.True(t, tx.rolledBack)
}

func TestCredentialService_Issue_UniquePerCall(t *testing.T) {
	d := setupCredentialService(t)
	ctx := context.Background()
	tx := &mockTx{}

	d.encSvc.EXPECT().Encrypt(gomock.Any()).Return("enc", nil).Times(2)
	d.merchantRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil).Times(2)

	a, err := d.svc.Issue(ctx, tx, &domain.Merchant{ID: uuid.New()})
	require.NoError(t, err)
	b, err := d.svc.Issue(ctx, tx, &domain.Merchant{ID: uuid.New()})
	require.NoError(t, err)

	assert.NotEqual(t, a.APIKey, b.APIKey)
	assert.NotEqual(t, a.Secret, b.Secret)
}

func TestCredentialService_Rotate_KeepsAPIKey(t *testing.T) {
	d := setupCredentialService(t)
	ctx := context.Background()
	id := uuid.New()

	d.merchantRepo.EXPECT().GetByID(ctx, id).Return(&domain.Merchant{
		ID: id, APIKey: "ak_stable", SecretEnc: "enc:old", Status: domain.MerchantStatusActive,
	}, nil)
	d.encSvc.EXPECT().Encrypt(gomock.Any()).DoAndReturn(func(s string) (string, error) {
		return "enc:" + s, nil
	})

	var rotatedTo string
	d.merchantRepo.EXPECT().RotateSecret(ctx, id, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ uuid.UUID, enc string, at time.Time) (bool, error) {
			rotatedTo = enc
			return true, nil
		})

	cred, err := d.svc.Rotate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ak_stable", cred.APIKey)
	assert.Equal(t, "enc:"+cred.Secret, rotatedTo)
}

func TestCredentialService_Rotate_MerchantNotFound(t *testing.T) {
	d := setupCredentialService(t)
	ctx := context.Background()
	id := uuid.New()

	d.merchantRepo.EXPECT().GetByID(ctx, id).Return(nil, nil)

	_, err := d.svc.Rotate(ctx, id)
	assert.True(t, apperror.Is(err, "NF_002"))
}

func TestCredentialService_Rotate_RowVanished(t *testing.T) {
	d := setupCredentialService(t)
	ctx := context.Background()
	id := uuid.New()

	d.merchantRepo.EXPECT().GetByID(ctx, id).Return(&domain.Merchant{ID: id, Status: domain.MerchantStatusActive}, nil)
	d.encSvc.EXPECT().Encrypt(gomock.Any()).Return("enc", nil)
	d.merchantRepo.EXPECT().RotateSecret(ctx, id, "enc", gomock.Any()).Return(false, nil)

	_, err := d.svc.Rotate(ctx, id)
	assert.True(t, apperror.Is(err, "NF_002"))
}

func TestCredentialService_Resolve(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name     string
		merchant *domain.Merchant
		repoErr  error
		wantKind apperror.Kind
	}{
		{"active", &domain.Merchant{ID: id, APIKey: "ak", SecretEnc: "enc:sk", Status: domain.MerchantStatusActive}, nil, ""},
		{"unknown", nil, nil, apperror.KindNotFound},
		{"deactivated", &domain.Merchant{ID: id, APIKey: "ak", Status: domain.MerchantStatusDeactivated}, nil, apperror.KindNotFound},
		{"store timeout", nil, context.DeadlineExceeded, apperror.KindUnavailable},
		{"store failure", nil, errors.New("boom"), apperror.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupCredentialService(t)
			ctx := context.Background()

			d.merchantRepo.EXPECT().GetByAPIKey(ctx, "ak").Return(tt.merchant, tt.repoErr)
			if tt.wantKind == "" {
				d.encSvc.EXPECT().Decrypt("enc:sk").Return("sk", nil)
			}

			cred, err := d.svc.Resolve(ctx, "ak")
			if tt.wantKind != "" {
				assert.True(t, apperror.IsKind(err, tt.wantKind), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "sk", cred.Secret)
			assert.Equal(t, id, cred.MerchantID)
		})
	}
}

func TestCredentialService_Profile_StripsSecret(t *testing.T) {
	d := setupCredentialService(t)
	ctx := context.Background()
	id := uuid.New()

	d.merchantRepo.EXPECT().GetByID(ctx, id).Return(&domain.Merchant{ID: id, SecretEnc: "enc"}, nil)

	m, err := d.svc.Profile(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, m.SecretEnc)
}
