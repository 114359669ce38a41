package service

import (
	"context"
	"testing"

	"github.com/devlog-hq/devlog/internal/config"
	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/repo"
	"github.com/devlog-hq/devlog/internal/pkg/apperr"
	"github.com/devlog-hq/devlog/internal/pkg/utils/secrets"
	"github.com/devlog-hq/devlog/internal/pkg/utils/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MockUserRepo is a mock implementation of UserRepo
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *model.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id uint) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepo) GetByDeveloperTag(ctx context.Context, tag string) (*model.User, error) {
	args := m.Called(ctx, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepo) GetByEmailHash(ctx context.Context, hash string) (*model.User, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepo) GetByAPIKeyHash(ctx context.Context, hash string) (*model.User, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepo) UpdateCredentials(ctx context.Context, id uint, fields map[string]any) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *MockUserRepo) ScanLegacy(ctx context.Context, batchSize int, fn func(users []*model.User) error) error {
	args := m.Called(ctx, batchSize, fn)
	return args.Error(0)
}

func (m *MockUserRepo) ApplyCredentialUpdates(ctx context.Context, updates []repo.CredentialUpdate) error {
	args := m.Called(ctx, updates)
	return args.Error(0)
}

func (m *MockUserRepo) MigrationStatus(ctx context.Context) (*repo.MigrationCounts, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repo.MigrationCounts), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		App:         config.AppConfig{Name: "devlog-test", Env: "local"},
		Root:        config.RootConfig{SecretPepper: "pepper", APIKeyPrefix: "dvlg_", SessionSecret: "s"},
		Credentials: config.CredentialsConfig{KeepEmailShadow: true, MigrationBatchSize: 50},
		GitHub:      config.GitHubConfig{CommitLimit: 10, CacheTTLSec: 60},
	}
}

func strPtr(s string) *string { return &s }

func TestCredentialService_Register(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		in       RegisterInput
		setup    func(*MockUserRepo)
		wantKind apperr.Kind
		wantCode apperr.Code
	}{
		{
			name: "normalises email and tag",
			in:   RegisterInput{Email: "  Alice@Example.COM ", Password: "Secret1!", DeveloperTag: " Alice_1 "},
			setup: func(r *MockUserRepo) {
				r.On("GetByEmailHash", ctx, tokens.SHA256Hex("alice@example.com")).Return(nil, gorm.ErrRecordNotFound)
				r.On("GetByDeveloperTag", ctx, "alice_1").Return(nil, gorm.ErrRecordNotFound)
				r.On("Create", ctx, mock.MatchedBy(func(u *model.User) bool {
					return u.DeveloperTag == "alice_1" &&
						*u.EmailHash == tokens.SHA256Hex("alice@example.com") &&
						*u.EmailShadow == "alice@example.com" &&
						u.LegacyEmail == nil
				})).Return(nil)
			},
		},
		{
			name:     "missing fields are all listed",
			in:       RegisterInput{Password: "Secret1!"},
			setup:    func(r *MockUserRepo) {},
			wantKind: apperr.KindValidation,
			wantCode: apperr.CodeMissingField,
		},
		{
			name:     "weak password",
			in:       RegisterInput{Email: "a@b.io", Password: "short", DeveloperTag: "ab"},
			setup:    func(r *MockUserRepo) {},
			wantKind: apperr.KindValidation,
			wantCode: apperr.CodeWeakCredential,
		},
		{
			name:     "bad tag",
			in:       RegisterInput{Email: "a@b.io", Password: "Secret1!", DeveloperTag: "no spaces"},
			setup:    func(r *MockUserRepo) {},
			wantKind: apperr.KindValidation,
			wantCode: apperr.CodeInvalidFormat,
		},
		{
			name: "duplicate email",
			in:   RegisterInput{Email: "a@b.io", Password: "Secret1!", DeveloperTag: "ab"},
			setup: func(r *MockUserRepo) {
				r.On("GetByEmailHash", ctx, tokens.SHA256Hex("a@b.io")).Return(&model.User{ID: 9}, nil)
			},
			wantKind: apperr.KindConflict,
		},
		{
			name: "duplicate tag",
			in:   RegisterInput{Email: "a@b.io", Password: "Secret1!", DeveloperTag: "ab"},
			setup: func(r *MockUserRepo) {
				r.On("GetByEmailHash", ctx, mock.Anything).Return(nil, gorm.ErrRecordNotFound)
				r.On("GetByDeveloperTag", ctx, "ab").Return(&model.User{ID: 9}, nil)
			},
			wantKind: apperr.KindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &MockUserRepo{}
			tt.setup(r)
			svc := NewCredentialService(r, testConfig(), zap.NewNop())

			u, err := svc.Register(ctx, tt.in)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
				if tt.wantCode != "" {
					assert.Equal(t, tt.wantCode, apperr.CodeOf(err))
				}
			} else {
				require.NoError(t, err)
				ok, verr := secrets.VerifyPassword(tt.in.Password, "pepper", u.PasswordHash)
				require.NoError(t, verr)
				assert.True(t, ok)
			}
			r.AssertExpectations(t)
		})
	}
}

func TestCredentialService_RegisterMissingFieldsListed(t *testing.T) {
	svc := NewCredentialService(&MockUserRepo{}, testConfig(), zap.NewNop())
	_, err := svc.Register(context.Background(), RegisterInput{})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []string{"email", "password", "developer_tag"}, ae.Fields)
}

func TestCredentialService_Authenticate(t *testing.T) {
	ctx := context.Background()
	hash, err := secrets.HashPassword("Secret1!", "pepper")
	require.NoError(t, err)
	user := &model.User{ID: 1, DeveloperTag: "alice", PasswordHash: hash}

	r := &MockUserRepo{}
	r.On("GetByEmailHash", ctx, tokens.SHA256Hex("alice@example.com")).Return(user, nil)
	r.On("GetByEmailHash", ctx, mock.Anything).Return(nil, gorm.ErrRecordNotFound)
	svc := NewCredentialService(r, testConfig(), zap.NewNop())

	got, err := svc.Authenticate(ctx, " ALICE@example.com", "Secret1!")
	require.NoError(t, err)
	assert.Equal(t, uint(1), got.ID)

	_, err = svc.Authenticate(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "Secret1!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCredentialService_AuthenticateRehashesBcrypt(t *testing.T) {
	ctx := context.Background()
	legacy, err := bcrypt.GenerateFromPassword([]byte("Secret1!"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &model.User{ID: 3, DeveloperTag: "old", PasswordHash: string(legacy)}

	r := &MockUserRepo{}
	r.On("GetByEmailHash", ctx, tokens.SHA256Hex("old@example.com")).Return(user, nil)
	r.On("UpdateCredentials", ctx, uint(3), mock.MatchedBy(func(f map[string]any) bool {
		h, ok := f["password_hash"].(string)
		return ok && !secrets.NeedsRehash(h)
	})).Return(nil)
	svc := NewCredentialService(r, testConfig(), zap.NewNop())

	got, err := svc.Authenticate(ctx, "old@example.com", "Secret1!")
	require.NoError(t, err)
	assert.False(t, secrets.NeedsRehash(got.PasswordHash))
	r.AssertExpectations(t)
}

func TestCredentialService_EmailRoundTrip(t *testing.T) {
	ctx := context.Background()
	actor := &model.User{ID: 7}
	r := &MockUserRepo{}
	r.On("GetByEmailHash", ctx, mock.Anything).Return(nil, gorm.ErrRecordNotFound)
	r.On("UpdateCredentials", ctx, uint(7), mock.Anything).Return(nil)
	svc := NewCredentialService(r, testConfig(), zap.NewNop())

	require.NoError(t, svc.ChangeEmail(ctx, actor, "  Bob.Smith@Example.com "))
	assert.True(t, svc.VerifyEmail(actor, "bob.smith@example.com"))
	assert.True(t, svc.VerifyEmail(actor, "BOB.SMITH@EXAMPLE.COM  "))
	assert.False(t, svc.VerifyEmail(actor, "bob@example.com"))

	email, err := svc.GetEmail(actor)
	require.NoError(t, err)
	assert.Equal(t, "bob.smith@example.com", email)

	err = svc.ChangeEmail(ctx, actor, "not-an-email")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidFormat))
}

func TestCredentialService_GetEmailWithoutShadow(t *testing.T) {
	cfg := testConfig()
	cfg.Credentials.KeepEmailShadow = false
	svc := NewCredentialService(&MockUserRepo{}, cfg, zap.NewNop())

	_, err := svc.GetEmail(&model.User{ID: 1, EmailShadow: strPtr("a@b.io")})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestCredentialService_APIKeyLifecycle(t *testing.T) {
	ctx := context.Background()
	actor := &model.User{ID: 5, LegacyAPIKey: strPtr("old-plain")}
	r := &MockUserRepo{}
	r.On("UpdateCredentials", ctx, uint(5), mock.Anything).Return(nil)
	svc := NewCredentialService(r, testConfig(), zap.NewNop())

	first, err := svc.GenerateAPIKey(ctx, actor)
	require.NoError(t, err)
	assert.Regexp(t, `^dvlg_[0-9a-f]{32}$`, first)
	assert.Nil(t, actor.LegacyAPIKey)
	assert.True(t, svc.VerifyAPIKey(actor, first))

	second, err := svc.GenerateAPIKey(ctx, actor)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.False(t, svc.VerifyAPIKey(actor, first))
	assert.True(t, svc.VerifyAPIKey(actor, second))

	require.NoError(t, svc.RevokeAPIKey(ctx, actor))
	assert.False(t, svc.VerifyAPIKey(actor, second))
	assert.False(t, actor.APIEnabled)
}

func TestCredentialService_AuthenticateAPIKey(t *testing.T) {
	ctx := context.Background()
	key := "dvlg_0123456789abcdef0123456789abcdef"
	hash := tokens.HMAC256Hex("pepper", key)

	r := &MockUserRepo{}
	r.On("GetByAPIKeyHash", ctx, hash).Return(&model.User{ID: 2, APIKeyHash: &hash, APIEnabled: true}, nil).Once()
	r.On("GetByAPIKeyHash", ctx, hash).Return(&model.User{ID: 2, APIKeyHash: &hash, APIEnabled: false}, nil).Once()
	svc := NewCredentialService(r, testConfig(), zap.NewNop())

	u, err := svc.AuthenticateAPIKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, uint(2), u.ID)

	_, err = svc.AuthenticateAPIKey(ctx, key)
	assert.ErrorIs(t, err, ErrAPIDisabled)

	_, err = svc.AuthenticateAPIKey(ctx, "other_123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCredentialService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	hash, err := secrets.HashPassword("Secret1!", "pepper")
	require.NoError(t, err)
	actor := &model.User{ID: 4, PasswordHash: hash}

	r := &MockUserRepo{}
	r.On("UpdateCredentials", ctx, uint(4), mock.Anything).Return(nil)
	svc := NewCredentialService(r, testConfig(), zap.NewNop())

	assert.ErrorIs(t, svc.ChangePassword(ctx, actor, "nope", "Another2@"), ErrInvalidCredentials)
	assert.True(t, apperr.IsCode(svc.ChangePassword(ctx, actor, "Secret1!", "weak"), apperr.CodeWeakCredential))

	require.NoError(t, svc.ChangePassword(ctx, actor, "Secret1!", "Another2@"))
	assert.True(t, svc.VerifyPassword(actor, "Another2@"))
	assert.False(t, svc.VerifyPassword(actor, "Secret1!"))
}

func TestCredentialService_MigrateLegacyCredentials(t *testing.T) {
	ctx := context.Background()
	legacyUsers := func() []*model.User {
		return []*model.User{
			{ID: 1, LegacyEmail: strPtr(" Carol@Example.com")},
			{ID: 2, LegacyEmail: strPtr("dan@example.com"), LegacyAPIKey: strPtr("dvlg_legacykey")},
		}
	}

	tests := []struct {
		name        string
		opts        MigrateOptions
		wantReport  MigrationReport
		checkUpdate func(t *testing.T, updates []repo.CredentialUpdate)
	}{
		{
			name:       "api keys skipped without confirmation",
			wantReport: MigrationReport{Scanned: 2, EmailsMigrated: 2, APIKeysSkipped: 1},
			checkUpdate: func(t *testing.T, updates []repo.CredentialUpdate) {
				require.Len(t, updates, 2)
				assert.Equal(t, tokens.SHA256Hex("carol@example.com"), updates[0].Fields["email_hash"])
				assert.Equal(t, "carol@example.com", updates[0].Fields["email_shadow"])
				_, touched := updates[1].Fields["api_key"]
				assert.False(t, touched)
			},
		},
		{
			name:       "api keys hashed and cleared when confirmed",
			opts:       MigrateOptions{ConfirmClearAPIKeys: true},
			wantReport: MigrationReport{Scanned: 2, EmailsMigrated: 2, APIKeysMigrated: 1},
			checkUpdate: func(t *testing.T, updates []repo.CredentialUpdate) {
				require.Len(t, updates, 2)
				assert.Equal(t, tokens.HMAC256Hex("pepper", "dvlg_legacykey"), updates[1].Fields["api_key_hash"])
				v, touched := updates[1].Fields["api_key"]
				assert.True(t, touched)
				assert.Nil(t, v)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured []repo.CredentialUpdate
			r := &MockUserRepo{}
			r.On("ScanLegacy", ctx, 50, mock.Anything).Run(func(args mock.Arguments) {
				fn := args.Get(2).(func([]*model.User) error)
				require.NoError(t, fn(legacyUsers()))
			}).Return(nil)
			r.On("ApplyCredentialUpdates", ctx, mock.Anything).Run(func(args mock.Arguments) {
				captured = args.Get(1).([]repo.CredentialUpdate)
			}).Return(nil)
			svc := NewCredentialService(r, testConfig(), zap.NewNop())

			report, err := svc.MigrateLegacyCredentials(ctx, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantReport, *report)
			tt.checkUpdate(t, captured)
		})
	}
}

func TestCredentialService_VerifyMigration(t *testing.T) {
	ctx := context.Background()
	r := &MockUserRepo{}
	r.On("MigrationStatus", ctx).Return(&repo.MigrationCounts{TotalUsers: 3, PlaintextAPIKeys: 1}, nil).Once()
	r.On("MigrationStatus", ctx).Return(&repo.MigrationCounts{TotalUsers: 3}, nil).Once()
	svc := NewCredentialService(r, testConfig(), zap.NewNop())

	v, err := svc.VerifyMigration(ctx)
	require.NoError(t, err)
	assert.False(t, v.Complete)

	v, err = svc.VerifyMigration(ctx)
	require.NoError(t, err)
	assert.True(t, v.Complete)
}

func TestCredentialService_MigrationIdempotentOnDatabase(t *testing.T) {
	db := newTestDB(t)
	ctx := t.Context()
	carol := &model.User{DeveloperTag: "carol", PasswordHash: "x", LegacyEmail: strPtr(" Carol@Example.com")}
	dan := &model.User{DeveloperTag: "dan", PasswordHash: "x", LegacyEmail: strPtr("dan@example.com"), LegacyAPIKey: strPtr("dvlg_legacykey"), APIEnabled: true}
	require.NoError(t, db.Create(carol).Error)
	require.NoError(t, db.Create(dan).Error)

	svc := NewCredentialService(repo.NewUserRepo(db), testConfig(), zap.NewNop())

	first, err := svc.MigrateLegacyCredentials(ctx, MigrateOptions{ConfirmClearAPIKeys: true})
	require.NoError(t, err)
	assert.Equal(t, MigrationReport{Scanned: 2, EmailsMigrated: 2, APIKeysMigrated: 1}, *first)

	second, err := svc.MigrateLegacyCredentials(ctx, MigrateOptions{ConfirmClearAPIKeys: true})
	require.NoError(t, err)
	assert.Zero(t, second.EmailsMigrated)
	assert.Zero(t, second.APIKeysMigrated)
	assert.Zero(t, second.APIKeysSkipped)

	v, err := svc.VerifyMigration(ctx)
	require.NoError(t, err)
	assert.True(t, v.Complete)

	migratedCarol, err := svc.GetUser(ctx, carol.ID)
	require.NoError(t, err)
	assert.True(t, svc.VerifyEmail(migratedCarol, "carol@example.com"))

	migratedDan, err := svc.GetUser(ctx, dan.ID)
	require.NoError(t, err)
	assert.Nil(t, migratedDan.LegacyAPIKey)
	assert.True(t, svc.VerifyEmail(migratedDan, " DAN@example.com "))
	assert.True(t, svc.VerifyAPIKey(migratedDan, "dvlg_legacykey"))
	assert.False(t, svc.VerifyAPIKey(migratedDan, "dvlg_legacykeY"))
}
