package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/devlog-hq/devlog/internal/config"
	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/repo"
	"github.com/devlog-hq/devlog/internal/pkg/apperr"
	"github.com/devlog-hq/devlog/internal/pkg/utils/secrets"
	"github.com/devlog-hq/devlog/internal/pkg/utils/tokens"
	"github.com/devlog-hq/devlog/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	emailPattern        = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	developerTagPattern = regexp.MustCompile(`^[a-z0-9_-]{2,50}$`)
)

type CredentialService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	AuthenticateAPIKey(ctx context.Context, token string) (*model.User, error)
	GetUser(ctx context.Context, id uint) (*model.User, error)

	ChangePassword(ctx context.Context, actor *model.User, current, next string) error
	VerifyPassword(actor *model.User, raw string) bool

	ChangeEmail(ctx context.Context, actor *model.User, email string) error
	VerifyEmail(actor *model.User, email string) bool
	GetEmail(actor *model.User) (string, error)

	GenerateAPIKey(ctx context.Context, actor *model.User) (string, error)
	VerifyAPIKey(actor *model.User, candidate string) bool
	RevokeAPIKey(ctx context.Context, actor *model.User) error

	SetTwoFactor(ctx context.Context, actor *model.User, enabled bool) error

	MigrateLegacyCredentials(ctx context.Context, opts MigrateOptions) (*MigrationReport, error)
	VerifyMigration(ctx context.Context) (*MigrationVerification, error)
}

type RegisterInput struct {
	Email        string `json:"email" binding:"required"`
	Password     string `json:"password" binding:"required"`
	DeveloperTag string `json:"developer_tag" binding:"required"`
}

type MigrateOptions struct {
	// ConfirmClearAPIKeys allows hashing legacy API keys and wiping the
	// plaintext column. Without it those users are only counted.
	ConfirmClearAPIKeys bool
}

type MigrationReport struct {
	Scanned         int `json:"scanned"`
	EmailsMigrated  int `json:"emails_migrated"`
	APIKeysMigrated int `json:"api_keys_migrated"`
	APIKeysSkipped  int `json:"api_keys_skipped"`
}

type MigrationVerification struct {
	repo.MigrationCounts
	Complete bool `json:"complete"`
}

type credentialService struct {
	r   repo.UserRepo
	cfg *config.Config
	log *zap.Logger
}

func NewCredentialService(r repo.UserRepo, cfg *config.Config, log *zap.Logger) CredentialService {
	return &credentialService{r: r, cfg: cfg, log: log}
}

func (s *credentialService) pepper() string { return s.cfg.Root.SecretPepper }

// NormalizeEmail trims and lower-cases an address and checks its shape.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperr.MissingFields("email")
	}
	if !emailPattern.MatchString(email) {
		return "", apperr.Validation(apperr.CodeInvalidFormat, "invalid email address")
	}
	return email, nil
}

func NormalizeDeveloperTag(raw string) (string, error) {
	tag := strings.ToLower(strings.TrimSpace(raw))
	if tag == "" {
		return "", apperr.MissingFields("developer_tag")
	}
	if !developerTagPattern.MatchString(tag) {
		return "", apperr.Validation(apperr.CodeInvalidFormat, "developer tag must be 2-50 characters of a-z, 0-9, _ or -")
	}
	return tag, nil
}

func (s *credentialService) hashPassword(raw string) (string, error) {
	if problems := secrets.CheckStrength(raw); len(problems) > 0 {
		return "", apperr.Validation(apperr.CodeWeakCredential, "password needs %s", strings.Join(problems, ", "))
	}
	h, err := secrets.HashPassword(raw, s.pepper())
	if err != nil {
		return "", apperr.Internal("hash password", err)
	}
	return h, nil
}

// emailFields returns the columns that store a normalised address.
func (s *credentialService) emailFields(email string) map[string]any {
	fields := map[string]any{"email_hash": tokens.SHA256Hex(email)}
	if s.cfg.Credentials.KeepEmailShadow {
		fields["email_shadow"] = email
	} else {
		fields["email_shadow"] = nil
	}
	return fields
}

func (s *credentialService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	var missing []string
	if strings.TrimSpace(in.Email) == "" {
		missing = append(missing, "email")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if strings.TrimSpace(in.DeveloperTag) == "" {
		missing = append(missing, "developer_tag")
	}
	if len(missing) > 0 {
		return nil, apperr.MissingFields(missing...)
	}

	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	tag, err := NormalizeDeveloperTag(in.DeveloperTag)
	if err != nil {
		return nil, err
	}
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	emailHash := tokens.SHA256Hex(email)
	if _, err := s.r.GetByEmailHash(ctx, emailHash); err == nil {
		return nil, apperr.Conflict("email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, dbErr(err, "user")
	}
	if _, err := s.r.GetByDeveloperTag(ctx, tag); err == nil {
		return nil, apperr.Conflict("developer tag already taken")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, dbErr(err, "user")
	}

	u := &model.User{DeveloperTag: tag, EmailHash: &emailHash, PasswordHash: hash}
	if s.cfg.Credentials.KeepEmailShadow {
		u.EmailShadow = &email
	}
	if err := s.r.Create(ctx, u); err != nil {
		return nil, dbErr(err, "user")
	}
	telemetry.RecordAccount(ctx, "registered")
	return u, nil
}

func (s *credentialService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.r.GetByEmailHash(ctx, tokens.SHA256Hex(normalized))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, dbErr(err, "user")
	}
	ok, err := secrets.VerifyPassword(password, s.pepper(), u.PasswordHash)
	if err != nil || !ok {
		if err != nil {
			s.log.Warn("password verification error", zap.Uint("user_id", u.ID), zap.Error(err))
		}
		return nil, ErrInvalidCredentials
	}

	if secrets.NeedsRehash(u.PasswordHash) {
		if h, err := secrets.HashPassword(password, s.pepper()); err == nil {
			if err := s.r.UpdateCredentials(ctx, u.ID, map[string]any{"password_hash": h}); err != nil {
				s.log.Error("failed to upgrade password hash", zap.Uint("user_id", u.ID), zap.Error(err))
			} else {
				u.PasswordHash = h
			}
		}
	}
	return u, nil
}

func (s *credentialService) AuthenticateAPIKey(ctx context.Context, token string) (*model.User, error) {
	if _, ok := tokens.ParseToken(token, s.cfg.Root.APIKeyPrefix); !ok {
		return nil, ErrInvalidCredentials
	}
	u, err := s.r.GetByAPIKeyHash(ctx, tokens.HMAC256Hex(s.pepper(), token))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, dbErr(err, "user")
	}
	if !u.APIEnabled {
		return nil, ErrAPIDisabled
	}
	return u, nil
}

func (s *credentialService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	u, err := s.r.GetByID(ctx, id)
	if err != nil {
		return nil, dbErr(err, "user")
	}
	return u, nil
}

func (s *credentialService) ChangePassword(ctx context.Context, actor *model.User, current, next string) error {
	if !s.VerifyPassword(actor, current) {
		return ErrInvalidCredentials
	}
	hash, err := s.hashPassword(next)
	if err != nil {
		return err
	}
	if err := s.r.UpdateCredentials(ctx, actor.ID, map[string]any{"password_hash": hash}); err != nil {
		return dbErr(err, "user")
	}
	actor.PasswordHash = hash
	return nil
}

func (s *credentialService) VerifyPassword(actor *model.User, raw string) bool {
	if actor == nil || raw == "" {
		return false
	}
	ok, err := secrets.VerifyPassword(raw, s.pepper(), actor.PasswordHash)
	return err == nil && ok
}

func (s *credentialService) ChangeEmail(ctx context.Context, actor *model.User, email string) error {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	hash := tokens.SHA256Hex(normalized)
	if other, err := s.r.GetByEmailHash(ctx, hash); err == nil && other.ID != actor.ID {
		return apperr.Conflict("email already registered")
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return dbErr(err, "user")
	}

	fields := s.emailFields(normalized)
	if err := s.r.UpdateCredentials(ctx, actor.ID, fields); err != nil {
		return dbErr(err, "user")
	}
	actor.EmailHash = &hash
	actor.EmailShadow = nil
	if s.cfg.Credentials.KeepEmailShadow {
		actor.EmailShadow = &normalized
	}
	return nil
}

func (s *credentialService) VerifyEmail(actor *model.User, email string) bool {
	if actor == nil || actor.EmailHash == nil {
		return false
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return false
	}
	return tokens.EqualHex(tokens.SHA256Hex(normalized), *actor.EmailHash)
}

// GetEmail returns the plaintext shadow. It goes away with the shadow column.
func (s *credentialService) GetEmail(actor *model.User) (string, error) {
	if !s.cfg.Credentials.KeepEmailShadow || actor == nil || actor.EmailShadow == nil || *actor.EmailShadow == "" {
		return "", ErrEmailUnavailable
	}
	return *actor.EmailShadow, nil
}

func (s *credentialService) GenerateAPIKey(ctx context.Context, actor *model.User) (string, error) {
	key, err := tokens.NewAPIKey(s.cfg.Root.APIKeyPrefix)
	if err != nil {
		return "", apperr.Internal("generate api key", err)
	}
	hash := tokens.HMAC256Hex(s.pepper(), key)
	if err := s.r.UpdateCredentials(ctx, actor.ID, map[string]any{
		"api_key_hash": hash,
		"api_key":      nil,
		"api_enabled":  true,
	}); err != nil {
		return "", dbErr(err, "user")
	}
	actor.APIKeyHash = &hash
	actor.LegacyAPIKey = nil
	actor.APIEnabled = true
	return key, nil
}

func (s *credentialService) VerifyAPIKey(actor *model.User, candidate string) bool {
	if actor == nil || !actor.HasAPIKey() || candidate == "" {
		return false
	}
	return tokens.EqualHex(tokens.HMAC256Hex(s.pepper(), candidate), *actor.APIKeyHash)
}

func (s *credentialService) RevokeAPIKey(ctx context.Context, actor *model.User) error {
	if err := s.r.UpdateCredentials(ctx, actor.ID, map[string]any{
		"api_key_hash": nil,
		"api_key":      nil,
		"api_enabled":  false,
	}); err != nil {
		return dbErr(err, "user")
	}
	actor.APIKeyHash = nil
	actor.LegacyAPIKey = nil
	actor.APIEnabled = false
	return nil
}

func (s *credentialService) SetTwoFactor(ctx context.Context, actor *model.User, enabled bool) error {
	fields := map[string]any{"two_fa_enabled": enabled}
	if !enabled {
		fields["two_fa_verified"] = false
	}
	if err := s.r.UpdateCredentials(ctx, actor.ID, fields); err != nil {
		return dbErr(err, "user")
	}
	actor.TwoFAEnabled = enabled
	if !enabled {
		actor.TwoFAVerified = false
	}
	return nil
}

// MigrateLegacyCredentials moves generation-1 plaintext columns to digests.
// Each batch commits on its own, so an interrupted run can simply be repeated.
func (s *credentialService) MigrateLegacyCredentials(ctx context.Context, opts MigrateOptions) (*MigrationReport, error) {
	report := &MigrationReport{}
	err := s.r.ScanLegacy(ctx, s.cfg.Credentials.MigrationBatchSize, func(users []*model.User) error {
		var updates []repo.CredentialUpdate
		emails, keys := 0, 0
		for _, u := range users {
			report.Scanned++
			fields := map[string]any{}

			if u.LegacyEmail != nil && u.EmailHash == nil {
				email := strings.ToLower(strings.TrimSpace(*u.LegacyEmail))
				if email != "" {
					for k, v := range s.emailFields(email) {
						fields[k] = v
					}
					emails++
				}
			}

			if u.LegacyAPIKey != nil && *u.LegacyAPIKey != "" {
				switch {
				case !opts.ConfirmClearAPIKeys:
					report.APIKeysSkipped++
				case u.APIKeyHash == nil:
					fields["api_key_hash"] = tokens.HMAC256Hex(s.pepper(), *u.LegacyAPIKey)
					fields["api_key"] = nil
					keys++
				default:
					// a digest already exists; the plaintext is just residue
					fields["api_key"] = nil
					keys++
				}
			}

			if len(fields) > 0 {
				updates = append(updates, repo.CredentialUpdate{UserID: u.ID, Fields: fields})
			}
		}
		if err := s.r.ApplyCredentialUpdates(ctx, updates); err != nil {
			return err
		}
		report.EmailsMigrated += emails
		report.APIKeysMigrated += keys
		return nil
	})
	if err != nil {
		s.log.Error("credential migration aborted", zap.Error(err), zap.Int("scanned", report.Scanned))
		return report, dbErr(err, "user")
	}

	telemetry.RecordMigration(ctx, "email", int64(report.EmailsMigrated))
	telemetry.RecordMigration(ctx, "api_key", int64(report.APIKeysMigrated))
	s.log.Info("credential migration finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("emails_migrated", report.EmailsMigrated),
		zap.Int("api_keys_migrated", report.APIKeysMigrated),
		zap.Int("api_keys_skipped", report.APIKeysSkipped),
	)
	return report, nil
}

func (s *credentialService) VerifyMigration(ctx context.Context) (*MigrationVerification, error) {
	counts, err := s.r.MigrationStatus(ctx)
	if err != nil {
		return nil, dbErr(err, "user")
	}
	return &MigrationVerification{
		MigrationCounts: *counts,
		Complete:        counts.MissingEmailHash == 0 && counts.PlaintextAPIKeys == 0,
	}, nil
}
