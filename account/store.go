package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/draftboard/draftauth"
	"github.com/draftboard/draftauth/password"
)

// ErrDuplicateIdentifier is returned by Create when the identifier is
// already registered.
var ErrDuplicateIdentifier = errors.New("identifier already registered")

// ErrStoreUnavailable wraps Redis transport failures.
var ErrStoreUnavailable = errors.New("account store unavailable")

const (
	fieldIdentifier   = "identifier"
	fieldPasswordHash = "password_hash"
	fieldRole         = "role"
	fieldDeactivated  = "deactivated"
	fieldDisplayName  = "display_name"
	fieldAvatarRef    = "avatar_ref"
)

// Record is the full stored account row.
type Record struct {
	AccountID    string
	Identifier   string
	PasswordHash string
	Role         draftauth.Role
	Deactivated  bool
	DisplayName  string
	AvatarRef    string
}

// RedisStore keeps accounts as Redis hashes with a secondary
// identifier→ID index. It satisfies draftauth.AccountStore.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	hasher *password.Hasher
}

// NewRedisStore creates a store under the given key prefix. The hasher
// verifies (and on Create, produces) password hashes.
func NewRedisStore(client redis.UniversalClient, prefix string, hasher *password.Hasher) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "da"
	}

	return &RedisStore{
		redis:  client,
		prefix: prefix,
		hasher: hasher,
	}, nil
}

// Create registers a new account with a fresh UUID and returns its record.
func (s *RedisStore) Create(ctx context.Context, identifier, plaintext string, role draftauth.Role, displayName string) (Record, error) {
	identifier = strings.TrimSpace(strings.ToLower(identifier))
	if identifier == "" {
		return Record{}, errors.New("identifier required")
	}

	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return Record{}, err
	}

	record := Record{
		AccountID:    uuid.NewString(),
		Identifier:   identifier,
		PasswordHash: hash,
		Role:         role,
		DisplayName:  displayName,
	}

	// Claim the identifier first; SETNX makes duplicate registration lose.
	ok, err := s.redis.SetNX(ctx, s.identifierKey(identifier), record.AccountID, 0).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return Record{}, ErrDuplicateIdentifier
	}

	if err := s.writeRecord(ctx, record); err != nil {
		return Record{}, err
	}

	return record, nil
}

// Put upserts a fully formed record. Intended for seeding and migration.
func (s *RedisStore) Put(ctx context.Context, record Record) error {
	if record.AccountID == "" {
		return errors.New("account id required")
	}
	record.Identifier = strings.TrimSpace(strings.ToLower(record.Identifier))

	if record.Identifier != "" {
		if err := s.redis.Set(ctx, s.identifierKey(record.Identifier), record.AccountID, 0).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	return s.writeRecord(ctx, record)
}

// Lookup reads the live snapshot for an account. Implements
// draftauth.AccountStore.
func (s *RedisStore) Lookup(ctx context.Context, accountID string) (draftauth.AccountSnapshot, error) {
	record, err := s.getRecord(ctx, accountID)
	if err != nil {
		return draftauth.AccountSnapshot{}, err
	}

	return draftauth.AccountSnapshot{
		AccountID:   record.AccountID,
		Role:        record.Role,
		Deactivated: record.Deactivated,
		DisplayName: record.DisplayName,
		AvatarRef:   record.AvatarRef,
	}, nil
}

// VerifyCredentials checks an identifier/password pair and returns the
// account ID. Implements draftauth.AccountStore. Unknown identifiers and
// wrong passwords both return draftauth.ErrInvalidCredentials so sign-in
// failures do not reveal account existence.
func (s *RedisStore) VerifyCredentials(ctx context.Context, identifier, plaintext string) (string, error) {
	identifier = strings.TrimSpace(strings.ToLower(identifier))

	accountID, err := s.redis.Get(ctx, s.identifierKey(identifier)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", draftauth.ErrInvalidCredentials
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	record, err := s.getRecord(ctx, accountID)
	if err != nil {
		if errors.Is(err, draftauth.ErrAccountMissing) {
			return "", draftauth.ErrInvalidCredentials
		}
		return "", err
	}

	ok, err := s.hasher.Verify(plaintext, record.PasswordHash)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", draftauth.ErrInvalidCredentials
	}

	return record.AccountID, nil
}

// SetDeactivated flips the deactivation flag. The next ResolveSession for
// any outstanding credential of this account observes the new value.
func (s *RedisStore) SetDeactivated(ctx context.Context, accountID string, deactivated bool) error {
	return s.setField(ctx, accountID, fieldDeactivated, boolField(deactivated))
}

// SetRole changes the account role, visible on the very next request.
func (s *RedisStore) SetRole(ctx context.Context, accountID string, role draftauth.Role) error {
	return s.setField(ctx, accountID, fieldRole, role.String())
}

// UpdateProfile changes the cosmetic fields. Sessions pick them up on the
// next explicit refresh, not on ordinary requests.
func (s *RedisStore) UpdateProfile(ctx context.Context, accountID, displayName, avatarRef string) error {
	if err := s.ensureExists(ctx, accountID); err != nil {
		return err
	}
	err := s.redis.HSet(ctx, s.accountKey(accountID),
		fieldDisplayName, displayName,
		fieldAvatarRef, avatarRef,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes the account row and its identifier index entry.
// Outstanding credentials for it resolve as unauthenticated afterwards.
func (s *RedisStore) Delete(ctx context.Context, accountID string) error {
	record, err := s.getRecord(ctx, accountID)
	if err != nil {
		return err
	}

	keys := []string{s.accountKey(accountID)}
	if record.Identifier != "" {
		keys = append(keys, s.identifierKey(record.Identifier))
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) writeRecord(ctx context.Context, record Record) error {
	err := s.redis.HSet(ctx, s.accountKey(record.AccountID),
		fieldIdentifier, record.Identifier,
		fieldPasswordHash, record.PasswordHash,
		fieldRole, record.Role.String(),
		fieldDeactivated, boolField(record.Deactivated),
		fieldDisplayName, record.DisplayName,
		fieldAvatarRef, record.AvatarRef,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) getRecord(ctx context.Context, accountID string) (Record, error) {
	if accountID == "" {
		return Record{}, draftauth.ErrAccountMissing
	}

	fields, err := s.redis.HGetAll(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return Record{}, draftauth.ErrAccountMissing
	}

	return Record{
		AccountID:    accountID,
		Identifier:   fields[fieldIdentifier],
		PasswordHash: fields[fieldPasswordHash],
		Role:         draftauth.ParseRole(fields[fieldRole]),
		Deactivated:  fields[fieldDeactivated] == "1",
		DisplayName:  fields[fieldDisplayName],
		AvatarRef:    fields[fieldAvatarRef],
	}, nil
}

func (s *RedisStore) setField(ctx context.Context, accountID, field, value string) error {
	if err := s.ensureExists(ctx, accountID); err != nil {
		return err
	}
	if err := s.redis.HSet(ctx, s.accountKey(accountID), field, value).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) ensureExists(ctx context.Context, accountID string) error {
	if accountID == "" {
		return draftauth.ErrAccountMissing
	}
	n, err := s.redis.Exists(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n == 0 {
		return draftauth.ErrAccountMissing
	}
	return nil
}

func (s *RedisStore) accountKey(accountID string) string {
	return s.prefix + ":acct:" + accountID
}

func (s *RedisStore) identifierKey(identifier string) string {
	return s.prefix + ":ident:" + identifier
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
