package crud

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"socialnet/domain"
	"socialnet/errs"
	"socialnet/logger"
)

const (
	// SessionTokenBytes is the number of random bytes of a session token.
	SessionTokenBytes = 32
	// DefaultSessionTTL is how long a session lives after login.
	DefaultSessionTTL = 24 * time.Hour
)

// SessionService stores sessions in the database.
// It implements the domain.SessionService interface.
type SessionService struct {
	sessionValidator
}

// sessionValidator checks incoming tokens and turns them into their stored hash.
type sessionValidator struct {
	hmac HMAC
	ttl  time.Duration
	sessionGorm
}

// sessionGorm runs CRUD operations on the sessions table.
type sessionGorm struct {
	db *gorm.DB
}

// NewSessionService returns an instance of SessionService.
func NewSessionService(db *gorm.DB, hmacKey string, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{
		sessionValidator{
			hmac: newHMAC(hmacKey),
			ttl:  ttl,
			sessionGorm: sessionGorm{
				db: db,
			},
		},
	}
}

// Ensure the SessionService struct properly implements the domain.SessionService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.SessionService = &SessionService{}

// Create issues a new session for the user and returns its token.
func (sv *sessionValidator) Create(ctx context.Context, userID int) (string, error) {
	if userID <= 0 {
		return "", errs.Errorf(errs.EINVALID, "Invalid user.")
	}
	token, err := MakeSessionToken()
	if err != nil {
		return "", err
	}
	session := &domain.Session{
		UserID:    userID,
		TokenHash: sv.hmac.hash(token),
		ExpiresAt: time.Now().UTC().Add(sv.ttl),
	}
	if err := sv.sessionGorm.Create(ctx, session); err != nil {
		return "", err
	}
	return token, nil
}

// UserID resolves a token to the id of the user it was issued for.
func (sv *sessionValidator) UserID(ctx context.Context, token string) (int, error) {
	if err := tokenValid(token); err != nil {
		return 0, err
	}
	session, err := sv.sessionGorm.ByHash(ctx, sv.hmac.hash(token))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, errs.Errorf(errs.EUNAUTHORIZED, "The session is invalid.")
		}
		return 0, err
	}
	if time.Now().UTC().After(session.ExpiresAt) {
		if err := sv.sessionGorm.DeleteByHash(ctx, session.TokenHash); err != nil {
			logger.Warn("delete expired session", zap.Int("user_id", session.UserID), zap.Error(err))
		}
		return 0, errs.Errorf(errs.EUNAUTHORIZED, "The session has expired.")
	}
	return session.UserID, nil
}

// Delete invalidates the session of a token. Unknown tokens are ignored.
func (sv *sessionValidator) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return sv.sessionGorm.DeleteByHash(ctx, sv.hmac.hash(token))
}

// ByHash retrieves a Session database record by its hashed token.
func (sg *sessionGorm) ByHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	var session domain.Session
	err := sg.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Create stores a new Session database record.
func (sg *sessionGorm) Create(ctx context.Context, session *domain.Session) error {
	if err := sg.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// DeleteByHash deletes the Session database record with the hashed token.
func (sg *sessionGorm) DeleteByHash(ctx context.Context, tokenHash string) error {
	err := sg.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&domain.Session{}).Error
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// tokenValid makes sure that a token decodes to SessionTokenBytes bytes.
func tokenValid(token string) error {
	if token == "" {
		return errs.Errorf(errs.EUNAUTHORIZED, "No session.")
	}
	n, err := nBytes(token)
	if err != nil || n < SessionTokenBytes {
		return errs.Errorf(errs.EUNAUTHORIZED, "The session is invalid.")
	}
	return nil
}

// HMAC is a wrapper around the crypto/hmac package making it easier to use.
// A hash.Hash is not safe for concurrent use, so access is serialized.
type HMAC struct {
	mu   *sync.Mutex
	hmac hash.Hash
}

// newHMAC creates and returns a new HMAC object.
func newHMAC(key string) HMAC {
	return HMAC{
		mu:   &sync.Mutex{},
		hmac: hmac.New(sha256.New, []byte(key)),
	}
}

// hash hashes an input string using HMAC with the secret key
// provided when the HMAC object was created.
func (h HMAC) hash(input string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hmac.Reset()
	h.hmac.Write([]byte(input))
	return base64.URLEncoding.EncodeToString(h.hmac.Sum(nil))
}

// MakeSessionToken generates a random base64 URL encoded token of SessionTokenBytes bytes.
func MakeSessionToken() (string, error) {
	return bytesToString(SessionTokenBytes)
}

// randomBytes generates n random bytes or returns an error. It uses the
// crypto/rand package, so it can be used for things like session tokens.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// nBytes returns the number of bytes used in a base64 URL encoded string.
func nBytes(base64String string) (int, error) {
	b, err := base64.URLEncoding.DecodeString(base64String)
	if err != nil {
		return -1, err
	}
	return len(b), nil
}

// bytesToString generates a byte slice of size nBytes and then
// returns a string that is the base64 URL encoded version of that byte slice.
func bytesToString(nBytes int) (string, error) {
	b, err := randomBytes(nBytes)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
