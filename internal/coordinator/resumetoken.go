package coordinator

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ibusnowden/MLRun/internal/common/kerrors"
)

// resumeClaims is the signed, single-use resume token payload:
// a client presenting this token may resume log_metrics calls against
// RunID starting from SequenceCheckpoint, provided the jti still matches
// what the metadata store has on file for the run (single-use is enforced
// by clearing/replacing that column on redemption, not by anything in the
// token itself).
type resumeClaims struct {
	jwt.RegisteredClaims
	RunID              string `json:"run_id"`
	SequenceCheckpoint int64  `json:"sequence_checkpoint"`
}

// TokenSigner mints and verifies resume tokens with a single static
// HS256 shared secret: jwt.NewWithClaims + SignedString to mint,
// ParseWithClaims with errors.Is-based reclassification to verify.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenSigner(secret []byte, ttl time.Duration) *TokenSigner {
	return &TokenSigner{secret: secret, ttl: ttl}
}

// Mint signs a new resume token for runID at the given checkpoint,
// returning the token string, its jti (for the caller to persist as the
// run's current resume_token_jti), and its expiry.
func (s *TokenSigner) Mint(runID string, sequenceCheckpoint int64) (token, jti string, expiresAt time.Time, err error) {
	jti = uuid.NewString()
	expiresAt = time.Now().Add(s.ttl)

	claims := resumeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		RunID:              runID,
		SequenceCheckpoint: sequenceCheckpoint,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, jti, expiresAt, nil
}

// Verify checks a resume token's signature and expiry and returns its
// claims. The caller is still responsible for checking the returned jti
// against the run's stored resume_token_jti to enforce single use — this
// package has no store dependency, by design, so it stays unit-testable
// without a database.
func (s *TokenSigner) Verify(token string) (runID string, sequenceCheckpoint int64, jti string, err error) {
	claims := &resumeClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", 0, "", &kerrors.ErrFailedPrecondition{Message: "resume token expired"}
		case errors.Is(err, jwt.ErrSignatureInvalid), errors.Is(err, jwt.ErrTokenMalformed):
			return "", 0, "", &kerrors.ErrInvalidArgument{Name: "resume_token", Message: "resume token is invalid"}
		default:
			return "", 0, "", &kerrors.ErrInvalidArgument{Name: "resume_token", Message: err.Error()}
		}
	}
	return claims.RunID, claims.SequenceCheckpoint, claims.ID, nil
}
