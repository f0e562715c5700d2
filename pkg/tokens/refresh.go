package tokens

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// IssueRefresh signs a refresh token. The random jti keeps two tokens issued
// for the same user within one second distinct.
func (s *Service) IssueRefresh(userID uint, email, role string) (string, time.Time, error) {
	c, exp := s.newClaims(TypeRefresh, userID, email, role, s.refreshTTL)
	c.ID = uuid.NewString()
	signed, err := s.sign(c, s.refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyRefresh checks signature, structure and expiry only. Whether the
// token is still on record is up to the caller.
func (s *Service) VerifyRefresh(token string) (*Claims, error) {
	claims, err := s.parse(token, s.refreshSecret, TypeRefresh)
	if errors.Is(err, ErrTokenExpired) {
		return nil, ErrTokenInvalid
	}
	return claims, err
}
