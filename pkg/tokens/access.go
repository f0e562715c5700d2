package tokens

import "time"

func (s *Service) IssueAccess(userID uint, email, role string) (string, time.Time, error) {
	c, exp := s.newClaims(TypeAccess, userID, email, role, s.accessTTL)
	signed, err := s.sign(c, s.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccess returns ErrTokenExpired for a well-formed token past its
// expiry and ErrTokenInvalid for anything else that fails.
func (s *Service) VerifyAccess(token string) (*Claims, error) {
	return s.parse(token, s.accessSecret, TypeAccess)
}
