package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/go-chi/jwtauth/v5"
	"github.com/jonboulle/clockwork"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const tokenTypeAccess = "access"

var ErrInvalidClaims = errors.New("token is missing required claims")

// Claims is the caller identity carried by an access token.
type Claims struct {
	UserID    string
	CompanyID string
	Role      user.Role
}

type Service interface {
	GenerateAccessToken(userID, companyID string, role user.Role) (token string, expiresAt int64, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenExpiration time.Duration
	tokenAuth             *jwtauth.JWTAuth
	clock                 clockwork.Clock
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(secretKey string, accessTokenExpiration time.Duration) Service {
	return newJWTService(secretKey, accessTokenExpiration, clockwork.NewRealClock())
}

func newJWTService(secretKey string, accessTokenExpiration time.Duration, clock clockwork.Clock) *JWTService {
	return &JWTService{
		accessTokenExpiration: accessTokenExpiration,
		tokenAuth:             jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
		clock:                 clock,
	}
}

func (j *JWTService) GenerateAccessToken(userID, companyID string, role user.Role) (token string, expiresAt int64, err error) {
	if userID == "" {
		return "", 0, fmt.Errorf("%w: user_id", ErrInvalidClaims)
	}
	expiresAt = j.clock.Now().Add(j.accessTokenExpiration).Unix()

	claims := map[string]interface{}{
		"user_id":    userID,
		"company_id": companyID,
		"role":       string(role),
		"type":       tokenTypeAccess,
		"exp":        expiresAt,
	}

	_, tokenString, err := j.tokenAuth.Encode(claims)
	return tokenString, expiresAt, err
}

// ClaimsFromMap extracts Claims from a verified token's private claims.
// Only access tokens are accepted. Unknown roles map to pending.
func ClaimsFromMap(m map[string]interface{}) (Claims, error) {
	if t, _ := m["type"].(string); t != tokenTypeAccess {
		return Claims{}, fmt.Errorf("%w: type", ErrInvalidClaims)
	}

	userID, _ := m["user_id"].(string)
	if userID == "" {
		return Claims{}, fmt.Errorf("%w: user_id", ErrInvalidClaims)
	}
	companyID, _ := m["company_id"].(string)
	role, _ := m["role"].(string)

	return Claims{
		UserID:    userID,
		CompanyID: companyID,
		Role:      user.ParseRole(role),
	}, nil
}
