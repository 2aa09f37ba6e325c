package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/go-chi/jwtauth/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt"

func TestGenerateAccessToken_RoundTrip(t *testing.T) {
	svc := NewJWTService(testSecret, time.Hour)

	token, expiresAt, err := svc.GenerateAccessToken("user-1", "company-1", user.RoleHRAdmin)
	require.NoError(t, err)
	assert.Greater(t, expiresAt, time.Now().Unix())

	parsed, err := jwtauth.VerifyToken(svc.JWTAuth(), token)
	require.NoError(t, err)
	m, err := parsed.AsMap(context.Background())
	require.NoError(t, err)

	claims, err := ClaimsFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, Claims{UserID: "user-1", CompanyID: "company-1", Role: user.RoleHRAdmin}, claims)
}

func TestGenerateAccessToken_Expired(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now().Add(-2 * time.Hour))
	svc := newJWTService(testSecret, time.Hour, clock)

	token, _, err := svc.GenerateAccessToken("user-1", "company-1", user.RoleMD)
	require.NoError(t, err)

	_, err = jwtauth.VerifyToken(svc.JWTAuth(), token)
	assert.Error(t, err)
}

func TestGenerateAccessToken_RequiresUser(t *testing.T) {
	svc := NewJWTService(testSecret, time.Hour)
	_, _, err := svc.GenerateAccessToken("", "company-1", user.RoleMD)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestClaimsFromMap(t *testing.T) {
	tests := []struct {
		name    string
		claims  map[string]interface{}
		want    Claims
		wantErr bool
	}{
		{
			name:   "access token",
			claims: map[string]interface{}{"type": "access", "user_id": "u1", "company_id": "c1", "role": "md"},
			want:   Claims{UserID: "u1", CompanyID: "c1", Role: user.RoleMD},
		},
		{
			name:   "unknown role carries no capabilities",
			claims: map[string]interface{}{"type": "access", "user_id": "u1", "company_id": "c1", "role": "owner"},
			want:   Claims{UserID: "u1", CompanyID: "c1", Role: user.RolePending},
		},
		{
			name:   "missing company is allowed here",
			claims: map[string]interface{}{"type": "access", "user_id": "u1", "role": "hr_admin"},
			want:   Claims{UserID: "u1", Role: user.RoleHRAdmin},
		},
		{
			name:    "refresh token rejected",
			claims:  map[string]interface{}{"type": "refresh", "user_id": "u1"},
			wantErr: true,
		},
		{
			name:    "missing user",
			claims:  map[string]interface{}{"type": "access", "company_id": "c1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClaimsFromMap(tt.claims)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClaims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
