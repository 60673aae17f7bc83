package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/caredesk/clinic-scheduling/internal/auth"
)

type contextKey string

const scopeKey contextKey = "authScope"

// ScopeClaims is the JWT payload issued to callers: a role plus the patient
// or clinic binding that limits it.
type ScopeClaims struct {
	Role      string `json:"role"`
	PatientID string `json:"patient_id,omitempty"`
	ClinicID  string `json:"clinic_id,omitempty"`
	jwt.RegisteredClaims
}

// Scope converts the claims into the explicit scope services take. Patient
// tokens must carry a patient binding; staff tokens may carry a clinic
// binding.
func (c *ScopeClaims) Scope() (auth.Scope, error) {
	role, err := auth.ParseRole(c.Role)
	if err != nil {
		return auth.Scope{}, err
	}
	s := auth.Scope{Role: role}
	if c.PatientID != "" {
		id, err := uuid.Parse(c.PatientID)
		if err != nil {
			return auth.Scope{}, fmt.Errorf("middleware: patient_id claim: %w", err)
		}
		s.PatientID = id
	}
	if c.ClinicID != "" {
		id, err := uuid.Parse(c.ClinicID)
		if err != nil {
			return auth.Scope{}, fmt.Errorf("middleware: clinic_id claim: %w", err)
		}
		s.ClinicID = id
	}
	if role == auth.RolePatient && s.PatientID == uuid.Nil {
		return auth.Scope{}, errors.New("middleware: patient token missing patient_id")
	}
	return s, nil
}

// AuthScope enforces an HMAC-signed Bearer JWT and resolves it into the
// auth.Scope downstream handlers pass to services.
func AuthScope(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "auth disabled", http.StatusUnauthorized)
				return
			}
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")
			claims := &ScopeClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			scope, err := claims.Scope()
			if err != nil {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), scopeKey, scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ScopeFromContext returns the scope AuthScope resolved for this request.
func ScopeFromContext(ctx context.Context) (auth.Scope, bool) {
	s, ok := ctx.Value(scopeKey).(auth.Scope)
	return s, ok
}

// WithScope attaches a scope directly, bypassing token verification. Used by
// handler tests and in-process callers.
func WithScope(ctx context.Context, s auth.Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}
