package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/repository"
)

type contextKey string

const (
	// ContextKeyMember is the key for storing the member in request context.
	ContextKeyMember contextKey = "member"

	// TokenQueryParam carries the stream token for clients that cannot set
	// headers (EventSource).
	TokenQueryParam = "access_token"
)

// AuthMiddleware handles Bearer token authentication.
type AuthMiddleware struct {
	memberRepo *repository.MemberRepository
}

// NewAuthMiddleware creates a new AuthMiddleware.
func NewAuthMiddleware(memberRepo *repository.MemberRepository) *AuthMiddleware {
	return &AuthMiddleware{memberRepo: memberRepo}
}

// Authenticate validates the Bearer token and adds the member to the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return m.authenticate(next, false)
}

// AuthenticateStream is Authenticate for the live stream. It also accepts the
// token in the access_token query parameter; no other route does, so tokens
// stay out of request logs for ordinary calls.
func (m *AuthMiddleware) AuthenticateStream(next http.Handler) http.Handler {
	return m.authenticate(next, true)
}

func (m *AuthMiddleware) authenticate(next http.Handler, allowQuery bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractToken(r, allowQuery)
		if !ok {
			http.Error(w, "missing or malformed authorization", http.StatusUnauthorized)
			return
		}

		member, err := m.memberRepo.GetByToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrMemberNotFound) {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			slog.Error("authenticate member", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		if !member.IsActive {
			http.Error(w, "member inactive", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyMember, member)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken reads "Authorization: Bearer <token>". With allowQuery it
// falls back to the access_token query parameter.
func extractToken(r *http.Request, allowQuery bool) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return "", false
		}
		token := strings.TrimSpace(parts[1])
		return token, token != ""
	}

	if !allowQuery {
		return "", false
	}
	token := r.URL.Query().Get(TokenQueryParam)
	return token, token != ""
}

// GetMemberFromContext retrieves the authenticated member from request context.
func GetMemberFromContext(ctx context.Context) (*domain.Member, error) {
	member, ok := ctx.Value(ContextKeyMember).(*domain.Member)
	if !ok || member == nil {
		return nil, domain.ErrInvalidToken
	}
	return member, nil
}

// WithMember returns a copy of ctx carrying member, as Authenticate does.
func WithMember(ctx context.Context, member *domain.Member) context.Context {
	return context.WithValue(ctx, ContextKeyMember, member)
}
