package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
	apperrors "github.com/zatekoja/clinicflow/pkg/errors"
)

type actorKey struct{}

// Claims are the bearer token claims. Subject carries the user id.
type Claims struct {
	Role entities.Role `json:"role"`
	jwt.RegisteredClaims
}

// DoctorResolver finds the doctor profile owned by a user
type DoctorResolver interface {
	GetDoctorByUserID(ctx context.Context, userID int64) (*entities.Doctor, error)
}

// Authenticator verifies HS256 bearer tokens and puts the acting user on the
// request context
type Authenticator struct {
	secret  []byte
	issuer  string
	doctors DoctorResolver
}

// NewAuthenticator creates a new authenticator. An empty issuer is not checked.
func NewAuthenticator(secret, issuer string, doctors DoctorResolver) *Authenticator {
	return &Authenticator{
		secret:  []byte(secret),
		issuer:  issuer,
		doctors: doctors,
	}
}

// Middleware rejects requests without a valid token
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			unauthorized(w, "bearer token required")
			return
		}

		user, err := a.Authenticate(r.Context(), tokenString)
		if err != nil {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) && appErr.Type == apperrors.ErrorTypeUnauthorized {
				unauthorized(w, appErr.Message)
				return
			}
			log.Error().Err(err).Msg("Failed to resolve acting user")
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), user)))
	})
}

// Authenticate turns a token into the acting user it speaks for
func (a *Authenticator) Authenticate(ctx context.Context, tokenString string) (entities.ActingUser, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return entities.ActingUser{}, apperrors.NewUnauthorizedError("invalid token")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return entities.ActingUser{}, apperrors.NewUnauthorizedError("invalid token subject")
	}

	user := entities.ActingUser{UserID: userID, Role: claims.Role}
	if claims.Role != entities.RoleDoctor {
		return user, nil
	}

	doctor, err := a.doctors.GetDoctorByUserID(ctx, userID)
	switch {
	case err == nil:
		user.DoctorID = &doctor.ID
	case apperrors.IsType(err, apperrors.ErrorTypeNotFound):
		log.Warn().Int64("user_id", userID).Msg("Doctor token without a doctor profile")
	default:
		return entities.ActingUser{}, err
	}
	return user, nil
}

// IssueToken signs a token for a user. It backs local tooling and tests.
func IssueToken(secret, issuer string, userID int64, role entities.Role, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = strconv.FormatInt(userID, 10)
	if issuer != "" {
		claims.Issuer = issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: role, RegisteredClaims: claims})
	return token.SignedString([]byte(secret))
}

// bearerToken reads the Authorization header. EventSource clients cannot set
// headers, so an access_token query parameter is accepted as well.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return token
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// WithActor stores the acting user on ctx
func WithActor(ctx context.Context, user entities.ActingUser) context.Context {
	return context.WithValue(ctx, actorKey{}, user)
}

// ActorFromContext returns the acting user stored by the auth middleware
func ActorFromContext(ctx context.Context) (entities.ActingUser, bool) {
	user, ok := ctx.Value(actorKey{}).(entities.ActingUser)
	return user, ok
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  string(apperrors.ErrorTypeUnauthorized),
	})
}
