// auth.go — JWT middleware аутентификации и авторизации.
// Валидирует токен через JWKS провайдера идентификации (RS256), определяет
// тип субъекта (пользователь / сервисный аккаунт) и роль, кладёт
// model.Actor в контекст запроса.
//
// Роль пользователя вычисляется из групп IdP (RC_ADMIN_GROUPS), затем из
// realm_access.roles. Роль сервисного аккаунта — из scope: replays:admin
// даёт admin, replays:read — readonly.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/replaystore/internal/api/errors"
	"github.com/bigkaa/replaystore/internal/domain/model"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyActor — model.Actor в контексте запроса.
const ContextKeyActor contextKey = "actor"

// Scopes сервисных аккаунтов.
const (
	ScopeAdmin = "replays:admin"
	ScopeRead  = "replays:read"
)

// roleWeight — вес роли для сравнения.
var roleWeight = map[string]int{
	model.RoleReadonly: 1,
	model.RoleAdmin:    2,
}

// tokenClaims — raw claims из JWT.
type tokenClaims struct {
	jwt.RegisteredClaims
	// RealmAccess — вложенная структура для realm_access.roles.
	RealmAccess *realmAccess `json:"realm_access,omitempty"`
	// Groups — группы пользователя.
	Groups []string `json:"groups,omitempty"`
	// Scope — scopes через пробел (для Service Account).
	Scope string `json:"scope,omitempty"`
	// ClientID — client_id (для Service Account).
	ClientID string `json:"client_id,omitempty"`
}

type realmAccess struct {
	Roles []string `json:"roles"`
}

// JWTAuthConfig — параметры для создания JWT middleware.
type JWTAuthConfig struct {
	// JWKSURL — URL JWKS endpoint
	JWKSURL string
	// Issuer — ожидаемый iss ("" — не проверяется)
	Issuer string
	// AdminGroups — группы IdP, дающие роль admin
	AdminGroups []string
	// ClientTimeout — таймаут HTTP-клиента JWKS
	ClientTimeout time.Duration
	// RefreshInterval — интервал обновления JWKS-ключей
	RefreshInterval time.Duration
	// Leeway — допустимое отклонение времени при проверке JWT
	Leeway time.Duration
}

// JWTAuth — middleware для JWT-аутентификации через JWKS.
type JWTAuth struct {
	jwks        keyfunc.Keyfunc
	adminGroups map[string]bool
	issuer      string
	leeway      time.Duration
	logger      *slog.Logger
}

// NewJWTAuth создаёт JWT middleware с JWKS из указанного URL.
func NewJWTAuth(cfg JWTAuthConfig, logger *slog.Logger) (*JWTAuth, error) {
	// NoErrorReturnFirstHTTPReq — стартуем, даже если IdP ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: cfg.ClientTimeout},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           cfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", cfg.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewJWTAuthWithKeyfunc(k, cfg, logger), nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, cfg JWTAuthConfig, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:        kf,
		adminGroups: toSet(cfg.AdminGroups),
		issuer:      cfg.Issuer,
		leeway:      cfg.Leeway,
		logger:      logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует подпись и сроки, помещает Actor в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.leeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			claims := &tokenClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil || !token.Valid {
				j.logger.Debug("JWT валидация не пройдена",
					slog.Any("error", err),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			subject, err := claims.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			actor := model.Actor{Subject: subject, Role: j.resolveRole(claims)}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// resolveRole вычисляет итоговую роль субъекта.
func (j *JWTAuth) resolveRole(c *tokenClaims) string {
	// Service Account: client_id + scope
	if c.ClientID != "" && c.Scope != "" {
		var roles []string
		for _, s := range strings.Fields(c.Scope) {
			switch s {
			case ScopeAdmin:
				roles = append(roles, model.RoleAdmin)
			case ScopeRead:
				roles = append(roles, model.RoleReadonly)
			}
		}
		return highestRole(roles)
	}

	var roles []string
	for _, g := range c.Groups {
		if j.adminGroups[g] {
			roles = append(roles, model.RoleAdmin)
		}
	}
	if role := highestRole(roles); role != "" {
		return role
	}

	if c.RealmAccess != nil {
		roles = roles[:0]
		for _, r := range c.RealmAccess.Roles {
			if _, ok := roleWeight[r]; ok {
				roles = append(roles, r)
			}
		}
		if role := highestRole(roles); role != "" {
			return role
		}
	}

	// Аутентифицированный пользователь без групп — только чтение.
	return model.RoleReadonly
}

// highestRole возвращает максимальную роль из набора.
func highestRole(roles []string) string {
	highest := ""
	for _, r := range roles {
		if roleWeight[r] > roleWeight[highest] {
			highest = r
		}
	}
	return highest
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}

// StaticActor возвращает middleware, помещающий в контекст фиксированного
// субъекта. Используется при отключённой аутентификации (RC_JWKS_URL пуст).
func StaticActor(actor model.Actor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireRole пропускает только субъектов с одной из указанных ролей.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware() или StaticActor.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			apierrors.Forbidden(w, fmt.Sprintf("Недостаточно прав: требуется роль %s", strings.Join(roles, " или ")))
		})
	}
}

// WithActor возвращает контекст с субъектом.
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// ActorFromContext извлекает субъекта из контекста запроса.
// Возвращает model.Anonymous, если субъект не найден.
func ActorFromContext(ctx context.Context) model.Actor {
	actor, ok := ctx.Value(ContextKeyActor).(model.Actor)
	if !ok {
		return model.Anonymous
	}
	return actor
}
