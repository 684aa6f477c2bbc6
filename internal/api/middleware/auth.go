// auth.go — JWT middleware административных маршрутов.
// Токены валидируются по RS256 против JWKS внешнего identity provider.
// Claims: sub (subject), scope/scopes. Публичные маршруты API работают
// на мандатных токенах в пути запроса и через это middleware не проходят.
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/confcollect/collector/internal/api/errors"
)

// ScopeAdmin — scope, дающий доступ к административным маршрутам.
const ScopeAdmin = "collector:admin"

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeySubject — ключ для sub из JWT в контексте запроса.
	ContextKeySubject contextKey = "jwt_subject"
	// ContextKeyScopes — ключ для scopes из JWT в контексте запроса.
	ContextKeyScopes contextKey = "jwt_scopes"
)

// Claims — структура JWT claims административных токенов.
// Поддерживает два формата scopes:
//   - стандартный OAuth2: "scope" (пробело-разделённая строка)
//   - кастомный: "scopes" (массив строк)
type Claims struct {
	jwt.RegisteredClaims
	// ScopeString — стандартный OAuth2 claim (пробело-разделённая строка)
	ScopeString string `json:"scope"`
	// ScopeArray — кастомный claim (массив строк), альтернативный формат
	ScopeArray []string `json:"scopes"`
}

// Scopes возвращает объединённый список scope'ов из обоих форматов.
func (c *Claims) Scopes() []string {
	var result []string
	if c.ScopeString != "" {
		result = append(result, strings.Split(c.ScopeString, " ")...)
	}
	result = append(result, c.ScopeArray...)
	return result
}

// JWTAuth — middleware для JWT-аутентификации через JWKS.
type JWTAuth struct {
	jwks      keyfunc.Keyfunc
	jwtLeeway time.Duration
	logger    *slog.Logger
}

// JWTAuthConfig — параметры для создания JWT middleware.
// Нулевые таймауты и интервалы заменяются значениями по умолчанию.
type JWTAuthConfig struct {
	// URL JWKS endpoint
	JWKSURL string
	// Путь к CA-сертификату (опционально)
	CACertPath string
	// Таймаут HTTP-клиента JWKS (по умолчанию 10s)
	ClientTimeout time.Duration
	// Интервал обновления JWKS-ключей (по умолчанию 1h)
	RefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT (по умолчанию 30s)
	JWTLeeway time.Duration
}

// NewJWTAuth создаёт JWT middleware с JWKS из указанного URL.
func NewJWTAuth(authCfg JWTAuthConfig, logger *slog.Logger) (*JWTAuth, error) {
	if authCfg.ClientTimeout == 0 {
		authCfg.ClientTimeout = 10 * time.Second
	}
	if authCfg.RefreshInterval == 0 {
		authCfg.RefreshInterval = time.Hour
	}
	if authCfg.JWTLeeway == 0 {
		authCfg.JWTLeeway = 30 * time.Second
	}

	httpClient, err := buildHTTPClient(authCfg)
	if err != nil {
		return nil, err
	}

	if authCfg.CACertPath != "" {
		logger.Info("CA-сертификат добавлен в пул доверия",
			slog.String("ca_cert", authCfg.CACertPath),
		)
	}

	// NoErrorReturnFirstHTTPReq позволяет стартовать, даже если JWKS
	// endpoint ещё недоступен (например, при одновременном запуске pod-ов)
	storage, err := jwkset.NewStorageFromHTTP(authCfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           authCfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", authCfg.JWKSURL),
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

	return &JWTAuth{
		jwks:      k,
		jwtLeeway: authCfg.JWTLeeway,
		logger:    logger.With(slog.String("component", "jwt_auth")),
	}, nil
}

// buildHTTPClient создаёт HTTP-клиент с настроенным TLS и таймаутом.
func buildHTTPClient(authCfg JWTAuthConfig) (*http.Client, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if authCfg.CACertPath != "" {
		caCert, err := os.ReadFile(authCfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", authCfg.CACertPath, err)
		}

		caCertPool, err := x509.SystemCertPool()
		if err != nil {
			caCertPool = x509.NewCertPool()
		}
		caCertPool.AppendCertsFromPEM(caCert)
		tlsConfig.RootCAs = caCertPool
	}

	return &http.Client{
		Timeout: authCfg.ClientTimeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}, nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, jwtLeeway time.Duration, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:      kf,
		jwtLeeway: jwtLeeway,
		logger:    logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token из заголовка Authorization, валидирует подпись (RS256),
// проверяет exp/nbf, помещает sub и scopes в контекст запроса.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := parts[1]
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, j.jwks.KeyfuncCtx(r.Context()),
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			if !token.Valid {
				apierrors.Unauthorized(w, "Невалидный токен")
				return
			}

			subject, err := claims.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySubject, subject)
			ctx = context.WithValue(ctx, ContextKeyScopes, claims.Scopes())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope возвращает middleware, проверяющий наличие указанного scope.
// Если scope отсутствует — возвращает 403 Forbidden.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scopes, ok := r.Context().Value(ContextKeyScopes).([]string)
			if !ok {
				apierrors.Forbidden(w, "Отсутствуют scopes в токене")
				return
			}

			for _, s := range scopes {
				if s == scope {
					next.ServeHTTP(w, r)
					return
				}
			}

			apierrors.Forbidden(w, "Недостаточно прав: требуется scope "+scope)
		})
	}
}

// SubjectFromContext извлекает sub из контекста запроса.
// Возвращает пустую строку, если sub не найден.
func SubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(ContextKeySubject).(string)
	return subject
}

// ScopesFromContext извлекает scopes из контекста запроса.
// Возвращает nil, если scopes не найдены.
func ScopesFromContext(ctx context.Context) []string {
	scopes, _ := ctx.Value(ContextKeyScopes).([]string)
	return scopes
}
