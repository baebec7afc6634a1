package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/identity"
)

const (
	contextTokenKey    = "identityToken"
	contextIdentityKey = "identity"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64         `json:"oriat,omitempty"`
	Username     string        `json:"username,omitempty"`
	Email        string        `json:"email,omitempty"`
	Role         identity.Role `json:"role,omitempty"`
	SchoolID     string        `json:"school_id,omitempty"`
}

type auth struct {
	conf       *core.Config
	identities *identity.Service
	jwtConfig  middleware.JWTConfig
}

func newAuth(conf *core.Config, identities *identity.Service) *auth {
	return &auth{
		conf:       conf,
		identities: identities,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
	}
}

// NewClaims returns the claims of idt; origIat carries the first issuing time across refreshes.
func NewClaims(conf *core.Config, idt identity.Identity, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   idt.ID,
			Audience:  conf.AppName,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     idt.Username,
		Email:        idt.Email,
		Role:         idt.Role,
		SchoolID:     idt.SchoolID,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (a *auth) login(ctx echo.Context, uname, pwd string) (string, error) {
	idt, err := a.identities.Authenticate(ctx.Request().Context(), uname, pwd)
	if err != nil {
		switch errors.Cause(err) {
		case identity.ErrAuthenticationFailed:
			return "", errAuthenticationFailed
		case identity.ErrAccountDeactivated:
			return "", errAccountDeactivated
		}
		return "", errors.Wrap(err, "authenticating")
	}
	return GenerateToken(a.conf, NewClaims(a.conf, idt))
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextIdentity loads the identity of the token once per request.
func (a *auth) getContextIdentity(ctx echo.Context) (identity.Identity, error) {
	if idt, ok := ctx.Get(contextIdentityKey).(identity.Identity); ok {
		return idt, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return identity.Identity{}, err
	}
	idt, err := a.identities.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == identity.ErrNotFound {
			return identity.Identity{}, errUnauthorized
		}
		return identity.Identity{}, errors.Wrap(err, "finding identity by ID")
	}
	if !idt.IsActive {
		return identity.Identity{}, errAccountDeactivated
	}
	ctx.Set(contextIdentityKey, idt)
	return idt, nil
}

func (a *auth) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}

	idt, err := a.getContextIdentity(ctx)
	if err != nil {
		return "", err
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	return GenerateToken(a.conf, NewClaims(a.conf, idt, claims.OrigIssuedAt))
}
