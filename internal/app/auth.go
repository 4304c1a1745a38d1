package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"resortadmin/internal/domain"
)

// AuthService verifies Telegram WebApp initData and issues access tokens.
// Users are provisioned out of band; login only refreshes their profile.
type AuthService struct {
	users    domain.UserRepository
	botToken string
	secret   []byte
	tokenTTL time.Duration
}

func NewAuthService(users domain.UserRepository, botToken, jwtSecret string, ttl time.Duration) *AuthService {
	return &AuthService{users: users, botToken: botToken, secret: []byte(jwtSecret), tokenTTL: ttl}
}

// TelegramProfile is the user payload embedded in initData.
type TelegramProfile struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// VerifyInitData validates the WebApp HMAC: pairs sorted by key, joined with
// newlines, signed with HMAC-SHA256 under a key derived from the bot token
// ("WebAppData" keyed), per the Telegram spec.
func (s *AuthService) VerifyInitData(initData string) (TelegramProfile, error) {
	if s.botToken == "" {
		return TelegramProfile{}, errors.New("bot token not configured")
	}
	values, err := url.ParseQuery(initData)
	if err != nil {
		return TelegramProfile{}, domain.ErrUnauthorized
	}
	gotHash := values.Get("hash")
	if gotHash == "" {
		return TelegramProfile{}, domain.ErrUnauthorized
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}
	dataCheck := strings.Join(lines, "\n")

	kdf := hmac.New(sha256.New, []byte("WebAppData"))
	kdf.Write([]byte(s.botToken))
	mac := hmac.New(sha256.New, kdf.Sum(nil))
	mac.Write([]byte(dataCheck))
	want := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(want), []byte(gotHash)) {
		return TelegramProfile{}, domain.ErrUnauthorized
	}

	var p TelegramProfile
	if err := json.Unmarshal([]byte(values.Get("user")), &p); err != nil || p.ID == 0 {
		return TelegramProfile{}, domain.ErrUnauthorized
	}
	return p, nil
}

// Login exchanges verified initData for an access token. Unknown or
// deactivated Telegram ids are rejected; there is no self-registration.
func (s *AuthService) Login(ctx context.Context, initData string) (string, domain.User, error) {
	p, err := s.VerifyInitData(initData)
	if err != nil {
		return "", domain.User{}, err
	}

	u, err := s.users.GetUserByTelegramID(ctx, p.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.User{}, domain.ErrForbidden
		}
		return "", domain.User{}, err
	}
	if !u.IsActive {
		return "", domain.User{}, domain.ErrForbidden
	}

	if err := s.users.RecordLogin(ctx, u.ID, p.FirstName, p.LastName, p.Username); err != nil {
		return "", domain.User{}, err
	}
	u.FirstName, u.LastName, u.Username = p.FirstName, p.LastName, p.Username

	token, err := s.IssueToken(u.ID)
	if err != nil {
		return "", domain.User{}, err
	}
	return token, u, nil
}

func (s *AuthService) IssueToken(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     jwt.NewNumericDate(now),
		"exp":     jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken returns the user id from a valid token.
func (s *AuthService) ParseToken(token string) (int64, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return 0, domain.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, domain.ErrUnauthorized
	}
	id, ok := claims["user_id"].(float64)
	if !ok || id <= 0 {
		return 0, domain.ErrUnauthorized
	}
	return int64(id), nil
}

// Authenticate resolves a bearer token into an active user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.User, error) {
	id, err := s.ParseToken(token)
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}
	if !u.IsActive {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrForbidden)
	}
	return u, nil
}
