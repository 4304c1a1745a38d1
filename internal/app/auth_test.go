package app_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"resortadmin/internal/app"
	"resortadmin/internal/domain"
)

type memUsers struct {
	users  map[int64]domain.User
	logins int
}

func newMemUsers(us ...domain.User) *memUsers {
	m := &memUsers{users: map[int64]domain.User{}}
	for _, u := range us {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) GetUser(_ context.Context, id int64) (domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetUserByTelegramID(_ context.Context, tgID int64) (domain.User, error) {
	for _, u := range m.users {
		if u.TelegramID == tgID {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memUsers) ListUsers(_ context.Context) ([]domain.User, error) {
	var out []domain.User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memUsers) UpdateUser(_ context.Context, u domain.User) error {
	if _, ok := m.users[u.ID]; !ok {
		return domain.ErrNotFound
	}
	m.users[u.ID] = u
	return nil
}

func (m *memUsers) RecordLogin(_ context.Context, id int64, firstName, lastName, username string) error {
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.FirstName, u.LastName, u.Username = firstName, lastName, username
	u.LastLogin = time.Now().UTC()
	m.users[id] = u
	m.logins++
	return nil
}

const testBotToken = "12345:TEST-TOKEN"

// signInitData produces initData the way the Telegram client does.
func signInitData(botToken string, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}
	kdf := hmac.New(sha256.New, []byte("WebAppData"))
	kdf.Write([]byte(botToken))
	mac := hmac.New(sha256.New, kdf.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	hash := hex.EncodeToString(mac.Sum(nil))

	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set("hash", hash)
	return q.Encode()
}

func validInitData(tgID string) string {
	return signInitData(testBotToken, map[string]string{
		"auth_date": "1700000000",
		"query_id":  "AAF9tPc2AAAAAH2090Zq",
		"user":      `{"id":` + tgID + `,"first_name":"Aziz","last_name":"K","username":"azizk"}`,
	})
}

func TestVerifyInitData(t *testing.T) {
	svc := app.NewAuthService(newMemUsers(), testBotToken, "secret", time.Hour)

	p, err := svc.VerifyInitData(validInitData("555"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.ID != 555 || p.FirstName != "Aziz" || p.Username != "azizk" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestVerifyInitData_Rejections(t *testing.T) {
	svc := app.NewAuthService(newMemUsers(), testBotToken, "secret", time.Hour)

	cases := map[string]string{
		"missing hash": "auth_date=1700000000&user=%7B%22id%22%3A1%7D",
		"wrong token":  signInitData("999:OTHER", map[string]string{"auth_date": "1", "user": `{"id":1}`}),
		"tampered": strings.Replace(validInitData("555"),
			"auth_date=1700000000", "auth_date=1700000001", 1),
		"no user payload": signInitData(testBotToken, map[string]string{"auth_date": "1"}),
	}
	for name, data := range cases {
		if _, err := svc.VerifyInitData(data); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("%s: want ErrUnauthorized, got %v", name, err)
		}
	}
}

func TestLogin(t *testing.T) {
	users := newMemUsers(
		domain.User{ID: 1, TelegramID: 555, Role: domain.RoleOperator, IsActive: true},
		domain.User{ID: 2, TelegramID: 777, Role: domain.RoleOperator, IsActive: false},
	)
	svc := app.NewAuthService(users, testBotToken, "secret", time.Hour)
	ctx := context.Background()

	token, u, err := svc.Login(ctx, validInitData("555"))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.ID != 1 || u.FirstName != "Aziz" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if users.logins != 1 {
		t.Fatalf("login not recorded: %d", users.logins)
	}

	// the issued token authenticates back to the same user
	got, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != 1 {
		t.Fatalf("token resolved to user %d", got.ID)
	}

	// deactivated account
	if _, _, err := svc.Login(ctx, validInitData("777")); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("inactive login: want ErrForbidden, got %v", err)
	}
	// unknown telegram id: no self-registration
	if _, _, err := svc.Login(ctx, validInitData("999")); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("unknown login: want ErrForbidden, got %v", err)
	}
}

func TestParseToken_Rejections(t *testing.T) {
	svc := app.NewAuthService(newMemUsers(), testBotToken, "secret", time.Hour)

	if _, err := svc.ParseToken("not-a-token"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("garbage token: want ErrUnauthorized, got %v", err)
	}

	// token signed with another secret
	other := app.NewAuthService(newMemUsers(), testBotToken, "other-secret", time.Hour)
	tok, err := other.IssueToken(1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.ParseToken(tok); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("cross-secret token: want ErrUnauthorized, got %v", err)
	}

	// expired token
	expired := app.NewAuthService(newMemUsers(), testBotToken, "secret", -time.Hour)
	tok, err = expired.IssueToken(1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.ParseToken(tok); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expired token: want ErrUnauthorized, got %v", err)
	}
}
