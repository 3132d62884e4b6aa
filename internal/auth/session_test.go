package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"retail-backend/internal/apperror"
	"retail-backend/internal/models"
	"retail-backend/internal/testutil"
)

const testSecret = "test-secret-test-secret-test-secret-42"

func login(username string) LoginInput {
	return LoginInput{Username: username, Password: testutil.Password, UserAgent: "go-test", IPAddress: "127.0.0.1"}
}

func TestSingleActiveSession(t *testing.T) {
	db := testutil.OpenDB(t)
	b := testutil.Business(t, db, "Shop")
	testutil.User(t, db, "clerk", models.RoleUser, &b.ID)
	now := time.Now().UTC()

	first, err := Login(db, testSecret, time.Hour, login("clerk"), now)
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if first.Token == "" || first.Session.ID == "" {
		t.Fatalf("expected token and session")
	}
	if first.Access.ReadOnly {
		t.Fatalf("expected writable access with a valid subscription")
	}

	_, err = Login(db, testSecret, time.Hour, login("clerk"), now.Add(time.Minute))
	if apperror.CodeOf(err) != apperror.CodeAlreadyLoggedIn {
		t.Fatalf("expected already_logged_in got %v", err)
	}

	// Yanlış şifre de aynı hatayı alır.
	bad := login("clerk")
	bad.Password = "wrong"
	_, err = Login(db, testSecret, time.Hour, bad, now.Add(time.Minute))
	if apperror.CodeOf(err) != apperror.CodeAlreadyLoggedIn {
		t.Fatalf("expected already_logged_in for wrong password got %v", err)
	}

	closed, err := Logout(db, first.Session.ID, now.Add(90*time.Minute))
	if err != nil || !closed {
		t.Fatalf("logout: closed=%v err=%v", closed, err)
	}
	var s models.Session
	db.First(&s, "id = ?", first.Session.ID)
	if s.IsActive || s.LogoutTime == nil || s.Duration != 90 {
		t.Fatalf("unexpected closed session %+v", s)
	}

	if _, err := Login(db, testSecret, time.Hour, login("clerk"), now.Add(2*time.Hour)); err != nil {
		t.Fatalf("login after logout: %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	db := testutil.OpenDB(t)
	b := testutil.Business(t, db, "Shop")
	testutil.User(t, db, "clerk", models.RoleUser, &b.ID)
	now := time.Now().UTC()

	res, err := Login(db, testSecret, time.Hour, login("clerk"), now)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if closed, err := Logout(db, res.Session.ID, now.Add(5*time.Minute)); err != nil || !closed {
		t.Fatalf("first logout: closed=%v err=%v", closed, err)
	}
	if closed, err := Logout(db, res.Session.ID, now.Add(10*time.Minute)); err != nil || closed {
		t.Fatalf("second logout: closed=%v err=%v", closed, err)
	}
	var s models.Session
	db.First(&s, "id = ?", res.Session.ID)
	if s.Duration != 5 {
		t.Fatalf("expected duration from first logout, got %d", s.Duration)
	}

	if _, err := Logout(db, "missing", now); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
	if _, err := Logout(db, " ", now); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestStaleSessionIsClosedOnLogin(t *testing.T) {
	db := testutil.OpenDB(t)
	b := testutil.Business(t, db, "Shop")
	testutil.User(t, db, "clerk", models.RoleUser, &b.ID)
	now := time.Now().UTC()

	if _, err := Login(db, testSecret, time.Hour, login("clerk"), now.Add(-3*time.Hour)); err != nil {
		t.Fatalf("old login: %v", err)
	}
	if _, err := Login(db, testSecret, time.Hour, login("clerk"), now); err != nil {
		t.Fatalf("expected stale session to be closed, got %v", err)
	}
}

func TestLoginRejections(t *testing.T) {
	db := testutil.OpenDB(t)
	b := testutil.Business(t, db, "Shop")
	inactive := testutil.User(t, db, "gone", models.RoleUser, &b.ID)
	db.Model(&inactive).Update("is_active", false)
	now := time.Now().UTC()

	cases := []struct {
		name string
		in   LoginInput
		code string
	}{
		{"unknown user", login("nobody"), apperror.CodeInvalidCredentials},
		{"inactive user", login("gone"), apperror.CodeUserInactive},
		{"empty", LoginInput{}, apperror.CodeInvalidInput},
	}
	for _, c := range cases {
		_, err := Login(db, testSecret, time.Hour, c.in, now)
		if apperror.CodeOf(err) != c.code {
			t.Errorf("%s: expected %s got %v", c.name, c.code, err)
		}
	}

	closedShop := testutil.Business(t, db, "Closed")
	testutil.User(t, db, "closed-clerk", models.RoleUser, &closedShop.ID)
	db.Model(&closedShop).Update("is_active", false)
	if _, err := Login(db, testSecret, time.Hour, login("closed-clerk"), now); apperror.CodeOf(err) != apperror.CodeBusinessInactive {
		t.Fatalf("expected business_inactive got %v", err)
	}
}

func TestEvaluateAccess(t *testing.T) {
	db := testutil.OpenDB(t)
	now := time.Now().UTC()

	dev := testutil.User(t, db, "dev", models.RoleDeveloper, nil)
	if a, err := EvaluateAccess(db, &dev, now); err != nil || a.ReadOnly {
		t.Fatalf("developer: %+v %v", a, err)
	}

	expired := testutil.Business(t, db, "Expired")
	db.Where("business_id = ?", expired.ID).Delete(&models.Subscription{})
	testutil.Subscription(t, db, expired.ID, now.Add(-60*24*time.Hour), now.Add(-30*24*time.Hour))
	u := testutil.User(t, db, "late", models.RoleUser, &expired.ID)
	a, err := EvaluateAccess(db, &u, now)
	if err != nil || !a.ReadOnly {
		t.Fatalf("expired: expected read-only, got %+v %v", a, err)
	}

	future := testutil.Business(t, db, "Future")
	db.Where("business_id = ?", future.ID).Delete(&models.Subscription{})
	testutil.Subscription(t, db, future.ID, now.Add(48*time.Hour), now.Add(40*24*time.Hour))
	fu := testutil.User(t, db, "early", models.RoleAdmin, &future.ID)
	if _, err := EvaluateAccess(db, &fu, now); apperror.CodeOf(err) != apperror.CodeSubscriptionNotStarted {
		t.Fatalf("expected subscription_not_started got %v", err)
	}

	none := testutil.Business(t, db, "None")
	db.Where("business_id = ?", none.ID).Delete(&models.Subscription{})
	nu := testutil.User(t, db, "none", models.RoleUser, &none.ID)
	if a, err := EvaluateAccess(db, &nu, now); err != nil || !a.ReadOnly {
		t.Fatalf("no subscription: expected read-only, got %+v %v", a, err)
	}
}

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		end  time.Time
		want int
	}{
		{now.Add(10 * 24 * time.Hour), 10},
		{now.Add(10*24*time.Hour + time.Hour), 11},
		{now.Add(time.Minute), 1},
		{now, 0},
		{now.Add(-time.Hour), 0},
	}
	for _, c := range cases {
		got := DaysRemaining(&models.Subscription{EndDate: c.end}, now)
		if got != c.want {
			t.Errorf("end %v: expected %d got %d", c.end, c.want, got)
		}
	}
	if DaysRemaining(nil, now) != 0 {
		t.Fatalf("nil subscription should have 0 days")
	}
}

func TestSessionMinutes(t *testing.T) {
	start := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	if got := SessionMinutes(start, start.Add(59*time.Second)); got != 0 {
		t.Fatalf("expected 0 got %d", got)
	}
	if got := SessionMinutes(start, start.Add(125*time.Minute+30*time.Second)); got != 125 {
		t.Fatalf("expected 125 got %d", got)
	}
	if got := SessionMinutes(start, start.Add(-time.Minute)); got != 0 {
		t.Fatalf("expected 0 for negative duration got %d", got)
	}
}

func TestCloseBusinessSessions(t *testing.T) {
	db := testutil.OpenDB(t)
	b := testutil.Business(t, db, "Shop")
	other := testutil.Business(t, db, "Other")
	testutil.User(t, db, "a1", models.RoleAdmin, &b.ID)
	testutil.User(t, db, "u1", models.RoleUser, &b.ID)
	testutil.User(t, db, "o1", models.RoleUser, &other.ID)
	now := time.Now().UTC()

	for _, name := range []string{"a1", "u1", "o1"} {
		if _, err := Login(db, testSecret, time.Hour, login(name), now); err != nil {
			t.Fatalf("login %s: %v", name, err)
		}
	}
	closed, err := CloseBusinessSessions(db, b.ID, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed != 2 {
		t.Fatalf("expected 2 closed got %d", closed)
	}
	var active int64
	db.Model(&models.Session{}).Where("is_active = ?", true).Count(&active)
	if active != 1 {
		t.Fatalf("expected other tenant session to stay open, active=%d", active)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	now := time.Now()
	tok, err := GenerateToken(testSecret, time.Hour, 7, "sess-1", now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseToken(testSecret, tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 7 || claims.SessionID != "sess-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := ParseToken("another-secret-another-secret-1234", tok); err == nil {
		t.Fatalf("expected signature error")
	}
	expired, _ := GenerateToken(testSecret, time.Minute, 7, "sess-1", now.Add(-time.Hour))
	if _, err := ParseToken(testSecret, expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	if got := truncate("abc", 5); got != "abc" {
		t.Fatalf("short string changed: %q", got)
	}
	// "ş" iki bayt: 3. bayt karakterin ortasına düşer.
	if got := truncate("aşb", 2); got != "a" {
		t.Fatalf("expected %q got %q", "a", got)
	}
	long := strings.Repeat("ğ", 200)
	got := truncate(long, 255)
	if !utf8.ValidString(got) || len(got) != 254 {
		t.Fatalf("expected valid 254 byte prefix, got %d bytes valid=%t", len(got), utf8.ValidString(got))
	}
}

func TestLoginStoresValidUserAgent(t *testing.T) {
	db := testutil.OpenDB(t)
	b := testutil.Business(t, db, "Shop")
	testutil.User(t, db, "clerk", models.RoleUser, &b.ID)

	in := login("clerk")
	in.UserAgent = "Mozilla/5.0 " + strings.Repeat("çalışan ", 40)
	res, err := Login(db, testSecret, time.Hour, in, time.Now().UTC())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	var s models.Session
	if err := db.First(&s, "id = ?", res.Session.ID).Error; err != nil {
		t.Fatalf("session: %v", err)
	}
	if len(s.UserAgent) > 255 || !utf8.ValidString(s.UserAgent) {
		t.Fatalf("user agent stored badly: %d bytes", len(s.UserAgent))
	}
}

func TestUserBusinessResolvesByBusinessID(t *testing.T) {
	db := testutil.OpenDB(t)
	b := testutil.Business(t, db, "Shop")
	owner := testutil.User(t, db, "owner", models.RoleAdmin, &b.ID)
	if err := db.Model(&b).Update("user_id", owner.ID).Error; err != nil {
		t.Fatalf("set owner: %v", err)
	}
	clerk := testutil.User(t, db, "clerk", models.RoleUser, &b.ID)

	var got models.User
	if err := db.Preload("Business").First(&got, "id = ?", clerk.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Business == nil || got.Business.ID != b.ID {
		t.Fatalf("expected clerk business %d, got %+v", b.ID, got.Business)
	}
}
