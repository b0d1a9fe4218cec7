package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fittrainer/backend/internal/domain"
	"fittrainer/backend/internal/repository"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTelegramLoginCreatesUserAndProfile(t *testing.T) {
	f := newFixture(t)

	session, err := f.auth.TelegramLogin(f.ctx, signedInitData(testBotToken, tgUserJSON(4242, "lifter"), fixtureNow), "")
	require.NoError(t, err)
	assert.True(t, session.Created)
	assert.Equal(t, "lifter", session.User.Username)
	assert.Equal(t, "Tele", session.User.FirstName)
	assert.Equal(t, domain.RoleClient, session.User.Role)
	require.NotNil(t, session.User.TelegramID)
	assert.Equal(t, int64(4242), *session.User.TelegramID)

	profile, err := f.store.Profiles().GetClientByUserID(f.ctx, session.User.ID)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, profile.UserID)

	claims, err := f.auth.ParseToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.UserID)
	assert.Equal(t, domain.RoleClient, claims.Role)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterTelegramAuth.WithLabelValues("ok")))
}

func TestTelegramLoginTrainerRole(t *testing.T) {
	f := newFixture(t)

	session, err := f.auth.TelegramLogin(f.ctx, signedInitData(testBotToken, tgUserJSON(7, "coach"), fixtureNow), domain.RoleTrainer)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTrainer, session.User.Role)

	_, err = f.store.Profiles().GetTrainerByUserID(f.ctx, session.User.ID)
	require.NoError(t, err)
}

func TestTelegramRepeatLoginKeepsStoredRole(t *testing.T) {
	f := newFixture(t)
	initData := signedInitData(testBotToken, tgUserJSON(99, "repeat"), fixtureNow)

	first, err := f.auth.TelegramLogin(f.ctx, initData, domain.RoleClient)
	require.NoError(t, err)

	second, err := f.auth.TelegramLogin(f.ctx, initData, domain.RoleTrainer)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, domain.RoleClient, second.User.Role)

	_, err = f.store.Profiles().GetTrainerByUserID(f.ctx, first.User.ID)
	assert.Error(t, err, "no trainer profile may appear for a client account")
}

func TestTelegramLoginUsernameFallbacks(t *testing.T) {
	f := newFixture(t)

	t.Run("no telegram username", func(t *testing.T) {
		session, err := f.auth.TelegramLogin(f.ctx, signedInitData(testBotToken, tgUserJSON(1001, ""), fixtureNow), "")
		require.NoError(t, err)
		assert.Equal(t, "tg_1001", session.User.Username)
	})

	t.Run("username owned by another account", func(t *testing.T) {
		f.newClient(t, "taken", nil)
		session, err := f.auth.TelegramLogin(f.ctx, signedInitData(testBotToken, tgUserJSON(1002, "taken"), fixtureNow), "")
		require.NoError(t, err)
		assert.True(t, session.Created)
		assert.Equal(t, "tg_1002", session.User.Username)
	})
}

func TestTelegramLoginRejections(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		initData string
		role     domain.Role
		want     error
	}{
		{"empty", "", "", ErrInvalidInitData},
		{"wrong token", signedInitData("999:other", tgUserJSON(1, "x"), fixtureNow), "", ErrInvalidInitData},
		{"tampered", signedInitData(testBotToken, tgUserJSON(1, "x"), fixtureNow) + "&extra=1", "", ErrInvalidInitData},
		{"no user", signedInitData(testBotToken, "", fixtureNow), "", ErrInvalidInitData},
		{"unparseable user", signedInitData(testBotToken, "{not json", fixtureNow), "", ErrInvalidInitData},
		{"zero id", signedInitData(testBotToken, `{"id":0,"first_name":"Z"}`, fixtureNow), "", ErrInvalidInitData},
		{"bad role", signedInitData(testBotToken, tgUserJSON(1, "x"), fixtureNow), "admin", ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := f.auth.TelegramLogin(f.ctx, tt.initData, tt.role)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, session)
		})
	}

	_, err := f.store.Users().GetByTelegramID(f.ctx, 1)
	assert.Error(t, err, "rejected payloads must not create accounts")
	assert.Equal(t, 6.0, testutil.ToFloat64(f.metrics.CounterTelegramAuth.WithLabelValues("rejected")))
}

func TestTelegramLoginMaxAuthAge(t *testing.T) {
	f := newFixtureWith(t, AuthConfig{MaxAuthAge: time.Hour})

	_, err := f.auth.TelegramLogin(f.ctx, signedInitData(testBotToken, tgUserJSON(5, "old"), fixtureNow.Add(-2*time.Hour)), "")
	assert.ErrorIs(t, err, ErrInitDataExpired)

	_, err = f.auth.TelegramLogin(f.ctx, signedInitData(testBotToken, tgUserJSON(5, "old"), fixtureNow.Add(-time.Minute)), "")
	assert.NoError(t, err)
}

func TestTelegramLoginProfileFailureIsHealedOnNextLogin(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("profile store down")
	f.store.FailCreateProfile = boom

	session, err := f.auth.TelegramLogin(f.ctx, signedInitData(testBotToken, tgUserJSON(77, "orphan"), fixtureNow), "")
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, session)

	// Once the store recovers the same login attaches the missing profile.
	f.store.FailCreateProfile = nil
	session, err = f.auth.TelegramLogin(f.ctx, signedInitData(testBotToken, tgUserJSON(77, "orphan"), fixtureNow), "")
	require.NoError(t, err)
	_, err = f.store.Profiles().GetClientByUserID(f.ctx, session.User.ID)
	assert.NoError(t, err)

	identity, err := f.auth.Me(f.ctx, session.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, identity.Client)
}

func TestTelegramLoginAttachesMissingProfile(t *testing.T) {
	f := newFixture(t)
	telegramID := int64(4242)
	user := &domain.User{Username: "stray", FirstName: "Stray", Role: domain.RoleTrainer, TelegramID: &telegramID}
	_, err := f.store.Users().Create(f.ctx, user)
	require.NoError(t, err)

	session, err := f.auth.TelegramLogin(f.ctx, signedInitData(testBotToken, tgUserJSON(telegramID, "stray"), fixtureNow), "")
	require.NoError(t, err)
	assert.False(t, session.Created)
	assert.Equal(t, user.ID, session.User.ID)

	trainer, err := f.store.Profiles().GetTrainerByUserID(f.ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, trainer.UserID)
}

// gatedProfiles parks the first CreateClient call until release is closed.
type gatedProfiles struct {
	repository.ProfileRepository
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedProfiles) CreateClient(ctx context.Context, client *domain.Client) (primitive.ObjectID, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.ProfileRepository.CreateClient(ctx, client)
}

func TestTelegramLoginWaitsForProfileOfRacingLogin(t *testing.T) {
	f := newFixture(t)
	profiles := &gatedProfiles{
		ProfileRepository: f.store.Profiles(),
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	auth := NewAuthService(f.store.Users(), profiles, AuthConfig{JWTSecret: testJWTSecret, BotToken: testBotToken}, f.metrics, f.clock.Now)
	initData := signedInitData(testBotToken, tgUserJSON(9001, "early"), fixtureNow)

	type result struct {
		session *Session
		err     error
	}
	first := make(chan result, 1)
	go func() {
		session, err := auth.TelegramLogin(f.ctx, initData, "")
		first <- result{session, err}
	}()
	<-profiles.entered

	// The first login created the user and is stuck before its profile.
	second, err := auth.TelegramLogin(f.ctx, initData, "")
	require.NoError(t, err)
	assert.False(t, second.Created)
	_, err = f.store.Profiles().GetClientByUserID(f.ctx, second.User.ID)
	require.NoError(t, err, "a token is only issued once the profile exists")

	close(profiles.release)
	r := <-first
	require.NoError(t, r.err)
	assert.True(t, r.session.Created)
	assert.Equal(t, second.User.ID, r.session.User.ID)

	identity, err := auth.Me(f.ctx, second.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, identity.Client)
}

func TestTelegramConcurrentFirstLoginsResolveToOneUser(t *testing.T) {
	f := newFixture(t)
	initData := signedInitData(testBotToken, tgUserJSON(31337, "racer"), fixtureNow)

	const logins = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sessions []*Session
		errs     []error
	)
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, err := f.auth.TelegramLogin(f.ctx, initData, "")
			mu.Lock()
			defer mu.Unlock()
			sessions = append(sessions, session)
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	created := 0
	for i := range sessions {
		require.NoError(t, errs[i])
		assert.Equal(t, sessions[0].User.ID, sessions[i].User.ID)
		if sessions[i].Created {
			created++
		}
	}
	assert.Equal(t, 1, created)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	user, err := f.auth.Register(f.ctx, RegisterInput{
		Username:  "coach",
		Password:  "hunter22",
		FirstName: "Pat",
		Email:     "pat@example.com",
		Role:      domain.RoleTrainer,
	})
	require.NoError(t, err)
	assert.Empty(t, user.PasswordHash)

	_, err = f.auth.Register(f.ctx, RegisterInput{Username: "coach", Password: "x", FirstName: "Dup", Role: domain.RoleClient})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
	_, err = f.auth.Register(f.ctx, RegisterInput{Username: "other", Password: "x", FirstName: "Dup", Email: "pat@example.com", Role: domain.RoleClient})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
	_, err = f.auth.Register(f.ctx, RegisterInput{Username: "nobody", Password: "x", FirstName: "N", Role: "admin"})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = f.auth.Login(f.ctx, "coach", "wrong")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	_, err = f.auth.Login(f.ctx, "ghost", "hunter22")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	session, err := f.auth.Login(f.ctx, "coach", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)
	assert.Empty(t, session.User.PasswordHash)

	identity, err := f.auth.Me(f.ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, identity.Trainer)
	assert.Nil(t, identity.Client)
}

func TestLoginRejectsTelegramOnlyAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.auth.TelegramLogin(f.ctx, signedInitData(testBotToken, tgUserJSON(3, "tgonly"), fixtureNow), "")
	require.NoError(t, err)

	_, err = f.auth.Login(f.ctx, "tgonly", "anything")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestParseToken(t *testing.T) {
	f := newFixtureWith(t, AuthConfig{JWTExpiration: time.Hour})
	session, err := f.auth.TelegramLogin(f.ctx, signedInitData(testBotToken, tgUserJSON(8, "tok"), fixtureNow), "")
	require.NoError(t, err)

	_, err = f.auth.ParseToken(session.Token)
	require.NoError(t, err)

	other := newFixtureWith(t, AuthConfig{JWTSecret: "another-secret"})
	_, err = other.auth.ParseToken(session.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.auth.ParseToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	f.clock.Advance(2 * time.Hour)
	_, err = f.auth.ParseToken(session.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
