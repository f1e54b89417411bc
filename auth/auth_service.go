package auth

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jrsteele09/go-offline-auth/biometric"
	"github.com/jrsteele09/go-offline-auth/clock"
	"github.com/jrsteele09/go-offline-auth/credentials"
	errs "github.com/jrsteele09/go-offline-auth/internal/errors"
	"github.com/jrsteele09/go-offline-auth/internal/utils"
	"github.com/jrsteele09/go-offline-auth/lockout"
	"github.com/jrsteele09/go-offline-auth/securestore"
	"github.com/jrsteele09/go-offline-auth/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Deps holds the collaborators the Coordinator composes.
type Deps struct {
	Store     securestore.Store       // Secure key-value storage
	Sessions  *sessions.Manager       // Single active session
	Lockout   *lockout.Policy         // Failed-login lockout
	Hasher    *credentials.Hasher     // Password and answer hashing
	Biometric biometric.Authenticator // Optional; defaults to biometric.Unavailable
}

// Coordinator orchestrates registration, login, password change and reset,
// and logout for the single local credential. Operations are serialized.
// Session event handlers run while an operation may still hold the
// Coordinator, so they must not call back into it synchronously.
type Coordinator struct {
	store     securestore.Store
	creds     *credentials.Repo
	sessions  *sessions.Manager
	lockout   *lockout.Policy
	hasher    *credentials.Hasher
	biometric biometric.Authenticator
	validator *Validator
	clock     clock.Clock

	mu sync.Mutex
}

// CoordinatorOption defines a function type to modify the Coordinator instance.
type CoordinatorOption func(*Coordinator)

// WithClock sets the clock used for last-login timestamps (primarily for testing)
func WithClock(c clock.Clock) CoordinatorOption {
	return func(co *Coordinator) {
		co.clock = c
	}
}

// NewCoordinator initializes a Coordinator with required dependencies.
func NewCoordinator(deps Deps, options ...CoordinatorOption) (*Coordinator, error) {
	if deps.Store == nil {
		return nil, errors.New("[NewCoordinator] Store is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("[NewCoordinator] Sessions is required")
	}
	if deps.Lockout == nil {
		return nil, errors.New("[NewCoordinator] Lockout is required")
	}
	if deps.Hasher == nil {
		return nil, errors.New("[NewCoordinator] Hasher is required")
	}
	if deps.Biometric == nil {
		deps.Biometric = biometric.Unavailable{}
	}

	c := &Coordinator{
		store:     deps.Store,
		creds:     credentials.NewRepo(deps.Store),
		sessions:  deps.Sessions,
		lockout:   deps.Lockout,
		hasher:    deps.Hasher,
		biometric: deps.Biometric,
		validator: NewValidator(),
		clock:     clock.Real(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Register creates the credential record and signs the new user in.
func (c *Coordinator) Register(ctx context.Context, params RegisterParameters) (sessions.Session, error) {
	if err := c.validator.ValidateRegistration(params); err != nil {
		return sessions.Session{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	exists, err := c.creds.Exists(ctx)
	if err != nil {
		return sessions.Session{}, translate(err, "[Coordinator.Register] exists")
	}
	if exists {
		return sessions.Session{}, newError(KindUserAlreadyExists, nil)
	}
	if credentials.ClassifyStrength(params.Password) == credentials.Weak {
		return sessions.Session{}, newError(KindWeakPassword, nil)
	}

	salt, err := credentials.GenerateSalt()
	if err != nil {
		return sessions.Session{}, translate(err, "[Coordinator.Register] salt")
	}
	hash, err := c.hasher.Hash(params.Password, salt)
	if err != nil {
		return sessions.Session{}, translate(err, "[Coordinator.Register] hash")
	}

	rec := &credentials.Record{
		UserID:       credentials.NewUserID(),
		Username:     params.Username,
		PasswordHash: hash,
		Salt:         salt,
	}
	if params.hasQuestion() && params.hasAnswer() {
		answerHash, err := c.hasher.HashAnswer(*params.SecurityAnswer)
		if err != nil {
			return sessions.Session{}, translate(err, "[Coordinator.Register] answer")
		}
		rec.SecurityQuestion = utils.Clone(params.SecurityQuestion)
		rec.SecurityAnswerHash = &answerHash
	}

	if err := c.creds.Save(ctx, rec); err != nil {
		return sessions.Session{}, translate(err, "[Coordinator.Register] save")
	}
	log.Info().Str("user_id", rec.UserID).Str("username", rec.Username).Msg("user registered")

	return c.startSession(ctx, rec.UserID, "[Coordinator.Register]")
}

// Login verifies the password and, on success, clears the lockout counters
// and creates a new session. Each mismatch is counted toward lockout; the
// attempt that reaches the threshold already reports AccountLocked.
func (c *Coordinator) Login(ctx context.Context, username, password string) (sessions.Session, error) {
	if err := c.validator.ValidateLogin(username, password); err != nil {
		return sessions.Session{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLockout(ctx, "[Coordinator.Login]"); err != nil {
		return sessions.Session{}, err
	}

	rec, err := c.creds.Load(ctx)
	if err != nil {
		return sessions.Session{}, translate(err, "[Coordinator.Login] load")
	}

	// Verify runs on every attempt; the username check never short-circuits it.
	verified, err := c.hasher.Verify(password, rec.PasswordHash, rec.Salt)
	if err != nil {
		return sessions.Session{}, translate(err, "[Coordinator.Login] verify")
	}
	sameUser := credentials.ConstantTimeEqual([]byte(rec.Username), []byte(username))
	if !(verified && sameUser) {
		return sessions.Session{}, c.recordFailure(ctx)
	}

	if err := c.lockout.Reset(ctx); err != nil {
		return sessions.Session{}, translate(err, "[Coordinator.Login] reset lockout")
	}
	log.Info().Str("user_id", rec.UserID).Msg("login succeeded")
	return c.startSession(ctx, rec.UserID, "[Coordinator.Login]")
}

// LoginWithBiometric signs in after a successful biometric prompt. Biometric
// login must have been enabled and the device must support it. Lockout still
// applies; a rejected prompt is not counted as a failed attempt.
func (c *Coordinator) LoginWithBiometric(ctx context.Context, reason string) (sessions.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLockout(ctx, "[Coordinator.LoginWithBiometric]"); err != nil {
		return sessions.Session{}, err
	}

	rec, err := c.creds.Load(ctx)
	if err != nil {
		return sessions.Session{}, translate(err, "[Coordinator.LoginWithBiometric] load")
	}

	enabled, err := c.biometricEnabled(ctx)
	if err != nil {
		return sessions.Session{}, translate(err, "[Coordinator.LoginWithBiometric] flag")
	}
	if !enabled || !c.biometric.IsAvailable(ctx) {
		return sessions.Session{}, newError(KindBiometricUnavailable, errs.ErrBiometricUnavailable)
	}

	ok, err := c.biometric.Authenticate(ctx, reason)
	if err != nil {
		return sessions.Session{}, newError(KindBiometricUnavailable, errs.Wrapf(err, "[Coordinator.LoginWithBiometric] authenticate"))
	}
	if !ok {
		log.Info().Str("user_id", rec.UserID).Msg("biometric prompt rejected")
		return sessions.Session{}, newError(KindInvalidCredentials, nil)
	}

	if err := c.lockout.Reset(ctx); err != nil {
		return sessions.Session{}, translate(err, "[Coordinator.LoginWithBiometric] reset lockout")
	}
	log.Info().Str("user_id", rec.UserID).Msg("biometric login succeeded")
	return c.startSession(ctx, rec.UserID, "[Coordinator.LoginWithBiometric]")
}

// ChangePassword replaces the password of the signed-in user and reissues the
// session token so copies of the old token stop matching. Once the new
// password is stored the call succeeds; if the token cannot be reissued the
// session is ended instead.
func (c *Coordinator) ChangePassword(ctx context.Context, current, next string) error {
	if err := c.validator.ValidatePasswordChange(current, next); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.requireSession(); err != nil {
		return err
	}

	rec, err := c.creds.Load(ctx)
	if err != nil {
		return translate(err, "[Coordinator.ChangePassword] load")
	}
	ok, err := c.hasher.Verify(current, rec.PasswordHash, rec.Salt)
	if err != nil {
		return translate(err, "[Coordinator.ChangePassword] verify")
	}
	if !ok {
		return newError(KindCurrentPasswordIncorrect, nil)
	}

	if err := c.replacePassword(ctx, next, "[Coordinator.ChangePassword]"); err != nil {
		return err
	}
	c.reissueToken(ctx, rec.UserID)
	log.Info().Str("user_id", rec.UserID).Msg("password changed")
	return nil
}

// ResetPassword replaces the password after the security answer is verified
// and clears any lockout. A live session, if any, gets a new token.
func (c *Coordinator) ResetPassword(ctx context.Context, answer, next string) error {
	if err := c.validator.ValidatePasswordReset(answer, next); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.creds.Load(ctx)
	if err != nil {
		return translate(err, "[Coordinator.ResetPassword] load")
	}
	if !rec.HasRecovery() {
		return newError(KindSecurityAnswerIncorrect, errors.New("no security question configured"))
	}
	ok, err := c.hasher.VerifyAnswer(answer, *rec.SecurityAnswerHash)
	if err != nil {
		return translate(err, "[Coordinator.ResetPassword] verify answer")
	}
	if !ok {
		log.Info().Str("user_id", rec.UserID).Msg("security answer rejected")
		return newError(KindSecurityAnswerIncorrect, nil)
	}

	if err := c.lockout.Reset(ctx); err != nil {
		return translate(err, "[Coordinator.ResetPassword] reset lockout")
	}
	if err := c.replacePassword(ctx, next, "[Coordinator.ResetPassword]"); err != nil {
		return err
	}
	if c.sessions.IsValid() {
		c.reissueToken(ctx, rec.UserID)
	}
	log.Info().Str("user_id", rec.UserID).Msg("password reset")
	return nil
}

// Logout ends the session. Memory is always cleared; a failure to remove the
// persisted token is logged and otherwise ignored.
func (c *Coordinator) Logout(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sessions.End(ctx); err != nil {
		log.Err(err).Msg("failed to clear persisted session on logout")
	}
}

// SetBiometricEnabled turns biometric login on or off for the signed-in user.
func (c *Coordinator) SetBiometricEnabled(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.requireSession(); err != nil {
		return err
	}
	if !enabled {
		return translate(c.store.Delete(ctx, securestore.KeyBiometricEnabled), "[Coordinator.SetBiometricEnabled] delete")
	}
	if !c.biometric.IsAvailable(ctx) {
		return newError(KindBiometricUnavailable, errs.ErrBiometricUnavailable)
	}
	return translate(c.store.Set(ctx, securestore.KeyBiometricEnabled, "true"), "[Coordinator.SetBiometricEnabled] set")
}

func (c *Coordinator) BiometricEnabled(ctx context.Context) (bool, error) {
	enabled, err := c.biometricEnabled(ctx)
	return enabled, translate(err, "[Coordinator.BiometricEnabled]")
}

// IsRegistered reports whether a credential record exists.
func (c *Coordinator) IsRegistered(ctx context.Context) (bool, error) {
	exists, err := c.creds.Exists(ctx)
	return exists, translate(err, "[Coordinator.IsRegistered]")
}

// SecurityQuestion returns the configured recovery question, if any.
func (c *Coordinator) SecurityQuestion(ctx context.Context) (string, bool, error) {
	rec, err := c.creds.Load(ctx)
	if err != nil {
		return "", false, translate(err, "[Coordinator.SecurityQuestion]")
	}
	if !rec.HasRecovery() {
		return "", false, nil
	}
	return *rec.SecurityQuestion, true, nil
}

// RestoreSession reinstalls a persisted session at process start.
func (c *Coordinator) RestoreSession(ctx context.Context) (sessions.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessions.Restore(ctx)
	if err != nil {
		return sessions.Session{}, translate(err, "[Coordinator.RestoreSession]")
	}
	return s, nil
}

// RequireSession returns the current session or SessionExpired /
// UserNotAuthenticated when there is none.
func (c *Coordinator) RequireSession() (sessions.Session, error) {
	return c.requireSession()
}

// RecordActivity pushes the session expiry out; call it on user interaction.
func (c *Coordinator) RecordActivity(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.requireSession(); err != nil {
		return err
	}
	return translate(c.sessions.UpdateActivity(ctx), "[Coordinator.RecordActivity]")
}

// RefreshSession rotates the session token.
func (c *Coordinator) RefreshSession(ctx context.Context) (sessions.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.requireSession(); err != nil {
		return sessions.Session{}, err
	}
	s, err := c.sessions.RefreshToken(ctx)
	if err != nil {
		return sessions.Session{}, translate(err, "[Coordinator.RefreshSession]")
	}
	return s, nil
}

// AppBackgrounded and AppForegrounded forward app lifecycle signals to the
// session background policy. AppForegrounded reports whether the user is
// still signed in.
func (c *Coordinator) AppBackgrounded() {
	c.sessions.EnterBackground()
}

func (c *Coordinator) AppForegrounded(ctx context.Context) bool {
	return c.sessions.EnterForeground(ctx)
}

// LastLogin returns the time of the most recent successful sign-in.
func (c *Coordinator) LastLogin(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := c.store.Get(ctx, securestore.KeyLastLogin)
	if err != nil {
		return time.Time{}, false, translate(err, "[Coordinator.LastLogin]")
	}
	if !ok {
		return time.Time{}, false, nil
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, newError(KindSecureStorage, errs.Storage(err, "[Coordinator.LastLogin] parse"))
	}
	return at, true, nil
}

// Status summarises the current authentication state.
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	var st Status

	rec, err := c.creds.Load(ctx)
	switch {
	case err == nil:
		st.Registered = true
		st.Username = rec.Username
	case !errs.Is(err, errs.ErrNotFound):
		return Status{}, translate(err, "[Coordinator.Status] load")
	}

	st.SessionState = c.sessions.State().String()
	st.Remaining = c.sessions.RemainingTime()
	st.NeedsRefresh = c.sessions.IsValid() && c.sessions.NeedsRefresh()

	lock, err := c.lockout.Check(ctx)
	if err != nil {
		return Status{}, translate(err, "[Coordinator.Status] lockout")
	}
	st.FailedAttempts = lock.FailedAttempts
	st.LockedFor = lock.Remaining

	if st.BiometricEnabled, err = c.biometricEnabled(ctx); err != nil {
		return Status{}, translate(err, "[Coordinator.Status] biometric")
	}
	at, ok, err := c.LastLogin(ctx)
	if err != nil {
		return Status{}, err
	}
	if ok {
		st.LastLogin = &at
	}
	return st, nil
}

// WipeAllData ends the session and removes every stored value, including the
// credential record and lockout counters.
func (c *Coordinator) WipeAllData(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sessions.End(ctx); err != nil {
		log.Err(err).Msg("failed to clear persisted session before wipe")
	}
	if err := c.store.Clear(ctx); err != nil {
		return translate(err, "[Coordinator.WipeAllData] clear")
	}
	log.Warn().Msg("all authentication data wiped")
	return nil
}

func (c *Coordinator) requireSession() (sessions.Session, error) {
	if s, ok := c.sessions.Current(); ok && c.sessions.IsValid() {
		return s, nil
	}
	if c.sessions.State() == sessions.Expired {
		return sessions.Session{}, newError(KindSessionExpired, nil)
	}
	return sessions.Session{}, newError(KindUserNotAuthenticated, nil)
}

func (c *Coordinator) checkLockout(ctx context.Context, op string) error {
	status, err := c.lockout.Check(ctx)
	if err != nil {
		return translate(err, op+" check lockout")
	}
	if status.IsLocked() {
		log.Info().Dur("remaining", status.Remaining).Msg("login refused while locked")
		return lockedError(status.Remaining)
	}
	return nil
}

func (c *Coordinator) recordFailure(ctx context.Context) error {
	status, err := c.lockout.RecordFailure(ctx)
	if err != nil {
		return translate(err, "[Coordinator.Login] record failure")
	}
	log.Info().Int("failed_attempts", status.FailedAttempts).Msg("login failed")
	if status.IsLocked() {
		return lockedError(status.Remaining)
	}
	return newError(KindInvalidCredentials, nil)
}

// reissueToken rotates the session token after a password change. The
// password is already replaced, so a failure ends the session rather than
// leaving the old token usable.
func (c *Coordinator) reissueToken(ctx context.Context, userID string) {
	_, err := c.sessions.RefreshToken(ctx)
	if err == nil {
		return
	}
	log.Err(err).Str("user_id", userID).Msg("token refresh failed after password change, ending session")
	if err := c.sessions.End(ctx); err != nil {
		log.Err(err).Str("user_id", userID).Msg("failed to remove persisted session")
	}
}

func (c *Coordinator) replacePassword(ctx context.Context, password, op string) error {
	if credentials.ClassifyStrength(password) == credentials.Weak {
		return newError(KindWeakPassword, nil)
	}
	salt, err := credentials.GenerateSalt()
	if err != nil {
		return translate(err, op+" salt")
	}
	hash, err := c.hasher.Hash(password, salt)
	if err != nil {
		return translate(err, op+" hash")
	}
	if err := c.creds.ReplacePassword(ctx, hash, salt); err != nil {
		return translate(err, op+" replace")
	}
	return nil
}

func (c *Coordinator) startSession(ctx context.Context, userID, op string) (sessions.Session, error) {
	s, err := c.sessions.Create(ctx, userID, 0)
	if err != nil {
		return sessions.Session{}, translate(err, op+" create session")
	}
	now := c.clock.Now().UTC().Format(time.RFC3339Nano)
	if err := c.store.Set(ctx, securestore.KeyLastLogin, now); err != nil {
		log.Err(err).Str("user_id", userID).Msg("failed to record last login")
	}
	return s, nil
}

func (c *Coordinator) biometricEnabled(ctx context.Context) (bool, error) {
	raw, ok, err := c.store.Get(ctx, securestore.KeyBiometricEnabled)
	if err != nil || !ok {
		return false, err
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errs.Storage(err, "[Coordinator.biometricEnabled] parse")
	}
	return enabled, nil
}
