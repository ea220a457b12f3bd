package transport

import (
	"errors"
	"net/http"
	"time"

	"artisan-market/internal/middleware"
	"artisan-market/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	signupCookieName = "signup_token"
	maxUploadMemory  = 32 << 20
)

// SignupRequest represents the step-1 registration form
type SignupRequest struct {
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	Email     string `validate:"required,email"`
	Password  string `validate:"required"`
	UserType  string `validate:"required"`
}

// LoginRequest represents the login form
type LoginRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// IdentityProfile is the public view of an identity
type IdentityProfile struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// RegistrationHandler handles the signup handshake, login and dashboards
type RegistrationHandler struct {
	registrations service.RegistrationService
	logger        *zap.Logger
	sessionExpiry time.Duration
	pendingTTL    time.Duration
	secureCookies bool
}

// NewRegistrationHandler creates a new RegistrationHandler
func NewRegistrationHandler(
	registrations service.RegistrationService,
	logger *zap.Logger,
	sessionExpiry time.Duration,
	pendingTTL time.Duration,
	secureCookies bool,
) *RegistrationHandler {
	return &RegistrationHandler{
		registrations: registrations,
		logger:        logger,
		sessionExpiry: sessionExpiry,
		pendingTTL:    pendingTTL,
		secureCookies: secureCookies,
	}
}

// RegisterRoutes registers the registration and dashboard routes. The
// rate limiter guards the credential endpoints.
func (h *RegistrationHandler) RegisterRoutes(r chi.Router, sessionMiddleware, rateLimiter func(http.Handler) http.Handler) {
	r.Get("/signup", h.SignupForm)
	r.With(rateLimiter).Post("/signup", h.Signup)
	r.Get("/artisan_signup", h.ArtisanSignupForm)
	r.Post("/artisan_signup", h.ArtisanSignup)
	r.Get("/login", h.LoginForm)
	r.With(rateLimiter).Post("/login", h.Login)
	r.Get("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(sessionMiddleware)
		r.Get("/dashboard/{kind}", h.Dashboard)
		r.Get("/user/dashboard", h.BuyerDashboard)
		r.Get("/artisan/dashboard", h.ArtisanDashboard)
	})
}

// SignupForm describes the step-1 form for API clients
func (h *RegistrationHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"fields": []string{
			"firstName", "lastName", "email", "password", "userType",
			"craftType", "address", "newsletter", "profile_pic",
		},
		"user_types": []string{"artisan", "user"},
	})
}

// Signup handles step 1 of the registration handshake
func (h *RegistrationHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.logger.Debug("Signup form parse failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	req := SignupRequest{
		FirstName: r.FormValue("firstName"),
		LastName:  r.FormValue("lastName"),
		Email:     r.FormValue("email"),
		Password:  r.FormValue("password"),
		UserType:  r.FormValue("userType"),
	}
	if err := middleware.ValidateStruct(&req); err != nil {
		middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
		return
	}

	input := service.BeginRegistrationInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Password:   req.Password,
		Role:       normalizeRole(req.UserType),
		CraftType:  r.FormValue("craftType"),
		Address:    r.FormValue("address"),
		Newsletter: r.FormValue("newsletter") != "",
	}

	file, header, err := r.FormFile("profile_pic")
	if err == nil {
		defer file.Close()
		input.ProfilePic = &service.Upload{Filename: header.Filename, Content: file}
	} else if !errors.Is(err, http.ErrMissingFile) {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid file upload")
		return
	}

	result, err := h.registrations.Begin(r.Context(), input)
	if err != nil {
		h.logger.Debug("Signup step 1 failed", zap.Error(err))
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	if !result.Completed {
		// Artisan path: park the handshake and send the client to step 2.
		h.setCookie(w, signupCookieName, result.SignupToken, h.pendingTTL)
		middleware.RespondWithJSON(w, http.StatusOK, map[string]string{
			"next": "/artisan_signup",
		})
		return
	}

	h.setCookie(w, middleware.SessionCookieName, result.SessionToken, h.sessionExpiry)
	h.logger.Info("Buyer registered", zap.String("email", result.Buyer.Email))
	middleware.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"user": IdentityProfile{
			Email:     result.Buyer.Email,
			FirstName: result.Buyer.FirstName,
			LastName:  result.Buyer.LastName,
			Role:      "user",
		},
		"redirect": "/user/dashboard",
	})
}

// ArtisanSignupForm describes the step-2 form for API clients
func (h *RegistrationHandler) ArtisanSignupForm(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie(signupCookieName); err != nil {
		// No handshake in progress; callers must start at step 1.
		http.Redirect(w, r, "/signup", http.StatusSeeOther)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"fields": []string{"address", "skills", "bank_info"},
	})
}

// ArtisanSignup handles step 2 of the registration handshake
func (h *RegistrationHandler) ArtisanSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	signupToken := ""
	if cookie, err := r.Cookie(signupCookieName); err == nil {
		signupToken = cookie.Value
	}

	input := service.CompleteArtisanInput{
		Address:  r.FormValue("address"),
		Skills:   r.FormValue("skills"),
		BankInfo: r.FormValue("bank_info"),
	}

	artisan, sessionToken, err := h.registrations.CompleteArtisan(r.Context(), signupToken, input)
	if err != nil {
		h.logger.Debug("Signup step 2 failed", zap.Error(err))
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	h.clearCookie(w, signupCookieName)
	h.setCookie(w, middleware.SessionCookieName, sessionToken, h.sessionExpiry)
	h.logger.Info("Artisan registered",
		zap.String("email", artisan.Email),
		zap.String("craft_type", artisan.CraftType),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"user": IdentityProfile{
			Email:     artisan.Email,
			FirstName: artisan.FirstName,
			LastName:  artisan.LastName,
			Role:      "artisan",
		},
		"redirect": "/artisan/dashboard",
	})
}

// LoginForm describes the login form for API clients
func (h *RegistrationHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"fields": []string{"email", "password"},
	})
}

// Login authenticates an identity of either variant
func (h *RegistrationHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	req := LoginRequest{
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}
	if err := middleware.ValidateStruct(&req); err != nil {
		middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
		return
	}

	identity, variant, sessionToken, err := h.registrations.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debug("Login failed", zap.Error(err))
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	h.setCookie(w, middleware.SessionCookieName, sessionToken, h.sessionExpiry)
	h.logger.Info("Login succeeded", zap.String("email", identity.Email))
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user": IdentityProfile{
			Email:     identity.Email,
			FirstName: identity.FirstName,
			LastName:  identity.LastName,
			Role:      roleName(string(variant)),
		},
	})
}

// Logout clears the session and any in-flight signup handshake
func (h *RegistrationHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, middleware.SessionCookieName)
	h.clearCookie(w, signupCookieName)
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Dashboard redirects to the role-specific dashboard
func (h *RegistrationHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "kind") == "artisan" {
		http.Redirect(w, r, "/artisan/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/user/dashboard", http.StatusSeeOther)
}

// BuyerDashboard returns the buyer's full profile
func (h *RegistrationHandler) BuyerDashboard(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetUserEmail(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "not logged in")
		return
	}

	buyer, err := h.registrations.BuyerProfile(r.Context(), email)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, buyer)
}

// ArtisanDashboard returns the artisan's full profile
func (h *RegistrationHandler) ArtisanDashboard(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetUserEmail(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "not logged in")
		return
	}

	artisan, err := h.registrations.ArtisanProfile(r.Context(), email)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, artisan)
}

func (h *RegistrationHandler) setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *RegistrationHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// normalizeRole maps the form's historical "user" value onto the buyer
// variant name used internally.
func normalizeRole(userType string) string {
	if userType == "user" {
		return "buyer"
	}
	return userType
}

func roleName(variant string) string {
	if variant == "buyer" {
		return "user"
	}
	return variant
}
