package handler

import (
	"errors"
	"go-websecurity-api/common"
	"go-websecurity-api/logger"
	"go-websecurity-api/model"
	"go-websecurity-api/service"
	"net/http"

	"github.com/sirupsen/logrus"
)

type AuthHandler struct {
	auth    *service.AuthService
	tokens  *service.TokenService
	refresh *service.RefreshTokenService
	cookies *service.CookieService
}

func NewAuthHandler(
	auth *service.AuthService,
	tokens *service.TokenService,
	refresh *service.RefreshTokenService,
	cookies *service.CookieService,
) *AuthHandler {
	return &AuthHandler{auth: auth, tokens: tokens, refresh: refresh, cookies: cookies}
}

// Register godoc
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      model.RegisterRequest  true  "Registration payload"
// @Success      201      {object}  model.User
// @Failure      400      {object}  common.AppError
// @Router       /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RegisterRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	user, err := h.auth.Register(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrUsernameTaken):
		return common.NewAppError(http.StatusBadRequest, "Username is already taken", nil)
	case errors.Is(err, service.ErrEmailTaken):
		return common.NewAppError(http.StatusBadRequest, "Email is already in use", nil)
	case err != nil:
		return common.InternalError(err)
	}

	logger.Log.WithField("user_id", user.ID).Info("User registered")
	writeJSON(w, http.StatusCreated, user)
	return nil
}

// Login godoc
// @Summary      Log in with username and password
// @Description  Sets the access and refresh cookies and returns the access token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      model.LoginRequest  true  "Credentials"
// @Success      200      {object}  model.AccessTokenResponse
// @Failure      401      {object}  common.AppError
// @Router       /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LoginRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	user, err := h.auth.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		logger.Log.WithFields(logrus.Fields{
			"username":  req.Username,
			"client_ip": ClientIP(r),
		}).Warn("Failed login attempt")
		return common.NewAppError(http.StatusUnauthorized, "Invalid username or password", nil)
	}
	if err != nil {
		return common.InternalError(err)
	}

	access, err := h.tokens.Issue(user, model.TokenTypeAccess)
	if err != nil {
		return common.InternalError(err)
	}
	if _, err := h.refresh.IssueAndStore(r.Context(), w, user); err != nil {
		return common.InternalError(err)
	}

	http.SetCookie(w, h.cookies.BuildAccessCookie(access))
	logger.Log.WithField("user_id", user.ID).Info("User logged in")
	writeJSON(w, http.StatusOK, h.accessResponse(access))
	return nil
}

// Refresh godoc
// @Summary      Rotate the refresh token
// @Description  Exchanges the refresh cookie for a new refresh cookie and access token. Reuse of a rotated token revokes all of the user's sessions.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  model.AccessTokenResponse
// @Failure      401  {object}  common.AppError
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) *common.AppError {
	presented, ok := h.cookies.ReadRefreshToken(r)
	if !ok {
		return h.refreshRejected(w)
	}

	result, err := h.refresh.Rotate(r.Context(), w, presented)
	if err != nil {
		return common.InternalError(err)
	}
	// Invalid and reused tokens must look the same to the client.
	if result.Status != service.RotationOK {
		return h.refreshRejected(w)
	}

	access, err := h.tokens.Issue(result.User, model.TokenTypeAccess)
	if err != nil {
		return common.InternalError(err)
	}
	http.SetCookie(w, h.cookies.BuildAccessCookie(access))
	writeJSON(w, http.StatusOK, h.accessResponse(access))
	return nil
}

func (h *AuthHandler) refreshRejected(w http.ResponseWriter) *common.AppError {
	http.SetCookie(w, h.cookies.ClearAccessCookie())
	return common.NewAppError(http.StatusUnauthorized, "Invalid refresh token", nil)
}

// Logout godoc
// @Summary      Log out
// @Description  Revokes the presented refresh token, if any, and clears both cookies.
// @Tags         auth
// @Success      204
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) *common.AppError {
	http.SetCookie(w, h.cookies.ClearAccessCookie())
	if err := h.refresh.RevokeIfPresent(r.Context(), w, r); err != nil {
		return common.InternalError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *AuthHandler) accessResponse(token string) model.AccessTokenResponse {
	return model.AccessTokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.tokens.TTL(model.TokenTypeAccess).Seconds()),
	}
}
