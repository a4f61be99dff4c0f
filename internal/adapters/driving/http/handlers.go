package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/swaggo/swag"

	_ "github.com/custodia-labs/vidtube-core/docs" // registers the OpenAPI document
	"github.com/custodia-labs/vidtube-core/internal/core/domain"
)

const (
	jsonBodyLimit   = 16 << 10
	multipartMemory = 1 << 20
)

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings PostgreSQL and, when configured, Redis
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var failed []string
	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "dependency", "postgres", "error", err)
			failed = append(failed, "postgres")
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "dependency", "redis", "error", err)
			failed = append(failed, "redis")
		}
	}

	if len(failed) > 0 {
		writeError(w, http.StatusServiceUnavailable, "not ready", failed...)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.cfg.Version})
}

// handleOpenAPI serves the generated OpenAPI document
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, doc)
}

// User endpoints

// handleRegister godoc
// @Summary      Register user
// @Description  Create an account. Avatar is required, cover image is optional.
// @Tags         Users
// @Accept       multipart/form-data
// @Produce      json
// @Param        fullName    formData  string  true   "Full name"
// @Param        email       formData  string  true   "Email"
// @Param        username    formData  string  true   "Username"
// @Param        password    formData  string  true   "Password (at most 72 bytes)"
// @Param        avatar      formData  file    true   "Avatar image"
// @Param        coverImage  formData  file    false  "Cover image"
// @Success      201  {object}  APIResponse{data=domain.PublicUser}
// @Failure      400  {object}  ErrorResponse  "Missing fields or avatar"
// @Failure      409  {object}  ErrorResponse  "Username or email taken"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /users/register [post]
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	avatarPath, err := saveUpload(r.MultipartForm, "avatar", s.cfg.UploadDir)
	if err != nil {
		writeDomainError(w, s.logger, domain.NewInternalError("failed to receive upload", err))
		return
	}
	coverPath, err := saveUpload(r.MultipartForm, "coverImage", s.cfg.UploadDir)
	if err != nil {
		removeUploads(avatarPath)
		writeDomainError(w, s.logger, domain.NewInternalError("failed to receive upload", err))
		return
	}
	defer removeUploads(avatarPath, coverPath)

	fullName := r.FormValue("fullName")
	if fullName == "" {
		fullName = r.FormValue("fullname")
	}

	user, err := s.sessions.Register(r.Context(), domain.RegisterRequest{
		FullName:       fullName,
		Email:          r.FormValue("email"),
		Username:       r.FormValue("username"),
		Password:       r.FormValue("password"),
		AvatarPath:     avatarPath,
		CoverImagePath: coverPath,
	})
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user, "User registered Successfully")
}

// handleLogin godoc
// @Summary      User login
// @Description  Authenticate with username or email and password. Tokens are returned in the body and as cookies.
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        request  body      domain.LoginRequest  true  "Login credentials"
// @Success      200      {object}  APIResponse{data=domain.LoginResponse}
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid credentials"
// @Failure      404      {object}  ErrorResponse  "User does not exist"
// @Router       /users/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.sessions.Login(r.Context(), req)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	pair := resp.Tokens()
	setAuthCookies(w, &pair)
	writeSuccess(w, http.StatusOK, resp, "User logged In Successfully")
}

// handleRefreshToken godoc
// @Summary      Refresh tokens
// @Description  Exchange the refresh token (cookie or body) for a new token pair. The presented token is invalidated.
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        request  body      domain.RefreshRequest  false  "Refresh token when not sent as a cookie"
// @Success      200      {object}  APIResponse{data=domain.TokenPair}
// @Failure      401      {object}  ErrorResponse  "Invalid, expired or used refresh token"
// @Router       /users/refresh-token [post]
func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	req := domain.RefreshRequest{RefreshToken: cookieValue(r, refreshTokenCookie)}
	if req.RefreshToken == "" {
		// An unreadable body counts as no token; the session manager answers 401
		var body domain.RefreshRequest
		if err := decodeJSON(w, r, &body, true); err != nil {
			s.logger.Debug("ignoring unreadable refresh body", "error", err)
		}
		req.RefreshToken = body.RefreshToken
	}

	pair, err := s.sessions.Refresh(r.Context(), req)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	setAuthCookies(w, pair)
	writeSuccess(w, http.StatusOK, pair, "Access token refreshed")
}

// handleLogout godoc
// @Summary      Logout user
// @Description  Invalidate the stored refresh token and clear both cookies
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  APIResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /users/logout [post]
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	if err := s.sessions.Logout(r.Context(), authCtx.UserID); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	clearAuthCookies(w)
	writeSuccess(w, http.StatusOK, struct{}{}, "User logged Out")
}

// handleCurrentUser godoc
// @Summary      Current user
// @Description  Returns the authenticated user's public profile
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  APIResponse{data=domain.PublicUser}
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /users/current-user [get]
func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	user, err := s.sessions.CurrentUser(r.Context(), authCtx.UserID)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, "Current user fetched successfully")
}

// decodeJSON reads a size-limited JSON body. With optional set, an empty body is not an error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, jsonBodyLimit)
	err := json.NewDecoder(r.Body).Decode(dst)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
