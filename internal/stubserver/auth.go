package stubserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"

	"saintplus-client/internal/shared/auth"
	"saintplus-client/internal/shared/server/middleware"
	"saintplus-client/internal/shared/server/respond"
	"saintplus-client/internal/shared/telemetry"
)

const msgBadCredentials = "아이디 또는 비밀번호가 잘못되었습니다."

// AuthHandler serves /api/auth.
type AuthHandler struct {
	Users    *UserStore
	Signer   *auth.Signer
	validate *validator.Validate
}

func NewAuthHandler(users *UserStore, signer *auth.Signer) *AuthHandler {
	return &AuthHandler{Users: users, Signer: signer, validate: validator.New()}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=4"`
	Nickname string `json:"nickname" validate:"max=50"`
	Email    string `json:"email" validate:"omitempty,email"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type updateMajorsRequest struct {
	Major1 string `json:"major1"`
	Major2 string `json:"major2"`
	Major3 string `json:"major3"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
}

type loginResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    userResponse `json:"user"`
}

// RegisterPublicRoutes attaches register and login.
func (h *AuthHandler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.register)
	rg.POST("/login", h.login)
}

// RegisterRoutes attaches routes that need a bearer token.
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/update-majors", h.updateMajors)
}

func (h *AuthHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := h.validate.Struct(req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "입력값을 확인해주세요.", nil)
		return
	}

	u, err := h.Users.Register(req.Username, req.Password, strings.TrimSpace(req.Nickname), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			respond.Error(c, http.StatusBadRequest, "username_taken", "이미 사용 중인 아이디입니다.", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "회원가입 처리 중 오류가 발생했습니다.", nil)
		return
	}
	telemetry.Info("stub.user_registered", map[string]any{"user_id": u.ID})
	respond.Done(c, "회원가입이 완료되었습니다.")
}

func (h *AuthHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || h.validate.Struct(req) != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", msgBadCredentials, nil)
		return
	}

	u, err := h.Users.Authenticate(strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		respond.Error(c, http.StatusUnauthorized, "invalid_credentials", msgBadCredentials, nil)
		return
	}

	token, err := h.Signer.SignJWT(auth.Claims{
		Username: u.Username,
		Nickname: u.Nickname,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: strconv.FormatInt(u.ID, 10),
		},
	})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}
	respond.OK(c, loginResponse{
		Success: true,
		Token:   token,
		User: userResponse{
			ID:       u.ID,
			Username: u.Username,
			Nickname: u.Nickname,
			Email:    u.Email,
		},
	})
}

func (h *AuthHandler) updateMajors(c *gin.Context) {
	var req updateMajorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Major1) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "major1 is required", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	if err := h.Users.UpdateMajors(userID, req.Major1, req.Major2, req.Major3); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "전공 정보 저장에 실패했습니다.", nil)
		return
	}
	respond.Done(c, "전공 정보가 저장되었습니다.")
}
