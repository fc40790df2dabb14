package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/finchbank/ledger-service/internal/domain"
	"github.com/finchbank/ledger-service/internal/ledger"
	"github.com/finchbank/ledger-service/internal/middleware"
	"github.com/finchbank/ledger-service/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

const tokenLifetime = 7 * 24 * time.Hour

// Registrar defines the account-creation operation used by AuthHandler.
type Registrar interface {
	CreateAccount(ctx context.Context, draft ledger.AccountDraft) (*domain.Account, error)
}

// AccountResolver looks up an account by email or account number for login.
type AccountResolver interface {
	Resolve(ctx context.Context, scope ledger.Scope, identifier string) (*domain.Account, error)
}

// AuthHandler issues JWTs. Registration opens an account with the configured
// starting balance; login accepts either the email or the account number.
type AuthHandler struct {
	registrar      Registrar
	accounts       AccountResolver
	jwtSecret      []byte
	initialBalance decimal.Decimal
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,identifier"`
	Password   string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Account *domain.Account `json:"account"`
	Token   string          `json:"token"`
}

func NewAuthHandler(registrar Registrar, accounts AccountResolver, jwtSecret []byte, initialBalance decimal.Decimal) *AuthHandler {
	return &AuthHandler{
		registrar:      registrar,
		accounts:       accounts,
		jwtSecret:      jwtSecret,
		initialBalance: initialBalance,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		middleware.RespondWithError(c, http.StatusInternalServerError, "Registration failed")
		return
	}

	account, err := h.registrar.CreateAccount(c.Request.Context(), ledger.AccountDraft{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         domain.RoleUser,
		Balance:      h.initialBalance,
	})
	if err != nil {
		respondLedgerError(c, err, "Registration failed")
		return
	}

	token, err := h.signToken(account)
	if err != nil {
		middleware.RespondWithError(c, http.StatusInternalServerError, "Registration failed")
		return
	}
	c.JSON(http.StatusCreated, AuthResponse{Account: account, Token: token})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	account, err := h.accounts.Resolve(c.Request.Context(), nil, utils.NormalizeEmail(req.Identifier))
	if err != nil {
		// Same response whether the account or the password is wrong.
		middleware.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if account.Status == domain.StatusClosed {
		middleware.RespondWithError(c, http.StatusForbidden, "This account has been closed")
		return
	}
	if !utils.CheckPassword(req.Password, account.PasswordHash) {
		middleware.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.signToken(account)
	if err != nil {
		middleware.RespondWithError(c, http.StatusInternalServerError, "Login failed")
		return
	}
	c.JSON(http.StatusOK, AuthResponse{Account: account, Token: token})
}

func (h *AuthHandler) signToken(account *domain.Account) (string, error) {
	claims := middleware.Claims{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      string(account.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}
