package service

import (
	"context"
	"time"

	"longevity-chat-be/internal/dto"
	"longevity-chat-be/internal/entity"
	"longevity-chat-be/internal/pkg/apperror"
	"longevity-chat-be/internal/repository/specification"
	"longevity-chat-be/internal/repository/unitofwork"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type IAuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthUserResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthUserResponse, string, error)
	CurrentUser(ctx context.Context, userId uuid.UUID) (*dto.AuthUserResponse, error)
}

type authService struct {
	uowFactory  unitofwork.RepositoryFactory
	jwtSecret   string
	tokenExpiry time.Duration
}

func NewAuthService(uowFactory unitofwork.RepositoryFactory, jwtSecret string, tokenExpiry time.Duration) IAuthService {
	return &authService{
		uowFactory:  uowFactory,
		jwtSecret:   jwtSecret,
		tokenExpiry: tokenExpiry,
	}
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthUserResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: req.Email})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if existing != nil {
		return nil, apperror.InvalidArgument("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	hashStr := string(hash)

	now := time.Now()
	user := &entity.User{
		Id:           uuid.New(),
		Email:        req.Email,
		PasswordHash: &hashStr,
		Name:         req.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := uow.UserRepository().Create(ctx, user); err != nil {
		return nil, apperror.Internal(err)
	}

	return toAuthUserResponse(user), nil
}

// Login verifies credentials and issues a signed token for the credential
// cookie. The same "invalid credentials" answer covers unknown email and
// wrong password.
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthUserResponse, string, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: req.Email})
	if err != nil {
		return nil, "", apperror.Internal(err)
	}
	if user == nil || user.PasswordHash == nil {
		return nil, "", apperror.Unauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, "", apperror.Unauthorized("invalid credentials")
	}

	claims := jwt.MapClaims{
		"user_id": user.Id.String(),
		"exp":     time.Now().Add(s.tokenExpiry).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, "", apperror.Internal(err)
	}

	return toAuthUserResponse(user), signed, nil
}

func (s *authService) CurrentUser(ctx context.Context, userId uuid.UUID) (*dto.AuthUserResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if user == nil {
		return nil, nil
	}
	return toAuthUserResponse(user), nil
}

func toAuthUserResponse(u *entity.User) *dto.AuthUserResponse {
	return &dto.AuthUserResponse{
		Id:    u.Id,
		Email: u.Email,
		Name:  u.Name,
	}
}
