package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fdg312/fitswift-hub/internal/config"
	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

const (
	devUserID = "dev-user"
	devTTL    = 30 * 24 * time.Hour
)

// Service — сервис авторизации
type Service struct {
	config  *config.Config
	storage storage.Storage
	log     *zap.Logger
}

func NewService(cfg *config.Config, storage storage.Storage, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		config:  cfg,
		storage: storage,
		log:     log,
	}
}

// SignInDev — dev-авторизация, выдает JWT на 30 дней и гарантирует owner профиль
func (s *Service) SignInDev(ctx context.Context) (*DevAuthResponse, error) {
	profile, err := s.findOrCreateOwnerProfile(ctx, devUserID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get/create owner profile: %w", err)
	}

	accessToken, err := s.generateJWTWithTTL(devUserID, devTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate dev JWT: %w", err)
	}

	s.log.Info("dev sign-in", zap.String("sub", devUserID), zap.Stringer("profile_id", profile.ID))

	return &DevAuthResponse{
		AccessToken:    accessToken,
		TokenType:      "Bearer",
		ExpiresIn:      int64(devTTL.Seconds()),
		OwnerUserID:    devUserID,
		OwnerProfileID: profile.ID,
	}, nil
}

// findOrCreateOwnerProfile — найти или создать owner профиль
func (s *Service) findOrCreateOwnerProfile(ctx context.Context, ownerUserID, name string) (*storage.Profile, error) {
	profiles, err := s.storage.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range profiles {
		if p.Type == "owner" && p.OwnerUserID != "" && p.OwnerUserID == ownerUserID {
			return &p, nil
		}
	}

	if name == "" {
		name = "Me"
	}

	now := time.Now().UTC()
	profile := &storage.Profile{
		ID:          uuid.New(),
		Type:        "owner",
		Name:        name,
		OwnerUserID: ownerUserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.storage.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}

	return profile, nil
}

// generateJWT — генерация JWT токена с TTL из конфига
func (s *Service) generateJWT(ownerUserID string) (string, error) {
	return s.generateJWTWithTTL(ownerUserID, time.Duration(s.config.JWTTTLMinutes)*time.Minute)
}

func (s *Service) generateJWTWithTTL(ownerUserID string, ttl time.Duration) (string, error) {
	now := time.Now()
	exp := now.Add(ttl)

	claims := jwt.MapClaims{
		"sub": ownerUserID,
		"iss": s.config.JWTIssuer,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// VerifyJWT — проверка JWT токена, возвращает sub
func (s *Service) VerifyJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithIssuer(s.config.JWTIssuer))

	if err != nil {
		return "", ErrInvalidToken
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			return "", ErrInvalidToken
		}
		return sub, nil
	}

	return "", ErrInvalidToken
}
