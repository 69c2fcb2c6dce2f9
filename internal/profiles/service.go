package profiles

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/fdg312/fitswift-hub/internal/userctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidType       = errors.New("invalid profile type")
	ErrEmptyName         = errors.New("name cannot be empty")
	ErrCannotDeleteOwner = errors.New("cannot delete owner profile")
	ErrNotFound          = errors.New("profile not found")
)

const (
	TypeOwner = "owner"
	TypeGuest = "guest"

	// defaultUserID — владелец, когда auth выключен
	defaultUserID    = "default"
	defaultOwnerName = "Me"
	maxNameLength    = 64
)

// Service содержит бизнес-логику профилей. Каждый пользователь видит только свои профили.
type Service struct {
	storage storage.Storage
	log     *zap.Logger
}

// NewService создаёт новый сервис
func NewService(st storage.Storage, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{storage: st, log: log}
}

// ListProfiles возвращает профили вызывающего пользователя: owner первым, затем guest по дате создания.
// Owner профиль создаётся при первом обращении.
func (s *Service) ListProfiles(ctx context.Context) ([]ProfileDTO, error) {
	userID := userIDFromContext(ctx)

	if err := s.ensureOwnerProfile(ctx, userID); err != nil {
		return nil, err
	}

	profiles, err := s.storage.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}

	owned := make([]storage.Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.OwnerUserID == userID {
			owned = append(owned, p)
		}
	}
	sort.SliceStable(owned, func(i, j int) bool {
		if (owned[i].Type == TypeOwner) != (owned[j].Type == TypeOwner) {
			return owned[i].Type == TypeOwner
		}
		return owned[i].CreatedAt.Before(owned[j].CreatedAt)
	})

	dtos := make([]ProfileDTO, 0, len(owned))
	for _, p := range owned {
		dtos = append(dtos, toDTO(p))
	}

	return dtos, nil
}

// GetProfile возвращает профиль по ID
func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*ProfileDTO, error) {
	profile, err := s.ownedProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	dto := toDTO(*profile)
	return &dto, nil
}

// CreateProfile создаёт новый профиль (только guest)
func (s *Service) CreateProfile(ctx context.Context, req CreateProfileRequest) (*ProfileDTO, error) {
	userID := userIDFromContext(ctx)

	name, err := normalizeName(req.Name)
	if err != nil {
		return nil, err
	}
	if req.Type != TypeGuest {
		return nil, ErrInvalidType
	}

	profile := &storage.Profile{
		OwnerUserID: userID,
		Type:        TypeGuest,
		Name:        name,
	}

	if err := s.storage.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}

	s.log.Info("profile created", zap.String("user_id", userID), zap.Stringer("profile_id", profile.ID))

	dto := toDTO(*profile)
	return &dto, nil
}

// UpdateProfile обновляет имя профиля
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, req UpdateProfileRequest) (*ProfileDTO, error) {
	name, err := normalizeName(req.Name)
	if err != nil {
		return nil, err
	}

	profile, err := s.ownedProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	profile.Name = name

	if err := s.storage.UpdateProfile(ctx, profile); err != nil {
		return nil, err
	}

	dto := toDTO(*profile)
	return &dto, nil
}

// DeleteProfile удаляет профиль (только guest)
func (s *Service) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	profile, err := s.ownedProfile(ctx, id)
	if err != nil {
		return err
	}

	if profile.Type == TypeOwner {
		return ErrCannotDeleteOwner
	}

	if err := s.storage.DeleteProfile(ctx, id); err != nil {
		return err
	}

	s.log.Info("profile deleted", zap.String("user_id", profile.OwnerUserID), zap.Stringer("profile_id", id))
	return nil
}

func (s *Service) ownedProfile(ctx context.Context, id uuid.UUID) (*storage.Profile, error) {
	profile, err := s.storage.GetProfile(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if profile.OwnerUserID != userIDFromContext(ctx) {
		return nil, ErrNotFound
	}
	return profile, nil
}

func (s *Service) ensureOwnerProfile(ctx context.Context, userID string) error {
	profiles, err := s.storage.ListProfiles(ctx)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if p.OwnerUserID == userID && p.Type == TypeOwner {
			return nil
		}
	}

	profile := &storage.Profile{
		OwnerUserID: userID,
		Type:        TypeOwner,
		Name:        defaultOwnerName,
	}
	if err := s.storage.CreateProfile(ctx, profile); err != nil {
		return err
	}

	s.log.Info("owner profile created", zap.String("user_id", userID), zap.Stringer("profile_id", profile.ID))
	return nil
}

// toDTO конвертирует storage.Profile в ProfileDTO
func toDTO(p storage.Profile) ProfileDTO {
	return ProfileDTO{
		ID:          p.ID,
		OwnerUserID: p.OwnerUserID,
		Type:        p.Type,
		Name:        p.Name,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if r := []rune(name); len(r) > maxNameLength {
		name = string(r[:maxNameLength])
	}
	return name, nil
}

func userIDFromContext(ctx context.Context) string {
	if userID, ok := userctx.GetUserID(ctx); ok && strings.TrimSpace(userID) != "" {
		return userID
	}
	return defaultUserID
}
