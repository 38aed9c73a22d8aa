package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"findmyspot/internal/constants"
	"findmyspot/internal/database"
	. "findmyspot/internal/models"
	"findmyspot/internal/types"
	"findmyspot/internal/utils"
	"findmyspot/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IdentityClaims carries the verified ID token fields a user is synced from.
type IdentityClaims struct {
	Subject       string
	Email         *string
	Name          *string
	FirstName     string
	LastName      string
	EmailVerified bool
}

// NewIdentityClaims maps verified token info to the user sync input. First
// and last name fall back to splitting the display name.
func NewIdentityClaims(tokenInfo *types.TokenInfo) IdentityClaims {
	claims := IdentityClaims{
		Subject:       tokenInfo.UserID,
		FirstName:     utils.CleanClaim(tokenInfo.GivenName),
		LastName:      utils.CleanClaim(tokenInfo.FamilyName),
		EmailVerified: tokenInfo.EmailVerified,
	}

	if email := utils.CleanClaim(tokenInfo.Email); email != "" {
		claims.Email = &email
	}

	if name := utils.CleanClaim(tokenInfo.Name); name != "" {
		claims.Name = &name

		if claims.FirstName == "" && claims.LastName == "" {
			names := strings.Fields(name)
			if len(names) > 0 {
				claims.FirstName = names[0]
			}
			if len(names) > 1 {
				claims.LastName = strings.Join(names[1:], " ")
			}
		}
	}

	return claims
}

type UserRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*User, error)
	GetByOIDCUserID(ctx context.Context, tx *gorm.DB, oidcUserID string) (*User, error)
	Update(ctx context.Context, tx *gorm.DB, user *User) error
	FindOrCreateOIDCUser(
		ctx context.Context,
		tx *gorm.DB,
		claims IdentityClaims,
		now time.Time,
	) (*User, error)
	ClearUserCacheByOIDC(ctx context.Context, tx *gorm.DB, oidcUserID string) error
}

type userRepository struct {
	cache database.CacheClient
	log   logger.Logger
}

func NewUserRepository(cache database.CacheClient) UserRepository {
	return &userRepository{
		cache: cache,
		log:   logger.New("userRepository"),
	}
}

func (r *userRepository) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*User, error) {
	log := r.log.Function("GetByID")

	var user User
	found, err := database.NewCacheBuilder(r.cache, id).
		WithContext(ctx).
		WithHash(constants.UserCachePrefix).
		Get(&user)
	if err != nil {
		log.Warn("failed to get user from cache", "userID", id, "error", err)
	}
	if found {
		return &user, nil
	}

	dbUser, err := gorm.G[*User](tx).Where(User{BaseUUIDModel: BaseUUIDModel{ID: id}}).First(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, log.Err("failed to get user by id", err, "userID", id)
	}

	r.addUserToCache(ctx, dbUser)

	return dbUser, nil
}

func (r *userRepository) GetByOIDCUserID(
	ctx context.Context,
	tx *gorm.DB,
	oidcUserID string,
) (*User, error) {
	log := r.log.Function("GetByOIDCUserID")

	var userID uuid.UUID
	found, err := database.NewCacheBuilder(r.cache, oidcUserID).
		WithContext(ctx).
		WithHash(constants.OIDCMappingCachePrefix).
		Get(&userID)
	if err == nil && found {
		var cachedUser User
		found, err = database.NewCacheBuilder(r.cache, userID).
			WithContext(ctx).
			WithHash(constants.UserCachePrefix).
			Get(&cachedUser)
		if err == nil && found {
			return &cachedUser, nil
		}
	}

	user, err := gorm.G[*User](tx).Where("oidc_user_id = ?", oidcUserID).First(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, log.Err("failed to get user by OIDC user ID", err, "oidcUserID", oidcUserID)
	}

	r.addUserToCache(ctx, user)

	return user, nil
}

func (r *userRepository) Update(ctx context.Context, tx *gorm.DB, user *User) error {
	log := r.log.Function("Update")

	if err := tx.WithContext(ctx).Save(user).Error; err != nil {
		return log.Err("failed to update user", err, "userID", user.ID)
	}

	r.clearUserCache(ctx, user)

	return nil
}

// FindOrCreateOIDCUser syncs the user behind a verified ID token, creating it
// on first login. A pre-existing account with the same email and no identity
// link is linked instead of duplicated.
func (r *userRepository) FindOrCreateOIDCUser(
	ctx context.Context,
	tx *gorm.DB,
	claims IdentityClaims,
	now time.Time,
) (*User, error) {
	log := r.log.Function("FindOrCreateOIDCUser")

	existingUser, err := r.GetByOIDCUserID(ctx, tx, claims.Subject)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if existingUser == nil && claims.Email != nil && *claims.Email != "" {
		byEmail, err := gorm.G[*User](tx).Where("email = ?", *claims.Email).First(ctx)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, log.Err("failed to get user by email", err, "email", *claims.Email)
		}
		if byEmail != nil && byEmail.OIDCUserID == "" {
			existingUser = byEmail
		}
	}

	if existingUser != nil {
		r.applyClaims(existingUser, claims, now)
		if err := r.Update(ctx, tx, existingUser); err != nil {
			return nil, err
		}
		return existingUser, nil
	}

	user := &User{IsActive: true}
	r.applyClaims(user, claims, now)

	if err := gorm.G[User](tx).Create(ctx, user); err != nil {
		return nil, log.Err("failed to create OIDC user", err, "oidcUserID", claims.Subject)
	}

	log.Info("Created user from identity provider", "userID", user.ID)
	r.addUserToCache(ctx, user)

	return user, nil
}

func (r *userRepository) ClearUserCacheByOIDC(
	ctx context.Context,
	tx *gorm.DB,
	oidcUserID string,
) error {
	log := r.log.Function("ClearUserCacheByOIDC")

	user, err := r.GetByOIDCUserID(ctx, tx, oidcUserID)
	if err != nil {
		log.Warn("failed to get user for cache cleanup", "oidcUserID", oidcUserID, "error", err)
		return err
	}

	r.clearUserCache(ctx, user)

	return nil
}

func (r *userRepository) applyClaims(user *User, claims IdentityClaims, now time.Time) {
	user.UpdateFromIdentity(
		claims.Subject,
		claims.Email,
		claims.Name,
		claims.FirstName,
		claims.LastName,
		claims.EmailVerified,
		now,
	)
}

func (r *userRepository) addUserToCache(ctx context.Context, user *User) {
	log := r.log.Function("addUserToCache")

	if err := database.NewCacheBuilder(r.cache, user.ID).
		WithHash(constants.UserCachePrefix).
		WithStruct(user).
		WithTTL(constants.UserCacheExpiry).
		WithContext(ctx).
		Set(); err != nil {
		log.Warn("failed to add user to cache", "userID", user.ID, "error", err)
	}

	if user.OIDCUserID == "" {
		return
	}

	if err := database.NewCacheBuilder(r.cache, user.OIDCUserID).
		WithHash(constants.OIDCMappingCachePrefix).
		WithStruct(user.ID).
		WithTTL(constants.UserCacheExpiry).
		WithContext(ctx).
		Set(); err != nil {
		log.Warn("failed to cache OIDC mapping", "oidcUserID", user.OIDCUserID, "error", err)
	}
}

func (r *userRepository) clearUserCache(ctx context.Context, user *User) {
	log := r.log.Function("clearUserCache")

	if err := database.NewCacheBuilder(r.cache, user.ID).
		WithHash(constants.UserCachePrefix).
		WithContext(ctx).
		Delete(); err != nil {
		log.Warn("failed to clear user cache", "userID", user.ID, "error", err)
	}

	if user.OIDCUserID != "" {
		if err := database.NewCacheBuilder(r.cache, user.OIDCUserID).
			WithHash(constants.OIDCMappingCachePrefix).
			WithContext(ctx).
			Delete(); err != nil {
			log.Warn("failed to clear OIDC mapping cache", "oidcUserID", user.OIDCUserID, "error", err)
		}
	}
}
