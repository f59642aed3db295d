package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-auth-service"
	"github.com/goliatone/go-auth-service/exception"
)

// Users is the bun backed user DAO.
type Users interface {
	auth.UserDao
	Repository() repository.Repository[*auth.User]
}

type users struct {
	repo   repository.Repository[*auth.User]
	db     *bun.DB
	hasher auth.PasswordHasher
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB, hasher auth.PasswordHasher) Users {
	repo := repository.NewRepository[*auth.User](db, repository.ModelHandlers[*auth.User]{
		NewRecord: func() *auth.User { return &auth.User{} },
		GetID: func(u *auth.User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *auth.User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
		GetIdentifierValue: func(u *auth.User) string {
			if u == nil {
				return ""
			}
			return strings.TrimSpace(u.Email)
		},
	})
	if hasher == nil {
		hasher = auth.HMACHasher{}
	}
	return &users{repo: repo, db: db, hasher: hasher}
}

func (u *users) Repository() repository.Repository[*auth.User] {
	return u.repo
}

func (u *users) Add(ctx context.Context, user *auth.User, password string) (*auth.User, error) {
	if user == nil {
		return nil, exception.NewInvalidArgument(exception.KeyParameterRequired, map[string]string{"paramName": "user"})
	}
	digest, salt, err := u.hasher.Hash(password)
	if err != nil {
		return nil, exception.Internal(err, "failed to hash password")
	}

	record := &auth.User{
		ID:             user.ID,
		Email:          strings.TrimSpace(user.Email),
		PasswordDigest: digest,
		PasswordSalt:   salt,
		Validated:      user.Validated,
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now().UTC()
	record.CreatedAt = &now

	created, err := u.repo.Create(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, exception.Wrap(err, exception.Duplicate, exception.KeyEmailExists, map[string]string{
				"email": record.Email,
			})
		}
		return nil, exception.Internal(err, "failed to create user")
	}
	return created, nil
}

func (u *users) ByID(ctx context.Context, id string) (*auth.User, error) {
	if _, ok := auth.ParseUserID(id); !ok {
		return nil, nil
	}
	user, err := u.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, exception.Internal(err, "failed to load user")
	}
	return user, nil
}

func (u *users) ByEmail(ctx context.Context, email string) (*auth.User, error) {
	user, err := u.repo.GetByIdentifier(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, exception.Internal(err, "failed to load user")
	}
	return user, nil
}

func (u *users) Validate(ctx context.Context, id string) error {
	uid, ok := auth.ParseUserID(id)
	if !ok {
		return nil
	}
	_, err := u.db.NewUpdate().
		Model((*auth.User)(nil)).
		Set("validated = ?", true).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", uid).
		Exec(ctx)
	if err != nil {
		return exception.Internal(err, "failed to validate user")
	}
	return nil
}

func (u *users) Password(ctx context.Context, id, password string) error {
	uid, ok := auth.ParseUserID(id)
	if !ok {
		return nil
	}
	digest, salt, err := u.hasher.Hash(password)
	if err != nil {
		return exception.Internal(err, "failed to hash password")
	}
	_, err = u.db.NewUpdate().
		Model((*auth.User)(nil)).
		Set("password_digest = ?", digest).
		Set("password_salt = ?", salt).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", uid).
		Exec(ctx)
	if err != nil {
		return exception.Internal(err, "failed to update password")
	}
	return nil
}

func (u *users) Match(ctx context.Context, email, password string) (*auth.User, error) {
	user, err := u.ByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, err
	}
	if !u.hasher.Compare(password, user.PasswordDigest, user.PasswordSalt) {
		return nil, nil
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
