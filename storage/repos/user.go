package repos

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/core/user"
)

// userRecord is the stored form of a user: unlike the API form, it carries the password hash.
type userRecord struct {
	user.User
	PasswordHash []byte `json:"passwordHash"`
}

func newUserRecord(usr user.User) userRecord {
	return userRecord{User: usr, PasswordHash: usr.PasswordHash}
}

func (rec userRecord) user() user.User {
	usr := rec.User
	usr.PasswordHash = rec.PasswordHash
	return usr
}

type userRepository struct {
	store  core.DocumentStore
	logger core.Logger
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(store core.DocumentStore, logger core.Logger) user.Repository {
	return &userRepository{store: store, logger: logger}
}

func (repo *userRepository) decodeAll(docs []core.Document) []user.User {
	users := make([]user.User, 0, len(docs))
	for _, doc := range docs {
		var rec userRecord
		if err := decode(schemaUser, doc, &rec); err != nil {
			repo.logger.Warn("skipping malformed user", map[string]interface{}{"id": doc[core.IDField], "error": err.Error()})
			continue
		}
		users = append(users, rec.user())
	}
	return users
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	docs, err := repo.store.Query(ctx, core.CollectionUsers, core.Where("email", email))
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	for _, doc := range docs {
		if !isExcluded(doc, excludedUsers) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func isExcluded(doc core.Document, excludedUsers []user.User) bool {
	for _, usr := range excludedUsers {
		if doc[core.IDField] == usr.ID {
			return true
		}
	}
	return false
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	doc, err := encode(schemaUser, newUserRecord(usr))
	if err != nil {
		return user.User{}, err
	}
	if _, err = repo.store.Insert(ctx, core.CollectionUsers, usr.ID, doc); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	doc, err := repo.store.Get(ctx, core.CollectionUsers, id)
	if err != nil {
		if errors.Cause(err) == core.ErrDocumentNotFound {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	var rec userRecord
	if err = decode(schemaUser, doc, &rec); err != nil {
		return user.User{}, err
	}
	return rec.user(), nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	docs, err := repo.store.Query(ctx, core.CollectionUsers, core.Where("email", strings.ToLower(email)))
	if err != nil {
		return user.User{}, errors.Wrap(err, "querying users")
	}
	users := repo.decodeAll(docs)
	if len(users) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return users[0], nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, orderings ...core.DBOrdering) ([]user.User, error) {
	var filters []core.Filter
	if filter.Role != "" {
		filters = append(filters, core.Where("role", filter.Role))
	}
	if filter.IsActive != nil {
		filters = append(filters, core.Where("isActive", *filter.IsActive))
	}
	docs, err := repo.store.Query(ctx, core.CollectionUsers, filters...)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	users := repo.decodeAll(docs)
	if search := strings.ToLower(filter.Search); search != "" {
		matched := users[:0]
		for _, usr := range users {
			if strings.Contains(strings.ToLower(usr.DisplayName), search) ||
				strings.Contains(strings.ToLower(usr.Email), search) {
				matched = append(matched, usr)
			}
		}
		users = matched
	}

	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "created_at"}}
	}
	sortUsers(users, orderings)
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	orig, err := repo.GetUserByID(ctx, usr.ID)
	if err != nil {
		return user.User{}, err
	}
	// only overwrite the hash when a new one was set
	if usr.PasswordHash == nil {
		usr.PasswordHash = orig.PasswordHash
	}
	doc, err := encode(schemaUser, newUserRecord(usr))
	if err != nil {
		return user.User{}, err
	}
	if err = repo.store.Set(ctx, core.CollectionUsers, usr.ID, doc); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	if err := repo.store.Delete(ctx, core.CollectionUsers, id); err != nil {
		if errors.Cause(err) == core.ErrDocumentNotFound {
			return user.ErrNotFound
		}
		return errors.Wrap(err, "deleting user")
	}
	return nil
}

// userLess compares two users on one ordering field. Unknown fields compare equal.
func userLess(a, b user.User, field string) (less, equal bool) {
	switch user.OrderingFields[field] {
	case "created_at":
		return a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Before(b.UpdatedAt), a.UpdatedAt.Equal(b.UpdatedAt)
	case "last_login":
		return a.LastLogin.Before(b.LastLogin), a.LastLogin.Equal(b.LastLogin)
	case "email":
		return a.Email < b.Email, a.Email == b.Email
	case "name":
		na, nb := strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)
		return na < nb, na == nb
	}
	return false, true
}

func sortUsers(users []user.User, orderings []core.DBOrdering) {
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range orderings {
			less, equal := userLess(users[i], users[j], ord.Field)
			if equal {
				continue
			}
			if ord.Ascending {
				return less
			}
			return !less
		}
		return false
	})
}
