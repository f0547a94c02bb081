package crud

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"socialnet/domain"
	"socialnet/errs"
	"socialnet/logger"
)

const (
	// MinPasswordLength is the minimum number of characters of a password.
	MinPasswordLength = 6
	// maxBcryptBytes is the longest input bcrypt accepts, pepper included.
	maxBcryptBytes = 72
	// MaxFullNameLength is the maximum number of characters of a display name.
	MaxFullNameLength = 100
	// MaxBioLength is the maximum number of characters of a bio.
	MaxBioLength = 500
)

// UserService manages Users. It holds the part of the authentication system that checks
// credentials; sessions are issued by the SessionService.
// It implements the domain.UserService interface.
type UserService struct {
	userValidator
}

// userValidator runs validations on incoming User data.
// On success, it passes the data on to userGorm.
// Otherwise, it returns the error of the validation that has failed.
type userValidator struct {
	pepper        string
	usernameRegex *regexp.Regexp
	validate      *validator.Validate
	userGorm
}

// userGorm runs CRUD operations on the database using incoming User data.
// It assumes that data has been validated. On success, it returns nil.
// Otherwise, it returns the error of the operation that has failed.
type userGorm struct {
	db     *gorm.DB
	images *ImageService
}

// NewUserService returns an instance of UserService.
func NewUserService(db *gorm.DB, pepper string, images *ImageService) *UserService {
	return &UserService{
		userValidator{
			pepper:        pepper,
			usernameRegex: regexp.MustCompile(`^[A-Za-z0-9_.]{3,30}$`),
			validate:      validator.New(),
			userGorm: userGorm{
				db:     db,
				images: images,
			},
		},
	}
}

// Ensure the UserService struct properly implements the domain.UserService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.UserService = &UserService{}

// Authenticate checks a submitted username or email address and password for existence and correctness.
func (uv *userValidator) Authenticate(ctx context.Context, login, password string) (*domain.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, errs.Errorf(errs.EINVALID, "Username and password are required.")
	}

	// Look for a user database record matching the submitted username or email address.
	found, err := uv.userGorm.ByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Errorf(errs.EUNAUTHORIZED, "Invalid username or password.")
		}
		return nil, err
	}

	// Append the pepper to the submitted password, hash it, and compare the result to the
	// password hash stored in the user's database record.
	err = bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password+uv.pepper))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, errs.Errorf(errs.EUNAUTHORIZED, "Invalid username or password.")
		}
		return nil, err
	}
	return found, nil
}

// Create runs validations needed for creating new User database records.
func (uv *userValidator) Create(ctx context.Context, user *domain.User) error {
	err := runUserValFns(user,
		uv.usernameNormalize,
		uv.usernameRequired,
		uv.usernameFormat,
		uv.usernameIsAvail(ctx),
		uv.emailNormalize,
		uv.emailRequired,
		uv.emailFormat,
		uv.emailIsAvail(ctx),
		uv.fullNameLength,
		uv.passwordRequired,
		uv.passwordMinLength,
		uv.passwordMaxLength,
		uv.passwordBcrypt,
		uv.passwordHashRequired)
	if err != nil {
		return err
	}
	return uv.userGorm.Create(ctx, user)
}

// Update runs validations needed for a profile edit.
func (uv *userValidator) Update(ctx context.Context, id int, upd domain.UserUpdate) (*domain.User, error) {
	if upd.FullName != nil {
		name := strings.TrimSpace(*upd.FullName)
		if utf8.RuneCountInString(name) > MaxFullNameLength {
			return nil, errs.Errorf(errs.EINVALID, "The name must not exceed %d characters.", MaxFullNameLength)
		}
		upd.FullName = &name
	}
	if upd.Bio != nil && utf8.RuneCountInString(*upd.Bio) > MaxBioLength {
		return nil, errs.Errorf(errs.EINVALID, "The bio must not exceed %d characters.", MaxBioLength)
	}
	if upd.AvatarData != nil && *upd.AvatarData != "" && !strings.HasPrefix(*upd.AvatarData, domain.InlineImagePrefix) {
		return nil, errs.Errorf(errs.EINVALID, "The avatar must be an inline image.")
	}
	return uv.userGorm.Update(ctx, id, upd)
}

// runUserValFns runs any number of functions of type userValFn on the passed in User object.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runUserValFns(user *domain.User, fns ...userValFn) error {
	for _, fn := range fns {
		if err := fn(user); err != nil {
			return err
		}
	}
	return nil
}

// A userValFn is any function that takes in a pointer to a domain.User object and returns an error.
type userValFn func(user *domain.User) error

// usernameNormalize trims the username's whitespaces.
func (uv *userValidator) usernameNormalize(user *domain.User) error {
	user.Username = strings.TrimSpace(user.Username)
	return nil
}

// usernameRequired makes sure that the username is not the empty string.
func (uv *userValidator) usernameRequired(user *domain.User) error {
	if user.Username == "" {
		return errs.Errorf(errs.EINVALID, "A username is required.")
	}
	return nil
}

// usernameFormat makes sure that the username only consists of letters, digits, dots and underscores.
func (uv *userValidator) usernameFormat(user *domain.User) error {
	if !uv.usernameRegex.MatchString(user.Username) {
		return errs.Errorf(errs.EINVALID, "The username must have 3 to 30 characters: letters, digits, '.' or '_'.")
	}
	return nil
}

// usernameIsAvail makes sure that the username is not yet taken.
func (uv *userValidator) usernameIsAvail(ctx context.Context) userValFn {
	return func(user *domain.User) error {
		_, err := uv.userGorm.byColumn(uv.db.WithContext(ctx), "username", user.Username)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return errs.Errorf(errs.ECONFLICT, "This username is already taken.")
	}
}

// emailNormalize converts the email to all lowercase and trims its whitespaces.
func (uv *userValidator) emailNormalize(user *domain.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return nil
}

// emailRequired makes sure that the email is not the empty string.
func (uv *userValidator) emailRequired(user *domain.User) error {
	if user.Email == "" {
		return errs.Errorf(errs.EINVALID, "An email address is required.")
	}
	return nil
}

// emailFormat makes sure that the email address is well-formed.
func (uv *userValidator) emailFormat(user *domain.User) error {
	if err := uv.validate.Var(user.Email, "email,max=255"); err != nil {
		return errs.Errorf(errs.EINVALID, "The email address is invalid.")
	}
	return nil
}

// emailIsAvail makes sure that the email address is not yet taken.
func (uv *userValidator) emailIsAvail(ctx context.Context) userValFn {
	return func(user *domain.User) error {
		_, err := uv.userGorm.byColumn(uv.db.WithContext(ctx), "email", user.Email)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return errs.Errorf(errs.ECONFLICT, "This email address is already taken.")
	}
}

// fullNameLength trims the display name and caps its length.
func (uv *userValidator) fullNameLength(user *domain.User) error {
	user.FullName = strings.TrimSpace(user.FullName)
	if utf8.RuneCountInString(user.FullName) > MaxFullNameLength {
		return errs.Errorf(errs.EINVALID, "The name must not exceed %d characters.", MaxFullNameLength)
	}
	return nil
}

// passwordRequired makes sure that the user's password is not the empty string.
func (uv *userValidator) passwordRequired(user *domain.User) error {
	if user.Password == "" {
		return errs.Errorf(errs.EINVALID, "A password is required.")
	}
	return nil
}

// passwordMinLength makes sure that the user's password has at least MinPasswordLength characters.
func (uv *userValidator) passwordMinLength(user *domain.User) error {
	if utf8.RuneCountInString(user.Password) < MinPasswordLength {
		return errs.Errorf(errs.EINVALID, "The password must have at least %d characters.", MinPasswordLength)
	}
	return nil
}

// passwordMaxLength makes sure that the password and pepper fit into bcrypt's input limit.
func (uv *userValidator) passwordMaxLength(user *domain.User) error {
	if limit := maxBcryptBytes - len(uv.pepper); len(user.Password) > limit {
		return errs.Errorf(errs.EINVALID, "The password must not exceed %d bytes.", limit)
	}
	return nil
}

// passwordBcrypt hashes a user's password with the pepper appended.
// It then clears the password on the user object in memory.
func (uv *userValidator) passwordBcrypt(user *domain.User) error {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(user.Password+uv.pepper), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hashedBytes)
	user.Password = ""
	return nil
}

// passwordHashRequired makes sure that the user's password hash is not the empty string.
func (uv *userValidator) passwordHashRequired(user *domain.User) error {
	if user.PasswordHash == "" {
		return errs.Errorf(errs.EINVALID, "A password is required.")
	}
	return nil
}

// ByID retrieves a User database record by ID. A legacy avatar is migrated on the way out.
func (ug *userGorm) ByID(ctx context.Context, id int) (*domain.User, error) {
	user, err := ug.byColumn(ug.db.WithContext(ctx), "id", id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Errorf(errs.ENOTFOUND, "The user does not exist.")
		}
		return nil, err
	}
	inlineAvatar(ctx, ug.db, ug.images, user)
	return user, nil
}

// ByLogin retrieves a User database record by username or email address.
func (ug *userGorm) ByLogin(ctx context.Context, login string) (*domain.User, error) {
	var user domain.User
	err := ug.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, strings.ToLower(login)).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// byColumn retrieves the first User database record whose column equals value.
func (ug *userGorm) byColumn(db *gorm.DB, column string, value interface{}) (*domain.User, error) {
	var user domain.User
	err := db.Where(column+" = ?", value).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create stores the data from the User object in a new database record.
// A unique index violation means another registration won the race for the username or email.
func (ug *userGorm) Create(ctx context.Context, user *domain.User) error {
	err := ug.db.WithContext(ctx).Create(user).Error
	if err != nil {
		if isDuplicate(err) {
			return errs.Errorf(errs.ECONFLICT, "Username or email address already exists.")
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update applies a profile edit and returns the updated user. A replaced legacy avatar
// file is removed once the new value is stored.
func (ug *userGorm) Update(ctx context.Context, id int, upd domain.UserUpdate) (*domain.User, error) {
	var user domain.User
	if err := ug.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Errorf(errs.ENOTFOUND, "The user does not exist.")
		}
		return nil, err
	}
	oldAvatar := user.Avatar

	changes := map[string]interface{}{}
	if upd.FullName != nil {
		changes["full_name"] = *upd.FullName
	}
	if upd.Bio != nil {
		changes["bio"] = *upd.Bio
	}
	if upd.RemoveAvatar {
		changes["avatar"] = ""
	} else if upd.AvatarData != nil && *upd.AvatarData != "" {
		changes["avatar"] = *upd.AvatarData
	}
	if len(changes) > 0 {
		if err := ug.db.WithContext(ctx).Model(&user).Updates(changes).Error; err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
	}
	if _, replaced := changes["avatar"]; replaced && ug.images != nil {
		if err := ug.images.RemoveLegacy(oldAvatar); err != nil {
			logger.Warn("removing legacy avatar failed", zap.Int("user_id", id), zap.Error(err))
		}
	}
	return ug.ByID(ctx, id)
}

// Profile returns the user with id along with its counters, as seen by the viewer.
func (ug *userGorm) Profile(ctx context.Context, viewerID, id int) (*domain.Profile, error) {
	user, err := ug.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	profiles, err := buildProfiles(ctx, ug.db, ug.images, viewerID, []domain.User{*user})
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &profiles[0], nil
}

// Stats returns the post, follower and following counts of a user.
func (ug *userGorm) Stats(ctx context.Context, id int) (*domain.UserStats, error) {
	db := ug.db.WithContext(ctx)
	if _, err := ug.byColumn(db, "id", id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Errorf(errs.ENOTFOUND, "The user does not exist.")
		}
		return nil, err
	}
	var stats domain.UserStats
	var err error
	if stats.PostsCount, err = countBy(db, &domain.Post{}, "user_id = ?", id); err != nil {
		return nil, err
	}
	if stats.FollowersCount, err = countBy(db, &domain.Follow{}, "following_id = ?", id); err != nil {
		return nil, err
	}
	if stats.FollowingCount, err = countBy(db, &domain.Follow{}, "follower_id = ?", id); err != nil {
		return nil, err
	}
	return &stats, nil
}

// List returns every user except the viewer, ordered by username.
func (ug *userGorm) List(ctx context.Context, viewerID int) ([]domain.Profile, error) {
	var users []domain.User
	err := ug.db.WithContext(ctx).
		Where("id <> ?", viewerID).
		Order("username ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return buildProfiles(ctx, ug.db, ug.images, viewerID, users)
}
