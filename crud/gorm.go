package crud

import (
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"socialnet/domain"
	"socialnet/errs"
)

// tracer opens spans around the operations that touch several tables at once.
var tracer = otel.Tracer("socialnet/crud")

// isDuplicate reports whether err is a unique constraint violation. gorm translates these
// to ErrDuplicatedKey when TranslateError is on; the message checks cover connections
// opened without it.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// isCheckViolation reports whether err is a CHECK constraint violation.
func isCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "CHECK constraint failed") ||
		strings.Contains(msg, "violates check constraint")
}

// likePattern wraps a search term for a case-insensitive substring match.
// LIKE wildcards in the term are escaped so they match literally.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(term)) + "%"
}

// countBy counts the rows of model matching the query.
func countBy(db *gorm.DB, model interface{}, query string, args ...interface{}) (int64, error) {
	var count int64
	err := db.Model(model).Where(query, args...).Count(&count).Error
	return count, err
}

// postExists returns a not found error unless the post with id exists.
func postExists(db *gorm.DB, id int) error {
	n, err := countBy(db, &domain.Post{}, "id = ?", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.Errorf(errs.ENOTFOUND, "The post does not exist.")
	}
	return nil
}

// userExists returns a not found error unless the user with id exists.
func userExists(db *gorm.DB, id int) error {
	n, err := countBy(db, &domain.User{}, "id = ?", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.Errorf(errs.ENOTFOUND, "The user does not exist.")
	}
	return nil
}
