package crud

import (
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"socialnet/domain"
)

// A ServicesConfig is any function that takes in a pointer to a Services
// object and returns an error. It's basically just wrapping the constructor
// method of any given crud service. It exists to be able to easily create
// the crud services using functional options in main.go.
// WithImage has to come first, since the services reading image columns pick it up.
type ServicesConfig func(*Services) error

// Services is a container object holding pointers to all the crud services.
// The crud services all share the database connection provided by Services.
type Services struct {
	db         *gorm.DB
	User       *UserService
	Session    domain.SessionService
	Post       *PostService
	Like       *LikeService
	Share      *ShareService
	Follow     *FollowService
	Comment    *CommentService
	Feed       *FeedService
	Search     *SearchService
	Image      *ImageService
	Reconciler *Reconciler
}

// NewServices returns a new Services object, containing any crud services
// it's told to create by one of the passed in ServicesConfig functions.
// It shares the passed in database connection with any crud service it creates.
func NewServices(db *gorm.DB, cfgs ...ServicesConfig) (*Services, error) {
	s := Services{
		db: db,
	}
	for _, cfg := range cfgs {
		if err := cfg(&s); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// DB returns the shared database connection.
func (s *Services) DB() *gorm.DB {
	return s.db
}

// WithImage wraps the constructor of ImageService, NewImageService.
func WithImage(uploadsDir string, quality int, post, avatar domain.Bounds) ServicesConfig {
	return func(s *Services) error {
		s.Image = NewImageService(uploadsDir, quality, post, avatar)
		return nil
	}
}

// WithUser wraps the constructor of UserService, NewUserService.
func WithUser(pepper string) ServicesConfig {
	return func(s *Services) error {
		s.User = NewUserService(s.db, pepper, s.Image)
		return nil
	}
}

// WithSession wraps the constructor of the database backed session store, NewSessionService.
func WithSession(hmacKey string, ttl time.Duration) ServicesConfig {
	return func(s *Services) error {
		s.Session = NewSessionService(s.db, hmacKey, ttl)
		return nil
	}
}

// WithRedisSession wraps the constructor of the Redis backed session store, NewRedisSessionService.
func WithRedisSession(client *redis.Client, hmacKey string, ttl time.Duration) ServicesConfig {
	return func(s *Services) error {
		s.Session = NewRedisSessionService(client, hmacKey, ttl)
		return nil
	}
}

// WithPost wraps the constructor of PostService, NewPostService.
func WithPost() ServicesConfig {
	return func(s *Services) error {
		s.Post = NewPostService(s.db, s.Image)
		return nil
	}
}

// WithLike wraps the constructor of LikeService, NewLikeService.
func WithLike() ServicesConfig {
	return func(s *Services) error {
		s.Like = NewLikeService(s.db)
		return nil
	}
}

// WithShare wraps the constructor of ShareService, NewShareService.
func WithShare() ServicesConfig {
	return func(s *Services) error {
		s.Share = NewShareService(s.db)
		return nil
	}
}

// WithFollow wraps the constructor of FollowService, NewFollowService.
func WithFollow() ServicesConfig {
	return func(s *Services) error {
		s.Follow = NewFollowService(s.db, s.Image)
		return nil
	}
}

// WithComment wraps the constructor of CommentService, NewCommentService.
func WithComment() ServicesConfig {
	return func(s *Services) error {
		s.Comment = NewCommentService(s.db, s.Image)
		return nil
	}
}

// WithFeed wraps the constructor of FeedService, NewFeedService.
func WithFeed() ServicesConfig {
	return func(s *Services) error {
		s.Feed = NewFeedService(s.db, s.Image)
		return nil
	}
}

// WithSearch wraps the constructor of SearchService, NewSearchService.
func WithSearch() ServicesConfig {
	return func(s *Services) error {
		s.Search = NewSearchService(s.db, s.Image)
		return nil
	}
}

// WithReconciler wraps the constructor of Reconciler, NewReconciler.
func WithReconciler() ServicesConfig {
	return func(s *Services) error {
		s.Reconciler = NewReconciler(s.db)
		return nil
	}
}
