// Package oxidecms is the embeddable content backend: an ordered embedded
// store for post content and its secondary indices, a relational contributor
// database for users, ownership and settings, and the lifecycle orchestration
// that keeps the two consistent. Hosts wire their own transport on top; this
// package only exposes the services and the domain types they exchange.
package oxidecms

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/app"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/authpw"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/cache"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/config"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/dbadmin"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/ident"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/kvstore"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/search"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/store"
)

// Domain types exchanged with the host.
type (
	Config          = config.Config
	ID              = ident.ID
	User            = domain.User
	Role            = domain.Role
	PostDraft       = domain.PostDraft
	PostMetadata    = domain.PostMetadata
	PostSummary     = domain.PostSummary
	FullPost        = domain.FullPost
	EditLogEntry    = domain.EditLogEntry
	MediaAttachment = domain.MediaAttachment

	Service          = app.Service
	Auth             = authpw.Service
	Console          = dbadmin.Browser
	ConsoleTable     = dbadmin.Table
	SearchService    = search.Service
	ContributorStore = store.Store
)

const (
	RoleAdmin       = domain.RoleAdmin
	RoleContributor = domain.RoleContributor
)

// Error classification for collaborator responses.
var (
	IsNotFound           = domain.IsNotFound
	IsInvalidInput       = domain.IsInvalidInput
	IsForbidden          = domain.IsForbidden
	IsInvalidCredentials = domain.IsInvalidCredentials
)

func LoadConfig() Config { return config.Load() }

func NewID() ID { return ident.New() }

func ParseID(raw string) (ID, error) { return ident.Parse(raw) }

func ParseConsoleTable(name string) (ConsoleTable, error) { return dbadmin.ParseTable(name) }

// Backend bundles the wired services a host mounts endpoints on.
type Backend struct {
	Posts        *Service
	Auth         *Auth
	Console      *Console
	Search       *SearchService
	Contributors *ContributorStore
	AdminPrefix  *config.AdminPrefix

	db      *sql.DB
	content *kvstore.DB
	cache   *cache.PostCache
	meili   *search.Meili
	log     *logrus.Logger
}

// Open connects both stores, applies migrations and wires every service.
// Redis and Meilisearch are attached only when configured; their absence
// degrades caching and search, never post lifecycle.
func Open(ctx context.Context, cfg Config, logger *logrus.Logger) (*Backend, error) {
	if logger == nil {
		logger = logrus.New()
	}

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.ApplyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	rel := store.New(db)

	content, err := kvstore.Open(cfg.ContentDir, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	prefix, err := config.NewAdminPrefix(cfg.AdminURLPrefix)
	if err != nil {
		content.Close()
		db.Close()
		return nil, err
	}

	var postCache *cache.PostCache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		postCache, err = cache.NewPostCache(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			logger.WithError(err).Warn("redis unreachable, post caching disabled")
			postCache = nil
		}
	}

	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
	}
	searchSvc := search.NewService(meili, content, logger)

	auth := authpw.NewService(rel)

	var posts *Service
	if postCache != nil {
		posts = app.NewService(content, rel, postCache, searchSvc, prefix, logger)
	} else {
		posts = app.NewService(content, rel, nil, searchSvc, prefix, logger)
	}
	if err := posts.RestoreAdminPrefix(ctx); err != nil {
		logger.WithError(err).Warn("could not restore persisted admin prefix")
	}

	return &Backend{
		Posts:        posts,
		Auth:         auth,
		Console:      dbadmin.NewBrowser(content, rel, auth, logger),
		Search:       searchSvc,
		Contributors: rel,
		AdminPrefix:  prefix,
		db:           db,
		content:      content,
		cache:        postCache,
		meili:        meili,
		log:          logger,
	}, nil
}

// Bootstrap creates the initial admin account when the user table is empty.
// Without a configured bootstrap password it only logs a reminder, so a
// fresh deployment never starts with a default credential.
func (b *Backend) Bootstrap(ctx context.Context, cfg Config) error {
	users, err := b.Contributors.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}
	if cfg.AdminPassword == "" {
		b.log.Warn("no users exist and no bootstrap admin password configured")
		return nil
	}
	admin, err := b.Auth.CreateUser(ctx, cfg.AdminUsername, cfg.AdminPassword, domain.RoleAdmin)
	if err != nil {
		return err
	}
	b.log.WithField("username", admin.Username).Info("bootstrap admin created")
	return nil
}

// Reindex pushes every published post into the external search engine.
func (b *Backend) Reindex(ctx context.Context) error {
	const page = 100
	for offset := 0; ; offset += page {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := b.Posts.LatestPosts(page, offset)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		b.Search.ReindexAll(batch)
		if len(batch) < page {
			return nil
		}
	}
}

func (b *Backend) Close() error {
	if b.meili != nil {
		b.meili.Close()
	}
	var errs []error
	if b.cache != nil {
		errs = append(errs, b.cache.Close())
	}
	errs = append(errs, b.content.Close(), b.db.Close())
	return errors.Join(errs...)
}
