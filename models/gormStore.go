package models

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/pipeline_backend/utils"
	"gorm.io/gorm"
)

const mysqlDuplicateEntry = 1062

// GormStore keeps records in a relational database through gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Users() UserRepository {
	return &gormUserRepository{db: s.db}
}

func (s *GormStore) Leads() Repository[Lead] {
	return &gormRepository[Lead]{db: s.db, resource: "lead"}
}

func (s *GormStore) Opportunities() Repository[Opportunity] {
	return &gormRepository[Opportunity]{db: s.db, resource: "opportunity"}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

type gormRepository[T any] struct {
	db       *gorm.DB
	resource string
}

func (r *gormRepository[T]) List(ctx context.Context, filter RecordFilter) ([]*T, error) {
	results := []*T{}
	dbCtx := r.db.WithContext(ctx)
	if filter.AssignedTo != "" {
		dbCtx = dbCtx.Where("assigned_to = ?", filter.AssignedTo)
	}
	if err := dbCtx.Order("created_at ASC").Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *gormRepository[T]) Get(ctx context.Context, id string) (*T, error) {
	var result T
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound(r.resource)
		}
		return nil, err
	}
	return &result, nil
}

func (r *gormRepository[T]) Create(ctx context.Context, rec *T) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *gormRepository[T]) Save(ctx context.Context, rec *T) error {
	// Select("*") writes zero values too, e.g. probability 0 or an emptied phone
	result := r.db.WithContext(ctx).Model(rec).Select("*").Updates(rec)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// mysql counts changed rows, not matched ones
		_, err := r.Get(ctx, r.idOf(rec))
		return err
	}
	return nil
}

func (r *gormRepository[T]) idOf(rec *T) string {
	if owned, ok := any(rec).(Owned); ok {
		return owned.GetID()
	}
	if owned, ok := any(*rec).(Owned); ok {
		return owned.GetID()
	}
	return ""
}

func (r *gormRepository[T]) Delete(ctx context.Context, id string) error {
	var m T
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.NotFound(r.resource)
	}
	return nil
}

type gormUserRepository struct {
	db *gorm.DB
}

func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.take(ctx, "email = ?", utils.NormalizeEmail(email))
}

func (r *gormUserRepository) Get(ctx context.Context, id string) (*User, error) {
	return r.take(ctx, "id = ?", id)
}

func (r *gormUserRepository) take(ctx context.Context, query string, arg string) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).Where(query, arg).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("user")
		}
		return nil, err
	}
	return &user, nil
}

func (r *gormUserRepository) Create(ctx context.Context, user *User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return utils.ErrConflict
		}
		return err
	}
	return nil
}

func (r *gormUserRepository) UpdatePassword(ctx context.Context, id string, hashed string) error {
	result := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).UpdateColumn("password", hashed)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.NotFound("user")
	}
	return nil
}

// isDuplicateKey recognises unique index violations whether or not the
// dialector translated them.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
