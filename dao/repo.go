package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repo 通用的单表读操作，具体 DAO 通过内嵌复用
type Repo[T any] struct {
	Db *gorm.DB
}

func NewRepo[T any](db *gorm.DB) Repo[T] {
	return Repo[T]{Db: db}
}

// FindByWhere 按条件查询一条，不存在返回 gorm.ErrRecordNotFound
func (r Repo[T]) FindByWhere(ctx context.Context, where string, args ...any) (*T, error) {
	var item T
	if err := r.Db.WithContext(ctx).Where(where, args...).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r Repo[T]) FindAll(ctx context.Context, fn func(db *gorm.DB) *gorm.DB) ([]*T, error) {
	var items []*T
	db := r.Db.WithContext(ctx).Model(new(T))
	if fn != nil {
		db = fn(db)
	}
	if err := db.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r Repo[T]) IsExist(ctx context.Context, where string, args ...any) (bool, error) {
	var count int64
	err := r.Db.WithContext(ctx).Model(new(T)).Where(where, args...).Limit(1).Count(&count).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	return count > 0, nil
}
