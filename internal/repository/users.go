package repository

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HanZheTing7/ReservelyGithub/internal/model"
)

// UserRepository handles persistence for user profiles.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// GetProfile returns a profile or model.ErrNotFound.
func (r *UserRepository) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	query, args, err := build(dialect.From(tableUsers).
		Select("id", "name", "gender", "age", "profile_image_url", "phone_number").
		Where(goqu.C("id").Eq(userID)).
		Prepared(true))
	if err != nil {
		return nil, err
	}
	var p model.UserProfile
	err = r.db.QueryRow(ctx, query, args...).
		Scan(&p.ID, &p.Name, &p.Gender, &p.Age, &p.ProfileImageURL, &p.PhoneNumber)
	if err != nil {
		return nil, notFoundOr(err, "get profile")
	}
	return &p, nil
}

// UpsertProfile creates or replaces a profile.
func (r *UserRepository) UpsertProfile(ctx context.Context, p *model.UserProfile) error {
	query, args, err := build(dialect.Insert(tableUsers).
		Rows(goqu.Record{
			"id":                p.ID,
			"name":              p.Name,
			"gender":            p.Gender,
			"age":               p.Age,
			"profile_image_url": p.ProfileImageURL,
			"phone_number":      p.PhoneNumber,
		}).
		OnConflict(goqu.DoUpdate("id", goqu.Record{
			"name":              goqu.L("EXCLUDED.name"),
			"gender":            goqu.L("EXCLUDED.gender"),
			"age":               goqu.L("EXCLUDED.age"),
			"profile_image_url": goqu.L("EXCLUDED.profile_image_url"),
			"phone_number":      goqu.L("EXCLUDED.phone_number"),
		})).
		Prepared(true))
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
