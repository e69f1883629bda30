package repositories_test

import (
	"context"
	"fmt"
	"testing"

	"dealhub/internal/db"
	"dealhub/internal/models"
	"dealhub/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dealRepos returns every DealRepository implementation under test.
func dealRepos(t *testing.T) map[string]repositories.DealRepository {
	gdb, err := db.OpenMemory()
	require.NoError(t, err)
	return map[string]repositories.DealRepository{
		"gorm":   repositories.NewGORMDealRepository(gdb),
		"memory": repositories.NewMockDealRepository(),
	}
}

func userRepos(t *testing.T) map[string]repositories.UserRepository {
	gdb, err := db.OpenMemory()
	require.NoError(t, err)
	return map[string]repositories.UserRepository{
		"gorm":   repositories.NewGORMUserRepository(gdb),
		"memory": repositories.NewMockUserRepository(),
	}
}

func seedDeals(t *testing.T, repo repositories.DealRepository, titles ...string) {
	for _, title := range titles {
		require.NoError(t, repo.Create(context.Background(), &models.Deal{Title: title, Price: 10}))
	}
}

func TestDealRepository_ListPagination(t *testing.T) {
	ctx := context.Background()
	for name, repo := range dealRepos(t) {
		t.Run(name, func(t *testing.T) {
			seedDeals(t, repo, "a", "b", "c", "d", "e")

			deals, total, err := repo.List(ctx, models.DealQuery{Page: 1, PageSize: 2})
			require.NoError(t, err)
			assert.Equal(t, int64(5), total)
			require.Len(t, deals, 2)
			assert.Equal(t, "a", deals[0].Title)
			assert.Equal(t, "b", deals[1].Title)

			deals, _, err = repo.List(ctx, models.DealQuery{Page: 3, PageSize: 2})
			require.NoError(t, err)
			require.Len(t, deals, 1)
			assert.Equal(t, "e", deals[0].Title)

			deals, total, err = repo.List(ctx, models.DealQuery{Page: 9, PageSize: 2})
			require.NoError(t, err)
			assert.Empty(t, deals)
			assert.Equal(t, int64(5), total)
		})
	}
}

func TestDealRepository_ListFilterIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	for name, repo := range dealRepos(t) {
		t.Run(name, func(t *testing.T) {
			seedDeals(t, repo, "Running SHOES", "Shoe rack", "Laptop", "snowshoe", "100% cotton")

			deals, total, err := repo.List(ctx, models.DealQuery{Page: 1, PageSize: 10, Name: "shoe"})
			require.NoError(t, err)
			assert.Equal(t, int64(3), total)
			assert.Len(t, deals, 3)

			// Wildcards in the filter are matched literally.
			deals, total, err = repo.List(ctx, models.DealQuery{Page: 1, PageSize: 10, Name: "%"})
			require.NoError(t, err)
			assert.Equal(t, int64(1), total)
			require.Len(t, deals, 1)
			assert.Equal(t, "100% cotton", deals[0].Title)

			// Non-ASCII letters fold the same way on every backend.
			seedDeals(t, repo, "ÉCLAIR au chocolat", "Straße Café")
			deals, total, err = repo.List(ctx, models.DealQuery{Page: 1, PageSize: 10, Name: "éclair"})
			require.NoError(t, err)
			assert.Equal(t, int64(1), total)
			require.Len(t, deals, 1)
			assert.Equal(t, "ÉCLAIR au chocolat", deals[0].Title)

			deals, total, err = repo.List(ctx, models.DealQuery{Page: 1, PageSize: 10, Name: "CAFÉ"})
			require.NoError(t, err)
			assert.Equal(t, int64(1), total)
			require.Len(t, deals, 1)
		})
	}
}

func TestDealRepository_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	for name, repo := range dealRepos(t) {
		t.Run(name, func(t *testing.T) {
			deal := &models.Deal{Title: "Old", Brand: "Acme", CreatorID: 7}
			require.NoError(t, repo.Create(ctx, deal))
			require.NotZero(t, deal.ID)

			require.NoError(t, repo.Update(ctx, deal.ID, map[string]any{"title": "New", "image2": "ref-2"}))
			got, err := repo.GetByID(ctx, deal.ID)
			require.NoError(t, err)
			assert.Equal(t, "New", got.Title)
			assert.Equal(t, "Acme", got.Brand)
			assert.Equal(t, "ref-2", got.Image2)
			assert.Equal(t, uint(7), got.CreatorID)

			// Searches follow the renamed title.
			_, total, err := repo.List(ctx, models.DealQuery{Page: 1, PageSize: 10, Name: "new"})
			require.NoError(t, err)
			assert.Equal(t, int64(1), total)
			_, total, err = repo.List(ctx, models.DealQuery{Page: 1, PageSize: 10, Name: "old"})
			require.NoError(t, err)
			assert.Equal(t, int64(0), total)

			err = repo.Update(ctx, deal.ID+100, map[string]any{"title": "x"})
			assert.ErrorIs(t, err, repositories.ErrNotFound)

			require.NoError(t, repo.Delete(ctx, deal.ID))
			_, err = repo.GetByID(ctx, deal.ID)
			assert.ErrorIs(t, err, repositories.ErrNotFound)
			assert.ErrorIs(t, repo.Delete(ctx, deal.ID), repositories.ErrNotFound)
		})
	}
}

func TestUserRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	for name, repo := range userRepos(t) {
		t.Run(name, func(t *testing.T) {
			for i := 1; i <= 2; i++ {
				u := &models.User{Email: fmt.Sprintf("u%d@example.com", i), Username: fmt.Sprintf("user%d", i), Password: "hash"}
				require.NoError(t, repo.Create(ctx, u))
				assert.NotZero(t, u.ID)
			}

			err := repo.Create(ctx, &models.User{Email: "u1@example.com", Username: "dup", Password: "hash"})
			assert.ErrorIs(t, err, repositories.ErrDuplicate)

			all, err := repo.GetAll(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.False(t, all[0].DateCreation.IsZero())

			u, err := repo.GetByEmail(ctx, "u2@example.com")
			require.NoError(t, err)
			assert.Equal(t, "user2", u.Username)

			require.NoError(t, repo.Update(ctx, u.ID, map[string]any{"username": "renamed"}))
			u, err = repo.GetByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, "renamed", u.Username)
			assert.Equal(t, "u2@example.com", u.Email)

			_, err = repo.GetByEmail(ctx, "missing@example.com")
			assert.ErrorIs(t, err, repositories.ErrNotFound)

			require.NoError(t, repo.Delete(ctx, u.ID))
			assert.ErrorIs(t, repo.Delete(ctx, u.ID), repositories.ErrNotFound)
		})
	}
}
