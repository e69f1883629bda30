package services_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"dealhub/internal/models"
	"dealhub/internal/repositories"
	"dealhub/internal/storage"
	"dealhub/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type dealFixture struct {
	svc   *services.DealService
	repo  *repositories.MockDealRepository
	store *storage.DiskStore
	dir   string
}

func newDealFixture(t *testing.T, events services.EventPublisher, ownership bool) dealFixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewDiskStore(dir)
	require.NoError(t, err)
	repo := repositories.NewMockDealRepository()
	svc := services.NewDealService(services.DealServiceConfig{
		Deals:          repo,
		Images:         store,
		Events:         events,
		Strategy:       "disk",
		OwnershipCheck: ownership,
	})
	return dealFixture{svc: svc, repo: repo, store: store, dir: dir}
}

func png(name string) services.ImageFile {
	return services.ImageFile{Name: name, ContentType: "image/png", Data: pngBytes}
}

func TestDealService_ListPaging(t *testing.T) {
	ctx := context.Background()
	f := newDealFixture(t, nil, true)
	owner := &models.Claims{ID: 1}
	for _, title := range []string{"Red shoe", "Blue SHOE", "Laptop", "Phone", "Shoelace"} {
		_, err := f.svc.Create(ctx, owner, models.DealInput{Title: strPtr(title)}, nil)
		require.NoError(t, err)
	}

	page, err := f.svc.List(ctx, 1, 2, "")
	require.NoError(t, err)
	assert.Len(t, page.Deals, 2)
	assert.Equal(t, 3, page.TotalPages)

	page, err = f.svc.List(ctx, 3, 2, "")
	require.NoError(t, err)
	assert.Len(t, page.Deals, 1)

	page, err = f.svc.List(ctx, 1, 2, "shoe")
	require.NoError(t, err)
	assert.Len(t, page.Deals, 2)
	assert.Equal(t, 2, page.TotalPages)

	page, err = f.svc.List(ctx, 1, 2, "nothing matches")
	require.NoError(t, err)
	assert.Empty(t, page.Deals)
	assert.Equal(t, 0, page.TotalPages)

	for _, bad := range [][2]int{{0, 2}, {1, 0}, {1, services.MaxPageSize + 1}} {
		_, err = f.svc.List(ctx, bad[0], bad[1], "")
		assert.ErrorIs(t, err, services.ErrValidation, "page=%d pageSize=%d", bad[0], bad[1])
	}
}

func TestDealService_CreateTakesCreatorFromToken(t *testing.T) {
	ctx := context.Background()
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e models.Event) bool {
		return e.Type == models.EventDealCreated
	})).Return(nil).Once()
	f := newDealFixture(t, pub, true)

	spoofed := uint(99)
	deal, err := f.svc.Create(ctx, &models.Claims{ID: 5}, models.DealInput{
		Title:     strPtr("Headphones"),
		StartDate: strPtr("2024-05-01"),
		CreatorID: &spoofed,
	}, []services.ImageFile{png("a.png"), png("b.png")})
	require.NoError(t, err)
	pub.AssertExpectations(t)

	assert.Equal(t, uint(5), deal.CreatorID)
	require.NotNil(t, deal.StartDate)
	assert.Equal(t, 2024, deal.StartDate.Year())
	assert.Nil(t, deal.EndDate)

	stored, err := f.svc.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Regexp(t, fmt.Sprintf(`^%d-\d+\.png$`, deal.ID), stored.Image1)
	assert.NotEmpty(t, stored.Image2)
	assert.Empty(t, stored.Image3)

	img, err := f.svc.ResolveImage(ctx, deal.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, img.Data)

	_, err = f.svc.ResolveImage(ctx, deal.ID, 3)
	assert.ErrorIs(t, err, services.ErrNotFound)
	_, err = f.svc.ResolveImage(ctx, deal.ID, 4)
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestDealService_CreateRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f := newDealFixture(t, nil, true)
	owner := &models.Claims{ID: 1}

	_, err := f.svc.Create(ctx, owner, models.DealInput{}, nil)
	assert.ErrorIs(t, err, services.ErrValidation)

	tooMany := []services.ImageFile{png("1.png"), png("2.png"), png("3.png"), png("4.png")}
	_, err = f.svc.Create(ctx, owner, models.DealInput{Title: strPtr("x")}, tooMany)
	assert.ErrorIs(t, err, services.ErrValidation)

	text := services.ImageFile{Name: "notes.txt", ContentType: "text/plain", Data: []byte("hello")}
	_, err = f.svc.Create(ctx, owner, models.DealInput{Title: strPtr("x")}, []services.ImageFile{text})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = f.svc.Create(ctx, owner, models.DealInput{Title: strPtr("x"), EndDate: strPtr("next tuesday")}, nil)
	assert.ErrorIs(t, err, services.ErrValidation)

	// Nothing was written.
	page, err := f.svc.List(ctx, 1, 10, "")
	require.NoError(t, err)
	assert.Empty(t, page.Deals)
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDealService_Ownership(t *testing.T) {
	ctx := context.Background()
	f := newDealFixture(t, nil, true)
	owner := &models.Claims{ID: 1}
	stranger := &models.Claims{ID: 2}

	deal, err := f.svc.Create(ctx, owner, models.DealInput{Title: strPtr("Mine")}, nil)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, stranger, deal.ID, models.DealInput{Title: strPtr("Yours")}, nil)
	assert.ErrorIs(t, err, services.ErrForbidden)
	assert.ErrorIs(t, f.svc.Delete(ctx, stranger, deal.ID), services.ErrForbidden)
	_, err = f.svc.UploadImages(ctx, stranger, deal.ID, []services.ImageFile{png("a.png")})
	assert.ErrorIs(t, err, services.ErrForbidden)

	updated, err := f.svc.Update(ctx, owner, deal.ID, models.DealInput{Brand: strPtr("Acme")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Mine", updated.Title)
	assert.Equal(t, "Acme", updated.Brand)

	open := newDealFixture(t, nil, false)
	deal, err = open.svc.Create(ctx, owner, models.DealInput{Title: strPtr("Shared")}, nil)
	require.NoError(t, err)
	_, err = open.svc.Update(ctx, stranger, deal.ID, models.DealInput{Title: strPtr("Edited")}, nil)
	assert.NoError(t, err)
}

func TestDealService_UpdateReplacesImages(t *testing.T) {
	ctx := context.Background()
	f := newDealFixture(t, nil, true)
	owner := &models.Claims{ID: 1}

	deal, err := f.svc.Create(ctx, owner, models.DealInput{Title: strPtr("Camera")}, []services.ImageFile{png("a.png"), png("b.png")})
	require.NoError(t, err)
	oldFirst := deal.Image1

	updated, err := f.svc.Update(ctx, owner, deal.ID, models.DealInput{}, []services.ImageFile{png("c.png")})
	require.NoError(t, err)
	assert.NotEqual(t, oldFirst, updated.Image1)
	assert.Equal(t, deal.Image2, updated.Image2)

	_, err = os.Stat(filepath.Join(f.dir, oldFirst))
	assert.True(t, os.IsNotExist(err))
}

func TestDealService_DeleteWithoutBrokerRemovesImages(t *testing.T) {
	ctx := context.Background()
	f := newDealFixture(t, nil, true)
	owner := &models.Claims{ID: 1}

	deal, err := f.svc.Create(ctx, owner, models.DealInput{Title: strPtr("Lamp")}, []services.ImageFile{png("a.png")})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, owner, deal.ID))
	_, err = f.svc.Get(ctx, deal.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, owner, deal.ID), services.ErrNotFound)

	_, err = f.store.Resolve(ctx, deal.Image1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDealService_DeletePublishesImageRefs(t *testing.T) {
	ctx := context.Background()
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e models.Event) bool {
		return e.Type == models.EventDealCreated
	})).Return(nil)
	f := newDealFixture(t, pub, true)
	owner := &models.Claims{ID: 1}

	deal, err := f.svc.Create(ctx, owner, models.DealInput{Title: strPtr("Lamp")}, []services.ImageFile{png("a.png")})
	require.NoError(t, err)

	var published models.Event
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e models.Event) bool {
		return e.Type == models.EventDealDeleted
	})).Run(func(args mock.Arguments) {
		published = args.Get(1).(models.Event)
	}).Return(nil).Once()

	require.NoError(t, f.svc.Delete(ctx, owner, deal.ID))
	pub.AssertExpectations(t)
	assert.Equal(t, deal.ID, published.DealID)
	assert.Equal(t, []string{deal.Image1}, published.ImageRefs)

	// The image stays until the consumer handles the event.
	_, err = f.store.Resolve(ctx, deal.Image1)
	require.NoError(t, err)

	cleanup := services.NewImageCleanup(f.store)
	require.NoError(t, cleanup.Handle(ctx, published))
	_, err = f.store.Resolve(ctx, deal.Image1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Unrelated events are ignored.
	assert.NoError(t, cleanup.Handle(ctx, models.Event{Type: models.EventUserDeleted, ImageRefs: []string{"x"}}))
}

func TestDealService_UploadImages(t *testing.T) {
	ctx := context.Background()
	f := newDealFixture(t, nil, true)
	owner := &models.Claims{ID: 1}

	refs, err := f.svc.UploadImages(ctx, owner, 0, []services.ImageFile{png("a.png"), png("b.png")})
	require.NoError(t, err)
	assert.Len(t, refs, 2)

	deal, err := f.svc.Create(ctx, owner, models.DealInput{Title: strPtr("Bike")}, nil)
	require.NoError(t, err)
	refs, err = f.svc.UploadImages(ctx, owner, deal.ID, []services.ImageFile{png("a.png")})
	require.NoError(t, err)
	got, err := f.svc.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, refs[0], got.Image1)

	_, err = f.svc.UploadImages(ctx, owner, 0, nil)
	assert.ErrorIs(t, err, services.ErrValidation)
	_, err = f.svc.UploadImages(ctx, owner, deal.ID+50, []services.ImageFile{png("a.png")})
	assert.ErrorIs(t, err, services.ErrNotFound)
}
