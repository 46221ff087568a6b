package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"murmur/internal/models"
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// MockPostRepository is a mock of the PostRepository interface
type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) Create(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockPostRepository) GetByID(ctx context.Context, id, currentUserID uint) (*models.Post, error) {
	args := m.Called(ctx, id, currentUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockPostRepository) GetByUserID(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	args := m.Called(ctx, userID, limit, offset, currentUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostRepository) List(ctx context.Context, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	args := m.Called(ctx, limit, offset, currentUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostRepository) Search(ctx context.Context, query string, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	args := m.Called(ctx, query, limit, offset, currentUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostRepository) Update(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockPostRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPostRepository) Like(ctx context.Context, userID, postID uint) error {
	args := m.Called(ctx, userID, postID)
	return args.Error(0)
}

func (m *MockPostRepository) Unlike(ctx context.Context, userID, postID uint) error {
	args := m.Called(ctx, userID, postID)
	return args.Error(0)
}

// asUser injects an authenticated user the way the auth middleware would.
func asUser(id uint) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("userID", id)
		return c.Next()
	}
}

func newPostTestServer(mockRepo *MockPostRepository) *Server {
	s := &Server{postRepo: mockRepo}
	s.postService = service.NewPostService(mockRepo, nil)
	return s
}

func TestGetPosts(t *testing.T) {
	app := fiber.New()
	mockRepo := new(MockPostRepository)
	s := newPostTestServer(mockRepo)

	app.Get("/posts", s.GetPosts)

	posts := []*models.Post{
		{ID: 1, Title: "First", Content: "a", UserID: 1},
		{ID: 2, Title: "Second", Content: "b", UserID: 2},
	}
	mockRepo.On("List", mock.Anything, 20, 0, uint(0)).Return(posts, nil)

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	resp, err := app.Test(req)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got []models.Post
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Len(t, got, 2)
	assert.Equal(t, "First", got[0].Title)
}

func TestGetPost_NotFound(t *testing.T) {
	app := fiber.New()
	mockRepo := new(MockPostRepository)
	s := newPostTestServer(mockRepo)

	app.Get("/posts/:id", s.GetPost)

	mockRepo.On("GetByID", mock.Anything, uint(99), uint(0)).Return(nil, gorm.ErrRecordNotFound)

	req := httptest.NewRequest(http.MethodGet, "/posts/99", nil)
	resp, err := app.Test(req)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreatePost(t *testing.T) {
	app := fiber.New()
	mockRepo := new(MockPostRepository)
	s := newPostTestServer(mockRepo)

	app.Post("/posts", asUser(1), s.CreatePost)

	t.Run("Success", func(t *testing.T) {
		mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(p *models.Post) bool {
			return p.Title == "Hello" && p.UserID == 1
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Post).ID = 5
		}).Return(nil).Once()
		mockRepo.On("GetByID", mock.Anything, uint(5), uint(1)).
			Return(&models.Post{ID: 5, Title: "Hello", Content: "World", UserID: 1}, nil).Once()

		body, _ := json.Marshal(map[string]string{"title": "Hello", "content": "World"})
		req := httptest.NewRequest(http.MethodPost, "/posts", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		assert.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var got models.Post
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, uint(5), got.ID)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Missing Title", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"content": "World"})
		req := httptest.NewRequest(http.MethodPost, "/posts", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		assert.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestUpdatePost_NotOwner(t *testing.T) {
	app := fiber.New()
	mockRepo := new(MockPostRepository)
	s := newPostTestServer(mockRepo)

	app.Put("/posts/:id", asUser(2), s.UpdatePost)

	mockRepo.On("GetByID", mock.Anything, uint(1), uint(2)).
		Return(&models.Post{ID: 1, UserID: 1, Title: "Theirs"}, nil)

	body, _ := json.Marshal(map[string]string{"title": "Mine now"})
	req := httptest.NewRequest(http.MethodPut, "/posts/1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestDeletePost_NotOwner(t *testing.T) {
	app := fiber.New()
	mockRepo := new(MockPostRepository)
	s := newPostTestServer(mockRepo)

	app.Delete("/posts/:id", asUser(2), s.DeletePost)

	mockRepo.On("GetByID", mock.Anything, uint(1), uint(2)).
		Return(&models.Post{ID: 1, UserID: 1}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/posts/1", nil)
	resp, err := app.Test(req)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestLikePost(t *testing.T) {
	app := fiber.New()
	mockRepo := new(MockPostRepository)
	s := newPostTestServer(mockRepo)

	app.Post("/posts/:id/like", asUser(3), s.LikePost)

	mockRepo.On("GetByID", mock.Anything, uint(1), uint(3)).
		Return(&models.Post{ID: 1, UserID: 1}, nil).Once()
	mockRepo.On("Like", mock.Anything, uint(3), uint(1)).Return(nil).Once()
	mockRepo.On("GetByID", mock.Anything, uint(1), uint(3)).
		Return(&models.Post{ID: 1, UserID: 1, LikesCount: 1, Liked: true}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/posts/1/like", nil)
	resp, err := app.Test(req)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.Post
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.Liked)
	assert.Equal(t, 1, got.LikesCount)
	mockRepo.AssertExpectations(t)
}
