package preferences

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDensity(t *testing.T) {
	d, err := ParseDensity(" Grid ")
	require.NoError(t, err)
	assert.Equal(t, Grid, d)

	_, err = ParseDensity("carousel")
	assert.ErrorIs(t, err, ErrUnknownDensity)
}

func TestDensityCheck(t *testing.T) {
	assert.NoError(t, Grid.Check(40))
	assert.NoError(t, List.Check(15))
	assert.ErrorIs(t, Grid.Check(15), ErrInvalidSize)
	assert.ErrorIs(t, List.Check(50), ErrInvalidSize)
	assert.ErrorIs(t, Density("x").Check(10), ErrUnknownDensity)
}

func TestServiceDefaults(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	assert.Equal(t, 40, svc.PageSize(ctx, Grid))
	assert.Equal(t, 20, svc.PageSize(ctx, List))

	require.NoError(t, svc.SetPageSize(ctx, List, 30))
	assert.Equal(t, map[Density]int{Grid: 40, List: 30}, svc.All(ctx))

	assert.ErrorIs(t, svc.SetPageSize(ctx, Grid, 7), ErrInvalidSize)
	assert.Equal(t, 40, svc.PageSize(ctx, Grid))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	_, ok, err := store.Get(ctx, Grid)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, Grid, 20))
	size, ok, err := store.Get(ctx, Grid)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 20, size)

	got, err := mr.Get(keyPrefix + "grid")
	require.NoError(t, err)
	assert.Equal(t, "20", got)
}

func TestRedisStore_Garbage(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(mr.Addr())
	require.NoError(t, err)
	require.NoError(t, mr.Set(keyPrefix+"list", "lots"))

	_, _, err = store.Get(context.Background(), List)
	assert.Error(t, err)

	// The service falls back to the default.
	assert.Equal(t, 20, NewService(store).PageSize(context.Background(), List))
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(mr.Addr())
	require.NoError(t, err)
	mr.Close()

	assert.Equal(t, 40, NewService(store).PageSize(context.Background(), Grid))
	assert.Error(t, NewService(store).SetPageSize(context.Background(), Grid, 10))
}

func TestNewRedisStore_RequiresAddr(t *testing.T) {
	store, err := NewRedisStore("")
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestHTTPHandler(t *testing.T) {
	h := NewHTTPHandler(NewService(NewMemoryStore()))

	t.Run("set", func(t *testing.T) {
		tests := []struct {
			name       string
			density    string
			body       string
			wantStatus int
		}{
			{"valid", "grid", `{"page_size":30}`, http.StatusOK},
			{"not offered", "grid", `{"page_size":25}`, http.StatusBadRequest},
			{"unknown density", "shelf", `{"page_size":30}`, http.StatusNotFound},
			{"missing size", "list", `{}`, http.StatusBadRequest},
			{"bad body", "list", `[`, http.StatusBadRequest},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodPut, "/v1/preferences/"+tt.density, strings.NewReader(tt.body))
				req.SetPathValue("density", tt.density)
				w := httptest.NewRecorder()

				h.Set(w, req)

				assert.Equal(t, tt.wantStatus, w.Code)
			})
		}
	})

	t.Run("get", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Get(w, httptest.NewRequest(http.MethodGet, "/v1/preferences", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data []densityResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 2)
		assert.Equal(t, densityResponse{Density: Grid, PageSize: 30, Allowed: []int{10, 20, 30, 40, 50}}, resp.Data[0])
		assert.Equal(t, 20, resp.Data[1].PageSize)
	})
}
