package sidebar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-risk/internal/service"
	"github.com/joeblew999/plat-risk/internal/service/servicetest"
	"github.com/joeblew999/plat-risk/internal/templates"
)

func newTestSidebar(t *testing.T, svc *service.AtlasService) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("plat-risk API", "test"))
	New(svc, templates.Must()).RegisterRoutes(api)
	return mux
}

func post(t *testing.T, h http.Handler, path, signals string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(signals))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSidebar_PatchesEverything(t *testing.T) {
	h := newTestSidebar(t, servicetest.Loaded(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sidebar", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "datastar-patch-elements")
	assert.Contains(t, body, "#controls")
	assert.Contains(t, body, "#legend")
	assert.Contains(t, body, "#datasets")
	assert.Contains(t, body, `id="dataset-tracts"`)
	assert.Contains(t, body, `data-layer="dr"`)
}

func TestSidebar_NotLoaded(t *testing.T) {
	h := newTestSidebar(t, servicetest.New(t, servicetest.Config()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sidebar", nil))
	assert.Contains(t, rec.Body.String(), "still being built")
}

func TestSelectBase(t *testing.T) {
	svc := servicetest.Loaded(t)
	h := newTestSidebar(t, svc)

	rec := post(t, h, "/api/v1/sidebar/base", `{"base":"pv"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-layer="pv"`)

	snap, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, "pv", snap.Controls.Base())
	assert.Equal(t, []string{"pv"}, snap.Viewport.Order())
}

func TestSelectBase_Errors(t *testing.T) {
	h := newTestSidebar(t, servicetest.Loaded(t))

	assert.Equal(t, http.StatusBadRequest, post(t, h, "/api/v1/sidebar/base", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, "/api/v1/sidebar/base", `{`).Code)

	rec := post(t, h, "/api/v1/sidebar/base", `{"base":"zone"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "datastar-patch-signals")
	assert.Contains(t, rec.Body.String(), "error")
}

func TestSetOverlay(t *testing.T) {
	svc := servicetest.Loaded(t)
	h := newTestSidebar(t, svc)

	require.Equal(t, http.StatusOK, post(t, h, "/api/v1/sidebar/overlay", `{"overlay":"zone","on":true}`).Code)
	snap, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, []string{"dr", "zone"}, snap.Viewport.Order())

	require.Equal(t, http.StatusOK, post(t, h, "/api/v1/sidebar/overlay", `{"overlay":"zone","on":false}`).Code)
	assert.Equal(t, []string{"dr"}, snap.Viewport.Order())
}

func TestEvents_InitialPatchAndStop(t *testing.T) {
	h := newTestSidebar(t, servicetest.Loaded(t))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sidebar/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event stream did not stop after the request ended")
	}
	assert.Contains(t, rec.Body.String(), "#controls")
}
