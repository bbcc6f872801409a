package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"animedash/internal/archive"
	"animedash/internal/dashboard"
	"animedash/internal/jikan"
	"animedash/pkg/models"
)

type fakeSource struct {
	raw     []jikan.RawAnime
	topErr  error
	detail  map[int]*models.Detail
	animErr error
	lookups atomic.Int32
}

func (f *fakeSource) Top(ctx context.Context) ([]jikan.RawAnime, error) {
	return f.raw, f.topErr
}

func (f *fakeSource) Anime(ctx context.Context, id int) (*models.Detail, error) {
	f.lookups.Add(1)
	if f.animErr != nil {
		return nil, f.animErr
	}
	if d, ok := f.detail[id]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: anime %d", jikan.ErrNotFound, id)
}

type fakeLister struct {
	revs      []archive.Revision
	requested []int
}

func (f *fakeLister) List(ctx context.Context, limit int) ([]archive.Revision, error) {
	f.requested = append(f.requested, limit)
	return f.revs, nil
}

func ptr[T any](v T) *T { return &v }

func rawAnime(id, rank int, title string, score float64, genres ...string) jikan.RawAnime {
	a := jikan.RawAnime{MalID: id, Rank: ptr(rank), Title: title, Type: "TV", Score: ptr(score), Members: 1000 * id}
	for _, g := range genres {
		a.Genres = append(a.Genres, jikan.Resource{Name: g})
	}
	return a
}

func exampleSource() *fakeSource {
	return &fakeSource{
		raw: []jikan.RawAnime{
			rawAnime(2, 2, "Cowboy Fly", 9.0, "Drama"),
			rawAnime(1, 1, "Bebop", 8.8, "Action"),
		},
		detail: map[int]*models.Detail{
			1: {Record: models.Record{ID: 1, Rank: 1, Title: "Bebop", Score: 8.8}, Synopsis: "Bounty hunters."},
			2: {Record: models.Record{ID: 2, Rank: 2, Title: "Cowboy Fly", Score: 9.0}, Synopsis: "Flies."},
		},
	}
}

type testServer struct {
	router *gin.Engine
	svc    *dashboard.Service
	src    *fakeSource
}

func newTestServer(t *testing.T, src *fakeSource, load bool, opts ...Option) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := dashboard.NewService(src, zap.NewNop(), dashboard.WithDetailTimeout(time.Second))
	if load {
		require.NoError(t, svc.Load(context.Background()))
	}
	sessions, err := dashboard.NewSessions(svc, 16)
	require.NoError(t, err)

	opts = append([]Option{WithRand(func(int) int { return 0 })}, opts...)
	r := gin.New()
	NewHandler(svc, sessions, zap.NewNop(), opts...).RegisterRoutes(r)
	return &testServer{router: r, svc: svc, src: src}
}

func (s *testServer) do(method, path string, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		if strings.HasPrefix(body, "{") {
			req.Header.Set("Content-Type", "application/json")
		} else {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func sessionCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", sessionCookie)
	return nil
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func viewIDs(vs dashboard.ViewState) []int {
	ids := make([]int, 0, len(vs.View))
	for _, r := range vs.View {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestStatus_BeforeAndAfterLoad(t *testing.T) {
	s := newTestServer(t, exampleSource(), false)

	w := s.do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "loading", body["status"])
	assert.EqualValues(t, 0, body["count"])

	require.NoError(t, s.svc.Load(context.Background()))
	body = decode[map[string]any](t, s.do(http.MethodGet, "/api/status", ""))
	assert.Equal(t, "ready", body["status"])
	assert.EqualValues(t, 2, body["count"])
	assert.EqualValues(t, 1, body["revision"])
}

func TestStatus_FailedCarriesReason(t *testing.T) {
	src := exampleSource()
	src.topErr = fmt.Errorf("%w: connection refused", jikan.ErrUnavailable)
	s := newTestServer(t, src, false)
	require.Error(t, s.svc.Load(context.Background()))

	body := decode[map[string]any](t, s.do(http.MethodGet, "/api/status", ""))
	assert.Equal(t, "failed", body["status"])
	assert.Contains(t, body["reason"], "unable to load the ranking")
}

func TestReload_Accepted(t *testing.T) {
	s := newTestServer(t, exampleSource(), false)

	w := s.do(http.MethodPost, "/api/reload", "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		return s.svc.State().Status == dashboard.StatusReady
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStats_EmptyMeansAreNull(t *testing.T) {
	s := newTestServer(t, exampleSource(), false)

	body := decode[map[string]any](t, s.do(http.MethodGet, "/api/stats", ""))
	assert.EqualValues(t, 0, body["count"])
	assert.Nil(t, body["average_score"])
	assert.Nil(t, body["average_popularity"])
}

func TestStats_Loaded(t *testing.T) {
	s := newTestServer(t, exampleSource(), true)

	st := decode[models.Statistics](t, s.do(http.MethodGet, "/api/stats", ""))
	assert.Equal(t, 2, st.Count)
	require.True(t, st.AverageScore.Valid)
	assert.InDelta(t, 8.9, st.AverageScore.Value, 1e-9)
}

func TestCharts(t *testing.T) {
	s := newTestServer(t, exampleSource(), true)

	ch := decode[Charts](t, s.do(http.MethodGet, "/api/charts", ""))
	assert.Equal(t, []string{"Shoujo/Josei", "Shounen/Seinen"}, ch.Demographics.Labels)
	assert.Equal(t, []string{"Action", "Romance", "Drama", "Comedy"}, ch.Genres.Labels)
	assert.Equal(t, []int{1, 0, 1, 0}, ch.Genres.Data)
}

func TestView_SessionsFilterIndependently(t *testing.T) {
	s := newTestServer(t, exampleSource(), true)

	w := s.do(http.MethodGet, "/api/view", "")
	require.Equal(t, http.StatusOK, w.Code)
	alice := sessionCookieFrom(t, w)
	assert.Equal(t, []int{1, 2}, viewIDs(decode[dashboard.ViewState](t, w)))

	w = s.do(http.MethodPost, "/api/view/filter", `{"kind":"title","value":"cow"}`, alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{2}, viewIDs(decode[dashboard.ViewState](t, w)))

	// a filter replaces the previous one
	w = s.do(http.MethodPost, "/api/view/filter", `{"kind":"genre","value":"Action"}`, alice)
	assert.Equal(t, []int{1}, viewIDs(decode[dashboard.ViewState](t, w)))

	w = s.do(http.MethodGet, "/api/view", "")
	assert.Equal(t, []int{1, 2}, viewIDs(decode[dashboard.ViewState](t, w)), "fresh session sees the identity view")

	w = s.do(http.MethodGet, "/api/view", "", alice)
	vs := decode[dashboard.ViewState](t, w)
	assert.Equal(t, []int{1}, viewIDs(vs))
	assert.Equal(t, "Action", vs.Active.Genre)

	w = s.do(http.MethodPost, "/api/view/clear", "", alice)
	assert.Equal(t, []int{1, 2}, viewIDs(decode[dashboard.ViewState](t, w)))
}

func TestView_ScoreThreshold(t *testing.T) {
	s := newTestServer(t, exampleSource(), true)

	w := s.do(http.MethodPost, "/api/view/filter", `{"kind":"score","value":"8.9"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{2}, viewIDs(decode[dashboard.ViewState](t, w)))
}

func TestView_InvalidFilter(t *testing.T) {
	s := newTestServer(t, exampleSource(), true)

	for _, body := range []string{
		`{"kind":"score","value":"eleven"}`,
		`{"kind":"score","value":"11"}`,
		`{"kind":"colour","value":"red"}`,
		`{not json`,
	} {
		w := s.do(http.MethodPost, "/api/view/filter", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestView_MalformedCookieReplaced(t *testing.T) {
	s := newTestServer(t, exampleSource(), true)

	w := s.do(http.MethodGet, "/api/view", "", &http.Cookie{Name: sessionCookie, Value: "not-a-uuid"})
	c := sessionCookieFrom(t, w)
	assert.NotEqual(t, "not-a-uuid", c.Value)
}

func TestDetail_StatusCodes(t *testing.T) {
	src := exampleSource()
	s := newTestServer(t, src, true)

	w := s.do(http.MethodGet, "/api/anime/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	d := decode[models.Detail](t, w)
	assert.Equal(t, "Bebop", d.Title)
	assert.Equal(t, "Bounty hunters.", d.Synopsis)

	before := src.lookups.Load()
	for _, id := range []string{"0", "-3", "abc"} {
		w = s.do(http.MethodGet, "/api/anime/"+id, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, id)
	}
	assert.Equal(t, before, src.lookups.Load(), "invalid ids must not reach the API")

	w = s.do(http.MethodGet, "/api/anime/77", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	src.animErr = fmt.Errorf("%w: timeout", jikan.ErrUnavailable)
	w = s.do(http.MethodGet, "/api/anime/1", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestRandom(t *testing.T) {
	s := newTestServer(t, exampleSource(), false)

	w := s.do(http.MethodGet, "/api/random", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	require.NoError(t, s.svc.Load(context.Background()))
	w = s.do(http.MethodGet, "/api/random", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[models.Detail](t, w).ID)
}

func TestRevisions(t *testing.T) {
	s := newTestServer(t, exampleSource(), true)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/revisions", "").Code)

	revs := []archive.Revision{{ID: "r1", RecordCount: 2}}
	s = newTestServer(t, exampleSource(), true, WithArchive(&fakeLister{revs: revs}))
	w := s.do(http.MethodGet, "/api/revisions?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Items []archive.Revision `json:"items"`
		Limit int                `json:"limit"`
	}](t, w)
	assert.Equal(t, 5, body.Limit)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "r1", body.Items[0].ID)
}

func TestRevisions_LimitMatchesArchive(t *testing.T) {
	lister := &fakeLister{}
	s := newTestServer(t, exampleSource(), true, WithArchive(lister))

	for _, tc := range []struct {
		query string
		want  int
	}{
		{"limit=150", 150},
		{"limit=1000", archive.MaxListLimit},
		{"limit=0", archive.DefaultListLimit},
		{"", archive.DefaultListLimit},
	} {
		lister.requested = nil
		w := s.do(http.MethodGet, "/api/revisions?"+tc.query, "")
		require.Equal(t, http.StatusOK, w.Code, tc.query)

		body := decode[struct {
			Limit int `json:"limit"`
		}](t, w)
		assert.Equal(t, tc.want, body.Limit, tc.query)
		assert.Equal(t, []int{tc.want}, lister.requested, tc.query)
	}
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{dashboard.ErrInvalidIdentifier, http.StatusBadRequest},
		{fmt.Errorf("detail 5: %w", jikan.ErrNotFound), http.StatusNotFound},
		{dashboard.ErrNoSelection, http.StatusConflict},
		{fmt.Errorf("%w: %w", jikan.ErrUnavailable, context.DeadlineExceeded), http.StatusBadGateway},
		{errors.New("boom"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		code, msg := errorStatus(tc.err)
		assert.Equal(t, tc.code, code, tc.err.Error())
		assert.NotEmpty(t, msg)
	}
}

func TestPages_Index(t *testing.T) {
	s := newTestServer(t, exampleSource(), true)

	w := s.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Cowboy Fly")
	assert.Contains(t, body, "Average rating: 8.90")
	assert.Contains(t, body, `href="/anime/1"`)
	assert.Less(t, strings.Index(body, "Bebop"), strings.Index(body, "Cowboy Fly"), "table is in rank order")
}

func TestPages_LoadingAndFailedAreDistinct(t *testing.T) {
	s := newTestServer(t, exampleSource(), false)
	loading := s.do(http.MethodGet, "/", "").Body.String()
	assert.Contains(t, loading, "Loading the ranking")
	assert.NotContains(t, loading, `action="/reload"`)

	src := exampleSource()
	src.topErr = fmt.Errorf("%w: connection refused", jikan.ErrUnavailable)
	s = newTestServer(t, src, false)
	require.Error(t, s.svc.Load(context.Background()))

	failed := s.do(http.MethodGet, "/", "").Body.String()
	assert.Contains(t, failed, "unable to load the ranking")
	assert.Contains(t, failed, `action="/reload"`)
	assert.NotContains(t, failed, "Loading the ranking")
}

func TestPages_FilterFormRoundTrip(t *testing.T) {
	s := newTestServer(t, exampleSource(), true)

	first := s.do(http.MethodGet, "/", "")
	cookie := sessionCookieFrom(t, first)

	form := url.Values{"kind": {"genre"}, "value": {"Drama"}}.Encode()
	w := s.do(http.MethodPost, "/view/filter", form, cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	body := s.do(http.MethodGet, "/", "", cookie).Body.String()
	assert.Contains(t, body, "Filter: genre Drama")
	assert.NotContains(t, body, `href="/anime/1"`)

	form = url.Values{"kind": {"score"}, "value": {"x"}}.Encode()
	w = s.do(http.MethodPost, "/view/filter", form, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not a number")
}

func TestPages_Random(t *testing.T) {
	s := newTestServer(t, exampleSource(), false)
	w := s.do(http.MethodGet, "/random", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Nothing loaded yet")

	require.NoError(t, s.svc.Load(context.Background()))
	w = s.do(http.MethodGet, "/random", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/anime/2", w.Header().Get("Location"))
}

func TestPages_Detail(t *testing.T) {
	s := newTestServer(t, exampleSource(), true)

	w := s.do(http.MethodGet, "/anime/2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Flies.")

	w = s.do(http.MethodGet, "/anime/zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid anime id")
}

func TestPages_About(t *testing.T) {
	s := newTestServer(t, exampleSource(), false)
	w := s.do(http.MethodGet, "/about", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "MyAnimeList")
}
