package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"animedash/internal/dashboard"
	"animedash/internal/stats"
	"animedash/pkg/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Score slider bounds on the dashboard page.
const (
	sliderMin  = 8.5
	sliderMax  = 9.3
	sliderStep = 0.1
)

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"comma": func(n int) string { return humanize.Comma(int64(n)) },
	"score": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
	"episodes": func(n *int) string {
		if n == nil {
			return "?"
		}
		return strconv.Itoa(*n)
	},
	"json": func(v any) (template.JS, error) {
		b, err := json.Marshal(v)
		return template.JS(b), err
	},
}).ParseFS(templateFS, "templates/*.tmpl"))

type indexPage struct {
	View   dashboard.ViewState
	Charts Charts
	Genres []string
	Slider struct{ Min, Max, Step, Value float64 }
	Error  string
}

type detailPage struct {
	Anime *models.Detail
}

type messagePage struct {
	Title   string
	Message string
}

func (h *Handler) registerPages(r *gin.Engine) {
	withSession := r.Group("", sessionMiddleware())
	withSession.GET("/", h.showIndex)
	withSession.POST("/view/filter", h.filterForm)
	withSession.POST("/view/clear", h.clearForm)

	r.POST("/reload", h.reloadForm)
	r.GET("/anime/:id", h.showDetail)
	r.GET("/random", h.showRandom)
	r.GET("/about", func(c *gin.Context) {
		c.HTML(http.StatusOK, "about", nil)
	})
}

func (h *Handler) renderIndex(c *gin.Context, code int, vs dashboard.ViewState, errMsg string) {
	p := indexPage{
		View:   vs,
		Charts: ChartsFor(vs.Stats),
		Genres: stats.TrackedGenres,
		Error:  errMsg,
	}
	p.Slider.Min, p.Slider.Max, p.Slider.Step = sliderMin, sliderMax, sliderStep
	p.Slider.Value = sliderMin
	if vs.Active.MinScore > 0 {
		p.Slider.Value = vs.Active.MinScore
	}
	c.HTML(code, "index", p)
}

func (h *Handler) showIndex(c *gin.Context) {
	h.renderIndex(c, http.StatusOK, h.Sessions.Current(sessionID(c)), "")
}

func (h *Handler) filterForm(c *gin.Context) {
	crit, err := parseFilter(filterRequest{Kind: c.PostForm("kind"), Value: c.PostForm("value")})
	if err != nil {
		h.renderIndex(c, http.StatusBadRequest, h.Sessions.Current(sessionID(c)), err.Error())
		return
	}
	h.Sessions.Apply(sessionID(c), crit)
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) clearForm(c *gin.Context) {
	h.Sessions.Clear(sessionID(c))
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) reloadForm(c *gin.Context) {
	h.Svc.Refresh(h.reloadTimeout)
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) showDetail(c *gin.Context) {
	d, err := h.Svc.Detail(c.Request.Context(), parseID(c.Param("id")))
	if err != nil {
		code, msg := errorStatus(err)
		h.logLookupError(c, err, code)
		c.HTML(code, "message", messagePage{Title: http.StatusText(code), Message: msg})
		return
	}
	c.HTML(http.StatusOK, "detail", detailPage{Anime: d})
}

func (h *Handler) showRandom(c *gin.Context) {
	id, ok := h.Svc.PickID(h.intn)
	if !ok {
		c.HTML(http.StatusConflict, "message", messagePage{
			Title:   "Random",
			Message: "Nothing loaded yet. Come back once the ranking is ready.",
		})
		return
	}
	c.Redirect(http.StatusFound, "/anime/"+strconv.Itoa(id))
}
