package api

import (
	"embed"
	"html/template"
	"io"
	"net/http"

	"StockForecaster/internal/domain/models"
	"StockForecaster/pkg/util"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page holds the branding shown around the dashboard.
type Page struct {
	Title      string
	Subtitle   string
	HeroImage  string
	SocialText string
	SocialURL  string
	SocialIcon string
}

// dashboardView is the data the dashboard template is executed with.
type dashboardView struct {
	Page
	Tickers         []string
	Columns         []string
	DefaultColumn   string
	DefaultStart    string
	Today           string
	DecomposePeriod int
	DecomposeModel  string
	SeasonalPeriod  int
	Horizon         int
}

// TemplateRenderer implements echo.Renderer over the embedded templates.
type TemplateRenderer struct {
	templates *template.Template
}

func NewTemplateRenderer() (*TemplateRenderer, error) {
	t, err := template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &TemplateRenderer{templates: t}, nil
}

func (r *TemplateRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// DashboardPageHandler serves the single-page dashboard.
type DashboardPageHandler struct {
	renderer *TemplateRenderer
	page     Page
	defaults Defaults
}

func NewDashboardPageHandler(renderer *TemplateRenderer, page Page, defaults Defaults) *DashboardPageHandler {
	return &DashboardPageHandler{renderer: renderer, page: page, defaults: defaults}
}

func (h *DashboardPageHandler) RegisterRoutes(e *echo.Echo) {
	e.Renderer = h.renderer
	e.GET("/", h.Index)
}

func (h *DashboardPageHandler) Index(c echo.Context) error {
	return c.Render(http.StatusOK, "dashboard.html", dashboardView{
		Page:            h.page,
		Tickers:         h.defaults.Tickers,
		Columns:         models.ValueColumns,
		DefaultColumn:   models.ColClose,
		DefaultStart:    h.defaults.DefaultStart,
		Today:           util.FormatDate(util.Today()),
		DecomposePeriod: h.defaults.DecomposePeriod,
		DecomposeModel:  h.defaults.DecomposeModel,
		SeasonalPeriod:  h.defaults.SeasonalPeriod,
		Horizon:         30,
	})
}
