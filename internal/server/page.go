package server

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
)

//go:embed web/index.html
var pageFS embed.FS

var pageTmpl = template.Must(template.ParseFS(pageFS, "web/index.html"))

func registerPage(e *echo.Echo, title string) {
	if title == "" {
		title = "AskDB"
	}
	e.GET("/", func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
		c.Response().WriteHeader(http.StatusOK)
		return pageTmpl.Execute(c.Response(), map[string]string{"Title": title})
	})
}
