package monitorHandler

import (
	"bytes"
	_ "embed"
	"html/template"

	"github.com/gofiber/fiber/v2"
)

//go:embed dashboard.html
var dashboardHTML string

var dashboardTmpl = template.Must(template.New("dashboard").Parse(dashboardHTML))

// Dashboard serves the operator page: the live relay plus the safety panel fed
// by the websocket.
func (h *MonitorHandler) Dashboard(ctx *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, struct{ StreamPort string }{h.streamPort}); err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return ctx.Status(fiber.StatusOK).Send(buf.Bytes())
}
