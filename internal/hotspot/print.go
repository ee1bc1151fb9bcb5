package hotspot

import (
	"errors"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/dishnetafrica/isp-portal/internal/models"
)

// ErrUnknownFormat reports a print format outside the supported set.
// Treated as caller input error.
var ErrUnknownFormat = errors.New("hotspot: unknown print format")

// Supported print formats.
const (
	FormatThermal = "thermal"
	FormatA4      = "a4"
	FormatCard    = "card"
)

type printData struct {
	Vouchers []models.Voucher
	Preset   Preset
}

// 58mm receipt printers: monospace, one voucher per tear-off block.
var thermalTemplate = texttemplate.Must(texttemplate.New("thermal").Parse(
	`{{range .Vouchers}}================================
        WIFI VOUCHER
================================
  CODE: {{.Code}}
  PLAN: {{.Profile}} ({{.Validity}})
  SPEED: {{$.Preset.RateLimit}}
--------------------------------
 Connect to the hotspot network
 and enter the code to log in.
================================

{{end}}`))

var a4Template = template.Must(template.New("a4").Parse(
	`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Vouchers {{.Preset.Name}}</title>
<style>
body { font-family: sans-serif; }
.grid { display: grid; grid-template-columns: repeat(3, 1fr); gap: 8mm; }
.voucher { border: 1px dashed #333; padding: 6mm; text-align: center; }
.code { font-family: monospace; font-size: 1.4em; font-weight: bold; }
</style>
</head>
<body>
<div class="grid">
{{range .Vouchers}}<div class="voucher">
<div>WiFi Voucher</div>
<div class="code">{{.Code}}</div>
<div>{{.Profile}} &middot; {{.Validity}} &middot; {{$.Preset.RateLimit}}</div>
</div>
{{end}}</div>
</body>
</html>
`))

var cardTemplate = template.Must(template.New("card").Parse(
	`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Voucher cards</title>
<style>
body { font-family: sans-serif; }
.card { width: 85.6mm; height: 53.98mm; border: 1px solid #333; border-radius: 3mm;
        padding: 5mm; page-break-after: always; }
.code { font-family: monospace; font-size: 1.6em; font-weight: bold; letter-spacing: 2px; }
</style>
</head>
<body>
{{range .Vouchers}}<div class="card">
<div>WiFi Access Card</div>
<div class="code">{{.Code}}</div>
<div>Plan: {{.Profile}} ({{.Validity}})</div>
<div>Speed: {{$.Preset.RateLimit}}</div>
</div>
{{end}}</body>
</html>
`))

// Render produces printable voucher output. The same vouchers and format
// always render the same bytes. Returns the content and its media type.
func Render(vouchers []models.Voucher, preset Preset, format string) (string, string, error) {
	const op = "hotspot.Render"

	data := printData{Vouchers: vouchers, Preset: preset}
	var buf strings.Builder

	switch format {
	case FormatThermal:
		if err := thermalTemplate.Execute(&buf, data); err != nil {
			return "", "", fmt.Errorf("%s: %w", op, err)
		}
		return buf.String(), "text/plain; charset=utf-8", nil
	case FormatA4:
		if err := a4Template.Execute(&buf, data); err != nil {
			return "", "", fmt.Errorf("%s: %w", op, err)
		}
		return buf.String(), "text/html; charset=utf-8", nil
	case FormatCard:
		if err := cardTemplate.Execute(&buf, data); err != nil {
			return "", "", fmt.Errorf("%s: %w", op, err)
		}
		return buf.String(), "text/html; charset=utf-8", nil
	default:
		return "", "", fmt.Errorf("%s: %w: %s", op, ErrUnknownFormat, format)
	}
}
