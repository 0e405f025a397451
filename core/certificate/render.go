package certificate

import (
	"bytes"
	"context"
	"image"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/Mabu007/czane-beauty-academy/core"
)

// A4 landscape
const (
	Width  = 1123
	Height = 794

	centerX = Width / 2
)

type fontStyle int

const (
	regular fontStyle = iota
	bold
	italic
	boldItalic
)

var (
	fontsOnce sync.Once
	fonts     map[fontStyle]*truetype.Font
	errFonts  error
)

func loadFonts() error {
	fontsOnce.Do(func() {
		fonts = make(map[fontStyle]*truetype.Font, 4)
		for style, ttf := range map[fontStyle][]byte{
			regular:    goregular.TTF,
			bold:       gobold.TTF,
			italic:     goitalic.TTF,
			boldItalic: gobolditalic.TTF,
		} {
			f, err := truetype.Parse(ttf)
			if err != nil {
				errFonts = errors.Wrap(err, "parsing font")
				return
			}
			fonts[style] = f
		}
	})
	return errFonts
}

func face(style fontStyle, size float64) font.Face {
	return truetype.NewFace(fonts[style], &truetype.Options{Size: size})
}

// Data is what gets printed on a certificate.
type Data struct {
	StudentName string
	CourseTitle string
	Date        string
}

type Renderer struct {
	loader ImageLoader
	logger core.Logger
}

func NewRenderer(loader ImageLoader, logger core.Logger) *Renderer {
	return &Renderer{loader: loader, logger: logger}
}

// Render draws the certificate as a PNG.
// A background that cannot be loaded is replaced by a double border, it never fails the render.
func (r *Renderer) Render(ctx context.Context, data Data, tpl Template) ([]byte, error) {
	if err := loadFonts(); err != nil {
		return nil, err
	}

	var dc *gg.Context
	if bg := r.background(ctx, tpl.BackgroundURL); bg != nil {
		dc = gg.NewContextForRGBA(bg)
	} else {
		dc = gg.NewContext(Width, Height)
		drawBorder(dc, tpl)
	}
	drawText(dc, data, tpl)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, errors.Wrap(err, "encoding certificate")
	}
	return buf.Bytes(), nil
}

// background returns the template background scaled to the canvas, or nil.
func (r *Renderer) background(ctx context.Context, url string) *image.RGBA {
	if strings.TrimSpace(url) == "" || r.loader == nil {
		return nil
	}
	src, err := r.loader.Load(ctx, url)
	if err != nil {
		r.logger.Warn("certificate background failed to load, using fallback border", err, map[string]interface{}{"url": url})
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, Width, Height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func drawBorder(dc *gg.Context, tpl Template) {
	dc.SetHexColor("#FFFFFF")
	dc.Clear()

	dc.SetHexColor(tpl.TitleColor)
	dc.SetLineWidth(20)
	dc.DrawRectangle(20, 20, Width-40, Height-40)
	dc.Stroke()

	dc.SetLineWidth(2)
	dc.DrawRectangle(50, 50, Width-100, Height-100)
	dc.Stroke()
}

func drawText(dc *gg.Context, data Data, tpl Template) {
	text := func(s string, style fontStyle, size float64, color string, x, y, ax float64) {
		dc.SetFontFace(face(style, size))
		dc.SetHexColor(color)
		dc.DrawStringAnchored(s, x, y, ax, 0)
	}
	rule := func(x1, x2, y, width float64, color string) {
		dc.SetHexColor(color)
		dc.SetLineWidth(width)
		dc.DrawLine(x1, y, x2, y)
		dc.Stroke()
	}

	text(strings.ToUpper(tpl.AcademyName), bold, 50, tpl.TitleColor, centerX, 150, 0.5)
	text("Certificate of Completion", italic, 40, tpl.TextColor, centerX, 220, 0.5)
	text("This certifies that", regular, 30, "#666666", centerX, 300, 0.5)

	text(data.StudentName, boldItalic, 80, tpl.TitleColor, centerX, 390, 0.5)
	rule(centerX-300, centerX+300, 410, 1, tpl.TitleColor)

	text("Has successfully completed the course", regular, 30, "#666666", centerX, 470, 0.5)
	text(data.CourseTitle, bold, 50, tpl.TextColor, centerX, 540, 0.5)

	const bottomY = 680
	text("Date: "+data.Date, regular, 24, "#444444", 150, bottomY, 0)

	text(tpl.SignatureText, italic, 30, tpl.TitleColor, Width-150, bottomY-10, 1)
	rule(Width-400, Width-100, bottomY, 1, "#333333")
	text("Instructor / Director", regular, 16, "#333333", Width-250, bottomY+25, 0.5)
}
