package app

import (
	"image/color"

	"xsection-editor/internal/plot"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// EditorTheme is the default fyne theme with the plot palette on top: the
// primary colour is the section line, the selection matches the selected
// point and warnings use the bank colour.
type EditorTheme struct{}

var _ fyne.Theme = (*EditorTheme)(nil)

func (t *EditorTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary:
		return opaque(plot.SectionColor, 0xFF)
	case theme.ColorNameSelection:
		return opaque(plot.SelectionColor, 0x80)
	case theme.ColorNameWarning:
		return opaque(plot.BankColor, 0xFF)
	default:
		return theme.DefaultTheme().Color(name, variant)
	}
}

// opaque converts a plot colour, which is fully opaque, to NRGBA with alpha a.
func opaque(c color.RGBA, a uint8) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: a}
}

func (t *EditorTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *EditorTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *EditorTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameText:
		return 13 // denser sample table
	case theme.SizeNameInnerPadding:
		return 6
	default:
		return theme.DefaultTheme().Size(name)
	}
}
