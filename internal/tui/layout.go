package tui

const (
	compactWidthBreakpoint  = 100
	compactHeightBreakpoint = 24
)

type uiLayout struct {
	Width  int
	Height int

	Compact bool

	HeaderHeight int
	FooterHeight int
	BodyHeight   int

	SidebarWidth int
	MainWidth    int

	CompactSidebarHeight int
	CompactMainHeight    int
}

func computeLayout(width, height int) uiLayout {
	if width < 40 {
		width = 40
	}
	if height < 14 {
		height = 14
	}

	layout := uiLayout{
		Width:        width,
		Height:       height,
		HeaderHeight: 3,
		FooterHeight: 4,
	}

	layout.Compact = width < compactWidthBreakpoint || height < compactHeightBreakpoint
	if layout.Compact {
		layout.SidebarWidth = width
		layout.MainWidth = width
		remaining := maxInt(6, height-layout.HeaderHeight-layout.FooterHeight)
		layout.CompactSidebarHeight = 3
		layout.CompactMainHeight = maxInt(4, remaining-layout.CompactSidebarHeight)
		layout.BodyHeight = layout.CompactMainHeight
		return layout
	}

	layout.BodyHeight = maxInt(6, height-layout.HeaderHeight-layout.FooterHeight)
	layout.SidebarWidth = clampInt(width*20/100, 20, 32)
	layout.MainWidth = maxInt(30, width-layout.SidebarWidth-1)
	return layout
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
