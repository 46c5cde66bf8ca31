package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/gearhaus/market-runtime/internal/dedup"
	"github.com/gearhaus/market-runtime/internal/nav"
)

func (m model) renderView() string {
	if m.quitting {
		return "market-runtime tui closed\n"
	}

	t := newTheme()
	layout := computeLayout(m.width, m.height)
	if layout.Compact {
		return m.renderCompactView(t, layout)
	}

	header := m.renderHeader(t, layout)
	sidebar := m.renderSidebar(t, layout)
	workbench := m.renderWorkbench(t, layout)
	footer := m.renderFooter(t, layout)

	sep := t.panelSubtle.Render("│")
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, sep, workbench)
	ui := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	return t.appBG.Width(layout.Width).Height(layout.Height).Render(ui)
}

func (m model) renderCompactView(t theme, layout uiLayout) string {
	header := m.renderHeader(t, layout)
	sidebar := m.renderSidebar(t, layout)
	main := m.renderWorkbench(t, layout)
	footer := m.renderFooter(t, layout)

	content := lipgloss.JoinVertical(lipgloss.Left, header, sidebar, main, footer)
	return t.appBG.Width(layout.Width).Height(layout.Height).Render(content)
}

func (m model) renderHeader(t theme, layout uiLayout) string {
	statusChip := t.panelSuccess.Render("READY")
	if m.errorText != "" {
		statusChip = t.panelError.Render("ERROR")
	} else if m.orchestrator.Loading() {
		statusChip = t.panelWarn.Render("LOADING")
	}

	style := sizedStyle(t.headerBox, layout.Width, layout.HeaderHeight)
	contentWidth := innerWidth(t.headerBox, layout.Width)

	userText := "guest"
	if user, err := m.orchestrator.CurrentUser(context.Background()); err == nil {
		userText = user.DisplayName
		if userText == "" {
			userText = user.ID
		}
	}

	line1 := fillLine(t.brand.Render("Gearhaus Marketplace"), statusChip, contentWidth)
	line2 := fillLine(
		t.headerSub.Render(trimToWidth("env: "+fallbackText(m.cfg.Environment, "unset")+" | focus: "+focusLabel(m.focus), maxInt(20, contentWidth/2))),
		t.headerSub.Render(trimToWidth("user: "+userText+" | queue: "+fmt.Sprintf("%d", m.orchestrator.PendingWrites()), maxInt(20, contentWidth/2))),
		contentWidth,
	)

	return style.Render(strings.Join([]string{line1, line2}, "\n"))
}

func (m model) renderSidebar(t theme, layout uiLayout) string {
	style := t.sidebarBox

	if layout.Compact {
		items := make([]string, 0, len(sidebarViews()))
		for i, view := range sidebarViews() {
			label := fmt.Sprintf("%d:%s", i+1, viewLabel(view))
			if view == m.navState.CurrentView() {
				label = t.sidebarActive.Render(label)
			} else {
				label = t.sidebarItem.Render(label)
			}
			items = append(items, label)
		}
		line := strings.Join(items, "  ")
		if m.focus == focusSidebar {
			line = paneLabel("nav", true) + " " + line
		}
		return sizedStyle(style, layout.Width, layout.CompactSidebarHeight).Render(trimToWidth(line, innerWidth(style, layout.Width)))
	}

	lines := []string{t.sidebarTitle.Render(paneLabel("Marketplace", m.focus == focusSidebar)), ""}
	for index, view := range sidebarViews() {
		cursor := " "
		if index == m.sidebarIndex {
			cursor = ">"
		}
		label := fmt.Sprintf("%s %d. %s", cursor, index+1, viewLabel(view))
		style := t.sidebarItem
		if view == m.navState.CurrentView() {
			style = t.sidebarActive
		}
		lines = append(lines, style.Render(trimToWidth(label, innerWidth(t.sidebarBox, layout.SidebarWidth)-2)))
	}

	lines = append(lines, "", t.sidebarInactive.Render("b: back  f: forward"), t.sidebarInactive.Render("enter: open"))

	return sizedStyle(style, layout.SidebarWidth, layout.BodyHeight).Render(strings.Join(lines, "\n"))
}

func (m model) renderWorkbench(t theme, layout uiLayout) string {
	view := m.navState.CurrentView()
	title := viewLabel(view)
	var content string

	switch view {
	case nav.ViewDetail:
		content = m.renderDetailText(t)
	case nav.ViewSell:
		content = m.renderSellText(t)
	case nav.ViewSellerDashboard:
		content = m.renderDashboardText(t)
	case nav.ViewSellerProfile:
		content = m.renderSellerProfileText(t)
	case nav.ViewAdminPanel:
		content = m.renderAdminText(t)
	case nav.ViewAdminLogin, nav.ViewLoginPortal:
		content = m.renderLoginText(t, view)
	case nav.ViewProfile:
		content = m.renderProfileText(t)
	case nav.ViewInbox:
		content = m.renderInboxText(t)
	default:
		content = m.renderCatalogText(t)
	}

	bodyWidth := layout.MainWidth
	bodyHeight := layout.BodyHeight
	if layout.Compact {
		bodyWidth = layout.Width
		bodyHeight = layout.CompactMainHeight
	}

	style := t.panelBox
	titleStyle := t.panelTitle
	if m.focus == focusWorkbench {
		titleStyle = t.panelAccent.Bold(true)
	}
	header := fillLine(titleStyle.Render(paneLabel(title, m.focus == focusWorkbench)), t.panelSubtle.Render(nav.Path(view)), innerWidth(style, bodyWidth))
	return sizedStyle(style, bodyWidth, bodyHeight).Render(header + "\n" + content)
}

func (m model) renderCatalogText(t theme) string {
	vehicles := m.orchestrator.LoadedVehicles()
	if len(vehicles) == 0 {
		return t.panelSubtle.Render("no listings loaded, press r to refresh")
	}

	lines := make([]string, 0, len(vehicles)+1)
	for index, snapshot := range vehicles {
		cursor := "  "
		if index == m.vehicleIndex && m.focus == focusWorkbench {
			cursor = "> "
		}
		price := t.priceTag.Render(centsToPrice(snapshot.PriceCents))
		lines = append(lines, fmt.Sprintf("%s%s  %s", cursor, snapshotLine(snapshot), price))
	}
	lines = append(lines, "", t.panelSubtle.Render("enter: open listing"))
	return strings.Join(lines, "\n")
}

func (m model) renderDetailText(t theme) string {
	snapshot, ok := m.navState.Selected()
	if !ok {
		return t.panelSubtle.Render("listing unavailable, go back and pick another")
	}

	lines := []string{
		t.panelTitle.Render(snapshot.Title),
		fmt.Sprintf("%s %s, %d", snapshot.Make, snapshot.Model, snapshot.Year),
		t.priceTag.Render(centsToPrice(snapshot.PriceCents)),
		t.panelSubtle.Render(snapshot.City),
		"",
	}
	if snapshot.Description != "" {
		lines = append(lines, snapshot.Description, "")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if faqs, err := m.orchestrator.VehicleFAQs(ctx, snapshot.ID); err == nil && len(faqs) > 0 {
		lines = append(lines, t.panelAccent.Render("Questions"))
		for _, faq := range faqs {
			lines = append(lines, "q: "+faq.Question)
			if faq.Answer != "" {
				lines = append(lines, "a: "+faq.Answer)
			}
		}
		lines = append(lines, "")
	}

	if m.composing {
		lines = append(lines, t.panelAccent.Render("New message"), m.composeInput.View())
	} else {
		lines = append(lines, t.panelSubtle.Render("m: message seller"))
	}
	return strings.Join(lines, "\n")
}

func (m model) renderSellText(t theme) string {
	return strings.Join([]string{
		"Drop listing files into the import directory to publish:",
		t.panelAccent.Render(fallbackText(m.cfg.InventoryImportDir, "imports disabled")),
		"",
		t.panelSubtle.Render("each file holds a JSON document with a vehicles array"),
	}, "\n")
}

func (m model) renderDashboardText(t theme) string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	user, err := m.orchestrator.CurrentUser(ctx)
	if err != nil {
		return t.panelSubtle.Render("sign in to see your listings")
	}

	lines := []string{t.panelSubtle.Render("your active listings"), ""}
	count := 0
	for _, snapshot := range m.orchestrator.LoadedVehicles() {
		if snapshot.SellerID != user.ID {
			continue
		}
		count++
		lines = append(lines, fmt.Sprintf("%s  %s  %s", snapshot.Title, snapshot.Status, t.priceTag.Render(centsToPrice(snapshot.PriceCents))))
	}
	if count == 0 {
		lines = append(lines, t.panelSubtle.Render("none yet"))
	}
	return strings.Join(lines, "\n")
}

func (m model) renderSellerProfileText(t theme) string {
	snapshot, ok := m.navState.Selected()
	if !ok {
		return t.panelSubtle.Render("no seller selected")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	seller, err := m.orchestrator.User(ctx, snapshot.SellerID)
	if err != nil {
		return t.panelSubtle.Render("seller " + snapshot.SellerID)
	}
	return strings.Join([]string{
		t.panelTitle.Render(fallbackText(seller.DisplayName, seller.ID)),
		t.panelSubtle.Render(seller.Email),
		"",
		"listing: " + snapshot.Title,
	}, "\n")
}

func (m model) renderAdminText(t theme) string {
	return strings.Join([]string{
		"Moderation queue",
		"",
		fmt.Sprintf("loaded listings: %d", len(m.orchestrator.LoadedVehicles())),
		fmt.Sprintf("pending writes: %d", m.orchestrator.PendingWrites()),
	}, "\n")
}

func (m model) renderLoginText(t theme, view nav.View) string {
	prompt := "Sign in to continue"
	if view == nav.ViewAdminLogin {
		prompt = "Administrator sign-in"
	}
	lines := []string{
		t.panelTitle.Render(prompt),
		"",
		m.loginInput.View(),
		"",
		t.panelSubtle.Render("enter: sign in  esc: cancel"),
	}
	return strings.Join(lines, "\n")
}

func (m model) renderProfileText(t theme) string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	user, err := m.orchestrator.CurrentUser(ctx)
	if err != nil {
		return t.panelSubtle.Render("not signed in")
	}

	lines := []string{
		t.panelTitle.Render(fallbackText(user.DisplayName, user.ID)),
		t.panelSubtle.Render(user.Email),
		"role: " + user.Role,
		"",
		t.panelAccent.Render("Notifications"),
	}
	notifications, err := m.orchestrator.Notifications(ctx, false)
	if err != nil || len(notifications) == 0 {
		lines = append(lines, t.panelSubtle.Render("none"))
		return strings.Join(lines, "\n")
	}
	for _, notification := range notifications {
		marker := "•"
		if notification.Read {
			marker = " "
		}
		lines = append(lines, fmt.Sprintf("%s %s", marker, notification.Title))
	}
	return strings.Join(lines, "\n")
}

func (m model) renderInboxText(t theme) string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conversations, err := m.orchestrator.Conversations(ctx)
	if err != nil || len(conversations) == 0 {
		return t.panelSubtle.Render("no conversations yet")
	}

	lines := make([]string, 0, len(conversations))
	for _, conversation := range conversations {
		preview := fallbackText(conversation.LastMessageText, "(no messages)")
		lines = append(lines, fmt.Sprintf("%s  %s", conversation.VehicleID, t.panelSubtle.Render(trimToWidth(preview, 48))))
	}
	return strings.Join(lines, "\n")
}

func (m model) renderFooter(t theme, layout uiLayout) string {
	status := "status: " + fallbackText(m.statusText, "idle")
	statusStyled := t.footerOK.Render(status)
	if m.orchestrator.Loading() {
		statusStyled = t.footerWarn.Render(status)
	}
	if strings.TrimSpace(m.errorText) != "" {
		statusStyled = t.footerErr.Render("status: " + m.errorText)
	}

	style := t.footerBox

	helpPrefix := ""
	if m.focus == focusHelp {
		helpPrefix = t.footerKey.Render("› ")
	}
	helpLine := t.footerInfo.Render(helpPrefix + m.help.View(m.keys))

	toastLine := ""
	if active := m.toasts.Active(); len(active) > 0 {
		toastLine = "\n" + trimToWidth(renderToasts(t, active), innerWidth(style, layout.Width))
	}

	return sizedStyle(style, layout.Width, layout.FooterHeight).Render(helpLine + "\n" + trimToWidth(statusStyled, innerWidth(style, layout.Width)) + toastLine)
}

func renderToasts(t theme, active []dedup.Toast) string {
	parts := make([]string, 0, len(active))
	for _, toast := range active {
		var style lipgloss.Style
		switch toast.Kind {
		case dedup.ToastError:
			style = t.toastError
		case dedup.ToastWarning:
			style = t.toastWarn
		case dedup.ToastSuccess:
			style = t.toastSuccess
		default:
			style = t.toastInfo
		}
		parts = append(parts, style.Render(toast.Message))
	}
	return strings.Join(parts, "  ")
}

func fillLine(left, right string, width int) string {
	if width <= 0 {
		return strings.TrimSpace(left + " " + right)
	}
	lw := lipgloss.Width(left)
	rw := lipgloss.Width(right)
	if lw+rw+1 > width {
		return trimToWidth(left+" "+right, width)
	}
	return left + strings.Repeat(" ", width-lw-rw) + right
}

func trimToWidth(value string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= width {
		return string(runes)
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

func sizedStyle(style lipgloss.Style, width, height int) lipgloss.Style {
	contentWidth := maxInt(1, width-style.GetHorizontalFrameSize())
	contentHeight := maxInt(1, height-style.GetVerticalFrameSize())
	return style.Width(contentWidth).Height(contentHeight)
}

func innerWidth(style lipgloss.Style, width int) int {
	return maxInt(1, width-style.GetHorizontalFrameSize())
}

func paneLabel(label string, focused bool) string {
	if focused {
		return "› " + label
	}
	return "  " + label
}

func fallbackText(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
