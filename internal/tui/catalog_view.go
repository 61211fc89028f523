package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"brandguard/internal/api"
	"brandguard/internal/catalog"
)

type catalogFetchMsg struct {
	view *catalog.View
	err  error
}

type catalogActionMsg struct {
	action string
	ruleID string
	err    error
}

// catalogView is the standalone rule catalog browser. It always shows the
// unscoped view, i.e. every rule the server knows about.
type catalogView struct {
	app  *App
	sync *catalog.Synchronizer

	view      *catalog.View
	selection int
	loading   bool

	refining    bool
	refineInput textinput.Model

	err error
}

func newCatalogView(app *App) *catalogView {
	refine := textinput.New()
	refine.CharLimit = 240
	refine.Placeholder = "e.g. limit the claim to approved wording"
	return &catalogView{
		app:         app,
		sync:        app.catalog,
		refineInput: refine,
	}
}

func (v *catalogView) Init() tea.Cmd {
	return v.fetch()
}

func (v *catalogView) fetch() tea.Cmd {
	v.loading = true
	sync := v.sync
	return func() tea.Msg {
		view, err := sync.FetchScoped(context.Background(), catalog.ScopeAll())
		return catalogFetchMsg{view: view, err: err}
	}
}

func (v *catalogView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case catalogFetchMsg:
		v.loading = false
		if m.err != nil {
			v.err = m.err
			v.app.setStatus(fmt.Sprintf("Catalog fetch failed: %s", describeError(m.err)))
			return nil
		}
		v.err = nil
		v.view = m.view
		if v.selection >= len(v.view.Rules) {
			v.selection = max(0, len(v.view.Rules)-1)
		}
		status := fmt.Sprintf("%d rule(s) in %d page(s)", len(v.view.Rules), v.view.PagesScanned)
		if v.view.Truncated {
			status += " · view truncated, narrow the scope or refresh"
			v.app.logWarn("Catalog view truncated after %d pages", v.view.PagesScanned)
		}
		v.app.setStatus(status)
		return nil

	case catalogActionMsg:
		v.loading = false
		if m.err != nil {
			v.app.logError("Rule %s failed: %s", m.action, describeError(m.err))
			v.app.setStatus(describeError(m.err))
			return nil
		}
		v.app.logInfo("Rule %s: %s", m.action, m.ruleID)
		v.app.setStatus(fmt.Sprintf("Rule %s", m.action))
		return nil

	case tea.KeyMsg:
		return v.handleKeyMsg(m)
	}
	return nil
}

func (v *catalogView) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	if v.loading {
		return nil
	}
	if v.refining {
		switch msg.String() {
		case "esc":
			v.refining = false
			v.refineInput.Blur()
			return nil
		case "enter":
			instruction := strings.TrimSpace(v.refineInput.Value())
			v.refining = false
			v.refineInput.Blur()
			if instruction == "" {
				return nil
			}
			return v.refineSelected(instruction)
		}
		var cmd tea.Cmd
		v.refineInput, cmd = v.refineInput.Update(msg)
		return cmd
	}

	switch msg.String() {
	case "up", "k":
		if v.selection > 0 {
			v.selection--
		}
	case "down", "j":
		if v.view != nil && v.selection < len(v.view.Rules)-1 {
			v.selection++
		}
	case "r":
		v.app.setStatus("Refreshing catalog…")
		return v.fetch()
	case "d":
		return v.deactivateSelected()
	case "u":
		return v.reactivateSelected()
	case "i":
		if _, ok := v.selectedRule(); ok {
			v.refining = true
			v.refineInput.SetValue("")
			v.refineInput.Focus()
			return textinput.Blink
		}
	}
	return nil
}

func (v *catalogView) selectedRule() (api.Rule, bool) {
	if v.view == nil || v.selection >= len(v.view.Rules) {
		return api.Rule{}, false
	}
	return v.view.Rules[v.selection], true
}

func (v *catalogView) deactivateSelected() tea.Cmd {
	rule, ok := v.selectedRule()
	if !ok {
		return nil
	}
	v.loading = true
	sync := v.sync
	view := v.view
	return func() tea.Msg {
		err := sync.Deactivate(context.Background(), view, rule.ID)
		return catalogActionMsg{action: "deactivated", ruleID: rule.ID, err: err}
	}
}

func (v *catalogView) reactivateSelected() tea.Cmd {
	rule, ok := v.selectedRule()
	if !ok {
		return nil
	}
	v.loading = true
	sync := v.sync
	view := v.view
	return func() tea.Msg {
		_, err := sync.Reactivate(context.Background(), view, rule.ID)
		return catalogActionMsg{action: "restored", ruleID: rule.ID, err: err}
	}
}

func (v *catalogView) refineSelected(instruction string) tea.Cmd {
	rule, ok := v.selectedRule()
	if !ok {
		return nil
	}
	v.loading = true
	sync := v.sync
	view := v.view
	return func() tea.Msg {
		_, err := sync.Refine(context.Background(), view, rule.ID, instruction)
		return catalogActionMsg{action: "refined", ruleID: rule.ID, err: err}
	}
}

func (v *catalogView) View() string {
	if v.err != nil {
		return errorTextStyle.Render(fmt.Sprintf("Catalog unavailable: %s", describeError(v.err)))
	}
	if v.view == nil {
		return "Loading catalog…"
	}

	header := fmt.Sprintf("Rule catalog · %d rule(s)", len(v.view.Rules))
	if v.view.Truncated {
		header += errorTextStyle.Render("  ⚠ truncated")
	}
	if v.loading {
		header += " · working…"
	}

	var lines []string
	for i, rule := range v.view.Rules {
		marker := "  "
		if i == v.selection {
			marker = "> "
		}
		line := fmt.Sprintf("%s[%s/%s] %s", marker, rule.Category, rule.Severity, truncate(rule.Text, 90))
		if rule.IsActive {
			lines = append(lines, ruleActiveStyle.Render(line))
		} else {
			lines = append(lines, ruleClosedStyle.Render(line))
		}
	}
	if len(lines) == 0 {
		lines = append(lines, "  no rules yet · run the setup wizard to extract some")
	}

	body := header + "\n\n" + strings.Join(lines, "\n")
	if v.refining {
		body += "\n\nRefine instruction:\n" + v.refineInput.View()
	}
	hint := "↑/↓ choose · d deactivate · u restore · i refine · r refresh · esc menu"
	if v.refining {
		hint = "enter send instruction · esc cancel"
	}
	return body + "\n" + hintTextStyle.Render(hint)
}
