package widgets

import (
	"html/template"
	"sort"
	"strconv"
	"strings"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/aggregator"
	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/layout"
)

type TodoConfig struct {
	EntityID string `json:"entityId"`
	Title    string `json:"title"`
}

func (c *TodoConfig) Normalize() { c.EntityID = strings.TrimSpace(c.EntityID) }

func renderTodo(w layout.WidgetEntry, cfg layout.Config, data *Data) template.HTML {
	var c TodoConfig
	if !w.DecodeConfig(&c) || strings.TrimSpace(c.EntityID) == "" {
		return Placeholder("format-list-checks", "Select a todo list")
	}
	var (
		items []aggregator.TodoItem
		ok    bool
	)
	if data != nil {
		items, ok = data.Todos[c.EntityID]
	}
	if !ok {
		return Placeholder("format-list-checks", "No todo data")
	}
	name := ""
	if st, ok := data.State(c.EntityID); ok {
		name = st.FriendlyName()
	}

	if w.Position.Width == 1 && w.Position.Height == 1 {
		pending := 0
		for _, it := range items {
			if !it.Completed() {
				pending++
			}
		}
		body := `<div class="todo-count"><span class="todo-count-value">` + strconv.Itoa(pending) +
			`</span><span class="todo-count-label">pending</span></div>`
		return frame("todo", "", body)
	}

	shown := TodoDisplayItems(items, w.Position.Width*w.Position.Height*2)
	var b strings.Builder
	if len(shown) == 0 {
		b.WriteString(`<div class="todo-empty">Nothing to do</div>`)
	} else {
		b.WriteString(`<ul class="todo-items">`)
		for _, it := range shown {
			icon, class := "checkbox-blank-outline", "todo-item"
			if it.Completed() {
				icon, class = "checkbox-marked-outline", "todo-item todo-done"
			}
			b.WriteString(`<li class="` + class + `">` + mdi(icon, "todo-icon") + `<span class="todo-summary">` + esc(it.Summary) + `</span></li>`)
		}
		b.WriteString(`</ul>`)
	}
	return frame("todo", title(w, c.Title, name), b.String())
}

// TodoDisplayItems orders incomplete items before completed ones, keeping
// list order otherwise, and truncates to limit.
func TodoDisplayItems(items []aggregator.TodoItem, limit int) []aggregator.TodoItem {
	out := append([]aggregator.TodoItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return !out[i].Completed() && out[j].Completed() })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
