package tools

import (
	"context"
	"fmt"
	"strings"
)

// HelpTool shows usage and the available tools.
type HelpTool struct {
	name string
	d    Dispatcher
}

func NewHelpTool(name string, d Dispatcher) *HelpTool {
	return &HelpTool{name: name, d: d}
}

func (h *HelpTool) Name() string { return h.name }

func (h *HelpTool) Description() string {
	return "Tampilkan bantuan"
}

func (h *HelpTool) Execute(ctx context.Context, input string) (string, error) {
	return HelpText(h.d.ListTools()), nil
}

// HelpText is the greeting shown by /start and /help.
func HelpText(tools []string) string {
	return fmt.Sprintf(`✅ Bot siap membantu verifikasi SheerID.

Perintah:
/start - tampilkan bantuan
/tools - daftar tool tersedia
/verify <tool> <url> [proxy] - jalankan verifikasi

Tool tersedia: %s
Contoh:
/verify spotify https://example.sheerid.com/verify/xyz
`, strings.Join(tools, ", "))
}

// ListTool lists the registered verification tools.
type ListTool struct {
	d Dispatcher
}

func NewListTool(d Dispatcher) *ListTool {
	return &ListTool{d: d}
}

func (l *ListTool) Name() string { return "tools" }

func (l *ListTool) Description() string {
	return "Daftar tool tersedia"
}

func (l *ListTool) Execute(ctx context.Context, input string) (string, error) {
	var b strings.Builder
	b.WriteString("Tool tersedia:")
	for _, t := range l.d.ListTools() {
		b.WriteString("\n- ")
		b.WriteString(t)
	}
	return b.String(), nil
}
