package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/pyromancer/verifikator/internal/verifier"
)

const verifyUsage = "Format: /verify <tool> <url> [proxy]\nContoh: /verify spotify https://..."

// VerifyTool runs a verification plugin: "<tool> <url> [proxy]".
type VerifyTool struct {
	d       Dispatcher
	timeout time.Duration
}

func NewVerifyTool(d Dispatcher, timeout time.Duration) *VerifyTool {
	return &VerifyTool{d: d, timeout: timeout}
}

func (v *VerifyTool) Name() string { return "verify" }

func (v *VerifyTool) Description() string {
	return "Jalankan verifikasi: /verify <tool> <url> [proxy]"
}

// ParseArgs splits "<tool> <url> [proxy]". ok is false when tool or url
// is missing.
func ParseArgs(input string) (req verifier.Request, ok bool) {
	fields := strings.Fields(input)
	if len(fields) < 2 {
		return req, false
	}
	req.Tool = fields[0]
	req.URL = fields[1]
	if len(fields) > 2 {
		proxy := fields[2]
		req.Proxy = &proxy
	}
	return req, true
}

func (v *VerifyTool) Ack(input string) (string, bool) {
	if _, ok := ParseArgs(input); !ok {
		return "", false
	}
	return "⏳ Memulai verifikasi...", true
}

func (v *VerifyTool) Execute(ctx context.Context, input string) (string, error) {
	req, ok := ParseArgs(input)
	if !ok {
		return verifyUsage, nil
	}
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	return FormatResult(v.d.Verify(ctx, req)), nil
}

// FormatResult renders a verification result for chat.
func FormatResult(res verifier.Result) string {
	if !res.OK {
		detail := res.Detail
		if detail == "" {
			detail = "Unknown error"
		}
		return fmt.Sprintf("❌ Verifikasi gagal: %s", detail)
	}
	return fmt.Sprintf("✅ Verifikasi selesai.\nHasil: %s", FormatPayload(res.Payload))
}

// FormatPayload prints strings as-is and everything else as JSON.
func FormatPayload(payload any) string {
	if s, ok := payload.(string); ok {
		return s
	}
	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return out
}
