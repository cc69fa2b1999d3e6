package cli

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/iudanet/scenesync/internal/models"
	"github.com/iudanet/scenesync/internal/protocol"
)

const previewLen = 32

// formatMessage печатает сообщение одной строкой
func formatMessage(m protocol.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-24s entity=%d", m.Type, m.EntityID)
	if m.Type.HasComponent() {
		fmt.Fprintf(&b, " component=%d ts=%d", m.ComponentID, m.Timestamp)
	}
	if m.Type.IsNetwork() {
		fmt.Fprintf(&b, " net=%d", m.NetworkID)
	}
	if m.Type.HasContent() {
		fmt.Fprintf(&b, " len=%d %s", len(m.Content), preview(m.Content))
	}
	return b.String()
}

func formatEntry(e *models.ComponentEntry) string {
	state := "live"
	if e.Deleted {
		state = "deleted"
	}
	return fmt.Sprintf("entity=%d component=%d ts=%d net=%d %s len=%d %s",
		e.EntityID, e.ComponentID, e.Timestamp, e.NetworkID, state, len(e.Content), preview(e.Content))
}

// preview показывает текст как есть, бинарные данные в hex
func preview(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	shown := content
	suffix := ""
	if len(shown) > previewLen {
		shown = shown[:previewLen]
		suffix = "..."
	}
	if utf8.Valid(shown) && isPrintable(string(shown)) {
		return strconv.Quote(string(shown)) + suffix
	}
	return fmt.Sprintf("0x%x%s", shown, suffix)
}

func isPrintable(s string) bool {
	for _, r := range s {
		if !strconv.IsPrint(r) {
			return false
		}
	}
	return true
}

// parsePut разбирает ENTITY:COMPONENT:VALUE
func parsePut(s string) (int32, uint32, []byte, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return 0, 0, nil, fmt.Errorf("%w: put %q, expected ENTITY:COMPONENT:VALUE", ErrUsage, s)
	}

	entity, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: invalid entity %q", ErrUsage, parts[0])
	}
	component, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: invalid component %q", ErrUsage, parts[1])
	}
	return int32(entity), uint32(component), []byte(parts[2]), nil
}
