package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewCode builds a human-readable entity code, e.g. SES-12-9F3A1C40.
// The academy id keeps codes recognizable per tenant; the random suffix
// guarantees a code is never reused.
func NewCode(prefix string, academyID int64) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%d-%s", prefix, academyID, suffix)
}
