package layout

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/1broseidon/winrestore/internal/platform"
)

// Signature identifies a monitor arrangement in the cache.
type Signature string

// SignatureMode selects how an arrangement is keyed.
type SignatureMode string

const (
	// SignatureCount keys arrangements by screen count only. Two layouts with
	// the same number of screens share a cache slot.
	SignatureCount SignatureMode = "count"
	// SignatureGeometry keys arrangements by the exact geometry of every screen.
	SignatureGeometry SignatureMode = "geometry"
)

// ParseSignatureMode validates a configured mode. Empty means count.
func ParseSignatureMode(s string) (SignatureMode, error) {
	switch SignatureMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SignatureCount:
		return SignatureCount, nil
	case SignatureGeometry:
		return SignatureGeometry, nil
	default:
		return "", fmt.Errorf("unknown signature mode %q (valid: count, geometry)", s)
	}
}

// CountSignature returns the signature for n connected screens.
func CountSignature(n int) Signature {
	return Signature(strconv.Itoa(n))
}

// SignatureFor derives the arrangement signature of displays under mode.
func SignatureFor(mode SignatureMode, displays []platform.Display) Signature {
	if mode != SignatureGeometry {
		return CountSignature(len(displays))
	}

	rects := make([]string, 0, len(displays))
	for _, d := range displays {
		b := d.Bounds
		rects = append(rects, fmt.Sprintf("%dx%d+%d+%d", b.Width, b.Height, b.X, b.Y))
	}
	sort.Strings(rects)
	return Signature(strconv.Itoa(len(displays)) + ":" + strings.Join(rects, ","))
}
