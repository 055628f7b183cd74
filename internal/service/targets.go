package service

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"time"

	"docsign/internal/model"
	"docsign/internal/pdfdoc"
)

// Submission is what a signer posts to complete an invite.
type Submission struct {
	SignatureImage string   `json:"signatureImageBase64"`
	PageIndex      *int     `json:"pageIndex,omitempty"`
	X              *float64 `json:"x,omitempty"`
	Y              *float64 `json:"y,omitempty"`
	Width          *float64 `json:"width,omitempty"`
	Height         *float64 `json:"height,omitempty"`
	SlotKey        string   `json:"slotKey,omitempty"`
	ApplyAllSlots  bool     `json:"applyAllSlots,omitempty"`
	DrawName       *bool    `json:"drawName,omitempty"`
	DrawTimestamp  *bool    `json:"drawTimestamp,omitempty"`
	ClientInfo     *Client  `json:"clientInfo,omitempty"`
}

// Client is the browser environment reported by the signer.
type Client struct {
	UserAgent   string `json:"userAgent,omitempty"`
	Platform    string `json:"platform,omitempty"`
	Language    string `json:"language,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	Screen      string `json:"screen,omitempty"`
	TouchPoints *int   `json:"touchPoints,omitempty"`
}

type target struct {
	page int
	rect pdfdoc.Rect
}

// resolveTargets picks the slots to sign, or the manual rectangle when the
// instance has no slots.
func resolveTargets(slots []model.SignatureSlot, sub Submission) ([]target, error) {
	if len(slots) > 0 {
		if sub.ApplyAllSlots {
			out := make([]target, 0, len(slots))
			for _, s := range slots {
				out = append(out, slotTarget(s))
			}
			return out, nil
		}
		key := strings.TrimSpace(sub.SlotKey)
		if key == "" {
			return nil, ErrSlotRequired
		}
		for _, s := range slots {
			if strings.EqualFold(s.SlotKey, key) {
				return []target{slotTarget(s)}, nil
			}
		}
		return nil, ErrUnknownSlotKey.WithDetails(map[string][]string{"slotKey": {key}})
	}

	if sub.PageIndex == nil || sub.X == nil || sub.Y == nil || sub.Width == nil || sub.Height == nil {
		return nil, ErrManualCoordinates
	}
	return []target{{
		page: *sub.PageIndex,
		rect: pdfdoc.Rect{
			X: pdfdoc.Clamp01(*sub.X),
			Y: pdfdoc.Clamp01(*sub.Y),
			W: pdfdoc.Clamp01(*sub.Width),
			H: pdfdoc.Clamp01(*sub.Height),
		},
	}}, nil
}

func slotTarget(s model.SignatureSlot) target {
	return target{page: s.PageIndex, rect: pdfdoc.Rect{X: s.X, Y: s.Y, W: s.W, H: s.H}}
}

// decodeSignatureImage accepts a PNG as a data URL or bare base64.
func decodeSignatureImage(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 5 && strings.EqualFold(s[:5], "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok || !strings.Contains(strings.ToLower(s[:len(s)-len(payload)]), "base64") {
			return nil, ErrBadSignatureImage
		}
		s = payload
	}
	if s == "" {
		return nil, ErrBadSignatureImage
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if b, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, ErrBadSignatureImage
		}
	}
	if _, err := png.DecodeConfig(bytes.NewReader(b)); err != nil {
		return nil, ErrBadSignatureImage
	}
	return b, nil
}

// caption builds "{name}  |  yyyy-MM-dd HH:mm UTC" from whichever parts are enabled.
func caption(name string, at time.Time, drawName, drawTimestamp bool) string {
	var parts []string
	if drawName && strings.TrimSpace(name) != "" {
		parts = append(parts, strings.TrimSpace(name))
	}
	if drawTimestamp {
		parts = append(parts, at.UTC().Format("2006-01-02 15:04")+" UTC")
	}
	return strings.Join(parts, "  |  ")
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
