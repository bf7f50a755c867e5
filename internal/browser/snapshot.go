package browser

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/nbenliogludev/go-region-ai-agent/internal/screen"
)

const overlayID = "__region_agent_overlay"

// overlayBorder is drawn just outside the region so it never shows up in
// region captures.
const overlayBorder = 3

func decodePNG(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

func showOverlayScript(r screen.Region) string {
	return fmt.Sprintf(`(() => {
		let el = document.getElementById(%[1]q);
		if (!el) {
			el = document.createElement("div");
			el.id = %[1]q;
			document.documentElement.appendChild(el);
		}
		Object.assign(el.style, {
			position: "fixed",
			left: "%[2]dpx",
			top: "%[3]dpx",
			width: "%[4]dpx",
			height: "%[5]dpx",
			border: "%[6]dpx solid red",
			pointerEvents: "none",
			zIndex: "2147483647",
			boxSizing: "content-box",
		});
		return true;
	})()`, overlayID, r.X-overlayBorder, r.Y-overlayBorder, r.Width, r.Height, overlayBorder)
}

func hideOverlayScript() string {
	return fmt.Sprintf(`(() => {
		const el = document.getElementById(%q);
		if (el) el.remove();
		return true;
	})()`, overlayID)
}

const viewportScript = `[window.innerWidth, window.innerHeight]`
