package directive

import "strings"

// Visible is the display projection of a buffer that is still being
// streamed. When open and close markers balance, complete blocks are
// removed; otherwise only the text before the first open marker is shown.
// A trailing fragment that could be the start of an open marker is held
// back until the next chunk settles it.
func Visible(buf string) string {
	var out string
	opens := strings.Count(buf, OpenMarker)
	closes := strings.Count(buf, CloseMarker)

	if i := strings.Index(buf, OpenMarker); opens != closes && i >= 0 {
		out = Strip(buf[:i])
	} else {
		out = Strip(buf)
	}
	return trimMarkerPrefix(out)
}

// Strip is the display projection of a completed reply: every complete block
// is removed, an unterminated block is cut off together with everything
// after it, and stray close markers are dropped.
func Strip(text string) string {
	var b strings.Builder
	pos := 0
	for {
		start := strings.Index(text[pos:], OpenMarker)
		if start < 0 {
			b.WriteString(text[pos:])
			break
		}
		start += pos
		b.WriteString(text[pos:start])

		end := strings.Index(text[start+len(OpenMarker):], CloseMarker)
		if end < 0 {
			break
		}
		pos = start + len(OpenMarker) + end + len(CloseMarker)
	}

	out := strings.ReplaceAll(b.String(), CloseMarker, "")
	// Removing a block can splice a marker together from its neighbours.
	if i := strings.Index(out, OpenMarker); i >= 0 {
		out = out[:i]
	}
	return out
}

func trimMarkerPrefix(s string) string {
	for n := len(OpenMarker) - 1; n > 0; n-- {
		if strings.HasSuffix(s, OpenMarker[:n]) {
			return s[:len(s)-n]
		}
	}
	return s
}
