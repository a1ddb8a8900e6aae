package sandbox

import (
	"encoding/json"
	"fmt"
)

// Guest-side bootstrap scripts. The interpreter's language is the tool's,
// not ours; everything here is data shipped across the eval boundary.

// installToolScript pulls the extraction tool package through the
// in-sandbox package manager, whose index fetches already ride the host
// network shim.
const installToolScript = `
import pkgmgr
pkgmgr.install("media-grab-tool")
`

// patchOpenerScript replaces the standard open-URL primitive with a wrapper
// that funnels through the host shim. Per-relay-endpoint retry happens
// host-side; the guest only ever sees the final outcome.
const patchOpenerScript = `
import urlopen as _uo
import hostnet

_orig_open = _uo.open

def _relayed_open(req, timeout=30):
    try:
        return hostnet.fetch(req, timeout=timeout)
    except hostnet.RelayError:
        return _orig_open(req, timeout=timeout)

_uo.open = _relayed_open
`

// patchTransportScript swaps the low-level connection classes for shims
// backed by the same host function. The tool sometimes bypasses the opener
// and talks to raw connections directly, so the high-level patch alone is
// not enough. Response bodies cross the boundary base64-encoded and are
// decoded back to bytes here; the headers/status are re-exposed through
// the connection interface the tool expects.
const patchTransportScript = `
import transport
import hostnet
import sslcompat

transport.HTTPConnection = hostnet.ShimConnection
transport.HTTPSConnection = hostnet.ShimConnection
sslcompat.install_stub()
`

// renderProbeScript runs the tool's extract-metadata-without-downloading
// operation against the injected target. Format selection mirrors the
// tool's own convention: prefer an entry with both audio and video codecs
// present, else take the last listed. The script always returns a JSON
// object, with an error field instead of raising.
func renderProbeScript(url string, quality int) string {
	target, _ := json.Marshal(url)
	return fmt.Sprintf(`
import media_grab_tool, jsonlib

_target = %s
_quality = %d

_out = {}
try:
    _info = media_grab_tool.probe(_target, max_height=_quality, download=False)
    _formats = _info.get("formats") or [_info]
    _best = None
    for _f in reversed(_formats):
        if _f.get("url") and _f.get("vcodec", "none") != "none" and _f.get("acodec", "none") != "none":
            _best = _f
            break
    if _best is None:
        _best = _formats[-1] if _formats else None
    _out = {
        "url": (_best or {}).get("url") or _info.get("url"),
        "ext": (_best or {}).get("ext", "mp4"),
        "title": _info.get("title", ""),
        "thumbnail": _info.get("thumbnail", ""),
        "quality": (str(_best.get("height")) + "p") if _best and _best.get("height") else "?",
    }
except Exception as _e:
    _out = {"error": str(_e)}

jsonlib.dumps(_out)
`, target, quality)
}
