// Package platform classifies raw URLs into known media platforms and
// builds the embed/thumbnail URLs the playback surface needs.
package platform

import (
	"fmt"
	"net/url"
	"regexp"
)

// ID identifies the origin service of a submitted URL.
type ID string

const (
	YouTube          ID = "youtube"
	Instagram        ID = "instagram"
	InstagramProfile ID = "instagram-profile"
	Facebook         ID = "facebook"
	Twitter          ID = "twitter"
	TikTok           ID = "tiktok"
	Vimeo            ID = "vimeo"
	Reddit           ID = "reddit"
	Twitch           ID = "twitch"
	Pinterest        ID = "pinterest"
	LinkedIn         ID = "linkedin"
	Spotify          ID = "spotify"
	Image            ID = "image"
	Video            ID = "video"
	Web              ID = "web"
)

// Ref is an immutable classification of a raw URL: the platform plus the
// presentation metadata the card surface renders with.
type Ref struct {
	URL      string
	Platform ID
	Color    string
	Icon     string
}

type entry struct {
	id       ID
	color    string
	icon     string
	patterns []*regexp.Regexp
}

// The table is ordered and order is load-bearing: classification stops at
// the first match, so narrower patterns must precede broader ones. The
// instagram post/reel/tv entry must stay above instagram-profile, whose
// pattern matches any single-segment instagram path.
var table = []entry{
	{YouTube, "#FF0000", "fab fa-youtube", compile(`youtube\.com/watch`, `youtube\.com/shorts`, `youtu\.be/`)},
	{Instagram, "#E1306C", "fab fa-instagram", compile(`instagram\.com/p/`, `instagram\.com/reel/`, `instagram\.com/tv/`)},
	{InstagramProfile, "#833AB4", "fab fa-instagram", compile(`instagram\.com/[^/]+/?$`)},
	{Facebook, "#1877F2", "fab fa-facebook", compile(`facebook\.com/`, `fb\.watch/`)},
	{Twitter, "#1DA1F2", "fab fa-twitter", compile(`twitter\.com/`, `x\.com/`)},
	{TikTok, "#000000", "fab fa-tiktok", compile(`tiktok\.com/`)},
	{Vimeo, "#1AB7EA", "fab fa-vimeo", compile(`vimeo\.com/`)},
	{Reddit, "#FF4500", "fab fa-reddit", compile(`reddit\.com/`)},
	{Twitch, "#9146FF", "fab fa-twitch", compile(`twitch\.tv/`)},
	{Pinterest, "#E60023", "fab fa-pinterest", compile(`pinterest\.(com|it)/`)},
	{LinkedIn, "#0077B5", "fab fa-linkedin", compile(`linkedin\.com/`)},
	{Spotify, "#1DB954", "fab fa-spotify", compile(`spotify\.com/`)},
}

var (
	imageExt = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|bmp|svg|avif)(\?.*)?$`)
	videoExt = regexp.MustCompile(`(?i)\.(mp4|webm|mov|avi|mkv|ogg)(\?.*)?$`)
)

func compile(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(p)
	}
	return res
}

// Classify maps a raw URL to a platform reference. It is pure and total:
// unknown URLs fall through to extension sniffing and finally to Web.
func Classify(rawURL string) Ref {
	for _, e := range table {
		for _, p := range e.patterns {
			if p.MatchString(rawURL) {
				return Ref{URL: rawURL, Platform: e.id, Color: e.color, Icon: e.icon}
			}
		}
	}
	if imageExt.MatchString(rawURL) {
		return Ref{URL: rawURL, Platform: Image, Color: "#6C63FF", Icon: "fas fa-image"}
	}
	if videoExt.MatchString(rawURL) {
		return Ref{URL: rawURL, Platform: Video, Color: "#FF6B6B", Icon: "fas fa-video"}
	}
	return Ref{URL: rawURL, Platform: Web, Color: "#64FFDA", Icon: "fas fa-globe"}
}

var (
	youtubeIDRe   = regexp.MustCompile(`(?:v=|youtu\.be/|shorts/|embed/)([a-zA-Z0-9_-]{11})`)
	vimeoIDRe     = regexp.MustCompile(`vimeo\.com/(?:video/)?(\d+)`)
	instagramIDRe = regexp.MustCompile(`instagram\.com/(?:p|reel|tv)/([A-Za-z0-9_-]+)`)
	tiktokIDRe    = regexp.MustCompile(`tiktok\.com/@[^/]+/video/(\d+)`)
	spotifyIDRe   = regexp.MustCompile(`spotify\.com/(track|album|playlist|episode)/([a-zA-Z0-9]+)`)
)

// VideoID extracts the platform-native media identifier, or "" when the URL
// doesn't carry one.
func VideoID(rawURL string, p ID) string {
	var re *regexp.Regexp
	switch p {
	case YouTube:
		re = youtubeIDRe
	case Vimeo:
		re = vimeoIDRe
	case Instagram:
		re = instagramIDRe
	case TikTok:
		re = tiktokIDRe
	default:
		return ""
	}
	if m := re.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

// EmbedURL builds the iframe URL the playback surface uses for EmbedOnly
// results. Returns "" when the platform has no iframe embed.
func EmbedURL(rawURL string, p ID) string {
	switch p {
	case YouTube:
		if id := VideoID(rawURL, YouTube); id != "" {
			return fmt.Sprintf("https://www.youtube.com/embed/%s?rel=0&modestbranding=1", id)
		}
	case Vimeo:
		if id := VideoID(rawURL, Vimeo); id != "" {
			return fmt.Sprintf("https://player.vimeo.com/video/%s?dnt=1", id)
		}
	case Instagram:
		if id := VideoID(rawURL, Instagram); id != "" {
			return fmt.Sprintf("https://www.instagram.com/p/%s/embed/", id)
		}
	case Facebook:
		return fmt.Sprintf("https://www.facebook.com/plugins/post.php?href=%s&show_text=true&width=500", url.QueryEscape(rawURL))
	case TikTok:
		if id := VideoID(rawURL, TikTok); id != "" {
			return fmt.Sprintf("https://www.tiktok.com/embed/v2/%s", id)
		}
	case Spotify:
		if m := spotifyIDRe.FindStringSubmatch(rawURL); m != nil {
			return fmt.Sprintf("https://open.spotify.com/embed/%s/%s", m[1], m[2])
		}
	}
	return ""
}

// ThumbnailURL builds a static preview image URL where the platform offers
// one without extraction.
func ThumbnailURL(rawURL string, p ID) string {
	switch p {
	case YouTube:
		if id := VideoID(rawURL, YouTube); id != "" {
			return fmt.Sprintf("https://img.youtube.com/vi/%s/hqdefault.jpg", id)
		}
	case Image:
		return rawURL
	}
	return ""
}
