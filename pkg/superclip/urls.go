package superclip

import (
	"fmt"
	"net/url"
	"strings"
)

// DirectURL builds the short link for a clip: "{base}/{owner}.{code}"
// when it has an access code, "{base}/{owner}.{token}" when it has a
// persistent token, empty otherwise.
func DirectURL(c *Clip, baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	switch {
	case c.AccessCode != "":
		return fmt.Sprintf("%s/%s.%s", base, c.OwnerID, c.AccessCode)
	case c.AccessToken != "":
		return fmt.Sprintf("%s/%s.%s", base, c.OwnerID, c.AccessToken)
	default:
		return ""
	}
}

// DownloadURL builds the owner-scoped file download endpoint for a
// clip.
func DownloadURL(c *Clip, baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	return fmt.Sprintf("%s/api/clips/%s/file?ownerId=%s", base, c.ID, url.QueryEscape(c.OwnerID))
}
