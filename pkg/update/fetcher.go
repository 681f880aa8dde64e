package update

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/wuxler/upshift/pkg/errdefs"
	"github.com/wuxler/upshift/pkg/util/xhttp"
	"github.com/wuxler/upshift/pkg/util/xio"
	"github.com/wuxler/upshift/pkg/xlog"
)

// channelSegment matches a path segment naming a known release channel, so
// candidate manifest URLs can be re-pointed at the requested channel.
var channelSegment = regexp.MustCompile(`(?i)/(debug|stable|beta|experimental|canary|nightly|unknown)/`)

// installIDHeader carries the opaque installation identifier on update checks.
const installIDHeader = "X-Install-ID"

// CheckForUpdate downloads and verifies the remote manifest from the first
// reachable candidate URL and applies the channel policy. It returns nil both
// when no newer version is offered and when the offered version is rejected
// by policy; transport, signature and format failures are reported to the
// error listener and the next candidate URL is tried.
func (u *Updater) CheckForUpdate(ctx context.Context, channel ReleaseType) *UpdateInfo {
	if channel == ReleaseTypeUnknown {
		channel = u.opts.Channel
	}
	for _, candidate := range u.opts.ManifestURLs {
		url := channelSegment.ReplaceAllString(candidate, "/"+strings.ToLower(channel.String())+"/")
		info, err := u.fetchManifest(ctx, url)
		if err != nil {
			u.emitError(err)
			continue
		}
		if !info.ParsedVersion().After(u.SelfVersion()) {
			xlog.Debugf("update check: offered version %s is not newer than %s", info.Version, u.opts.SelfVersion)
			return nil
		}
		// A debug build only ever follows its own track.
		if strings.EqualFold(u.opts.SelfReleaseType, ReleaseTypeDebug.String()) &&
			!strings.EqualFold(info.ReleaseType, u.opts.SelfReleaseType) {
			return nil
		}
		if info.ParsedReleaseType() > channel {
			xlog.Debugf("update check: release type %s not allowed on channel %s", info.ReleaseType, channel)
			return nil
		}
		u.setLastCheck(info)
		return info
	}
	return nil
}

func (u *Updater) fetchManifest(ctx context.Context, url string) (*UpdateInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrTransport, err)
	}
	req.Header.Set("User-Agent", u.opts.UserAgent(u.installID))
	if u.installID != "" {
		req.Header.Set(installIDHeader, u.installID)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrTransport, err)
	}
	defer xio.CloseAndSkipError(resp.Body)
	if err := xhttp.Success(resp); err != nil {
		return nil, errdefs.NewE(errdefs.ErrTransport, err)
	}
	return ReadSignedManifest(resp.Body, u.pub)
}
