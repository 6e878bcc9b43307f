// Copyright 2024 The imageedge authors.
// SPDX-License-Identifier: Apache-2.0

package imageedge

import "strconv"

// Query parameters consumed by the edge and stripped before forwarding.
const (
	paramFormat = "f"
	paramPoster = "poster"
)

// A rule returns the directives for an image request and whether it
// applies.  Rules are evaluated in order and the first one that applies
// decides the complete directive list.
type rule struct {
	name  string
	apply func(p Policy, req *Request, format Format, caps Capabilities) ([]string, bool)
}

// rules is the directive decision table, in priority order.  The order of
// tokens in each result is significant to the CDN.
var rules = []rule{
	{"format", formatOverride},
	{"poster", poster},
	{"optimize", optimize},
}

// Policy selects the CDN transformation directives for image requests.
type Policy struct {
	// Detector classifies the requesting device.  If nil,
	// UserAgentDetector is used.
	Detector DeviceDetector
}

// BuildDirectives returns the ordered list of transformation directives for
// req, given the guessed source format and the client capabilities.
func (p Policy) BuildDirectives(req *Request, format Format, caps Capabilities) []string {
	d, _ := p.evaluate(req, format, caps)
	return d
}

// evaluate is BuildDirectives, also returning the name of the rule that
// matched.
func (p Policy) evaluate(req *Request, format Format, caps Capabilities) ([]string, string) {
	for _, r := range rules {
		if d, ok := r.apply(p, req, format, caps); ok {
			return d, r.name
		}
	}
	return nil, ""
}

// formatOverride lets the caller force any output format, for example
// converting an animated GIF to a video with /image/anim.gif?f=webm.
// Values that cannot form a single path token are ignored.
func formatOverride(_ Policy, req *Request, _ Format, _ Capabilities) ([]string, bool) {
	f := req.URL.Query().Get(paramFormat)
	if !validFormatToken(f) {
		return nil, false
	}
	return []string{"f_" + f}, true
}

// validFormatToken reports whether f is non-empty and made only of ASCII
// letters, digits, '_', '-', '.' and ':'.
func validFormatToken(f string) bool {
	if f == "" {
		return false
	}
	for _, c := range f {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case c == '_', c == '-', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

// poster extracts the first frame of a video as a still image, as in
// /image/clip.mp4?poster=1.
func poster(_ Policy, req *Request, _ Format, caps Capabilities) ([]string, bool) {
	if req.URL.Query().Get(paramPoster) != "1" {
		return nil, false
	}
	switch {
	case caps.AVIF:
		return []string{"pg_0", "f_avif"}, true
	case caps.WEBP:
		return []string{"pg_0", "f_webp"}, true
	default:
		return []string{"pg_0", "f_png"}, true
	}
}

// optimize is the default rule and always applies.
func optimize(p Policy, req *Request, format Format, caps Capabilities) ([]string, bool) {
	if format == FormatGIF {
		// animated GIFs keep their size and container
		return []string{"fl_lossy", "q_50"}, true
	}

	class := DetectDeviceClass(req, p.Detector)
	d := []string{
		"c_limit",
		"w_" + strconv.Itoa(class.Width()),
		"q_auto:good",
	}

	if format == FormatUnknown {
		return d, true
	}
	switch {
	case caps.AVIF:
		d = append(d, "f_avif")
	case caps.WEBP:
		d = append(d, "f_webp")
	case format == FormatWEBP || format == FormatAVIF:
		// client can't render the modern source format
		d = append(d, "f_png")
	}
	return d, true
}
