// Copyright 2024 The imageedge authors.
// SPDX-License-Identifier: Apache-2.0

package imageedge

import (
	"strings"

	"github.com/mileusna/useragent"
)

const (
	mimeTypeAVIF = "image/avif"
	mimeTypeWEBP = "image/webp"
)

// Capabilities describes the image formats a client accepts.
type Capabilities struct {
	AVIF bool
	WEBP bool
}

// DetectCapabilities inspects the Accept header of req.  Matching is a
// case-insensitive substring search; quality values are not considered.
// Repeated Accept fields are treated as one comma-separated list.
func DetectCapabilities(req *Request) Capabilities {
	accept := strings.ToLower(strings.Join(req.Header.Values("Accept"), ", "))
	return Capabilities{
		AVIF: strings.Contains(accept, mimeTypeAVIF),
		WEBP: strings.Contains(accept, mimeTypeWEBP),
	}
}

// DeviceClass is the kind of device a request originated from.
type DeviceClass string

// Device classes, each mapped to a maximum output width.
const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceTablet  DeviceClass = "tablet"
	DeviceDesktop DeviceClass = "desktop"
)

// Width returns the maximum image width, in pixels, delivered to devices of
// class c.
func (c DeviceClass) Width() int {
	switch c {
	case DeviceMobile:
		return 640
	case DeviceTablet:
		return 960
	default:
		return 1200
	}
}

// A DeviceDetector reports whether a User-Agent belongs to a mobile device.
// If tablet is true, tablets are reported as mobile too.  An empty userAgent
// is a valid input.
type DeviceDetector interface {
	IsMobile(userAgent string, tablet bool) bool
}

// DeviceDetectorFunc adapts an ordinary function to a DeviceDetector.
type DeviceDetectorFunc func(userAgent string, tablet bool) bool

// IsMobile calls f(userAgent, tablet).
func (f DeviceDetectorFunc) IsMobile(userAgent string, tablet bool) bool {
	return f(userAgent, tablet)
}

// UserAgentDetector is the default DeviceDetector, backed by the useragent
// parser.
//
// Android browsers mark phones with a "Mobile" token; an Android user agent
// without one is a tablet, whatever the parser says.  Amazon's Silk browser
// only runs on Kindle Fire tablets.
type UserAgentDetector struct{}

// IsMobile implements DeviceDetector.
func (UserAgentDetector) IsMobile(userAgent string, tablet bool) bool {
	if userAgent == "" {
		return false
	}
	ua := useragent.Parse(userAgent)
	lower := strings.ToLower(userAgent)

	android := false
	phone := ua.Mobile && !ua.Tablet
	if i := strings.Index(lower, "android"); i >= 0 {
		android = true
		phone = strings.Contains(lower[i:], "mobile")
	}

	if !tablet {
		return phone
	}
	return phone || ua.Tablet || android || strings.Contains(lower, "silk")
}

// DetectDeviceClass classifies req by its User-Agent header.  The mobile
// check runs first because detectors in tablet mode also match phones.
func DetectDeviceClass(req *Request, d DeviceDetector) DeviceClass {
	if d == nil {
		d = UserAgentDetector{}
	}
	ua := req.Header.Get("User-Agent")
	if d.IsMobile(ua, false) {
		return DeviceMobile
	}
	if d.IsMobile(ua, true) {
		return DeviceTablet
	}
	return DeviceDesktop
}

// Format is the image format of a source image, as guessed from its path.
type Format string

// Recognized source formats.  FormatUnknown is the zero value.
const (
	FormatUnknown Format = ""
	FormatJPG     Format = "jpg"
	FormatPNG     Format = "png"
	FormatWEBP    Format = "webp"
	FormatAVIF    Format = "avif"
	FormatGIF     Format = "gif"
)

// formatSuffixes is checked in order; the first matching suffix wins.
var formatSuffixes = []struct {
	suffix string
	format Format
}{
	{"jpg", FormatJPG},
	{"jpeg", FormatJPG},
	{"png", FormatPNG},
	{"webp", FormatWEBP},
	{"avif", FormatAVIF},
	{"gif", FormatGIF},
}

// DetectSourceFormat guesses the format of the requested image from the
// suffix of its lowercased path.  The whole path is tested, not only the
// final segment, and no dot is required before the suffix.  The path is
// tested as sent, so percent-encoded characters are not decoded.
func DetectSourceFormat(req *Request) Format {
	p := strings.ToLower(req.URL.EscapedPath())
	for _, fs := range formatSuffixes {
		if strings.HasSuffix(p, fs.suffix) {
			return fs.format
		}
	}
	return FormatUnknown
}
